package config

const (
	defaultDataDir = "~/.local/share/coco"
	defaultLogDir  = "~/.local/share/coco/logs"

	defaultHTTPTimeoutSeconds = 4
	defaultAudioFormat        = "wav"

	defaultRecordSeconds = 10
	defaultQueueSize     = 10
	defaultSampleRate    = 16000
	defaultPushTimeoutMs = 1000
	defaultPopTimeoutMs  = 250

	defaultInterface               = "wlan0"
	defaultMinProbeIntervalSeconds = 5
	defaultMaxProbeIntervalSeconds = 600
	defaultReachabilityRecheckSecs = 600
	defaultHTTPGuardTimeoutSecs    = 5
	defaultProbeGuardTimeoutSecs   = 2

	defaultUploadPollSeconds  = 2
	defaultUploadFailureLimit = 5
	defaultUploadBufferMiB    = 8

	defaultBatteryThresholdVolts = 3.0
	defaultBatterySampleSeconds  = 60
	defaultBatteryPath           = "/sys/class/power_supply/BAT0"
	defaultSleepCheckSeconds     = 5
	defaultSleepDurationMinutes  = 100
	defaultSuspendCommand        = "systemctl suspend"
	defaultWakeDebounceMs        = 1000
	defaultWakeValidationMs      = 2000

	defaultStorageGuardTimeoutSeconds = 5
	defaultMinFreeMiB                 = 64

	defaultTimePersistMinutes = 10
	defaultTimestampFormat    = "06-01-02_15-04-05"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults. Numeric values
// follow the shipped device profile; deployments override them in TOML.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Backend: Backend{
			HTTPTimeout: defaultHTTPTimeoutSeconds,
			AudioFormat: defaultAudioFormat,
		},
		Audio: Audio{
			RecordSeconds: defaultRecordSeconds,
			QueueSize:     defaultQueueSize,
			SampleRate:    defaultSampleRate,
			PushTimeoutMs: defaultPushTimeoutMs,
			PopTimeoutMs:  defaultPopTimeoutMs,
		},
		Network: Network{
			Interface:                defaultInterface,
			MinProbeIntervalSeconds:  defaultMinProbeIntervalSeconds,
			MaxProbeIntervalSeconds:  defaultMaxProbeIntervalSeconds,
			ReachabilityRecheckSecs:  defaultReachabilityRecheckSecs,
			HTTPGuardTimeoutSeconds:  defaultHTTPGuardTimeoutSecs,
			ProbeGuardTimeoutSeconds: defaultProbeGuardTimeoutSecs,
		},
		Upload: Upload{
			PollIntervalSeconds:   defaultUploadPollSeconds,
			FailureLimit:          defaultUploadFailureLimit,
			BufferMiB:             defaultUploadBufferMiB,
			BatteryThresholdVolts: defaultBatteryThresholdVolts,
		},
		Power: Power{
			BatteryRecordingThresholdVolts: defaultBatteryThresholdVolts,
			BatterySampleIntervalSeconds:   defaultBatterySampleSeconds,
			BatteryPath:                    defaultBatteryPath,
			SleepCheckIntervalSeconds:      defaultSleepCheckSeconds,
			SleepDurationMinutes:           defaultSleepDurationMinutes,
			SuspendCommand:                 defaultSuspendCommand,
			WakeDebounceMs:                 defaultWakeDebounceMs,
			WakeValidationTimeoutMs:        defaultWakeValidationMs,
		},
		Storage: Storage{
			GuardTimeoutSeconds: defaultStorageGuardTimeoutSeconds,
			MinFreeMiB:          defaultMinFreeMiB,
		},
		Time: Time{
			PersistIntervalMinutes: defaultTimePersistMinutes,
			TimestampFormat:        defaultTimestampFormat,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
