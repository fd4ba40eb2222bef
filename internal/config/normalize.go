package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeBackend()
	c.normalizeAudio()
	c.normalizeNetwork()
	c.normalizeUpload()
	c.normalizePower()
	c.normalizeStorage()
	c.normalizeTime()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeBackend() {
	c.Backend.UploadURL = strings.TrimSpace(c.Backend.UploadURL)
	c.Backend.HealthURL = strings.TrimSpace(c.Backend.HealthURL)
	c.Backend.SessionCompleteURL = strings.TrimSpace(c.Backend.SessionCompleteURL)
	if c.Backend.APIKey == "" {
		if value, ok := os.LookupEnv("COCO_API_KEY"); ok {
			c.Backend.APIKey = value
		}
	}
	if c.Backend.HTTPTimeout <= 0 {
		c.Backend.HTTPTimeout = defaultHTTPTimeoutSeconds
	}
	c.Backend.AudioFormat = strings.ToLower(strings.TrimSpace(c.Backend.AudioFormat))
	if c.Backend.AudioFormat == "" {
		c.Backend.AudioFormat = defaultAudioFormat
	}
}

func (c *Config) normalizeAudio() {
	if c.Audio.RecordSeconds <= 0 {
		c.Audio.RecordSeconds = defaultRecordSeconds
	}
	if c.Audio.QueueSize <= 0 {
		c.Audio.QueueSize = defaultQueueSize
	}
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = defaultSampleRate
	}
	if c.Audio.PushTimeoutMs <= 0 {
		c.Audio.PushTimeoutMs = defaultPushTimeoutMs
	}
	if c.Audio.PopTimeoutMs <= 0 {
		c.Audio.PopTimeoutMs = defaultPopTimeoutMs
	}
}

func (c *Config) normalizeNetwork() {
	c.Network.Interface = strings.TrimSpace(c.Network.Interface)
	if c.Network.Interface == "" {
		c.Network.Interface = defaultInterface
	}
	if c.Network.MinProbeIntervalSeconds <= 0 {
		c.Network.MinProbeIntervalSeconds = defaultMinProbeIntervalSeconds
	}
	if c.Network.MaxProbeIntervalSeconds <= 0 {
		c.Network.MaxProbeIntervalSeconds = defaultMaxProbeIntervalSeconds
	}
	if c.Network.ReachabilityRecheckSecs <= 0 {
		c.Network.ReachabilityRecheckSecs = defaultReachabilityRecheckSecs
	}
	if c.Network.HTTPGuardTimeoutSeconds <= 0 {
		c.Network.HTTPGuardTimeoutSeconds = defaultHTTPGuardTimeoutSecs
	}
	if c.Network.ProbeGuardTimeoutSeconds <= 0 {
		c.Network.ProbeGuardTimeoutSeconds = defaultProbeGuardTimeoutSecs
	}
}

func (c *Config) normalizeUpload() {
	if c.Upload.PollIntervalSeconds <= 0 {
		c.Upload.PollIntervalSeconds = defaultUploadPollSeconds
	}
	if c.Upload.FailureLimit <= 0 {
		c.Upload.FailureLimit = defaultUploadFailureLimit
	}
	if c.Upload.BufferMiB <= 0 {
		c.Upload.BufferMiB = defaultUploadBufferMiB
	}
	if c.Upload.BatteryThresholdVolts <= 0 {
		c.Upload.BatteryThresholdVolts = defaultBatteryThresholdVolts
	}
}

func (c *Config) normalizePower() {
	if c.Power.BatteryRecordingThresholdVolts <= 0 {
		c.Power.BatteryRecordingThresholdVolts = defaultBatteryThresholdVolts
	}
	if c.Power.BatterySampleIntervalSeconds <= 0 {
		c.Power.BatterySampleIntervalSeconds = defaultBatterySampleSeconds
	}
	c.Power.BatteryPath = strings.TrimSpace(c.Power.BatteryPath)
	if c.Power.BatteryPath == "" {
		c.Power.BatteryPath = defaultBatteryPath
	}
	if c.Power.SleepCheckIntervalSeconds <= 0 {
		c.Power.SleepCheckIntervalSeconds = defaultSleepCheckSeconds
	}
	if c.Power.SleepDurationMinutes <= 0 {
		c.Power.SleepDurationMinutes = defaultSleepDurationMinutes
	}
	c.Power.SuspendCommand = strings.TrimSpace(c.Power.SuspendCommand)
	if c.Power.SuspendCommand == "" {
		c.Power.SuspendCommand = defaultSuspendCommand
	}
	if c.Power.WakeDebounceMs <= 0 {
		c.Power.WakeDebounceMs = defaultWakeDebounceMs
	}
	if c.Power.WakeValidationTimeoutMs <= 0 {
		c.Power.WakeValidationTimeoutMs = defaultWakeValidationMs
	}
}

func (c *Config) normalizeStorage() {
	if c.Storage.GuardTimeoutSeconds <= 0 {
		c.Storage.GuardTimeoutSeconds = defaultStorageGuardTimeoutSeconds
	}
	if c.Storage.MinFreeMiB <= 0 {
		c.Storage.MinFreeMiB = defaultMinFreeMiB
	}
}

func (c *Config) normalizeTime() {
	if c.Time.PersistIntervalMinutes <= 0 {
		c.Time.PersistIntervalMinutes = defaultTimePersistMinutes
	}
	if strings.TrimSpace(c.Time.TimestampFormat) == "" {
		c.Time.TimestampFormat = defaultTimestampFormat
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
