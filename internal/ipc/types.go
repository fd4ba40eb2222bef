package ipc

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon and pipeline status.
type StatusResponse struct {
	Running                   bool   `json:"running"`
	PID                       int    `json:"pid"`
	LockPath                  string `json:"lock_path"`
	QueuePath                 string `json:"queue_path"`
	QueueLength               int    `json:"queue_length"`
	RecordingsDir             string `json:"recordings_dir"`
	BootSession               uint32 `json:"boot_session"`
	AudioFileIndex            uint32 `json:"audio_file_index"`
	RecordingRequested        bool   `json:"recording_requested"`
	LinkConnected             bool   `json:"link_connected"`
	BackendReachable          bool   `json:"backend_reachable"`
	UploadInProgress          bool   `json:"upload_in_progress"`
	FilesAvailable            bool   `json:"files_available"`
	ReadyForSleep             bool   `json:"ready_for_sleep"`
	ConsecutiveUploadFailures uint32 `json:"consecutive_upload_failures"`
	UploadsTotal              int    `json:"uploads_total"`
	UploadsSucceeded          int    `json:"uploads_succeeded"`
	UploadsFailed             int    `json:"uploads_failed"`
}

// RecordRequest starts or stops capture.
type RecordRequest struct {
	Active bool `json:"active"`
}

// RecordResponse echoes the resulting capture request flag.
type RecordResponse struct {
	Recording bool `json:"recording"`
}

// QueueListRequest lists durable queue entries.
type QueueListRequest struct{}

// QueueListResponse contains queue entries oldest first.
type QueueListResponse struct {
	Entries []string `json:"entries"`
}

// QueueClearRequest removes all queue entries.
type QueueClearRequest struct{}

// QueueClearResponse reports the number of removed entries.
type QueueClearResponse struct {
	Removed int `json:"removed"`
}

// UploadAttempt is the wire form of one ledger row.
type UploadAttempt struct {
	CorrelationID string `json:"correlation_id"`
	BootSession   uint32 `json:"boot_session"`
	FilePath      string `json:"file_path"`
	Bytes         int64  `json:"bytes"`
	Outcome       string `json:"outcome"`
	Detail        string `json:"detail"`
	AttemptedAt   string `json:"attempted_at"`
}

// UploadsRequest fetches recent upload attempts.
type UploadsRequest struct {
	Limit int `json:"limit"`
}

// UploadsResponse contains upload attempts newest first.
type UploadsResponse struct {
	Attempts []UploadAttempt `json:"attempts"`
}

// WakeRequest feeds a synthetic wake signal through debounce validation.
type WakeRequest struct{}

// WakeResponse carries the validation verdict.
type WakeResponse struct {
	Validity string `json:"validity"`
}

// LogTailRequest fetches log lines based on offset and follow semantics. A
// negative offset requests the newest Limit lines.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// StopRequest stops daemon background tasks.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}
