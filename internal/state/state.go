package state

import (
	"sync"
	"time"
)

// WakeValidity classifies an external wake signal after debounce.
type WakeValidity int

const (
	// WakeUndetermined means debounce validation has not completed yet.
	WakeUndetermined WakeValidity = iota
	// WakeInvalid means the trigger no longer held when the debounce fired.
	WakeInvalid
	// WakeValid means the trigger survived debounce and recording should start.
	WakeValid
)

// String returns the lowercase label used in logs and status output.
func (v WakeValidity) String() string {
	switch v {
	case WakeInvalid:
		return "invalid"
	case WakeValid:
		return "valid"
	default:
		return "undetermined"
	}
}

// Backoff is a snapshot of one probe's retry schedule.
type Backoff struct {
	Interval    time.Duration
	NextAttempt time.Time
}

// Store is the coordination substrate shared by every task. All fields are
// guarded by one mutex; accessors never block on anything besides the lock
// itself, which is never held across I/O.
type Store struct {
	mu sync.Mutex

	recordingRequested        bool
	chunkHolders              int
	linkConnected             bool
	backendReachable          bool
	uploadInProgress          bool
	filesAvailable            bool
	readyForSleep             bool
	externalWakeTriggered     bool
	externalWakeValid         WakeValidity
	bootSession               uint32
	audioFileIndex            uint32
	consecutiveUploadFailures uint32

	scanBackoff         Backoff
	reachabilityBackoff Backoff
}

// NewStore returns a Store with every flag cleared. The boot session is set
// separately once the session counter file has been read.
func NewStore() *Store {
	return &Store{}
}

// RecordingRequested reports whether capture should be running.
func (s *Store) RecordingRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordingRequested
}

// SetRecordingRequested toggles the capture request. Clearing a previously set
// request also marks the system ready for sleep; setting it cancels any
// pending sleep readiness.
func (s *Store) SetRecordingRequested(requested bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordingRequested && !requested {
		s.readyForSleep = true
	}
	if requested {
		s.readyForSleep = false
	}
	s.recordingRequested = requested
}

// CaptureActive reports whether any task holds a chunk outside the bounded
// queue, either mid-capture or mid-persist. Sleep must wait for it to clear.
func (s *Store) CaptureActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunkHolders > 0
}

// BeginChunkWork marks a chunk in flight outside the bounded queue.
func (s *Store) BeginChunkWork() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunkHolders++
}

// EndChunkWork releases a BeginChunkWork claim.
func (s *Store) EndChunkWork() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chunkHolders > 0 {
		s.chunkHolders--
	}
}

// LinkConnected reports whether the wireless link is up.
func (s *Store) LinkConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linkConnected
}

// SetLinkConnected records link state.
func (s *Store) SetLinkConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linkConnected = connected
}

// BackendReachable reports whether the most recent health probe succeeded.
func (s *Store) BackendReachable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backendReachable
}

// SetBackendReachable records the probe outcome. A successful probe also
// clears the consecutive upload failure count.
func (s *Store) SetBackendReachable(reachable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backendReachable = reachable
	if reachable {
		s.consecutiveUploadFailures = 0
	}
}

// UploadInProgress reports whether an upload attempt currently holds the
// exclusivity lock.
func (s *Store) UploadInProgress() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploadInProgress
}

// SetUploadInProgress records upload activity for idle detection.
func (s *Store) SetUploadInProgress(inProgress bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploadInProgress = inProgress
}

// FilesAvailable reports whether the durable queue is believed non-empty.
func (s *Store) FilesAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filesAvailable
}

// SetFilesAvailable records durable queue occupancy.
func (s *Store) SetFilesAvailable(available bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filesAvailable = available
}

// ReadyForSleep reports whether a completed recording is waiting to drain.
func (s *Store) ReadyForSleep() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readyForSleep
}

// SetReadyForSleep overrides sleep readiness, used when the arbiter aborts a
// sleep attempt.
func (s *Store) SetReadyForSleep(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readyForSleep = ready
}

// ExternalWakeTriggered reports whether a wake signal is awaiting validation.
func (s *Store) ExternalWakeTriggered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.externalWakeTriggered
}

// SetExternalWakeTriggered arms or clears the wake validation flag. Arming
// resets validity to undetermined.
func (s *Store) SetExternalWakeTriggered(triggered bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.externalWakeTriggered = triggered
	if triggered {
		s.externalWakeValid = WakeUndetermined
	}
}

// ExternalWakeValidity returns the debounce verdict.
func (s *Store) ExternalWakeValidity() WakeValidity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.externalWakeValid
}

// SetExternalWakeValidity records the debounce verdict.
func (s *Store) SetExternalWakeValidity(v WakeValidity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.externalWakeValid = v
}

// BootSession returns the persisted boot counter for this run.
func (s *Store) BootSession() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bootSession
}

// SetBootSession installs the boot counter read at startup.
func (s *Store) SetBootSession(session uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bootSession = session
}

// AudioFileIndex returns the index of the most recently persisted chunk.
func (s *Store) AudioFileIndex() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audioFileIndex
}

// NextAudioFileIndex increments the chunk counter and returns the new value.
func (s *Store) NextAudioFileIndex() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioFileIndex++
	return s.audioFileIndex
}

// ConsecutiveUploadFailures returns the current failure streak.
func (s *Store) ConsecutiveUploadFailures() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consecutiveUploadFailures
}

// RecordUploadFailure increments the failure streak and returns the new count.
func (s *Store) RecordUploadFailure() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveUploadFailures++
	return s.consecutiveUploadFailures
}

// ResetUploadFailures clears the failure streak after a successful transfer.
func (s *Store) ResetUploadFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveUploadFailures = 0
}

// ScanBackoff returns the link scan retry schedule.
func (s *Store) ScanBackoff() Backoff {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanBackoff
}

// SetScanBackoff records the link scan retry schedule.
func (s *Store) SetScanBackoff(b Backoff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanBackoff = b
}

// ReachabilityBackoff returns the backend probe retry schedule.
func (s *Store) ReachabilityBackoff() Backoff {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reachabilityBackoff
}

// SetReachabilityBackoff records the backend probe retry schedule.
func (s *Store) SetReachabilityBackoff(b Backoff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reachabilityBackoff = b
}

// ForceReachabilityCheck moves the next backend probe to now, used after an
// upload failure streak so the prober revalidates immediately.
func (s *Store) ForceReachabilityCheck(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reachabilityBackoff.NextAttempt = now
}

// Snapshot is a consistent copy of every field, taken under one lock hold.
type Snapshot struct {
	RecordingRequested        bool
	CaptureActive             bool
	LinkConnected             bool
	BackendReachable          bool
	UploadInProgress          bool
	FilesAvailable            bool
	ReadyForSleep             bool
	ExternalWakeTriggered     bool
	ExternalWakeValid         WakeValidity
	BootSession               uint32
	AudioFileIndex            uint32
	ConsecutiveUploadFailures uint32
	ScanBackoff               Backoff
	ReachabilityBackoff       Backoff
}

// Snapshot returns a point-in-time copy of the store for status reporting.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		RecordingRequested:        s.recordingRequested,
		CaptureActive:             s.chunkHolders > 0,
		LinkConnected:             s.linkConnected,
		BackendReachable:          s.backendReachable,
		UploadInProgress:          s.uploadInProgress,
		FilesAvailable:            s.filesAvailable,
		ReadyForSleep:             s.readyForSleep,
		ExternalWakeTriggered:     s.externalWakeTriggered,
		ExternalWakeValid:         s.externalWakeValid,
		BootSession:               s.bootSession,
		AudioFileIndex:            s.audioFileIndex,
		ConsecutiveUploadFailures: s.consecutiveUploadFailures,
		ScanBackoff:               s.scanBackoff,
		ReachabilityBackoff:       s.reachabilityBackoff,
	}
}
