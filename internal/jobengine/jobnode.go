package jobengine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/torvald-bar/bargo/internal/catalog"
	"github.com/torvald-bar/bargo/internal/jobconfig"
)

// JobNode is a job's runtime state layered on top of its parsed config:
// current FSM state, pending abort flag, running-info, and the bookkeeping
// the job-directory watcher needs to decide when to re-parse or remove it.
type JobNode struct {
	mu sync.Mutex

	Config *jobconfig.Job
	FilePath string
	FileMTime time.Time

	state RunState
	pendingAbort bool

	scheduleUUID string
	customText string
	archiveType catalog.ArchiveType
	noStorage bool
	dryRun bool
	startTime time.Time
	initiator string

	achievedVolume int
	requestedVolume int
	volumePrompt string

	Running RunningInfo

	LastScheduledCheck time.Time
}

// NewJobNode wraps a parsed job config in fresh runtime state.
func NewJobNode(cfg *jobconfig.Job, filePath string, mtime time.Time) *JobNode {
	if cfg.UUID == "" {
		cfg.UUID = uuid.NewString()
	}
	return &JobNode{Config: cfg, FilePath: filePath, FileMTime: mtime, state: StateNone}
}

// State returns the job's current run state.
func (j *JobNode) State() RunState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Active reports whether the job currently has a run in flight (any state
// other than NONE/DONE/ERROR/ABORTED).
func (j *JobNode) Active() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state.active()
}

// Trigger records a new run request and transitions NONE -> WAITING.
func (j *JobNode) Trigger(scheduleUUID, customText string, archiveType catalog.ArchiveType, noStorage, dryRun bool, initiator string, now time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StateNone && j.state != StateDone && j.state != StateError && j.state != StateAborted {
		return fmt.Errorf("cannot trigger job in state %s", j.state)
	}
	j.scheduleUUID = scheduleUUID
	j.customText = customText
	j.archiveType = archiveType
	j.noStorage = noStorage
	j.dryRun = dryRun
	j.startTime = now
	j.initiator = initiator
	j.Running.Reset()
	j.pendingAbort = false
	j.state = StateWaiting
	return nil
}

// Start transitions WAITING -> RUNNING.
func (j *JobNode) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StateWaiting {
		return fmt.Errorf("cannot start job in state %s", j.state)
	}
	j.Running.LastError = ""
	j.state = StateRunning
	return nil
}

// RequestCredential transitions RUNNING -> one of the REQUEST_*_PASSWORD
// states.
func (j *JobNode) RequestCredential(state RunState) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StateRunning {
		return fmt.Errorf("cannot request credential from state %s", j.state)
	}
	j.state = state
	return nil
}

// RequestVolume transitions RUNNING -> REQUEST_VOLUME, recording which
// volume number is requested and an operator-facing prompt.
func (j *JobNode) RequestVolume(requested int, prompt string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StateRunning {
		return fmt.Errorf("cannot request volume from state %s", j.state)
	}
	j.requestedVolume = requested
	j.volumePrompt = prompt
	j.state = StateRequestVolume
	return nil
}

// Resume transitions a REQUEST_* state back to RUNNING, after a credential
// or volume has been supplied.
func (j *JobNode) Resume() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch j.state {
	case StateRequestFTPPassword, StateRequestSSHPassword, StateRequestWebDAVPassword, StateRequestCryptPassword, StateRequestVolume:
		j.state = StateRunning
		return nil
	default:
		return fmt.Errorf("cannot resume job in state %s", j.state)
	}
}

// Disconnect transitions a remote (slave) job to DISCONNECTED.
func (j *JobNode) Disconnect() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = StateDisconnected
}

// Abort requests cancellation. The caller is responsible for the slave abort RPC and for
// waiting on the worker thread to observe the flag; Abort itself only
// updates FSM state synchronously.
func (j *JobNode) Abort() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch j.state {
	case StateNone, StateDone, StateError, StateAborted:
		return ErrNotActive
	case StateWaiting:
		j.state = StateNone
		return nil
	default:
		j.pendingAbort = true
		return nil
	}
}

// PendingAbort reports whether Abort has been requested on the current run.
func (j *JobNode) PendingAbort() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.pendingAbort
}

// End demotes RUNNING to DONE/ERROR/ABORTED based on lastErr and the
// pending-abort flag.
func (j *JobNode) End(lastErr error) RunState {
	j.mu.Lock()
	defer j.mu.Unlock()

	switch {
	case j.pendingAbort:
		j.state = StateAborted
	case lastErr != nil:
		j.Running.LastError = lastErr.Error()
		j.state = StateError
	default:
		j.state = StateDone
	}
	j.pendingAbort = false
	j.Running.LastExecuted = time.Now()
	return j.state
}

// Reset clears running-info and returns the job to NONE. Only allowed
// outside active states.
func (j *JobNode) Reset() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.active() {
		return ErrActive
	}
	j.Running.Reset()
	j.state = StateNone
	return nil
}

// ArchiveType returns the archive type recorded by the most recent Trigger.
func (j *JobNode) ArchiveType() catalog.ArchiveType {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.archiveType
}

// ScheduleUUID returns the schedule that triggered the current/last run, if
// any.
func (j *JobNode) ScheduleUUID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.scheduleUUID
}
