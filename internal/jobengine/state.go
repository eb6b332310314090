// Package jobengine implements the Job/JobNode runtime: the run state
// machine, running-info EMAs, job-directory lifecycle, and the background
// cooperative threads that drive scheduling, pairing and retention.
package jobengine

import "fmt"

// RunState is a job's current position in the run state machine.
type RunState int

const (
	StateNone RunState = iota
	StateWaiting
	StateRunning
	StateDone
	StateError
	StateAborted
	StateRequestFTPPassword
	StateRequestSSHPassword
	StateRequestWebDAVPassword
	StateRequestCryptPassword
	StateRequestVolume
	StateDisconnected
)

func (s RunState) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateWaiting:
		return "waiting"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	case StateAborted:
		return "aborted"
	case StateRequestFTPPassword:
		return "request_ftp_password"
	case StateRequestSSHPassword:
		return "request_ssh_password"
	case StateRequestWebDAVPassword:
		return "request_webdav_password"
	case StateRequestCryptPassword:
		return "request_crypt_password"
	case StateRequestVolume:
		return "request_volume"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// active reports whether a job in this state has a run in flight, which
// blocks reload/removal/reset of its config.
func (s RunState) active() bool {
	switch s {
	case StateWaiting, StateRunning,
		StateRequestFTPPassword, StateRequestSSHPassword, StateRequestWebDAVPassword, StateRequestCryptPassword,
		StateRequestVolume, StateDisconnected:
		return true
	default:
		return false
	}
}

// ErrNotActive is returned by Abort when the job has no run in flight
// (NONE, DONE, ERROR or ABORTED). Resume reports a wrong state with its own
// error, not this one.
var ErrNotActive = fmt.Errorf("job is not active")

// ErrActive is returned by Reset when the job currently has an active run.
// Config reload and removal of an active job are deferred or skipped by the
// engine without returning an error.
var ErrActive = fmt.Errorf("job has an active run")
