package types

/*

	These are the "immutable" core types of Risonanza,
	provided for cross-package use (e.g. Plugins) and testing.

	Struct constructors are housed in their own packages.
	Methods taking these types should create local aliases,
	for example: type RunEvents []Rt.RunEvent

*/

import "time"

// RunState is the lifecycle position of a single acquisition run.
type RunState int

const (
	RunQueued RunState = iota // waiting for its slot in the session
	RunActive                 // pulse program is on the controller
	RunDone                   // samples received and stored
	RunFailed                 // controller or storage error
)

func (rs RunState) String() string {
	switch rs {
	case RunQueued:
		return "queued"
	case RunActive:
		return "active"
	case RunDone:
		return "done"
	case RunFailed:
		return "failed"
	}
	return "unknown"
}

// RunEvent announces the progress of one run inside a session.
// The instrument emits these, the display consumes them.
type RunEvent struct {
	RunID     string    `json:"run_id"`  // shared by every run of the session
	Seq       int       `json:"seq"`     // 1-based position in the session
	Total     int       `json:"total"`   // number of runs in the session
	State     RunState  `json:"state"`
	Message   string    `json:"message,omitempty"` // failure detail, empty otherwise
	Timestamp time.Time `json:"timestamp"`
}
