// Package nav holds the navigation state machine and the view-models it
// drives. Everything here is owned by the single consuming context: call
// methods only from there (the TUI update loop or a task.Loop).
package nav

import "fmt"

// State is the active view
type State int

const (
	StateSearch        State = iota // Initial: keyword input and result list
	StateDetail                     // One title's detail panel
	StatePlayerPending              // Episode resolve in flight, detail still shown
)

// String returns the state name for logs
func (s State) String() string {
	switch s {
	case StateSearch:
		return "search"
	case StateDetail:
		return "detail"
	case StatePlayerPending:
		return "player-pending"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ShowsDetail reports whether the detail panel is the visible view
func (s State) ShowsDetail() bool {
	return s == StateDetail || s == StatePlayerPending
}

// Slot names used to tag tasks
const (
	slotSearch = "search"
	slotDetail = "detail"
	slotVideo  = "video"
	slotPoster = "poster"
	slotThumb  = "thumb:" // + row id
)

// Appended to the status line of a transient failure
const retryHint = " (try again)"

// ChangeKind says what part of the projection changed
type ChangeKind int

const (
	ChangeNavigated ChangeKind = iota
	ChangeStatus
	ChangeResults
	ChangeDetail
	ChangeThumbnail
	ChangePoster
	ChangeVideo
)

// Change is reported to the Observer after the consuming context applied
// a user action or a task outcome
type Change struct {
	Kind  ChangeKind
	State State
}

// Observer is notified of changes on the consuming context
type Observer func(Change)
