package reconcile

import (
	"errors"
	"fmt"
)

var (
	ErrClosed         = errors.New("reconcile: engine closed")
	ErrNotStarted     = errors.New("reconcile: engine not started")
	ErrAlreadyStarted = errors.New("reconcile: engine already started")
	ErrNotReady       = errors.New("reconcile: board not loaded")
)

// LookupError reports an intent that could not be applied to the current board.
// The intent is dropped.
type LookupError struct {
	Intent string
	Err    error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("cannot %s: %v", e.Intent, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// SubmissionError reports a rejected or failed submission. The optimistic state stays
// visible; a later edit or push frame reconciles it.
type SubmissionError struct {
	Seq    uint64
	Intent string
	Err    error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit #%d (%s): %v", e.Seq, e.Intent, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

type StaleReason string

const (
	StaleVersion   StaleReason = "stale version"
	BoardMismatch  StaleReason = "board mismatch"
	InvalidPayload StaleReason = "invalid payload"
)

// StaleUpdateError reports inbound state that was discarded. It is diagnostic only and
// never surfaced as the engine's LastError.
type StaleUpdateError struct {
	Reason  StaleReason
	BoardID string
	Version int64
	Current int64
	Err     error
}

func (e *StaleUpdateError) Error() string {
	switch e.Reason {
	case StaleVersion:
		return fmt.Sprintf("discarded board %s v%d: current is v%d", e.BoardID, e.Version, e.Current)
	case InvalidPayload:
		return fmt.Sprintf("discarded board %s: %v", e.BoardID, e.Err)
	default:
		return fmt.Sprintf("discarded board %s: %s", e.BoardID, e.Reason)
	}
}

func (e *StaleUpdateError) Unwrap() error { return e.Err }

// InitialLoadError marks a board that never loaded; views show it as a failed load,
// not as an empty board.
type InitialLoadError struct {
	BoardID string
	Err     error
}

func (e *InitialLoadError) Error() string {
	return fmt.Sprintf("failed to load board %s: %v", e.BoardID, e.Err)
}

func (e *InitialLoadError) Unwrap() error { return e.Err }
