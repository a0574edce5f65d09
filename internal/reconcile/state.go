package reconcile

import (
	"time"

	"kanban-cli/internal/model"
	"kanban-cli/internal/mutate"
)

type LoadStatus string

const (
	Loading    LoadStatus = "loading"
	Ready      LoadStatus = "ready"
	LoadFailed LoadStatus = "load_failed"
	// Closed is reported by Snapshot once the engine has been torn down.
	Closed LoadStatus = "closed"
)

// Path is the write path an intent takes.
type Path string

const (
	PathOptimistic Path = "optimistic"
	PathConfirmed  Path = "confirmed"
)

func pathOf(in mutate.Intent) Path {
	if in.Optimistic() {
		return PathOptimistic
	}
	return PathConfirmed
}

type MutationState string

const (
	Pending   MutationState = "pending"
	Confirmed MutationState = "confirmed"
	Failed    MutationState = "failed"
)

type MutationRecord struct {
	Seq         uint64
	Kind        mutate.Kind
	Intent      string
	Path        Path
	State       MutationState
	Err         error
	SubmittedAt time.Time
	SettledAt   time.Time
	// Version is the authority version of the response; zero until confirmed.
	Version int64
	// Adopted reports whether the response replaced the displayed board. A confirmed
	// response older than the displayed board is discarded.
	Adopted bool
}

// maxRecords bounds the mutation history kept in State.
const maxRecords = 32

// State is a read-only snapshot of an engine. Board shares structure with the engine's
// model; callers must not write into it.
type State struct {
	Board     model.Board
	Status    LoadStatus
	LastError error
	Pending   int
	Mutations []MutationRecord
}

// Loaded reports whether a board has been adopted.
func (s State) Loaded() bool {
	return s.Status == Ready
}
