package mutate

import (
	"strings"

	"kanban-cli/internal/ids"
	"kanban-cli/internal/model"
)

const (
	DefaultListName = "New list"
	DefaultTaskName = "New task"
)

type Kind string

const (
	KindAddList             Kind = "add_list"
	KindRemoveList          Kind = "remove_list"
	KindRenameList          Kind = "rename_list"
	KindMoveList            Kind = "move_list"
	KindAddTask             Kind = "add_task"
	KindRemoveTask          Kind = "remove_task"
	KindRenameTask          Kind = "rename_task"
	KindSetTaskDone         Kind = "set_task_done"
	KindMoveTaskWithinList  Kind = "move_task_within_list"
	KindMoveTaskAcrossLists Kind = "move_task_across_lists"
	KindRenameBoard         Kind = "rename_board"
)

// Intent is a user intention that can be applied to a board snapshot.
//
// Apply never mutates its input: it returns a new board sharing every untouched list
// with the input, or the input itself when the intent turns out to be a no-op.
//
// Optimistic intents (renames, reorders) are displayed before the authority confirms
// them. The others change structure and need authority-assigned ids before further
// edits are safe, so they are displayed only once confirmed.
type Intent interface {
	Kind() Kind
	Optimistic() bool
	Apply(b model.Board, gen ids.Generator) (model.Board, error)
	String() string
}

// Apply applies a single intent, defaulting the id generator to ids.New.
func Apply(b model.Board, in Intent, gen ids.Generator) (model.Board, error) {
	if gen == nil {
		gen = ids.New
	}
	return in.Apply(b, gen)
}

// ApplyAll applies intents in order and stops at the first error.
func ApplyAll(b model.Board, gen ids.Generator, intents ...Intent) (model.Board, error) {
	for _, in := range intents {
		next, err := Apply(b, in, gen)
		if err != nil {
			return b, err
		}
		b = next
	}
	return b, nil
}

// Changed reports whether after differs from before. It relies on the sharing
// contract of Apply: any structural change allocates a new list slice.
func Changed(before, after model.Board) bool {
	if before.Name != after.Name || len(before.Lists) != len(after.Lists) {
		return true
	}
	if len(before.Lists) == 0 {
		return false
	}
	return &before.Lists[0] != &after.Lists[0]
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// withList returns a copy of b whose list slice is freshly allocated and holds l at idx.
func withList(b model.Board, idx int, l model.TaskList) model.Board {
	lists := make([]model.TaskList, len(b.Lists))
	copy(lists, b.Lists)
	lists[idx] = l
	b.Lists = lists
	return b
}

func insertAt[T any](s []T, idx int, v T) []T {
	out := make([]T, 0, len(s)+1)
	out = append(out, s[:idx]...)
	out = append(out, v)
	return append(out, s[idx:]...)
}

func removeAt[T any](s []T, idx int) []T {
	out := make([]T, 0, len(s)-1)
	out = append(out, s[:idx]...)
	return append(out, s[idx+1:]...)
}

func moveTo[T any](s []T, from, to int) []T {
	v := s[from]
	return insertAt(removeAt(s, from), to, v)
}

func clamp(i, lo, hi int) int {
	if i < lo {
		return lo
	}
	if i > hi {
		return hi
	}
	return i
}
