package mutate

import (
	"fmt"

	"kanban-cli/internal/ids"
	"kanban-cli/internal/model"
)

// MoveTaskWithinList reorders a task inside its list. TaskID, when set, wins over From:
// indexes captured by a view may be stale by the time the intent is applied.
type MoveTaskWithinList struct {
	ListID string
	TaskID string
	From   int
	To     int
}

func (MoveTaskWithinList) Kind() Kind       { return KindMoveTaskWithinList }
func (MoveTaskWithinList) Optimistic() bool { return true }
func (in MoveTaskWithinList) String() string {
	return fmt.Sprintf("move task %s in list %s from %d to %d", in.TaskID, in.ListID, in.From, in.To)
}

func (in MoveTaskWithinList) Apply(b model.Board, _ ids.Generator) (model.Board, error) {
	li, ok := b.FindList(in.ListID)
	if !ok {
		return b, NotFoundError{Kind: "list", ID: in.ListID}
	}
	l := b.Lists[li]
	from, err := resolveTaskIndex(l, in.TaskID, in.From)
	if err != nil {
		return b, err
	}
	to := clamp(in.To, 0, len(l.Tasks)-1)
	if from == to {
		return b, nil
	}
	l.Tasks = moveTo(l.Tasks, from, to)
	return withList(b, li, l), nil
}

// MoveTaskAcrossLists transfers a task from one list to another in a single step: the
// returned board never holds the task in both lists or in neither.
type MoveTaskAcrossLists struct {
	SrcListID string
	DstListID string
	TaskID    string
	From      int
	To        int
}

func (MoveTaskAcrossLists) Kind() Kind       { return KindMoveTaskAcrossLists }
func (MoveTaskAcrossLists) Optimistic() bool { return true }
func (in MoveTaskAcrossLists) String() string {
	return fmt.Sprintf("move task %s from list %s[%d] to list %s[%d]", in.TaskID, in.SrcListID, in.From, in.DstListID, in.To)
}

func (in MoveTaskAcrossLists) Apply(b model.Board, gen ids.Generator) (model.Board, error) {
	if in.SrcListID == in.DstListID {
		return MoveTaskWithinList{ListID: in.SrcListID, TaskID: in.TaskID, From: in.From, To: in.To}.Apply(b, gen)
	}
	si, ok := b.FindList(in.SrcListID)
	if !ok {
		return b, NotFoundError{Kind: "list", ID: in.SrcListID}
	}
	di, ok := b.FindList(in.DstListID)
	if !ok {
		return b, NotFoundError{Kind: "list", ID: in.DstListID}
	}
	src, dst := b.Lists[si], b.Lists[di]
	from, err := resolveTaskIndex(src, in.TaskID, in.From)
	if err != nil {
		return b, err
	}
	task := src.Tasks[from]
	src.Tasks = removeAt(src.Tasks, from)
	dst.Tasks = insertAt(dst.Tasks, clamp(in.To, 0, len(dst.Tasks)), task)

	lists := make([]model.TaskList, len(b.Lists))
	copy(lists, b.Lists)
	lists[si] = src
	lists[di] = dst
	b.Lists = lists
	return b, nil
}

func resolveTaskIndex(l model.TaskList, taskID string, from int) (int, error) {
	if taskID != "" {
		idx, ok := l.FindTask(taskID)
		if !ok {
			return -1, NotFoundError{Kind: "task", ID: taskID}
		}
		return idx, nil
	}
	if from < 0 || from >= len(l.Tasks) {
		return -1, IndexError{Kind: "task", Index: from, Len: len(l.Tasks)}
	}
	return from, nil
}
