package mutate

import (
	"fmt"
	"strings"

	"kanban-cli/internal/ids"
	"kanban-cli/internal/model"
)

type AddTask struct {
	ListID string
	Name   string
}

func (AddTask) Kind() Kind       { return KindAddTask }
func (AddTask) Optimistic() bool { return false }
func (in AddTask) String() string {
	return fmt.Sprintf("add task %q to list %s", in.Name, in.ListID)
}

func (in AddTask) Apply(b model.Board, gen ids.Generator) (model.Board, error) {
	idx, ok := b.FindList(in.ListID)
	if !ok {
		return b, NotFoundError{Kind: "list", ID: in.ListID}
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = DefaultTaskName
	}
	l := b.Lists[idx]
	l.Tasks = insertAt(l.Tasks, len(l.Tasks), model.Task{ID: gen(), Name: name})
	return withList(b, idx, l), nil
}

type RemoveTask struct {
	ListID string
	TaskID string
}

func (RemoveTask) Kind() Kind       { return KindRemoveTask }
func (RemoveTask) Optimistic() bool { return false }
func (in RemoveTask) String() string {
	return fmt.Sprintf("remove task %s from list %s", in.TaskID, in.ListID)
}

func (in RemoveTask) Apply(b model.Board, _ ids.Generator) (model.Board, error) {
	li, ti, err := findTask(b, in.ListID, in.TaskID)
	if err != nil {
		return b, err
	}
	l := b.Lists[li]
	l.Tasks = removeAt(l.Tasks, ti)
	return withList(b, li, l), nil
}

// RenameTask sets a task's name. A blank name keeps the previous one.
type RenameTask struct {
	ListID string
	TaskID string
	Name   string
}

func (RenameTask) Kind() Kind       { return KindRenameTask }
func (RenameTask) Optimistic() bool { return true }
func (in RenameTask) String() string {
	return fmt.Sprintf("rename task %s to %q", in.TaskID, in.Name)
}

func (in RenameTask) Apply(b model.Board, _ ids.Generator) (model.Board, error) {
	li, ti, err := findTask(b, in.ListID, in.TaskID)
	if err != nil {
		return b, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" || name == b.Lists[li].Tasks[ti].Name {
		return b, nil
	}
	return withTask(b, li, ti, func(t *model.Task) { t.Name = name }), nil
}

type SetTaskDone struct {
	ListID string
	TaskID string
	Done   bool
}

func (SetTaskDone) Kind() Kind       { return KindSetTaskDone }
func (SetTaskDone) Optimistic() bool { return true }
func (in SetTaskDone) String() string {
	return fmt.Sprintf("set task %s done=%t", in.TaskID, in.Done)
}

func (in SetTaskDone) Apply(b model.Board, _ ids.Generator) (model.Board, error) {
	li, ti, err := findTask(b, in.ListID, in.TaskID)
	if err != nil {
		return b, err
	}
	if b.Lists[li].Tasks[ti].Done == in.Done {
		return b, nil
	}
	return withTask(b, li, ti, func(t *model.Task) { t.Done = in.Done }), nil
}

func findTask(b model.Board, listID, taskID string) (int, int, error) {
	li, ok := b.FindList(listID)
	if !ok {
		return -1, -1, NotFoundError{Kind: "list", ID: listID}
	}
	ti, ok := b.Lists[li].FindTask(taskID)
	if !ok {
		return -1, -1, NotFoundError{Kind: "task", ID: taskID}
	}
	return li, ti, nil
}

// withTask copies the list's task array before editing the task at ti.
func withTask(b model.Board, li, ti int, edit func(*model.Task)) model.Board {
	l := b.Lists[li]
	tasks := make([]model.Task, len(l.Tasks))
	copy(tasks, l.Tasks)
	edit(&tasks[ti])
	l.Tasks = tasks
	return withList(b, li, l)
}
