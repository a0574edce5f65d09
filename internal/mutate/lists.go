package mutate

import (
	"fmt"
	"strings"

	"kanban-cli/internal/ids"
	"kanban-cli/internal/model"
)

type AddList struct {
	Name string
}

func (AddList) Kind() Kind       { return KindAddList }
func (AddList) Optimistic() bool { return false }
func (in AddList) String() string {
	return fmt.Sprintf("add list %q", in.Name)
}

func (in AddList) Apply(b model.Board, gen ids.Generator) (model.Board, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = DefaultListName
	}
	b.Lists = insertAt(b.Lists, len(b.Lists), model.TaskList{
		ID:    gen(),
		Name:  name,
		Tasks: []model.Task{},
	})
	return b, nil
}

type RemoveList struct {
	ListID string
}

func (RemoveList) Kind() Kind       { return KindRemoveList }
func (RemoveList) Optimistic() bool { return false }
func (in RemoveList) String() string {
	return "remove list " + in.ListID
}

func (in RemoveList) Apply(b model.Board, _ ids.Generator) (model.Board, error) {
	idx, ok := b.FindList(in.ListID)
	if !ok {
		return b, NotFoundError{Kind: "list", ID: in.ListID}
	}
	b.Lists = removeAt(b.Lists, idx)
	return b, nil
}

// RenameList sets a list's name. A blank name keeps the previous one.
type RenameList struct {
	ListID string
	Name   string
}

func (RenameList) Kind() Kind       { return KindRenameList }
func (RenameList) Optimistic() bool { return true }
func (in RenameList) String() string {
	return fmt.Sprintf("rename list %s to %q", in.ListID, in.Name)
}

func (in RenameList) Apply(b model.Board, _ ids.Generator) (model.Board, error) {
	idx, ok := b.FindList(in.ListID)
	if !ok {
		return b, NotFoundError{Kind: "list", ID: in.ListID}
	}
	name := strings.TrimSpace(in.Name)
	if name == "" || name == b.Lists[idx].Name {
		return b, nil
	}
	l := b.Lists[idx]
	l.Name = name
	return withList(b, idx, l), nil
}

// MoveList reorders the board's lists. ListID, when set, wins over From: the list is
// located by identity on the board being transformed.
type MoveList struct {
	ListID string
	From   int
	To     int
}

func (MoveList) Kind() Kind       { return KindMoveList }
func (MoveList) Optimistic() bool { return true }
func (in MoveList) String() string {
	return fmt.Sprintf("move list %s from %d to %d", in.ListID, in.From, in.To)
}

func (in MoveList) Apply(b model.Board, _ ids.Generator) (model.Board, error) {
	from := in.From
	if in.ListID != "" {
		idx, ok := b.FindList(in.ListID)
		if !ok {
			return b, NotFoundError{Kind: "list", ID: in.ListID}
		}
		from = idx
	} else if from < 0 || from >= len(b.Lists) {
		return b, IndexError{Kind: "list", Index: from, Len: len(b.Lists)}
	}
	to := clamp(in.To, 0, len(b.Lists)-1)
	if from == to {
		return b, nil
	}
	b.Lists = moveTo(b.Lists, from, to)
	return b, nil
}

// RenameBoard sets the board's display name. A blank name keeps the previous one.
type RenameBoard struct {
	Name string
}

func (RenameBoard) Kind() Kind       { return KindRenameBoard }
func (RenameBoard) Optimistic() bool { return true }
func (in RenameBoard) String() string {
	return fmt.Sprintf("rename board to %q", in.Name)
}

func (in RenameBoard) Apply(b model.Board, _ ids.Generator) (model.Board, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return b, nil
	}
	b.Name = name
	return b, nil
}
