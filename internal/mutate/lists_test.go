package mutate

import (
	"errors"
	"testing"

	"kanban-cli/internal/ids"
	"kanban-cli/internal/model"
)

func twoListBoard() model.Board {
	return model.Board{
		ID:      "b1",
		Version: 4,
		Name:    "Board",
		Lists: []model.TaskList{
			{ID: "L1", Name: "Todo", Tasks: []model.Task{{ID: "T1", Name: "one"}, {ID: "T2", Name: "two"}}},
			{ID: "L2", Name: "Doing", Tasks: []model.Task{}},
			{ID: "L3", Name: "Done", Tasks: []model.Task{{ID: "T3", Name: "three"}}},
		},
	}
}

func TestAddList_AppendsWithGeneratedIDAndKeepsVersion(t *testing.T) {
	b := model.Board{ID: "b1", Version: 1, Lists: []model.TaskList{}}

	got, err := Apply(b, AddList{Name: "Todo"}, ids.Sequence("local"))
	if err != nil {
		t.Fatalf("AddList: %v", err)
	}
	if len(got.Lists) != 1 {
		t.Fatalf("expected 1 list; got %d", len(got.Lists))
	}
	l := got.Lists[0]
	if l.Name != "Todo" || l.ID != "local-1" || len(l.Tasks) != 0 || l.Tasks == nil {
		t.Fatalf("unexpected list: %+v", l)
	}
	if got.Version != 1 {
		t.Fatalf("expected version to stay 1 until confirmed; got %d", got.Version)
	}
	if len(b.Lists) != 0 {
		t.Fatalf("expected input board untouched")
	}
}

func TestAddList_BlankNameUsesPlaceholder(t *testing.T) {
	got, err := Apply(twoListBoard(), AddList{Name: "   "}, ids.Sequence("x"))
	if err != nil {
		t.Fatalf("AddList: %v", err)
	}
	if name := got.Lists[len(got.Lists)-1].Name; name != DefaultListName {
		t.Fatalf("expected %q; got %q", DefaultListName, name)
	}
}

func TestRemoveList(t *testing.T) {
	b := twoListBoard()
	got, err := Apply(b, RemoveList{ListID: "L2"}, nil)
	if err != nil {
		t.Fatalf("RemoveList: %v", err)
	}
	if len(got.Lists) != 2 || got.Lists[0].ID != "L1" || got.Lists[1].ID != "L3" {
		t.Fatalf("unexpected lists: %+v", got.Lists)
	}
	if len(b.Lists) != 3 || b.Lists[1].ID != "L2" {
		t.Fatalf("expected input untouched; got %+v", b.Lists)
	}

	_, err = Apply(b, RemoveList{ListID: "nope"}, nil)
	var nf NotFoundError
	if !errors.As(err, &nf) || nf.Kind != "list" || nf.ID != "nope" {
		t.Fatalf("expected list NotFoundError; got %v", err)
	}
}

func TestRenameList_BlankKeepsPreviousName(t *testing.T) {
	b := twoListBoard()
	got, err := Apply(b, RenameList{ListID: "L1", Name: " \t"}, nil)
	if err != nil {
		t.Fatalf("RenameList: %v", err)
	}
	if Changed(b, got) {
		t.Fatalf("expected blank rename to be a no-op")
	}
	if got.Lists[0].Name != "Todo" {
		t.Fatalf("expected name kept; got %q", got.Lists[0].Name)
	}

	got, err = Apply(b, RenameList{ListID: "L1", Name: "Backlog"}, nil)
	if err != nil {
		t.Fatalf("RenameList: %v", err)
	}
	if got.Lists[0].Name != "Backlog" || b.Lists[0].Name != "Todo" {
		t.Fatalf("unexpected names: got=%q input=%q", got.Lists[0].Name, b.Lists[0].Name)
	}
}

func TestRenameList_SharesUntouchedLists(t *testing.T) {
	b := twoListBoard()
	got, err := Apply(b, RenameList{ListID: "L2", Name: "In progress"}, nil)
	if err != nil {
		t.Fatalf("RenameList: %v", err)
	}
	if !got.Lists[0].Shares(b.Lists[0]) || !got.Lists[2].Shares(b.Lists[2]) {
		t.Fatalf("expected untouched lists to be shared")
	}
	if got.Lists[1].Shares(b.Lists[1]) {
		t.Fatalf("expected renamed list to differ")
	}
}

func TestMoveList(t *testing.T) {
	b := twoListBoard()
	got, err := Apply(b, MoveList{ListID: "L3", From: 2, To: 0}, nil)
	if err != nil {
		t.Fatalf("MoveList: %v", err)
	}
	order := []string{got.Lists[0].ID, got.Lists[1].ID, got.Lists[2].ID}
	if order[0] != "L3" || order[1] != "L1" || order[2] != "L2" {
		t.Fatalf("unexpected order: %v", order)
	}
	for i := range got.Lists {
		j, _ := b.FindList(got.Lists[i].ID)
		if !got.Lists[i].Shares(b.Lists[j]) {
			t.Fatalf("expected moved lists to keep their task arrays")
		}
	}
}

func TestMoveList_StaleFromIndexUsesIdentity(t *testing.T) {
	b := twoListBoard()
	// From was captured before L1 was removed elsewhere; L3 is now at index 1.
	b.Lists = b.Lists[1:]
	got, err := Apply(b, MoveList{ListID: "L3", From: 2, To: 0}, nil)
	if err != nil {
		t.Fatalf("MoveList: %v", err)
	}
	if got.Lists[0].ID != "L3" || got.Lists[1].ID != "L2" {
		t.Fatalf("unexpected order: %+v", got.Lists)
	}
}

func TestMoveList_IndexOnlyOutOfRange(t *testing.T) {
	_, err := Apply(twoListBoard(), MoveList{From: 7, To: 0}, nil)
	var ie IndexError
	if !errors.As(err, &ie) || ie.Index != 7 || ie.Len != 3 {
		t.Fatalf("expected IndexError; got %v", err)
	}
}

func TestRenameBoard(t *testing.T) {
	b := twoListBoard()
	got, _ := Apply(b, RenameBoard{Name: ""}, nil)
	if Changed(b, got) {
		t.Fatalf("expected blank board rename to be a no-op")
	}
	got, _ = Apply(b, RenameBoard{Name: "Sprint"}, nil)
	if got.Name != "Sprint" || !Changed(b, got) {
		t.Fatalf("expected board renamed; got %q", got.Name)
	}
}

func TestApplyAll_StopsAtFirstError(t *testing.T) {
	b := twoListBoard()
	got, err := ApplyAll(b, ids.Sequence("x"),
		RenameList{ListID: "L1", Name: "A"},
		RemoveList{ListID: "missing"},
		RenameList{ListID: "L2", Name: "B"},
	)
	if err == nil {
		t.Fatalf("expected error")
	}
	if got.Lists[0].Name != "A" || got.Lists[1].Name != "Doing" {
		t.Fatalf("expected the board as of the failure; got %+v", got.Lists)
	}
}
