package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"kanban-cli/internal/model"
	"kanban-cli/internal/reconcile"

	tea "github.com/charmbracelet/bubbletea"
)

// memBackend is an in-memory authority: every PUT bumps the version.
type memBackend struct {
	mu      sync.Mutex
	boards  map[string]model.Board
	order   []string
	nextID  int
	failGet bool
}

func newMemBackend(boards ...model.Board) *memBackend {
	mb := &memBackend{boards: map[string]model.Board{}}
	for _, b := range boards {
		mb.boards[b.ID] = b.Clone()
		mb.order = append(mb.order, b.ID)
	}
	return mb
}

func (mb *memBackend) ListBoards(context.Context) ([]model.BoardSummary, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	out := make([]model.BoardSummary, 0, len(mb.order))
	for _, id := range mb.order {
		out = append(out, mb.boards[id].Summary())
	}
	return out, nil
}

func (mb *memBackend) CreateBoard(_ context.Context, name string) (model.Board, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.nextID++
	b := model.Board{ID: fmt.Sprintf("new-%d", mb.nextID), Name: name, Lists: []model.TaskList{}}
	mb.boards[b.ID] = b
	mb.order = append(mb.order, b.ID)
	return b.Clone(), nil
}

func (mb *memBackend) FetchBoard(_ context.Context, id string) (model.Board, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	b, ok := mb.boards[id]
	if !ok || mb.failGet {
		return model.Board{}, errors.New("404 board not found")
	}
	return b.Clone(), nil
}

func (mb *memBackend) PutBoard(_ context.Context, b model.Board) (model.Board, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	cur, ok := mb.boards[b.ID]
	if !ok {
		return model.Board{}, errors.New("404 board not found")
	}
	b = b.Clone()
	b.Version = cur.Version + 1
	mb.boards[b.ID] = b
	return b.Clone(), nil
}

func (mb *memBackend) Watch(ctx context.Context, _ string) (<-chan model.Board, error) {
	ch := make(chan model.Board)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (mb *memBackend) setFailGet(v bool) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.failGet = v
}

func testBoard() model.Board {
	return model.Board{ID: "b1", Version: 0, Name: "Shopping", Lists: []model.TaskList{
		{ID: "l1", Name: "Grocery", Tasks: []model.Task{{ID: "t1", Name: "Apples"}, {ID: "t2", Name: "Milk"}}},
		{ID: "l2", Name: "Done", Tasks: []model.Task{}},
	}}
}

func openTestModel(t *testing.T, mb *memBackend, boardID string) appModel {
	t.Helper()
	m := newAppModel(context.Background(), Options{Backend: mb, BoardID: boardID, SubmitTimeout: time.Second})
	t.Cleanup(m.closeBoard)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(appModel)
}

// settle feeds engine states into the model until cond holds.
func settle(t *testing.T, m appModel, what string, cond func(appModel) bool) appModel {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for !cond(m) {
		select {
		case st, ok := <-m.states:
			if !ok {
				t.Fatalf("engine closed while waiting for %s", what)
			}
			next, _ := m.Update(stateMsg{ch: m.states, state: st})
			m = next.(appModel)
		case <-deadline:
			t.Fatalf("timed out waiting for %s; state=%+v", what, m.state)
		}
	}
	return m
}

func press(t *testing.T, m appModel, keys ...string) appModel {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "space":
			msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
		case "ctrl+r":
			msg = tea.KeyMsg{Type: tea.KeyCtrlR}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, _ := m.Update(msg)
		m = next.(appModel)
	}
	return m
}

func loaded(m appModel) bool { return m.state.Loaded() }

func TestBoardViewLoadsAndRenders(t *testing.T) {
	m := openTestModel(t, newMemBackend(testBoard()), "b1")
	m = settle(t, m, "load", loaded)

	out := m.View()
	for _, want := range []string{"Shopping", "Grocery (0/2)", "Done (0/0)", "Apples", "Milk", "(empty)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in view:\n%s", want, out)
		}
	}
	if m.sel.TaskID != "t1" {
		t.Fatalf("expected first task selected; got %+v", m.sel)
	}
}

func TestFailedLoadIsNotAnEmptyBoard(t *testing.T) {
	mb := newMemBackend(testBoard())
	mb.setFailGet(true)
	m := openTestModel(t, mb, "b1")
	m = settle(t, m, "load failure", func(m appModel) bool { return m.state.Status == reconcile.LoadFailed })

	out := m.View()
	if !strings.Contains(out, "Failed to load board b1") {
		t.Fatalf("expected failed-load view; got:\n%s", out)
	}
	if strings.Contains(out, "No lists yet") {
		t.Fatalf("failed load rendered as an empty board:\n%s", out)
	}

	mb.setFailGet(false)
	m = press(t, m, "ctrl+r")
	m = settle(t, m, "reload", loaded)
	if !strings.Contains(m.View(), "Apples") {
		t.Fatalf("expected board after reload:\n%s", m.View())
	}
}

func TestAddTaskThroughPrompt(t *testing.T) {
	m := openTestModel(t, newMemBackend(testBoard()), "b1")
	m = settle(t, m, "load", loaded)

	m = press(t, m, "a")
	if m.prompt == nil {
		t.Fatalf("expected prompt after a")
	}
	m = press(t, m, "B", "r", "e", "a", "d", "enter")
	if m.prompt != nil {
		t.Fatalf("prompt should close on enter")
	}
	// Confirmed path: nothing shows until the authority answers.
	if n := len(m.state.Board.Lists[0].Tasks); n != 2 {
		t.Fatalf("task shown before confirmation: %d tasks", n)
	}
	m = settle(t, m, "confirmed add", func(m appModel) bool {
		return len(m.state.Board.Lists[0].Tasks) == 3
	})
	if got := m.state.Board.Lists[0].Tasks[2].Name; got != "Bread" {
		t.Fatalf("expected Bread; got %q", got)
	}
	if m.state.Board.Version != 1 {
		t.Fatalf("expected version 1; got %d", m.state.Board.Version)
	}
}

// synced reports the authority has answered everything up to version v.
func synced(v int64) func(appModel) bool {
	return func(m appModel) bool {
		return m.state.Pending == 0 && m.state.Board.Version == v
	}
}

func TestKeyboardMovesFollowSelection(t *testing.T) {
	m := openTestModel(t, newMemBackend(testBoard()), "b1")
	m = settle(t, m, "load", loaded)

	// Move Apples below Milk.
	m = press(t, m, "J")
	m = settle(t, m, "reorder", synced(1))
	if got := m.state.Board.Lists[0].Tasks[1].ID; got != "t1" {
		t.Fatalf("expected t1 second; got %s", got)
	}
	if m.sel.TaskID != "t1" || m.sel.Task != 1 {
		t.Fatalf("selection should follow the moved task; got %+v", m.sel)
	}

	// Move it to the Done list.
	m = press(t, m, "L")
	m = settle(t, m, "cross-list move", synced(2))
	if len(m.state.Board.Lists[1].Tasks) != 1 {
		t.Fatalf("expected task in Done; got %+v", m.state.Board.Lists)
	}
	if m.sel.Col != 1 || m.sel.TaskID != "t1" {
		t.Fatalf("selection should follow into Done; got %+v", m.sel)
	}
	if n := m.state.Board.TaskCount(); n != 2 {
		t.Fatalf("task duplicated or lost: %d tasks", n)
	}

	// Toggle done, then move the Done list first.
	m = press(t, m, "space")
	m = settle(t, m, "done", synced(3))
	if !m.state.Board.Lists[1].Tasks[0].Done {
		t.Fatalf("expected t1 done")
	}
	m = press(t, m, "<")
	m = settle(t, m, "list move", synced(4))
	if m.state.Board.Lists[0].ID != "l2" {
		t.Fatalf("expected Done list first; got %s", m.state.Board.Lists[0].ID)
	}
	if m.sel.Col != 0 {
		t.Fatalf("selection should follow the moved list; got %+v", m.sel)
	}
}

func TestMovesAtEdgesAreNoOps(t *testing.T) {
	m := openTestModel(t, newMemBackend(testBoard()), "b1")
	m = settle(t, m, "load", loaded)

	m = press(t, m, "K", "H", "<")
	if len(m.state.Mutations) != 0 {
		t.Fatalf("edge moves dispatched mutations: %+v", m.state.Mutations)
	}
	if _, ok := taskDrag(m.state.Board, columnsSelection{Col: 1, Task: -1}, -1, 0); ok {
		t.Fatalf("drag from an empty list should not produce a result")
	}
}

func TestLookupErrorShowsInStatusLine(t *testing.T) {
	m := openTestModel(t, newMemBackend(testBoard()), "b1")
	m = settle(t, m, "load", loaded)

	// Open a rename prompt, then remove the task before submitting.
	m = press(t, m, "r")
	if m.prompt == nil || m.prompt.input.Value() != "Apples" {
		t.Fatalf("expected prefilled rename prompt")
	}
	p := m.prompt
	m.prompt = nil
	m = press(t, m, "d")
	m = settle(t, m, "removal", func(m appModel) bool { return len(m.state.Board.Lists[0].Tasks) == 1 })

	m.prompt = p
	m = press(t, m, "enter")
	m = settle(t, m, "lookup error", func(m appModel) bool { return m.state.LastError != nil })
	if !strings.Contains(m.View(), "task not found: t1") {
		t.Fatalf("expected lookup error in status line:\n%s", m.View())
	}
	m = press(t, m, "x")
	m = settle(t, m, "cleared", func(m appModel) bool { return m.state.LastError == nil })
}

func TestBoardPickerOpensAndCreates(t *testing.T) {
	mb := newMemBackend(testBoard())
	m := openTestModel(t, mb, "")

	next, _ := m.Update(m.loadBoards()())
	m = next.(appModel)
	if !strings.Contains(m.View(), "Shopping") {
		t.Fatalf("expected board in picker:\n%s", m.View())
	}

	m = press(t, m, "n", "T", "r", "i", "p")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(appModel)
	if cmd == nil {
		t.Fatalf("expected create command")
	}
	next, cmd = m.Update(cmd())
	m = next.(appModel)
	next, _ = m.Update(cmd())
	m = next.(appModel)
	if it, ok := m.boardsList.SelectedItem().(boardItem); !ok || it.board.Name != "Trip" {
		t.Fatalf("expected created board selected; got %+v", m.boardsList.SelectedItem())
	}

	m = press(t, m, "enter")
	if m.view != viewBoard || m.engine == nil {
		t.Fatalf("expected board view after enter")
	}
	m = settle(t, m, "load", loaded)
	if !strings.Contains(m.View(), "No lists yet") {
		t.Fatalf("expected empty board hint:\n%s", m.View())
	}

	m = press(t, m, "esc")
	if m.view != viewBoards || m.engine != nil {
		t.Fatalf("esc should close the board")
	}
}
