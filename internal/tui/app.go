package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kanban-cli/internal/model"
	"kanban-cli/internal/mutate"
	"kanban-cli/internal/publish"
	"kanban-cli/internal/reconcile"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type view int

const (
	viewBoards view = iota
	viewBoard
)

type (
	boardsLoadedMsg struct {
		boards []model.BoardSummary
		err    error
	}
	boardCreatedMsg struct {
		board model.Board
		err   error
	}
	// stateMsg carries an engine state; ch identifies the subscription it came from so
	// states of a closed board are ignored.
	stateMsg struct {
		ch    <-chan reconcile.State
		state reconcile.State
	}
	engineClosedMsg struct {
		ch <-chan reconcile.State
	}
	intentMsg      struct{ intent mutate.Intent }
	createBoardMsg struct{ name string }
)

type appModel struct {
	ctx context.Context
	opt Options

	width  int
	height int

	view view

	boardsList list.Model
	boardsErr  error
	selectID   string

	engine      *reconcile.Engine
	states      <-chan reconcile.State
	unsubscribe func()
	state       reconcile.State
	sel         columnsSelection

	prompt  *prompt
	preview bool
	flash   string
}

func newAppModel(ctx context.Context, opt Options) appModel {
	m := appModel{
		ctx:        ctx,
		opt:        opt,
		view:       viewBoards,
		boardsList: newList("Boards", nil),
	}
	if id := strings.TrimSpace(opt.BoardID); id != "" {
		m.openBoard(id)
	}
	return m
}

func (m appModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.loadBoards()}
	if m.states != nil {
		cmds = append(cmds, waitForState(m.states))
	}
	return tea.Batch(cmds...)
}

func (m appModel) loadBoards() tea.Cmd {
	ctx, backend := m.ctx, m.opt.Backend
	return func() tea.Msg {
		boards, err := backend.ListBoards(ctx)
		return boardsLoadedMsg{boards: boards, err: err}
	}
}

func (m appModel) createBoard(name string) tea.Cmd {
	ctx, backend := m.ctx, m.opt.Backend
	return func() tea.Msg {
		b, err := backend.CreateBoard(ctx, name)
		return boardCreatedMsg{board: b, err: err}
	}
}

func waitForState(ch <-chan reconcile.State) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-ch
		if !ok {
			return engineClosedMsg{ch: ch}
		}
		return stateMsg{ch: ch, state: st}
	}
}

// openBoard starts an engine for id; its states arrive through waitForState.
func (m *appModel) openBoard(id string) tea.Cmd {
	m.closeBoard()
	var opts []reconcile.Option
	if m.opt.SubmitTimeout > 0 {
		opts = append(opts, reconcile.WithSubmitTimeout(m.opt.SubmitTimeout))
	}
	e := reconcile.New(id, m.opt.Backend, opts...)
	if err := e.Start(m.ctx); err != nil {
		m.flash = err.Error()
		return nil
	}
	m.engine = e
	m.states, m.unsubscribe = e.Subscribe()
	m.state = reconcile.State{Board: model.Placeholder(id), Status: reconcile.Loading}
	m.sel = columnsSelection{}
	m.preview = false
	m.flash = ""
	m.view = viewBoard
	return waitForState(m.states)
}

func (m *appModel) closeBoard() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	if m.engine != nil {
		m.engine.Close()
	}
	m.engine = nil
	m.states = nil
	m.unsubscribe = nil
}

func (m *appModel) dispatch(in mutate.Intent) {
	if m.engine == nil || in == nil {
		return
	}
	// Lookup failures surface through State.LastError.
	var lerr *reconcile.LookupError
	if _, err := m.engine.Dispatch(in); err != nil && !errors.As(err, &lerr) {
		m.flash = err.Error()
	}
}

func (m *appModel) dragEnd(r mutate.DragResult) {
	if m.engine == nil {
		return
	}
	var lerr *reconcile.LookupError
	if _, err := m.engine.DragEnd(r); err != nil && !errors.As(err, &lerr) {
		m.flash = err.Error()
	}
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeLists()
		return m, nil

	case boardsLoadedMsg:
		m.boardsErr = msg.err
		if msg.err == nil {
			m.boardsList.SetItems(boardItems(msg.boards))
			if m.selectID != "" {
				selectBoardByID(&m.boardsList, m.selectID)
				m.selectID = ""
			}
		}
		return m, nil

	case boardCreatedMsg:
		if msg.err != nil {
			m.flash = msg.err.Error()
			return m, nil
		}
		m.selectID = msg.board.ID
		m.flash = fmt.Sprintf("Created board %q", msg.board.Name)
		return m, m.loadBoards()

	case stateMsg:
		if msg.ch != m.states {
			return m, nil
		}
		m.state = msg.state
		m.sel = clampSelection(m.state.Board, m.sel)
		return m, waitForState(m.states)

	case engineClosedMsg:
		if msg.ch == m.states {
			m.states = nil
		}
		return m, nil

	case intentMsg:
		m.dispatch(msg.intent)
		return m, nil

	case createBoardMsg:
		return m, m.createBoard(msg.name)

	case tea.KeyMsg:
		if m.prompt != nil {
			return m.updatePrompt(msg)
		}
		if m.view == viewBoard {
			return m.updateBoard(msg)
		}
		return m.updateBoards(msg)
	}
	return m, nil
}

func (m appModel) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+c":
		m.prompt = nil
		return m, nil
	case "enter":
		p := m.prompt
		m.prompt = nil
		return m.Update(p.submit(p.input.Value()))
	}
	var cmd tea.Cmd
	m.prompt.input, cmd = m.prompt.input.Update(msg)
	return m, cmd
}

func (m appModel) updateBoards(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.boardsList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.boardsList, cmd = m.boardsList.Update(msg)
		return m, cmd
	}
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "ctrl+r":
		return m, m.loadBoards()
	case "n":
		m.prompt = newPrompt("New board", "", func(v string) tea.Msg {
			return createBoardMsg{name: v}
		})
		return m, nil
	case "enter":
		if it, ok := m.boardsList.SelectedItem().(boardItem); ok {
			return m, m.openBoard(it.board.ID)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.boardsList, cmd = m.boardsList.Update(msg)
	return m, cmd
}

func (m appModel) updateBoard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.flash = ""
	b := m.state.Board
	col, hasList := selectedList(b, m.sel)
	task, hasTask := selectedTask(b, m.sel)

	switch msg.String() {
	case "ctrl+c", "q":
		m.closeBoard()
		return m, tea.Quit
	case "esc":
		m.closeBoard()
		m.view = viewBoards
		return m, m.loadBoards()
	case "ctrl+r":
		if m.engine != nil {
			if err := m.engine.Reload(); err != nil {
				m.flash = err.Error()
			}
		}
		return m, nil
	case "x":
		if m.engine != nil {
			m.engine.ClearError()
		}
		return m, nil
	case "p":
		m.preview = !m.preview
		return m, nil
	}

	if !m.state.Loaded() {
		return m, nil
	}

	switch msg.String() {
	case "left", "h":
		m.sel = clampSelection(b, columnsSelection{Col: m.sel.Col - 1, Task: m.sel.Task})
	case "right", "l":
		m.sel = clampSelection(b, columnsSelection{Col: m.sel.Col + 1, Task: m.sel.Task})
	case "up", "k":
		m.sel = clampSelection(b, columnsSelection{Col: m.sel.Col, Task: m.sel.Task - 1})
	case "down", "j":
		m.sel = clampSelection(b, columnsSelection{Col: m.sel.Col, Task: m.sel.Task + 1})

	case "a":
		if hasList {
			listID := col.ID
			m.prompt = newPrompt("New task in "+emptyAsDash(col.Name), "", func(v string) tea.Msg {
				return intentMsg{mutate.AddTask{ListID: listID, Name: v}}
			})
		}
	case "A":
		m.prompt = newPrompt("New list", "", func(v string) tea.Msg {
			return intentMsg{mutate.AddList{Name: v}}
		})
	case "r":
		if hasTask {
			listID, taskID := col.ID, task.ID
			m.prompt = newPrompt("Rename task", task.Name, func(v string) tea.Msg {
				return intentMsg{mutate.RenameTask{ListID: listID, TaskID: taskID, Name: v}}
			})
		}
	case "R":
		if hasList {
			listID := col.ID
			m.prompt = newPrompt("Rename list", col.Name, func(v string) tea.Msg {
				return intentMsg{mutate.RenameList{ListID: listID, Name: v}}
			})
		}
	case "e":
		m.prompt = newPrompt("Rename board", b.Name, func(v string) tea.Msg {
			return intentMsg{mutate.RenameBoard{Name: v}}
		})
	case "d":
		if hasTask {
			m.dispatch(mutate.RemoveTask{ListID: col.ID, TaskID: task.ID})
		}
	case "D":
		if hasList {
			m.dispatch(mutate.RemoveList{ListID: col.ID})
		}
	case " ", "space":
		if hasTask {
			m.dispatch(mutate.SetTaskDone{ListID: col.ID, TaskID: task.ID, Done: !task.Done})
		}

	case "H":
		if r, ok := taskDrag(b, m.sel, -1, 0); ok {
			m.dragEnd(r)
		}
	case "L":
		if r, ok := taskDrag(b, m.sel, 1, 0); ok {
			m.dragEnd(r)
		}
	case "K":
		if r, ok := taskDrag(b, m.sel, 0, -1); ok {
			m.dragEnd(r)
		}
	case "J":
		if r, ok := taskDrag(b, m.sel, 0, 1); ok {
			m.dragEnd(r)
		}
	case "<":
		if r, ok := listDrag(b, m.sel, -1); ok {
			m.dragEnd(r)
			m.sel.Col = r.Destination.Index
		}
	case ">":
		if r, ok := listDrag(b, m.sel, 1); ok {
			m.dragEnd(r)
			m.sel.Col = r.Destination.Index
		}
	}
	return m, nil
}

func (m *appModel) resizeLists() {
	h := m.height - 6
	if h < 4 {
		h = 4
	}
	m.boardsList.SetSize(m.width, h)
}

func (m appModel) View() string {
	if m.width == 0 {
		return ""
	}
	bodyH := m.height - 5
	if bodyH < 3 {
		bodyH = 3
	}

	var header, body, footer string
	switch m.view {
	case viewBoard:
		header = m.boardHeader()
		body = m.boardBody(bodyH)
		footer = "←↓↑→ move  a/A add  r/R rename  e board  d/D delete  space done  H/L J/K </> move  p preview  ctrl+r reload  esc back  q quit"
	default:
		header = lipgloss.NewStyle().Bold(true).Render("Kanban  Boards")
		if m.boardsErr != nil {
			body = normalizePane(styleError().Render("Failed to list boards: "+m.boardsErr.Error())+"\n"+
				styleMuted().Render("ctrl+r: retry"), m.width, bodyH)
		} else {
			body = normalizePane(m.boardsList.View(), m.width, bodyH)
		}
		footer = "enter: open  n: new board  /: filter  ctrl+r: reload  q: quit"
	}

	lines := []string{
		normalizePane(header, m.width, 1),
		body,
		normalizePane(m.statusLine(), m.width, 1),
		normalizePane(styleMuted().Render(footer), m.width, 1),
	}
	return strings.Join(lines, "\n")
}

func (m appModel) boardHeader() string {
	b := m.state.Board
	title := lipgloss.NewStyle().Bold(true).Render("Kanban  " + emptyAsDash(b.Name))
	switch m.state.Status {
	case reconcile.Loading:
		return title + "  " + styleMuted().Render("loading…")
	case reconcile.LoadFailed:
		return title + "  " + styleError().Render("not loaded")
	case reconcile.Closed:
		return title + "  " + styleMuted().Render("closed")
	}
	meta := styleMuted().Render(fmt.Sprintf("v%d  %d lists  %d tasks", b.Version, len(b.Lists), b.TaskCount()))
	return title + "  " + meta
}

func (m appModel) boardBody(height int) string {
	switch m.state.Status {
	case reconcile.Loading:
		return normalizePane(styleMuted().Render("Loading board "+m.state.Board.ID+"…"), m.width, height)
	case reconcile.Closed:
		return normalizePane(styleMuted().Render("Board "+m.state.Board.ID+" is closed"), m.width, height)
	case reconcile.LoadFailed:
		msg := "Failed to load board " + m.state.Board.ID
		detail := ""
		if m.state.LastError != nil {
			detail = m.state.LastError.Error()
		}
		return normalizePane(strings.Join([]string{
			styleError().Render(msg),
			detail,
			"",
			styleMuted().Render("ctrl+r: retry  esc: back to boards"),
		}, "\n"), m.width, height)
	}
	if m.preview {
		md := publish.RenderBoardMarkdown(m.state.Board, publish.RenderOptions{IncludeMeta: true})
		return normalizePane(publish.RenderTerminal(md, m.opt.MarkdownStyle, m.width), m.width, height)
	}
	return renderColumns(m.state.Board, m.sel, m.width, height)
}

func (m appModel) statusLine() string {
	switch {
	case m.prompt != nil:
		return m.prompt.view(m.width)
	case m.flash != "":
		return m.flash
	case m.view == viewBoard && m.state.LastError != nil && m.state.Status != reconcile.LoadFailed:
		return styleError().Render("! "+m.state.LastError.Error()) + "  " + styleMuted().Render("x: dismiss")
	case m.view == viewBoard && m.state.Pending > 0:
		return lipgloss.NewStyle().Foreground(colorPending).Render(fmt.Sprintf("syncing %d change(s)…", m.state.Pending))
	}
	return ""
}
