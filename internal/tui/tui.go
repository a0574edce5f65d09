package tui

import (
	"context"
	"errors"
	"time"

	"kanban-cli/internal/model"
	"kanban-cli/internal/reconcile"

	tea "github.com/charmbracelet/bubbletea"
)

// Backend is the authority as seen by the TUI: the engine's transport plus the board
// index.
type Backend interface {
	reconcile.Transport
	ListBoards(ctx context.Context) ([]model.BoardSummary, error)
	CreateBoard(ctx context.Context, name string) (model.Board, error)
}

type Options struct {
	Backend Backend
	// BoardID opens a board directly instead of the board picker.
	BoardID       string
	SubmitTimeout time.Duration
	// MarkdownStyle is the glamour style of the board preview (p).
	MarkdownStyle string
}

func Run(ctx context.Context, opt Options) error {
	if opt.Backend == nil {
		return errors.New("tui: missing backend")
	}
	applyThemePreference()
	applyColorProfilePreference()

	m := newAppModel(ctx, opt)
	final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if fm, ok := final.(appModel); ok {
		fm.closeBoard()
	} else {
		m.closeBoard()
	}
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
