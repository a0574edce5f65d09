package tui

import (
	"kanban-cli/internal/model"

	"github.com/charmbracelet/bubbles/list"
)

type boardItem struct {
	board model.BoardSummary
}

func (i boardItem) FilterValue() string { return i.board.Name }
func (i boardItem) Title() string       { return emptyAsDash(i.board.Name) }
func (i boardItem) Description() string { return i.board.ID }

func newList(title string, items []list.Item) list.Model {
	l := list.New(items, newCompactItemDelegate(), 0, 0)
	l.Title = title
	// The app renders its own header and footer.
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetShowPagination(false)
	l.SetFilteringEnabled(true)
	l.SetStatusBarItemName("board", "boards")
	// ESC is "back/cancel", never quit.
	l.KeyMap.Quit.SetKeys("q")

	cursorUpKeys := append([]string{}, l.KeyMap.CursorUp.Keys()...)
	l.KeyMap.CursorUp.SetKeys(append(cursorUpKeys, "ctrl+p")...)
	cursorDownKeys := append([]string{}, l.KeyMap.CursorDown.Keys()...)
	l.KeyMap.CursorDown.SetKeys(append(cursorDownKeys, "ctrl+n")...)
	return l
}

func boardItems(boards []model.BoardSummary) []list.Item {
	items := make([]list.Item, 0, len(boards))
	for _, b := range boards {
		items = append(items, boardItem{board: b})
	}
	return items
}

func selectBoardByID(l *list.Model, id string) {
	for i, it := range l.Items() {
		if bi, ok := it.(boardItem); ok && bi.board.ID == id {
			l.Select(i)
			return
		}
	}
}
