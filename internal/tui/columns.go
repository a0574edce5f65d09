package tui

import (
	"fmt"
	"strings"

	"kanban-cli/internal/model"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
)

type columnsSelection struct {
	Col  int
	Task int
	// TaskID is the stable selected task id, preferred over Task for tracking focus
	// across moves and authority updates.
	TaskID string
}

// clampSelection fits sel to the board, following TaskID when the task still exists.
func clampSelection(b model.Board, sel columnsSelection) columnsSelection {
	if len(b.Lists) == 0 {
		return columnsSelection{Col: 0, Task: -1}
	}

	if sel.TaskID != "" {
		if li, ti, ok := b.LocateTask(sel.TaskID); ok {
			sel.Col = li
			sel.Task = ti
		} else {
			sel.TaskID = ""
		}
	}

	if sel.Col < 0 {
		sel.Col = 0
	}
	if sel.Col >= len(b.Lists) {
		sel.Col = len(b.Lists) - 1
	}

	n := len(b.Lists[sel.Col].Tasks)
	if n == 0 {
		sel.Task = -1
		sel.TaskID = ""
		return sel
	}
	if sel.Task < 0 {
		sel.Task = 0
	}
	if sel.Task >= n {
		sel.Task = n - 1
	}
	sel.TaskID = b.Lists[sel.Col].Tasks[sel.Task].ID
	return sel
}

func selectedList(b model.Board, sel columnsSelection) (model.TaskList, bool) {
	if sel.Col < 0 || sel.Col >= len(b.Lists) {
		return model.TaskList{}, false
	}
	return b.Lists[sel.Col], true
}

func selectedTask(b model.Board, sel columnsSelection) (model.Task, bool) {
	l, ok := selectedList(b, sel)
	if !ok || sel.Task < 0 || sel.Task >= len(l.Tasks) {
		return model.Task{}, false
	}
	return l.Tasks[sel.Task], true
}

func renderColumns(b model.Board, sel columnsSelection, width, height int) string {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	n := len(b.Lists)
	if n == 0 {
		return normalizePane(styleMuted().Render("No lists yet. Press A to add one."), width, height)
	}

	gap := 2
	avail := width - gap*(n-1)
	if avail < n {
		avail = n
	}
	colW := avail / n
	if colW < 14 {
		colW = 14
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(colorSurfaceFg).Background(colorControlBg)
	headerSelectedStyle := lipgloss.NewStyle().Bold(true).Foreground(colorSelectedFg).Background(colorSelectedBg)
	muted := styleMuted()

	cardStyle := lipgloss.NewStyle().Width(colW).Padding(0, 1)
	cardSelectedStyle := cardStyle.Foreground(colorSelectedFg).Background(colorSelectedBg).Bold(true)
	innerW := colW - 2
	if innerW < 1 {
		innerW = 1
	}

	renderCard := func(t model.Task, selected bool) string {
		box := "[ ] "
		if t.Done {
			box = "[x] "
		}
		name := strings.TrimSpace(t.Name)
		if name == "" {
			name = "(untitled)"
		}
		lines := wrapWithPrefix(name, innerW, box, strings.Repeat(" ", xansi.StringWidth(box)))
		st := lipgloss.NewStyle()
		if t.Done && !selected {
			st = faintIfDark(st).Foreground(colorMuted).Strikethrough(true)
		}
		for i := range lines {
			lines[i] = st.Render(lines[i])
		}
		inner := normalizePane(strings.Join(lines, "\n"), innerW, 0)
		if selected {
			return cardSelectedStyle.Render(inner)
		}
		return cardStyle.Render(inner)
	}

	renderCol := func(colIdx int, l model.TaskList) string {
		done := 0
		for _, t := range l.Tasks {
			if t.Done {
				done++
			}
		}
		head := truncateText(fmt.Sprintf("%s (%d/%d)", emptyAsDash(l.Name), done, len(l.Tasks)), colW)
		hs := headerStyle
		if colIdx == sel.Col {
			hs = headerSelectedStyle
		}
		lines := []string{hs.Width(colW).Render(head)}

		if len(l.Tasks) == 0 {
			lines = append(lines, muted.Render("(empty)"))
			return normalizePane(strings.Join(lines, "\n"), colW, height)
		}
		lines = append(lines, "")
		for i, t := range l.Tasks {
			card := renderCard(t, colIdx == sel.Col && i == sel.Task)
			lines = append(lines, strings.Split(card, "\n")...)
		}
		return normalizePane(strings.Join(lines, "\n"), colW, height)
	}

	out := renderCol(0, b.Lists[0])
	sep := strings.Repeat(" ", gap)
	for i := 1; i < n; i++ {
		out = lipgloss.JoinHorizontal(lipgloss.Top, out, sep, renderCol(i, b.Lists[i]))
	}
	return normalizePane(out, width, height)
}

// wrapWithPrefix word-wraps s to maxW columns; the first line starts with firstPrefix,
// the rest with contPrefix. Words wider than a line are hard-cut.
func wrapWithPrefix(s string, maxW int, firstPrefix, contPrefix string) []string {
	if maxW <= 0 {
		return []string{""}
	}
	prefix := firstPrefix
	avail := maxW - xansi.StringWidth(firstPrefix)
	contAvail := maxW - xansi.StringWidth(contPrefix)
	if avail < 1 {
		avail = 1
	}
	if contAvail < 1 {
		contAvail = 1
	}

	var lines []string
	cur := ""
	flush := func() {
		lines = append(lines, prefix+cur)
		prefix = contPrefix
		avail = contAvail
		cur = ""
	}
	for _, w := range strings.Fields(s) {
		for xansi.StringWidth(w) > avail {
			if cur != "" {
				flush()
				continue
			}
			lines = append(lines, prefix+xansi.Cut(w, 0, avail))
			w = xansi.Cut(w, avail, xansi.StringWidth(w))
			prefix = contPrefix
			avail = contAvail
		}
		switch {
		case cur == "":
			cur = w
		case xansi.StringWidth(cur)+1+xansi.StringWidth(w) <= avail:
			cur += " " + w
		default:
			flush()
			cur = w
		}
	}
	if cur != "" || len(lines) == 0 {
		lines = append(lines, prefix+cur)
	}
	return lines
}
