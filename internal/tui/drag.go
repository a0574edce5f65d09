package tui

import (
	"kanban-cli/internal/model"
	"kanban-cli/internal/mutate"
)

// Keyboard moves are expressed as drag outcomes so they go through the same
// translation as a pointer drag.

// taskDrag moves the selected task dCol lists sideways or dTask positions within its
// list. It reports false when there is nothing to move or the target is off the board.
func taskDrag(b model.Board, sel columnsSelection, dCol, dTask int) (mutate.DragResult, bool) {
	src, ok := selectedList(b, sel)
	if !ok {
		return mutate.DragResult{}, false
	}
	task, ok := selectedTask(b, sel)
	if !ok {
		return mutate.DragResult{}, false
	}

	dstCol := sel.Col + dCol
	if dstCol < 0 || dstCol >= len(b.Lists) {
		return mutate.DragResult{}, false
	}
	dst := b.Lists[dstCol]

	to := sel.Task + dTask
	if dCol != 0 {
		to = min(sel.Task, len(dst.Tasks))
	} else if to < 0 || to >= len(src.Tasks) {
		return mutate.DragResult{}, false
	}

	return mutate.DragResult{
		Type:        mutate.DragTask,
		DraggableID: task.ID,
		Source:      mutate.Location{DroppableID: src.ID, Index: sel.Task},
		Destination: &mutate.Location{DroppableID: dst.ID, Index: to},
	}, true
}

func listDrag(b model.Board, sel columnsSelection, d int) (mutate.DragResult, bool) {
	l, ok := selectedList(b, sel)
	if !ok {
		return mutate.DragResult{}, false
	}
	to := sel.Col + d
	if to < 0 || to >= len(b.Lists) {
		return mutate.DragResult{}, false
	}
	return mutate.DragResult{
		Type:        mutate.DragList,
		DraggableID: l.ID,
		Source:      mutate.Location{DroppableID: mutate.BoardDroppableID, Index: sel.Col},
		Destination: &mutate.Location{DroppableID: mutate.BoardDroppableID, Index: to},
	}, true
}
