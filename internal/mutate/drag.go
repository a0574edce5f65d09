package mutate

import "kanban-cli/internal/model"

type DragType string

const (
	DragTask DragType = "TASK"
	DragList DragType = "TASK_LIST"
)

// BoardDroppableID is the droppable holding the board's lists (horizontal axis).
// Task droppables are identified by their list id.
const BoardDroppableID = "board"

type Location struct {
	DroppableID string
	Index       int
}

// DragResult is the raw outcome of a drag gesture. Destination is nil when the item
// was dropped outside any droppable.
type DragResult struct {
	Type        DragType
	DraggableID string
	Source      Location
	Destination *Location
}

// FromDrag translates a drag outcome into exactly one move intent, or nil when the
// drop is a no-op (no destination, or destination equal to source).
func FromDrag(b model.Board, r DragResult) (Intent, error) {
	if r.Destination == nil {
		return nil, nil
	}
	dst := *r.Destination
	if dst.DroppableID == r.Source.DroppableID && dst.Index == r.Source.Index {
		return nil, nil
	}

	if r.Type == DragList {
		listID := r.DraggableID
		if listID == "" {
			if r.Source.Index < 0 || r.Source.Index >= len(b.Lists) {
				return nil, IndexError{Kind: "list", Index: r.Source.Index, Len: len(b.Lists)}
			}
			listID = b.Lists[r.Source.Index].ID
		}
		return MoveList{ListID: listID, From: r.Source.Index, To: dst.Index}, nil
	}

	si, ok := b.FindList(r.Source.DroppableID)
	if !ok {
		return nil, NotFoundError{Kind: "list", ID: r.Source.DroppableID}
	}
	if _, ok := b.FindList(dst.DroppableID); !ok {
		return nil, NotFoundError{Kind: "list", ID: dst.DroppableID}
	}
	taskID := r.DraggableID
	if taskID == "" {
		src := b.Lists[si]
		if r.Source.Index < 0 || r.Source.Index >= len(src.Tasks) {
			return nil, IndexError{Kind: "task", Index: r.Source.Index, Len: len(src.Tasks)}
		}
		taskID = src.Tasks[r.Source.Index].ID
	}

	if r.Source.DroppableID == dst.DroppableID {
		return MoveTaskWithinList{
			ListID: r.Source.DroppableID,
			TaskID: taskID,
			From:   r.Source.Index,
			To:     dst.Index,
		}, nil
	}
	return MoveTaskAcrossLists{
		SrcListID: r.Source.DroppableID,
		DstListID: dst.DroppableID,
		TaskID:    taskID,
		From:      r.Source.Index,
		To:        dst.Index,
	}, nil
}
