package mutate

import "fmt"

// NotFoundError reports an intent that references an id absent from the board.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// IndexError reports an index-based intent whose index does not fit the current board.
type IndexError struct {
	Kind  string
	Index int
	Len   int
}

func (e IndexError) Error() string {
	return fmt.Sprintf("%s index %d out of range [0,%d)", e.Kind, e.Index, e.Len)
}
