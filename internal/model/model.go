package model

import "time"

// UnversionedBoard is the version of a board placeholder that has not adopted any
// authoritative state yet. Any authoritative board (version >= 0) is newer.
const UnversionedBoard int64 = -1

type Board struct {
	ID        string     `json:"id,omitempty" yaml:"id,omitempty"`
	Version   int64      `json:"version" yaml:"version"`
	Name      string     `json:"name" yaml:"name"`
	Lists     []TaskList `json:"lists" yaml:"lists"`
	CreatedAt *time.Time `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
}

type TaskList struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Tasks []Task `json:"tasks" yaml:"tasks"`
}

type Task struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Done bool   `json:"done" yaml:"done"`
}

// BoardSummary is the element type of the board index (GET /boards).
type BoardSummary struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Placeholder returns the empty board an engine displays before the first adoption.
func Placeholder(id string) Board {
	return Board{ID: id, Version: UnversionedBoard, Name: "-"}
}

func (b Board) Summary() BoardSummary {
	return BoardSummary{ID: b.ID, Name: b.Name}
}

// FindList returns the current index of the list with the given id.
func (b Board) FindList(id string) (int, bool) {
	for i := range b.Lists {
		if b.Lists[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

// LocateTask returns the list and task indexes of the task with the given id.
func (b Board) LocateTask(taskID string) (listIdx, taskIdx int, ok bool) {
	for li := range b.Lists {
		if ti, found := b.Lists[li].FindTask(taskID); found {
			return li, ti, true
		}
	}
	return -1, -1, false
}

func (b Board) TaskCount() int {
	n := 0
	for _, l := range b.Lists {
		n += len(l.Tasks)
	}
	return n
}

// Clone returns a deep copy that shares no slices with b.
func (b Board) Clone() Board {
	out := b
	if b.CreatedAt != nil {
		t := *b.CreatedAt
		out.CreatedAt = &t
	}
	if b.Lists != nil {
		out.Lists = make([]TaskList, len(b.Lists))
		for i, l := range b.Lists {
			out.Lists[i] = l.Clone()
		}
	}
	return out
}

func (l TaskList) FindTask(id string) (int, bool) {
	for i := range l.Tasks {
		if l.Tasks[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

func (l TaskList) Clone() TaskList {
	out := l
	if l.Tasks != nil {
		out.Tasks = append([]Task(nil), l.Tasks...)
	}
	return out
}

// Shares reports whether l and o are the same list value backed by the same task array.
// Mutations never write into a shared array, so sharing implies the list is unchanged.
func (l TaskList) Shares(o TaskList) bool {
	if l.ID != o.ID || l.Name != o.Name || len(l.Tasks) != len(o.Tasks) {
		return false
	}
	if len(l.Tasks) == 0 {
		return true
	}
	return &l.Tasks[0] == &o.Tasks[0]
}

// Equal compares two boards by value. Nil and empty slices are equal.
func Equal(a, b Board) bool {
	if a.ID != b.ID || a.Version != b.Version || a.Name != b.Name || len(a.Lists) != len(b.Lists) {
		return false
	}
	if (a.CreatedAt == nil) != (b.CreatedAt == nil) {
		return false
	}
	if a.CreatedAt != nil && !a.CreatedAt.Equal(*b.CreatedAt) {
		return false
	}
	for i := range a.Lists {
		if !ListsEqual(a.Lists[i], b.Lists[i]) {
			return false
		}
	}
	return true
}

func ListsEqual(a, b TaskList) bool {
	if a.ID != b.ID || a.Name != b.Name || len(a.Tasks) != len(b.Tasks) {
		return false
	}
	for i := range a.Tasks {
		if a.Tasks[i] != b.Tasks[i] {
			return false
		}
	}
	return true
}
