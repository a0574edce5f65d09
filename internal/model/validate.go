package model

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// authoritative mirrors Board with the constraints an authority-issued board must meet.
// Tags live here rather than on Board because local boards may legitimately lack an id.
type authoritative struct {
	ID      string              `validate:"required"`
	Version int64               `validate:"gte=0"`
	Lists   []authoritativeList `validate:"unique=ID,dive"`
}

type authoritativeList struct {
	ID    string              `validate:"required"`
	Tasks []authoritativeTask `validate:"unique=ID,dive"`
}

type authoritativeTask struct {
	ID string `validate:"required"`
}

// ErrInvalidBoard is wrapped by every Validate failure.
var ErrInvalidBoard = errors.New("invalid board")

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func boardValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks that b is structurally sound as an authoritative board: ids present,
// list ids unique within the board, task ids unique within their list and no task
// held by two lists at once.
func Validate(b Board) error {
	v := authoritative{ID: b.ID, Version: b.Version, Lists: make([]authoritativeList, len(b.Lists))}
	for i, l := range b.Lists {
		al := authoritativeList{ID: l.ID, Tasks: make([]authoritativeTask, len(l.Tasks))}
		for j, t := range l.Tasks {
			al.Tasks[j] = authoritativeTask{ID: t.ID}
		}
		v.Lists[i] = al
	}
	if err := boardValidator().Struct(v); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidBoard, b.ID, err)
	}

	owner := map[string]string{}
	for _, l := range b.Lists {
		for _, t := range l.Tasks {
			if prev, dup := owner[t.ID]; dup {
				return fmt.Errorf("%w %q: task %s in lists %s and %s", ErrInvalidBoard, b.ID, t.ID, prev, l.ID)
			}
			owner[t.ID] = l.ID
		}
	}
	return nil
}
