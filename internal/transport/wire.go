package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"kanban-cli/internal/model"
)

// Wire shapes accept the field spellings older authorities emit: `_id` for the board id,
// `created_at` for the creation time and `completed` for the task done flag.
type wireBoard struct {
	ID              string          `json:"id"`
	LegacyID        json.RawMessage `json:"_id"`
	Version         *int64          `json:"version"`
	Name            string          `json:"name"`
	Lists           []wireList      `json:"lists"`
	CreatedAt       json.RawMessage `json:"createdAt"`
	LegacyCreatedAt json.RawMessage `json:"created_at"`
}

type wireList struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Tasks []wireTask `json:"tasks"`
}

type wireTask struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Done      *bool  `json:"done"`
	Completed *bool  `json:"completed"`
}

var errMissingVersion = errors.New("missing version")

// DecodeBoard normalizes an authoritative board from its wire form and validates it.
func DecodeBoard(data []byte) (model.Board, error) {
	var w wireBoard
	if err := json.Unmarshal(data, &w); err != nil {
		return model.Board{}, fmt.Errorf("decode board: %w", err)
	}
	b, err := w.normalize()
	if err != nil {
		return model.Board{}, err
	}
	if err := model.Validate(b); err != nil {
		return model.Board{}, err
	}
	return b, nil
}

func (w wireBoard) normalize() (model.Board, error) {
	id := strings.TrimSpace(w.ID)
	if id == "" {
		id = legacyString(w.LegacyID)
	}
	if w.Version == nil {
		return model.Board{}, fmt.Errorf("decode board %q: %w", id, errMissingVersion)
	}
	b := model.Board{
		ID:      id,
		Version: *w.Version,
		Name:    w.Name,
		Lists:   make([]model.TaskList, len(w.Lists)),
	}
	if t, ok := parseTime(w.CreatedAt); ok {
		b.CreatedAt = &t
	} else if t, ok := parseTime(w.LegacyCreatedAt); ok {
		b.CreatedAt = &t
	}
	for i, wl := range w.Lists {
		l := model.TaskList{ID: wl.ID, Name: wl.Name, Tasks: make([]model.Task, len(wl.Tasks))}
		for j, wt := range wl.Tasks {
			l.Tasks[j] = model.Task{ID: wt.ID, Name: wt.Name, Done: wt.done()}
		}
		b.Lists[i] = l
	}
	return b, nil
}

func (t wireTask) done() bool {
	if t.Done != nil {
		return *t.Done
	}
	return t.Completed != nil && *t.Completed
}

// legacyString reads an id that was either a plain string or an {"$oid": "..."} object.
func legacyString(raw json.RawMessage) string {
	if isNullOrEmpty(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var oid struct {
		OID string `json:"$oid"`
	}
	if err := json.Unmarshal(raw, &oid); err == nil {
		return strings.TrimSpace(oid.OID)
	}
	return ""
}

// parseTime accepts an RFC 3339 string or an extended-JSON {"$date": ...} object.
func parseTime(raw json.RawMessage) (time.Time, bool) {
	if isNullOrEmpty(raw) {
		return time.Time{}, false
	}
	var t time.Time
	if err := json.Unmarshal(raw, &t); err == nil {
		return t, true
	}
	var ext struct {
		Date json.RawMessage `json:"$date"`
	}
	if err := json.Unmarshal(raw, &ext); err == nil && !isNullOrEmpty(ext.Date) {
		if err := json.Unmarshal(ext.Date, &t); err == nil {
			return t, true
		}
		var ms struct {
			NumberLong string `json:"$numberLong"`
		}
		if err := json.Unmarshal(ext.Date, &ms); err == nil && ms.NumberLong != "" {
			if n, err := strconv.ParseInt(ms.NumberLong, 10, 64); err == nil {
				return time.UnixMilli(n).UTC(), true
			}
		}
	}
	return time.Time{}, false
}

func decodeSummaries(data []byte) ([]model.BoardSummary, error) {
	var raw []struct {
		ID       string          `json:"id"`
		LegacyID json.RawMessage `json:"_id"`
		Name     string          `json:"name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode board index: %w", err)
	}
	out := make([]model.BoardSummary, 0, len(raw))
	for _, r := range raw {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			id = legacyString(r.LegacyID)
		}
		if id == "" {
			continue
		}
		out = append(out, model.BoardSummary{ID: id, Name: r.Name})
	}
	return out, nil
}

func isNullOrEmpty(b []byte) bool {
	if len(b) == 0 {
		return true
	}
	s := strings.TrimSpace(string(b))
	return s == "" || s == "null"
}
