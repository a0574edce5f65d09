package authority

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"kanban-cli/internal/ids"
	"kanban-cli/internal/model"
)

var ErrNotFound = errors.New("board not found")

// Store persists boards in sqlite. Lists are kept as a JSON document per board; the
// version column is the only thing the authority reasons about.
type Store struct {
	db  *sql.DB
	gen ids.Generator
	now func() time.Time
}

// Open opens (creating if needed) the sqlite database at path. ":memory:" is accepted.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection: sqlite serializes writers anyway and :memory: is per connection.
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	s := &Store{db: db, gen: ids.New, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS boards (
			id TEXT PRIMARY KEY,
			version INTEGER NOT NULL,
			name TEXT NOT NULL,
			lists_json TEXT NOT NULL,
			created_at_unixms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_boards_created ON boards(created_at_unixms);`,
	}
	for _, st := range stmts {
		if _, err := s.db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBoard(row scanner) (model.Board, error) {
	var (
		b         model.Board
		listsJSON string
		createdMS int64
	)
	if err := row.Scan(&b.ID, &b.Version, &b.Name, &listsJSON, &createdMS); err != nil {
		return model.Board{}, err
	}
	if err := json.Unmarshal([]byte(listsJSON), &b.Lists); err != nil {
		return model.Board{}, fmt.Errorf("board %s: corrupt lists: %w", b.ID, err)
	}
	if b.Lists == nil {
		b.Lists = []model.TaskList{}
	}
	created := time.UnixMilli(createdMS).UTC()
	b.CreatedAt = &created
	return b, nil
}

// List returns every board, oldest first.
func (s *Store) List(ctx context.Context) ([]model.Board, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, version, name, lists_json, created_at_unixms FROM boards ORDER BY created_at_unixms, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Board
	for rows.Next() {
		b, err := scanBoard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id string) (model.Board, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, version, name, lists_json, created_at_unixms FROM boards WHERE id = ?`, id)
	b, err := scanBoard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Board{}, ErrNotFound
	}
	return b, err
}

// Create inserts an empty board at version 0.
func (s *Store) Create(ctx context.Context, name string) (model.Board, error) {
	return s.insert(ctx, name, nil)
}

func (s *Store) insert(ctx context.Context, name string, lists []model.TaskList) (model.Board, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Board{}, errors.New("board name is required")
	}
	created := s.now().UTC()
	b := model.Board{ID: s.gen(), Version: 0, Name: name, Lists: s.assignIDs(lists), CreatedAt: &created}
	listsJSON, err := json.Marshal(b.Lists)
	if err != nil {
		return model.Board{}, err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO boards(id, version, name, lists_json, created_at_unixms) VALUES(?, ?, ?, ?, ?)`,
		b.ID, b.Version, b.Name, string(listsJSON), created.UnixMilli()); err != nil {
		return model.Board{}, err
	}
	return b, nil
}

// Put replaces the name and lists of a board and bumps its version by one. The
// submitted version is not checked: the last writer wins and every writer learns the
// resulting version. Lists and tasks submitted without an id get one.
func (s *Store) Put(ctx context.Context, id string, in model.Board) (model.Board, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Board{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT id, version, name, lists_json, created_at_unixms FROM boards WHERE id = ?`, id)
	cur, err := scanBoard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Board{}, ErrNotFound
	}
	if err != nil {
		return model.Board{}, err
	}

	next := model.Board{
		ID:        cur.ID,
		Version:   cur.Version + 1,
		Name:      in.Name,
		Lists:     s.assignIDs(in.Lists),
		CreatedAt: cur.CreatedAt,
	}
	if strings.TrimSpace(next.Name) == "" {
		next.Name = cur.Name
	}
	if err := model.Validate(next); err != nil {
		return model.Board{}, err
	}
	listsJSON, err := json.Marshal(next.Lists)
	if err != nil {
		return model.Board{}, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE boards SET version = ?, name = ?, lists_json = ? WHERE id = ?`,
		next.Version, next.Name, string(listsJSON), id); err != nil {
		return model.Board{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Board{}, err
	}
	return next, nil
}

func (s *Store) assignIDs(lists []model.TaskList) []model.TaskList {
	out := make([]model.TaskList, len(lists))
	for i, l := range lists {
		l = l.Clone()
		if strings.TrimSpace(l.ID) == "" {
			l.ID = s.gen()
		}
		if l.Tasks == nil {
			l.Tasks = []model.Task{}
		}
		for j := range l.Tasks {
			if strings.TrimSpace(l.Tasks[j].ID) == "" {
				l.Tasks[j].ID = s.gen()
			}
		}
		out[i] = l
	}
	return out
}

// Seed inserts the starter boards into an empty store. It reports whether it did.
func (s *Store) Seed(ctx context.Context) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM boards`).Scan(&n); err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	task := func(name string) model.Task { return model.Task{Name: name} }
	seeds := []struct {
		name  string
		lists []model.TaskList
	}{
		{"Shopping", []model.TaskList{
			{Name: "Grocery list", Tasks: []model.Task{task("4-6 Apples"), task("Milk")}},
			{Name: "Click here to rename", Tasks: []model.Task{task("Drag tasks and lists to rearrange them")}},
		}},
		{"Empty Board 1", nil},
		{"Empty Board 2", nil},
		{"Empty Board 3", nil},
		{"Empty Board 4", nil},
	}
	for i, sd := range seeds {
		// Keep seed order stable under the created-at ordering of List.
		b, err := s.insert(ctx, sd.name, sd.lists)
		if err != nil {
			return false, err
		}
		if _, err := s.db.ExecContext(ctx, `UPDATE boards SET created_at_unixms = created_at_unixms + ? WHERE id = ?`, i, b.ID); err != nil {
			return false, err
		}
	}
	return true, nil
}
