package authority

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"kanban-cli/internal/ids"
	"kanban-cli/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "authority.sqlite"))
	require.NoError(t, err)
	s.gen = ids.Sequence("srv")
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SeedOnlyOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seeded, err := s.Seed(ctx)
	require.NoError(t, err)
	require.True(t, seeded)

	boards, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, boards, 5)
	shopping := boards[0]
	require.Equal(t, "Shopping", shopping.Name)
	require.EqualValues(t, 0, shopping.Version)
	require.Len(t, shopping.Lists, 2)
	require.Equal(t, "Grocery list", shopping.Lists[0].Name)
	require.Equal(t, "4-6 Apples", shopping.Lists[0].Tasks[0].Name)
	require.NotEmpty(t, shopping.Lists[0].Tasks[0].ID)
	require.Equal(t, "Empty Board 4", boards[4].Name)
	require.NoError(t, model.Validate(shopping))

	seeded, err = s.Seed(ctx)
	require.NoError(t, err)
	require.False(t, seeded)
}

func TestStore_PutBumpsVersionAndAssignsIDs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	b, err := s.Create(ctx, "Trip")
	require.NoError(t, err)
	require.EqualValues(t, 0, b.Version)
	require.NotNil(t, b.Lists)

	b.Lists = []model.TaskList{{Name: "Pack", Tasks: []model.Task{{Name: "Socks"}}}}
	got, err := s.Put(ctx, b.ID, b)
	require.NoError(t, err)
	require.EqualValues(t, 1, got.Version)
	require.NotEmpty(t, got.Lists[0].ID)
	require.NotEmpty(t, got.Lists[0].Tasks[0].ID)
	require.Equal(t, b.CreatedAt.UnixMilli(), got.CreatedAt.UnixMilli())

	// Last writer wins regardless of the submitted version.
	stale := got.Clone()
	stale.Version = 0
	stale.Name = "Trip (renamed)"
	got2, err := s.Put(ctx, b.ID, stale)
	require.NoError(t, err)
	require.EqualValues(t, 2, got2.Version)
	require.Equal(t, got.Lists[0].ID, got2.Lists[0].ID)

	fetched, err := s.Get(ctx, b.ID)
	require.NoError(t, err)
	require.True(t, model.Equal(withoutTime(got2), withoutTime(fetched)))
}

func TestStore_Errors(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Put(ctx, "nope", model.Board{Name: "x"})
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Create(ctx, "  ")
	require.Error(t, err)

	b, err := s.Create(ctx, "Dup")
	require.NoError(t, err)
	b.Lists = []model.TaskList{{ID: "l1", Tasks: []model.Task{}}, {ID: "l1", Tasks: []model.Task{}}}
	_, err = s.Put(ctx, b.ID, b)
	require.ErrorIs(t, err, model.ErrInvalidBoard)
}

func TestStore_InMemory(t *testing.T) {
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Create(context.Background(), "x")
	require.NoError(t, err)
	boards, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, boards, 1)
}

func withoutTime(b model.Board) model.Board {
	b.CreatedAt = nil
	return b
}
