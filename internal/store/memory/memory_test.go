package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finlens/statement-insights/internal/domain"
	"github.com/finlens/statement-insights/internal/store"
)

func TestStore_SaveBatchAndList(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	err := s.SaveBatch(ctx, "alice", []domain.Transaction{
		{ID: "1", Amount: 100, Type: domain.Debit},
		{ID: "2", Amount: 200, Type: domain.Credit},
	})
	require.NoError(t, err)

	require.NoError(t, s.SaveBatch(ctx, "alice", []domain.Transaction{
		{ID: "3", Amount: 300, Type: domain.Debit},
	}))

	txns, err := s.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, txns, 3)

	// Other users see nothing.
	other, err := s.List(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestStore_SaveBatchRequiresUser(t *testing.T) {
	s := NewStore()
	assert.Error(t, s.SaveBatch(context.Background(), "", nil))
}

func TestStore_ListReturnsCopy(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.SaveBatch(ctx, "alice", []domain.Transaction{{ID: "1", Amount: 100}}))

	txns, err := s.List(ctx, "alice")
	require.NoError(t, err)
	txns[0].Amount = 999

	again, err := s.List(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 100.0, again[0].Amount)
}

func TestStore_DeleteAll(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.SaveBatch(ctx, "alice", []domain.Transaction{{ID: "1"}}))
	require.NoError(t, s.DeleteAll(ctx, "alice"))

	txns, err := s.List(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestProfileStore_CRUD(t *testing.T) {
	s := NewProfileStore()
	ctx := context.Background()

	first := domain.PasswordProfile{ID: "p1", Name: "Salary account", Secret: "hunter2", CreatedAt: time.Now().Add(-time.Hour)}
	second := domain.PasswordProfile{ID: "p2", Name: "Joint account", Secret: "hunter3", CreatedAt: time.Now()}
	require.NoError(t, s.Save(ctx, "alice", first))
	require.NoError(t, s.Save(ctx, "alice", second))

	got, err := s.Get(ctx, "alice", "p1")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got.Secret)

	list, err := s.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "p1", list[0].ID) // oldest first

	require.NoError(t, s.Delete(ctx, "alice", "p1"))
	_, err = s.Get(ctx, "alice", "p1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.Delete(ctx, "alice", "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProfileStore_RequiresID(t *testing.T) {
	s := NewProfileStore()
	assert.Error(t, s.Save(context.Background(), "alice", domain.PasswordProfile{Name: "no id"}))
}
