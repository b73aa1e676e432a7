package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/jansevak/internal/model"
)

func newComplaint(id, user string) *model.Complaint {
	return &model.Complaint{
		ID:          id,
		Title:       "Broken street light",
		Description: "The light on 5th cross has been out for a week",
		Status:      model.StatusPending,
		UserID:      user,
		CreatedAt:   time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestCreateAndList(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for i, user := range []string{"u1", "u2", "u1"} {
		_, err := s.Create(ctx, newComplaint(fmt.Sprintf("c%d", i), user))
		require.NoError(t, err)
	}

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c0", "c1", "c2"}, ids(all), "listing follows creation order")

	mine, err := s.ByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c0", "c2"}, ids(mine))

	none, err := s.ByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.Create(ctx, newComplaint("dup", "u1"))
	require.NoError(t, err)

	_, err = s.Create(ctx, newComplaint("dup", "u2"))
	assert.ErrorIs(t, err, model.ErrDuplicateID)

	got, err := s.Get(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID, "original record is untouched")
}

func TestConcurrentDuplicateCreateOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	const attempts = 50
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dupes     int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Create(ctx, newComplaint("same", "u1"))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if assert.ErrorIs(t, err, model.ErrDuplicateID) {
				dupes++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, dupes)
	assert.Equal(t, 1, s.Len())
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	fixed := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	_, err := s.Create(ctx, newComplaint("c1", "u1"))
	require.NoError(t, err)

	updated, err := s.UpdateStatus(ctx, "c1", model.StatusResolved)
	require.NoError(t, err)
	assert.Equal(t, model.StatusResolved, updated.Status)
	assert.Equal(t, fixed, updated.UpdatedAt)

	// Backwards moves are allowed.
	updated, err = s.UpdateStatus(ctx, "c1", model.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, updated.Status)
}

func TestUpdateStatusUnknownIDLeavesStoreAlone(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.Create(ctx, newComplaint("c1", "u1"))
	require.NoError(t, err)

	before, err := s.All(ctx)
	require.NoError(t, err)

	_, err = s.UpdateStatus(ctx, "missing", model.StatusResolved)
	assert.ErrorIs(t, err, model.ErrNotFound)

	after, err := s.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReturnedValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	in := newComplaint("c1", "u1")
	in.Details = &model.Details{District: "Pune"}
	created, err := s.Create(ctx, in)
	require.NoError(t, err)

	in.Title = "mutated after create"
	created.Details.District = "mutated"

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Broken street light", got.Title)
	assert.Equal(t, "Pune", got.Details.District)
}

func TestSetAttachmentText(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.Create(ctx, newComplaint("c1", "u1"))
	require.NoError(t, err)

	require.NoError(t, s.SetAttachmentText(ctx, "c1", "receipt text"))
	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "receipt text", got.AttachmentText)

	assert.ErrorIs(t, s.SetAttachmentText(ctx, "nope", "x"), model.ErrNotFound)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewMemoryStore()
	_, err := s.Create(ctx, newComplaint("c1", "u1"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.Len())
}

func ids(cs []model.Complaint) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.ID)
	}
	return out
}
