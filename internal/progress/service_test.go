package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/flashlearn/backend/internal/common"
	"github.com/flashlearn/backend/internal/events"
	"github.com/flashlearn/backend/internal/logger"
	"github.com/flashlearn/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cardID = "6f1c2b1e-7d43-4b8e-9a52-3c1d0e9f8a10"

type key struct {
	user int64
	card string
}

// memRepo mirrors the store's single-statement upsert under one lock.
type memRepo struct {
	mu      sync.Mutex
	records map[key]models.ProgressRecord
	calls   int
	err     error
}

func newMemRepo() *memRepo {
	return &memRepo{records: make(map[key]models.ProgressRecord)}
}

func (m *memRepo) Upsert(_ context.Context, userID int64, flashcardID string, isMastered bool, at time.Time) (*models.ProgressRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}

	k := key{userID, flashcardID}
	rec, ok := m.records[k]
	if !ok {
		rec = models.ProgressRecord{UserID: userID, FlashcardID: flashcardID}
	}
	rec.Attempts++
	rec.IsMastered = isMastered
	rec.LastReviewed = at
	m.records[k] = rec
	return &rec, nil
}

func (m *memRepo) ListForUser(_ context.Context, userID int64) ([]models.ProgressRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	var out []models.ProgressRecord
	for k, r := range m.records {
		if k.user == userID {
			out = append(out, r)
		}
	}
	return out, m.err
}

type recordingBus struct {
	events.LocalBus
	mu        sync.Mutex
	published []events.Event
	err       error
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, e)
	return b.err
}

type recordingInvalidator struct {
	mu    sync.Mutex
	users []int64
	err   error
}

func (r *recordingInvalidator) Invalidate(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
	return r.err
}

func newService(repo Repository, bus events.Bus) *Service {
	s := NewService(repo, bus, nil, logger.Nop())
	s.now = func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }
	return s
}

func TestUpsert_FirstWriteThenIncrement(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := newService(repo, nil)

	first, err := svc.Upsert(ctx, 1, cardID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Attempts)
	assert.True(t, first.IsMastered)

	second, err := svc.Upsert(ctx, 1, cardID, false)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Attempts)
	assert.False(t, second.IsMastered, "mastery is overwritten, not OR'd")
	assert.Equal(t, svc.now(), second.LastReviewed)
}

func TestUpsert_Unauthenticated(t *testing.T) {
	repo := newMemRepo()
	bus := &recordingBus{}
	svc := newService(repo, bus)

	_, err := svc.Upsert(context.Background(), 0, cardID, true)

	assert.ErrorIs(t, err, common.ErrUnauthenticated)
	assert.Zero(t, repo.calls, "store must not be touched")
	assert.Empty(t, bus.published)
}

func TestUpsert_InvalidFlashcardID(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo, nil)

	for _, id := range []string{"", "   ", "abc", "123"} {
		_, err := svc.Upsert(context.Background(), 1, id, true)
		var vErr *common.ValidationError
		assert.ErrorAs(t, err, &vErr, "id %q", id)
	}
	assert.Zero(t, repo.calls)
}

func TestUpsert_CanonicalizesID(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo, nil)

	rec, err := svc.Upsert(context.Background(), 1, "  6F1C2B1E-7D43-4B8E-9A52-3C1D0E9F8A10 ", false)
	require.NoError(t, err)
	assert.Equal(t, cardID, rec.FlashcardID)
}

func TestUpsert_StoreErrorIsReturnedAndNothingPublished(t *testing.T) {
	repo := newMemRepo()
	repo.err = common.StoreErr("upsert progress", errors.New("conn reset"))
	bus := &recordingBus{}
	svc := newService(repo, bus)

	_, err := svc.Upsert(context.Background(), 1, cardID, true)

	assert.ErrorIs(t, err, common.ErrStore)
	assert.Empty(t, bus.published)
}

func TestUpsert_PublishesInvalidation(t *testing.T) {
	bus := &recordingBus{}
	svc := newService(newMemRepo(), bus)

	_, err := svc.Upsert(context.Background(), 4, cardID, true)
	require.NoError(t, err)

	require.Len(t, bus.published, 1)
	assert.Equal(t, events.TypeProgressUpdated, bus.published[0].Type)
	assert.Equal(t, int64(4), bus.published[0].UserID)
	assert.Equal(t, cardID, bus.published[0].FlashcardID)
}

func TestUpsert_PublishFailureDoesNotFailWrite(t *testing.T) {
	bus := &recordingBus{err: errors.New("redis down")}
	svc := newService(newMemRepo(), bus)

	rec, err := svc.Upsert(context.Background(), 4, cardID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Attempts)
}

func TestUpsert_ConcurrentCallsCountEveryAttempt(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo, nil)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Upsert(context.Background(), 1, cardID, i%2 == 0)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, n, repo.records[key{1, cardID}].Attempts)
}

func TestList_Unauthenticated(t *testing.T) {
	repo := newMemRepo()
	_, err := newService(repo, nil).List(context.Background(), 0)

	assert.ErrorIs(t, err, common.ErrUnauthenticated)
	assert.Zero(t, repo.calls)
}

func TestUpsert_InvalidatesStatsBeforeReturning(t *testing.T) {
	inv := &recordingInvalidator{}
	svc := NewService(newMemRepo(), events.NewLocalBus(), inv, logger.Nop())

	_, err := svc.Upsert(context.Background(), 6, cardID, true)
	require.NoError(t, err)

	assert.Equal(t, []int64{6}, inv.users)
}

func TestUpsert_FailedWriteKeepsStatsCache(t *testing.T) {
	repo := newMemRepo()
	repo.err = common.StoreErr("upsert progress", errors.New("conn reset"))
	inv := &recordingInvalidator{}
	svc := NewService(repo, nil, inv, logger.Nop())

	_, err := svc.Upsert(context.Background(), 6, cardID, true)
	require.Error(t, err)

	assert.Empty(t, inv.users)
}

func TestUpsert_InvalidationFailureDoesNotFailWrite(t *testing.T) {
	inv := &recordingInvalidator{err: errors.New("redis down")}
	svc := NewService(newMemRepo(), nil, inv, logger.Nop())

	rec, err := svc.Upsert(context.Background(), 6, cardID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Attempts)
}
