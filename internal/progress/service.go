package progress

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flashlearn/backend/internal/common"
	"github.com/flashlearn/backend/internal/events"
	"github.com/flashlearn/backend/internal/logger"
	"github.com/flashlearn/backend/internal/models"
)

type Repository interface {
	Upsert(ctx context.Context, userID int64, flashcardID string, isMastered bool, at time.Time) (*models.ProgressRecord, error)
	ListForUser(ctx context.Context, userID int64) ([]models.ProgressRecord, error)
}

// StatsInvalidator drops a user's cached statistics.
type StatsInvalidator interface {
	Invalidate(ctx context.Context, userID int64) error
}

type Service struct {
	repo  Repository
	bus   events.Bus
	stats StatsInvalidator
	log   *logger.Logger
	now   func() time.Time
}

// NewService wires the store with the local stats cache and the bus that
// tells other instances about the write. Either may be nil.
func NewService(repo Repository, bus events.Bus, stats StatsInvalidator, log *logger.Logger) *Service {
	return &Service{
		repo:  repo,
		bus:   bus,
		stats: stats,
		log:   log.With("component", "ProgressService"),
		now:   time.Now,
	}
}

// Upsert records one view or completion of a flashcard by a user. Every call
// counts as an attempt; the mastery flag is replaced, not accumulated.
//
// A zero userID fails with common.ErrUnauthenticated and a malformed
// flashcard id with *common.ValidationError, both before the store is
// touched. On success the user's cached statistics are dropped before
// Upsert returns, so the next stats read sees the write, and an
// events.TypeProgressUpdated event is published for other instances.
func (s *Service) Upsert(ctx context.Context, userID int64, flashcardID string, isMastered bool) (*models.ProgressRecord, error) {
	if userID <= 0 {
		return nil, common.ErrUnauthenticated
	}

	id, err := NormalizeFlashcardID(flashcardID)
	if err != nil {
		return nil, err
	}

	rec, err := s.repo.Upsert(ctx, userID, id, isMastered, s.now().UTC())
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, rec.UserID)
	s.publish(ctx, rec)
	return rec, nil
}

// List returns every progress record of the user, most recent first.
func (s *Service) List(ctx context.Context, userID int64) ([]models.ProgressRecord, error) {
	if userID <= 0 {
		return nil, common.ErrUnauthenticated
	}
	return s.repo.ListForUser(ctx, userID)
}

func (s *Service) invalidate(ctx context.Context, userID int64) {
	if s.stats == nil {
		return
	}
	if err := s.stats.Invalidate(context.WithoutCancel(ctx), userID); err != nil {
		s.log.Warn("invalidate stats cache", "user_id", userID, "error", err)
	}
}

// publish must not fail the write: the record is already stored and the
// cache entry will expire on its own.
func (s *Service) publish(ctx context.Context, rec *models.ProgressRecord) {
	if s.bus == nil {
		return
	}
	// The request may be gone by now; the notification still matters.
	ctx = context.WithoutCancel(ctx)
	err := s.bus.Publish(ctx, events.Event{
		Type:        events.TypeProgressUpdated,
		UserID:      rec.UserID,
		FlashcardID: rec.FlashcardID,
		At:          rec.LastReviewed,
	})
	if err != nil {
		s.log.Warn("publish progress event", "user_id", rec.UserID, "error", err)
	}
}

// NormalizeFlashcardID validates id as a UUID and returns its canonical form.
func NormalizeFlashcardID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", common.Invalid("flashcard_id is required")
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", common.Invalid("flashcard_id %q is not a valid id", id)
	}
	return parsed.String(), nil
}
