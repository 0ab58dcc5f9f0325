package flashcards

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/flashlearn/backend/internal/cache"
	"github.com/flashlearn/backend/internal/categories"
	"github.com/flashlearn/backend/internal/common"
	"github.com/flashlearn/backend/internal/generator"
	"github.com/flashlearn/backend/internal/logger"
	"github.com/flashlearn/backend/internal/models"
	"github.com/flashlearn/backend/internal/stats"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
	maxTopics       = 10
	maxPerTopic     = 20
)

type Repository interface {
	List(ctx context.Context, f models.FlashcardFilter) ([]models.Flashcard, error)
	ListAll(ctx context.Context) ([]models.Flashcard, error)
	Get(ctx context.Context, id string) (*models.Flashcard, error)
	TopicCounts(ctx context.Context) ([]TopicCount, error)
	CreateGeneration(ctx context.Context, userID int64, topics []string) (int64, error)
	FailGeneration(ctx context.Context, genID int64, errMsg string) error
	SaveGenerated(ctx context.Context, genID int64, cards []models.NewFlashcard, res GenerationResult) ([]models.Flashcard, error)
}

// ProgressReader is the read side of the progress store.
type ProgressReader interface {
	ListForUser(ctx context.Context, userID int64) ([]models.ProgressRecord, error)
}

type CardGenerator interface {
	GenerateForTopics(ctx context.Context, topics []string, perTopic int) ([]generator.TopicSet, generator.Usage, error)
	ModelName() string
}

type Options struct {
	// Location decides which calendar day a review falls on.
	Location *time.Location
	// PerTopic is the card count used when a request does not name one.
	PerTopic int
}

type Service struct {
	repo     Repository
	progress ProgressReader
	gen      CardGenerator
	cache    cache.StatsCache
	loc      *time.Location
	perTopic int
	log      *logger.Logger
}

func NewService(repo Repository, progress ProgressReader, gen CardGenerator, sc cache.StatsCache, opts Options, log *logger.Logger) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.PerTopic <= 0 {
		opts.PerTopic = 5
	}
	return &Service{
		repo:     repo,
		progress: progress,
		gen:      gen,
		cache:    sc,
		loc:      opts.Location,
		perTopic: opts.PerTopic,
		log:      log.With("component", "FlashcardService"),
	}
}

// ── Library ─────────────────────────────────────────────

func (s *Service) List(ctx context.Context, f models.FlashcardFilter) ([]models.Flashcard, error) {
	f.Topic = NormalizeTopic(f.Topic)
	f.Difficulty = strings.ToLower(strings.TrimSpace(f.Difficulty))
	f.Category = strings.TrimSpace(f.Category)

	if f.Difficulty != "" && !models.ValidDifficulties[models.Difficulty(f.Difficulty)] {
		return nil, common.Invalid("difficulty must be one of easy, medium, hard")
	}
	if f.Limit < 0 || f.Offset < 0 {
		return nil, common.Invalid("limit and offset must not be negative")
	}
	if f.Limit == 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}

	cards, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	fillCategories(cards)
	return cards, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Flashcard, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, common.Invalid("flashcard id %q is not a valid id", id)
	}
	card, err := s.repo.Get(ctx, parsed.String())
	if err != nil {
		return nil, err
	}
	c := categories.Resolve(card.Topic, card.Category)
	card.Category = &c
	return card, nil
}

// Topics lists every topic with its card count. Topics without a stored
// category are classified from their name.
func (s *Service) Topics(ctx context.Context) ([]models.TopicSummary, error) {
	counts, err := s.repo.TopicCounts(ctx)
	if err != nil {
		return nil, err
	}

	var unlabeled []string
	for _, tc := range counts {
		if tc.Category == nil {
			unlabeled = append(unlabeled, tc.Topic)
		}
	}
	derived := categories.ClassifyAll(unlabeled)

	out := make([]models.TopicSummary, 0, len(counts))
	for _, tc := range counts {
		c, ok := derived[tc.Topic]
		if tc.Category != nil {
			c, ok = *tc.Category, true
		}
		if !ok {
			c = categories.Default
		}
		out = append(out, models.TopicSummary{
			Topic:     tc.Topic,
			Category:  c,
			Icon:      string(categories.IconFor(c)),
			CardCount: tc.Count,
		})
	}
	return out, nil
}

// Categories rolls Topics up per category. Every known category is listed,
// in classifier order, even when it has no cards yet. Labels outside the
// known set follow at the end.
func (s *Service) Categories(ctx context.Context) ([]models.CategorySummary, error) {
	topics, err := s.Topics(ctx)
	if err != nil {
		return nil, err
	}

	index := make(map[models.Category]int)
	var out []models.CategorySummary
	for _, c := range categories.All() {
		index[c] = len(out)
		out = append(out, models.CategorySummary{Category: c, Icon: string(categories.IconFor(c))})
	}
	for _, t := range topics {
		i, ok := index[t.Category]
		if !ok {
			i = len(out)
			index[t.Category] = i
			out = append(out, models.CategorySummary{Category: t.Category, Icon: t.Icon})
		}
		out[i].TopicCount++
		out[i].CardCount += t.CardCount
	}
	return out, nil
}

// ── Statistics ──────────────────────────────────────────

// Stats returns the user's derived statistics as of asOf. A cached value is
// used when present; progress writes drop it before they return. Either
// fetch failing fails the whole call so a partial result is never returned.
func (s *Service) Stats(ctx context.Context, userID int64, asOf time.Time) (*models.DerivedStats, error) {
	if userID <= 0 {
		return nil, common.ErrUnauthenticated
	}

	// The version is taken before fetching so a write that lands mid-fetch
	// keeps the result out of the cache.
	var version uint64
	cacheable := false
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, userID)
		if err != nil {
			s.log.Warn("read stats cache", "user_id", userID, "error", err)
		} else if ok {
			return &cached, nil
		}
		if version, err = s.cache.Version(ctx, userID); err != nil {
			s.log.Warn("read stats cache version", "user_id", userID, "error", err)
		} else {
			cacheable = true
		}
	}

	var cards []models.Flashcard
	var progress []models.ProgressRecord

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		cards, err = s.repo.ListAll(egCtx)
		return err
	})
	eg.Go(func() error {
		var err error
		progress, err = s.progress.ListForUser(egCtx, userID)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	result := stats.Compute(cards, progress, asOf, s.loc)

	if cacheable {
		if err := s.cache.Set(ctx, userID, version, result); err != nil {
			s.log.Warn("write stats cache", "user_id", userID, "error", err)
		}
	}
	return &result, nil
}

// ── Generation ──────────────────────────────────────────

// Generate creates cards for req.Topic and req.Topics. Nothing is stored
// unless every topic produced cards.
func (s *Service) Generate(ctx context.Context, userID int64, req models.GenerateRequest) (*models.GenerateResponse, error) {
	if userID <= 0 {
		return nil, common.ErrUnauthenticated
	}

	topics, err := requestTopics(req)
	if err != nil {
		return nil, err
	}
	count := req.Count
	if count < 0 || count > maxPerTopic {
		return nil, common.Invalid("count must be between 1 and %d", maxPerTopic)
	}
	if count == 0 {
		count = s.perTopic
	}

	genID, err := s.repo.CreateGeneration(ctx, userID, topics)
	if err != nil {
		return nil, err
	}
	log := s.log.With("generation_id", genID, "user_id", userID)
	log.Info("generating flashcards", "topics", topics, "per_topic", count)

	sets, usage, err := s.gen.GenerateForTopics(ctx, topics, count)
	if err != nil {
		s.fail(ctx, log, genID, err)
		return nil, err
	}

	var cards []models.NewFlashcard
	for _, set := range sets {
		category := categories.Classify(set.Topic)
		for _, gc := range set.Cards {
			cards = append(cards, models.NewFlashcard{
				Topic:      set.Topic,
				Category:   category,
				Question:   gc.Question,
				Answer:     gc.Answer,
				Difficulty: generator.NormalizeDifficulty(gc.Difficulty),
			})
		}
	}

	saved, err := s.repo.SaveGenerated(ctx, genID, cards, GenerationResult{
		ModelUsed:    s.gen.ModelName(),
		PromptTokens: usage.PromptTokens,
		OutputTokens: usage.OutputTokens,
	})
	if err != nil {
		s.fail(ctx, log, genID, err)
		return nil, err
	}

	log.Info("flashcards generated", "cards", len(saved),
		"prompt_tokens", usage.PromptTokens, "output_tokens", usage.OutputTokens)
	return &models.GenerateResponse{
		Flashcards:   saved,
		Topics:       topics,
		ModelUsed:    s.gen.ModelName(),
		PromptTokens: usage.PromptTokens,
		OutputTokens: usage.OutputTokens,
	}, nil
}

func (s *Service) fail(ctx context.Context, log *logger.Logger, genID int64, cause error) {
	log.Error("flashcard generation failed", "error", cause)
	if err := s.repo.FailGeneration(context.WithoutCancel(ctx), genID, cause.Error()); err != nil {
		log.Warn("record generation failure", "error", err)
	}
}

// requestTopics merges the single and multi topic fields, normalised and
// without duplicates, keeping first-seen order.
func requestTopics(req models.GenerateRequest) ([]string, error) {
	raw := req.Topics
	if req.Topic != "" {
		raw = append([]string{req.Topic}, raw...)
	}
	if len(raw) == 0 {
		return nil, common.Invalid("topic is required")
	}

	seen := make(map[string]bool, len(raw))
	topics := make([]string, 0, len(raw))
	for _, t := range raw {
		n := NormalizeTopic(t)
		if n == "" {
			return nil, common.Invalid("topics must not be empty")
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		topics = append(topics, n)
	}
	if len(topics) > maxTopics {
		return nil, common.Invalid("at most %d topics per request", maxTopics)
	}
	return topics, nil
}

// NormalizeTopic is the stored form of a topic name.
func NormalizeTopic(topic string) string {
	return strings.ToLower(strings.Join(strings.Fields(topic), " "))
}

func fillCategories(cards []models.Flashcard) {
	var unlabeled []string
	for _, c := range cards {
		if c.Category == nil {
			unlabeled = append(unlabeled, c.Topic)
		}
	}
	if len(unlabeled) == 0 {
		return
	}
	derived := categories.ClassifyAll(unlabeled)
	for i := range cards {
		if cards[i].Category == nil {
			c := derived[cards[i].Topic]
			cards[i].Category = &c
		}
	}
}
