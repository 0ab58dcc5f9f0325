package flashcards

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/flashlearn/backend/internal/cache"
	"github.com/flashlearn/backend/internal/common"
	"github.com/flashlearn/backend/internal/generator"
	"github.com/flashlearn/backend/internal/logger"
	"github.com/flashlearn/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var asOf = time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

// fakeRepo keeps cards in memory and records generation bookkeeping.
type fakeRepo struct {
	mu        sync.Mutex
	cards     []models.Flashcard
	listCalls int
	lastList  models.FlashcardFilter
	err       error
	saveErr   error
	nextGenID int64
	failed    map[int64]string
	completed map[int64]GenerationResult
}

func newFakeRepo(cards ...models.Flashcard) *fakeRepo {
	return &fakeRepo{
		cards:     cards,
		failed:    make(map[int64]string),
		completed: make(map[int64]GenerationResult),
	}
}

func (f *fakeRepo) List(_ context.Context, filter models.FlashcardFilter) ([]models.Flashcard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastList = filter
	var out []models.Flashcard
	for _, c := range f.cards {
		if filter.Topic != "" && c.Topic != filter.Topic {
			continue
		}
		out = append(out, c)
	}
	return out, f.err
}

func (f *fakeRepo) ListAll(_ context.Context) ([]models.Flashcard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.Flashcard(nil), f.cards...), nil
}

func (f *fakeRepo) Get(_ context.Context, id string) (*models.Flashcard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.cards {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeRepo) TopicCounts(_ context.Context) ([]TopicCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	index := map[string]int{}
	var out []TopicCount
	for _, c := range f.cards {
		i, ok := index[c.Topic]
		if !ok {
			i = len(out)
			index[c.Topic] = i
			out = append(out, TopicCount{Topic: c.Topic})
		}
		out[i].Count++
		if c.Category != nil {
			out[i].Category = c.Category
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateGeneration(_ context.Context, _ int64, _ []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextGenID++
	return f.nextGenID, nil
}

func (f *fakeRepo) FailGeneration(_ context.Context, genID int64, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[genID] = msg
	return nil
}

func (f *fakeRepo) SaveGenerated(_ context.Context, genID int64, cards []models.NewFlashcard, res GenerationResult) ([]models.Flashcard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	var saved []models.Flashcard
	for i, nc := range cards {
		c := nc.Category
		saved = append(saved, models.Flashcard{
			ID:         "gen-" + string(rune('a'+i)),
			Topic:      nc.Topic,
			Category:   &c,
			Question:   nc.Question,
			Answer:     nc.Answer,
			Difficulty: nc.Difficulty,
		})
	}
	f.cards = append(f.cards, saved...)
	f.completed[genID] = res
	return saved, nil
}

type fakeProgress struct {
	records []models.ProgressRecord
	err     error
}

func (p *fakeProgress) ListForUser(_ context.Context, userID int64) ([]models.ProgressRecord, error) {
	if p.err != nil {
		return nil, p.err
	}
	var out []models.ProgressRecord
	for _, r := range p.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func category(c models.Category) *models.Category { return &c }

func card(id, topic string, c *models.Category) models.Flashcard {
	return models.Flashcard{ID: id, Topic: topic, Category: c, Question: "q " + id, Answer: "a", Difficulty: models.DifficultyEasy}
}

func newTestService(repo Repository, progress ProgressReader, gen CardGenerator, sc cache.StatsCache) *Service {
	return NewService(repo, progress, gen, sc, Options{Location: time.UTC, PerTopic: 2}, logger.Nop())
}

// ── Library ─────────────────────────────────────────────

func TestList_NormalizesFilterAndDefaultsLimit(t *testing.T) {
	repo := newFakeRepo(card("1", "react hooks", nil), card("2", "docker", category(models.CategoryDevOps)))
	svc := newTestService(repo, &fakeProgress{}, nil, nil)

	cards, err := svc.List(context.Background(), models.FlashcardFilter{Topic: "  React   Hooks ", Difficulty: "EASY"})
	require.NoError(t, err)

	assert.Equal(t, "react hooks", repo.lastList.Topic)
	assert.Equal(t, "easy", repo.lastList.Difficulty)
	assert.Equal(t, defaultPageSize, repo.lastList.Limit)
	require.Len(t, cards, 1)
	require.NotNil(t, cards[0].Category)
	assert.Equal(t, models.CategoryReact, *cards[0].Category)
}

func TestList_Validation(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeProgress{}, nil, nil)

	for _, f := range []models.FlashcardFilter{
		{Difficulty: "impossible"},
		{Limit: -1},
		{Offset: -5},
	} {
		_, err := svc.List(context.Background(), f)
		var vErr *common.ValidationError
		assert.ErrorAs(t, err, &vErr, "%+v", f)
	}
}

func TestList_ClampsLimit(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeProgress{}, nil, nil)

	_, err := svc.List(context.Background(), models.FlashcardFilter{Limit: 10_000})
	require.NoError(t, err)
	assert.Equal(t, maxPageSize, repo.lastList.Limit)
}

func TestGet(t *testing.T) {
	id := "6f1c2b1e-7d43-4b8e-9a52-3c1d0e9f8a10"
	svc := newTestService(newFakeRepo(card(id, "postgresql indexes", nil)), &fakeProgress{}, nil, nil)

	got, err := svc.Get(context.Background(), "  "+id+" ")
	require.NoError(t, err)
	assert.Equal(t, models.CategoryDatabase, *got.Category)

	_, err = svc.Get(context.Background(), "not-a-uuid")
	var vErr *common.ValidationError
	assert.ErrorAs(t, err, &vErr)

	_, err = svc.Get(context.Background(), "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestTopics_PrefersStoredCategory(t *testing.T) {
	repo := newFakeRepo(
		card("1", "react hooks", nil),
		card("2", "react hooks", nil),
		card("3", "kubernetes deployment", nil),
		card("4", "my pet topic", category(models.CategorySecurity)),
	)
	svc := newTestService(repo, &fakeProgress{}, nil, nil)

	topics, err := svc.Topics(context.Background())
	require.NoError(t, err)

	require.Len(t, topics, 3)
	assert.Equal(t, models.TopicSummary{Topic: "react hooks", Category: models.CategoryReact, Icon: "atom", CardCount: 2}, topics[0])
	assert.Equal(t, models.CategoryDevOps, topics[1].Category)
	assert.Equal(t, models.CategorySecurity, topics[2].Category)
}

func TestCategories_ListsEveryCategory(t *testing.T) {
	repo := newFakeRepo(
		card("1", "react hooks", nil),
		card("2", "jsx", nil),
		card("3", "docker", nil),
	)
	svc := newTestService(repo, &fakeProgress{}, nil, nil)

	cats, err := svc.Categories(context.Background())
	require.NoError(t, err)

	byName := map[models.Category]models.CategorySummary{}
	for _, c := range cats {
		byName[c.Category] = c
	}
	assert.Len(t, cats, 11)
	assert.Equal(t, 2, byName[models.CategoryReact].TopicCount)
	assert.Equal(t, 2, byName[models.CategoryReact].CardCount)
	assert.Equal(t, 1, byName[models.CategoryDevOps].CardCount)
	assert.Zero(t, byName[models.CategoryMobile].CardCount)
}

// ── Statistics ──────────────────────────────────────────

func TestStats_ComputesAndCaches(t *testing.T) {
	repo := newFakeRepo(card("a", "go", nil), card("b", "go", nil), card("c", "go", nil), card("d", "go", nil))
	progress := &fakeProgress{records: []models.ProgressRecord{
		{UserID: 1, FlashcardID: "a", Attempts: 1, IsMastered: true, LastReviewed: asOf.Add(-time.Hour)},
		{UserID: 1, FlashcardID: "b", Attempts: 2, IsMastered: false, LastReviewed: asOf.Add(-48 * time.Hour)},
		{UserID: 2, FlashcardID: "c", Attempts: 1, IsMastered: true, LastReviewed: asOf},
	}}
	sc := cache.NewMemoryCache(time.Minute)
	svc := newTestService(repo, progress, nil, sc)

	got, err := svc.Stats(context.Background(), 1, asOf)
	require.NoError(t, err)

	assert.Equal(t, 4, got.TotalCards)
	assert.Equal(t, 1, got.MasteredCards)
	assert.Equal(t, 2, got.AttemptedCards)
	assert.Equal(t, 50, got.Accuracy)

	_, err = svc.Stats(context.Background(), 1, asOf)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.listCalls, "second call is served from cache")

	require.NoError(t, sc.Invalidate(context.Background(), 1))
	_, err = svc.Stats(context.Background(), 1, asOf)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls)
}

func TestStats_FetchFailureReturnsNoStats(t *testing.T) {
	boom := common.StoreErr("list progress", errors.New("connection reset"))
	svc := newTestService(newFakeRepo(card("a", "go", nil)), &fakeProgress{err: boom}, nil, cache.NewMemoryCache(time.Minute))

	got, err := svc.Stats(context.Background(), 1, asOf)

	assert.Nil(t, got)
	assert.ErrorIs(t, err, common.ErrStore)
}

func TestStats_Unauthenticated(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeProgress{}, nil, nil)

	_, err := svc.Stats(context.Background(), 0, asOf)
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
}

// ── Generation ──────────────────────────────────────────

type fakeGenerator struct {
	gotTopics []string
	gotCount  int
	err       error
}

func (g *fakeGenerator) GenerateForTopics(_ context.Context, topics []string, perTopic int) ([]generator.TopicSet, generator.Usage, error) {
	g.gotTopics, g.gotCount = topics, perTopic
	if g.err != nil {
		return nil, generator.Usage{}, g.err
	}
	var sets []generator.TopicSet
	for _, t := range topics {
		set := generator.TopicSet{Topic: t}
		for i := 0; i < perTopic; i++ {
			set.Cards = append(set.Cards, generator.GeneratedCard{Question: t + "?", Answer: "!", Difficulty: "HARD"})
		}
		sets = append(sets, set)
	}
	return sets, generator.Usage{PromptTokens: 7, OutputTokens: 11}, nil
}

func (g *fakeGenerator) ModelName() string { return "fake-model" }

func TestGenerate(t *testing.T) {
	repo := newFakeRepo()
	gen := &fakeGenerator{}
	svc := newTestService(repo, &fakeProgress{}, gen, nil)

	resp, err := svc.Generate(context.Background(), 9, models.GenerateRequest{
		Topic:  "Docker Compose",
		Topics: []string{"react hooks", "docker  compose"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"docker compose", "react hooks"}, gen.gotTopics)
	assert.Equal(t, 2, gen.gotCount, "default per-topic count")
	require.Len(t, resp.Flashcards, 4)
	assert.Equal(t, models.CategoryDevOps, *resp.Flashcards[0].Category)
	assert.Equal(t, models.CategoryReact, *resp.Flashcards[3].Category)
	assert.Equal(t, models.DifficultyHard, resp.Flashcards[0].Difficulty)
	assert.Equal(t, "fake-model", resp.ModelUsed)
	assert.Equal(t, GenerationResult{ModelUsed: "fake-model", PromptTokens: 7, OutputTokens: 11}, repo.completed[1])
}

func TestGenerate_Validation(t *testing.T) {
	gen := &fakeGenerator{}
	svc := newTestService(newFakeRepo(), &fakeProgress{}, gen, nil)

	tests := []models.GenerateRequest{
		{},
		{Topics: []string{"go", "   "}},
		{Topic: "go", Count: maxPerTopic + 1},
		{Topics: []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"}},
	}
	for _, req := range tests {
		_, err := svc.Generate(context.Background(), 1, req)
		var vErr *common.ValidationError
		assert.ErrorAs(t, err, &vErr, "%+v", req)
	}
	assert.Nil(t, gen.gotTopics, "the model is never called for invalid input")

	_, err := svc.Generate(context.Background(), 0, models.GenerateRequest{Topic: "go"})
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestGenerate_FailureStoresNothing(t *testing.T) {
	repo := newFakeRepo()
	gen := &fakeGenerator{err: &common.GenerationError{Reason: "model call", Wrapped: errors.New("overloaded")}}
	svc := newTestService(repo, &fakeProgress{}, gen, nil)

	_, err := svc.Generate(context.Background(), 1, models.GenerateRequest{Topic: "go", Count: 3})

	var gErr *common.GenerationError
	require.ErrorAs(t, err, &gErr)
	assert.Empty(t, repo.cards)
	assert.Contains(t, repo.failed[1], "overloaded")
	assert.Equal(t, 3, gen.gotCount)
}

func TestGenerate_SaveFailureMarksRequestFailed(t *testing.T) {
	repo := newFakeRepo()
	repo.saveErr = common.StoreErr("insert flashcard", errors.New("disk full"))
	svc := newTestService(repo, &fakeProgress{}, &fakeGenerator{}, nil)

	_, err := svc.Generate(context.Background(), 1, models.GenerateRequest{Topic: "go"})

	assert.ErrorIs(t, err, common.ErrStore)
	assert.Contains(t, repo.failed[1], "disk full")
}

func TestNormalizeTopic(t *testing.T) {
	assert.Equal(t, "react hooks", NormalizeTopic("  React \t Hooks "))
	assert.Equal(t, "", NormalizeTopic("   "))
}
