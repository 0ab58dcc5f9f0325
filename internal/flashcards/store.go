package flashcards

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/flashlearn/backend/internal/common"
	"github.com/flashlearn/backend/internal/models"
)

const selectCols = `id, topic, category, question, answer, difficulty, created_at`

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ── Reads ───────────────────────────────────────────────

func (s *Store) List(ctx context.Context, f models.FlashcardFilter) ([]models.Flashcard, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Topic != "" {
		add("topic = $%d", f.Topic)
	}
	if f.Category != "" {
		add("category = $%d", f.Category)
	}
	if f.Difficulty != "" {
		add("difficulty = $%d", f.Difficulty)
	}

	query := `SELECT ` + selectCols + ` FROM flashcards`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	return s.query(ctx, "list flashcards", query, args...)
}

// ListAll returns the whole library. Statistics are computed against every
// card, not a page.
func (s *Store) ListAll(ctx context.Context) ([]models.Flashcard, error) {
	return s.query(ctx, "list all flashcards",
		`SELECT `+selectCols+` FROM flashcards ORDER BY created_at DESC, id`)
}

func (s *Store) Get(ctx context.Context, id string) (*models.Flashcard, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectCols+` FROM flashcards WHERE id = $1`, id)
	card, err := scanFlashcard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("flashcard %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, common.StoreErr("get flashcard", err)
	}
	return card, nil
}

// TopicCount is one row of the per-topic aggregate. Category is nil when no
// card of the topic carries a stored category.
type TopicCount struct {
	Topic    string
	Category *models.Category
	Count    int
}

func (s *Store) TopicCounts(ctx context.Context) ([]TopicCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT topic, MAX(category), COUNT(*)
		 FROM flashcards
		 GROUP BY topic
		 ORDER BY topic`)
	if err != nil {
		return nil, common.StoreErr("count topics", err)
	}
	defer rows.Close()

	var out []TopicCount
	for rows.Next() {
		var tc TopicCount
		var category sql.NullString
		if err := rows.Scan(&tc.Topic, &category, &tc.Count); err != nil {
			return nil, common.StoreErr("scan topic count", err)
		}
		if category.Valid && category.String != "" {
			c := models.Category(category.String)
			tc.Category = &c
		}
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, common.StoreErr("iterate topic counts", err)
	}
	return out, nil
}

// ── Generation ──────────────────────────────────────────

func (s *Store) CreateGeneration(ctx context.Context, userID int64, topics []string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO generation_requests (user_id, topics, status)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		userID, pq.Array(topics), models.GenerationPending,
	).Scan(&id)
	if err != nil {
		return 0, common.StoreErr("create generation request", err)
	}
	return id, nil
}

func (s *Store) FailGeneration(ctx context.Context, genID int64, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE generation_requests
		 SET status = $1, error_message = $2, completed_at = NOW()
		 WHERE id = $3`,
		models.GenerationFailed, errMsg, genID,
	)
	return common.StoreErr("fail generation request", err)
}

// GenerationResult is what a finished generation request records.
type GenerationResult struct {
	ModelUsed    string
	PromptTokens int
	OutputTokens int
}

// SaveGenerated inserts cards and completes the generation request in one
// transaction. Either every card is stored or none is.
func (s *Store) SaveGenerated(ctx context.Context, genID int64, cards []models.NewFlashcard, res GenerationResult) ([]models.Flashcard, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, common.StoreErr("begin tx", err)
	}
	defer tx.Rollback()

	saved := make([]models.Flashcard, 0, len(cards))
	for _, nc := range cards {
		row := tx.QueryRowContext(ctx,
			`INSERT INTO flashcards (id, topic, category, question, answer, difficulty)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING `+selectCols,
			uuid.NewString(), strings.ToLower(nc.Topic), string(nc.Category),
			nc.Question, nc.Answer, string(nc.Difficulty),
		)
		card, err := scanFlashcard(row)
		if err != nil {
			return nil, common.StoreErr("insert flashcard", err)
		}
		saved = append(saved, *card)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE generation_requests
		 SET status = $1, model_used = $2, cards_created = $3,
		     prompt_tokens = $4, output_tokens = $5, completed_at = NOW()
		 WHERE id = $6`,
		models.GenerationCompleted, res.ModelUsed, len(saved),
		res.PromptTokens, res.OutputTokens, genID,
	)
	if err != nil {
		return nil, common.StoreErr("complete generation request", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, common.StoreErr("commit generated flashcards", err)
	}
	return saved, nil
}

// ── Helpers ─────────────────────────────────────────────

type scanner interface {
	Scan(dest ...any) error
}

func scanFlashcard(row scanner) (*models.Flashcard, error) {
	var c models.Flashcard
	var category sql.NullString
	if err := row.Scan(&c.ID, &c.Topic, &category, &c.Question, &c.Answer, &c.Difficulty, &c.CreatedAt); err != nil {
		return nil, err
	}
	if category.Valid && category.String != "" {
		cat := models.Category(category.String)
		c.Category = &cat
	}
	return &c, nil
}

func (s *Store) query(ctx context.Context, op, query string, args ...any) ([]models.Flashcard, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.StoreErr(op, err)
	}
	defer rows.Close()

	cards := []models.Flashcard{}
	for rows.Next() {
		card, err := scanFlashcard(rows)
		if err != nil {
			return nil, common.StoreErr(op, err)
		}
		cards = append(cards, *card)
	}
	if err := rows.Err(); err != nil {
		return nil, common.StoreErr(op, err)
	}
	return cards, nil
}
