package models

import "time"

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

var ValidDifficulties = map[Difficulty]bool{
	DifficultyEasy:   true,
	DifficultyMedium: true,
	DifficultyHard:   true,
}

// Category is the coarse grouping label attached to a topic.
type Category string

const (
	CategoryProgramming    Category = "Programming"
	CategoryWeb            Category = "Web Development"
	CategoryReact          Category = "React"
	CategoryBackend        Category = "Backend"
	CategoryDatabase       Category = "Database"
	CategoryDevOps         Category = "DevOps"
	CategoryCloud          Category = "Cloud"
	CategoryDataScience    Category = "Data Science"
	CategoryMobile         Category = "Mobile"
	CategorySecurity       Category = "Security"
	CategoryCSFundamentals Category = "CS Fundamentals"
)

type Flashcard struct {
	ID         string     `json:"id"`
	Topic      string     `json:"topic"`
	Category   *Category  `json:"category,omitempty"`
	Question   string     `json:"question"`
	Answer     string     `json:"answer"`
	Difficulty Difficulty `json:"difficulty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewFlashcard is the insert shape produced by generation.
type NewFlashcard struct {
	Topic      string
	Category   Category
	Question   string
	Answer     string
	Difficulty Difficulty
}

type FlashcardFilter struct {
	Topic      string
	Category   string
	Difficulty string
	Limit      int
	Offset     int
}

type TopicSummary struct {
	Topic     string   `json:"topic"`
	Category  Category `json:"category"`
	Icon      string   `json:"icon"`
	CardCount int      `json:"card_count"`
}

type CategorySummary struct {
	Category   Category `json:"category"`
	Icon       string   `json:"icon"`
	TopicCount int      `json:"topic_count"`
	CardCount  int      `json:"card_count"`
}

// ── Generation ───────────────────────────────────────────

type GenerationStatus string

const (
	GenerationPending   GenerationStatus = "pending"
	GenerationCompleted GenerationStatus = "completed"
	GenerationFailed    GenerationStatus = "failed"
)

type GenerateRequest struct {
	Topic  string   `json:"topic,omitempty"`
	Topics []string `json:"topics,omitempty"`
	Count  int      `json:"count,omitempty"`
}

type GenerateResponse struct {
	Flashcards   []Flashcard `json:"flashcards"`
	Topics       []string    `json:"topics"`
	ModelUsed    string      `json:"model_used"`
	PromptTokens int         `json:"prompt_tokens"`
	OutputTokens int         `json:"output_tokens"`
}

type GenerationRecord struct {
	ID           int64            `json:"id"`
	UserID       int64            `json:"user_id"`
	Topics       []string         `json:"topics"`
	Status       GenerationStatus `json:"status"`
	ModelUsed    string           `json:"model_used"`
	CardsCreated int              `json:"cards_created"`
	PromptTokens int              `json:"prompt_tokens"`
	OutputTokens int              `json:"output_tokens"`
	ErrorMessage *string          `json:"error_message,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}
