package models

import "time"

type ProgressRecord struct {
	UserID       int64     `json:"user_id"`
	FlashcardID  string    `json:"flashcard_id"`
	Attempts     int       `json:"attempts"`
	IsMastered   bool      `json:"is_mastered"`
	LastReviewed time.Time `json:"last_reviewed"`
}

type UpsertProgressRequest struct {
	FlashcardID string `json:"flashcard_id"`
	IsMastered  bool   `json:"is_mastered"`
}

// DerivedStats is recomputed from progress rows on every request and never
// stored.
type DerivedStats struct {
	TotalCards     int             `json:"total_cards"`
	MasteredCards  int             `json:"mastered_cards"`
	AttemptedCards int             `json:"attempted_cards"`
	Accuracy       int             `json:"accuracy"`
	Streak         int             `json:"streak"`
	StudyTime      int             `json:"study_time"`
	RecentActivity []DailyActivity `json:"recent_activity"`
}

type DailyActivity struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int    `json:"count"`
}
