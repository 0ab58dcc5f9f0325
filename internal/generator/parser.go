package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flashlearn/backend/internal/common"
	"github.com/flashlearn/backend/internal/models"
)

const (
	maxQuestionLen = 500
	maxAnswerLen   = 2000
)

type GeneratedSet struct {
	Flashcards []GeneratedCard `json:"flashcards"`
}

type GeneratedCard struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Difficulty string `json:"difficulty"`
}

// ParseResponse decodes a model reply into cards. Unknown difficulties become
// medium and repeated questions are dropped; a reply with structural
// problems is rejected as a whole.
func ParseResponse(responseBody string) (*GeneratedSet, error) {
	cleaned := stripCodeFences(responseBody)

	var set GeneratedSet
	if err := json.Unmarshal([]byte(cleaned), &set); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	if err := normalizeSet(&set); err != nil {
		return nil, err
	}

	return &set, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimSpace(s)
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSpace(s)
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	return s
}

func normalizeSet(set *GeneratedSet) error {
	if len(set.Flashcards) == 0 {
		return &common.ValidationError{Errors: []string{"no flashcards in response"}}
	}

	var errs []string
	seen := make(map[string]bool, len(set.Flashcards))
	cards := set.Flashcards[:0]

	for i, c := range set.Flashcards {
		n := i + 1
		c.Question = strings.TrimSpace(c.Question)
		c.Answer = strings.TrimSpace(c.Answer)

		if c.Question == "" {
			errs = append(errs, fmt.Sprintf("flashcard %d: empty question", n))
		}
		if c.Answer == "" {
			errs = append(errs, fmt.Sprintf("flashcard %d: empty answer", n))
		}
		if len(c.Question) > maxQuestionLen {
			errs = append(errs, fmt.Sprintf("flashcard %d: question length %d exceeds %d", n, len(c.Question), maxQuestionLen))
		}
		if len(c.Answer) > maxAnswerLen {
			errs = append(errs, fmt.Sprintf("flashcard %d: answer length %d exceeds %d", n, len(c.Answer), maxAnswerLen))
		}

		c.Difficulty = string(NormalizeDifficulty(c.Difficulty))

		key := strings.ToLower(c.Question)
		if seen[key] {
			continue
		}
		seen[key] = true
		cards = append(cards, c)
	}

	if len(errs) > 0 {
		return &common.ValidationError{Errors: errs}
	}
	set.Flashcards = cards
	return nil
}

// NormalizeDifficulty maps free-form model output onto the difficulty enum.
func NormalizeDifficulty(s string) models.Difficulty {
	d := models.Difficulty(strings.ToLower(strings.TrimSpace(s)))
	if models.ValidDifficulties[d] {
		return d
	}
	switch d {
	case "beginner", "basic", "simple":
		return models.DifficultyEasy
	case "advanced", "difficult", "expert":
		return models.DifficultyHard
	}
	return models.DifficultyMedium
}
