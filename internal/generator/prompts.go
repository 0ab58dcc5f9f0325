package generator

import (
	"fmt"
	"strings"

	"github.com/flashlearn/backend/internal/models"
)

// difficultyGuidance describes what each difficulty level means for a card.
var difficultyGuidance = map[models.Difficulty]string{
	models.DifficultyEasy:   "recall of a single definition, keyword, or fact",
	models.DifficultyMedium: "explaining how or why something works, or comparing two related ideas",
	models.DifficultyHard:   "applying the concept to a scenario, spotting a subtle pitfall, or reasoning about trade-offs",
}

func SystemPrompt() string {
	return `You are an experienced software engineering instructor who writes study flashcards for developers.

Every flashcard must follow these rules:

QUESTION:
- One clear, self-contained question about the topic
- Answerable without seeing any other card
- No yes/no questions and no "all of the above" style prompts
- Never reference the flashcard set, the learner, or this prompt

ANSWER:
- 1-4 sentences, precise and technically correct
- May include a short inline code snippet when it clarifies the idea
- Must directly answer the question, with no filler

DIFFICULTY:
- easy: ` + difficultyGuidance[models.DifficultyEasy] + `
- medium: ` + difficultyGuidance[models.DifficultyMedium] + `
- hard: ` + difficultyGuidance[models.DifficultyHard] + `

SET COMPOSITION:
- Cover different aspects of the topic; never ask the same thing twice
- Mix difficulties, starting with easier cards

You must respond with valid JSON only. No markdown, no explanation outside the JSON.`
}

func BuildUserPrompt(topic string, count int) string {
	return fmt.Sprintf(`Generate exactly %d flashcards about the topic below.

Topic: %s

Respond with this exact JSON structure:
{
  "flashcards": [
    {"question": "...", "answer": "...", "difficulty": "easy"},
    {"question": "...", "answer": "...", "difficulty": "medium"}
  ]
}

Requirements:
- "difficulty" must be one of: %s
- Every question must be about %q`,
		count, topic, strings.Join(difficultyNames(), ", "), topic)
}

func difficultyNames() []string {
	return []string{
		string(models.DifficultyEasy),
		string(models.DifficultyMedium),
		string(models.DifficultyHard),
	}
}
