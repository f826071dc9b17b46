package domain

import (
	"time"

	"github.com/google/uuid"
)

// StudyScope selects the cards a session works through. CategoryID is
// required; the other filters narrow it further.
type StudyScope struct {
	CategoryID string      `json:"category_id"`
	ProgramID  *uuid.UUID  `json:"program_id,omitempty"`
	Difficulty *Difficulty `json:"difficulty,omitempty"`
	Topic      string      `json:"topic,omitempty"`
}

// Validate checks that the scope names a category and a valid difficulty.
func (s StudyScope) Validate() error {
	if s.CategoryID == "" {
		return NewValidationError("category_id", "cannot be empty", nil)
	}
	if s.Difficulty != nil && !s.Difficulty.Valid() {
		return NewValidationError("difficulty", "unknown difficulty "+string(*s.Difficulty), nil)
	}
	return nil
}

// Matches reports whether a card falls inside the scope.
func (s StudyScope) Matches(card *Flashcard) bool {
	if card.CategoryID != s.CategoryID {
		return false
	}
	if s.Topic != "" && card.Subcategory != s.Topic {
		return false
	}
	if s.Difficulty != nil && card.Difficulty != *s.Difficulty {
		return false
	}
	return true
}

// CardOutcome is one recorded answer.
type CardOutcome struct {
	CardID     uuid.UUID `json:"card_id"`
	Correct    bool      `json:"correct"`
	ReviewedAt time.Time `json:"reviewed_at"`
}

// SessionSummary totals the outcomes folded in by one flush.
type SessionSummary struct {
	CorrectCount   int           `json:"correct_count"`
	IncorrectCount int           `json:"incorrect_count"`
	Outcomes       []CardOutcome `json:"outcomes"`
}

// Summarize builds a summary from an ordered outcome log.
func Summarize(outcomes []CardOutcome) SessionSummary {
	summary := SessionSummary{Outcomes: append([]CardOutcome{}, outcomes...)}
	for _, o := range outcomes {
		if o.Correct {
			summary.CorrectCount++
		} else {
			summary.IncorrectCount++
		}
	}
	return summary
}

// Empty reports whether the summary contains no outcomes.
func (s SessionSummary) Empty() bool {
	return len(s.Outcomes) == 0
}

// Share is a published set of cards that other users can import by code.
type Share struct {
	Code      string      `json:"code"`
	OwnerID   uuid.UUID   `json:"owner_id"`
	CardIDs   []uuid.UUID `json:"card_ids"`
	CreatedAt time.Time   `json:"created_at"`
}
