package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Difficulty is the fixed difficulty tier of a card or program.
type Difficulty string

// Supported difficulty tiers.
const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
	DifficultyExpert       Difficulty = "expert"
)

// Valid reports whether d is one of the supported tiers.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced, DifficultyExpert:
		return true
	default:
		return false
	}
}

// ParseDifficulty converts a case-insensitive string into a Difficulty.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", NewValidationError("difficulty", "must be one of beginner, intermediate, advanced, expert", nil)
	}
	return d, nil
}

// ReviewState holds the per-card review metadata maintained by the scheduler.
type ReviewState struct {
	LastReviewed       *time.Time `json:"last_reviewed,omitempty"`
	NextReview         *time.Time `json:"next_review,omitempty"`
	CorrectCount       int        `json:"correct_count"`
	IncorrectCount     int        `json:"incorrect_count"`
	ConsecutiveCorrect int        `json:"consecutive_correct"`
	Learned            bool       `json:"learned"`
	ReviewLater        bool       `json:"review_later"`
}

// Moderation carries community reporting metadata. The engine never
// interprets it; it is persisted and synchronized as-is.
type Moderation struct {
	ReportCount   int      `json:"report_count"`
	ReportReasons []string `json:"report_reasons,omitempty"`
	Approved      bool     `json:"approved"`
}

// Flashcard is a single question/answer pair owned by a user.
type Flashcard struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	CategoryID  string     `json:"category_id"`
	Subcategory string     `json:"subcategory,omitempty"`
	ProgramID   *uuid.UUID `json:"program_id,omitempty"`
	Question    string     `json:"question"`
	Answer      string     `json:"answer"`
	Difficulty  Difficulty `json:"difficulty"`
	ReviewState
	Moderation
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// DeletedAt is set on tombstones so a removal can be synchronized.
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// NewFlashcard creates a validated card with fresh review metadata.
func NewFlashcard(
	userID uuid.UUID,
	categoryID, subcategory string,
	question, answer string,
	difficulty Difficulty,
	now time.Time,
) (*Flashcard, error) {
	card := &Flashcard{
		ID:          uuid.New(),
		UserID:      userID,
		CategoryID:  categoryID,
		Subcategory: subcategory,
		Question:    question,
		Answer:      answer,
		Difficulty:  difficulty,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}

	if err := card.Validate(); err != nil {
		return nil, err
	}

	return card, nil
}

// Validate checks identity, classification and review metadata invariants.
func (c *Flashcard) Validate() error {
	if c.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if c.UserID == uuid.Nil {
		return NewValidationError("user_id", "cannot be empty", ErrInvalidID)
	}
	if strings.TrimSpace(c.CategoryID) == "" {
		return NewValidationError("category_id", "cannot be empty", nil)
	}
	if !c.Difficulty.Valid() {
		return NewValidationError("difficulty", "unknown difficulty "+string(c.Difficulty), nil)
	}
	if c.CorrectCount < 0 || c.IncorrectCount < 0 || c.ConsecutiveCorrect < 0 {
		return NewValidationError("review_state", "counters cannot be negative", nil)
	}
	if c.ConsecutiveCorrect > c.CorrectCount {
		return NewValidationError("consecutive_correct", "cannot exceed correct_count", nil)
	}
	if c.LastReviewed != nil && c.NextReview != nil && c.NextReview.Before(*c.LastReviewed) {
		return NewValidationError("next_review", "cannot precede last_reviewed", nil)
	}
	if c.ReportCount < 0 {
		return NewValidationError("report_count", "cannot be negative", nil)
	}
	return nil
}

// ReviewCount returns the number of completed reviews.
func (c *Flashcard) ReviewCount() int {
	return c.CorrectCount + c.IncorrectCount
}

// Reviewed reports whether the card has ever been reviewed.
func (c *Flashcard) Reviewed() bool {
	return c.LastReviewed != nil
}

// Deleted reports whether the card is a tombstone.
func (c *Flashcard) Deleted() bool {
	return c.DeletedAt != nil
}

// MarkDeleted turns the card into a tombstone stamped at.
func (c *Flashcard) MarkDeleted(at time.Time) {
	at = at.UTC()
	c.DeletedAt = &at
	c.UpdatedAt = at
}

// Clone returns a deep copy so callers can modify the result freely.
func (c Flashcard) Clone() Flashcard {
	out := c
	if c.ProgramID != nil {
		id := *c.ProgramID
		out.ProgramID = &id
	}
	if c.LastReviewed != nil {
		t := *c.LastReviewed
		out.LastReviewed = &t
	}
	if c.NextReview != nil {
		t := *c.NextReview
		out.NextReview = &t
	}
	if c.ReportReasons != nil {
		out.ReportReasons = append([]string(nil), c.ReportReasons...)
	}
	if c.DeletedAt != nil {
		t := *c.DeletedAt
		out.DeletedAt = &t
	}
	return out
}

// CloneForImport copies the card content for a new owner. The copy gets a
// fresh ID, no program membership, and zeroed review and moderation metadata.
func (c Flashcard) CloneForImport(owner uuid.UUID, now time.Time) Flashcard {
	return Flashcard{
		ID:          uuid.New(),
		UserID:      owner,
		CategoryID:  c.CategoryID,
		Subcategory: c.Subcategory,
		Question:    c.Question,
		Answer:      c.Answer,
		Difficulty:  c.Difficulty,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
}
