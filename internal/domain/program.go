package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Program is an ordered collection of cards studied as a unit.
// Generic programs have no owner and are visible to every user.
type Program struct {
	ID          uuid.UUID   `json:"id"`
	UserID      uuid.UUID   `json:"user_id"`
	Name        string      `json:"name"`
	CategoryID  string      `json:"category_id"`
	Subcategory string      `json:"subcategory,omitempty"`
	Difficulty  Difficulty  `json:"difficulty"`
	CardIDs     []uuid.UUID `json:"card_ids"`
	Generic     bool        `json:"generic"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Validate checks the program's own fields. Card existence is verified by
// the store, which has access to the cards.
func (p *Program) Validate() error {
	if p.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if !p.Generic && p.UserID == uuid.Nil {
		return NewValidationError("user_id", "required for non-generic programs", ErrInvalidID)
	}
	if strings.TrimSpace(p.Name) == "" {
		return NewValidationError("name", "cannot be empty", nil)
	}
	if strings.TrimSpace(p.CategoryID) == "" {
		return NewValidationError("category_id", "cannot be empty", nil)
	}
	if !p.Difficulty.Valid() {
		return NewValidationError("difficulty", "unknown difficulty "+string(p.Difficulty), nil)
	}

	seen := make(map[uuid.UUID]struct{}, len(p.CardIDs))
	for _, id := range p.CardIDs {
		if id == uuid.Nil {
			return NewValidationError("card_ids", "cannot contain an empty ID", ErrInvalidID)
		}
		if _, dup := seen[id]; dup {
			return NewValidationError("card_ids", "duplicate card "+id.String(), nil)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Contains reports whether the program lists the given card.
func (p *Program) Contains(cardID uuid.UUID) bool {
	for _, id := range p.CardIDs {
		if id == cardID {
			return true
		}
	}
	return false
}

// VisibleTo reports whether a user may study the program.
func (p *Program) VisibleTo(userID uuid.UUID) bool {
	return p.Generic || p.UserID == userID
}

// Clone returns a deep copy of the program.
func (p Program) Clone() Program {
	out := p
	out.CardIDs = append([]uuid.UUID(nil), p.CardIDs...)
	return out
}
