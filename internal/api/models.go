package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/flashdeck/internal/domain"
	"github.com/phrazzld/flashdeck/internal/service/deck"
	"github.com/phrazzld/flashdeck/internal/service/study"
)

// CardRequest defines the payload for creating or replacing a card.
type CardRequest struct {
	CategoryID  string     `json:"category_id" validate:"required,max=100"`
	Subcategory string     `json:"subcategory" validate:"max=100"`
	Question    string     `json:"question"    validate:"required,max=4000"`
	Answer      string     `json:"answer"      validate:"required,max=4000"`
	Difficulty  string     `json:"difficulty"  validate:"required,oneof=beginner intermediate advanced expert"`
	ProgramID   *uuid.UUID `json:"program_id,omitempty"`
}

func (req CardRequest) toInput() deck.CardInput {
	return deck.CardInput{
		CategoryID:  req.CategoryID,
		Subcategory: req.Subcategory,
		Question:    req.Question,
		Answer:      req.Answer,
		Difficulty:  domain.Difficulty(req.Difficulty),
		ProgramID:   req.ProgramID,
	}
}

// ReviewLaterRequest sets or clears a card's review-later flag.
type ReviewLaterRequest struct {
	ReviewLater *bool `json:"review_later" validate:"required"`
}

// PostponeRequest defines the payload for postponing a card's next review.
type PostponeRequest struct {
	Days int `json:"days" validate:"required,min=1"`
}

// ProgramRequest defines the payload for saving a program.
type ProgramRequest struct {
	Name        string      `json:"name"        validate:"required,max=200"`
	CategoryID  string      `json:"category_id" validate:"required,max=100"`
	Subcategory string      `json:"subcategory" validate:"max=100"`
	Difficulty  string      `json:"difficulty"  validate:"required,oneof=beginner intermediate advanced expert"`
	CardIDs     []uuid.UUID `json:"card_ids"    validate:"required,min=1,dive,required"`
}

func (req ProgramRequest) toProgram(id uuid.UUID) *domain.Program {
	return &domain.Program{
		ID:          id,
		Name:        req.Name,
		CategoryID:  req.CategoryID,
		Subcategory: req.Subcategory,
		Difficulty:  domain.Difficulty(req.Difficulty),
		CardIDs:     req.CardIDs,
	}
}

// StartSessionRequest selects the cards a study session draws from.
type StartSessionRequest struct {
	CategoryID string     `json:"category_id" validate:"required,max=100"`
	ProgramID  *uuid.UUID `json:"program_id,omitempty"`
	Difficulty string     `json:"difficulty,omitempty" validate:"omitempty,oneof=beginner intermediate advanced expert"`
	Topic      string     `json:"topic,omitempty" validate:"max=100"`
}

func (req StartSessionRequest) toScope() domain.StudyScope {
	scope := domain.StudyScope{
		CategoryID: req.CategoryID,
		ProgramID:  req.ProgramID,
		Topic:      req.Topic,
	}
	if req.Difficulty != "" {
		d := domain.Difficulty(req.Difficulty)
		scope.Difficulty = &d
	}
	return scope
}

// SessionResponse describes an open study session.
type SessionResponse struct {
	ID        uuid.UUID         `json:"id"`
	Scope     domain.StudyScope `json:"scope"`
	StartedAt time.Time         `json:"started_at"`
	Pending   int               `json:"pending"`
}

func sessionToResponse(s *study.Session) SessionResponse {
	return SessionResponse{
		ID:        s.ID(),
		Scope:     s.Scope(),
		StartedAt: s.StartedAt(),
		Pending:   len(s.Pending()),
	}
}

// OutcomeRequest records one answer in a session.
type OutcomeRequest struct {
	CardID  uuid.UUID `json:"card_id" validate:"required"`
	Correct *bool     `json:"correct" validate:"required"`
}

// ShareRequest lists the cards to share.
type ShareRequest struct {
	CardIDs []uuid.UUID `json:"card_ids" validate:"required,min=1,dive,required"`
}

// ShareResponse carries a newly created share code.
type ShareResponse struct {
	Code      string    `json:"code"`
	CardCount int       `json:"card_count"`
	CreatedAt time.Time `json:"created_at"`
}
