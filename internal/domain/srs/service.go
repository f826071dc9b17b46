package srs

import (
	"errors"
	"slices"
	"time"

	"github.com/phrazzld/flashdeck/internal/domain"
)

// Common errors
var (
	ErrNilCard     = errors.New("flashcard cannot be nil")
	ErrInvalidDays = errors.New("postpone days must be at least 1")
)

// Service defines the interface for scheduler operations.
// Every method is pure: results depend only on the arguments and params.
type Service interface {
	// ApplyReview computes the card's new review state after one answer.
	ApplyReview(card *domain.Flashcard, correct bool, now time.Time) (*domain.Flashcard, error)

	// PostponeReview pushes the next review time forward by a number of days.
	PostponeReview(card *domain.Flashcard, days int, now time.Time) (*domain.Flashcard, error)

	// IsDue reports whether the card should be reviewed at now.
	IsDue(card *domain.Flashcard, now time.Time) bool

	// SelectDue filters cards down to the due ones in review order.
	SelectDue(cards []domain.Flashcard, now time.Time) []domain.Flashcard

	// Params returns a copy of the parameters in use.
	Params() Params
}

// defaultService is the standard implementation of the Service interface
type defaultService struct {
	params *Params
}

// NewDefaultService creates a new scheduler with default parameters
func NewDefaultService() Service {
	return &defaultService{
		params: NewDefaultParams(),
	}
}

// NewServiceWithParams creates a new scheduler with custom parameters.
// It returns an error when the parameters would break scheduling guarantees.
func NewServiceWithParams(params *Params) (Service, error) {
	if params == nil {
		params = NewDefaultParams()
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &defaultService{
		params: params,
	}, nil
}

// ApplyReview implements Service.
func (s *defaultService) ApplyReview(card *domain.Flashcard, correct bool, now time.Time) (*domain.Flashcard, error) {
	if card == nil {
		return nil, ErrNilCard
	}

	return calculateNextCard(card, correct, now, s.params), nil
}

// PostponeReview implements Service. The new date is counted from the later
// of the current next review and now.
func (s *defaultService) PostponeReview(card *domain.Flashcard, days int, now time.Time) (*domain.Flashcard, error) {
	if card == nil {
		return nil, ErrNilCard
	}

	if days < 1 {
		return nil, ErrInvalidDays
	}

	next := card.Clone()

	from := now
	if card.NextReview != nil && card.NextReview.After(now) {
		from = *card.NextReview
	}
	postponed := from.AddDate(0, 0, days)
	next.NextReview = &postponed
	next.UpdatedAt = now

	return &next, nil
}

// IsDue implements Service.
func (s *defaultService) IsDue(card *domain.Flashcard, now time.Time) bool {
	if card == nil {
		return false
	}
	return isDue(card, now, s.params.ReviewLaterPolicy)
}

// SelectDue implements Service.
func (s *defaultService) SelectDue(cards []domain.Flashcard, now time.Time) []domain.Flashcard {
	due := make([]domain.Flashcard, 0, len(cards))
	for i := range cards {
		if isDue(&cards[i], now, s.params.ReviewLaterPolicy) {
			due = append(due, cards[i])
		}
	}

	slices.SortStableFunc(due, func(a, b domain.Flashcard) int {
		return lessDue(&a, &b, s.params.ReviewLaterPolicy)
	})
	return due
}

// Params implements Service.
func (s *defaultService) Params() Params {
	return *s.params
}
