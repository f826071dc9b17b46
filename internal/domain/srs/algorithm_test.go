package srs

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/flashdeck/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCard() *domain.Flashcard {
	return &domain.Flashcard{
		ID:         uuid.New(),
		UserID:     uuid.New(),
		CategoryID: "go",
		Difficulty: domain.DifficultyBeginner,
	}
}

func TestCalculateInterval(t *testing.T) {
	t.Parallel() // Enable parallel execution
	params := NewDefaultParams()
	day := 24 * time.Hour

	testCases := []struct {
		name     string
		streak   int
		correct  bool
		expected time.Duration
	}{
		{name: "incorrect uses lapse interval", streak: 0, correct: false, expected: 10 * time.Minute},
		{name: "first correct uses base interval", streak: 1, correct: true, expected: day},
		{name: "second correct doubles", streak: 2, correct: true, expected: 2 * day},
		{name: "third correct doubles again", streak: 3, correct: true, expected: 4 * day},
		{name: "sixth correct", streak: 6, correct: true, expected: 32 * day},
		{name: "seventh correct is capped", streak: 7, correct: true, expected: 60 * day},
		{name: "very long streak stays capped", streak: 400, correct: true, expected: 60 * day},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, calculateInterval(tc.streak, tc.correct, params))
		})
	}
}

func TestCalculateLearned(t *testing.T) {
	t.Parallel()
	params := NewDefaultParams()

	assert.False(t, calculateLearned(2, 2, params))
	assert.True(t, calculateLearned(3, 3, params))
	assert.True(t, calculateLearned(5, 1, params))
	assert.False(t, calculateLearned(5, 0, params), "a lapse clears the learned flag")
}

func TestCalculateNextCardDoesNotMutateInput(t *testing.T) {
	t.Parallel()
	params := NewDefaultParams()
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	card := newTestCard()

	next := calculateNextCard(card, true, now, params)

	assert.Zero(t, card.CorrectCount)
	assert.Nil(t, card.LastReviewed)
	assert.Equal(t, 1, next.CorrectCount)
	assert.Equal(t, now, *next.LastReviewed)
	assert.Equal(t, now, next.UpdatedAt)
}

func TestIncorrectAlwaysSchedulesSooner(t *testing.T) {
	t.Parallel()
	params := NewDefaultParams()
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	for streak := 0; streak < 12; streak++ {
		card := newTestCard()
		card.CorrectCount = streak
		card.ConsecutiveCorrect = streak

		afterCorrect := calculateNextCard(card, true, now, params)
		afterIncorrect := calculateNextCard(card, false, now, params)

		require.True(t, afterIncorrect.NextReview.Before(*afterCorrect.NextReview),
			"streak %d: incorrect %s should precede correct %s",
			streak, afterIncorrect.NextReview, afterCorrect.NextReview)
	}
}

func TestLearnedScenario(t *testing.T) {
	t.Parallel()
	params := NewDefaultParams()
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	card := newTestCard()

	for i := 0; i < 3; i++ {
		card = calculateNextCard(card, true, now.Add(time.Duration(i)*time.Hour), params)
	}

	assert.Equal(t, 3, card.CorrectCount)
	assert.Equal(t, 3, card.ConsecutiveCorrect)
	assert.True(t, card.Learned)

	card = calculateNextCard(card, false, now.Add(5*time.Hour), params)

	assert.False(t, card.Learned)
	assert.Equal(t, 1, card.IncorrectCount)
	assert.Equal(t, 3, card.CorrectCount)
	assert.Zero(t, card.ConsecutiveCorrect)
	assert.Equal(t, now.Add(5*time.Hour+10*time.Minute), *card.NextReview)
}

func TestIsDue(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	reviewed := func(next *time.Time, later bool) *domain.Flashcard {
		card := newTestCard()
		card.LastReviewed = &past
		card.NextReview = next
		card.ReviewLater = later
		return card
	}

	testCases := []struct {
		name     string
		card     *domain.Flashcard
		policy   ReviewLaterPolicy
		expected bool
	}{
		{name: "never reviewed", card: newTestCard(), policy: ReviewLaterDeprioritize, expected: true},
		{name: "next review in the past", card: reviewed(&past, false), policy: ReviewLaterDeprioritize, expected: true},
		{name: "next review exactly now", card: reviewed(&now, false), policy: ReviewLaterDeprioritize, expected: true},
		{name: "next review in the future", card: reviewed(&future, false), policy: ReviewLaterDeprioritize, expected: false},
		{name: "flagged and overdue with deprioritize", card: reviewed(&past, true), policy: ReviewLaterDeprioritize, expected: true},
		{name: "flagged and overdue with include", card: reviewed(&past, true), policy: ReviewLaterInclude, expected: true},
		{name: "flagged and overdue with exclude", card: reviewed(&past, true), policy: ReviewLaterExclude, expected: false},
		{name: "flagged and not yet due", card: reviewed(&future, true), policy: ReviewLaterInclude, expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, isDue(tc.card, now, tc.policy))
		})
	}
}
