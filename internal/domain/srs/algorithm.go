package srs

import (
	"time"

	"github.com/phrazzld/flashdeck/internal/domain"
)

// calculateInterval returns the gap until the next review.
//
// A correct answer that brings the streak to n schedules the card
// BaseInterval * 2^(n-1) ahead, capped at MaxInterval. An incorrect answer
// always schedules it LapseInterval ahead, which Params.Validate keeps
// shorter than any correct interval.
func calculateInterval(consecutiveCorrect int, correct bool, params *Params) time.Duration {
	if !correct {
		return params.LapseInterval
	}

	interval := params.BaseInterval
	for i := 1; i < consecutiveCorrect; i++ {
		if interval >= params.MaxInterval/2 {
			return params.MaxInterval
		}
		interval *= 2
	}

	if interval > params.MaxInterval {
		return params.MaxInterval
	}
	return interval
}

// calculateLearned derives the learned flag from the counters.
// A card is learned once it has enough correct answers and is not
// currently in a lapse.
func calculateLearned(correctCount, consecutiveCorrect int, params *Params) bool {
	return correctCount >= params.LearnedThreshold && consecutiveCorrect > 0
}

// calculateNextCard returns a copy of card updated for one review outcome.
// The input is never modified.
func calculateNextCard(card *domain.Flashcard, correct bool, now time.Time, params *Params) *domain.Flashcard {
	next := card.Clone()

	if correct {
		next.CorrectCount++
		next.ConsecutiveCorrect++
	} else {
		next.IncorrectCount++
		next.ConsecutiveCorrect = 0
	}

	reviewedAt := now
	nextReview := now.Add(calculateInterval(next.ConsecutiveCorrect, correct, params))

	next.LastReviewed = &reviewedAt
	next.NextReview = &nextReview
	next.Learned = calculateLearned(next.CorrectCount, next.ConsecutiveCorrect, params)
	next.UpdatedAt = now

	return &next
}

// isDue reports whether card should be offered for review at now.
func isDue(card *domain.Flashcard, now time.Time, policy ReviewLaterPolicy) bool {
	if card.ReviewLater && policy == ReviewLaterExclude {
		return false
	}
	if card.NextReview == nil {
		return true
	}
	if !card.ReviewLater && !card.Reviewed() {
		return true
	}
	return !card.NextReview.After(now)
}

// lessDue orders due cards: deprioritized flags last, then never-scheduled
// cards, then earliest next review, then creation time and ID for stability.
func lessDue(a, b *domain.Flashcard, policy ReviewLaterPolicy) int {
	if policy == ReviewLaterDeprioritize && a.ReviewLater != b.ReviewLater {
		if a.ReviewLater {
			return 1
		}
		return -1
	}

	switch {
	case a.NextReview == nil && b.NextReview != nil:
		return -1
	case a.NextReview != nil && b.NextReview == nil:
		return 1
	case a.NextReview != nil && b.NextReview != nil && !a.NextReview.Equal(*b.NextReview):
		return a.NextReview.Compare(*b.NextReview)
	}

	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return compareIDs(a, b)
}

func compareIDs(a, b *domain.Flashcard) int {
	as, bs := a.ID.String(), b.ID.String()
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}
