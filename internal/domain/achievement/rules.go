// Package achievement evaluates the declarative achievement rule table.
package achievement

import (
	"errors"

	"github.com/phrazzld/flashdeck/internal/domain"
)

// ErrMissingField is returned by a predicate when the stats lack a value
// the rule needs. The evaluator skips such rules instead of failing.
var ErrMissingField = errors.New("stats field unavailable")

// Predicate decides whether a rule holds for the given stats.
type Predicate func(stats domain.UserStats) (bool, error)

// Rule is one entry of the achievement table.
type Rule struct {
	ID          domain.AchievementID
	Name        string
	Description string
	Icon        domain.IconTag
	Predicate   Predicate
}

func streakAtLeast(n int) Predicate {
	return func(s domain.UserStats) (bool, error) {
		return s.Streak >= n, nil
	}
}

func learnedAtLeast(n int) Predicate {
	return func(s domain.UserStats) (bool, error) {
		return s.CardsLearned >= n, nil
	}
}

func correctAtLeast(n int) Predicate {
	return func(s domain.UserStats) (bool, error) {
		return s.TotalCorrect >= n, nil
	}
}

func anyProgramCompleted(s domain.UserStats) (bool, error) {
	if s.CompletedPrograms == nil {
		return false, ErrMissingField
	}
	return len(s.CompletedPrograms) > 0, nil
}

// DefaultRules returns the built-in rule table. The slice is freshly
// allocated on each call.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          domain.AchievementFirstReview,
			Name:        "First Steps",
			Description: "Review your first card",
			Icon:        "footprints",
			Predicate: func(s domain.UserStats) (bool, error) {
				return s.TotalReviews() >= 1, nil
			},
		},
		{ID: domain.AchievementStreak3, Name: "On a Roll", Description: "Study three days in a row", Icon: "flame", Predicate: streakAtLeast(3)},
		{ID: domain.AchievementStreak7, Name: "Week Warrior", Description: "Study seven days in a row", Icon: "calendar", Predicate: streakAtLeast(7)},
		{ID: domain.AchievementStreak30, Name: "Unstoppable", Description: "Study thirty days in a row", Icon: "trophy", Predicate: streakAtLeast(30)},
		{ID: domain.AchievementLearned10, Name: "Quick Learner", Description: "Learn ten cards", Icon: "bulb", Predicate: learnedAtLeast(10)},
		{ID: domain.AchievementLearned50, Name: "Scholar", Description: "Learn fifty cards", Icon: "book", Predicate: learnedAtLeast(50)},
		{ID: domain.AchievementLearned100, Name: "Master", Description: "Learn one hundred cards", Icon: "crown", Predicate: learnedAtLeast(100)},
		{ID: domain.AchievementCorrect100, Name: "Sharpshooter", Description: "Answer one hundred cards correctly", Icon: "target", Predicate: correctAtLeast(100)},
		{ID: domain.AchievementCorrect500, Name: "Marksman", Description: "Answer five hundred cards correctly", Icon: "bullseye", Predicate: correctAtLeast(500)},
		{
			ID:          domain.AchievementProgramComplete,
			Name:        "Graduate",
			Description: "Complete a study program",
			Icon:        "mortarboard",
			Predicate:   anyProgramCompleted,
		},
	}
}
