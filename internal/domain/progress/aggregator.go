// Package progress folds session outcomes into a user's aggregate stats.
// Everything here is pure; callers supply the current stats, the session
// summary and the values derived from the store.
package progress

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/flashdeck/internal/domain"
)

// Input carries everything a single flush contributes to the stats.
type Input struct {
	Summary domain.SessionSummary

	// LearnedCount is the number of learned cards counted after the
	// scheduler ran, inside the same transaction.
	LearnedCount int

	// CompletedPrograms lists programs that became fully learned.
	CompletedPrograms []uuid.UUID

	Now time.Time
}

// Aggregator applies session results to user stats. Streak days are
// computed as calendar days in its location.
type Aggregator struct {
	loc *time.Location
}

// NewAggregator creates an Aggregator. A nil location means UTC.
func NewAggregator(loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{loc: loc}
}

// Apply returns the stats after folding in one session. prev is not
// modified. An empty summary returns prev unchanged.
func (a *Aggregator) Apply(prev domain.UserStats, in Input) domain.UserStats {
	next := prev.Clone()
	if in.Summary.Empty() {
		return next
	}

	next.TotalCorrect += in.Summary.CorrectCount
	next.TotalIncorrect += in.Summary.IncorrectCount
	next.CardsLearned = in.LearnedCount
	next.Streak = a.nextStreak(prev.Streak, prev.LastActivity, in.Now)

	now := in.Now
	next.LastActivity = &now
	next.UpdatedAt = in.Now

	for _, id := range in.CompletedPrograms {
		if !slices.Contains(next.CompletedPrograms, id) {
			next.CompletedPrograms = append(next.CompletedPrograms, id)
		}
	}

	return next
}

// nextStreak implements the calendar-day streak law: activity on the same
// day keeps the streak unchanged, on the next day extends it, and after a
// gap restarts it at one.
func (a *Aggregator) nextStreak(streak int, lastActivity *time.Time, now time.Time) int {
	if lastActivity == nil {
		return 1
	}

	switch gap := a.DaysBetween(*lastActivity, now); {
	case gap == 0:
		return streak
	case gap == 1:
		return streak + 1
	case gap < 0:
		// clock moved backwards; keep what we have
		return streak
	default:
		return 1
	}
}

// DaysBetween returns the number of calendar days from a to b in the
// aggregator's location.
func (a *Aggregator) DaysBetween(from, to time.Time) int {
	return civilDay(to, a.loc) - civilDay(from, a.loc)
}

// DayStart returns the start of t's calendar day in the aggregator's
// location, converted to UTC.
func (a *Aggregator) DayStart(t time.Time) time.Time {
	local := t.In(a.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, a.loc).UTC()
}

// civilDay maps t to a day number that is independent of DST shifts.
func civilDay(t time.Time, loc *time.Location) int {
	local := t.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	return int(midnight.Unix() / 86400)
}

// AppendAchievements adds newly earned achievements, skipping any already
// present. Existing entries are never edited or removed.
func AppendAchievements(stats domain.UserStats, earned []domain.UserAchievement) domain.UserStats {
	next := stats.Clone()
	for _, a := range earned {
		if !next.HasAchievement(a.ID) {
			next.Achievements = append(next.Achievements, a)
		}
	}
	return next
}
