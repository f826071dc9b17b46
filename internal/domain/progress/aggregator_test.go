package progress

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/flashdeck/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func summaryOf(correct, incorrect int) domain.SessionSummary {
	outcomes := make([]domain.CardOutcome, 0, correct+incorrect)
	for i := 0; i < correct; i++ {
		outcomes = append(outcomes, domain.CardOutcome{CardID: uuid.New(), Correct: true})
	}
	for i := 0; i < incorrect; i++ {
		outcomes = append(outcomes, domain.CardOutcome{CardID: uuid.New(), Correct: false})
	}
	return domain.Summarize(outcomes)
}

func TestApplyAddsTotals(t *testing.T) {
	t.Parallel()
	agg := NewAggregator(time.UTC)
	now := time.Date(2025, 4, 2, 12, 0, 0, 0, time.UTC)
	prev := domain.NewUserStats(uuid.New())
	prev.TotalCorrect = 10
	prev.TotalIncorrect = 4

	next := agg.Apply(prev, Input{Summary: summaryOf(3, 2), LearnedCount: 7, Now: now})

	assert.Equal(t, 13, next.TotalCorrect)
	assert.Equal(t, 6, next.TotalIncorrect)
	assert.Equal(t, 7, next.CardsLearned)
	assert.Equal(t, now, *next.LastActivity)
	assert.Equal(t, 1, next.Streak)
	assert.Equal(t, 10, prev.TotalCorrect, "input must not change")
}

func TestApplyEmptySummaryIsNoop(t *testing.T) {
	t.Parallel()
	agg := NewAggregator(time.UTC)
	prev := domain.NewUserStats(uuid.New())
	prev.TotalCorrect = 5
	prev.Streak = 4

	next := agg.Apply(prev, Input{Summary: domain.SessionSummary{}, LearnedCount: 99, Now: time.Now()})

	assert.Equal(t, prev, next)
}

func TestTotalsAreMonotone(t *testing.T) {
	t.Parallel()
	agg := NewAggregator(time.UTC)
	now := time.Date(2025, 4, 2, 12, 0, 0, 0, time.UTC)
	stats := domain.NewUserStats(uuid.New())

	for i, s := range []domain.SessionSummary{summaryOf(1, 0), summaryOf(0, 3), summaryOf(2, 2), summaryOf(0, 0)} {
		next := agg.Apply(stats, Input{Summary: s, LearnedCount: i % 2, Now: now.Add(time.Duration(i) * time.Hour)})
		require.GreaterOrEqual(t, next.TotalCorrect, stats.TotalCorrect)
		require.GreaterOrEqual(t, next.TotalIncorrect, stats.TotalIncorrect)
		stats = next
	}

	assert.Equal(t, 3, stats.TotalCorrect)
	assert.Equal(t, 5, stats.TotalIncorrect)
}

func TestStreakLaw(t *testing.T) {
	t.Parallel()
	agg := NewAggregator(time.UTC)
	day := time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)
	stats := domain.NewUserStats(uuid.New())

	apply := func(at time.Time) {
		stats = agg.Apply(stats, Input{Summary: summaryOf(1, 0), Now: at})
	}

	apply(day)
	assert.Equal(t, 1, stats.Streak, "day D")

	apply(day.Add(6 * time.Hour))
	assert.Equal(t, 1, stats.Streak, "same day keeps the streak")

	apply(day.AddDate(0, 0, 1))
	assert.Equal(t, 2, stats.Streak, "day D+1")

	apply(day.AddDate(0, 0, 3))
	assert.Equal(t, 1, stats.Streak, "day D+3 resets")
}

func TestNextStreak(t *testing.T) {
	t.Parallel()
	agg := NewAggregator(time.UTC)
	now := time.Date(2025, 4, 2, 18, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		ts := now.Add(d)
		return &ts
	}

	tests := []struct {
		name         string
		streak       int
		lastActivity *time.Time
		want         int
	}{
		{name: "first activity", streak: 0, lastActivity: nil, want: 1},
		{name: "same day", streak: 3, lastActivity: at(-2 * time.Hour), want: 3},
		{name: "same day with zero streak", streak: 0, lastActivity: at(-2 * time.Hour), want: 0},
		{name: "next day", streak: 3, lastActivity: at(-24 * time.Hour), want: 4},
		{name: "gap", streak: 3, lastActivity: at(-72 * time.Hour), want: 1},
		{name: "clock moved backwards", streak: 2, lastActivity: at(48 * time.Hour), want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, agg.nextStreak(tt.streak, tt.lastActivity, now))
		})
	}
}

func TestStreakUsesCalendarDaysInLocation(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC-5", -5*60*60)
	agg := NewAggregator(loc)

	// 23:30 local and 00:30 local next day are one hour apart but different days
	late := time.Date(2025, 4, 2, 23, 30, 0, 0, loc)
	early := late.Add(time.Hour)

	assert.Equal(t, 1, agg.DaysBetween(late, early))
	assert.Equal(t, 0, NewAggregator(time.UTC).DaysBetween(late.Add(-6*time.Hour), early.Add(-6*time.Hour)))
	assert.Equal(t, time.Date(2025, 4, 3, 5, 0, 0, 0, time.UTC), agg.DayStart(early))
}

func TestCompletedProgramsAreASet(t *testing.T) {
	t.Parallel()
	agg := NewAggregator(nil)
	now := time.Now().UTC()
	programID := uuid.New()
	stats := domain.NewUserStats(uuid.New())

	stats = agg.Apply(stats, Input{Summary: summaryOf(1, 0), CompletedPrograms: []uuid.UUID{programID}, Now: now})
	stats = agg.Apply(stats, Input{Summary: summaryOf(1, 0), CompletedPrograms: []uuid.UUID{programID}, Now: now})

	assert.Equal(t, []uuid.UUID{programID}, stats.CompletedPrograms)
}

func TestAppendAchievements(t *testing.T) {
	t.Parallel()
	stats := domain.NewUserStats(uuid.New())
	earnedAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	stats.Achievements = []domain.UserAchievement{{ID: domain.AchievementFirstReview, DateEarned: earnedAt, Displayed: true}}

	next := AppendAchievements(stats, []domain.UserAchievement{
		{ID: domain.AchievementFirstReview, DateEarned: time.Now()},
		{ID: domain.AchievementStreak3, DateEarned: time.Now()},
	})

	require.Len(t, next.Achievements, 2)
	assert.Equal(t, earnedAt, next.Achievements[0].DateEarned)
	assert.True(t, next.Achievements[0].Displayed)
	assert.Equal(t, domain.AchievementStreak3, next.Achievements[1].ID)
	assert.Len(t, stats.Achievements, 1)
}
