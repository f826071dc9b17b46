package progress

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/flashdeck/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeStats(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	day1 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)
	programA, programB := uuid.New(), uuid.New()

	local := domain.NewUserStats(userID)
	local.TotalCorrect = 12
	local.TotalIncorrect = 1
	local.CardsLearned = 3
	local.Streak = 2
	local.LastActivity = &day1
	local.UpdatedAt = day1
	local.CompletedPrograms = []uuid.UUID{programA}
	local.Achievements = []domain.UserAchievement{
		{ID: domain.AchievementFirstReview, DateEarned: day1, Displayed: true},
	}

	remote := domain.NewUserStats(userID)
	remote.TotalCorrect = 10
	remote.TotalIncorrect = 4
	remote.CardsLearned = 2
	remote.Streak = 5
	remote.LastActivity = &day2
	remote.UpdatedAt = day2
	remote.CompletedPrograms = []uuid.UUID{programB}
	remote.Achievements = []domain.UserAchievement{
		{ID: domain.AchievementFirstReview, DateEarned: day2},
		{ID: domain.AchievementStreak3, DateEarned: day2},
	}

	merged := MergeStats(local, remote)

	assert.Equal(t, 12, merged.TotalCorrect)
	assert.Equal(t, 4, merged.TotalIncorrect)
	assert.Equal(t, 3, merged.CardsLearned)
	assert.Equal(t, 5, merged.Streak, "streak follows the newer copy")
	require.NotNil(t, merged.LastActivity)
	assert.Equal(t, day2, *merged.LastActivity)
	assert.Equal(t, day2, merged.UpdatedAt)
	assert.ElementsMatch(t, []uuid.UUID{programA, programB}, merged.CompletedPrograms)

	require.Len(t, merged.Achievements, 2)
	for _, a := range merged.Achievements {
		if a.ID == domain.AchievementFirstReview {
			assert.Equal(t, day1, a.DateEarned, "earliest earn date wins")
			assert.True(t, a.Displayed)
		}
	}

	assert.True(t, Covers(merged, local))
	assert.True(t, Covers(merged, remote))
	assert.False(t, Covers(remote, merged))

	// inputs untouched
	assert.Len(t, remote.Achievements, 2)
	assert.False(t, remote.Achievements[0].Displayed)
}

func TestMergeStatsIsSymmetricOnCounters(t *testing.T) {
	t.Parallel()

	a := domain.NewUserStats(uuid.New())
	a.TotalCorrect = 3
	a.UpdatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := a.Clone()
	b.TotalIncorrect = 9
	b.UpdatedAt = a.UpdatedAt.Add(time.Hour)

	ab := MergeStats(a, b)
	ba := MergeStats(b, a)

	assert.Equal(t, ab.TotalCorrect, ba.TotalCorrect)
	assert.Equal(t, ab.TotalIncorrect, ba.TotalIncorrect)
	assert.Equal(t, ab.UpdatedAt, ba.UpdatedAt)
}
