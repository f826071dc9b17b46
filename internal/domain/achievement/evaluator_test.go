package achievement

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/flashdeck/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(achievements []domain.UserAchievement) []domain.AchievementID {
	out := make([]domain.AchievementID, 0, len(achievements))
	for _, a := range achievements {
		out = append(out, a.ID)
	}
	return out
}

func TestEvaluateFiresOnTransition(t *testing.T) {
	t.Parallel()
	evaluator := NewEvaluator(nil, nil)
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	prev := domain.NewUserStats(uuid.New())
	prev.Streak = 2
	updated := prev.Clone()
	updated.Streak = 3
	updated.TotalCorrect = 1

	earned := evaluator.Evaluate(prev, updated, now)

	assert.ElementsMatch(t,
		[]domain.AchievementID{domain.AchievementFirstReview, domain.AchievementStreak3},
		ids(earned))
	for _, a := range earned {
		assert.False(t, a.Displayed)
		assert.Equal(t, now, a.DateEarned)
		assert.NotEmpty(t, a.Name)
	}
}

func TestEvaluateDoesNotRefireWhenAlreadyTrue(t *testing.T) {
	t.Parallel()
	evaluator := NewEvaluator(nil, nil)

	prev := domain.NewUserStats(uuid.New())
	prev.Streak = 5
	prev.TotalCorrect = 3
	updated := prev.Clone()
	updated.Streak = 6
	updated.TotalCorrect = 4

	assert.Empty(t, evaluator.Evaluate(prev, updated, time.Now()))
}

func TestEvaluateSkipsHeldAchievements(t *testing.T) {
	t.Parallel()
	evaluator := NewEvaluator(nil, nil)

	// streak dropped and climbed back to 3; the achievement is already held
	prev := domain.NewUserStats(uuid.New())
	prev.Streak = 2
	prev.TotalCorrect = 10
	prev.Achievements = []domain.UserAchievement{{ID: domain.AchievementStreak3}}
	updated := prev.Clone()
	updated.Streak = 3

	assert.Empty(t, evaluator.Evaluate(prev, updated, time.Now()))
}

func TestEvaluateSkipsFailingPredicates(t *testing.T) {
	t.Parallel()
	evaluator := NewEvaluator(nil, nil)

	prev := domain.UserStats{UserID: uuid.New()}
	updated := prev
	updated.CardsLearned = 10

	earned := evaluator.Evaluate(prev, updated, time.Now())

	// program_complete cannot be evaluated without a completed program list
	require.Equal(t, []domain.AchievementID{domain.AchievementLearned10}, ids(earned))
}

func TestEvaluateProgramComplete(t *testing.T) {
	t.Parallel()
	evaluator := NewEvaluator(nil, nil)

	prev := domain.NewUserStats(uuid.New())
	prev.TotalIncorrect = 1
	updated := prev.Clone()
	updated.CompletedPrograms = append(updated.CompletedPrograms, uuid.New())

	assert.Equal(t,
		[]domain.AchievementID{domain.AchievementProgramComplete},
		ids(evaluator.Evaluate(prev, updated, time.Now())))
}

func TestDefaultRulesHaveUniqueIDs(t *testing.T) {
	t.Parallel()
	seen := map[domain.AchievementID]bool{}
	for _, rule := range DefaultRules() {
		assert.False(t, seen[rule.ID], "duplicate rule %s", rule.ID)
		assert.NotNil(t, rule.Predicate)
		seen[rule.ID] = true
	}
	assert.Len(t, seen, 10)
}

func TestCustomRuleTable(t *testing.T) {
	t.Parallel()
	rules := []Rule{{
		ID:   "night_owl",
		Name: "Night Owl",
		Predicate: func(s domain.UserStats) (bool, error) {
			return s.TotalIncorrect > 2, nil
		},
	}}
	evaluator := NewEvaluator(rules, nil)

	prev := domain.NewUserStats(uuid.New())
	updated := prev.Clone()
	updated.TotalIncorrect = 3

	assert.Equal(t, []domain.AchievementID{"night_owl"}, ids(evaluator.Evaluate(prev, updated, time.Now())))
	assert.Len(t, evaluator.Rules(), 1)
}
