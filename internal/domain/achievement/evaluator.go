package achievement

import (
	"log/slog"
	"time"

	"github.com/phrazzld/flashdeck/internal/domain"
)

// Evaluator checks a rule table against stat transitions.
type Evaluator struct {
	rules  []Rule
	logger *slog.Logger
}

// NewEvaluator creates an Evaluator over rules. Nil rules means DefaultRules.
func NewEvaluator(rules []Rule, logger *slog.Logger) *Evaluator {
	if rules == nil {
		rules = DefaultRules()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		rules:  rules,
		logger: logger.With(slog.String("component", "achievement_evaluator")),
	}
}

// Evaluate returns the achievements that became true between prev and
// updated and that the user does not hold yet. A rule whose predicate
// fails on either side is skipped.
func (e *Evaluator) Evaluate(prev, updated domain.UserStats, now time.Time) []domain.UserAchievement {
	var earned []domain.UserAchievement

	for _, rule := range e.rules {
		if updated.HasAchievement(rule.ID) {
			continue
		}

		before, err := rule.Predicate(prev)
		if err != nil {
			e.logger.Debug("skipping achievement rule",
				slog.String("achievement_id", string(rule.ID)),
				slog.String("error", err.Error()))
			continue
		}
		after, err := rule.Predicate(updated)
		if err != nil {
			e.logger.Debug("skipping achievement rule",
				slog.String("achievement_id", string(rule.ID)),
				slog.String("error", err.Error()))
			continue
		}

		if before || !after {
			continue
		}

		earned = append(earned, domain.UserAchievement{
			ID:          rule.ID,
			Name:        rule.Name,
			Description: rule.Description,
			Icon:        rule.Icon,
			DateEarned:  now,
			Displayed:   false,
		})
	}

	return earned
}

// Rules returns the evaluator's rule table.
func (e *Evaluator) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}
