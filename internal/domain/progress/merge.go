package progress

import (
	"slices"

	"github.com/phrazzld/flashdeck/internal/domain"
)

// MergeStats reconciles local stats with a remote copy. Counters never
// decrease: totals take the larger side. The streak and last activity
// follow whichever copy was updated last. Achievements are unioned by ID,
// keeping the earliest earn date and treating displayed as sticky.
// Completed programs are unioned.
func MergeStats(local, remote domain.UserStats) domain.UserStats {
	newer, older := local, remote
	if remote.UpdatedAt.After(local.UpdatedAt) {
		newer, older = remote, local
	}

	merged := newer.Clone()
	merged.TotalCorrect = max(local.TotalCorrect, remote.TotalCorrect)
	merged.TotalIncorrect = max(local.TotalIncorrect, remote.TotalIncorrect)
	merged.CardsLearned = max(local.CardsLearned, remote.CardsLearned)
	if merged.LastActivity == nil && older.LastActivity != nil {
		t := *older.LastActivity
		merged.LastActivity = &t
		merged.Streak = older.Streak
	}

	for _, a := range older.Achievements {
		i := slices.IndexFunc(merged.Achievements, func(m domain.UserAchievement) bool {
			return m.ID == a.ID
		})
		if i < 0 {
			merged.Achievements = append(merged.Achievements, a)
			continue
		}
		if a.DateEarned.Before(merged.Achievements[i].DateEarned) {
			merged.Achievements[i].DateEarned = a.DateEarned
		}
		merged.Achievements[i].Displayed = merged.Achievements[i].Displayed || a.Displayed
	}

	for _, id := range older.CompletedPrograms {
		if !slices.Contains(merged.CompletedPrograms, id) {
			merged.CompletedPrograms = append(merged.CompletedPrograms, id)
		}
	}

	return merged
}

// Covers reports whether stats b already holds everything in a: no
// counter, achievement, displayed flag or completed program of a is
// missing from b.
func Covers(b, a domain.UserStats) bool {
	if b.TotalCorrect < a.TotalCorrect || b.TotalIncorrect < a.TotalIncorrect || b.CardsLearned < a.CardsLearned {
		return false
	}
	for _, want := range a.Achievements {
		i := slices.IndexFunc(b.Achievements, func(got domain.UserAchievement) bool {
			return got.ID == want.ID
		})
		if i < 0 {
			return false
		}
		if want.Displayed && !b.Achievements[i].Displayed {
			return false
		}
		if want.DateEarned.Before(b.Achievements[i].DateEarned) {
			return false
		}
	}
	for _, id := range a.CompletedPrograms {
		if !slices.Contains(b.CompletedPrograms, id) {
			return false
		}
	}
	return true
}
