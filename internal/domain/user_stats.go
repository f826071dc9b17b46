package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// AchievementID identifies an achievement. The set is closed: only the
// constants below are ever awarded.
type AchievementID string

// Known achievements.
const (
	AchievementFirstReview     AchievementID = "first_review"
	AchievementStreak3         AchievementID = "streak_3"
	AchievementStreak7         AchievementID = "streak_7"
	AchievementStreak30        AchievementID = "streak_30"
	AchievementLearned10       AchievementID = "learned_10"
	AchievementLearned50       AchievementID = "learned_50"
	AchievementLearned100      AchievementID = "learned_100"
	AchievementCorrect100      AchievementID = "correct_100"
	AchievementCorrect500      AchievementID = "correct_500"
	AchievementProgramComplete AchievementID = "program_complete"
)

// IconTag is an opaque icon reference passed through to clients.
type IconTag string

// UserAchievement is an achievement earned by a user. Only Displayed may
// change after creation.
type UserAchievement struct {
	ID          AchievementID `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Icon        IconTag       `json:"icon"`
	DateEarned  time.Time     `json:"date_earned"`
	Displayed   bool          `json:"displayed"`
}

// UserStats is the aggregate learning progress of a single user.
type UserStats struct {
	UserID            uuid.UUID         `json:"user_id"`
	Streak            int               `json:"streak"`
	LastActivity      *time.Time        `json:"last_activity,omitempty"`
	TotalCorrect      int               `json:"total_correct"`
	TotalIncorrect    int               `json:"total_incorrect"`
	CardsLearned      int               `json:"cards_learned"`
	Achievements      []UserAchievement `json:"achievements"`
	CompletedPrograms []uuid.UUID       `json:"completed_programs"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// NewUserStats returns empty stats for a user who has never studied.
func NewUserStats(userID uuid.UUID) UserStats {
	return UserStats{
		UserID:            userID,
		Achievements:      []UserAchievement{},
		CompletedPrograms: []uuid.UUID{},
	}
}

// Validate checks counters and uniqueness invariants.
func (s *UserStats) Validate() error {
	if s.UserID == uuid.Nil {
		return NewValidationError("user_id", "cannot be empty", ErrInvalidID)
	}
	if s.Streak < 0 || s.TotalCorrect < 0 || s.TotalIncorrect < 0 || s.CardsLearned < 0 {
		return NewValidationError("stats", "counters cannot be negative", nil)
	}
	seen := make(map[AchievementID]struct{}, len(s.Achievements))
	for _, a := range s.Achievements {
		if _, dup := seen[a.ID]; dup {
			return NewValidationError("achievements", "duplicate achievement "+string(a.ID), nil)
		}
		seen[a.ID] = struct{}{}
	}
	return nil
}

// TotalReviews returns the number of reviews ever recorded.
func (s *UserStats) TotalReviews() int {
	return s.TotalCorrect + s.TotalIncorrect
}

// HasAchievement reports whether the achievement was already earned.
func (s *UserStats) HasAchievement(id AchievementID) bool {
	return slices.ContainsFunc(s.Achievements, func(a UserAchievement) bool {
		return a.ID == id
	})
}

// HasCompletedProgram reports whether the program is in the completed set.
func (s *UserStats) HasCompletedProgram(id uuid.UUID) bool {
	return slices.Contains(s.CompletedPrograms, id)
}

// Acknowledge marks an earned achievement as displayed. It returns a
// NotFoundError when the achievement was never earned.
func (s *UserStats) Acknowledge(id AchievementID) error {
	for i := range s.Achievements {
		if s.Achievements[i].ID == id {
			s.Achievements[i].Displayed = true
			return nil
		}
	}
	return &NotFoundError{Entity: "achievement", ID: string(id)}
}

// Clone returns a deep copy of the stats.
func (s UserStats) Clone() UserStats {
	out := s
	if s.LastActivity != nil {
		t := *s.LastActivity
		out.LastActivity = &t
	}
	out.Achievements = append([]UserAchievement{}, s.Achievements...)
	out.CompletedPrograms = append([]uuid.UUID{}, s.CompletedPrograms...)
	return out
}
