package sqlite

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/flashdeck/internal/domain"
	"gorm.io/gorm"
)

type cardModel struct {
	ID                 uuid.UUID  `gorm:"type:text;primaryKey"`
	UserID             uuid.UUID  `gorm:"type:text;not null;index:idx_flashcards_user_category"`
	CategoryID         string     `gorm:"not null;index:idx_flashcards_user_category"`
	Subcategory        string     `gorm:"not null"`
	ProgramID          *uuid.UUID `gorm:"type:text;index"`
	Question           string     `gorm:"not null"`
	Answer             string     `gorm:"not null"`
	Difficulty         string     `gorm:"not null"`
	LastReviewed       *time.Time
	NextReview         *time.Time
	CorrectCount       int
	IncorrectCount     int
	ConsecutiveCorrect int
	Learned            bool
	ReviewLater        bool
	ReportCount        int
	ReportReasons      []string `gorm:"serializer:json"`
	Approved           bool
	Dirty              bool      `gorm:"index"`
	CreatedAt          time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime:false"`
	// DeletedAt gives the table gorm's soft-delete scope: plain queries
	// skip tombstones, Unscoped ones see them.
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (cardModel) TableName() string { return "flashcards" }

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func newCardModel(c *domain.Flashcard, dirty bool) cardModel {
	m := cardModel{
		ID:                 c.ID,
		UserID:             c.UserID,
		CategoryID:         c.CategoryID,
		Subcategory:        c.Subcategory,
		Question:           c.Question,
		Answer:             c.Answer,
		Difficulty:         string(c.Difficulty),
		LastReviewed:       utcPtr(c.LastReviewed),
		NextReview:         utcPtr(c.NextReview),
		CorrectCount:       c.CorrectCount,
		IncorrectCount:     c.IncorrectCount,
		ConsecutiveCorrect: c.ConsecutiveCorrect,
		Learned:            c.Learned,
		ReviewLater:        c.ReviewLater,
		ReportCount:        c.ReportCount,
		ReportReasons:      c.ReportReasons,
		Approved:           c.Approved,
		Dirty:              dirty,
		CreatedAt:          c.CreatedAt.UTC(),
		UpdatedAt:          c.UpdatedAt.UTC(),
	}
	if c.ProgramID != nil {
		id := *c.ProgramID
		m.ProgramID = &id
	}
	if c.DeletedAt != nil {
		m.DeletedAt = gorm.DeletedAt{Time: c.DeletedAt.UTC(), Valid: true}
	}
	return m
}

func (m cardModel) toDomain() domain.Flashcard {
	c := domain.Flashcard{
		ID:          m.ID,
		UserID:      m.UserID,
		CategoryID:  m.CategoryID,
		Subcategory: m.Subcategory,
		ProgramID:   m.ProgramID,
		Question:    m.Question,
		Answer:      m.Answer,
		Difficulty:  domain.Difficulty(m.Difficulty),
		ReviewState: domain.ReviewState{
			LastReviewed:       utcPtr(m.LastReviewed),
			NextReview:         utcPtr(m.NextReview),
			CorrectCount:       m.CorrectCount,
			IncorrectCount:     m.IncorrectCount,
			ConsecutiveCorrect: m.ConsecutiveCorrect,
			Learned:            m.Learned,
			ReviewLater:        m.ReviewLater,
		},
		Moderation: domain.Moderation{
			ReportCount: m.ReportCount,
			Approved:    m.Approved,
		},
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
	if len(m.ReportReasons) > 0 {
		c.ReportReasons = m.ReportReasons
	}
	if m.DeletedAt.Valid {
		t := m.DeletedAt.Time.UTC()
		c.DeletedAt = &t
	}
	return c
}

type programModel struct {
	ID          uuid.UUID   `gorm:"type:text;primaryKey"`
	UserID      *uuid.UUID  `gorm:"type:text;index"`
	Name        string      `gorm:"not null"`
	CategoryID  string      `gorm:"not null"`
	Subcategory string      `gorm:"not null"`
	Difficulty  string      `gorm:"not null"`
	CardIDs     []uuid.UUID `gorm:"serializer:json"`
	Generic     bool
	CreatedAt   time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false"`
}

func (programModel) TableName() string { return "programs" }

func newProgramModel(p *domain.Program) programModel {
	m := programModel{
		ID:          p.ID,
		Name:        p.Name,
		CategoryID:  p.CategoryID,
		Subcategory: p.Subcategory,
		Difficulty:  string(p.Difficulty),
		CardIDs:     append([]uuid.UUID{}, p.CardIDs...),
		Generic:     p.Generic,
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
	}
	if p.UserID != uuid.Nil {
		owner := p.UserID
		m.UserID = &owner
	}
	return m
}

func (m programModel) toDomain() domain.Program {
	p := domain.Program{
		ID:          m.ID,
		Name:        m.Name,
		CategoryID:  m.CategoryID,
		Subcategory: m.Subcategory,
		Difficulty:  domain.Difficulty(m.Difficulty),
		CardIDs:     append([]uuid.UUID{}, m.CardIDs...),
		Generic:     m.Generic,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
	if m.UserID != nil {
		p.UserID = *m.UserID
	}
	return p
}

type statsModel struct {
	UserID            uuid.UUID `gorm:"type:text;primaryKey"`
	Streak            int       `gorm:"not null"`
	LastActivity      *time.Time
	TotalCorrect      int                      `gorm:"not null"`
	TotalIncorrect    int                      `gorm:"not null"`
	CardsLearned      int                      `gorm:"not null"`
	Achievements      []domain.UserAchievement `gorm:"serializer:json"`
	CompletedPrograms []uuid.UUID              `gorm:"serializer:json"`
	Dirty             bool
	UpdatedAt         time.Time `gorm:"autoUpdateTime:false"`
}

func (statsModel) TableName() string { return "user_stats" }

func newStatsModel(s *domain.UserStats, dirty bool) statsModel {
	return statsModel{
		UserID:            s.UserID,
		Streak:            s.Streak,
		LastActivity:      utcPtr(s.LastActivity),
		TotalCorrect:      s.TotalCorrect,
		TotalIncorrect:    s.TotalIncorrect,
		CardsLearned:      s.CardsLearned,
		Achievements:      append([]domain.UserAchievement{}, s.Achievements...),
		CompletedPrograms: append([]uuid.UUID{}, s.CompletedPrograms...),
		Dirty:             dirty,
		UpdatedAt:         s.UpdatedAt.UTC(),
	}
}

func (m statsModel) toDomain() domain.UserStats {
	s := domain.NewUserStats(m.UserID)
	s.Streak = m.Streak
	s.LastActivity = utcPtr(m.LastActivity)
	s.TotalCorrect = m.TotalCorrect
	s.TotalIncorrect = m.TotalIncorrect
	s.CardsLearned = m.CardsLearned
	s.Achievements = append(s.Achievements, m.Achievements...)
	for i := range s.Achievements {
		s.Achievements[i].DateEarned = s.Achievements[i].DateEarned.UTC()
	}
	s.CompletedPrograms = append(s.CompletedPrograms, m.CompletedPrograms...)
	s.UpdatedAt = m.UpdatedAt.UTC()
	return s
}

type shareModel struct {
	Code      string      `gorm:"primaryKey"`
	OwnerID   uuid.UUID   `gorm:"type:text;not null"`
	CardIDs   []uuid.UUID `gorm:"serializer:json"`
	CreatedAt time.Time   `gorm:"autoCreateTime:false"`
}

func (shareModel) TableName() string { return "shares" }
