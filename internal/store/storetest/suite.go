// Package storetest holds a behavioural suite that every store.Backend
// implementation runs from its own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/flashdeck/internal/domain"
	"github.com/phrazzld/flashdeck/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a ready backend. Backends may be shared between calls;
// every case works on fresh user IDs.
type Factory func(t *testing.T) store.Backend

// base is truncated so that database round trips compare equal.
var base = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// NewCard builds a valid card for userID created at base+offset.
func NewCard(t *testing.T, userID uuid.UUID, category, topic string, offset time.Duration) *domain.Flashcard {
	t.Helper()
	card, err := domain.NewFlashcard(userID, category, topic, "Q "+uuid.NewString(), "A", domain.DifficultyBeginner, base.Add(offset))
	require.NoError(t, err)
	return card
}

// AssertSameCard compares cards field by field with time equality.
func AssertSameCard(t *testing.T, want, got *domain.Flashcard) {
	t.Helper()
	require.NotNil(t, got)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.UserID, got.UserID)
	assert.Equal(t, want.CategoryID, got.CategoryID)
	assert.Equal(t, want.Subcategory, got.Subcategory)
	assert.Equal(t, want.ProgramID, got.ProgramID)
	assert.Equal(t, want.Question, got.Question)
	assert.Equal(t, want.Answer, got.Answer)
	assert.Equal(t, want.Difficulty, got.Difficulty)
	assert.Equal(t, want.CorrectCount, got.CorrectCount)
	assert.Equal(t, want.IncorrectCount, got.IncorrectCount)
	assert.Equal(t, want.ConsecutiveCorrect, got.ConsecutiveCorrect)
	assert.Equal(t, want.Learned, got.Learned)
	assert.Equal(t, want.ReviewLater, got.ReviewLater)
	assert.Equal(t, want.ReportCount, got.ReportCount)
	assert.Equal(t, want.Approved, got.Approved)
	assertSameTime(t, want.LastReviewed, got.LastReviewed)
	assertSameTime(t, want.NextReview, got.NextReview)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created_at %v != %v", want.CreatedAt, got.CreatedAt)
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt), "updated_at %v != %v", want.UpdatedAt, got.UpdatedAt)
}

func assertSameTime(t *testing.T, want, got *time.Time) {
	t.Helper()
	if want == nil {
		assert.Nil(t, got)
		return
	}
	require.NotNil(t, got)
	assert.True(t, want.Equal(*got), "%v != %v", *want, *got)
}

func cardIDs(cards []domain.Flashcard) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.ID)
	}
	return out
}

// Run executes the suite against backends produced by newBackend.
func Run(t *testing.T, newBackend Factory) {
	t.Run("CardRoundTrip", func(t *testing.T) { testCardRoundTrip(t, newBackend(t)) })
	t.Run("CardValidation", func(t *testing.T) { testCardValidation(t, newBackend(t)) })
	t.Run("CardRemove", func(t *testing.T) { testCardRemove(t, newBackend(t)) })
	t.Run("CardRemoteTombstone", func(t *testing.T) { testRemoteTombstone(t, newBackend(t)) })
	t.Run("CardList", func(t *testing.T) { testCardList(t, newBackend(t)) })
	t.Run("CardTopicsAndLearned", func(t *testing.T) { testTopicsAndLearned(t, newBackend(t)) })
	t.Run("CardDirtyTracking", func(t *testing.T) { testCardDirty(t, newBackend(t)) })
	t.Run("Programs", func(t *testing.T) { testPrograms(t, newBackend(t)) })
	t.Run("Stats", func(t *testing.T) { testStats(t, newBackend(t)) })
	t.Run("Shares", func(t *testing.T) { testShares(t, newBackend(t)) })
	t.Run("Transactions", func(t *testing.T) { testTransactions(t, newBackend(t)) })
}

func testCardRoundTrip(t *testing.T, b store.Backend) {
	ctx := context.Background()
	cards := b.Stores().Cards
	card := NewCard(t, uuid.New(), "math", "algebra", 0)

	reviewed := base.Add(time.Hour)
	next := reviewed.Add(48 * time.Hour)
	card.LastReviewed = &reviewed
	card.NextReview = &next
	card.CorrectCount = 2
	card.ConsecutiveCorrect = 2
	card.ReportCount = 1
	card.ReportReasons = []string{"typo"}

	require.NoError(t, cards.Upsert(ctx, card))

	got, err := cards.Get(ctx, card.ID)
	require.NoError(t, err)
	AssertSameCard(t, card, got)
	assert.Equal(t, []string{"typo"}, got.ReportReasons)

	got.Question = "changed"
	again, err := cards.Get(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, card.Question, again.Question, "returned cards must be copies")

	_, err = cards.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrCardNotFound)
}

func testCardValidation(t *testing.T, b store.Backend) {
	ctx := context.Background()
	cards := b.Stores().Cards
	card := NewCard(t, uuid.New(), "math", "", 0)
	card.ConsecutiveCorrect = 5

	err := cards.Upsert(ctx, card)
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = cards.Get(ctx, card.ID)
	assert.ErrorIs(t, err, store.ErrCardNotFound)
}

func testCardRemove(t *testing.T, b store.Backend) {
	ctx := context.Background()
	s := b.Stores()
	user := uuid.New()
	card := NewCard(t, user, "math", "algebra", 0)
	card.Learned = true
	require.NoError(t, s.Cards.Upsert(ctx, card))
	require.NoError(t, s.Cards.MarkClean(ctx, store.VersionsOf([]domain.Flashcard{*card})))

	removedAt := base.Add(time.Hour)
	require.NoError(t, s.Cards.Remove(ctx, card.ID, removedAt))
	assert.ErrorIs(t, s.Cards.Remove(ctx, card.ID, removedAt), store.ErrCardNotFound)
	assert.ErrorIs(t, s.Cards.Remove(ctx, uuid.New(), removedAt), store.ErrCardNotFound)

	_, err := s.Cards.Get(ctx, card.ID)
	assert.ErrorIs(t, err, store.ErrCardNotFound)
	listed, err := s.Cards.List(ctx, store.CardFilter{UserID: user})
	require.NoError(t, err)
	assert.Empty(t, listed)
	byID, err := s.Cards.ListByIDs(ctx, []uuid.UUID{card.ID})
	require.NoError(t, err)
	assert.Empty(t, byID)
	topics, err := s.Cards.ListTopics(ctx, user, "math")
	require.NoError(t, err)
	assert.Empty(t, topics)
	learned, err := s.Cards.CountLearned(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, learned)

	tombstone, err := s.Cards.GetIncludingDeleted(ctx, card.ID)
	require.NoError(t, err)
	require.True(t, tombstone.Deleted())
	assert.True(t, removedAt.Equal(*tombstone.DeletedAt))
	assert.True(t, removedAt.Equal(tombstone.UpdatedAt))

	// the removal is pending for sync until the tombstone version is acknowledged
	dirty, err := s.Cards.Dirty(ctx, user)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{card.ID}, cardIDs(dirty))
	assert.True(t, dirty[0].Deleted())
	require.NoError(t, s.Cards.MarkClean(ctx, store.VersionsOf(dirty)))
	dirty, err = s.Cards.Dirty(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, dirty)

	program := &domain.Program{
		ID: uuid.New(), UserID: user, Name: "algebra", CategoryID: "math",
		Difficulty: domain.DifficultyBeginner, CardIDs: []uuid.UUID{card.ID},
		CreatedAt: base, UpdatedAt: base,
	}
	assert.ErrorIs(t, s.Programs.Upsert(ctx, program), domain.ErrIntegrity)
}

func testRemoteTombstone(t *testing.T, b store.Backend) {
	ctx := context.Background()
	cards := b.Stores().Cards
	user := uuid.New()
	card := NewCard(t, user, "math", "", 0)
	require.NoError(t, cards.Upsert(ctx, card))

	remote := card.Clone()
	remote.MarkDeleted(base.Add(time.Hour))
	require.NoError(t, cards.PutSynced(ctx, &remote))

	_, err := cards.Get(ctx, card.ID)
	assert.ErrorIs(t, err, store.ErrCardNotFound)
	got, err := cards.GetIncludingDeleted(ctx, card.ID)
	require.NoError(t, err)
	assert.True(t, got.Deleted())
	dirty, err := cards.Dirty(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, dirty)

	// writing the card again brings it back
	revived := card.Clone()
	revived.UpdatedAt = base.Add(2 * time.Hour)
	require.NoError(t, cards.Upsert(ctx, &revived))
	again, err := cards.Get(ctx, card.ID)
	require.NoError(t, err)
	assert.False(t, again.Deleted())
}

func testCardList(t *testing.T, b store.Backend) {
	ctx := context.Background()
	cards := b.Stores().Cards
	user := uuid.New()
	program := uuid.New()

	late := NewCard(t, user, "math", "algebra", 2*time.Minute)
	early := NewCard(t, user, "math", "geometry", time.Minute)
	hard := NewCard(t, user, "math", "algebra", 3*time.Minute)
	hard.Difficulty = domain.DifficultyExpert
	hard.ProgramID = &program
	other := NewCard(t, user, "history", "", 0)
	stranger := NewCard(t, uuid.New(), "math", "algebra", 0)

	for _, c := range []*domain.Flashcard{late, early, hard, other, stranger} {
		require.NoError(t, cards.Upsert(ctx, c))
	}

	expert := domain.DifficultyExpert
	tests := []struct {
		name   string
		filter store.CardFilter
		want   []uuid.UUID
	}{
		{
			name:   "category ordered by creation",
			filter: store.CardFilter{UserID: user, CategoryID: "math"},
			want:   []uuid.UUID{early.ID, late.ID, hard.ID},
		},
		{
			name:   "subcategory",
			filter: store.CardFilter{UserID: user, CategoryID: "math", Subcategory: "algebra"},
			want:   []uuid.UUID{late.ID, hard.ID},
		},
		{
			name:   "difficulty",
			filter: store.CardFilter{UserID: user, CategoryID: "math", Difficulty: &expert},
			want:   []uuid.UUID{hard.ID},
		},
		{
			name:   "program",
			filter: store.CardFilter{UserID: user, ProgramID: &program},
			want:   []uuid.UUID{hard.ID},
		},
		{
			name:   "all of a user",
			filter: store.CardFilter{UserID: user},
			want:   []uuid.UUID{other.ID, early.ID, late.ID, hard.ID},
		},
		{
			name:   "no match",
			filter: store.CardFilter{UserID: user, CategoryID: "art"},
			want:   []uuid.UUID{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cards.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cardIDs(got))
		})
	}

	byDifficulty, err := store.ListByDifficulty(ctx, cards, user, "math", domain.DifficultyBeginner)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{early.ID, late.ID}, cardIDs(byDifficulty))

	byIDs, err := cards.ListByIDs(ctx, []uuid.UUID{late.ID, uuid.New(), other.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{late.ID, other.ID}, cardIDs(byIDs))
}

func testTopicsAndLearned(t *testing.T, b store.Backend) {
	ctx := context.Background()
	cards := b.Stores().Cards
	user := uuid.New()

	a := NewCard(t, user, "math", "geometry", 0)
	c := NewCard(t, user, "math", "algebra", time.Second)
	d := NewCard(t, user, "math", "algebra", 2*time.Second)
	e := NewCard(t, user, "math", "", 3*time.Second)
	d.Learned = true
	d.CorrectCount = 3
	d.ConsecutiveCorrect = 3
	e.Learned = true
	for _, card := range []*domain.Flashcard{a, c, d, e} {
		require.NoError(t, cards.Upsert(ctx, card))
	}

	topics, err := cards.ListTopics(ctx, user, "math")
	require.NoError(t, err)
	assert.Equal(t, []string{"algebra", "geometry"}, topics)

	none, err := cards.ListTopics(ctx, user, "history")
	require.NoError(t, err)
	assert.Empty(t, none)

	learned, err := cards.CountLearned(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 2, learned)

	zero, err := cards.CountLearned(ctx, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, zero)
}

func testCardDirty(t *testing.T, b store.Backend) {
	ctx := context.Background()
	cards := b.Stores().Cards
	user := uuid.New()

	pushed := NewCard(t, user, "math", "", 0)
	synced := NewCard(t, user, "math", "", time.Second)
	require.NoError(t, cards.Upsert(ctx, pushed))
	require.NoError(t, cards.PutSynced(ctx, synced))

	dirty, err := cards.Dirty(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{pushed.ID}, cardIDs(dirty))

	// a write after the push snapshot must stay dirty
	snapshot := store.VersionsOf(dirty)
	pushed.Question = "edited offline"
	pushed.UpdatedAt = pushed.UpdatedAt.Add(time.Minute)
	require.NoError(t, cards.Upsert(ctx, pushed))
	require.NoError(t, cards.MarkClean(ctx, snapshot))

	dirty, err = cards.Dirty(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{pushed.ID}, cardIDs(dirty))

	require.NoError(t, cards.MarkClean(ctx, store.VersionsOf(dirty)))
	dirty, err = cards.Dirty(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, dirty)
}

func testPrograms(t *testing.T, b store.Backend) {
	ctx := context.Background()
	s := b.Stores()
	user := uuid.New()
	card := NewCard(t, user, "math", "", 0)
	require.NoError(t, s.Cards.Upsert(ctx, card))

	own := &domain.Program{
		ID: uuid.New(), UserID: user, Name: "B algebra", CategoryID: "math",
		Difficulty: domain.DifficultyBeginner, CardIDs: []uuid.UUID{card.ID},
		CreatedAt: base, UpdatedAt: base,
	}
	generic := &domain.Program{
		ID: uuid.New(), Name: "A basics", CategoryID: "math", Generic: true,
		Difficulty: domain.DifficultyBeginner, CardIDs: []uuid.UUID{},
		CreatedAt: base, UpdatedAt: base,
	}
	foreign := &domain.Program{
		ID: uuid.New(), UserID: uuid.New(), Name: "C private", CategoryID: "math",
		Difficulty: domain.DifficultyBeginner, CardIDs: []uuid.UUID{},
		CreatedAt: base, UpdatedAt: base,
	}
	for _, p := range []*domain.Program{own, generic, foreign} {
		require.NoError(t, s.Programs.Upsert(ctx, p))
	}

	got, err := s.Programs.Get(ctx, own.ID)
	require.NoError(t, err)
	assert.Equal(t, own.CardIDs, got.CardIDs)
	assert.Equal(t, own.Name, got.Name)

	visible, err := s.Programs.List(ctx, user)
	require.NoError(t, err)
	names := []string{}
	for _, p := range visible {
		if p.ID == own.ID || p.ID == generic.ID || p.ID == foreign.ID {
			names = append(names, p.Name)
		}
	}
	assert.Equal(t, []string{"A basics", "B algebra"}, names)

	missing := uuid.New()
	broken := &domain.Program{
		ID: uuid.New(), UserID: user, Name: "broken", CategoryID: "math",
		Difficulty: domain.DifficultyBeginner, CardIDs: []uuid.UUID{card.ID, missing},
		CreatedAt: base, UpdatedAt: base,
	}
	err = s.Programs.Upsert(ctx, broken)
	var integrity *domain.IntegrityError
	require.True(t, errors.As(err, &integrity), "got %v", err)
	assert.Equal(t, missing, integrity.CardID)
	_, err = s.Programs.Get(ctx, broken.ID)
	assert.ErrorIs(t, err, store.ErrProgramNotFound)

	require.NoError(t, s.Programs.Remove(ctx, own.ID))
	assert.ErrorIs(t, s.Programs.Remove(ctx, own.ID), store.ErrProgramNotFound)
}

func testStats(t *testing.T, b store.Backend) {
	ctx := context.Background()
	stats := b.Stores().Stats
	user := uuid.New()

	_, err := stats.Get(ctx, user)
	assert.ErrorIs(t, err, store.ErrStatsNotFound)

	fresh, err := store.GetOrNewStats(ctx, stats, user)
	require.NoError(t, err)
	assert.Equal(t, user, fresh.UserID)

	activity := base.Add(time.Hour)
	s := domain.NewUserStats(user)
	s.Streak = 2
	s.LastActivity = &activity
	s.TotalCorrect = 7
	s.TotalIncorrect = 1
	s.CardsLearned = 1
	s.Achievements = []domain.UserAchievement{{
		ID: domain.AchievementFirstReview, Name: "First Steps", DateEarned: activity,
	}}
	s.CompletedPrograms = []uuid.UUID{uuid.New()}
	s.UpdatedAt = activity
	require.NoError(t, stats.Save(ctx, &s))

	got, err := stats.Get(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Streak)
	assert.Equal(t, 7, got.TotalCorrect)
	assert.Equal(t, 1, got.TotalIncorrect)
	assert.Equal(t, s.CompletedPrograms, got.CompletedPrograms)
	require.Len(t, got.Achievements, 1)
	assert.Equal(t, domain.AchievementFirstReview, got.Achievements[0].ID)
	assert.True(t, activity.Equal(got.Achievements[0].DateEarned))
	assertSameTime(t, s.LastActivity, got.LastActivity)

	dirty, err := stats.Dirty(ctx, user)
	require.NoError(t, err)
	require.NotNil(t, dirty)

	require.NoError(t, stats.MarkClean(ctx, user, base))
	dirty, err = stats.Dirty(ctx, user)
	require.NoError(t, err)
	assert.NotNil(t, dirty, "stale version must not clean")

	require.NoError(t, stats.MarkClean(ctx, user, activity))
	dirty, err = stats.Dirty(ctx, user)
	require.NoError(t, err)
	assert.Nil(t, dirty)

	s.Streak = -1
	assert.ErrorIs(t, stats.Save(ctx, &s), store.ErrInvalidEntity)
}

func testShares(t *testing.T, b store.Backend) {
	ctx := context.Background()
	shares := b.Stores().Shares
	share := &domain.Share{
		Code: "code-" + uuid.NewString()[:8], OwnerID: uuid.New(),
		CardIDs: []uuid.UUID{uuid.New(), uuid.New()}, CreatedAt: base,
	}

	require.NoError(t, shares.Save(ctx, share))
	assert.ErrorIs(t, shares.Save(ctx, share), store.ErrDuplicate)

	got, err := shares.Resolve(ctx, share.Code)
	require.NoError(t, err)
	assert.Equal(t, share.OwnerID, got.OwnerID)
	assert.Equal(t, share.CardIDs, got.CardIDs)

	_, err = shares.Resolve(ctx, "missing-"+uuid.NewString())
	assert.ErrorIs(t, err, store.ErrShareNotFound)
}

func testTransactions(t *testing.T, b store.Backend) {
	ctx := context.Background()
	user := uuid.New()
	kept := NewCard(t, user, "math", "", 0)
	dropped := NewCard(t, user, "math", "", time.Second)

	err := b.WithinTx(ctx, func(ctx context.Context, tx store.Stores) error {
		return tx.Cards.Upsert(ctx, kept)
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = b.WithinTx(ctx, func(ctx context.Context, tx store.Stores) error {
		if err := tx.Cards.Upsert(ctx, dropped); err != nil {
			return err
		}
		s := domain.NewUserStats(user)
		s.TotalCorrect = 1
		if err := tx.Stats.Save(ctx, &s); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = b.Stores().Cards.Get(ctx, kept.ID)
	assert.NoError(t, err)
	_, err = b.Stores().Cards.Get(ctx, dropped.ID)
	assert.ErrorIs(t, err, store.ErrCardNotFound)
	_, err = b.Stores().Stats.Get(ctx, user)
	assert.ErrorIs(t, err, store.ErrStatsNotFound)
}
