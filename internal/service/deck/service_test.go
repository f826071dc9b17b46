package deck

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/flashdeck/internal/domain"
	"github.com/phrazzld/flashdeck/internal/domain/srs"
	"github.com/phrazzld/flashdeck/internal/events"
	"github.com/phrazzld/flashdeck/internal/service"
	"github.com/phrazzld/flashdeck/internal/store"
	"github.com/phrazzld/flashdeck/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 4, 7, 10, 0, 0, 0, time.UTC)

type fixture struct {
	backend *memory.Backend
	clock   *domain.FixedClock
	changes []events.CardsChangedPayload
	service *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{
		backend: memory.NewBackend(logger),
		clock:   domain.NewFixedClock(now),
	}

	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(events.HandlerFunc(func(_ context.Context, e *events.Event) error {
		var payload events.CardsChangedPayload
		require.NoError(t, e.UnmarshalPayload(&payload))
		f.changes = append(f.changes, payload)
		return nil
	}))

	var err error
	f.service, err = NewService(f.backend, srs.NewDefaultService(), emitter, f.clock, logger)
	require.NoError(t, err)
	return f
}

func input(question string) CardInput {
	return CardInput{
		CategoryID: "go",
		Question:   question,
		Answer:     "answer",
		Difficulty: domain.DifficultyBeginner,
	}
}

func (f *fixture) createCard(t *testing.T, userID uuid.UUID, question string) *domain.Flashcard {
	t.Helper()
	card, err := f.service.CreateCard(context.Background(), userID, input(question))
	require.NoError(t, err)
	return card
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, srs.NewDefaultService(), nil, nil, nil)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = NewService(memory.NewBackend(nil), nil, nil, nil, nil)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestCreateCard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	card := f.createCard(t, userID, "What is a goroutine?")
	assert.Equal(t, userID, card.UserID)
	assert.Equal(t, now, card.CreatedAt)

	got, err := f.service.GetCard(ctx, userID, card.ID)
	require.NoError(t, err)
	assert.Equal(t, card.Question, got.Question)

	require.Len(t, f.changes, 1)
	assert.Equal(t, "created", f.changes[0].Reason)

	_, err = f.service.CreateCard(ctx, userID, CardInput{CategoryID: "go", Difficulty: domain.DifficultyBeginner})
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestCardsAreOwnerScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	other := uuid.New()
	card := f.createCard(t, owner, "Q")

	tests := []struct {
		name string
		call func() error
	}{
		{"get", func() error { _, err := f.service.GetCard(ctx, other, card.ID); return err }},
		{"save", func() error { _, err := f.service.SaveCard(ctx, other, card.ID, input("X")); return err }},
		{"delete", func() error { return f.service.DeleteCard(ctx, other, card.ID) }},
		{"review later", func() error { _, err := f.service.SetReviewLater(ctx, other, card.ID, true); return err }},
		{"postpone", func() error { _, err := f.service.Postpone(ctx, other, card.ID, 1); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			assert.True(t, errors.Is(err, service.ErrNotOwned), "got %v", err)
		})
	}

	got, err := f.service.GetCard(ctx, owner, card.ID)
	require.NoError(t, err)
	assert.Equal(t, "Q", got.Question)
}

func TestSaveCardKeepsReviewState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	card := f.createCard(t, userID, "Q")

	card.CorrectCount = 2
	card.ConsecutiveCorrect = 2
	require.NoError(t, f.backend.Stores().Cards.Upsert(ctx, card))

	f.clock.Advance(time.Hour)
	saved, err := f.service.SaveCard(ctx, userID, card.ID, input("Q2"))
	require.NoError(t, err)
	assert.Equal(t, "Q2", saved.Question)
	assert.Equal(t, 2, saved.CorrectCount)
	assert.Equal(t, now, saved.CreatedAt)
	assert.Equal(t, now.Add(time.Hour), saved.UpdatedAt)

	newID := uuid.New()
	created, err := f.service.SaveCard(ctx, userID, newID, input("fresh"))
	require.NoError(t, err)
	assert.Equal(t, newID, created.ID)
	assert.Zero(t, created.CorrectCount)
}

func TestDeleteCard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	card := f.createCard(t, userID, "Q")

	require.NoError(t, f.service.DeleteCard(ctx, userID, card.ID))
	_, err := f.service.GetCard(ctx, userID, card.ID)
	assert.True(t, store.IsNotFoundError(err))

	err = f.service.DeleteCard(ctx, userID, card.ID)
	assert.True(t, store.IsNotFoundError(err))
}

func TestListCardsAndTopics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	for _, topic := range []string{"channels", "maps", "channels", ""} {
		in := input("Q " + topic)
		in.Subcategory = topic
		_, err := f.service.CreateCard(ctx, userID, in)
		require.NoError(t, err)
	}
	f.createCard(t, uuid.New(), "someone else")

	cards, err := f.service.ListCards(ctx, userID, store.CardFilter{UserID: uuid.New(), CategoryID: "go"})
	require.NoError(t, err)
	assert.Len(t, cards, 4)

	topics, err := f.service.Topics(ctx, userID, "go")
	require.NoError(t, err)
	assert.Equal(t, []string{"channels", "maps"}, topics)

	_, err = f.service.Topics(ctx, userID, " ")
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestReviewLaterAndPostpone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	card := f.createCard(t, userID, "Q")

	flagged, err := f.service.SetReviewLater(ctx, userID, card.ID, true)
	require.NoError(t, err)
	assert.True(t, flagged.ReviewLater)

	postponed, err := f.service.Postpone(ctx, userID, card.ID, 3)
	require.NoError(t, err)
	require.NotNil(t, postponed.NextReview)
	assert.Equal(t, now.AddDate(0, 0, 3), *postponed.NextReview)
	assert.True(t, postponed.ReviewLater)

	_, err = f.service.Postpone(ctx, userID, card.ID, 0)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestShareAndImportTwoCards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	importer := uuid.New()

	a := f.createCard(t, owner, "A")
	b := f.createCard(t, owner, "B")
	for _, c := range []*domain.Flashcard{a, b} {
		c.CorrectCount = 5
		c.ConsecutiveCorrect = 5
		c.Learned = true
		c.ReviewLater = true
		require.NoError(t, f.backend.Stores().Cards.Upsert(ctx, c))
	}

	share, err := f.service.CreateShare(ctx, owner, []uuid.UUID{a.ID, b.ID, a.ID})
	require.NoError(t, err)
	assert.Len(t, share.Code, shareCodeLength)
	assert.Equal(t, []uuid.UUID{a.ID, b.ID}, share.CardIDs)

	imported, err := f.service.ImportShare(ctx, importer, share.Code)
	require.NoError(t, err)
	require.Len(t, imported, 2)

	for i, card := range imported {
		assert.NotEqual(t, a.ID, card.ID)
		assert.NotEqual(t, b.ID, card.ID)
		assert.Equal(t, importer, card.UserID)
		assert.Zero(t, card.CorrectCount)
		assert.False(t, card.Learned)
		assert.False(t, card.ReviewLater)
		assert.Equal(t, []string{"A", "B"}[i], card.Question)
	}

	cards, err := f.backend.Stores().Cards.List(ctx, store.CardFilter{UserID: importer})
	require.NoError(t, err)
	assert.Len(t, cards, 2)

	again, err := f.service.ImportShare(ctx, importer, share.Code)
	require.NoError(t, err)
	assert.NotEqual(t, imported[0].ID, again[0].ID)

	cards, err = f.backend.Stores().Cards.List(ctx, store.CardFilter{UserID: importer})
	require.NoError(t, err)
	assert.Len(t, cards, 4)

	original, err := f.service.GetCard(ctx, owner, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, original.CorrectCount)
}

func TestCreateShareRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	mine := f.createCard(t, owner, "mine")
	theirs := f.createCard(t, uuid.New(), "theirs")

	tests := []struct {
		name   string
		ids    []uuid.UUID
		target error
	}{
		{"empty", nil, domain.ErrValidation},
		{"foreign card", []uuid.UUID{mine.ID, theirs.ID}, service.ErrNotOwned},
		{"missing card", []uuid.UUID{mine.ID, uuid.New()}, domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.CreateShare(ctx, owner, tt.ids)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
		})
	}
}

func TestImportUnknownCode(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.ImportShare(context.Background(), uuid.New(), "nope")
	assert.True(t, store.IsNotFoundError(err))
}

func TestImportSkipsDeletedCards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	a := f.createCard(t, owner, "A")
	b := f.createCard(t, owner, "B")

	share, err := f.service.CreateShare(ctx, owner, []uuid.UUID{a.ID, b.ID})
	require.NoError(t, err)
	require.NoError(t, f.service.DeleteCard(ctx, owner, a.ID))

	imported, err := f.service.ImportShare(ctx, uuid.New(), share.Code)
	require.NoError(t, err)
	require.Len(t, imported, 1)
	assert.Equal(t, "B", imported[0].Question)

	require.NoError(t, f.service.DeleteCard(ctx, owner, b.ID))
	_, err = f.service.ImportShare(ctx, uuid.New(), share.Code)
	assert.True(t, store.IsNotFoundError(err))
}

func TestPrograms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	a := f.createCard(t, userID, "A")
	b := f.createCard(t, userID, "B")

	program := &domain.Program{
		ID:         uuid.New(),
		Name:       "Basics",
		CategoryID: "go",
		Difficulty: domain.DifficultyBeginner,
		CardIDs:    []uuid.UUID{b.ID, a.ID},
	}
	saved, err := f.service.SaveProgram(ctx, userID, program)
	require.NoError(t, err)
	assert.Equal(t, userID, saved.UserID)
	assert.Equal(t, now, saved.CreatedAt)

	cards, err := f.service.ProgramCards(ctx, userID, program.ID)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, b.ID, cards[0].ID)
	assert.Equal(t, a.ID, cards[1].ID)

	require.NoError(t, f.service.DeleteCard(ctx, userID, a.ID))
	cards, err = f.service.ProgramCards(ctx, userID, program.ID)
	require.NoError(t, err)
	assert.Len(t, cards, 1)

	_, err = f.service.ProgramCards(ctx, uuid.New(), program.ID)
	assert.True(t, errors.Is(err, service.ErrNotOwned))

	_, err = f.service.SaveProgram(ctx, uuid.New(), program)
	assert.True(t, errors.Is(err, service.ErrNotOwned))

	program.CardIDs = []uuid.UUID{uuid.New()}
	_, err = f.service.SaveProgram(ctx, userID, program)
	assert.True(t, errors.Is(err, domain.ErrIntegrity), "got %v", err)

	listed, err := f.service.ListPrograms(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	require.NoError(t, f.service.DeleteProgram(ctx, userID, program.ID))
	listed, err = f.service.ListPrograms(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestEnrollProgram(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := uuid.New()
	learner := uuid.New()
	a := f.createCard(t, author, "A")
	b := f.createCard(t, author, "B")

	generic := &domain.Program{
		ID:         uuid.New(),
		Name:       "Go Basics",
		CategoryID: "go",
		Difficulty: domain.DifficultyBeginner,
		CardIDs:    []uuid.UUID{a.ID, b.ID},
		Generic:    true,
	}
	require.NoError(t, f.backend.Stores().Programs.Upsert(ctx, generic))

	enrolled, err := f.service.EnrollProgram(ctx, learner, generic.ID)
	require.NoError(t, err)
	assert.NotEqual(t, generic.ID, enrolled.ID)
	assert.Equal(t, learner, enrolled.UserID)
	assert.False(t, enrolled.Generic)
	require.Len(t, enrolled.CardIDs, 2)

	cards, err := f.service.ProgramCards(ctx, learner, enrolled.ID)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, "A", cards[0].Question)
	for _, c := range cards {
		assert.Equal(t, learner, c.UserID)
		require.NotNil(t, c.ProgramID)
		assert.Equal(t, enrolled.ID, *c.ProgramID)
	}

	_, err = f.service.EnrollProgram(ctx, learner, enrolled.ID)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}
