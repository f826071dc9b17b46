// Package seed loads generic study programs and their cards from YAML.
//
// A seed file looks like:
//
//	programs:
//	  - name: Go Concurrency
//	    category_id: go
//	    subcategory: concurrency
//	    difficulty: beginner
//	    cards:
//	      - question: What closes a channel?
//	        answer: close(ch)
//
// IDs are derived from names and questions, so applying the same file
// twice updates records in place.
package seed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/flashdeck/internal/domain"
	"github.com/phrazzld/flashdeck/internal/store"
	"gopkg.in/yaml.v3"
)

// namespace roots the derived IDs.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://flashdeck.dev/seed"))

// DefaultOwner owns seeded cards when the file names no owner.
var DefaultOwner = uuid.NewSHA1(namespace, []byte("owner"))

// File is the decoded seed document.
type File struct {
	Owner    uuid.UUID `yaml:"owner"`
	Programs []Program `yaml:"programs"`
}

// Program is one generic program and its cards.
type Program struct {
	ID          uuid.UUID `yaml:"id"`
	Name        string    `yaml:"name"`
	CategoryID  string    `yaml:"category_id"`
	Subcategory string    `yaml:"subcategory"`
	Difficulty  string    `yaml:"difficulty"`
	Cards       []Card    `yaml:"cards"`
}

// Card is one seeded card. Empty subcategory and difficulty inherit the
// program's.
type Card struct {
	ID          uuid.UUID `yaml:"id"`
	Subcategory string    `yaml:"subcategory"`
	Question    string    `yaml:"question"`
	Answer      string    `yaml:"answer"`
	Difficulty  string    `yaml:"difficulty"`
}

// Result counts what Apply wrote.
type Result struct {
	Programs int
	Cards    int
}

// Parse decodes a seed document. Unknown keys are rejected.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("seed file is empty")
		}
		return nil, fmt.Errorf("failed to decode seed file: %w", err)
	}
	if f.Owner == uuid.Nil {
		f.Owner = DefaultOwner
	}
	return &f, nil
}

// Build converts the document into programs and cards. Every program is
// generic.
func (f *File) Build(now time.Time) ([]domain.Program, []domain.Flashcard, error) {
	var (
		programs []domain.Program
		cards    []domain.Flashcard
	)

	for i, p := range f.Programs {
		if strings.TrimSpace(p.Name) == "" {
			return nil, nil, domain.NewValidationError(fmt.Sprintf("programs[%d].name", i), "cannot be empty", nil)
		}
		difficulty, err := domain.ParseDifficulty(p.Difficulty)
		if err != nil {
			return nil, nil, fmt.Errorf("program %q: %w", p.Name, err)
		}

		programID := p.ID
		if programID == uuid.Nil {
			programID = uuid.NewSHA1(namespace, []byte("program/"+p.Name))
		}

		program := domain.Program{
			ID:          programID,
			Name:        p.Name,
			CategoryID:  p.CategoryID,
			Subcategory: p.Subcategory,
			Difficulty:  difficulty,
			Generic:     true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		for j, c := range p.Cards {
			card, err := f.buildCard(p, program, c, now)
			if err != nil {
				return nil, nil, fmt.Errorf("program %q card %d: %w", p.Name, j, err)
			}
			cards = append(cards, card)
			program.CardIDs = append(program.CardIDs, card.ID)
		}

		if err := program.Validate(); err != nil {
			return nil, nil, fmt.Errorf("program %q: %w", p.Name, err)
		}
		programs = append(programs, program)
	}

	return programs, cards, nil
}

func (f *File) buildCard(p Program, program domain.Program, c Card, now time.Time) (domain.Flashcard, error) {
	if strings.TrimSpace(c.Question) == "" || strings.TrimSpace(c.Answer) == "" {
		return domain.Flashcard{}, domain.NewValidationError("card", "question and answer are required", nil)
	}

	difficulty := program.Difficulty
	if c.Difficulty != "" {
		d, err := domain.ParseDifficulty(c.Difficulty)
		if err != nil {
			return domain.Flashcard{}, err
		}
		difficulty = d
	}
	subcategory := c.Subcategory
	if subcategory == "" {
		subcategory = p.Subcategory
	}

	id := c.ID
	if id == uuid.Nil {
		id = uuid.NewSHA1(namespace, []byte("card/"+program.ID.String()+"/"+c.Question))
	}
	programID := program.ID

	card := domain.Flashcard{
		ID:          id,
		UserID:      f.Owner,
		CategoryID:  program.CategoryID,
		Subcategory: subcategory,
		ProgramID:   &programID,
		Question:    c.Question,
		Answer:      c.Answer,
		Difficulty:  difficulty,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	card.Approved = true
	return card, card.Validate()
}

// Apply writes the seed content in one transaction. Existing records keep
// their creation time.
func Apply(ctx context.Context, backend store.Backend, f *File, now time.Time, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	programs, cards, err := f.Build(now.UTC())
	if err != nil {
		return Result{}, err
	}

	err = backend.WithinTx(ctx, func(ctx context.Context, tx store.Stores) error {
		for i := range cards {
			card := cards[i]
			existing, err := tx.Cards.Get(ctx, card.ID)
			switch {
			case err == nil:
				card.CreatedAt = existing.CreatedAt
			case !store.IsNotFoundError(err):
				return err
			}
			if err := tx.Cards.Upsert(ctx, &card); err != nil {
				return fmt.Errorf("failed to write card %s: %w", card.ID, err)
			}
		}

		for i := range programs {
			program := programs[i]
			existing, err := tx.Programs.Get(ctx, program.ID)
			switch {
			case err == nil:
				program.CreatedAt = existing.CreatedAt
			case !store.IsNotFoundError(err):
				return err
			}
			if err := tx.Programs.Upsert(ctx, &program); err != nil {
				return fmt.Errorf("failed to write program %q: %w", program.Name, err)
			}
			logger.Info("seeded program",
				slog.String("program_id", program.ID.String()),
				slog.String("name", program.Name),
				slog.Int("cards", len(program.CardIDs)))
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	return Result{Programs: len(programs), Cards: len(cards)}, nil
}
