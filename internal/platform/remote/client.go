// Package remote implements the HTTP client for the remote card store.
//
// The remote API is a small JSON resource tree keyed by user:
//
//	GET /users/{userID}/flashcards?category=&updated_since=
//	PUT /users/{userID}/flashcards
//	GET /users/{userID}/stats
//	PUT /users/{userID}/stats
package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/phrazzld/flashdeck/internal/domain"
	"github.com/phrazzld/flashdeck/internal/platform/logger"
)

// Config configures the client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the remote store. Every failure is returned as a
// *domain.SyncError; network errors, 5xx and 429 responses are retryable.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

type flashcardsEnvelope struct {
	Flashcards []domain.Flashcard `json:"flashcards"`
}

type errorBody struct {
	Error string `json:"error"`
}

// NewClient creates a Client for the given base URL.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	return &Client{
		http:   client,
		logger: logger.With(slog.String("component", "remote_client")),
	}
}

// FetchFlashcards returns the remote cards matching the filter.
func (c *Client) FetchFlashcards(ctx context.Context, filter domain.RemoteFilter) ([]domain.Flashcard, error) {
	const op = "fetch_flashcards"

	var result flashcardsEnvelope
	req := c.http.R().
		SetContext(ctx).
		SetPathParam("userID", filter.UserID.String()).
		SetResult(&result).
		SetError(&errorBody{})
	if filter.CategoryID != "" {
		req.SetQueryParam("category", filter.CategoryID)
	}
	if filter.UpdatedSince != nil {
		req.SetQueryParam("updated_since", filter.UpdatedSince.UTC().Format(time.RFC3339Nano))
	}

	resp, err := req.Get("/users/{userID}/flashcards")
	if err := c.check(ctx, op, resp, err); err != nil {
		return nil, err
	}

	if result.Flashcards == nil {
		return []domain.Flashcard{}, nil
	}
	return result.Flashcards, nil
}

// SaveFlashcards writes cards to the remote store.
func (c *Client) SaveFlashcards(ctx context.Context, userID uuid.UUID, cards []domain.Flashcard) error {
	const op = "save_flashcards"

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("userID", userID.String()).
		SetBody(flashcardsEnvelope{Flashcards: cards}).
		SetError(&errorBody{}).
		Put("/users/{userID}/flashcards")
	return c.check(ctx, op, resp, err)
}

// FetchUserStats returns the remote stats, or nil when the remote store
// has none for the user.
func (c *Client) FetchUserStats(ctx context.Context, userID uuid.UUID) (*domain.UserStats, error) {
	const op = "fetch_user_stats"

	var stats domain.UserStats
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("userID", userID.String()).
		SetResult(&stats).
		SetError(&errorBody{}).
		Get("/users/{userID}/stats")
	if err == nil && resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if err := c.check(ctx, op, resp, err); err != nil {
		return nil, err
	}
	return &stats, nil
}

// SaveUserStats writes stats to the remote store.
func (c *Client) SaveUserStats(ctx context.Context, userID uuid.UUID, stats domain.UserStats) error {
	const op = "save_user_stats"

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("userID", userID.String()).
		SetBody(stats).
		SetError(&errorBody{}).
		Put("/users/{userID}/stats")
	return c.check(ctx, op, resp, err)
}

// check converts transport errors and non-2xx responses into SyncErrors.
func (c *Client) check(ctx context.Context, op string, resp *resty.Response, err error) error {
	log := logger.FromContextOrDefault(ctx, c.logger)

	if err != nil {
		// a cancelled caller is not worth retrying
		retryable := !errors.Is(err, context.Canceled)
		log.Warn("remote request failed",
			slog.String("operation", op),
			slog.String("error", err.Error()))
		return domain.NewSyncError(op, retryable, err)
	}

	status := resp.StatusCode()
	if status >= 200 && status < 300 {
		log.Debug("remote request succeeded",
			slog.String("operation", op),
			slog.Int("status", status),
			slog.Duration("duration", resp.Time()))
		return nil
	}

	message := resp.Status()
	if body, ok := resp.Error().(*errorBody); ok && body.Error != "" {
		message = body.Error
	}

	retryable := status >= http.StatusInternalServerError || status == http.StatusTooManyRequests
	log.Warn("remote request rejected",
		slog.String("operation", op),
		slog.Int("status", status),
		slog.Bool("retryable", retryable))
	return domain.NewSyncError(op, retryable, &StatusError{StatusCode: status, Message: message})
}

// StatusError is a non-2xx response from the remote store.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote store responded %d: %s", e.StatusCode, e.Message)
}
