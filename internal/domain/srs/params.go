package srs

import (
	"fmt"
	"strings"
	"time"
)

// ReviewLaterPolicy controls how cards flagged "review later" are treated
// when selecting due cards.
type ReviewLaterPolicy string

// Supported policies.
const (
	// ReviewLaterInclude treats flagged cards like any other card.
	ReviewLaterInclude ReviewLaterPolicy = "include"
	// ReviewLaterDeprioritize keeps flagged cards due but orders them last.
	ReviewLaterDeprioritize ReviewLaterPolicy = "deprioritize"
	// ReviewLaterExclude never reports flagged cards as due.
	ReviewLaterExclude ReviewLaterPolicy = "exclude"
)

// ParseReviewLaterPolicy converts a config string into a policy.
// An empty string yields the default policy.
func ParseReviewLaterPolicy(s string) (ReviewLaterPolicy, error) {
	switch p := ReviewLaterPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ReviewLaterDeprioritize, nil
	case ReviewLaterInclude, ReviewLaterDeprioritize, ReviewLaterExclude:
		return p, nil
	default:
		return "", fmt.Errorf("unknown review later policy %q", s)
	}
}

// Params defines all configurable parameters for the scheduler
type Params struct {
	// BaseInterval is the gap after the first correct answer in a streak.
	// Each further consecutive correct answer doubles it.
	BaseInterval time.Duration

	// MaxInterval caps the doubling.
	MaxInterval time.Duration

	// LapseInterval is the gap after an incorrect answer.
	LapseInterval time.Duration

	// LearnedThreshold is the minimum correct count for a card to count as learned.
	LearnedThreshold int

	ReviewLaterPolicy ReviewLaterPolicy
}

// ParamsConfig allows overriding the default parameters when creating a new Params instance.
// Zero values keep the defaults.
type ParamsConfig struct {
	BaseInterval      time.Duration
	MaxInterval       time.Duration
	LapseInterval     time.Duration
	LearnedThreshold  int
	ReviewLaterPolicy ReviewLaterPolicy
}

// NewDefaultParams creates a new Params instance with default values
func NewDefaultParams() *Params {
	return &Params{
		BaseInterval:      24 * time.Hour,
		MaxInterval:       60 * 24 * time.Hour,
		LapseInterval:     10 * time.Minute,
		LearnedThreshold:  3,
		ReviewLaterPolicy: ReviewLaterDeprioritize,
	}
}

// NewParams creates a new Params instance with custom configuration
func NewParams(config ParamsConfig) *Params {
	params := NewDefaultParams()

	if config.BaseInterval > 0 {
		params.BaseInterval = config.BaseInterval
	}
	if config.MaxInterval > 0 {
		params.MaxInterval = config.MaxInterval
	}
	if config.LapseInterval > 0 {
		params.LapseInterval = config.LapseInterval
	}
	if config.LearnedThreshold > 0 {
		params.LearnedThreshold = config.LearnedThreshold
	}
	if config.ReviewLaterPolicy != "" {
		params.ReviewLaterPolicy = config.ReviewLaterPolicy
	}

	return params
}

// Validate checks the ordering constraints the scheduler relies on.
// An incorrect answer must always schedule sooner than a correct one.
func (p *Params) Validate() error {
	if p.LapseInterval <= 0 {
		return fmt.Errorf("lapse interval must be positive, got %s", p.LapseInterval)
	}
	if p.LapseInterval >= p.BaseInterval {
		return fmt.Errorf("lapse interval %s must be shorter than base interval %s", p.LapseInterval, p.BaseInterval)
	}
	if p.MaxInterval < p.BaseInterval {
		return fmt.Errorf("max interval %s must not be shorter than base interval %s", p.MaxInterval, p.BaseInterval)
	}
	if p.LearnedThreshold < 1 {
		return fmt.Errorf("learned threshold must be at least 1, got %d", p.LearnedThreshold)
	}
	if _, err := ParseReviewLaterPolicy(string(p.ReviewLaterPolicy)); err != nil {
		return err
	}
	return nil
}
