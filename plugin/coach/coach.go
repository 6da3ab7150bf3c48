// Package coach asks an OpenAI-compatible model for short advice based on an analytics report.
package coach

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/hrygo/habitsense/analytics"
	"github.com/hrygo/habitsense/internal/profile"
)

// LLM parameters for coaching
const (
	coachMaxTokens   = 400
	coachTemperature = 0.4
	defaultTimeout   = 30 * time.Second
	defaultRate      = 1.0
	defaultBurst     = 2
)

var (
	// ErrDisabled is returned when no API key is configured.
	ErrDisabled = errors.New("coach is disabled")
	// ErrRateLimited is returned when the request rate exceeds the configured limit.
	ErrRateLimited = errors.New("coach rate limit exceeded")
)

// Observer records coach completions.
type Observer interface {
	RecordCoachRequest(provider string, latency time.Duration, success bool)
}

// Config holds the coach client configuration.
type Config struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
	// Rate is the number of requests per second allowed across all users.
	Rate float64
}

// ConfigFromProfile extracts the coach configuration from the instance profile.
func ConfigFromProfile(p *profile.Profile) Config {
	return Config{
		Provider: p.CoachProvider,
		APIKey:   p.CoachAPIKey,
		BaseURL:  p.CoachBaseURL,
		Model:    p.CoachModel,
		Timeout:  time.Duration(p.CoachTimeout) * time.Second,
		Rate:     p.CoachRate,
	}
}

// Advice is the coach answer for one report.
type Advice struct {
	Text    string `json:"text"`
	Model   string `json:"model"`
	Summary string `json:"summary"`
}

// Coach generates advice. A Coach without API key is disabled and never calls the model.
type Coach struct {
	client   *openai.Client
	cfg      Config
	limiter  *rate.Limiter
	observer Observer
	logger   *slog.Logger
}

// New creates a coach. observer may be nil.
func New(cfg Config, observer Observer, logger *slog.Logger) *Coach {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Rate <= 0 {
		cfg.Rate = defaultRate
	}

	c := &Coach{
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Limit(cfg.Rate), defaultBurst),
		observer: observer,
		logger:   logger,
	}
	if cfg.APIKey != "" {
		config := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			config.BaseURL = cfg.BaseURL
		}
		c.client = openai.NewClientWithConfig(config)
	}
	return c
}

// Enabled reports whether the coach can call the model.
func (c *Coach) Enabled() bool {
	return c.client != nil
}

// Advise asks the model for advice on the report.
func (c *Coach) Advise(ctx context.Context, report *analytics.Report) (*Advice, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	if report == nil {
		return nil, errors.New("report is nil")
	}
	if !c.limiter.Allow() {
		return nil, ErrRateLimited
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		MaxTokens:   coachMaxTokens,
		Temperature: coachTemperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: BuildPrompt(report),
			},
		},
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	latency := time.Since(start)
	if err == nil && len(resp.Choices) == 0 {
		err = errors.New("empty response from model")
	}
	if c.observer != nil {
		c.observer.RecordCoachRequest(c.cfg.Provider, latency, err == nil)
	}
	if err != nil {
		c.logger.Error("Coach: completion failed",
			"provider", c.cfg.Provider,
			"model", c.cfg.Model,
			"error", err,
			"latency_ms", latency.Milliseconds(),
		)
		return nil, errors.Wrap(err, "coach request failed")
	}

	c.logger.Debug("Coach: completion succeeded",
		"model", c.cfg.Model,
		"latency_ms", latency.Milliseconds(),
		"tokens_total", resp.Usage.TotalTokens,
	)

	return &Advice{
		Text:    strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:   c.cfg.Model,
		Summary: report.Summary(),
	}, nil
}

// systemPrompt is the system prompt of the coach.
const systemPrompt = `You are a supportive habit coach. You receive an analysis of a person's habits:
risk per habit, detected behavioral patterns, a health score, victories, challenges and a
seven day risk forecast.

Rules:
1. Answer in at most five short sentences.
2. Start with one concrete victory if there is one.
3. Address the most urgent challenge with one specific action for today.
4. Mention the riskiest upcoming day if the forecast has one.
5. Never shame or moralize.`
