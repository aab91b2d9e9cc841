// Package ai wraps the hosted language model used to infer expense
// categories and to write spending summaries.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"spendwise/internal/core"
	"spendwise/internal/log"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
)

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("ai: no model credential configured")
	// ErrEmptyCategory is returned when the model answers with nothing usable.
	ErrEmptyCategory = errors.New("ai: model returned an empty category")
)

const (
	DisabledMessage   = "The AI features are currently disabled. To enable them, please set the `SPENDWISE_LLM_API_KEY` environment variable."
	NoExpensesMessage = "You don't have any expenses logged yet. Start adding expenses to get a summary."

	defaultTimeout = 20 * time.Second
)

type (
	CategorizeInput struct {
		Title       string
		Description string
	}

	CategorizeOutput struct {
		Category string
	}

	SummaryOutput struct {
		Summary string
	}

	Categorizer interface {
		Categorize(ctx context.Context, in CategorizeInput) (CategorizeOutput, error)
	}

	Summarizer interface {
		Summarize(ctx context.Context, expenses []core.Expense) (SummaryOutput, error)
	}
)

// Config configures the model client.
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Client implements Categorizer and Summarizer. A Client without a model
// is valid: every call then short-circuits without touching the network.
type Client struct {
	model   llms.Model
	limiter *rate.Limiter
	timeout time.Duration
	logger  *log.Logger
}

var (
	_ Categorizer = (*Client)(nil)
	_ Summarizer  = (*Client)(nil)
)

// NewClient builds a client for an OpenAI-compatible endpoint. An empty
// APIKey yields a disabled client and no error.
func NewClient(cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return NewWithModel(nil, cfg, logger), nil
	}

	opts := []openai.Option{openai.WithToken(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create language model client: %w", err)
	}
	return NewWithModel(llm, cfg, logger), nil
}

// NewWithModel wraps an existing model. A nil model disables the client.
func NewWithModel(model llms.Model, cfg Config, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Discard()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &Client{
		model:   model,
		limiter: rate.NewLimiter(limit, burst),
		timeout: timeout,
		logger:  logger.WithComponent(log.ComponentAI),
	}
}

// Enabled reports whether calls will reach a model.
func (c *Client) Enabled() bool {
	return c != nil && c.model != nil
}

func (c *Client) generate(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	out, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt, opts...)
	if err != nil {
		return "", fmt.Errorf("generate completion: %w", err)
	}
	c.logger.DebugContext(ctx, "Model call completed", log.FieldDuration, time.Since(start).Milliseconds())
	return out, nil
}
