// Package ai renders prompt templates and sends them to a generative text model.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/m3rciful/newsmarket/core/logger"
)

const (
	component = "ai"

	DefaultModel   = "gemini-2.0-flash"
	DefaultTimeout = 45 * time.Second
)

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// contentGenerator is the subset of *genai.Models the client calls.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ClientOptions configures NewGenAIClient.
type ClientOptions struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	// HTTPClient overrides the SDK transport.
	HTTPClient      *http.Client
	Temperature     float32
	MaxOutputTokens int32
}

// GenAIClient calls Gemini through the genai SDK.
type GenAIClient struct {
	models  contentGenerator
	model   string
	timeout time.Duration
	config  *genai.GenerateContentConfig
}

// NewGenAIClient builds a client. Without an API key it still returns a client
// whose Generate fails with ErrUnavailable, so the bot runs without AI.
func NewGenAIClient(ctx context.Context, opts ClientOptions) (*GenAIClient, error) {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.4
	}
	if opts.MaxOutputTokens == 0 {
		opts.MaxOutputTokens = 1024
	}
	c := &GenAIClient{
		model:   opts.Model,
		timeout: opts.Timeout,
		config: &genai.GenerateContentConfig{
			Temperature:     genai.Ptr(opts.Temperature),
			MaxOutputTokens: opts.MaxOutputTokens,
		},
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		logger.Warn(ctx, component, "ai.disabled", slog.String("reason", "missing api key"))
		return c, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("ai: create client: %w", err)
	}
	c.models = client.Models
	return c, nil
}

// Generate sends prompt to the model and returns its trimmed text.
func (c *GenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.models == nil {
		return "", ErrUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), c.config)
	took := logger.Took(start)
	if err != nil {
		err = classify(ctx, err)
		logger.Warn(ctx, component, "ai.generate.fail",
			slog.String("model", c.model),
			slog.Duration("duration", took),
			slog.String("err", err.Error()),
		)
		return "", err
	}
	text := ""
	if resp != nil {
		text = strings.TrimSpace(resp.Text())
	}
	if text == "" {
		return "", ErrEmpty
	}
	logger.Debug(ctx, component, "ai.generate.ok",
		slog.String("model", c.model),
		slog.Duration("duration", took),
		slog.Int("prompt_len", len(prompt)),
		slog.Int("text_len", len(text)),
	)
	return text, nil
}

// classify maps SDK and context failures onto the package's typed errors.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{StatusCode: apiErr.Code, Status: apiErr.Status, Message: apiErr.Message}
	}
	return fmt.Errorf("ai: generate: %w", err)
}
