package ai

import (
	"context"
	"log/slog"
	"maps"

	"github.com/m3rciful/newsmarket/core/logger"
)

// Service runs catalog prompts against a Generator.
type Service struct {
	gen     Generator
	catalog *Catalog
	lang    string
}

// NewService builds a Service; lang fills {{.lang}} when the input has none.
func NewService(gen Generator, catalog *Catalog, lang string) *Service {
	if lang == "" {
		lang = "English"
	}
	return &Service{gen: gen, catalog: catalog, lang: lang}
}

// Catalog exposes the prompt set for menus.
func (s *Service) Catalog() *Catalog { return s.catalog }

// Run renders the prompt key with input and returns the model's answer.
func (s *Service) Run(ctx context.Context, key string, input map[string]string) (string, error) {
	in := make(map[string]string, len(input)+1)
	maps.Copy(in, input)
	if in["lang"] == "" {
		in["lang"] = s.lang
	}
	prompt, err := s.catalog.Render(key, in)
	if err != nil {
		return "", err
	}
	text, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	logger.Debug(ctx, component, "prompt.ok", slog.String("key", key), slog.Int("text_len", len(text)))
	return text, nil
}

// Summarize runs the summary prompt over a news item.
func (s *Service) Summarize(ctx context.Context, title, content string) (string, error) {
	return s.Run(ctx, "summary", map[string]string{"title": title, "content": content})
}
