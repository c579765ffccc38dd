package ai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)
	assert.Equal(t, 30, c.Len())
	assert.Len(t, c.List(""), 30)

	counts := map[Scope]int{}
	for _, p := range c.List("") {
		counts[p.Scope]++
		assert.LessOrEqual(t, len(p.Key), 20, "key %q too long for callback data", p.Key)
	}
	assert.Equal(t, 14, counts[ScopeNews])
	assert.Equal(t, 10, counts[ScopeMarket])
	assert.Equal(t, 6, counts[ScopeGeneral])

	_, ok := c.Get("summary")
	assert.True(t, ok)
}

func TestRender(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)

	out, err := c.Render("tldr", map[string]string{"title": "Rates cut", "content": "Bank lowers rates.", "lang": "German"})
	require.NoError(t, err)
	assert.Contains(t, out, "German")
	assert.Contains(t, out, "Rates cut")
	assert.NotContains(t, out, "<no value>")

	out, err = c.Render("ask", nil)
	require.NoError(t, err)
	assert.NotContains(t, out, "<no value>")

	_, err = c.Render("nope", nil)
	assert.ErrorIs(t, err, ErrUnknownPrompt)
}

func TestLoadCatalogRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"empty key":   "prompts:\n  - key: ''\n    scope: news\n    template: x\n",
		"duplicate":   "prompts:\n  - {key: a, scope: news, template: x}\n  - {key: a, scope: news, template: y}\n",
		"scope":       "prompts:\n  - {key: a, scope: weather, template: x}\n",
		"no template": "prompts:\n  - {key: a, scope: news, template: ' '}\n",
		"bad syntax":  "prompts:\n  - {key: a, scope: news, template: '{{.x'}\n",
		"yaml":        "prompts: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadCatalog([]byte(doc))
			assert.Error(t, err)
		})
	}
}

type fakeModels struct {
	resp   *genai.GenerateContentResponse
	err    error
	block  bool
	prompt string
}

func (f *fakeModels) GenerateContent(ctx context.Context, _ string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.prompt = contents[0].Parts[0].Text
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.resp, f.err
}

func textResponse(s string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: s}}}}},
	}
}

func newTestClient(m contentGenerator, timeout time.Duration) *GenAIClient {
	return &GenAIClient{models: m, model: DefaultModel, timeout: timeout}
}

func TestGenerate(t *testing.T) {
	m := &fakeModels{resp: textResponse("  hello  ")}
	text, err := newTestClient(m, time.Second).Generate(context.Background(), "say hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, "say hi", m.prompt)
}

func TestGenerateErrors(t *testing.T) {
	ctx := context.Background()

	c, err := NewGenAIClient(ctx, ClientOptions{})
	require.NoError(t, err)
	_, err = c.Generate(ctx, "x")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = newTestClient(&fakeModels{resp: textResponse("   ")}, time.Second).Generate(ctx, "x")
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = newTestClient(&fakeModels{block: true}, 10*time.Millisecond).Generate(ctx, "x")
	assert.ErrorIs(t, err, ErrTimeout)

	_, err = newTestClient(&fakeModels{err: genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "quota"}}, time.Second).Generate(ctx, "x")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 429, apiErr.StatusCode)
	assert.True(t, apiErr.Temporary())
	assert.Equal(t, "ai_rate_limited", apiErr.Code())

	boom := errors.New("boom")
	_, err = newTestClient(&fakeModels{err: boom}, time.Second).Generate(ctx, "x")
	assert.ErrorIs(t, err, boom)
}

type slowGen struct {
	cur, peak atomic.Int32
}

func (g *slowGen) Generate(context.Context, string) (string, error) {
	n := g.cur.Add(1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	g.cur.Add(-1)
	return "ok", nil
}

func TestLimitedBoundsConcurrency(t *testing.T) {
	g := &slowGen{}
	l := NewLimited(g, 2)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.Generate(context.Background(), "p")
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, g.peak.Load(), int32(2))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	block := NewLimited(g, 1)
	require.NoError(t, block.sem.Acquire(context.Background(), 1))
	_, err := block.Generate(ctx, "p")
	assert.ErrorIs(t, err, ErrTimeout)
}

type echoGen struct{ last string }

func (g *echoGen) Generate(_ context.Context, prompt string) (string, error) {
	g.last = prompt
	return "answer", nil
}

func TestServiceRun(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)
	g := &echoGen{}
	svc := NewService(g, c, "Ukrainian")

	out, err := svc.Summarize(context.Background(), "Title", "Body")
	require.NoError(t, err)
	assert.Equal(t, "answer", out)
	assert.True(t, strings.Contains(g.last, "Ukrainian") && strings.Contains(g.last, "Body"))

	_, err = svc.Run(context.Background(), "shorten", map[string]string{"text": "long", "lang": "French"})
	require.NoError(t, err)
	assert.Contains(t, g.last, "French")

	_, err = svc.Run(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, ErrUnknownPrompt)
}
