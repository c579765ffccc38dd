package ai

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// Limited bounds the number of concurrent calls to the wrapped Generator.
type Limited struct {
	next Generator
	sem  *semaphore.Weighted
}

// NewLimited wraps g; n <= 0 means one call at a time.
func NewLimited(g Generator, n int) *Limited {
	if n <= 0 {
		n = 1
	}
	return &Limited{next: g, sem: semaphore.NewWeighted(int64(n))}
}

// Generate waits for a slot, honouring ctx, then delegates.
func (l *Limited) Generate(ctx context.Context, prompt string) (string, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("%w: waiting for slot: %v", ErrTimeout, err)
	}
	defer l.sem.Release(1)
	return l.next.Generate(ctx, prompt)
}
