package sender

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	tele "gopkg.in/telebot.v4"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeAPI struct {
	mu   sync.Mutex
	sent []string
	to   []int64
}

func (f *fakeAPI) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, what.(string))
	f.to = append(f.to, to.(*tele.Chat).ID)
	return &tele.Message{}, nil
}

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	calls := 0
	err := d.Enqueue(context.Background(), "send.text", "sendMessage", func() error {
		calls++
		if calls < 3 {
			return &net.OpError{Op: "dial", Err: errors.New("refused")}
		}
		return nil
	})
	require.NoError(t, err)
	d.Close()

	assert.Equal(t, 3, calls)
	assert.Equal(t, uint64(1), d.SentCount())
	assert.Equal(t, uint64(0), d.ErrorCount())
}

func TestDispatcherCountsPermanentFailures(t *testing.T) {
	d := NewDispatcher(Options{Workers: 2, MaxRetries: 3, RetryBackoff: time.Millisecond})
	calls := 0
	var mu sync.Mutex
	require.NoError(t, d.Enqueue(context.Background(), "send.text", "", func() error {
		mu.Lock()
		calls++
		mu.Unlock()
		return &tele.Error{Code: 403, Description: "Forbidden: bot was blocked by the user"}
	}))
	d.Close()

	assert.Equal(t, 1, calls)
	assert.Equal(t, uint64(1), d.ErrorCount())
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	d.Close()
	d.Close()
	err := d.Enqueue(context.Background(), "x", "", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestDispatcherQueueFull(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, d.Enqueue(context.Background(), "block", "", func() error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.NoError(t, d.Enqueue(context.Background(), "queued", "", func() error { return nil }))
	err := d.Enqueue(context.Background(), "overflow", "", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueFull)
	close(release)
	d.Close()
}

func TestDispatcherNotify(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	api := &fakeAPI{}
	require.NoError(t, d.Notify(context.Background(), api, 99, "new offer"))
	assert.Error(t, d.Notify(context.Background(), api, 0, "nobody"))
	d.Close()

	assert.Equal(t, []string{"new offer"}, api.sent)
	assert.Equal(t, []int64{99}, api.to)
}

func TestSanitizeAndClassify(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123:ABC-def/sendMessage": EOF`)
	assert.NotContains(t, sanitizeErrorMessage(err), "ABC-def")
	assert.Equal(t, "timeout", classifyError(context.DeadlineExceeded))
	assert.Equal(t, "http_4xx", classifyError(&tele.Error{Code: 400}))
	assert.Equal(t, "flood", classifyError(tele.FloodError{RetryAfter: 1}))
	assert.Equal(t, "dial", classifyError(&net.OpError{Op: "dial", Err: errors.New("x")}))
}
