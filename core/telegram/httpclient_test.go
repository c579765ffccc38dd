package telegram

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestRetryTransportRetriesDialErrors(t *testing.T) {
	calls := 0
	rt := &retryTransport{
		maxRetries: 2,
		backoff:    time.Millisecond,
		base: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			calls++
			if calls < 3 {
				return nil, &net.OpError{Op: "dial", Err: errors.New("refused")}
			}
			body, _ := io.ReadAll(r.Body)
			return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(string(body)))}, nil
		}),
	}
	req, err := http.NewRequest(http.MethodPost, "http://example.invalid", strings.NewReader("payload"))
	require.NoError(t, err)

	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	got, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "payload", string(got), "body is replayed on retry")
	assert.Equal(t, 3, calls)
}

func TestRetryTransportStopsOnPermanentError(t *testing.T) {
	calls := 0
	rt := &retryTransport{
		maxRetries: 3,
		backoff:    time.Millisecond,
		base: roundTripFunc(func(*http.Request) (*http.Response, error) {
			calls++
			return nil, errors.New("malformed")
		}),
	}
	req, _ := http.NewRequest(http.MethodGet, "http://example.invalid", nil)
	_, err := rt.RoundTrip(req)
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestHTTPOptionsDefaults(t *testing.T) {
	o := HTTPOptions{RetryAttempts: -1}.withDefaults()
	assert.Equal(t, 0, o.RetryAttempts)
	assert.Equal(t, 30*time.Second, o.Timeout)

	c := BuildHTTPClient(HTTPOptions{Timeout: time.Minute})
	assert.Equal(t, time.Minute, c.Timeout)
}
