// Package health serves liveness and readiness endpoints next to the bot.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/newsmarket/core/logger"
)

const component = "health"

// Pinger is implemented by the storage layer.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures Server.
type Options struct {
	Listen  string
	Version string
	DB      Pinger
	// PingTimeout bounds the readiness check; 0 means two seconds.
	PingTimeout time.Duration
}

// Server answers GET / and GET /readyz.
type Server struct {
	opts Options
	mux  *http.ServeMux
}

type status struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

// New builds a server; Run starts listening.
func New(opts Options) *Server {
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 2 * time.Second
	}
	s := &Server{opts: opts, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /{$}", s.live)
	s.mux.HandleFunc("GET /readyz", s.ready)
	return s
}

// Handler exposes the routes for tests and embedding.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, status{Status: "ok", Version: s.opts.Version})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	if s.opts.DB == nil {
		writeJSON(w, http.StatusOK, status{Status: "ok", Version: s.opts.Version})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.PingTimeout)
	defer cancel()
	if err := s.opts.DB.Ping(ctx); err != nil {
		logger.Warn(ctx, component, "ready.fail", slog.String("err", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, status{Status: "unavailable", Error: "database unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, status{Status: "ok", Version: s.opts.Version})
}

func writeJSON(w http.ResponseWriter, code int, body status) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	logger.Info(ctx, component, "health.listen", slog.String("addr", ln.Addr().String()))

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info(ctx, component, "health.stopped")
	return nil
}
