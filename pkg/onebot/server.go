package onebot

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/a2bot/relay/pkg/debug"
	"github.com/a2bot/relay/pkg/observability"
)

// EventHandler consumes decoded events. Dispatch happens on a fresh
// goroutine after the webhook has been acknowledged, so handlers own
// their error handling entirely; nothing propagates back to the peer.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev *Event)
}

// EventHandlerFunc adapts a function to the EventHandler interface.
type EventHandlerFunc func(ctx context.Context, ev *Event)

// HandleEvent calls f.
func (f EventHandlerFunc) HandleEvent(ctx context.Context, ev *Event) { f(ctx, ev) }

// ServerConfig holds configuration for the webhook server.
type ServerConfig struct {
	Addr            string
	Secret          string
	MaxBodySize     int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		MaxBodySize:     10 << 20, // 10 MB
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		Logger:          slog.Default(),
	}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.config.Addr = addr }
}

// WithSecret enables HMAC-SHA1 verification of the X-Signature header
// the peer sends when configured with a shared secret.
func WithSecret(secret string) ServerOption {
	return func(s *Server) { s.config.Secret = secret }
}

// WithMaxBodySize sets the maximum event body size.
func WithMaxBodySize(n int64) ServerOption {
	return func(s *Server) { s.config.MaxBodySize = n }
}

// WithReadTimeout sets the HTTP read timeout.
func WithReadTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.config.ReadTimeout = d }
}

// WithWriteTimeout sets the HTTP write timeout.
func WithWriteTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.config.WriteTimeout = d }
}

// WithShutdownTimeout sets the graceful shutdown deadline.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.config.ShutdownTimeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.config.Logger = l; s.logger = l }
}

// WithMetrics mounts h at GET /metrics.
func WithMetrics(h http.Handler) ServerOption {
	return func(s *Server) { s.metrics = h }
}

// WithHealthCheck wires a dependency probe into GET /healthz. A nil
// check leaves the endpoint always healthy.
func WithHealthCheck(check func(context.Context) error) ServerOption {
	return func(s *Server) { s.health = check }
}

// Server receives OneBot webhook callbacks, acknowledges them
// immediately, and dispatches message events to an EventHandler on
// per-event goroutines. Default middleware (recovery, request ID,
// logging, metrics) is applied automatically.
type Server struct {
	httpServer *http.Server
	handler    EventHandler
	config     ServerConfig
	logger     *slog.Logger
	metrics    http.Handler
	health     func(context.Context) error

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a webhook server delivering events to handler.
func NewServer(handler EventHandler, opts ...ServerOption) *Server {
	s := &Server{
		handler: handler,
		config:  DefaultServerConfig(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.baseCtx, s.cancel = context.WithCancel(context.Background())

	mux := http.NewServeMux()
	mux.HandleFunc("POST /", s.handleWebhook)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	chain := Chain(Recovery(s.logger), RequestID(), Logging(s.logger))
	s.httpServer = &http.Server{
		Addr:         s.config.Addr,
		Handler:      observability.MetricsMiddleware(chain(mux)),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	return s
}

// Handler returns the fully wrapped HTTP handler. Used for testing.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run starts the server and blocks until ctx is cancelled or the
// listener fails. On cancellation it shuts down gracefully, giving
// in-flight requests and event handlers the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("webhook server starting", slog.String("addr", s.config.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.cancel()
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	return s.shutdown()
}

func (s *Server) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down gracefully", slog.Duration("timeout", s.config.ShutdownTimeout))
	err := s.httpServer.Shutdown(shutdownCtx)

	// Webhook callbacks are acknowledged before handling, so draining
	// the listener is not enough: wait for dispatched events too.
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		s.logger.Warn("abandoning in-flight events")
	}
	s.cancel()

	if err != nil {
		s.logger.Error("shutdown error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxBodySize))
	if err != nil {
		http.Error(w, "reading body", http.StatusBadRequest)
		return
	}

	if s.config.Secret != "" && !verifySignature(body, s.config.Secret, r.Header.Get("X-Signature")) {
		s.logger.Warn("rejecting event with bad signature")
		w.WriteHeader(http.StatusForbidden)
		return
	}

	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		s.logger.Warn("discarding undecodable event", "error", err)
		http.Error(w, "bad event payload", http.StatusBadRequest)
		return
	}

	// Acknowledge before handling; replies go through the API client.
	w.WriteHeader(http.StatusNoContent)

	if !ev.IsMessage() {
		debug.Log("onebot", "ignoring event", "post_type", ev.PostType)
		return
	}

	debug.Log("onebot", "dispatching message event",
		"type", ev.MessageType, "user", ev.UserID, "nick", ev.Sender.Nickname)

	s.wg.Add(1)
	observability.InflightEvents.Inc()
	go func() {
		defer s.wg.Done()
		defer observability.InflightEvents.Dec()
		s.handler.HandleEvent(s.baseCtx, &ev)
	}()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// verifySignature checks the OneBot HMAC-SHA1 body signature, sent as
// "sha1=<hex>" in the X-Signature header.
func verifySignature(body []byte, secret, header string) bool {
	sig, ok := strings.CutPrefix(header, "sha1=")
	if !ok {
		return false
	}
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(sig), []byte(want))
}
