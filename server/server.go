// Package server exposes the operational HTTP surface of a running bus:
// delivery history, in-flight tasks, Prometheus metrics, a reload trigger
// and a live delivery stream over websocket.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/15532th/avtdl/bus"
	"github.com/15532th/avtdl/errors"
)

// ReloadFunc rebuilds the configuration and swaps it into the bus,
// returning the new generation number. A non-empty configYAML replaces the
// on-disk document for this reload; empty means reread the config file.
type ReloadFunc func(ctx context.Context, configYAML []byte) (uint64, error)

// maxReloadBody bounds inline configuration documents.
const maxReloadBody = 1 << 20

// Server serves the HTTP API for one bus.
type Server struct {
	bus    *bus.Bus
	logger *slog.Logger
	reload ReloadFunc

	httpServer *http.Server
	live       *liveHub
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithReload enables the POST /api/reload endpoint.
func WithReload(fn ReloadFunc) Option {
	return func(s *Server) {
		s.reload = fn
	}
}

// New creates a server for the given bus and registers itself as a bus
// observer for the live stream.
func New(b *bus.Bus, opts ...Option) *Server {
	s := &Server{bus: b}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default().With("component", "server")
	}
	s.live = newLiveHub(s.logger)
	b.AddObserver(s.live.observe)
	return s
}

// Handler builds the route table. Exposed separately from Start for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/tasks", s.handleTasks)
	mux.HandleFunc("/api/reload", s.handleReload)
	mux.HandleFunc("/api/live", s.live.handleLive)
	mux.Handle("/metrics", promhttp.HandlerFor(
		s.bus.Metrics().PrometheusRegistry(),
		promhttp.HandlerOpts{},
	))
	return mux
}

// Start listens on host:port and serves until Shutdown. It returns once
// the listener is bound; serving continues in the background.
func (s *Server) Start(host string, port int) error {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.WrapFatal(err, "Server", "Start", "binding "+addr)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if serveErr := s.httpServer.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("http server failed", "error", serveErr)
		}
	}()

	s.logger.Info("http server listening", "addr", listener.Addr().String())
	return nil
}

// Shutdown stops the listener, closes live streams and waits for in-flight
// requests up to the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.live.close()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// historyEntry is the wire form of one delivery record.
type historyEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
	Chain     string          `json:"chain"`
	Type      string          `json:"type"`
	Record    json.RawMessage `json:"record,omitempty"`
	Text      string          `json:"text,omitempty"`
}

// handleHistory serves GET /api/history?actor=&entity=&chain=. actor and
// entity select the target buffer; chain is an optional filter.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	actor := r.URL.Query().Get("actor")
	entity := r.URL.Query().Get("entity")
	chainName := r.URL.Query().Get("chain")
	if actor == "" || entity == "" {
		http.Error(w, "actor and entity query parameters are required", http.StatusBadRequest)
		return
	}

	entries := s.bus.History().Query(actor, entity, chainName)
	out := make([]historyEntry, 0, len(entries))
	for _, e := range entries {
		item := historyEntry{
			Timestamp: e.Timestamp,
			Source:    e.Source,
			Chain:     e.Chain,
		}
		if e.Record != nil {
			item.Type = e.Record.TypeName()
			if data, err := e.Record.AsJSON(); err == nil {
				item.Record = data
			} else {
				item.Text = e.Record.String()
			}
		}
		out = append(out, item)
	}
	writeJSON(w, s.logger, map[string]any{
		"generation": s.bus.Generation(),
		"entries":    out,
	})
}

// handleTasks serves GET /api/tasks?actor=.
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tasks := s.bus.Tasks().Query(r.URL.Query().Get("actor"))
	writeJSON(w, s.logger, map[string]any{
		"count": len(tasks),
		"tasks": tasks,
	})
}

// handleReload serves POST /api/reload. A failed reload leaves the current
// generation running and reports the error.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.reload == nil {
		http.Error(w, "reload not available", http.StatusNotImplemented)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxReloadBody))
	if err != nil {
		http.Error(w, "reading request body", http.StatusBadRequest)
		return
	}

	generation, err := s.reload(r.Context(), body)
	if err != nil {
		s.logger.Error("reload failed", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}

	s.logger.Info("configuration reloaded", "generation", generation)
	writeJSON(w, s.logger, map[string]any{
		"status":     "ok",
		"generation": generation,
	})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Debug("response write failed", "error", err)
	}
}
