// Package httpapi exposes the operational surface: webhook intake for both
// bot surfaces, report downloads, a live event feed over websocket, and the
// health and metrics endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/wochagonnadu/taskbot/internal/config"
	"github.com/wochagonnadu/taskbot/internal/events"
	"github.com/wochagonnadu/taskbot/internal/observability"
	"github.com/wochagonnadu/taskbot/internal/report"
	"github.com/wochagonnadu/taskbot/internal/store"
	"github.com/wochagonnadu/taskbot/internal/transport"
)

// UpdateHandler consumes one inbound chat update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, upd transport.Update) error
}

type Server struct {
	cfg      config.Config
	adminBot UpdateHandler
	userBot  UpdateHandler
	reports  *report.Generator
	bus      *events.Bus
	store    store.Store
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, adminBot, userBot UpdateHandler, reports *report.Generator, bus *events.Bus, st store.Store, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		adminBot: adminBot,
		userBot:  userBot,
		reports:  reports,
		bus:      bus,
		store:    st,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin unless explicitly opened up. Non-browser clients
				// usually omit Origin and pass.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		s.metrics.Handler().ServeHTTP(w, req)
	})

	r.Post("/v1/bots/admin/updates", s.handleUpdates(s.adminBot))
	r.Post("/v1/bots/user/updates", s.handleUpdates(s.userBot))
	r.Get("/v1/reports/{period}", s.handleReport)
	r.Get("/v1/events/ws", s.handleEventsWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"store_mode": storeMode(s.store),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ready",
		"store_mode": storeMode(s.store),
	})
}

// handleUpdates acknowledges every well-formed update with 200 even when
// handling fails, so the chat platform does not redeliver it forever.
func (s *Server) handleUpdates(handler UpdateHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var upd transport.Update
		if err := decodeJSON(r, &upd); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_update", err.Error())
			return
		}
		if handler == nil {
			respondError(w, http.StatusNotImplemented, "unavailable", "bot surface not configured")
			return
		}
		if err := handler.HandleUpdate(r.Context(), upd); err != nil {
			respondJSON(w, http.StatusOK, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	period, err := report.ParsePeriod(chi.URLParam(r, "period"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_period", err.Error())
		return
	}
	data, filename, err := s.reports.Generate(r.Context(), period)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "report_failed", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "event bus not configured")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	feed, unsubscribe := s.bus.Subscribe()
	defer unsubscribe()

	// Reader only watches for the peer going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-feed:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeJSON(r *http.Request, out any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func storeMode(st store.Store) string {
	switch st.(type) {
	case *store.MemoryStore:
		return "in-memory"
	case *store.PostgresStore:
		return "postgres"
	default:
		return "unknown"
	}
}
