package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/leadline-ai/leadline/internal/config"
	"github.com/leadline-ai/leadline/internal/memory"
	"github.com/leadline-ai/leadline/internal/observability"
	"github.com/leadline-ai/leadline/internal/protocol"
	"github.com/leadline-ai/leadline/internal/session"
	"github.com/leadline-ai/leadline/internal/voice"
)

// ConnectionRunner drives one websocket session's voice loop. Inbound
// carries parsed protocol messages; outbound carries protocol messages
// to write back.
type ConnectionRunner interface {
	RunConnection(ctx context.Context, h *session.Handle, inbound <-chan any, outbound chan<- any) error
}

type Server struct {
	cfg      config.Config
	sessions *session.Manager
	runner   ConnectionRunner
	tts      voice.TextToSpeech
	archive  memory.Store
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, sessions *session.Manager, runner ConnectionRunner, tts voice.TextToSpeech, archive memory.Store, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		sessions: sessions,
		runner:   runner,
		tts:      tts,
		archive:  archive,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browser connections by default, so a
				// foreign page cannot drive a caller's mic session.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
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
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/voice/session", s.handleCreateSession)
	r.Post("/v1/voice/session/{id}/end", s.handleEndSession)
	r.Get("/v1/voice/session/{id}/state", s.handleSessionState)
	r.Get("/v1/voice/session/ws", s.handleSessionWS)
	r.Get("/v1/voice/voices", s.handleListVoices)
	r.Post("/v1/voice/tts/preview", s.handlePreviewTTS)
	r.Get("/v1/leads/{id}/conversations", s.handleLeadConversations)
	r.Get("/v1/conversations/{id}/turns", s.handleConversationTurns)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"active_sessions": s.sessions.ActiveCount(),
	})
}

type createSessionRequest struct {
	LeadID   string `json:"lead_id"`
	LeadName string `json:"lead_name"`
	AgentID  string `json:"agent_id"`
	VoiceID  string `json:"voice_id"`
}

type createSessionResponse struct {
	SessionID       string    `json:"session_id"`
	LeadID          string    `json:"lead_id"`
	AgentID         string    `json:"agent_id"`
	Status          string    `json:"status"`
	StartedAt       time.Time `json:"started_at"`
	InactivityTTLMS int64     `json:"inactivity_ttl_ms"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.LeadID) == "" {
		respondError(w, http.StatusBadRequest, "missing_lead_id", "lead_id is required")
		return
	}
	if strings.TrimSpace(req.AgentID) == "" {
		req.AgentID = "default"
	}

	h := s.sessions.Create(req.LeadID, req.AgentID)
	h.Store.SetAgent(&session.AgentProfile{ID: req.AgentID, Name: s.cfg.AgentName, VoiceID: req.VoiceID})
	h.Store.SetLead(&session.Lead{ID: req.LeadID, Name: req.LeadName})

	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("created").Inc()

	respondJSON(w, http.StatusCreated, createSessionResponse{
		SessionID:       h.ID,
		LeadID:          h.LeadID,
		AgentID:         h.AgentID,
		Status:          string(h.Status),
		StartedAt:       h.StartedAt,
		InactivityTTLMS: s.cfg.SessionInactivityTimeout.Milliseconds(),
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	h, err := s.sessions.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("ended").Inc()
	respondJSON(w, http.StatusOK, h)
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h, err := s.sessions.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": h.ID,
		"status":     h.Status,
		"state":      h.Store.State(),
	})
}

func (s *Server) handleLeadConversations(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "archive not configured")
		return
	}
	id := chi.URLParam(r, "id")
	records, err := s.archive.RecentConversations(r.Context(), id, 20)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "archive_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"lead_id": id, "conversations": records})
}

func (s *Server) handleConversationTurns(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "archive not configured")
		return
	}
	id := chi.URLParam(r, "id")
	turns, err := s.archive.ConversationTurns(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "archive_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"conversation_id": id, "turns": turns})
}

func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}
	if s.runner == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "connection runner not configured")
		return
	}

	h, err := s.sessions.Get(sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()
	h.Store.SetConnection(session.StatusConnected)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan any, 256)
	outbound := make(chan any, 256)
	runDone := make(chan struct{})

	go func() {
		defer close(runDone)
		_ = s.runner.RunConnection(ctx, h, inbound, outbound)
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	conn.SetReadLimit(2 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			errEvent := protocol.ErrorEvent{
				Type:        protocol.TypeErrorEvent,
				SessionID:   sessionID,
				Code:        "invalid_client_message",
				Recoverable: true,
				Detail:      err.Error(),
			}
			select {
			case outbound <- errEvent:
			default:
				// Writes stay single-threaded; drop if the queue is full.
			}
			continue
		}

		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- parsed:
		}
	}

	cancel()
	close(inbound)
	<-runDone
	<-writerDone
	h.Store.SetConnection(session.StatusDisconnected)
	s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
