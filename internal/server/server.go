// Package server exposes the completion proxy and session operations over
// HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"chatd/internal/chat"
	"chatd/internal/orchestrator"
	"chatd/internal/provider"
	"chatd/internal/session"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	openai "github.com/sashabaranov/go-openai"
)

// MaxRequestBodySize caps request bodies at 1 MiB.
const MaxRequestBodySize = 1 << 20

var validRoles = map[string]bool{
	chat.RoleUser:      true,
	chat.RoleAssistant: true,
	chat.RoleSystem:    true,
}

// Gateway is the slice of the provider gateway the HTTP surface needs.
type Gateway interface {
	ListModels(ctx context.Context) []provider.ModelInfo
	CreateCompletion(ctx context.Context, messages []chat.Message, model string) (openai.ChatCompletionResponse, error)
}

// Server holds the HTTP handler dependencies.
type Server struct {
	gateway  Gateway
	sessions *session.Store
	orch     *orchestrator.Orchestrator
	log      *slog.Logger
}

// New creates the HTTP server surface.
func New(gateway Gateway, sessions *session.Store, orch *orchestrator.Orchestrator) *Server {
	return &Server{
		gateway:  gateway,
		sessions: sessions,
		orch:     orch,
		log:      slog.Default(),
	}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Post("/chat", s.handleCompletion)
	r.Get("/chat", s.handleModels)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.handleListSessions)
		r.Post("/", s.handleCreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/select", s.handleSelectSession)
			r.Post("/clear", s.handleClearSession)
			r.Post("/messages", s.handleSendMessage)
		})
	})

	return r
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type completionRequest struct {
	Messages []chat.Message `json:"messages"`
	Model    string         `json:"model"`
}

// handleCompletion proxies one completion round trip and returns the
// provider's envelope untouched. Provider failure details are logged, not
// forwarded.
func (s *Server) handleCompletion(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxRequestBodySize))
	if err != nil {
		Error(w, http.StatusBadRequest, "Invalid messages format")
		return
	}

	var req completionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		Error(w, http.StatusBadRequest, "Invalid messages format")
		return
	}
	if !validMessages(req.Messages) {
		Error(w, http.StatusBadRequest, "Invalid messages format")
		return
	}

	resp, err := s.gateway.CreateCompletion(r.Context(), req.Messages, req.Model)
	if err != nil {
		var apiErr *provider.APIError
		switch {
		case errors.As(err, &apiErr):
			s.log.Warn("completion request failed", "status", apiErr.Status, "payload", apiErr.Payload)
		case errors.Is(err, provider.ErrNoAPIKey):
			s.log.Warn("completion rejected, credential missing")
		default:
			s.log.Warn("completion request failed", "error", err)
		}
		Error(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	JSON(w, http.StatusOK, resp)
}

// handleModels returns the filtered provider catalog as a JSON array. The
// array may be empty; fallback substitution is the caller's concern.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models := s.gateway.ListModels(r.Context())
	if models == nil {
		models = []provider.ModelInfo{}
	}
	JSON(w, http.StatusOK, models)
}

func validMessages(messages []chat.Message) bool {
	if len(messages) == 0 {
		return false
	}
	for _, m := range messages {
		if !validRoles[strings.TrimSpace(m.Role)] {
			return false
		}
	}
	return true
}
