package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"chatd/internal/chat"
	"chatd/internal/orchestrator"
	"chatd/internal/session"

	"github.com/go-chi/chi/v5"
)

type sessionsResponse struct {
	ActiveID      string              `json:"active_id"`
	Conversations []chat.Conversation `json:"conversations"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, sessionsResponse{
		ActiveID:      s.sessions.ActiveID(),
		Conversations: s.sessions.Conversations(),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	conv := s.sessions.Create()
	JSON(w, http.StatusCreated, conv)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		Error(w, http.StatusNotFound, "conversation not found")
		return
	}
	JSON(w, http.StatusOK, conv)
}

// handleDeleteSession removes a conversation. Deleting an unknown id is
// still a 204: the end state is the same.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s.sessions.Delete(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSelectSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.SetActive(id); err != nil {
		Error(w, http.StatusNotFound, "conversation not found")
		return
	}
	conv, _ := s.sessions.Get(id)
	JSON(w, http.StatusOK, conv)
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.sessions.Get(id); !ok {
		Error(w, http.StatusNotFound, "conversation not found")
		return
	}
	s.sessions.Clear(id)
	conv, _ := s.sessions.Get(id)
	JSON(w, http.StatusOK, conv)
}

type sendRequest struct {
	Message string `json:"message"`
	Model   string `json:"model"`
}

// handleSendMessage runs one orchestrated round trip against the named
// conversation and returns its updated state. Provider failures are not
// errors here; they surface as the apology turn inside the conversation.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxRequestBodySize))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var req sendRequest
	if err := json.Unmarshal(body, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conv, err := s.orch.Send(r.Context(), chi.URLParam(r, "id"), req.Message, req.Model)
	switch {
	case err == nil:
		JSON(w, http.StatusOK, conv)
	case errors.Is(err, orchestrator.ErrEmptyMessage):
		Error(w, http.StatusBadRequest, "message is empty")
	case errors.Is(err, orchestrator.ErrBusy):
		Error(w, http.StatusConflict, "conversation has a request in flight")
	case errors.Is(err, chat.ErrNotFound):
		Error(w, http.StatusNotFound, "conversation not found")
	case errors.Is(err, session.ErrNotAppend):
		Error(w, http.StatusConflict, "conversation changed during request")
	default:
		s.log.Warn("send failed", "error", err)
		Error(w, http.StatusInternalServerError, "Internal Server Error")
	}
}
