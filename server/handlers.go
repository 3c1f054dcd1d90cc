package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/xhad/de5chat/internal/models"
	"github.com/xhad/de5chat/pkg/assistant"
	"github.com/xhad/de5chat/pkg/leads"
)

const maxBodyBytes = 1 << 20

type ChatRequest struct {
	Message string                    `json:"message"`
	UserID  *string                   `json:"user_id,omitempty"`
	History []models.ConversationTurn `json:"history,omitempty"`
}

type ChatResponse struct {
	Response string  `json:"response"`
	UserID   *string `json:"user_id"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"message": "DE5 Chat Assistant Backend is running."})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	if req.Message == "" {
		s.errorResponse(w, http.StatusBadRequest, "message is required")
		return
	}

	result := s.assistant.Answer(r.Context(), assistant.Request{
		Message: req.Message,
		UserID:  req.UserID,
		History: req.History,
	})
	log.Printf("[%s] chat answered with state %s", RequestID(r.Context()), result.State)

	s.jsonResponse(w, http.StatusOK, ChatResponse{
		Response: result.Response,
		UserID:   result.UserID,
	})
}

func (s *Server) handleCreateLead(w http.ResponseWriter, r *http.Request) {
	var sub leads.Submission
	if err := decodeJSON(w, r, &sub); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	id, err := s.leads.Add(r.Context(), sub)
	if err != nil {
		log.Printf("[%s] failed to capture lead: %v", RequestID(r.Context()), err)
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	log.Printf("[%s] captured lead %d", RequestID(r.Context()), id)

	s.jsonResponse(w, http.StatusOK, map[string]string{"message": "Lead captured successfully."})
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	all, err := s.leads.List(r.Context())
	if err != nil {
		log.Printf("[%s] failed to list leads: %v", RequestID(r.Context()), err)
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"leads": all})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return &ErrBadRequest{Message: "request body is empty"}
		}
		return &ErrBadRequest{Message: "invalid JSON body", Cause: err}
	}
	return nil
}
