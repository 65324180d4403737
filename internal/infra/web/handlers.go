package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"genstudio-backend/internal/domain"
	"genstudio-backend/internal/usecase"
)

type enqueueResponse struct {
	TaskRef       string `json:"task_ref"`
	JobID         string `json:"job_id"`
	UserMessageID string `json:"user_message_id,omitempty"`
}

func (s *Server) enqueueChatHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var params usecase.ChatParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, userMsgID, err := s.jobUC.EnqueueChat(r.Context(), sessionID, params)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, enqueueResponse{
		TaskRef:       job.TaskRef,
		JobID:         job.ID,
		UserMessageID: userMsgID,
	})
}

func (s *Server) enqueueImageHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var params usecase.ImageParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := s.jobUC.EnqueueImage(r.Context(), sessionID, params)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, enqueueResponse{TaskRef: job.TaskRef, JobID: job.ID})
}

func (s *Server) jobStatusHandler(w http.ResponseWriter, r *http.Request) {
	view, err := s.jobUC.Status(r.Context(), chi.URLParam(r, "taskRef"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) jobCancelHandler(w http.ResponseWriter, r *http.Request) {
	err := s.jobUC.Cancel(r.Context(), chi.URLParam(r, "taskRef"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancel_requested"})
}

func (s *Server) jobTransitionsHandler(w http.ResponseWriter, r *http.Request) {
	view, err := s.jobUC.Status(r.Context(), chi.URLParam(r, "taskRef"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	transitions, err := s.jobUC.Transitions(r.Context(), view.JobID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job_id": view.JobID, "transitions": transitions})
}

type speechRequest struct {
	Text    string  `json:"text"`
	VoiceID string  `json:"voice_id"`
	Speed   float64 `json:"speed"`
}

func (s *Server) speechHandler(w http.ResponseWriter, r *http.Request) {
	var req speechRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := s.speechUC.Synthesize(r.Context(), req.Text, req.VoiceID, req.Speed)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"audio_url":   res.URL,
		"duration_ms": res.DurationMS,
	})
}

// writeDomainError maps the error taxonomy onto HTTP statuses. Validation
// details are safe to echo; everything else stays generic.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *domain.ValidationError
	var vendorErr *domain.VendorError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrJobAlreadyTerminal):
		writeError(w, http.StatusConflict, "job already finished")
	case errors.As(err, &vendorErr):
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("vendor error")
		writeError(w, http.StatusBadGateway, "generation vendor failed")
	default:
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
