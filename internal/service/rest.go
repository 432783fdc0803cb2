package service

import (
	"encoding/json"
	"errors"
	"net/http"
)

// maxBodyBytes bounds a submission body.
const maxBodyBytes = 1 << 20

// RegisterRoutes mounts the REST endpoints, including the legacy /api aliases.
func (s *MatchService) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /submit", s.handleSubmit)
	mux.HandleFunc("POST /api/submit-details", s.handleSubmit)
	mux.HandleFunc("GET /groups/{userId}", s.handleGroups)
	mux.HandleFunc("GET /api/groups/{userId}", s.handleGroups)
}

func (s *MatchService) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, &ValidationError{FieldErrors: map[string]string{"body": "request body must be a JSON object"}})
		return
	}

	resp, err := s.submit(r.Context(), &req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *MatchService) handleGroups(w http.ResponseWriter, r *http.Request) {
	resp, err := s.userGroups(r.Context(), r.PathValue("userId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *MatchService) writeError(w http.ResponseWriter, err error) {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Status:  StatusError,
			Message: "invalid request",
			Errors:  vErr.FieldErrors,
		})
		return
	}
	s.writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Status:  StatusError,
		Message: errInternal.Error(),
	})
}

func (s *MatchService) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", "error", err)
	}
}
