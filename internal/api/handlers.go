package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	hlog "github.com/mattjoyce/hookbox/internal/log"
	"github.com/mattjoyce/hookbox/internal/message"
	"github.com/mattjoyce/hookbox/internal/webhook"
)

// handleRoot handles GET /.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, RootResponse{Service: ServiceName, Status: "running"})
}

// handleLive handles GET /health/live. It never touches the store.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady handles GET /health/ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.config.SecretConfigured {
		s.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{Status: ErrNotReady.Error(), Reason: "webhook secret not configured"})
		return
	}
	if s.store == nil || !s.store.HealthCheck(r.Context()) {
		s.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{Status: ErrNotReady.Error(), Reason: "store unavailable"})
		return
	}
	s.writeJSON(w, http.StatusOK, ReadyResponse{Status: "ready"})
}

// handleMessages handles GET /messages.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	filter, violations := parseListFilter(r)
	if len(violations) > 0 {
		hlog.AnnotationsFrom(r.Context()).SetError(&webhook.ValidationError{Violations: violations})
		s.writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: webhook.ErrValidationFailed.Error(), Fields: violations})
		return
	}

	page, err := s.store.List(r.Context(), filter)
	if err != nil {
		hlog.AnnotationsFrom(r.Context()).SetError(err)
		s.writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

// handleStats handles GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		hlog.AnnotationsFrom(r.Context()).SetError(err)
		s.writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	if stats.MessagesPerSender == nil {
		stats.MessagesPerSender = []message.SenderCount{}
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// parseListFilter reads limit, offset, from, since and q. Bounds are
// enforced here so callers get a 422 rather than a silently clamped page.
func parseListFilter(r *http.Request) (message.ListFilter, []webhook.Violation) {
	q := r.URL.Query()
	f := message.ListFilter{
		Limit:    message.DefaultLimit,
		From:     q.Get("from"),
		Since:    q.Get("since"),
		Contains: q.Get("q"),
	}

	var violations []webhook.Violation
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > message.MaxLimit {
			violations = append(violations, webhook.Violation{
				Field:   "limit",
				Rule:    "range",
				Message: "limit must be an integer between 1 and " + strconv.Itoa(message.MaxLimit),
			})
		} else {
			f.Limit = n
		}
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			violations = append(violations, webhook.Violation{
				Field:   "offset",
				Rule:    "min",
				Message: "offset must be a non-negative integer",
			})
		} else {
			f.Offset = n
		}
	}
	return f, violations
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}
