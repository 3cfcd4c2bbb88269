package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	hlog "github.com/mattjoyce/hookbox/internal/log"
)

// Event types published for webhook activity.
const (
	EventMessageCreated   = "message.created"
	EventMessageDuplicate = "message.duplicate"
	EventMessageConflict  = "message.conflict"
	EventRejected         = "webhook.rejected"
)

// OutcomeRecorder counts finished ingestions by outcome.
type OutcomeRecorder interface {
	ObserveWebhook(result string)
}

// EventPublisher fans activity out to live subscribers.
type EventPublisher interface {
	Publish(eventType string, data any)
}

// HandlerConfig configures the HTTP adapter around an Ingestor.
type HandlerConfig struct {
	// SignatureHeader carries the hex HMAC (default X-Signature).
	SignatureHeader string
	// MaxBodySize is the largest accepted body in bytes.
	MaxBodySize int64
}

// Default values
const (
	DefaultSignatureHeader = "X-Signature"
	DefaultMaxBodySize     = 1048576 // 1 MB
)

// Handler serves POST /webhook. Every request ends in exactly one outcome,
// which is counted once and annotated onto the access log line once. The
// handler never logs on its own.
type Handler struct {
	config   HandlerConfig
	ingestor *Ingestor
	metrics  OutcomeRecorder
	events   EventPublisher
}

// NewHandler builds the webhook handler. events may be nil.
func NewHandler(config HandlerConfig, ingestor *Ingestor, metrics OutcomeRecorder, events EventPublisher) *Handler {
	if config.SignatureHeader == "" {
		config.SignatureHeader = DefaultSignatureHeader
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}
	return &Handler{
		config:   config,
		ingestor: ingestor,
		metrics:  metrics,
		events:   events,
	}
}

// okResponse is the body for created and duplicate deliveries.
type okResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error  string      `json:"error"`
	Fields []Violation `json:"fields,omitempty"`
}

type activity struct {
	MessageID string `json:"message_id,omitempty"`
	Result    string `json:"result"`
	RequestID string `json:"request_id,omitempty"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ann := hlog.AnnotationsFrom(ctx)

	body, err := io.ReadAll(io.LimitReader(r.Body, h.config.MaxBodySize+1))
	if err != nil {
		h.finish(w, r, Result{Outcome: OutcomeValidationError}, &ValidationError{
			Violations: []Violation{{Field: "body", Rule: "read", Message: "failed to read request body"}},
		})
		return
	}
	if int64(len(body)) > h.config.MaxBodySize {
		h.finish(w, r, Result{Outcome: OutcomeTooLarge}, ErrPayloadTooLarge)
		return
	}

	res, err := h.ingestor.Ingest(ctx, body, r.Header.Get(h.config.SignatureHeader))
	if res.Bypass {
		ann.SetBypass()
	}
	h.finish(w, r, res, err)
}

// finish is the single terminal step: one metric, one set of annotations,
// one event, one response.
func (h *Handler) finish(w http.ResponseWriter, r *http.Request, res Result, err error) {
	ann := hlog.AnnotationsFrom(r.Context())
	ann.SetResult(string(res.Outcome))
	if res.MessageID != "" {
		ann.SetMessageID(res.MessageID)
	}

	if h.metrics != nil {
		h.metrics.ObserveWebhook(string(res.Outcome))
	}

	switch res.Outcome {
	case OutcomeCreated, OutcomeDuplicate:
		ann.SetDup(res.Outcome == OutcomeDuplicate)
		h.publishAccepted(r, res)
		respondJSON(w, http.StatusOK, okResponse{Status: "ok"})
		return
	}

	ann.SetError(err)
	h.publish(EventRejected, r, res)

	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: ErrValidationFailed.Error(), Fields: verr.Violations})
	case errors.Is(err, ErrUnauthorized):
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: ErrUnauthorized.Error()})
	case errors.Is(err, ErrPayloadTooLarge):
		respondJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: ErrPayloadTooLarge.Error()})
	default:
		// Storage details stay in the log line, not the response.
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (h *Handler) publishAccepted(r *http.Request, res Result) {
	if res.Outcome == OutcomeCreated {
		h.publish(EventMessageCreated, r, res)
		return
	}
	h.publish(EventMessageDuplicate, r, res)
	if res.Conflict {
		hlog.AnnotationsFrom(r.Context()).SetConflict()
		h.publish(EventMessageConflict, r, res)
	}
}

func (h *Handler) publish(eventType string, r *http.Request, res Result) {
	if h.events == nil {
		return
	}
	h.events.Publish(eventType, activity{
		MessageID: res.MessageID,
		Result:    string(res.Outcome),
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
