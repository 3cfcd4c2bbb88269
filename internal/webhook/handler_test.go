package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"

	hlog "github.com/mattjoyce/hookbox/internal/log"
	"github.com/mattjoyce/hookbox/internal/webhook/mocks"
)

type recordedEvent struct {
	Type string
	Data activity
}

// fakeObserver records outcomes and events in memory.
type fakeObserver struct {
	mu       sync.Mutex
	outcomes []string
	events   []recordedEvent
}

func (f *fakeObserver) ObserveWebhook(result string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, result)
}

func (f *fakeObserver) Publish(eventType string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, _ := data.(activity)
	f.events = append(f.events, recordedEvent{Type: eventType, Data: a})
}

func (f *fakeObserver) eventTypes() []string {
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestHandler(t *testing.T, maxBody int64) (*Handler, *mocks.MockMessageStore, *fakeObserver) {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	obs := &fakeObserver{}
	in := NewIngestor(store, NewValidator(ProfileE164), testSecret)
	h := NewHandler(HandlerConfig{SignatureHeader: "X-Signature", MaxBodySize: maxBody}, in, obs, obs)
	return h, store, obs
}

func serve(h http.Handler, body []byte, signature string) (*httptest.ResponseRecorder, *hlog.Annotations) {
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("X-Signature", signature)
	}
	ctx, ann := hlog.WithAnnotations(req.Context())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(ctx))
	return rec, ann
}

func annotationFields(t *testing.T, ann *hlog.Annotations) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	hlog.New(&buf, "DEBUG").Info("x", ann.Attrs()...)
	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode annotations: %v", err)
	}
	return out
}

func TestHandler_Created(t *testing.T) {
	h, store, obs := newTestHandler(t, 0)
	store.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(true, nil)

	rec, ann := serve(h, validBody, Sign(validBody, testSecret))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"status":"ok"}` {
		t.Errorf("body = %s", rec.Body)
	}
	if got := strings.Join(obs.outcomes, ","); got != "created" {
		t.Errorf("outcomes = %q, want exactly one created", got)
	}
	if got := strings.Join(obs.eventTypes(), ","); got != EventMessageCreated {
		t.Errorf("events = %q", got)
	}
	if obs.events[0].Data.MessageID != "m1" {
		t.Errorf("event message_id = %q", obs.events[0].Data.MessageID)
	}

	fields := annotationFields(t, ann)
	if fields["message_id"] != "m1" || fields["dup"] != false || fields["result"] != "created" {
		t.Errorf("annotations = %v", fields)
	}
	if _, ok := fields["error"]; ok {
		t.Errorf("created request should not carry an error: %v", fields)
	}
}

func TestHandler_DuplicateConflict(t *testing.T) {
	h, store, obs := newTestHandler(t, 0)
	store.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(false, nil)
	store.EXPECT().PayloadDigest(gomock.Any(), "m1").Return("stale", nil)

	rec, ann := serve(h, validBody, Sign(validBody, testSecret))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := strings.Join(obs.outcomes, ","); got != "duplicate" {
		t.Errorf("outcomes = %q", got)
	}
	if got := strings.Join(obs.eventTypes(), ","); got != EventMessageDuplicate+","+EventMessageConflict {
		t.Errorf("events = %q", got)
	}
	if !ann.Warn() {
		t.Error("conflicting duplicate should be logged at WARN")
	}
	if fields := annotationFields(t, ann); fields["dup"] != true || fields["conflict"] != true {
		t.Errorf("annotations = %v", fields)
	}
}

func TestHandler_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		body       []byte
		signature  func(body []byte) string
		maxBody    int64
		wantStatus int
		wantResult string
		wantError  string
	}{
		{
			name:       "missing signature",
			body:       validBody,
			signature:  func([]byte) string { return "" },
			wantStatus: http.StatusUnauthorized,
			wantResult: "invalid_signature",
			wantError:  "invalid signature",
		},
		{
			name:       "wrong signature",
			body:       validBody,
			signature:  func([]byte) string { return "123" },
			wantStatus: http.StatusUnauthorized,
			wantResult: "invalid_signature",
			wantError:  "invalid signature",
		},
		{
			name:       "invalid payload",
			body:       []byte(`{"message_id":"","from":"x","to":"+1","ts":"2025-01-15T10:00:00Z"}`),
			signature:  func(b []byte) string { return Sign(b, testSecret) },
			wantStatus: http.StatusUnprocessableEntity,
			wantResult: "validation_error",
			wantError:  "validation failed",
		},
		{
			name:       "not json",
			body:       []byte(`hello`),
			signature:  func(b []byte) string { return Sign(b, testSecret) },
			wantStatus: http.StatusUnprocessableEntity,
			wantResult: "validation_error",
			wantError:  "validation failed",
		},
		{
			name:       "too large",
			body:       validBody,
			signature:  func(b []byte) string { return Sign(b, testSecret) },
			maxBody:    16,
			wantStatus: http.StatusRequestEntityTooLarge,
			wantResult: "too_large",
			wantError:  "payload too large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, obs := newTestHandler(t, tt.maxBody)

			rec, ann := serve(h, tt.body, tt.signature(tt.body))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body %s", rec.Code, tt.wantStatus, rec.Body)
			}
			var resp errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Error != tt.wantError {
				t.Errorf("error = %q, want %q", resp.Error, tt.wantError)
			}
			if got := strings.Join(obs.outcomes, ","); got != tt.wantResult {
				t.Errorf("outcomes = %q, want exactly one %q", got, tt.wantResult)
			}
			if got := strings.Join(obs.eventTypes(), ","); got != EventRejected {
				t.Errorf("events = %q", got)
			}
			fields := annotationFields(t, ann)
			if fields["result"] != tt.wantResult {
				t.Errorf("annotated result = %v", fields["result"])
			}
			if _, ok := fields["dup"]; ok {
				t.Errorf("rejected request should not carry dup: %v", fields)
			}
		})
	}
}

func TestHandler_ValidationResponseListsFields(t *testing.T) {
	h, _, _ := newTestHandler(t, 0)
	body := []byte(`{"message_id":"m1","from":"x","to":"y","ts":"2025-01-15T10:00:00Z"}`)

	rec, _ := serve(h, body, Sign(body, testSecret))

	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	var fields []string
	for _, v := range resp.Fields {
		fields = append(fields, v.Field)
	}
	if strings.Join(fields, ",") != "from,to" {
		t.Errorf("fields = %v, want from,to", fields)
	}
}

func TestHandler_StorageFaultHidesDetails(t *testing.T) {
	h, store, obs := newTestHandler(t, 0)
	store.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(false, errors.New("database is locked"))

	rec, ann := serve(h, validBody, Sign(validBody, testSecret))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "locked") {
		t.Errorf("response leaks storage details: %s", rec.Body)
	}
	if got := strings.Join(obs.outcomes, ","); got != "error" {
		t.Errorf("outcomes = %q", got)
	}
	fields := annotationFields(t, ann)
	if !strings.Contains(fields["error"].(string), "database is locked") {
		t.Errorf("log line should carry the storage error, got %v", fields)
	}
}

func TestHandler_BypassAnnotated(t *testing.T) {
	h, store, _ := newTestHandler(t, 0)
	store.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(true, nil)

	rec, ann := serve(h, validBody, BypassSignature)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !ann.Warn() {
		t.Error("bypass should be logged at WARN")
	}
	if fields := annotationFields(t, ann); fields["signature_bypass"] != true {
		t.Errorf("annotations = %v", fields)
	}
}

func TestHandler_WithoutAnnotationsOrEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	store.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(true, nil)
	h := NewHandler(HandlerConfig{}, NewIngestor(store, NewValidator(ProfileE164), testSecret), nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(validBody))
	req.Header.Set(DefaultSignatureHeader, Sign(validBody, testSecret))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(context.Background()))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
