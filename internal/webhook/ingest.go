package webhook

import (
	"context"
	"fmt"

	"github.com/mattjoyce/hookbox/internal/message"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks github.com/mattjoyce/hookbox/internal/webhook MessageStore

// MessageStore is the persistence port used by the Ingestor.
type MessageStore interface {
	Insert(ctx context.Context, m message.Message) (bool, error)
	PayloadDigest(ctx context.Context, messageID string) (string, error)
}

// Outcome classifies a finished ingestion. Its string form is the
// webhook_requests_total result label.
type Outcome string

const (
	OutcomeCreated          Outcome = "created"
	OutcomeDuplicate        Outcome = "duplicate"
	OutcomeInvalidSignature Outcome = "invalid_signature"
	OutcomeValidationError  Outcome = "validation_error"
	OutcomeTooLarge         Outcome = "too_large"
	OutcomeError            Outcome = "error"
)

// Stage is the furthest point an ingestion reached.
type Stage int

const (
	StageReceived Stage = iota
	StageSignatureChecked
	StageValidated
	StageStored
	StageClassified
)

func (s Stage) String() string {
	switch s {
	case StageReceived:
		return "received"
	case StageSignatureChecked:
		return "signature_checked"
	case StageValidated:
		return "validated"
	case StageStored:
		return "stored"
	case StageClassified:
		return "classified"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Result describes one ingestion attempt.
type Result struct {
	Outcome   Outcome
	Stage     Stage
	MessageID string
	// Bypass is set when the demo signature literal authenticated the request.
	Bypass bool
	// Conflict is set for duplicates whose payload differs from the stored row.
	Conflict bool
}

// Ingestor runs signature check, validation and storage for one delivery.
type Ingestor struct {
	store     MessageStore
	validator *Validator
	secret    string
}

// NewIngestor wires an ingestor. An empty secret rejects every signature
// except the bypass literal.
func NewIngestor(store MessageStore, validator *Validator, secret string) *Ingestor {
	return &Ingestor{store: store, validator: validator, secret: secret}
}

// Ingest processes a raw body and its signature header value.
//
// Stages run in order Received, SignatureChecked, Validated, Stored,
// Classified; a failure stops at the current stage. The returned error wraps
// ErrUnauthorized, ErrValidationFailed (as *ValidationError) or
// ErrStorageFault. Created and duplicate deliveries return a nil error.
func (in *Ingestor) Ingest(ctx context.Context, body []byte, signature string) (Result, error) {
	res := Result{Stage: StageReceived}

	if !Verify(body, signature, in.secret) {
		res.Outcome = OutcomeInvalidSignature
		return res, ErrUnauthorized
	}
	res.Bypass = IsBypass(signature)
	res.Stage = StageSignatureChecked

	payload, err := in.validator.Decode(body)
	if err != nil {
		res.Outcome = OutcomeValidationError
		return res, err
	}
	res.MessageID = payload.MessageID
	res.Stage = StageValidated

	m := payload.Message()
	inserted, err := in.store.Insert(ctx, m)
	if err != nil {
		res.Outcome = OutcomeError
		return res, fmt.Errorf("%w: %w", ErrStorageFault, err)
	}
	res.Stage = StageStored

	if inserted {
		res.Outcome = OutcomeCreated
	} else {
		res.Outcome = OutcomeDuplicate
		res.Conflict = in.conflicts(ctx, m)
	}
	res.Stage = StageClassified
	return res, nil
}

// conflicts compares the stored digest with m's. Lookup failures are not
// conflicts; the duplicate is still acknowledged.
func (in *Ingestor) conflicts(ctx context.Context, m message.Message) bool {
	stored, err := in.store.PayloadDigest(ctx, m.MessageID)
	if err != nil {
		return false
	}
	return stored != message.Digest(m)
}
