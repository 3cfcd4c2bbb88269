package webhook

import (
	"errors"
	"strings"
)

var (
	// ErrUnauthorized means the signature was missing or did not verify.
	ErrUnauthorized = errors.New("invalid signature")

	// ErrValidationFailed means the body was not JSON or broke a field rule.
	// The concrete error is a *ValidationError.
	ErrValidationFailed = errors.New("validation failed")

	// ErrStorageFault means the store failed for a reason other than a duplicate.
	ErrStorageFault = errors.New("storage fault")

	// ErrPayloadTooLarge means the body exceeded the configured limit.
	ErrPayloadTooLarge = errors.New("payload too large")
)

// Violation is one failed field rule.
type Violation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError lists every violation found in a payload.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields(), ", ")
}

// Is makes errors.Is(err, ErrValidationFailed) true.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// Fields returns the offending field names in report order, without repeats.
func (e *ValidationError) Fields() []string {
	seen := make(map[string]struct{}, len(e.Violations))
	out := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		if _, ok := seen[v.Field]; ok {
			continue
		}
		seen[v.Field] = struct{}{}
		out = append(out, v.Field)
	}
	return out
}
