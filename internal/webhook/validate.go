package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mattjoyce/hookbox/internal/message"
)

// MaxTextLength is the longest accepted text, in characters.
const MaxTextLength = 4096

// Payload is the JSON body of POST /webhook.
type Payload struct {
	MessageID string  `json:"message_id" validate:"required"`
	From      string  `json:"from" validate:"required,msisdn"`
	To        string  `json:"to" validate:"required,msisdn"`
	Timestamp string  `json:"ts" validate:"required,msgts"`
	Text      *string `json:"text" validate:"omitempty,max=4096"`
}

// Message converts a validated payload into a storable message.
func (p Payload) Message() message.Message {
	return message.Message{
		MessageID: p.MessageID,
		From:      p.From,
		To:        p.To,
		Timestamp: p.Timestamp,
		Text:      p.Text,
	}
}

// Validator applies one profile's rules to payloads. It is safe for
// concurrent use.
type Validator struct {
	profile  Profile
	validate *validator.Validate
}

// NewValidator builds a validator bound to profile.
func NewValidator(profile Profile) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("msisdn", func(fl validator.FieldLevel) bool {
		return profile.ValidPhone(fl.Field().String())
	})
	_ = v.RegisterValidation("msgts", func(fl validator.FieldLevel) bool {
		_, err := profile.ParseTimestamp(fl.Field().String())
		return err == nil
	})
	return &Validator{profile: profile, validate: v}
}

// Profile returns the active profile.
func (v *Validator) Profile() Profile {
	return v.profile
}

// payloadKeys are the exact JSON keys of Payload.
var payloadKeys = func() []string {
	t := reflect.TypeOf(Payload{})
	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		keys = append(keys, strings.SplitN(t.Field(i).Tag.Get("json"), ",", 2)[0])
	}
	return keys
}()

// Decode parses body and validates it. Any failure, including malformed JSON,
// is a *ValidationError. Keys must match exactly; "MESSAGE_ID" is an unknown
// field, not message_id.
func (v *Validator) Decode(body []byte) (Payload, error) {
	p, err := decodeExact(body)
	if err != nil {
		return Payload{}, &ValidationError{Violations: []Violation{decodeViolation(err)}}
	}
	if err := v.Validate(p); err != nil {
		return Payload{}, err
	}
	return p, nil
}

// Validate checks every field and reports all violations at once.
func (v *Validator) Validate(p Payload) error {
	err := v.validate.Struct(p)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Violations: []Violation{{Field: "body", Rule: "invalid", Message: err.Error()}}}
	}

	out := &ValidationError{Violations: make([]Violation, 0, len(verrs))}
	for _, fe := range verrs {
		out.Violations = append(out.Violations, Violation{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Message: v.describe(fe),
		})
	}
	return out
}

func (v *Validator) describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "msisdn":
		return fmt.Sprintf("must match %s", v.profile.Phone.String())
	case "msgts":
		return fmt.Sprintf("must be an ISO-8601 timestamp ending in %s", v.profile.TimestampSuffix)
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %s", fe.Tag())
	}
}

// decodeExact unmarshals only the keys that match a Payload tag byte for
// byte. encoding/json alone folds key case.
func decodeExact(body []byte) (Payload, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return Payload{}, err
	}
	exact := make(map[string]json.RawMessage, len(payloadKeys))
	for _, key := range payloadKeys {
		if val, ok := raw[key]; ok {
			exact[key] = val
		}
	}
	filtered, err := json.Marshal(exact)
	if err != nil {
		return Payload{}, err
	}
	var p Payload
	err = json.Unmarshal(filtered, &p)
	return p, err
}

func decodeViolation(err error) Violation {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return Violation{
			Field:   typeErr.Field,
			Rule:    "type",
			Message: fmt.Sprintf("must be a JSON %s", typeErr.Type.Kind()),
		}
	}
	return Violation{Field: "body", Rule: "json", Message: "body must be a JSON object"}
}
