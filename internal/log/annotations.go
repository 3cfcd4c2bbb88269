package log

import (
	"context"
	"log/slog"
	"sync"
)

type annotationsKey struct{}

// Annotations holds optional per-request log fields. Handlers fill it in;
// the access log middleware renders it once the request completes. A field
// is only emitted when it was explicitly set, so "dup=false" and "no dup
// field" stay distinguishable.
type Annotations struct {
	mu sync.Mutex

	messageID    string
	hasMessageID bool

	dup    bool
	hasDup bool

	result    string
	hasResult bool

	bypass   bool
	conflict bool

	err error
}

// WithAnnotations attaches a fresh Annotations record to ctx.
func WithAnnotations(ctx context.Context) (context.Context, *Annotations) {
	a := &Annotations{}
	return context.WithValue(ctx, annotationsKey{}, a), a
}

// AnnotationsFrom returns the record attached to ctx, or nil.
// All methods are safe to call on a nil record.
func AnnotationsFrom(ctx context.Context) *Annotations {
	a, _ := ctx.Value(annotationsKey{}).(*Annotations)
	return a
}

func (a *Annotations) SetMessageID(id string) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messageID = id
	a.hasMessageID = true
}

func (a *Annotations) SetDup(dup bool) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dup = dup
	a.hasDup = true
}

func (a *Annotations) SetResult(result string) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.result = result
	a.hasResult = true
}

// SetBypass marks the request as authenticated by the demo signature literal.
func (a *Annotations) SetBypass() {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bypass = true
}

// SetConflict marks a duplicate whose payload differs from the stored row.
func (a *Annotations) SetConflict() {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.conflict = true
}

func (a *Annotations) SetError(err error) {
	if a == nil || err == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
}

// Warn reports whether the line deserves WARN level: a signature bypass or
// a conflicting duplicate.
func (a *Annotations) Warn() bool {
	if a == nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bypass || a.conflict
}

// Attrs renders the fields that were set, in a stable order.
func (a *Annotations) Attrs() []any {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	var attrs []any
	if a.hasMessageID {
		attrs = append(attrs, slog.String("message_id", a.messageID))
	}
	if a.hasDup {
		attrs = append(attrs, slog.Bool("dup", a.dup))
	}
	if a.hasResult {
		attrs = append(attrs, slog.String("result", a.result))
	}
	if a.bypass {
		attrs = append(attrs, slog.Bool("signature_bypass", true))
	}
	if a.conflict {
		attrs = append(attrs, slog.Bool("conflict", true))
	}
	if a.err != nil {
		attrs = append(attrs, slog.String("error", a.err.Error()))
	}
	return attrs
}
