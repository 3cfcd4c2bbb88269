package watch

import (
	"strings"
	"time"
)

// Ticker rotates through frames on every clock tick so a frozen UI is
// visible at a glance.
type Ticker struct {
	frames []string
	index  int
}

func NewTicker() Ticker {
	return Ticker{frames: []string{"⟲", "⟳"}}
}

func (t *Ticker) Tick() {
	t.index = (t.index + 1) % len(t.frames)
}

func (t Ticker) Current() string {
	return t.frames[t.index]
}

// pulseDots is the number of dots lit right after a webhook arrives.
const pulseDots = 5

// Pulse lights up on webhook activity and fades one dot every two seconds.
type Pulse struct {
	dots      int
	lastEvent time.Time
}

func (p *Pulse) OnEvent(at time.Time) {
	p.dots = pulseDots
	p.lastEvent = at
}

// Decay recomputes the lit dots for the time elapsed since the last event.
func (p *Pulse) Decay(now time.Time) {
	if p.dots == 0 {
		return
	}
	faded := int(now.Sub(p.lastEvent) / (2 * time.Second))
	p.dots = max(pulseDots-faded, 0)
}

func (p Pulse) Render(theme Theme) string {
	var b strings.Builder
	for i := range pulseDots {
		if i < p.dots {
			b.WriteString(theme.TickerActive.Render("●"))
		} else {
			b.WriteString(theme.TickerInactive.Render("○"))
		}
	}
	return b.String()
}

func (p Pulse) LastEvent() time.Time {
	return p.lastEvent
}
