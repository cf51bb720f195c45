// Package typewriter reveals a string one character per tick.
//
// Each displayed bot turn owns one Typewriter. Instances share nothing, and
// every pending tick is cancelled when the text or speed changes or when the
// owner calls Stop.
package typewriter

import (
	"sync"
	"time"
)

// DefaultSpeed is the delay between two revealed characters.
const DefaultSpeed = 30 * time.Millisecond

// Frame is the visible state after a change.
type Frame struct {
	Visible string
	// Delta is the text appended by this frame; empty after a reset.
	Delta  string
	Cursor int
	Length int
	Done   bool
}

type Option func(*Typewriter)

func WithClock(c Clock) Option {
	return func(t *Typewriter) { t.clock = c }
}

// WithSpeed sets the per-character delay. Non-positive values are ignored.
func WithSpeed(d time.Duration) Option {
	return func(t *Typewriter) {
		if d > 0 {
			t.speed = d
		}
	}
}

// OnUpdate registers the callback receiving every Frame. Frames of one
// reveal are delivered in order, never concurrently.
func OnUpdate(f func(Frame)) Option {
	return func(t *Typewriter) { t.onUpdate = f }
}

type Typewriter struct {
	mu       sync.Mutex
	clock    Clock
	speed    time.Duration
	onUpdate func(Frame)

	text    string
	runes   []rune
	visible []rune
	cursor  int

	pending Timer
	// gen invalidates ticks scheduled before the last reset or Stop.
	gen     uint64
	started bool
	stopped bool
}

func New(text string, opts ...Option) *Typewriter {
	t := &Typewriter{
		clock: RealClock(),
		speed: DefaultSpeed,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.reset(text)
	return t
}

// Start schedules the first tick. Calling it again, or after Stop, does
// nothing.
func (t *Typewriter) Start() {
	t.mu.Lock()
	if t.started || t.stopped {
		t.mu.Unlock()
		return
	}
	t.started = true
	frame, done := t.frameLocked(""), t.doneLocked()
	if !done {
		t.scheduleLocked()
	}
	t.mu.Unlock()

	if done {
		t.emit(frame)
	}
}

// SetText restarts the reveal from empty when text differs from the current
// target. The same value keeps the reveal going untouched.
func (t *Typewriter) SetText(text string) {
	t.mu.Lock()
	if t.stopped || text == t.text {
		t.mu.Unlock()
		return
	}
	t.cancelLocked()
	t.reset(text)
	frame := t.frameLocked("")
	if t.started && !t.doneLocked() {
		t.scheduleLocked()
	}
	notify := t.started
	t.mu.Unlock()

	if notify {
		t.emit(frame)
	}
}

// SetSpeed changes the delay, rescheduling the pending tick.
func (t *Typewriter) SetSpeed(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if d <= 0 || d == t.speed || t.stopped {
		return
	}
	t.speed = d
	if t.pending != nil {
		t.cancelLocked()
		t.scheduleLocked()
	}
}

// Stop cancels the pending tick for good. The visible text stays as it is.
func (t *Typewriter) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.cancelLocked()
}

func (t *Typewriter) Visible() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.visible)
}

func (t *Typewriter) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.text
}

// Done reports whether the whole target text is visible.
func (t *Typewriter) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.doneLocked()
}

func (t *Typewriter) tick(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.stopped {
		t.mu.Unlock()
		return
	}
	t.pending = nil
	if t.cursor >= len(t.runes) {
		t.mu.Unlock()
		return
	}
	r := t.runes[t.cursor]
	t.visible = append(t.visible, r)
	t.cursor++
	frame := t.frameLocked(string(r))
	t.mu.Unlock()

	t.emit(frame)

	// The next tick is scheduled after the callback so frames never overlap.
	t.mu.Lock()
	if gen == t.gen && !t.stopped && !t.doneLocked() {
		t.scheduleLocked()
	}
	t.mu.Unlock()
}

func (t *Typewriter) reset(text string) {
	t.gen++
	t.text = text
	t.runes = []rune(text)
	t.visible = t.visible[:0]
	t.cursor = 0
}

func (t *Typewriter) scheduleLocked() {
	gen := t.gen
	t.pending = t.clock.AfterFunc(t.speed, func() { t.tick(gen) })
}

func (t *Typewriter) cancelLocked() {
	t.gen++
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}

func (t *Typewriter) doneLocked() bool {
	return t.cursor >= len(t.runes)
}

func (t *Typewriter) frameLocked(delta string) Frame {
	return Frame{
		Visible: string(t.visible),
		Delta:   delta,
		Cursor:  t.cursor,
		Length:  len(t.runes),
		Done:    t.doneLocked(),
	}
}

func (t *Typewriter) emit(f Frame) {
	if t.onUpdate != nil {
		t.onUpdate(f)
	}
}
