// Package rotation presents pending public messages one at a time. Machine
// is the pure state machine; Player drives it with real timers.
package rotation

import (
	"time"

	"github.com/mobiledjay/backend/internal/model/djay"
)

// State of the display.
type State int

const (
	Idle State = iota
	Showing
	Hiding
)

func (s State) String() string {
	switch s {
	case Showing:
		return "showing"
	case Hiding:
		return "hiding"
	default:
		return "idle"
	}
}

// Timing holds the durations the machine schedules.
type Timing struct {
	Dwell      time.Duration
	ReplyDwell time.Duration
	Fade       time.Duration
	Pause      time.Duration
}

// TimingFor derives the standard timing from one base unit: dwell 5 units,
// 7 for replies, a half-unit fade and a one-unit pause between messages.
func TimingFor(unit time.Duration) Timing {
	return Timing{
		Dwell:      5 * unit,
		ReplyDwell: 7 * unit,
		Fade:       unit / 2,
		Pause:      unit,
	}
}

// DwellFor returns how long msg stays on screen.
func (t Timing) DwellFor(msg djay.Message) time.Duration {
	if msg.IsReply {
		return t.ReplyDwell
	}
	return t.Dwell
}

// TimerKind names the timer an effect arms.
type TimerKind int

const (
	TimerDwell TimerKind = iota
	TimerFade
	TimerPause
)

// EffectKind says what the driver must do.
type EffectKind int

const (
	EffectShow EffectKind = iota
	EffectMarkDisplayed
	EffectHide
	EffectWaiting
	EffectTimer
)

// Effect is one instruction for the driver. Message is set for show, mark
// and hide; Timer, After and Seq for timers; Dwell for show.
type Effect struct {
	Kind    EffectKind
	Message djay.Message
	Dwell   time.Duration
	Timer   TimerKind
	After   time.Duration
	Seq     uint64
}

// Machine is not safe for concurrent use; Player serializes access.
type Machine struct {
	timing  Timing
	state   State
	queue   []djay.Message
	active  *djay.Message
	seen    map[int64]struct{}
	pausing bool
	// seq identifies the only timer whose expiry is still meaningful.
	seq uint64
}

// NewMachine returns an idle machine with an empty queue.
func NewMachine(timing Timing) *Machine {
	return &Machine{
		timing: timing,
		seen:   make(map[int64]struct{}),
	}
}

func (m *Machine) State() State { return m.state }

// Active returns the message on screen, if any.
func (m *Machine) Active() (djay.Message, bool) {
	if m.active == nil {
		return djay.Message{}, false
	}
	return *m.active, true
}

// Queued returns a copy of the waiting messages, oldest first.
func (m *Machine) Queued() []djay.Message {
	out := make([]djay.Message, len(m.queue))
	copy(out, m.queue)
	return out
}

// Start reports the initial placard.
func (m *Machine) Start() []Effect {
	if m.state == Idle && m.active == nil && len(m.queue) == 0 {
		return []Effect{{Kind: EffectWaiting}}
	}
	return nil
}

// Enqueue appends messages this machine has never seen, preserving order.
// Private messages are ignored. An idle machine starts showing at once
// unless it is in the pause between two messages.
func (m *Machine) Enqueue(msgs []djay.Message) []Effect {
	for _, msg := range msgs {
		if msg.Private {
			continue
		}
		if _, ok := m.seen[msg.ID]; ok {
			continue
		}
		m.seen[msg.ID] = struct{}{}
		m.queue = append(m.queue, msg)
	}

	if m.state == Idle && !m.pausing && len(m.queue) > 0 {
		return m.showNext()
	}
	return nil
}

// Skip ends the current message early, or shows the next one when idle.
func (m *Machine) Skip() []Effect {
	switch m.state {
	case Showing:
		return m.beginHide()
	case Idle:
		if len(m.queue) > 0 {
			m.pausing = false
			return m.showNext()
		}
	}
	return nil
}

// Elapsed handles a timer expiry. Expiries from superseded timers are ignored.
func (m *Machine) Elapsed(kind TimerKind, seq uint64) []Effect {
	if seq != m.seq {
		return nil
	}

	switch {
	case kind == TimerDwell && m.state == Showing:
		return m.beginHide()

	case kind == TimerFade && m.state == Hiding:
		m.active = nil
		m.state = Idle
		if len(m.queue) == 0 {
			return []Effect{{Kind: EffectWaiting}}
		}
		m.pausing = true
		m.seq++
		return []Effect{{Kind: EffectTimer, Timer: TimerPause, After: m.timing.Pause, Seq: m.seq}}

	case kind == TimerPause && m.state == Idle && m.pausing:
		m.pausing = false
		if len(m.queue) == 0 {
			return []Effect{{Kind: EffectWaiting}}
		}
		return m.showNext()
	}
	return nil
}

func (m *Machine) showNext() []Effect {
	next := m.queue[0]
	m.queue = m.queue[1:]
	m.active = &next
	m.state = Showing
	m.seq++

	dwell := m.timing.DwellFor(next)
	return []Effect{
		{Kind: EffectShow, Message: next, Dwell: dwell},
		{Kind: EffectMarkDisplayed, Message: next},
		{Kind: EffectTimer, Timer: TimerDwell, After: dwell, Seq: m.seq},
	}
}

func (m *Machine) beginHide() []Effect {
	m.state = Hiding
	m.seq++
	return []Effect{
		{Kind: EffectHide, Message: *m.active},
		{Kind: EffectTimer, Timer: TimerFade, After: m.timing.Fade, Seq: m.seq},
	}
}
