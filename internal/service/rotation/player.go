package rotation

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/mobiledjay/backend/internal/model/djay"
)

// Timer is the handle returned by Clock.AfterFunc.
type Timer interface {
	Stop() bool
}

// Clock schedules timer callbacks.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealClock uses the time package.
var RealClock Clock = realClock{}

// Marker records that a message reached the screen.
type Marker interface {
	MarkMessageDisplayed(ctx context.Context, id int64) bool
}

// Sink renders what the machine decides. Calls are serialized.
type Sink interface {
	Show(msg djay.Message, heading string, dwell time.Duration)
	Hide(msg djay.Message)
	Waiting()
}

// Player owns one Machine and the single timer it may have armed.
type Player struct {
	mu      sync.Mutex
	machine *Machine
	clock   Clock
	marker  Marker
	sink    Sink
	timer   Timer
	closed  bool
}

// NewPlayer wires a machine to its collaborators. A nil clock uses RealClock.
func NewPlayer(timing Timing, clock Clock, marker Marker, sink Sink) *Player {
	if clock == nil {
		clock = RealClock
	}
	return &Player{
		machine: NewMachine(timing),
		clock:   clock,
		marker:  marker,
		sink:    sink,
	}
}

// Start shows the waiting placard.
func (p *Player) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyLocked(p.machine.Start())
}

// Enqueue feeds a poll result into the queue.
func (p *Player) Enqueue(msgs []djay.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyLocked(p.machine.Enqueue(msgs))
}

// Skip advances past the current message.
func (p *Player) Skip() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyLocked(p.machine.Skip())
}

// State returns the machine state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.machine.State()
}

// Close stops the armed timer; later calls are ignored.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *Player) elapsed(kind TimerKind, seq uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyLocked(p.machine.Elapsed(kind, seq))
}

func (p *Player) applyLocked(effects []Effect) {
	if p.closed {
		return
	}

	for _, eff := range effects {
		switch eff.Kind {
		case EffectShow:
			p.sink.Show(eff.Message, eff.Message.Heading(), eff.Dwell)
		case EffectHide:
			p.sink.Hide(eff.Message)
		case EffectWaiting:
			p.sink.Waiting()
		case EffectMarkDisplayed:
			if p.marker != nil {
				go p.mark(eff.Message.ID)
			}
		case EffectTimer:
			if p.timer != nil {
				p.timer.Stop()
			}
			kind, seq := eff.Timer, eff.Seq
			p.timer = p.clock.AfterFunc(eff.After, func() {
				p.elapsed(kind, seq)
			})
		}
	}
}

func (p *Player) mark(id int64) {
	if !p.marker.MarkMessageDisplayed(context.Background(), id) {
		log.Printf("[rotation] message %d was already displayed", id)
	}
}
