// Package polling runs fixed-interval pull loops that can be paused,
// resumed and refreshed on demand. Each live channel owns one Poller.
package polling

import (
	"context"
	"log"
	"sync"
	"time"
)

// FetchFunc performs one poll. It must not call back into the Poller.
type FetchFunc func(ctx context.Context) error

// Ticker is the part of time.Ticker the loop needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ *time.Ticker }

func (t realTicker) C() <-chan time.Time { return t.Ticker.C }

// State reports what the loop is doing.
type State int

const (
	Stopped State = iota
	Running
	Paused
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// Option customizes a Poller.
type Option func(*Poller)

// WithTicker replaces the ticker factory, mainly for tests.
func WithTicker(factory func(time.Duration) Ticker) Option {
	return func(p *Poller) {
		p.newTicker = factory
	}
}

// Poller calls fetch every interval while running. Fetches never overlap.
type Poller struct {
	name      string
	interval  time.Duration
	fetch     FetchFunc
	newTicker func(time.Duration) Ticker

	mu      sync.Mutex
	state   State
	base    context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	refresh chan struct{}

	fetchMu sync.Mutex
}

// New creates a stopped Poller.
func New(name string, interval time.Duration, fetch FetchFunc, opts ...Option) *Poller {
	p := &Poller{
		name:     name,
		interval: interval,
		fetch:    fetch,
		newTicker: func(d time.Duration) Ticker {
			return realTicker{time.NewTicker(d)}
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current loop state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start begins polling with an immediate fetch. Calling Start on a running
// or paused Poller does nothing; a stopped Poller can be started again.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != Stopped {
		return
	}
	p.base = ctx
	p.launchLocked()
	p.state = Running
}

// Pause clears the interval. Resume picks up where Pause left off.
func (p *Poller) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != Running {
		return
	}
	p.haltLocked()
	p.state = Paused
}

// Resume restarts a paused Poller and fetches immediately.
func (p *Poller) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != Paused {
		return
	}
	p.launchLocked()
	p.state = Running
}

// Stop halts the loop entirely. It is safe to call more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == Running {
		p.haltLocked()
	}
	p.state = Stopped
}

// Refresh asks for an out-of-band fetch. While running it is queued ahead
// of the next tick; otherwise it runs on the caller's goroutine.
func (p *Poller) Refresh(ctx context.Context) {
	p.mu.Lock()
	if p.state == Running {
		select {
		case p.refresh <- struct{}{}:
		default:
			// one refresh is already pending
		}
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.poll(ctx)
}

func (p *Poller) launchLocked() {
	ctx, cancel := context.WithCancel(p.base)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.refresh = make(chan struct{}, 1)
	go p.loop(ctx, p.done, p.refresh)
}

// haltLocked cancels the loop and waits for it to exit, so a stopped
// Poller never fetches again.
func (p *Poller) haltLocked() {
	p.cancel()
	<-p.done
	p.cancel = nil
	p.done = nil
	p.refresh = nil
}

func (p *Poller) loop(ctx context.Context, done chan<- struct{}, refresh <-chan struct{}) {
	defer close(done)

	ticker := p.newTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		// A pending refresh wins over a tick that is ready at the same time.
		select {
		case <-ctx.Done():
			return
		case <-refresh:
			p.poll(ctx)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-refresh:
			p.poll(ctx)
		case <-ticker.C():
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	p.fetchMu.Lock()
	defer p.fetchMu.Unlock()

	if err := p.fetch(ctx); err != nil && ctx.Err() == nil {
		log.Printf("[poll] %s: %v", p.name, err)
	}
}
