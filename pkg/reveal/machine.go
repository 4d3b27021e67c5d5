package reveal

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/sapling/pkg/domain"
	"github.com/google/uuid"
)

// Timing controls the pace of a Machine.
type Timing struct {
	// Interval is the delay between two cursor increments.
	Interval time.Duration `yaml:"interval"`
	// Settle is the delay between the final increment and Complete.
	Settle time.Duration `yaml:"settle"`
	// Linger is the delay between Complete and Idle. Zero keeps the machine
	// Complete until it is restarted or cancelled.
	Linger time.Duration `yaml:"linger"`
}

var (
	// ConstructionTiming reveals one node every 400ms and clears the
	// completion message after two seconds.
	ConstructionTiming = Timing{Interval: 400 * time.Millisecond, Linger: 2 * time.Second}

	// PlaybackTiming reveals one step every 600ms and surfaces the label
	// half a second after the last step.
	PlaybackTiming = Timing{Interval: 600 * time.Millisecond, Settle: 500 * time.Millisecond}
)

// State is a snapshot of a Machine.
type State struct {
	RunID     string       `json:"run_id,omitempty"`
	Phase     domain.Phase `json:"phase"`
	Cursor    int          `json:"cursor"`
	Total     int          `json:"total"`
	Cancelled bool         `json:"cancelled,omitempty"`
	At        time.Time    `json:"at"`
}

// Active reports whether the run is still running or lingering in Complete.
func (s State) Active() bool {
	return s.Phase == domain.PhaseRunning || s.Phase == domain.PhaseComplete
}

// Option configures a Machine and the reveals built on it.
type Option func(*options)

type options struct {
	clock  Clock
	timing *Timing
	logger *slog.Logger
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithTiming overrides the default pace.
func WithTiming(t Timing) Option {
	return func(o *options) {
		o.timing = &t
	}
}

// WithLogger sets the logger used for transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(def Timing, opts []Option) (options, Timing) {
	o := options{clock: SystemClock()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	t := def
	if o.timing != nil {
		t = *o.timing
	}
	return o, t
}

// Machine is a cancellable, clock-driven cursor.
//
// Every transition is published to subscribers after the internal lock is
// released, in the order the transitions happened. Subscribers must not call
// Start or Cancel synchronously.
type Machine struct {
	kind   domain.RevealKind
	clock  Clock
	timing Timing
	logger *slog.Logger

	mu    sync.Mutex
	gen   uint64
	state State
	timer Timer
	done  chan struct{}

	notifyMu sync.Mutex
	subs     []subscriber
	nextSub  int
}

type subscriber struct {
	id int
	fn func(State)
}

// NewMachine creates an idle machine.
func NewMachine(kind domain.RevealKind, def Timing, opts ...Option) *Machine {
	o, t := buildOptions(def, opts)
	return &Machine{
		kind:   kind,
		clock:  o.clock,
		timing: t,
		logger: o.logger.With("reveal", string(kind)),
		state:  State{Phase: domain.PhaseIdle},
	}
}

// Kind returns what the machine reveals.
func (m *Machine) Kind() domain.RevealKind { return m.kind }

// Timing returns the pace of the machine.
func (m *Machine) Timing() Timing { return m.timing }

// Subscribe registers fn for every transition. The returned func removes it.
func (m *Machine) Subscribe(fn func(State)) func() {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs = append(m.subs, subscriber{id: id, fn: fn})
	return func() {
		m.notifyMu.Lock()
		defer m.notifyMu.Unlock()
		for i, s := range m.subs {
			if s.id == id {
				m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
				return
			}
		}
	}
}

// State returns the current snapshot.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start cancels any active run and begins a new one over total items.
// It returns the ID of the new run. A run over zero items completes without ticking.
func (m *Machine) Start(total int) string {
	if total < 0 {
		total = 0
	}

	m.mu.Lock()
	var events []State
	if m.state.Active() {
		events = append(events, m.stopLocked())
	}

	m.gen++
	gen := m.gen
	m.done = make(chan struct{})
	m.state = State{
		RunID: uuid.NewString(),
		Phase: domain.PhaseRunning,
		Total: total,
		At:    m.clock.Now(),
	}
	events = append(events, m.state)
	runID := m.state.RunID

	if total == 0 {
		events = append(events, m.settleLocked(gen)...)
	} else {
		m.schedule(gen, m.timing.Interval, m.tick)
	}
	m.notifyLocked(events)

	m.logger.Debug("reveal started", "run_id", runID, "total", total)
	return runID
}

// Cancel stops the active run. The cursor keeps the value of the last
// completed tick. It returns domain.ErrNoActiveReveal when nothing is running.
func (m *Machine) Cancel() error {
	m.mu.Lock()
	if !m.state.Active() {
		m.mu.Unlock()
		return domain.ErrNoActiveReveal
	}
	ev := m.stopLocked()
	m.notifyLocked([]State{ev})

	m.logger.Debug("reveal cancelled", "run_id", ev.RunID, "cursor", ev.Cursor)
	return nil
}

// Wait blocks until the current run leaves Running, or ctx is done.
func (m *Machine) Wait(ctx context.Context) error {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stopLocked cancels the active run and returns the resulting transition.
func (m *Machine) stopLocked() State {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.gen++
	m.closeDone()
	m.state.Phase = domain.PhaseIdle
	m.state.Cancelled = true
	m.state.At = m.clock.Now()
	return m.state
}

func (m *Machine) closeDone() {
	if m.done != nil {
		select {
		case <-m.done:
		default:
			close(m.done)
		}
	}
}

func (m *Machine) schedule(gen uint64, d time.Duration, fn func(uint64)) {
	m.timer = m.clock.AfterFunc(d, func() { fn(gen) })
}

func (m *Machine) tick(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state.Phase != domain.PhaseRunning {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.state.Cursor++
	m.state.At = m.clock.Now()
	events := []State{m.state}

	if m.state.Cursor >= m.state.Total {
		events = append(events, m.settleLocked(gen)...)
	} else {
		m.schedule(gen, m.timing.Interval, m.tick)
	}
	m.notifyLocked(events)
}

// settleLocked completes the run now, or schedules completion after Settle.
func (m *Machine) settleLocked(gen uint64) []State {
	if m.timing.Settle > 0 {
		m.schedule(gen, m.timing.Settle, m.complete)
		return nil
	}
	return []State{m.completeLocked(gen)}
}

func (m *Machine) complete(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state.Phase != domain.PhaseRunning {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.notifyLocked([]State{m.completeLocked(gen)})
}

func (m *Machine) completeLocked(gen uint64) State {
	m.state.Phase = domain.PhaseComplete
	m.state.At = m.clock.Now()
	m.closeDone()
	if m.timing.Linger > 0 {
		m.schedule(gen, m.timing.Linger, m.idle)
	}
	return m.state
}

func (m *Machine) idle(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state.Phase != domain.PhaseComplete {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.state.Phase = domain.PhaseIdle
	m.state.At = m.clock.Now()
	m.notifyLocked([]State{m.state})
}

// notifyLocked releases m.mu and publishes events in order.
// notifyMu is taken before m.mu is released so concurrent transitions cannot overtake each other.
func (m *Machine) notifyLocked(events []State) {
	m.notifyMu.Lock()
	m.mu.Unlock()
	defer m.notifyMu.Unlock()

	for _, ev := range events {
		for _, s := range m.subs {
			s.fn(ev)
		}
	}
}
