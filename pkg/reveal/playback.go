package reveal

import (
	"sync"

	"github.com/aretw0/sapling/pkg/align"
	"github.com/aretw0/sapling/pkg/domain"
)

// Playback reveals the steps of one classification, then its label.
type Playback struct {
	machine *Machine
	alignOp []align.Option

	startMu sync.Mutex
	mu      sync.RWMutex
	tree    *domain.Tree
	result  domain.Classification
	// runID is the run result belongs to, empty while a run is being started.
	runID string
}

// View is a playback as seen at one instant.
type View struct {
	State      State
	Visible    domain.DecisionPath
	Label      string
	Labelled   bool
	Highlights *align.Alignment
}

// NewPlayback creates an idle playback paced by PlaybackTiming.
func NewPlayback(opts ...Option) *Playback {
	o, _ := buildOptions(PlaybackTiming, opts)
	return &Playback{
		machine: NewMachine(domain.RevealPlayback, PlaybackTiming, opts...),
		alignOp: []align.Option{align.WithLogger(o.logger)},
	}
}

// Machine exposes the underlying state machine.
func (p *Playback) Machine() *Machine { return p.machine }

// Start cancels any playback in flight, clears the visible path and label,
// and begins revealing result against tree.
func (p *Playback) Start(tree *domain.Tree, result domain.Classification) string {
	p.startMu.Lock()
	defer p.startMu.Unlock()

	_ = p.machine.Cancel()

	p.mu.Lock()
	p.tree = tree
	p.result = result
	p.runID = ""
	p.mu.Unlock()

	runID := p.machine.Start(len(result.Path))

	p.mu.Lock()
	p.runID = runID
	p.mu.Unlock()
	return runID
}

// Reset cancels any playback in flight and clears the path and label, so
// nothing of a previous classification stays visible.
func (p *Playback) Reset() {
	p.startMu.Lock()
	defer p.startMu.Unlock()

	_ = p.machine.Cancel()

	p.mu.Lock()
	p.tree = nil
	p.result = domain.Classification{}
	p.runID = ""
	p.mu.Unlock()
}

// Cancel stops the playback in flight.
func (p *Playback) Cancel() error {
	p.startMu.Lock()
	defer p.startMu.Unlock()
	return p.machine.Cancel()
}

// Result returns the tree and classification being played back.
// It is safe to call from subscribers.
func (p *Playback) Result() (*domain.Tree, domain.Classification) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tree, p.result
}

// Visible returns the revealed prefix of the path, in trace order.
func (p *Playback) Visible() domain.DecisionPath {
	return p.View().Visible
}

// Label returns the predicted label once every step has been shown and the
// settle delay has elapsed.
func (p *Playback) Label() (string, bool) {
	v := p.View()
	return v.Label, v.Labelled
}

// Highlighting reports whether the tree should currently show the path.
func (p *Playback) Highlighting() bool {
	return p.machine.State().Active()
}

// Highlights aligns the visible steps against the tree.
func (p *Playback) Highlights() *align.Alignment {
	return p.View().Highlights
}

// View derives the visible path, label and highlights from a single state
// snapshot.
func (p *Playback) View() View {
	s := p.machine.State()

	p.mu.RLock()
	v := View{State: s, Visible: p.visibleLocked(s)}
	if s.Phase == domain.PhaseComplete && s.RunID == p.runID {
		v.Label, v.Labelled = p.result.Label, true
	}
	tree := p.tree
	p.mu.RUnlock()

	v.Highlights = align.Align(tree, v.Visible, p.alignOp...)
	return v
}

// Subscribe forwards every transition as a reveal event.
func (p *Playback) Subscribe(fn func(domain.RevealEvent)) func() {
	return p.machine.Subscribe(func(s State) {
		ev := domain.RevealEvent{
			EventBase: domain.EventBase{Timestamp: s.At, Type: domain.EventReveal},
			Kind:      domain.RevealPlayback,
			RunID:     s.RunID,
			Phase:     s.Phase,
			Cursor:    s.Cursor,
			Total:     s.Total,
			Cancelled: s.Cancelled,
		}
		if s.Phase == domain.PhaseComplete {
			p.mu.RLock()
			ev.Label = p.result.Label
			p.mu.RUnlock()
		}
		fn(ev)
	})
}

func (p *Playback) visibleLocked(s State) domain.DecisionPath {
	if s.RunID != p.runID {
		return domain.DecisionPath{}
	}
	n := s.Cursor
	if n > len(p.result.Path) {
		n = len(p.result.Path)
	}
	out := make(domain.DecisionPath, n)
	copy(out, p.result.Path[:n])
	return out
}
