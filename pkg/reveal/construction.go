package reveal

import (
	"sync"

	"github.com/aretw0/sapling/pkg/domain"
)

// Build report steps, one per construction event.
const (
	StepStart = "start"
	StepSplit = "split"
	StepLeaf  = "leaf"
	StepDone  = "done"
)

// Construction messages.
const (
	MessageStarting = "Starting tree construction..."
	MessageComplete = "Tree construction complete!"
)

// Progress is the build report of a construction reveal.
type Progress struct {
	RunID     string       `json:"run_id,omitempty"`
	Phase     domain.Phase `json:"phase"`
	Step      string       `json:"step,omitempty"`
	Built     int          `json:"built"`
	Total     int          `json:"total"`
	Percent   int          `json:"percent"`
	Feature   string       `json:"feature,omitempty"`
	Threshold float64      `json:"threshold,omitempty"`
	Label     string       `json:"label,omitempty"`
	Message   string       `json:"message,omitempty"`
}

// Construction reveals the nodes of a tree one at a time in pre-order.
// A node is revealed once its rank is at or below the cursor.
type Construction struct {
	machine *Machine

	startMu sync.Mutex
	mu      sync.RWMutex
	tree    *domain.Tree
}

// NewConstruction creates an idle construction reveal paced by ConstructionTiming.
func NewConstruction(opts ...Option) *Construction {
	return &Construction{
		machine: NewMachine(domain.RevealConstruction, ConstructionTiming, opts...),
	}
}

// Machine exposes the underlying state machine.
func (c *Construction) Machine() *Machine { return c.machine }

// Start cancels any construction in flight and begins revealing tree.
// A nil tree completes immediately.
func (c *Construction) Start(tree *domain.Tree) string {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	// The old run is cancelled while its own tree is still current so its
	// final event describes the right model.
	_ = c.machine.Cancel()

	c.mu.Lock()
	c.tree = tree
	c.mu.Unlock()

	return c.machine.Start(tree.Count())
}

// Cancel stops the construction in flight.
func (c *Construction) Cancel() error {
	c.startMu.Lock()
	defer c.startMu.Unlock()
	return c.machine.Cancel()
}

// Tree returns the tree being revealed. It is safe to call from subscribers.
func (c *Construction) Tree() *domain.Tree {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tree
}

// Revealed reports whether the node with the given rank is visible.
func (c *Construction) Revealed(rank int) bool {
	s := c.machine.State()
	return rank >= 1 && rank <= s.Cursor
}

// Progress reports the current build state.
func (c *Construction) Progress() Progress {
	return c.progress(c.machine.State())
}

// Subscribe forwards every transition as a reveal event.
func (c *Construction) Subscribe(fn func(domain.RevealEvent)) func() {
	return c.machine.Subscribe(func(s State) {
		p := c.progress(s)
		fn(domain.RevealEvent{
			EventBase: domain.EventBase{Timestamp: s.At, Type: domain.EventReveal},
			Kind:      domain.RevealConstruction,
			RunID:     s.RunID,
			Phase:     s.Phase,
			Cursor:    s.Cursor,
			Total:     s.Total,
			Message:   p.Message,
			Cancelled: s.Cancelled,
		})
	})
}

func (c *Construction) progress(s State) Progress {
	p := Progress{
		RunID: s.RunID,
		Phase: s.Phase,
		Built: s.Cursor,
		Total: s.Total,
	}
	if s.Total > 0 {
		p.Percent = s.Cursor * 100 / s.Total
	}

	switch s.Phase {
	case domain.PhaseComplete:
		p.Step = StepDone
		p.Percent = 100
		p.Message = MessageComplete
	case domain.PhaseRunning:
		if s.Cursor == 0 {
			p.Step = StepStart
			p.Message = MessageStarting
			break
		}
		d, ok := c.Tree().Descriptor(s.Cursor)
		if !ok {
			break
		}
		p.Message = d.Message()
		if d.Kind == domain.KindSplit {
			p.Step = StepSplit
			p.Feature = d.Feature
			p.Threshold = d.Threshold
		} else {
			p.Step = StepLeaf
			p.Label = d.Label
		}
	}
	return p
}
