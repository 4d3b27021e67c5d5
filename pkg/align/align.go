// Package align correlates a classification trace with the nodes of a tree.
//
// Traces that carry node identities are matched by rank. Older traces, which
// only record the feature and threshold tested at each step, are matched
// structurally: a step matches a split when the feature is equal and the
// thresholds differ by less than the tolerance. Every split matched by some
// step is on the path and takes its direction from the first matching step,
// so two splits that look alike are both highlighted.
package align

import (
	"log/slog"
	"math"

	"github.com/aretw0/sapling/pkg/domain"
)

// DefaultTolerance absorbs float noise from the text round trip.
const DefaultTolerance = 1e-4

// Mode reports how an alignment was computed.
type Mode string

const (
	ModeIdentity   Mode = "identity"
	ModeStructural Mode = "structural"
)

// Mark is the highlight annotation of one node.
type Mark struct {
	OnPath    bool             `json:"on_path"`
	Direction domain.Direction `json:"direction,omitempty"`
	// Step is the index of the matched step in the path, -1 when unmatched.
	Step int `json:"step"`
}

// Alignment holds one Mark per node, indexed by pre-order rank.
type Alignment struct {
	mode        Mode
	marks       []Mark
	ambiguities int
}

// Mark returns the annotation for the node with the given rank.
func (a *Alignment) Mark(rank int) Mark {
	if a == nil || rank < 1 || rank > len(a.marks) {
		return Mark{Step: -1}
	}
	return a.marks[rank-1]
}

// OnPath lists the ranks of on-path nodes in pre-order.
func (a *Alignment) OnPath() []int {
	if a == nil {
		return nil
	}
	var ranks []int
	for i, m := range a.marks {
		if m.OnPath {
			ranks = append(ranks, i+1)
		}
	}
	return ranks
}

// Ambiguities counts steps that matched more than one split structurally.
func (a *Alignment) Ambiguities() int {
	if a == nil {
		return 0
	}
	return a.ambiguities
}

// Mode reports whether identities or structural matching were used.
func (a *Alignment) Mode() Mode {
	if a == nil {
		return ""
	}
	return a.mode
}

// Len returns the number of annotated nodes.
func (a *Alignment) Len() int {
	if a == nil {
		return 0
	}
	return len(a.marks)
}

type config struct {
	tolerance float64
	logger    *slog.Logger
}

// Option configures Align.
type Option func(*config)

// WithTolerance overrides the absolute threshold tolerance of structural matching.
func WithTolerance(tol float64) Option {
	return func(c *config) {
		c.tolerance = tol
	}
}

// WithLogger reports ambiguous matches at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// Align annotates every node of tree against path.
// A nil tree yields an empty alignment.
func Align(tree *domain.Tree, path domain.DecisionPath, opts ...Option) *Alignment {
	cfg := config{tolerance: DefaultTolerance}
	for _, opt := range opts {
		opt(&cfg)
	}

	a := &Alignment{marks: make([]Mark, tree.Count())}
	for i := range a.marks {
		a.marks[i].Step = -1
	}

	if path.HasIdentity() {
		a.mode = ModeIdentity
		alignByIdentity(a, tree, path)
		return a
	}

	a.mode = ModeStructural
	alignStructurally(a, tree, path, cfg)
	return a
}

func alignByIdentity(a *Alignment, tree *domain.Tree, path domain.DecisionPath) {
	for i, step := range path {
		d, ok := tree.Descriptor(step.NodeID)
		if !ok {
			continue
		}
		m := &a.marks[d.Rank-1]
		if m.OnPath {
			continue
		}
		m.OnPath = true
		m.Step = i
		if d.Kind == domain.KindSplit {
			m.Direction = step.Direction
		}
	}
}

func alignStructurally(a *Alignment, tree *domain.Tree, path domain.DecisionPath, cfg config) {
	hits := make([]int, len(path))
	terminal := -1
	for i := len(path) - 1; i >= 0; i-- {
		if path[i].IsTerminal() {
			terminal = i
			break
		}
	}

	tree.Walk(func(d domain.Descriptor) bool {
		m := &a.marks[d.Rank-1]

		if d.Kind == domain.KindLeaf {
			if terminal >= 0 {
				m.OnPath = true
				m.Step = terminal
			}
			return true
		}

		for i, step := range path {
			if step.IsTerminal() || !matches(step, d, cfg.tolerance) {
				continue
			}
			hits[i]++
			if !m.OnPath {
				m.OnPath = true
				m.Direction = step.Direction
				m.Step = i
			}
		}
		return true
	})

	for i, n := range hits {
		if n < 2 {
			continue
		}
		a.ambiguities++
		if cfg.logger != nil {
			cfg.logger.Debug("ambiguous path match",
				"step", i, "feature", path[i].Feature, "threshold", path[i].Threshold, "splits", n)
		}
	}
}

func matches(step domain.Step, d domain.Descriptor, tol float64) bool {
	return step.Feature == d.Feature && math.Abs(step.Threshold-d.Threshold) < tol
}
