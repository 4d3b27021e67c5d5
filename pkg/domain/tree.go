package domain

import (
	"fmt"
	"strconv"
)

// Kind distinguishes split descriptors from leaf descriptors.
type Kind string

const (
	KindSplit Kind = "split"
	KindLeaf  Kind = "leaf"
)

// maxHeapDepth is the deepest level whose complete-binary-tree number still fits in a uint64.
const maxHeapDepth = 63

// Descriptor is the flat view of one node in pre-order discovery order.
type Descriptor struct {
	// Rank is the 1-based pre-order discovery rank. It is the node's stable
	// identity within a tree and the index used to pace construction reveals.
	Rank int `json:"rank"`

	// HeapIndex is the legacy complete-binary-tree number (root 1, children 2i and 2i+1).
	// It is 0 when the node is too deep for the numbering to fit.
	HeapIndex uint64 `json:"heap_index,omitempty"`

	Depth  int       `json:"depth"`
	Parent int       `json:"parent,omitempty"` // Rank of the parent, 0 for the root
	Side   Direction `json:"side,omitempty"`   // Which branch of the parent leads here

	Kind      Kind    `json:"kind"`
	Feature   string  `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Label     string  `json:"label,omitempty"`

	Node *Node `json:"-"`
}

// Message renders the human-readable build progress line for this node.
func (d Descriptor) Message() string {
	if d.Kind == KindLeaf {
		return fmt.Sprintf("Adding leaf: %s", d.Label)
	}
	return fmt.Sprintf("Creating split on %q at threshold %s", d.Feature, strconv.FormatFloat(d.Threshold, 'f', 4, 64))
}

// Tree is an immutable decision tree together with its pre-order descriptors.
// A nil *Tree means no model is loaded.
type Tree struct {
	root        *Node
	descriptors []Descriptor
	ranks       map[*Node]int
}

// NewTree indexes root in pre-order. It fails when a node is reachable twice.
func NewTree(root *Node) (*Tree, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: empty tree", ErrMalformedModel)
	}

	t := &Tree{
		root:  root,
		ranks: make(map[*Node]int),
	}

	type frame struct {
		node   *Node
		heap   uint64
		depth  int
		parent int
		side   Direction
	}

	stack := []frame{{node: root, heap: 1}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, seen := t.ranks[f.node]; seen {
			return nil, fmt.Errorf("%w: node reachable more than once", ErrMalformedModel)
		}

		d := Descriptor{
			Rank:   len(t.descriptors) + 1,
			Depth:  f.depth,
			Parent: f.parent,
			Side:   f.side,
			Node:   f.node,
		}
		if f.depth <= maxHeapDepth {
			d.HeapIndex = f.heap
		}
		if f.node.IsLeaf() {
			d.Kind = KindLeaf
			d.Label = f.node.label
		} else {
			d.Kind = KindSplit
			d.Feature = f.node.feature
			d.Threshold = f.node.threshold
		}
		t.ranks[f.node] = d.Rank
		t.descriptors = append(t.descriptors, d)

		if left, right, ok := f.node.Children(); ok {
			var lh, rh uint64
			if f.heap != 0 && f.depth < maxHeapDepth {
				lh, rh = f.heap*2, f.heap*2+1
			}
			// Right is pushed first so the left subtree is discovered first.
			stack = append(stack,
				frame{node: right, heap: rh, depth: f.depth + 1, parent: d.Rank, side: Right},
				frame{node: left, heap: lh, depth: f.depth + 1, parent: d.Rank, side: Left},
			)
		}
	}

	return t, nil
}

// Root returns the root node, or nil for a nil tree.
func (t *Tree) Root() *Node {
	if t == nil {
		return nil
	}
	return t.root
}

// Count returns the number of nodes (0 for a nil tree).
func (t *Tree) Count() int {
	if t == nil {
		return 0
	}
	return len(t.descriptors)
}

// Descriptors returns the nodes in pre-order discovery order.
// The returned slice must not be modified.
func (t *Tree) Descriptors() []Descriptor {
	if t == nil {
		return nil
	}
	return t.descriptors
}

// Descriptor returns the descriptor with the given 1-based rank.
func (t *Tree) Descriptor(rank int) (Descriptor, bool) {
	if t == nil || rank < 1 || rank > len(t.descriptors) {
		return Descriptor{}, false
	}
	return t.descriptors[rank-1], true
}

// Rank returns the pre-order rank of a node belonging to this tree.
func (t *Tree) Rank(n *Node) (int, bool) {
	if t == nil || n == nil {
		return 0, false
	}
	r, ok := t.ranks[n]
	return r, ok
}

// Walk visits every descriptor in pre-order until fn returns false.
func (t *Tree) Walk(fn func(Descriptor) bool) {
	for _, d := range t.Descriptors() {
		if !fn(d) {
			return
		}
	}
}

// Stats summarises the shape of the tree.
type Stats struct {
	Nodes    int `json:"nodes"`
	Splits   int `json:"splits"`
	Leaves   int `json:"leaves"`
	Depth    int `json:"depth"`
	Features int `json:"features"`
}

// Stats computes node counts, maximum depth and distinct feature count.
func (t *Tree) Stats() Stats {
	s := Stats{Nodes: t.Count()}
	features := make(map[string]struct{})
	t.Walk(func(d Descriptor) bool {
		if d.Kind == KindLeaf {
			s.Leaves++
		} else {
			s.Splits++
			features[d.Feature] = struct{}{}
		}
		if d.Depth > s.Depth {
			s.Depth = d.Depth
		}
		return true
	})
	s.Features = len(features)
	return s
}
