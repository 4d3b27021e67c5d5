package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Node is one vertex of a binary decision tree.
// A node is either a split (feature, threshold and exactly two children) or a
// leaf (label and an optional training sample count). Nodes are immutable once
// built: each child is owned by exactly one parent and never aliased.
type Node struct {
	feature   string
	threshold float64
	left      *Node
	right     *Node

	label      string
	samples    uint
	hasSamples bool
}

// NewSplit creates a split node testing feature against threshold.
// Both children are required.
func NewSplit(feature string, threshold float64, left, right *Node) (*Node, error) {
	if strings.TrimSpace(feature) == "" {
		return nil, fmt.Errorf("%w: split without feature", ErrMalformedModel)
	}
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return nil, fmt.Errorf("%w: split %q has non-finite threshold", ErrMalformedModel, feature)
	}
	if left == nil || right == nil {
		return nil, fmt.Errorf("%w: split %q must have both children", ErrMalformedModel, feature)
	}
	if left == right {
		return nil, fmt.Errorf("%w: split %q reuses the same child twice", ErrMalformedModel, feature)
	}
	return &Node{feature: feature, threshold: threshold, left: left, right: right}, nil
}

// NewLeaf creates a leaf node carrying the predicted label.
func NewLeaf(label string) (*Node, error) {
	if strings.TrimSpace(label) == "" {
		return nil, fmt.Errorf("%w: leaf without label", ErrMalformedModel)
	}
	return &Node{label: label}, nil
}

// NewLeafWithSamples creates a leaf that records how many training samples reached it.
func NewLeafWithSamples(label string, samples uint) (*Node, error) {
	n, err := NewLeaf(label)
	if err != nil {
		return nil, err
	}
	n.samples = samples
	n.hasSamples = true
	return n, nil
}

// IsLeaf reports whether n is a terminal node.
func (n *Node) IsLeaf() bool {
	return n.left == nil && n.right == nil
}

// Children returns both children of a split. ok is false for leaves.
func (n *Node) Children() (left, right *Node, ok bool) {
	if n.IsLeaf() {
		return nil, nil, false
	}
	return n.left, n.right, true
}

// Feature returns the tested feature of a split, or "" for a leaf.
func (n *Node) Feature() string { return n.feature }

// Threshold returns the split threshold, or 0 for a leaf.
func (n *Node) Threshold() float64 { return n.threshold }

// Label returns the predicted label of a leaf, or "" for a split.
func (n *Node) Label() string { return n.label }

// Samples returns the training sample count of a leaf.
// ok is false when the tree came from a model file rather than training.
func (n *Node) Samples() (count uint, ok bool) {
	return n.samples, n.hasSamples
}

// CountNodes returns the number of nodes in the subtree rooted at n (0 for nil).
func CountNodes(n *Node) int {
	if n == nil {
		return 0
	}
	return 1 + CountNodes(n.left) + CountNodes(n.right)
}

// Equal reports whether two subtrees have the same shape and content.
// Thresholds are compared exactly.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.IsLeaf() != b.IsLeaf() {
		return false
	}
	if a.IsLeaf() {
		return a.label == b.label && a.hasSamples == b.hasSamples && a.samples == b.samples
	}
	return a.feature == b.feature &&
		a.threshold == b.threshold &&
		Equal(a.left, b.left) &&
		Equal(a.right, b.right)
}

// MarshalJSON encodes the node in the structured tree form exchanged with the classifier service.
func (n *Node) MarshalJSON() ([]byte, error) {
	if n.IsLeaf() {
		leaf := map[string]any{
			KeyLabel:  n.label,
			KeyIsLeaf: true,
		}
		if n.hasSamples {
			leaf[KeySamples] = n.samples
		}
		return json.Marshal(leaf)
	}
	return json.Marshal(map[string]any{
		KeyFeature:   n.feature,
		KeyThreshold: n.threshold,
		KeyLeft:      n.left,
		KeyRight:     n.right,
	})
}
