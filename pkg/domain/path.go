package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Direction is the branch taken at a split.
type Direction string

const (
	Left  Direction = "left"
	Right Direction = "right"
)

// ParseDirection accepts "left" or "right" in any casing.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	case "":
		return "", nil
	default:
		return "", fmt.Errorf("invalid direction %q", s)
	}
}

// UnmarshalJSON normalises the direction casing.
func (d *Direction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDirection(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Step is one feature test recorded while classifying an input.
type Step struct {
	Feature   string    `json:"feature,omitempty" yaml:"feature,omitempty"`
	Value     float64   `json:"value" yaml:"value"`
	Threshold float64   `json:"threshold" yaml:"threshold"`
	Direction Direction `json:"direction,omitempty" yaml:"direction,omitempty"`

	// NodeID is the pre-order rank of the node that produced the step, 0 when unknown.
	NodeID int `json:"node_id,omitempty" yaml:"node_id,omitempty"`

	// Terminal marks the final step, which ends at a leaf.
	Terminal bool `json:"terminal,omitempty" yaml:"terminal,omitempty"`
}

// IsTerminal reports whether the step ends the path at a leaf.
// Traces without an explicit marker signal termination by omitting the feature.
func (s Step) IsTerminal() bool {
	return s.Terminal || s.Feature == ""
}

// DecisionPath is the ordered trace of one classification.
type DecisionPath []Step

// HasIdentity reports whether any step carries a node identity.
func (p DecisionPath) HasIdentity() bool {
	for _, s := range p {
		if s.NodeID != 0 {
			return true
		}
	}
	return false
}

// Terminal returns the terminal step, if the path has one.
func (p DecisionPath) Terminal() (Step, bool) {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i].IsTerminal() {
			return p[i], true
		}
	}
	return Step{}, false
}

// Classification is the result of classifying one input.
type Classification struct {
	Label string       `json:"label" yaml:"label"`
	Path  DecisionPath `json:"path" yaml:"path"`
}
