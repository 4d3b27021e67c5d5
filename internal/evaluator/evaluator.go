// Package evaluator classifies text locally by walking a decision tree over
// term-frequency features.
//
// A feature's value is the share of the input's tokens equal to the feature
// (multi-word features count occurrences of the whole phrase). A split sends
// values at or below its threshold left, larger values right.
package evaluator

import (
	"github.com/aretw0/sapling/pkg/domain"
)

// Features holds the term frequencies of one input.
type Features struct {
	tokens []string
	cache  map[string]float64
}

// Extract tokenizes text once for repeated feature lookups.
func Extract(text string) *Features {
	return &Features{tokens: Tokenize(text), cache: make(map[string]float64)}
}

// Len returns the number of tokens in the input.
func (f *Features) Len() int { return len(f.tokens) }

// Value returns the frequency of feature in the input, 0 for empty input.
func (f *Features) Value(feature string) float64 {
	key := normalizeFeature(feature)
	if v, ok := f.cache[key]; ok {
		return v
	}
	v := f.frequency(key)
	f.cache[key] = v
	return v
}

func (f *Features) frequency(phrase string) float64 {
	if len(f.tokens) == 0 || phrase == "" {
		return 0
	}
	words := Tokenize(phrase)
	hits := 0
	for i := 0; i+len(words) <= len(f.tokens); i++ {
		match := true
		for j, w := range words {
			if f.tokens[i+j] != w {
				match = false
				break
			}
		}
		if match {
			hits++
		}
	}
	return float64(hits) / float64(len(f.tokens))
}

// Option configures Evaluate.
type Option func(*options)

type options struct {
	legacy bool
}

// WithLegacyTrace emits traces without node identities or terminal markers,
// the way older classifier services did.
func WithLegacyTrace() Option {
	return func(o *options) {
		o.legacy = true
	}
}

// Evaluate classifies text against tree and records the decision path.
// The last step of the path is the leaf that produced the label.
func Evaluate(tree *domain.Tree, text string, opts ...Option) (domain.Classification, error) {
	if tree == nil {
		return domain.Classification{}, domain.ErrNoModel
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	features := Extract(text)
	var path domain.DecisionPath

	node := tree.Root()
	for {
		rank, _ := tree.Rank(node)
		left, right, ok := node.Children()
		if !ok {
			step := domain.Step{NodeID: rank, Terminal: true}
			if o.legacy {
				step = domain.Step{}
			}
			path = append(path, step)
			return domain.Classification{Label: node.Label(), Path: path}, nil
		}

		value := features.Value(node.Feature())
		step := domain.Step{
			Feature:   node.Feature(),
			Value:     value,
			Threshold: node.Threshold(),
			Direction: domain.Left,
			NodeID:    rank,
		}
		next := left
		if value > node.Threshold() {
			step.Direction = domain.Right
			next = right
		}
		if o.legacy {
			step.NodeID = 0
		}
		path = append(path, step)
		node = next
	}
}
