package compiler

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/aretw0/sapling/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// MaxStructuredDepth bounds the nesting accepted from structured trees.
const MaxStructuredDepth = 1024

// wireNode is the structured tree form returned by the classifier service.
// Splits carry feature/threshold/left/right, leaves carry label (and samples
// when the tree was trained).
type wireNode struct {
	Feature   string    `mapstructure:"feature"`
	Threshold *float64  `mapstructure:"threshold"`
	Left      *wireNode `mapstructure:"left"`
	Right     *wireNode `mapstructure:"right"`
	Label     string    `mapstructure:"label"`
	Samples   *uint     `mapstructure:"samples"`
	IsLeaf    bool      `mapstructure:"isLeaf"`
}

// DecodeJSON decodes a structured tree from JSON. A JSON null yields a nil tree.
func DecodeJSON(data []byte) (*domain.Tree, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &DecodeError{Reason: fmt.Sprintf("invalid JSON tree: %v", err)}
	}
	return DecodeStructured(raw)
}

// DecodeStructured decodes a generic structured tree (as produced by
// encoding/json, YAML decoders or hand-built maps). A nil value yields a nil tree.
func DecodeStructured(v any) (*domain.Tree, error) {
	if v == nil {
		return nil, nil
	}
	if err := checkShape(reflect.ValueOf(v), 0, make(map[uintptr]bool)); err != nil {
		return nil, err
	}

	var wire wireNode
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &wire,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tree decoder: %w", err)
	}
	if err := dec.Decode(v); err != nil {
		return nil, &DecodeError{Reason: fmt.Sprintf("invalid structured tree: %v", err)}
	}

	root, err := wire.build("root")
	if err != nil {
		return nil, err
	}
	return domain.NewTree(root)
}

// checkShape walks generic maps before decoding so aliased or self-referencing
// maps are rejected instead of recursing forever.
func checkShape(v reflect.Value, depth int, onPath map[uintptr]bool) error {
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Map {
		return nil
	}
	if k := v.Type().Key().Kind(); k != reflect.String && k != reflect.Interface {
		return nil
	}
	if depth > MaxStructuredDepth {
		return &DecodeError{Reason: fmt.Sprintf("tree deeper than %d levels", MaxStructuredDepth)}
	}

	ptr := v.Pointer()
	if onPath[ptr] {
		return &DecodeError{Reason: "tree contains a cycle"}
	}
	onPath[ptr] = true
	defer delete(onPath, ptr)

	for _, key := range []string{domain.KeyLeft, domain.KeyRight} {
		child := v.MapIndex(reflect.ValueOf(key))
		if !child.IsValid() {
			continue
		}
		if err := checkShape(child, depth+1, onPath); err != nil {
			return err
		}
	}
	return nil
}

func (w *wireNode) build(at string) (*domain.Node, error) {
	hasLeft, hasRight := w.Left != nil, w.Right != nil
	if hasLeft != hasRight {
		return nil, &DecodeError{Reason: fmt.Sprintf("%s: split must have both children or neither", at)}
	}

	if w.IsLeaf || !hasLeft {
		if hasLeft {
			return nil, &DecodeError{Reason: fmt.Sprintf("%s: leaf has children", at)}
		}
		label := strings.TrimSpace(w.Label)
		if label == "" {
			return nil, &DecodeError{Reason: fmt.Sprintf("%s: leaf without label", at)}
		}
		if w.Samples != nil {
			return domain.NewLeafWithSamples(label, *w.Samples)
		}
		return domain.NewLeaf(label)
	}

	if w.Threshold == nil {
		return nil, &DecodeError{Reason: fmt.Sprintf("%s: split on %q has no threshold", at, w.Feature)}
	}

	left, err := w.Left.build(at + "." + domain.KeyLeft)
	if err != nil {
		return nil, err
	}
	right, err := w.Right.build(at + "." + domain.KeyRight)
	if err != nil {
		return nil, err
	}

	node, err := domain.NewSplit(strings.TrimSpace(w.Feature), *w.Threshold, left, right)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", at, err)
	}
	return node, nil
}
