package compiler_test

import (
	"testing"

	"github.com/aretw0/sapling/internal/compiler"
	"github.com/aretw0/sapling/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const structuredSpam = `{
	"feature": "call",
	"threshold": 0.034,
	"left": {
		"feature": "txt",
		"threshold": 0.016,
		"left": {"isLeaf": true, "label": "ham"},
		"right": {"isLeaf": true, "label": "spam"}
	},
	"right": {"label": "spam"}
}`

func TestDecodeJSON_MatchesText(t *testing.T) {
	fromJSON, err := compiler.DecodeJSON([]byte(structuredSpam))
	require.NoError(t, err)

	fromText, err := compiler.Decode("Feature: call\nThreshold: 0.034\nFeature: txt\nThreshold: 0.016\nham\nspam\nspam\n")
	require.NoError(t, err)

	assert.True(t, domain.Equal(fromText.Root(), fromJSON.Root()))
	assert.Equal(t, fromText.Descriptors()[1].Feature, fromJSON.Descriptors()[1].Feature)
	assert.Equal(t, fromText.Count(), fromJSON.Count())
}

func TestDecodeJSON_Samples(t *testing.T) {
	tree, err := compiler.DecodeJSON([]byte(`{"feature":"call","threshold":"0.5","left":{"label":"ham","samples":2890},"right":{"label":"spam","samples":341}}`))
	require.NoError(t, err)

	left, _, _ := tree.Root().Children()
	n, ok := left.Samples()
	assert.True(t, ok)
	assert.Equal(t, uint(2890), n)
	assert.Equal(t, 0.5, tree.Root().Threshold(), "weakly typed thresholds are accepted")
}

func TestDecodeJSON_Null(t *testing.T) {
	tree, err := compiler.DecodeJSON([]byte(`null`))
	require.NoError(t, err)
	assert.Nil(t, tree)
	assert.Equal(t, 0, tree.Count())
}

func TestDecodeStructured_Malformed(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"Invalid JSON", `{"feature":`},
		{"One Sided Split", `{"feature":"call","threshold":0.1,"left":{"label":"ham"}}`},
		{"Missing Threshold", `{"feature":"call","left":{"label":"ham"},"right":{"label":"spam"}}`},
		{"Missing Feature", `{"threshold":0.1,"left":{"label":"ham"},"right":{"label":"spam"}}`},
		{"Leaf Without Label", `{"feature":"call","threshold":0.1,"left":{"isLeaf":true},"right":{"label":"spam"}}`},
		{"Leaf With Children", `{"isLeaf":true,"label":"ham","left":{"label":"ham"},"right":{"label":"spam"}}`},
		{"Wrong Type", `{"feature":"call","threshold":{"x":1},"left":{"label":"ham"},"right":{"label":"spam"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := compiler.DecodeJSON([]byte(tt.json))
			assert.Nil(t, tree)
			assert.ErrorIs(t, err, domain.ErrMalformedModel)
		})
	}
}

func TestDecodeStructured_Cycle(t *testing.T) {
	root := map[string]any{"feature": "call", "threshold": 0.1}
	root["left"] = root
	root["right"] = map[string]any{"label": "spam"}

	tree, err := compiler.DecodeStructured(root)
	assert.Nil(t, tree)
	assert.ErrorIs(t, err, domain.ErrMalformedModel)
}
