package evaluator_test

import (
	"testing"

	"github.com/aretw0/sapling/internal/compiler"
	"github.com/aretw0/sapling/internal/evaluator"
	"github.com/aretw0/sapling/pkg/align"
	"github.com/aretw0/sapling/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const model = `Feature: call
Threshold: 0.034
Feature: free
Threshold: 0.1
ham
spam
spam
`

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"call", "now", "free", "prize", "cafe", "2"}, evaluator.Tokenize("CALL now: FREE prize! Café #2"))
	assert.Empty(t, evaluator.Tokenize("  ...  "))
}

func TestFeatures_Value(t *testing.T) {
	f := evaluator.Extract("win a free prize call now free call")

	assert.Equal(t, 8, f.Len())
	assert.InDelta(t, 0.25, f.Value("free"), 1e-12)
	assert.InDelta(t, 0.25, f.Value("FREE"), 1e-12)
	assert.InDelta(t, 0.25, f.Value("call"), 1e-12)
	assert.InDelta(t, 0.125, f.Value("free prize"), 1e-12)
	assert.Zero(t, f.Value("ham"))

	assert.Zero(t, evaluator.Extract("").Value("call"))
}

func TestEvaluate(t *testing.T) {
	tree, err := compiler.Decode(model)
	require.NoError(t, err)

	tests := []struct {
		name  string
		text  string
		label string
		ranks []int
		dirs  []domain.Direction
	}{
		{"Ham", "see you at lunch", "ham", []int{1, 2, 3}, []domain.Direction{domain.Left, domain.Left}},
		{"Free Offer", "free free entry", "spam", []int{1, 2, 4}, []domain.Direction{domain.Left, domain.Right}},
		{"Call", "call me", "spam", []int{1, 5}, []domain.Direction{domain.Right}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := evaluator.Evaluate(tree, tt.text)
			require.NoError(t, err)

			assert.Equal(t, tt.label, res.Label)
			require.Len(t, res.Path, len(tt.ranks))
			for i, step := range res.Path {
				assert.Equal(t, tt.ranks[i], step.NodeID)
				if i < len(tt.dirs) {
					assert.Equal(t, tt.dirs[i], step.Direction)
					assert.False(t, step.IsTerminal())
				}
			}
			last, ok := res.Path.Terminal()
			require.True(t, ok)
			assert.True(t, last.Terminal)

			assert.Equal(t, tt.ranks, align.Align(tree, res.Path).OnPath())
		})
	}
}

func TestEvaluate_LegacyTrace(t *testing.T) {
	tree, err := compiler.Decode(model)
	require.NoError(t, err)

	res, err := evaluator.Evaluate(tree, "call me", evaluator.WithLegacyTrace())
	require.NoError(t, err)

	assert.False(t, res.Path.HasIdentity())
	assert.Equal(t, domain.Step{}, res.Path[len(res.Path)-1])

	a := align.Align(tree, res.Path)
	assert.Equal(t, align.ModeStructural, a.Mode())
	assert.True(t, a.Mark(1).OnPath)
	assert.Equal(t, domain.Right, a.Mark(1).Direction)
}

func TestEvaluate_NoModel(t *testing.T) {
	_, err := evaluator.Evaluate(nil, "hello")
	assert.ErrorIs(t, err, domain.ErrNoModel)
}
