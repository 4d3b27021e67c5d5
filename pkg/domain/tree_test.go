package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/sapling/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaf(t *testing.T, label string) *domain.Node {
	t.Helper()
	n, err := domain.NewLeaf(label)
	require.NoError(t, err)
	return n
}

func split(t *testing.T, feature string, threshold float64, l, r *domain.Node) *domain.Node {
	t.Helper()
	n, err := domain.NewSplit(feature, threshold, l, r)
	require.NoError(t, err)
	return n
}

// spamTree builds:
//
//	call <= 0.034
//	├── txt <= 0.016
//	│   ├── ham
//	│   └── spam
//	└── spam
func spamTree(t *testing.T) *domain.Node {
	return split(t, "call", 0.034,
		split(t, "txt", 0.016, leaf(t, "ham"), leaf(t, "spam")),
		leaf(t, "spam"),
	)
}

func TestCountNodes(t *testing.T) {
	assert.Equal(t, 0, domain.CountNodes(nil))
	assert.Equal(t, 1, domain.CountNodes(leaf(t, "ham")))
	assert.Equal(t, 5, domain.CountNodes(spamTree(t)))

	var none *domain.Tree
	assert.Equal(t, 0, none.Count())
	assert.Nil(t, none.Root())
	assert.Empty(t, none.Descriptors())
}

func TestNodeInvariants(t *testing.T) {
	ham := leaf(t, "ham")

	tests := []struct {
		name string
		fn   func() error
	}{
		{"Split Without Feature", func() error {
			_, err := domain.NewSplit("  ", 1, ham, leaf(t, "spam"))
			return err
		}},
		{"Split Missing Right", func() error {
			_, err := domain.NewSplit("call", 1, ham, nil)
			return err
		}},
		{"Split Same Child Twice", func() error {
			_, err := domain.NewSplit("call", 1, ham, ham)
			return err
		}},
		{"Leaf Without Label", func() error {
			_, err := domain.NewLeaf("")
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.fn(), domain.ErrMalformedModel)
		})
	}
}

func TestNodeAccessors(t *testing.T) {
	root := spamTree(t)

	assert.False(t, root.IsLeaf())
	assert.Equal(t, "call", root.Feature())
	assert.Equal(t, 0.034, root.Threshold())

	l, r, ok := root.Children()
	require.True(t, ok)
	assert.Equal(t, "txt", l.Feature())
	assert.Equal(t, "spam", r.Label())

	_, _, ok = r.Children()
	assert.False(t, ok)

	_, has := r.Samples()
	assert.False(t, has, "leaves from model files carry no sample count")

	trained, err := domain.NewLeafWithSamples("ham", 2890)
	require.NoError(t, err)
	n, has := trained.Samples()
	assert.True(t, has)
	assert.Equal(t, uint(2890), n)
}

func TestNewTree_Descriptors(t *testing.T) {
	tree, err := domain.NewTree(spamTree(t))
	require.NoError(t, err)
	require.Equal(t, 5, tree.Count())

	got := tree.Descriptors()
	want := []struct {
		rank   int
		heap   uint64
		depth  int
		parent int
		side   domain.Direction
		kind   domain.Kind
		name   string
	}{
		{1, 1, 0, 0, "", domain.KindSplit, "call"},
		{2, 2, 1, 1, domain.Left, domain.KindSplit, "txt"},
		{3, 4, 2, 2, domain.Left, domain.KindLeaf, "ham"},
		{4, 5, 2, 2, domain.Right, domain.KindLeaf, "spam"},
		{5, 3, 1, 1, domain.Right, domain.KindLeaf, "spam"},
	}

	for i, w := range want {
		d := got[i]
		assert.Equal(t, w.rank, d.Rank, "rank at %d", i)
		assert.Equal(t, w.heap, d.HeapIndex, "heap index at %d", i)
		assert.Equal(t, w.depth, d.Depth, "depth at %d", i)
		assert.Equal(t, w.parent, d.Parent, "parent at %d", i)
		assert.Equal(t, w.side, d.Side, "side at %d", i)
		assert.Equal(t, w.kind, d.Kind, "kind at %d", i)
		if d.Kind == domain.KindSplit {
			assert.Equal(t, w.name, d.Feature)
		} else {
			assert.Equal(t, w.name, d.Label)
		}

		rank, ok := tree.Rank(d.Node)
		assert.True(t, ok)
		assert.Equal(t, d.Rank, rank)
	}

	_, ok := tree.Descriptor(0)
	assert.False(t, ok)
	_, ok = tree.Descriptor(6)
	assert.False(t, ok)
}

func TestNewTree_RejectsSharedSubtree(t *testing.T) {
	shared := split(t, "txt", 0.5, leaf(t, "ham"), leaf(t, "spam"))
	root := split(t, "call", 0.1, shared, split(t, "win", 0.2, shared, leaf(t, "spam")))

	_, err := domain.NewTree(root)
	assert.ErrorIs(t, err, domain.ErrMalformedModel)

	_, err = domain.NewTree(nil)
	assert.ErrorIs(t, err, domain.ErrMalformedModel)
}

func TestDescriptorMessage(t *testing.T) {
	tree, err := domain.NewTree(spamTree(t))
	require.NoError(t, err)

	root, _ := tree.Descriptor(1)
	assert.Equal(t, `Creating split on "call" at threshold 0.0340`, root.Message())

	ham, _ := tree.Descriptor(3)
	assert.Equal(t, "Adding leaf: ham", ham.Message())
}

func TestStats(t *testing.T) {
	tree, err := domain.NewTree(spamTree(t))
	require.NoError(t, err)

	assert.Equal(t, domain.Stats{Nodes: 5, Splits: 2, Leaves: 3, Depth: 2, Features: 2}, tree.Stats())
}

func TestEqual(t *testing.T) {
	assert.True(t, domain.Equal(spamTree(t), spamTree(t)))
	assert.True(t, domain.Equal(nil, nil))
	assert.False(t, domain.Equal(spamTree(t), nil))
	assert.False(t, domain.Equal(spamTree(t), split(t, "call", 0.035,
		split(t, "txt", 0.016, leaf(t, "ham"), leaf(t, "spam")),
		leaf(t, "spam"),
	)))
	assert.False(t, domain.Equal(leaf(t, "ham"), leaf(t, "Ham")))
}

func TestNodeMarshalJSON(t *testing.T) {
	root := split(t, "call", 0.034, leaf(t, "ham"), leaf(t, "spam"))

	data, err := json.Marshal(root)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"feature": "call",
		"threshold": 0.034,
		"left": {"label": "ham", "isLeaf": true},
		"right": {"label": "spam", "isLeaf": true}
	}`, string(data))
}

func TestStepTermination(t *testing.T) {
	path := domain.DecisionPath{
		{Feature: "call", Value: 0.01, Threshold: 0.034, Direction: domain.Left},
		{Value: 0, Threshold: 0},
	}

	assert.False(t, path[0].IsTerminal())
	assert.True(t, path[1].IsTerminal())
	assert.False(t, path.HasIdentity())

	term, ok := path.Terminal()
	assert.True(t, ok)
	assert.Equal(t, "", term.Feature)

	explicit := domain.Step{Feature: "call", Terminal: true, NodeID: 3}
	assert.True(t, explicit.IsTerminal())
	assert.True(t, domain.DecisionPath{explicit}.HasIdentity())
}

func TestDirectionJSON(t *testing.T) {
	var steps []domain.Step
	err := json.Unmarshal([]byte(`[{"feature":"call","value":0.01,"threshold":0.034,"direction":"LEFT"},{"direction":"right"}]`), &steps)
	require.NoError(t, err)
	assert.Equal(t, domain.Left, steps[0].Direction)
	assert.Equal(t, domain.Right, steps[1].Direction)

	err = json.Unmarshal([]byte(`[{"direction":"up"}]`), &steps)
	assert.Error(t, err)
}
