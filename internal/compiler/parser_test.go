package compiler_test

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/sapling/internal/compiler"
	"github.com/aretw0/sapling/internal/logging"
	"github.com/aretw0/sapling/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_SingleSplit(t *testing.T) {
	tree, err := compiler.Decode("Feature: call\nThreshold: 0.034\nham\nspam\n")
	require.NoError(t, err)

	root := tree.Root()
	require.False(t, root.IsLeaf())
	assert.Equal(t, "call", root.Feature())
	assert.Equal(t, 0.034, root.Threshold())

	left, right, ok := root.Children()
	require.True(t, ok)
	assert.Equal(t, "ham", left.Label())
	assert.Equal(t, "spam", right.Label())
	assert.Equal(t, 3, domain.CountNodes(root))
	assert.Equal(t, 3, tree.Count())
}

func TestDecode_Fixture(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "spam_model.txt"))
	require.NoError(t, err)

	tree, err := compiler.NewParser().Parse(data)
	require.NoError(t, err)

	splits, leaves := 0, 0
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "" || strings.HasPrefix(line, compiler.PrefixThreshold):
		case strings.HasPrefix(line, compiler.PrefixFeature):
			splits++
		default:
			leaves++
		}
	}

	stats := tree.Stats()
	assert.Equal(t, splits, stats.Splits)
	assert.Equal(t, leaves, stats.Leaves)
	assert.Equal(t, splits+leaves, domain.CountNodes(tree.Root()))

	// Casing is preserved, never normalised.
	d, ok := tree.Descriptor(5)
	require.True(t, ok)
	assert.Equal(t, "Spam", d.Label)

	kinds := make([]domain.Kind, 0, tree.Count())
	for _, d := range tree.Descriptors() {
		kinds = append(kinds, d.Kind)
	}
	assert.Equal(t, []domain.Kind{
		domain.KindSplit, domain.KindSplit, domain.KindSplit,
		domain.KindLeaf, domain.KindLeaf, domain.KindLeaf,
		domain.KindSplit, domain.KindLeaf, domain.KindLeaf,
	}, kinds)
}

func TestDecode_Leniency(t *testing.T) {
	tests := []struct {
		name  string
		input string
		count int
	}{
		{"Single Leaf", "ham", 1},
		{"Trailing Blank Lines", "Feature: call\nThreshold: 0.034\nham\nspam\n\n\n   \n", 3},
		{"Blank Lines Between Nodes", "\nFeature: call\n\nThreshold: 0.034\n\nham\n\nspam", 3},
		{"Windows Line Endings", "Feature: call\r\nThreshold: 0.034\r\nham\r\nspam\r\n", 3},
		{"Surrounding Whitespace", "  Feature:   call  \n\tThreshold:  0.034 \n  ham \n spam", 3},
		{"Scientific Threshold", "Feature: call\nThreshold: 3.4e-2\nham\nspam", 3},
		{"Negative Threshold", "Feature: delta\nThreshold: -1.5\nham\nspam", 3},
		{"Content After Root", "Feature: call\nThreshold: 0.034\nham\nspam\nspam\nFeature: x\n", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := compiler.Decode(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.count, tree.Count())
		})
	}
}

func TestDecode_TrailingContentIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, slog.LevelDebug)

	tree, err := compiler.Decode("ham\nspam\neggs\n", compiler.WithLogger(logger))
	require.NoError(t, err)
	assert.Equal(t, 1, tree.Count())
	assert.Equal(t, "ham", tree.Root().Label())
	assert.Contains(t, buf.String(), "ignoring content after the root subtree")
	assert.Contains(t, buf.String(), "line=2")
	assert.Contains(t, buf.String(), "lines=2")
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
	}{
		{"Empty File", "", 0},
		{"Only Blank Lines", "\n  \n\t\n", 0},
		{"Missing Threshold", "Feature: call\n", 1},
		{"Threshold Replaced By Leaf", "Feature: call\nham\nspam\n", 1},
		{"Unparsable Threshold", "Feature: call\nThreshold: abc\nham\nspam\n", 2},
		{"Empty Threshold", "Feature: call\nThreshold:\nham\nspam\n", 2},
		{"Non Finite Threshold", "Feature: call\nThreshold: NaN\nham\nspam\n", 2},
		{"Empty Feature Name", "Feature:\nThreshold: 0.1\nham\nspam\n", 1},
		{"Missing Right Child", "Feature: call\nThreshold: 0.034\nham\n", 1},
		{"Missing Nested Child", "Feature: call\nThreshold: 0.034\nFeature: txt\nThreshold: 0.1\nham\n", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := compiler.Decode(tt.input)
			require.Error(t, err)
			assert.Nil(t, tree, "no partial tree may be exposed")
			assert.ErrorIs(t, err, domain.ErrMalformedModel)

			var decErr *compiler.DecodeError
			require.True(t, errors.As(err, &decErr))
			assert.Equal(t, tt.line, decErr.Line)
		})
	}
}

func TestDecode_DeepSkewedTree(t *testing.T) {
	const depth = 20000

	var sb strings.Builder
	for i := 0; i < depth; i++ {
		sb.WriteString("Feature: f\nThreshold: 0.5\nham\n")
	}
	sb.WriteString("spam\n")

	tree, err := compiler.Decode(sb.String())
	require.NoError(t, err)
	assert.Equal(t, 2*depth+1, tree.Count())

	last, ok := tree.Descriptor(tree.Count())
	require.True(t, ok)
	assert.Equal(t, depth, last.Depth)
	assert.Zero(t, last.HeapIndex, "heap numbering does not fit this deep")
}
