package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/aretw0/sapling/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspect_JSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Inspect(InspectOptions{ModelPath: writeModel(t, spamModel), JSON: true, Out: &out}))

	var got struct {
		Stats       domain.Stats        `json:"stats"`
		Descriptors []domain.Descriptor `json:"descriptors"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, 5, got.Stats.Nodes)
	require.Len(t, got.Descriptors, 5)
	assert.Equal(t, "call", got.Descriptors[0].Feature)
}

func TestInspect_Text(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Inspect(InspectOptions{ModelPath: writeModel(t, spamModel), Out: &out}))

	got := out.String()
	assert.Contains(t, got, "# model.txt")
	assert.Contains(t, got, "## Build order")
	assert.Contains(t, got, "→ ham")
	assert.NotContains(t, got, "\x1b[", "plain output for non-terminals")
}

func TestInspect_Malformed(t *testing.T) {
	err := Inspect(InspectOptions{ModelPath: writeModel(t, "Feature: call\n"), Out: &bytes.Buffer{}})
	assert.ErrorIs(t, err, domain.ErrMalformedModel)
}

func TestGraph(t *testing.T) {
	path := writeModel(t, spamModel)

	var plain bytes.Buffer
	require.NoError(t, Graph(GraphOptions{ModelPath: path, Out: &plain}))
	assert.Contains(t, plain.String(), "graph TD")
	assert.NotContains(t, plain.String(), "label:")

	var traced bytes.Buffer
	require.NoError(t, Graph(GraphOptions{ModelPath: path, Text: "free free entry", Out: &traced}))
	assert.Contains(t, traced.String(), "%% label: spam")
	assert.Contains(t, traced.String(), "class n4 current;")
}
