package reveal_test

import (
	"testing"
	"time"

	"github.com/aretw0/sapling/internal/compiler"
	"github.com/aretw0/sapling/pkg/domain"
	"github.com/aretw0/sapling/pkg/reveal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const model = `Feature: call
Threshold: 0.034
Feature: txt
Threshold: 0.016
ham
spam
spam
`

func mustDecode(t *testing.T, text string) *domain.Tree {
	t.Helper()
	tree, err := compiler.Decode(text)
	require.NoError(t, err)
	return tree
}

func TestConstruction_RevealsInPreOrder(t *testing.T) {
	clock := reveal.NewManualClock(epoch)
	c := reveal.NewConstruction(reveal.WithClock(clock))
	tree := mustDecode(t, model)

	var messages []string
	c.Subscribe(func(ev domain.RevealEvent) {
		assert.Equal(t, domain.RevealConstruction, ev.Kind)
		messages = append(messages, ev.Message)
	})

	c.Start(tree)
	p := c.Progress()
	assert.Equal(t, reveal.StepStart, p.Step)
	assert.Equal(t, 0, p.Built)
	assert.Equal(t, 5, p.Total)

	for tick := 1; tick <= tree.Count(); tick++ {
		clock.Advance(reveal.ConstructionTiming.Interval)
		for rank := 1; rank <= tree.Count(); rank++ {
			assert.Equal(t, rank <= tick, c.Revealed(rank), "rank %d after tick %d", rank, tick)
		}
	}

	assert.Equal(t, []string{
		reveal.MessageStarting,
		`Creating split on "call" at threshold 0.0340`,
		`Creating split on "txt" at threshold 0.0160`,
		"Adding leaf: ham",
		"Adding leaf: spam",
		"Adding leaf: spam",
		reveal.MessageComplete,
	}, messages)

	p = c.Progress()
	assert.Equal(t, reveal.StepDone, p.Step)
	assert.Equal(t, 100, p.Percent)

	clock.Advance(2 * time.Second)
	assert.Equal(t, domain.PhaseIdle, c.Progress().Phase)
	assert.Empty(t, c.Progress().Message)
	assert.True(t, c.Revealed(5))
}

func TestConstruction_ProgressDescribesCurrentNode(t *testing.T) {
	clock := reveal.NewManualClock(epoch)
	c := reveal.NewConstruction(reveal.WithClock(clock))
	c.Start(mustDecode(t, model))

	clock.Advance(800 * time.Millisecond)
	p := c.Progress()
	assert.Equal(t, reveal.StepSplit, p.Step)
	assert.Equal(t, "txt", p.Feature)
	assert.Equal(t, 0.016, p.Threshold)
	assert.Equal(t, 40, p.Percent)

	clock.Advance(400 * time.Millisecond)
	p = c.Progress()
	assert.Equal(t, reveal.StepLeaf, p.Step)
	assert.Equal(t, "ham", p.Label)
}

func TestConstruction_NewModelRestarts(t *testing.T) {
	clock := reveal.NewManualClock(epoch)
	c := reveal.NewConstruction(reveal.WithClock(clock))

	c.Start(mustDecode(t, model))
	clock.Advance(1200 * time.Millisecond)

	next := mustDecode(t, "Feature: win\nThreshold: 1\nham\nspam\n")
	c.Start(next)
	assert.False(t, c.Revealed(1))
	assert.Same(t, next, c.Tree())

	clock.Advance(1200 * time.Millisecond)
	p := c.Progress()
	assert.Equal(t, 3, p.Built)
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, domain.PhaseComplete, p.Phase)
}

func TestConstruction_NoModel(t *testing.T) {
	clock := reveal.NewManualClock(epoch)
	c := reveal.NewConstruction(reveal.WithClock(clock))

	c.Start(nil)
	assert.Equal(t, domain.PhaseComplete, c.Progress().Phase)
	assert.False(t, c.Revealed(1))

	clock.Advance(2 * time.Second)
	assert.ErrorIs(t, c.Cancel(), domain.ErrNoActiveReveal)
}
