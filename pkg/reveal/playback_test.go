package reveal_test

import (
	"testing"
	"time"

	"github.com/aretw0/sapling/pkg/align"
	"github.com/aretw0/sapling/pkg/domain"
	"github.com/aretw0/sapling/pkg/reveal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spamResult() domain.Classification {
	return domain.Classification{
		Label: "spam",
		Path: domain.DecisionPath{
			{Feature: "call", Value: 0.01, Threshold: 0.034, Direction: domain.Left},
			{Feature: "txt", Value: 0.02, Threshold: 0.016, Direction: domain.Right},
			{Value: 0, Threshold: 0},
		},
	}
}

func TestPlayback_StepsThenLabel(t *testing.T) {
	clock := reveal.NewManualClock(epoch)
	p := reveal.NewPlayback(reveal.WithClock(clock))
	result := spamResult()

	p.Start(mustDecode(t, model), result)
	assert.Empty(t, p.Visible())
	assert.True(t, p.Highlighting())

	for i := 1; i <= len(result.Path); i++ {
		clock.Advance(600 * time.Millisecond)
		assert.Equal(t, result.Path[:i], p.Visible())
		_, ok := p.Label()
		assert.False(t, ok)
	}

	clock.Advance(499 * time.Millisecond)
	_, ok := p.Label()
	assert.False(t, ok)

	clock.Advance(time.Millisecond)
	label, ok := p.Label()
	require.True(t, ok)
	assert.Equal(t, "spam", label)

	clock.Advance(time.Hour)
	_, ok = p.Label()
	assert.True(t, ok, "the label stays until the next classification")
}

func TestPlayback_Highlights(t *testing.T) {
	clock := reveal.NewManualClock(epoch)
	p := reveal.NewPlayback(reveal.WithClock(clock))

	p.Start(mustDecode(t, model), spamResult())
	assert.Empty(t, p.Highlights().OnPath())

	clock.Advance(600 * time.Millisecond)
	assert.Equal(t, []int{1}, p.Highlights().OnPath())

	clock.Advance(600 * time.Millisecond)
	h := p.Highlights()
	assert.Equal(t, []int{1, 2}, h.OnPath())
	assert.Equal(t, domain.Right, h.Mark(2).Direction)

	clock.Advance(600 * time.Millisecond)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, p.Highlights().OnPath())
}

func TestPlayback_SecondClassificationWins(t *testing.T) {
	clock := reveal.NewManualClock(epoch)
	p := reveal.NewPlayback(reveal.WithClock(clock))
	tree := mustDecode(t, model)

	var labels []string
	p.Subscribe(func(ev domain.RevealEvent) {
		if ev.Label != "" {
			labels = append(labels, ev.Label)
		}
	})

	p.Start(tree, spamResult())
	clock.Advance(600 * time.Millisecond)

	second := domain.Classification{
		Label: "ham",
		Path: domain.DecisionPath{
			{Feature: "call", Value: 0.01, Threshold: 0.034, Direction: domain.Left},
			{Feature: "txt", Value: 0.0, Threshold: 0.016, Direction: domain.Left},
			{Value: 0, Threshold: 0},
		},
	}
	p.Start(tree, second)
	assert.Empty(t, p.Visible(), "the path is cleared on restart")
	_, ok := p.Label()
	assert.False(t, ok)

	clock.Advance(time.Minute)
	assert.Equal(t, second.Path, p.Visible())
	label, ok := p.Label()
	require.True(t, ok)
	assert.Equal(t, "ham", label)
	assert.Equal(t, []string{"ham"}, labels)
}

func TestPlayback_Cancel(t *testing.T) {
	clock := reveal.NewManualClock(epoch)
	p := reveal.NewPlayback(reveal.WithClock(clock))

	assert.ErrorIs(t, p.Cancel(), domain.ErrNoActiveReveal)

	p.Start(mustDecode(t, model), spamResult())
	clock.Advance(600 * time.Millisecond)
	require.NoError(t, p.Cancel())

	clock.Advance(time.Minute)
	assert.Len(t, p.Visible(), 1)
	assert.False(t, p.Highlighting())
	_, ok := p.Label()
	assert.False(t, ok)
}

func TestPlayback_ResultFromSubscriber(t *testing.T) {
	clock := reveal.NewManualClock(epoch)
	p := reveal.NewPlayback(reveal.WithClock(clock))
	tree := mustDecode(t, model)

	var labels []string
	stop := p.Subscribe(func(ev domain.RevealEvent) {
		got, res := p.Result()
		assert.Same(t, tree, got)
		labels = append(labels, res.Label)
	})
	defer stop()

	p.Start(tree, spamResult())
	clock.Advance(time.Hour)

	require.NotEmpty(t, labels)
	for _, l := range labels {
		assert.Equal(t, "spam", l)
	}
}

func TestPlayback_ViewFollowsOneState(t *testing.T) {
	clock := reveal.NewManualClock(epoch)
	p := reveal.NewPlayback(reveal.WithClock(clock))
	tree := mustDecode(t, model)

	var views []reveal.View
	stop := p.Subscribe(func(domain.RevealEvent) {
		views = append(views, p.View())
	})
	defer stop()

	p.Start(tree, spamResult())
	clock.Advance(1200 * time.Millisecond)
	p.Start(tree, domain.Classification{
		Label: "ham",
		Path: domain.DecisionPath{
			{Feature: "call", Value: 0.5, Threshold: 0.034, Direction: domain.Right},
			{Terminal: true},
		},
	})
	clock.Advance(time.Minute)

	require.NotEmpty(t, views)
	for _, v := range views {
		assert.Len(t, v.Visible, v.State.Cursor)
		assert.Equal(t, v.State.Phase == domain.PhaseComplete, v.Labelled)
		assert.Equal(t, align.Align(tree, v.Visible).OnPath(), v.Highlights.OnPath())
	}
}

func TestPlayback_Reset(t *testing.T) {
	clock := reveal.NewManualClock(epoch)
	p := reveal.NewPlayback(reveal.WithClock(clock))

	p.Start(mustDecode(t, model), spamResult())
	clock.Advance(time.Minute)
	_, ok := p.Label()
	require.True(t, ok)

	p.Reset()
	_, ok = p.Label()
	assert.False(t, ok)
	assert.Empty(t, p.Visible())
	assert.Empty(t, p.Highlights().OnPath())
	assert.False(t, p.Highlighting())

	tree, res := p.Result()
	assert.Nil(t, tree)
	assert.Empty(t, res.Path)

	p.Reset()
	assert.Equal(t, 0, clock.Pending())
}
