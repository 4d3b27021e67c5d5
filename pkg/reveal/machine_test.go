package reveal_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/sapling/pkg/domain"
	"github.com/aretw0/sapling/pkg/reveal"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// recorder collects transitions in the order they were published.
type recorder struct {
	mu     sync.Mutex
	states []reveal.State
}

func (r *recorder) add(s reveal.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) phases() []domain.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Phase, len(r.states))
	for i, s := range r.states {
		out[i] = s.Phase
	}
	return out
}

func (r *recorder) cursors() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.states))
	for i, s := range r.states {
		out[i] = s.Cursor
	}
	return out
}

func newMachine(t *testing.T, timing reveal.Timing) (*reveal.Machine, *reveal.ManualClock, *recorder) {
	t.Helper()
	clock := reveal.NewManualClock(epoch)
	m := reveal.NewMachine(domain.RevealConstruction, timing, reveal.WithClock(clock))
	rec := &recorder{}
	m.Subscribe(rec.add)
	return m, clock, rec
}

func TestMachine_CursorReachesTotal(t *testing.T) {
	m, clock, rec := newMachine(t, reveal.ConstructionTiming)

	runID := m.Start(5)
	require.NotEmpty(t, runID)
	assert.Equal(t, domain.PhaseRunning, m.State().Phase)
	assert.Equal(t, 0, m.State().Cursor)

	for i := 1; i <= 5; i++ {
		clock.Advance(399 * time.Millisecond)
		assert.Equal(t, i-1, m.State().Cursor, "no tick before the interval elapses")
		clock.Advance(time.Millisecond)
		assert.Equal(t, i, m.State().Cursor)
	}

	assert.Equal(t, domain.PhaseComplete, m.State().Phase)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 5}, rec.cursors())

	clock.Advance(2 * time.Second)
	assert.Equal(t, domain.PhaseIdle, m.State().Phase)
	assert.Equal(t, 5, m.State().Cursor, "completed reveals stay revealed")
	assert.Equal(t, runID, m.State().RunID)
	assert.Equal(t, 0, clock.Pending())
}

func TestMachine_CursorIsMonotonic(t *testing.T) {
	m, clock, rec := newMachine(t, reveal.Timing{Interval: time.Second})

	m.Start(50)
	for i := 0; i < 100; i++ {
		clock.Advance(700 * time.Millisecond)
	}

	cursors := rec.cursors()
	for i := 1; i < len(cursors); i++ {
		assert.GreaterOrEqual(t, cursors[i], cursors[i-1])
	}
	assert.Equal(t, 50, m.State().Cursor)
	assert.Equal(t, domain.PhaseComplete, m.State().Phase, "zero linger stays complete")
}

func TestMachine_ZeroTotalCompletesImmediately(t *testing.T) {
	m, clock, rec := newMachine(t, reveal.ConstructionTiming)

	m.Start(0)
	assert.Equal(t, domain.PhaseComplete, m.State().Phase)
	assert.Equal(t, []domain.Phase{domain.PhaseRunning, domain.PhaseComplete}, rec.phases())
	assert.Equal(t, 1, clock.Pending(), "only the linger timer is pending")
}

func TestMachine_SettleDelaysCompletion(t *testing.T) {
	m, clock, _ := newMachine(t, reveal.PlaybackTiming)

	m.Start(2)
	clock.Advance(1200 * time.Millisecond)
	assert.Equal(t, 2, m.State().Cursor)
	assert.Equal(t, domain.PhaseRunning, m.State().Phase)

	clock.Advance(499 * time.Millisecond)
	assert.Equal(t, domain.PhaseRunning, m.State().Phase)
	clock.Advance(time.Millisecond)
	assert.Equal(t, domain.PhaseComplete, m.State().Phase)
}

func TestMachine_RestartCancelsPreviousRun(t *testing.T) {
	m, clock, rec := newMachine(t, reveal.ConstructionTiming)

	first := m.Start(10)
	clock.Advance(800 * time.Millisecond)
	require.Equal(t, 2, m.State().Cursor)

	second := m.Start(3)
	assert.NotEqual(t, first, second)
	assert.Equal(t, 0, m.State().Cursor)

	clock.Advance(10 * time.Second)
	s := m.State()
	assert.Equal(t, second, s.RunID)
	assert.Equal(t, 3, s.Cursor)
	assert.Equal(t, 3, s.Total)

	var cancelled int
	for _, st := range rec.states {
		if st.Cancelled {
			cancelled++
			assert.Equal(t, first, st.RunID)
			assert.Equal(t, 2, st.Cursor)
		}
		if st.RunID == first {
			assert.LessOrEqual(t, st.Cursor, 2, "no tick of the first run after the restart")
		}
	}
	assert.Equal(t, 1, cancelled)
}

func TestMachine_Cancel(t *testing.T) {
	m, clock, _ := newMachine(t, reveal.ConstructionTiming)

	assert.ErrorIs(t, m.Cancel(), domain.ErrNoActiveReveal)

	m.Start(4)
	clock.Advance(400 * time.Millisecond)
	require.NoError(t, m.Cancel())

	s := m.State()
	assert.Equal(t, domain.PhaseIdle, s.Phase)
	assert.True(t, s.Cancelled)
	assert.Equal(t, 1, s.Cursor)
	assert.Equal(t, 0, clock.Pending())

	clock.Advance(time.Minute)
	assert.Equal(t, 1, m.State().Cursor)
	assert.ErrorIs(t, m.Cancel(), domain.ErrNoActiveReveal)
}

func TestMachine_Wait(t *testing.T) {
	m, clock, _ := newMachine(t, reveal.Timing{Interval: time.Second})

	require.NoError(t, m.Wait(context.Background()), "an idle machine does not block")

	m.Start(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Wait(ctx), context.Canceled)

	clock.Advance(2 * time.Second)
	require.NoError(t, m.Wait(context.Background()))
}

func TestMachine_Unsubscribe(t *testing.T) {
	clock := reveal.NewManualClock(epoch)
	m := reveal.NewMachine(domain.RevealPlayback, reveal.Timing{Interval: time.Second}, reveal.WithClock(clock))

	var count int
	stop := m.Subscribe(func(reveal.State) { count++ })
	m.Start(1)
	stop()
	clock.Advance(time.Second)

	assert.Equal(t, 1, count)
}

func TestMachine_SystemClock(t *testing.T) {
	m := reveal.NewMachine(domain.RevealConstruction, reveal.Timing{Interval: time.Millisecond})

	m.Start(3)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Wait(ctx))

	assert.Equal(t, 3, m.State().Cursor)
	assert.Equal(t, domain.PhaseComplete, m.State().Phase)
}

func TestMachine_ClockworkFakeClock(t *testing.T) {
	fc := clockwork.NewFakeClockAt(epoch)
	m := reveal.NewMachine(domain.RevealPlayback, reveal.Timing{Interval: time.Second},
		reveal.WithClock(reveal.Clockwork(fc)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	m.Start(2)
	for i := 0; i < 2; i++ {
		// Each tick schedules the next one from its own goroutine.
		require.NoError(t, fc.BlockUntilContext(ctx, 1))
		fc.Advance(time.Second)
	}
	require.NoError(t, m.Wait(ctx))

	s := m.State()
	assert.Equal(t, 2, s.Cursor)
	assert.Equal(t, domain.PhaseComplete, s.Phase)
	assert.Equal(t, epoch.Add(2*time.Second), s.At)
}
