package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/aretw0/sapling/internal/presentation/tui"
	"github.com/aretw0/sapling/pkg/align"
	"github.com/aretw0/sapling/pkg/domain"
	"github.com/muesli/termenv"
)

// ReplayOptions configures a terminal replay.
type ReplayOptions struct {
	ModelPath string
	// Text is classified once the construction finishes. Empty skips the playback.
	Text string
	Out  io.Writer
	// Live redraws the tree in place. It defaults to whether Out is a terminal.
	Live *bool
}

// Replay loads a model, plays its construction and then the decision path of Text.
// Cancelling ctx stops the running reveal and returns nil.
func Replay(ctx context.Context, rt *Runtime, opts ReplayOptions) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	live := isTerminal(opts.Out)
	if opts.Live != nil {
		live = *opts.Live
	}

	data, err := os.ReadFile(opts.ModelPath)
	if err != nil {
		return fmt.Errorf("failed to read model: %w", err)
	}

	eng := rt.Engine
	p := newPlayer(opts.Out, live)

	// Construction
	stop := eng.Construction().Subscribe(func(ev domain.RevealEvent) {
		p.construction(ev, eng.Construction().Tree())
	})
	if _, err := eng.LoadModel(ctx, string(data)); err != nil {
		stop()
		return err
	}
	interrupted := p.wait(ctx)
	stop()
	if interrupted {
		_ = eng.CancelConstruction()
		printSystemMessage(opts.Out, "Replay interrupted.")
		return nil
	}

	if opts.Text == "" {
		return nil
	}

	// Playback
	p.reset(opts.Text)
	stop = eng.Playback().Subscribe(func(ev domain.RevealEvent) {
		tree, res := eng.Playback().Result()
		p.playback(ev, tree, res)
	})
	defer stop()

	if _, err := eng.Classify(ctx, opts.Text); err != nil {
		return err
	}
	if p.wait(ctx) {
		_ = eng.CancelPlayback()
		printSystemMessage(opts.Out, "Replay interrupted.")
	}
	return nil
}

// player renders reveal events. Its callbacks run on the reveal machines'
// notification path, so they read reveal data through the subscriber-safe
// accessors only.
type player struct {
	out      io.Writer
	output   *termenv.Output
	renderer *tui.TreeRenderer
	live     bool

	mu     sync.Mutex
	text   string
	runID  string
	done   chan struct{}
	closed bool
}

func newPlayer(out io.Writer, live bool) *player {
	profile := termenv.Ascii
	output := termenv.NewOutput(out)
	if live {
		profile = output.EnvColorProfile()
	}
	return &player{
		out:      out,
		output:   output,
		renderer: tui.NewTreeRenderer(profile),
		live:     live,
		done:     make(chan struct{}),
	}
}

func (p *player) reset(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.text = text
	p.runID = ""
	p.done = make(chan struct{})
	p.closed = false
}

func (p *player) wait(ctx context.Context) (interrupted bool) {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	select {
	case <-done:
		return false
	case <-ctx.Done():
		return true
	}
}

func (p *player) construction(ev domain.RevealEvent, tree *domain.Tree) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || !p.claimLocked(ev) {
		return
	}

	if p.live {
		p.output.ClearScreen()
		fmt.Fprintf(p.out, "Building tree  [%d/%d]\n\n", ev.Cursor, ev.Total)
		fmt.Fprint(p.out, p.renderer.Render(tree, &tui.Overlay{Partial: true, Revealed: ev.Cursor}))
		fmt.Fprintf(p.out, "\n%s\n", ev.Message)
	} else if ev.Message != "" {
		fmt.Fprintf(p.out, "[%d/%d] %s\n", ev.Cursor, ev.Total, ev.Message)
	}

	if ev.Phase != domain.PhaseRunning {
		if !p.live {
			fmt.Fprint(p.out, "\n"+p.renderer.Render(tree, nil))
		}
		p.finishLocked()
	}
}

func (p *player) playback(ev domain.RevealEvent, tree *domain.Tree, res domain.Classification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || !p.claimLocked(ev) {
		return
	}

	n := min(ev.Cursor, len(res.Path))
	visible := res.Path[:n]
	overlay := &tui.Overlay{Highlights: align.Align(tree, visible)}

	if p.live {
		p.output.ClearScreen()
		fmt.Fprintf(p.out, "Classifying %q  [%d/%d]\n\n", p.text, ev.Cursor, ev.Total)
		fmt.Fprint(p.out, p.renderer.Render(tree, overlay))
	} else if n > 0 && ev.Phase == domain.PhaseRunning {
		fmt.Fprintf(p.out, "[%d/%d] %s\n", ev.Cursor, ev.Total, describeStep(visible[n-1]))
	}

	if ev.Phase != domain.PhaseRunning {
		if !p.live {
			fmt.Fprint(p.out, "\n"+p.renderer.Render(tree, overlay))
		}
		if ev.Label != "" {
			fmt.Fprintf(p.out, "\nlabel: %s\n", ev.Label)
		}
		p.finishLocked()
	}
}

// claimLocked pins the player to the first run it sees and drops events of other runs.
func (p *player) claimLocked(ev domain.RevealEvent) bool {
	if p.runID == "" {
		p.runID = ev.RunID
	}
	return ev.RunID == p.runID
}

func (p *player) finishLocked() {
	if !p.closed {
		p.closed = true
		close(p.done)
	}
}

func describeStep(s domain.Step) string {
	if s.IsTerminal() {
		return "reached leaf"
	}
	cmp := "<="
	if s.Direction == domain.Right {
		cmp = ">"
	}
	return fmt.Sprintf("%s = %.4f %s %.4f -> %s", s.Feature, s.Value, cmp, s.Threshold, s.Direction)
}
