package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aretw0/sapling/internal/compiler"
	"github.com/aretw0/sapling/internal/evaluator"
	"github.com/aretw0/sapling/internal/presentation/graph"
	"github.com/aretw0/sapling/internal/presentation/tui"
	"github.com/aretw0/sapling/pkg/align"
	"github.com/aretw0/sapling/pkg/domain"
	"github.com/muesli/termenv"
)

// InspectOptions configures the inspect command.
type InspectOptions struct {
	ModelPath string
	JSON      bool
	Out       io.Writer
}

// Inspect prints a summary of a model file: its shape, build order and outline.
func Inspect(opts InspectOptions) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	tree, err := loadTree(opts.ModelPath)
	if err != nil {
		return err
	}

	if opts.JSON {
		enc := json.NewEncoder(opts.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Stats       domain.Stats        `json:"stats"`
			Descriptors []domain.Descriptor `json:"descriptors"`
		}{tree.Stats(), tree.Descriptors()})
	}

	md := tui.SummaryMarkdown(filepath.Base(opts.ModelPath), tree)
	profile := termenv.Ascii
	if isTerminal(opts.Out) {
		render, err := tui.NewRenderer(terminalWidth(opts.Out))
		if err != nil {
			return fmt.Errorf("failed to create renderer: %w", err)
		}
		if md, err = render(md); err != nil {
			return fmt.Errorf("failed to render summary: %w", err)
		}
		profile = termenv.NewOutput(opts.Out).EnvColorProfile()
	}

	fmt.Fprint(opts.Out, md)
	fmt.Fprintln(opts.Out)
	fmt.Fprint(opts.Out, tui.NewTreeRenderer(profile).Render(tree, nil))
	return nil
}

// GraphOptions configures the graph command.
type GraphOptions struct {
	ModelPath string
	// Text, when set, is classified locally and its path highlighted.
	Text      string
	Tolerance float64
	Out       io.Writer
}

// Graph prints the Mermaid flowchart of a model file.
func Graph(opts GraphOptions) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	tree, err := loadTree(opts.ModelPath)
	if err != nil {
		return err
	}

	var overlay *graph.GraphOverlay
	if opts.Text != "" {
		res, err := evaluator.Evaluate(tree, opts.Text)
		if err != nil {
			return fmt.Errorf("failed to classify: %w", err)
		}
		var alignOpts []align.Option
		if opts.Tolerance > 0 {
			alignOpts = append(alignOpts, align.WithTolerance(opts.Tolerance))
		}
		overlay = &graph.GraphOverlay{Highlights: align.Align(tree, res.Path, alignOpts...)}
		fmt.Fprintf(opts.Out, "%%%% label: %s\n", res.Label)
	}

	fmt.Fprint(opts.Out, graph.GenerateMermaid(tree, overlay))
	return nil
}

func loadTree(path string) (*domain.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	tree, err := compiler.Decode(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tree, nil
}
