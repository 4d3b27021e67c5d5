package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/sapling"
	"github.com/aretw0/sapling/internal/presentation/tui"
	"github.com/aretw0/sapling/pkg/domain"
	"github.com/muesli/termenv"
)

// DatasetOptions configures the train and evaluate commands.
type DatasetOptions struct {
	DatasetPath string
	LabelCol    string
	// ModelPath, when set, is loaded before evaluating.
	ModelPath string
	JSON      bool
	Out       io.Writer
}

// Train has the classifier train on a labelled CSV file and prints the tree it built.
func Train(ctx context.Context, eng *sapling.Engine, opts DatasetOptions) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	data, err := os.ReadFile(opts.DatasetPath)
	if err != nil {
		return fmt.Errorf("failed to read dataset: %w", err)
	}

	tree, err := eng.Train(ctx, filepath.Base(opts.DatasetPath), data, opts.LabelCol)
	if err != nil {
		return err
	}

	if opts.JSON {
		return writeIndented(opts.Out, tree.Stats())
	}
	st := tree.Stats()
	fmt.Fprintf(opts.Out, "Trained %d nodes (%d splits, %d leaves, depth %d)\n\n", st.Nodes, st.Splits, st.Leaves, st.Depth)
	fmt.Fprint(opts.Out, tui.NewTreeRenderer(outputProfile(opts.Out)).Render(tree, nil))
	return nil
}

// Evaluate scores the classifier's model against a labelled CSV file.
func Evaluate(ctx context.Context, eng *sapling.Engine, opts DatasetOptions) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.ModelPath != "" {
		data, err := os.ReadFile(opts.ModelPath)
		if err != nil {
			return fmt.Errorf("failed to read model: %w", err)
		}
		if _, err := eng.LoadModel(ctx, string(data)); err != nil {
			return fmt.Errorf("%s: %w", opts.ModelPath, err)
		}
	}
	data, err := os.ReadFile(opts.DatasetPath)
	if err != nil {
		return fmt.Errorf("failed to read dataset: %w", err)
	}

	m, err := eng.Evaluate(ctx, filepath.Base(opts.DatasetPath), data, opts.LabelCol)
	if err != nil {
		return err
	}
	if opts.JSON {
		return writeIndented(opts.Out, m)
	}

	md := MetricsMarkdown(filepath.Base(opts.DatasetPath), m)
	if isTerminal(opts.Out) {
		render, err := tui.NewRenderer(terminalWidth(opts.Out))
		if err != nil {
			return fmt.Errorf("failed to create renderer: %w", err)
		}
		if md, err = render(md); err != nil {
			return fmt.Errorf("failed to render metrics: %w", err)
		}
	}
	fmt.Fprint(opts.Out, md)
	return nil
}

// MetricsMarkdown formats evaluation metrics as a Markdown report.
func MetricsMarkdown(name string, m domain.Metrics) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", name)
	fmt.Fprintf(&sb, "Overall accuracy: **%.2f%%**\n\n", m.Overall*100)

	labels := make([]string, 0, len(m.LabelCounts))
	for label := range m.LabelCounts {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	sb.WriteString("## Per label\n\n| Label | Accuracy | Count |\n|---|---|---|\n")
	for _, label := range labels {
		fmt.Fprintf(&sb, "| %s | %.2f%% | %d |\n", label, m.PerLabel[label]*100, m.LabelCounts[label])
	}

	sb.WriteString("\n## Confusion\n\n")
	if len(m.Confusion) == 0 {
		sb.WriteString("No confusion entries.\n")
		return sb.String()
	}
	sb.WriteString("| Actual | Predicted | Count |\n|---|---|---|\n")
	for _, c := range m.Confusion {
		fmt.Fprintf(&sb, "| %s | %s | %d |\n", c.Actual, c.Predicted, c.Count)
	}
	return sb.String()
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func outputProfile(w io.Writer) termenv.Profile {
	if isTerminal(w) {
		return termenv.NewOutput(w).EnvColorProfile()
	}
	return termenv.Ascii
}
