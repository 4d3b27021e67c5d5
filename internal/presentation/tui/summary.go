package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/sapling/pkg/domain"
)

// SummaryMarkdown describes a tree as markdown for the inspect command.
func SummaryMarkdown(name string, tree *domain.Tree) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", name)

	if tree == nil {
		sb.WriteString("_No model loaded._\n")
		return sb.String()
	}

	s := tree.Stats()
	sb.WriteString("| Nodes | Splits | Leaves | Depth | Features |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	fmt.Fprintf(&sb, "| %d | %d | %d | %d | %d |\n\n", s.Nodes, s.Splits, s.Leaves, s.Depth, s.Features)

	sb.WriteString("## Build order\n\n")
	for _, d := range tree.Descriptors() {
		fmt.Fprintf(&sb, "%d. %s\n", d.Rank, d.Message())
	}

	labels := make(map[string]int)
	var order []string
	tree.Walk(func(d domain.Descriptor) bool {
		if d.Kind == domain.KindLeaf {
			if _, seen := labels[d.Label]; !seen {
				order = append(order, d.Label)
			}
			labels[d.Label]++
		}
		return true
	})

	sb.WriteString("\n## Labels\n\n")
	for _, l := range order {
		fmt.Fprintf(&sb, "- **%s**: %d leaves\n", l, labels[l])
	}
	return sb.String()
}
