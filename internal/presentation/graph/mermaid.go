package graph

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/sapling/pkg/align"
	"github.com/aretw0/sapling/pkg/domain"
)

// GraphOverlay contains dynamic reveal state to visualize on the graph.
type GraphOverlay struct {
	// Partial limits the drawing to the first Revealed nodes in pre-order,
	// as a construction reveal in progress shows them.
	Partial  bool
	Revealed int

	// Highlights marks the nodes crossed by a decision path.
	Highlights *align.Alignment
}

func (o *GraphOverlay) shows(rank int) bool {
	return o == nil || !o.Partial || rank <= o.Revealed
}

func (o *GraphOverlay) onPath(rank int) bool {
	return o != nil && o.Highlights.Mark(rank).OnPath
}

// GenerateMermaid produces a Mermaid flowchart of the tree.
// Splits are drawn as {Diamonds} and leaves as ([Stadiums]); the left edge of a
// split is the "yes" branch (value <= threshold).
// Nodes are named n<rank> after their pre-order rank.
func GenerateMermaid(tree *domain.Tree, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, d := range tree.Descriptors() {
		if !overlay.shows(d.Rank) {
			continue
		}

		if d.Kind == domain.KindSplit {
			fmt.Fprintf(&sb, "    n%d{\"%s <= %s\"}\n", d.Rank, escape(d.Feature), formatThreshold(d.Threshold))
		} else {
			fmt.Fprintf(&sb, "    n%d([\"%s\"])\n", d.Rank, escape(d.Label))
		}

		if d.Parent == 0 {
			continue
		}
		label := "yes"
		if d.Side == domain.Right {
			label = "no"
		}
		if overlay.onPath(d.Parent) && overlay.onPath(d.Rank) {
			fmt.Fprintf(&sb, "    n%d == \"%s\" ==> n%d\n", d.Parent, label, d.Rank)
		} else {
			fmt.Fprintf(&sb, "    n%d -- \"%s\" --> n%d\n", d.Parent, label, d.Rank)
		}
	}

	if overlay == nil || overlay.Highlights == nil {
		return sb.String()
	}

	onPath := overlay.Highlights.OnPath()
	var shown []int
	for _, rank := range onPath {
		if overlay.shows(rank) {
			shown = append(shown, rank)
		}
	}
	if len(shown) == 0 {
		return sb.String()
	}

	sb.WriteString("\n    %% Overlay Styles\n")
	// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
	sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
	sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

	// The path is a chain from the root, so its deepest node comes last in pre-order.
	for _, rank := range shown[:len(shown)-1] {
		fmt.Fprintf(&sb, "    class n%d visited;\n", rank)
	}
	fmt.Fprintf(&sb, "    class n%d current;\n", shown[len(shown)-1])

	return sb.String()
}

func formatThreshold(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// escape keeps labels inside Mermaid's quoted strings.
func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
