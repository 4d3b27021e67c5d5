package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/sapling/pkg/align"
	"github.com/aretw0/sapling/pkg/domain"
	"github.com/muesli/termenv"
)

// Overlay selects what a tree rendering shows.
type Overlay struct {
	// Partial limits the rendering to the first Revealed nodes in pre-order.
	Partial  bool
	Revealed int

	// Highlights marks the nodes crossed by a decision path.
	Highlights *align.Alignment
}

// TreeRenderer draws a tree as an indented outline.
type TreeRenderer struct {
	profile termenv.Profile
}

// NewTreeRenderer creates a renderer for the given color profile.
// termenv.Ascii produces plain text.
func NewTreeRenderer(p termenv.Profile) *TreeRenderer {
	return &TreeRenderer{profile: p}
}

// Render returns the outline of tree, one node per line.
func (r *TreeRenderer) Render(tree *domain.Tree, o *Overlay) string {
	if tree == nil {
		return r.profile.String("(no model loaded)").Faint().String() + "\n"
	}
	if o == nil {
		o = &Overlay{}
	}

	current := 0
	if ranks := o.Highlights.OnPath(); len(ranks) > 0 {
		current = ranks[len(ranks)-1]
	}

	var sb strings.Builder
	// guides[i] reports whether the ancestor at depth i still has a sibling below it.
	guides := make([]bool, 0, 8)
	hidden := 0

	for _, d := range tree.Descriptors() {
		if o.Partial && d.Rank > o.Revealed {
			hidden++
			continue
		}

		for len(guides) <= d.Depth {
			guides = append(guides, false)
		}
		guides[d.Depth] = d.Side == domain.Left

		var prefix strings.Builder
		for i := 1; i < d.Depth; i++ {
			if guides[i] {
				prefix.WriteString("│   ")
			} else {
				prefix.WriteString("    ")
			}
		}
		switch {
		case d.Depth == 0:
		case d.Side == domain.Left:
			prefix.WriteString("├── ")
		default:
			prefix.WriteString("└── ")
		}

		sb.WriteString(r.profile.String(prefix.String()).Faint().String())
		sb.WriteString(r.node(d, o.Highlights.Mark(d.Rank).OnPath, d.Rank == current))
		sb.WriteByte('\n')
	}

	if hidden > 0 {
		sb.WriteString(r.profile.String(fmt.Sprintf("… %d more", hidden)).Faint().String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (r *TreeRenderer) node(d domain.Descriptor, onPath, current bool) string {
	var text string
	if d.Kind == domain.KindSplit {
		text = fmt.Sprintf("%s <= %s", d.Feature, strconv.FormatFloat(d.Threshold, 'g', -1, 64))
	} else {
		text = "→ " + d.Label
	}
	if d.Side != "" {
		branch := "yes"
		if d.Side == domain.Right {
			branch = "no"
		}
		text = fmt.Sprintf("[%s] %s", branch, text)
	}

	style := r.profile.String(text)
	switch {
	case current:
		style = style.Bold().Foreground(r.profile.Color("#facc15"))
	case onPath:
		style = style.Bold().Foreground(r.profile.Color("#4ade80"))
	case d.Kind == domain.KindLeaf:
		style = style.Foreground(r.profile.Color("#93c5fd"))
	}
	return style.String()
}
