package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

// PrintBanner writes the sapling banner followed by the version.
func PrintBanner(w io.Writer, version string) {
	p := termenv.EnvColorProfile()
	// Greens from sprout to leaf
	lines := []struct {
		text  string
		color string
	}{
		{`                      _ _             `, "#bbf7d0"},
		{`   ___  __ _ _ __  | (_)_ __   __ _ `, "#86efac"},
		{`  / __|/ _' | '_ \ | | | '_ \ / _' |`, "#4ade80"},
		{`  \__ \ (_| | |_) || | | | | | (_| |`, "#22c55e"},
		{`  |___/\__,_| .__/ |_|_|_| |_|\__, |`, "#16a34a"},
		{`            |_|              |___/ `, "#15803d"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String("  v"+strings.TrimSpace(version)).Faint())
	fmt.Fprintln(w)
}
