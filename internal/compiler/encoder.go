package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/sapling/pkg/domain"
)

// Encode writes tree in the canonical pre-order text format understood by Parse.
// Thresholds use the shortest representation that parses back to the same float64.
func Encode(tree *domain.Tree) (string, error) {
	if tree == nil {
		return "", domain.ErrNoModel
	}

	var sb strings.Builder
	for _, d := range tree.Descriptors() {
		if d.Kind == domain.KindSplit {
			if err := checkLine(d.Feature); err != nil {
				return "", fmt.Errorf("feature at rank %d: %w", d.Rank, err)
			}
			sb.WriteString(PrefixFeature + " " + d.Feature + "\n")
			sb.WriteString(PrefixThreshold + " " + strconv.FormatFloat(d.Threshold, 'g', -1, 64) + "\n")
			continue
		}

		if err := checkLine(d.Label); err != nil {
			return "", fmt.Errorf("label at rank %d: %w", d.Rank, err)
		}
		if strings.HasPrefix(d.Label, PrefixFeature) {
			return "", fmt.Errorf("label at rank %d: cannot start with %q", d.Rank, PrefixFeature)
		}
		sb.WriteString(d.Label + "\n")
	}
	return sb.String(), nil
}

// checkLine rejects values that would not survive the line-oriented format.
func checkLine(s string) error {
	if strings.ContainsAny(s, "\r\n") {
		return fmt.Errorf("%q spans multiple lines", s)
	}
	if strings.TrimSpace(s) != s {
		return fmt.Errorf("%q has surrounding whitespace", s)
	}
	return nil
}
