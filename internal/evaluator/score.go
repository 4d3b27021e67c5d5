package evaluator

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aretw0/sapling/pkg/domain"
)

// Score classifies every row of a labelled CSV dataset with tree and compares
// the predictions with the label column. The header must name a "text" column
// and labelCol (domain.DefaultLabelColumn when empty). Rows with an empty
// label are skipped.
func Score(tree *domain.Tree, r io.Reader, labelCol string) (domain.Metrics, error) {
	if tree == nil {
		return domain.Metrics{}, domain.ErrNoModel
	}
	if labelCol == "" {
		labelCol = domain.DefaultLabelColumn
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return domain.Metrics{}, fmt.Errorf("%w: empty dataset", domain.ErrMalformedDataset)
	}
	if err != nil {
		return domain.Metrics{}, fmt.Errorf("%w: %v", domain.ErrMalformedDataset, err)
	}
	textIdx, labelIdx := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) {
		case domain.TextColumn:
			textIdx = i
		case labelCol:
			labelIdx = i
		}
	}
	if textIdx < 0 || labelIdx < 0 {
		return domain.Metrics{}, fmt.Errorf("%w: header needs %q and %q columns", domain.ErrMalformedDataset, domain.TextColumn, labelCol)
	}

	type pair struct{ actual, predicted string }
	confusion := make(map[pair]int)
	counts := make(map[string]int)
	correct := make(map[string]int)
	total, hits := 0, 0

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.Metrics{}, fmt.Errorf("%w: %v", domain.ErrMalformedDataset, err)
		}
		if textIdx >= len(rec) || labelIdx >= len(rec) {
			return domain.Metrics{}, fmt.Errorf("%w: line %d: missing columns", domain.ErrMalformedDataset, line)
		}
		actual := strings.TrimSpace(rec[labelIdx])
		if actual == "" {
			continue
		}

		res, err := Evaluate(tree, rec[textIdx])
		if err != nil {
			return domain.Metrics{}, err
		}
		total++
		counts[actual]++
		confusion[pair{actual, res.Label}]++
		if res.Label == actual {
			hits++
			correct[actual]++
		}
	}

	m := domain.Metrics{
		PerLabel:    make(map[string]float64, len(counts)),
		LabelCounts: counts,
		Confusion:   make([]domain.ConfusionEntry, 0, len(confusion)),
	}
	if total > 0 {
		m.Overall = float64(hits) / float64(total)
	}
	for label, n := range counts {
		m.PerLabel[label] = float64(correct[label]) / float64(n)
	}
	for p, n := range confusion {
		m.Confusion = append(m.Confusion, domain.ConfusionEntry{Actual: p.actual, Predicted: p.predicted, Count: n})
	}
	sort.Slice(m.Confusion, func(i, j int) bool {
		a, b := m.Confusion[i], m.Confusion[j]
		if a.Actual != b.Actual {
			return a.Actual < b.Actual
		}
		return a.Predicted < b.Predicted
	})
	return m, nil
}
