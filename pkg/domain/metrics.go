package domain

// DefaultLabelColumn names the CSV column holding the expected label.
const DefaultLabelColumn = "label"

// TextColumn names the CSV column holding the message to classify.
const TextColumn = "text"

// Metrics summarizes how a model scores on a labelled dataset.
type Metrics struct {
	// Overall is the share of rows whose prediction matched the label.
	Overall float64 `json:"overall"`
	// PerLabel is the accuracy over the rows of each actual label.
	PerLabel    map[string]float64 `json:"perLabel"`
	LabelCounts map[string]int     `json:"labelCounts"`
	// Confusion lists each (actual, predicted) pair seen, sorted by actual then predicted.
	Confusion []ConfusionEntry `json:"confusion"`
}

// ConfusionEntry counts the rows of one actual label predicted as another.
type ConfusionEntry struct {
	Actual    string `json:"actual"`
	Predicted string `json:"predicted"`
	Count     int    `json:"count"`
}
