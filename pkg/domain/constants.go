package domain

// Field keys of the structured (JSON) tree representation.
const (
	KeyFeature   = "feature"
	KeyThreshold = "threshold"
	KeyLeft      = "left"
	KeyRight     = "right"
	KeyLabel     = "label"
	KeySamples   = "samples"
	KeyIsLeaf    = "isLeaf"
)
