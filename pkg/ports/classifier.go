package ports

import (
	"context"

	"github.com/aretw0/sapling/pkg/domain"
)

// Classifier is the external classification service.
// The engine only consumes it; it never trains or computes splits itself.
type Classifier interface {
	// Classify returns the predicted label and the decision path for text.
	Classify(ctx context.Context, text string) (domain.Classification, error)

	// Tree returns the tree currently used by the service, or nil when it has none.
	Tree(ctx context.Context) (*domain.Tree, error)

	// Ready reports whether the service has a model and can classify.
	Ready(ctx context.Context) (bool, error)
}

// ModelUploader is implemented by classifiers that accept model files.
type ModelUploader interface {
	UploadModel(ctx context.Context, name string, text string) error
}

// Trainer is implemented by classifiers that build a model from a labelled
// CSV dataset. The trained tree is read back through Classifier.Tree.
type Trainer interface {
	Train(ctx context.Context, name string, data []byte, labelCol string) error
}

// Evaluator is implemented by classifiers that score the current model
// against a labelled CSV dataset.
type Evaluator interface {
	Evaluate(ctx context.Context, name string, data []byte, labelCol string) (domain.Metrics, error)
}
