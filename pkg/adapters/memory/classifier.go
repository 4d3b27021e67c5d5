package memory

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/sapling/internal/compiler"
	"github.com/aretw0/sapling/internal/evaluator"
	"github.com/aretw0/sapling/pkg/domain"
)

// Classifier implements ports.Classifier, ports.ModelUploader and
// ports.Evaluator in process. It evaluates the uploaded tree locally instead
// of calling a remote service. It cannot train.
type Classifier struct {
	mu     sync.RWMutex
	tree   *domain.Tree
	name   string
	legacy bool
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithTree preloads a tree.
func WithTree(tree *domain.Tree) ClassifierOption {
	return func(c *Classifier) {
		c.tree = tree
	}
}

// WithLegacyTraces makes Classify return traces without node identities.
func WithLegacyTraces() ClassifierOption {
	return func(c *Classifier) {
		c.legacy = true
	}
}

// NewClassifier creates an in-process classifier.
func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UploadModel decodes text and makes it the active tree.
func (c *Classifier) UploadModel(ctx context.Context, name string, text string) error {
	tree, err := compiler.Decode(text)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", name, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tree = tree
	c.name = name
	return nil
}

// Tree returns the active tree, nil when none was uploaded.
func (c *Classifier) Tree(ctx context.Context) (*domain.Tree, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tree, nil
}

// Ready reports whether a tree is loaded.
func (c *Classifier) Ready(ctx context.Context) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tree != nil, nil
}

// Classify walks the active tree.
func (c *Classifier) Classify(ctx context.Context, text string) (domain.Classification, error) {
	if err := ctx.Err(); err != nil {
		return domain.Classification{}, err
	}
	c.mu.RLock()
	tree, legacy := c.tree, c.legacy
	c.mu.RUnlock()

	var opts []evaluator.Option
	if legacy {
		opts = append(opts, evaluator.WithLegacyTrace())
	}
	return evaluator.Evaluate(tree, text, opts...)
}

// Evaluate scores the active tree against a labelled CSV dataset.
func (c *Classifier) Evaluate(ctx context.Context, name string, data []byte, labelCol string) (domain.Metrics, error) {
	if err := ctx.Err(); err != nil {
		return domain.Metrics{}, err
	}
	c.mu.RLock()
	tree := c.tree
	c.mu.RUnlock()

	m, err := evaluator.Score(tree, bytes.NewReader(data), labelCol)
	if err != nil {
		return domain.Metrics{}, fmt.Errorf("failed to evaluate %s: %w", name, err)
	}
	return m, nil
}
