package sapling

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/sapling/internal/compiler"
	"github.com/aretw0/sapling/pkg/align"
	"github.com/aretw0/sapling/pkg/domain"
	"github.com/aretw0/sapling/pkg/ports"
	"github.com/aretw0/sapling/pkg/reveal"
	"github.com/google/uuid"
)

// DefaultModelName is the file name used when pushing a model to the classifier.
const DefaultModelName = "model.txt"

// Model sources reported in ModelEvent.Source and ModelRecord.Source.
const (
	SourceText       = "text"
	SourceStructured = "structured"
	SourceClassifier = "classifier"
	SourceStore      = "store"
)

const lockTTL = 30 * time.Second

// Engine owns the current tree and one reveal machine of each kind.
// All methods are safe for concurrent use.
type Engine struct {
	logger     *slog.Logger
	hooks      domain.LifecycleHooks
	classifier ports.Classifier
	store      ports.ModelStore
	locker     ports.DistributedLocker
	sessionID  string
	alignOpts  []align.Option

	revealOpts         []reveal.Option
	constructionTiming *reveal.Timing
	playbackTiming     *reveal.Timing

	construction *reveal.Construction
	playback     *reveal.Playback
	unsubscribe  []func()

	// playMu orders tree swaps against playback starts, so a trace is only
	// ever played against the tree it was computed on.
	playMu sync.Mutex

	mu   sync.RWMutex
	tree *domain.Tree
	last *domain.Classification
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithClassifier sets the classification service.
func WithClassifier(c ports.Classifier) Option {
	return func(e *Engine) {
		e.classifier = c
	}
}

// WithStore keeps the session's model in s so it can be restored.
func WithStore(s ports.ModelStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithLocker serialises model loads of the same session across replicas.
func WithLocker(l ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithSession sets the session ID (default: a random UUID).
func WithSession(id string) Option {
	return func(e *Engine) {
		e.sessionID = id
	}
}

// WithClock drives both reveal machines from c.
func WithClock(c reveal.Clock) Option {
	return func(e *Engine) {
		e.revealOpts = append(e.revealOpts, reveal.WithClock(c))
	}
}

// WithConstructionTiming overrides the construction pace.
func WithConstructionTiming(t reveal.Timing) Option {
	return func(e *Engine) {
		e.constructionTiming = &t
	}
}

// WithPlaybackTiming overrides the playback pace.
func WithPlaybackTiming(t reveal.Timing) Option {
	return func(e *Engine) {
		e.playbackTiming = &t
	}
}

// WithTolerance overrides the threshold tolerance used to align legacy traces.
func WithTolerance(tol float64) Option {
	return func(e *Engine) {
		e.alignOpts = append(e.alignOpts, align.WithTolerance(tol))
	}
}

// New initializes an Engine with no model loaded.
func New(opts ...Option) *Engine {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if eng.sessionID == "" {
		eng.sessionID = uuid.NewString()
	}
	eng.logger = eng.logger.With("session", eng.sessionID)
	eng.alignOpts = append(eng.alignOpts, align.WithLogger(eng.logger))

	constructionOpts := append([]reveal.Option{reveal.WithLogger(eng.logger)}, eng.revealOpts...)
	if eng.constructionTiming != nil {
		constructionOpts = append(constructionOpts, reveal.WithTiming(*eng.constructionTiming))
	}
	playbackOpts := append([]reveal.Option{reveal.WithLogger(eng.logger)}, eng.revealOpts...)
	if eng.playbackTiming != nil {
		playbackOpts = append(playbackOpts, reveal.WithTiming(*eng.playbackTiming))
	}
	eng.construction = reveal.NewConstruction(constructionOpts...)
	eng.playback = reveal.NewPlayback(playbackOpts...)

	if eng.hooks.OnReveal != nil {
		emit := func(ev domain.RevealEvent) {
			eng.hooks.OnReveal(context.Background(), &ev)
		}
		eng.unsubscribe = append(eng.unsubscribe,
			eng.construction.Subscribe(emit),
			eng.playback.Subscribe(emit),
		)
	}

	return eng
}

// SessionID returns the session the engine stores its model under.
func (e *Engine) SessionID() string {
	return e.sessionID
}

// CurrentTree returns the loaded tree, or nil when no model is loaded.
func (e *Engine) CurrentTree() *domain.Tree {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tree
}

// LastClassification returns the most recent classification of the current model.
func (e *Engine) LastClassification() (domain.Classification, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.last == nil {
		return domain.Classification{}, false
	}
	return *e.last, true
}

// Construction exposes the construction reveal.
func (e *Engine) Construction() *reveal.Construction {
	return e.construction
}

// Playback exposes the path playback.
func (e *Engine) Playback() *reveal.Playback {
	return e.playback
}

// Highlights aligns the visible part of the current playback against the tree.
func (e *Engine) Highlights() *align.Alignment {
	return e.playback.Highlights()
}

// CancelConstruction stops the construction reveal.
// It returns domain.ErrNoActiveReveal when nothing is running.
func (e *Engine) CancelConstruction() error {
	return e.construction.Cancel()
}

// CancelPlayback stops the path playback.
// It returns domain.ErrNoActiveReveal when nothing is running.
func (e *Engine) CancelPlayback() error {
	return e.playback.Cancel()
}

// LoadModel decodes a text model and makes it current.
// When the classifier accepts uploads the model is pushed to it first.
// On failure the current tree is left untouched and no reveal starts.
func (e *Engine) LoadModel(ctx context.Context, text string) (*domain.Tree, error) {
	tree, err := compiler.Decode(text, compiler.WithLogger(e.logger))
	if err != nil {
		e.rejected(ctx, SourceText, err)
		return nil, err
	}

	if up, ok := e.classifier.(ports.ModelUploader); ok {
		if err := up.UploadModel(ctx, DefaultModelName, text); err != nil {
			err = fmt.Errorf("failed to upload model: %w", err)
			e.rejected(ctx, SourceText, err)
			return nil, err
		}
	}

	if err := e.install(ctx, tree, SourceText, true); err != nil {
		return nil, err
	}
	return tree, nil
}

// LoadStructured decodes a structured tree (maps, slices and scalars as
// produced by encoding/json) and makes it current.
func (e *Engine) LoadStructured(ctx context.Context, v any) (*domain.Tree, error) {
	tree, err := compiler.DecodeStructured(v)
	if err == nil && tree == nil {
		err = fmt.Errorf("%w: empty structured tree", domain.ErrMalformedModel)
	}
	if err != nil {
		e.rejected(ctx, SourceStructured, err)
		return nil, err
	}

	if err := e.install(ctx, tree, SourceStructured, true); err != nil {
		return nil, err
	}
	return tree, nil
}

// Sync pulls the classifier's current tree, e.g. after it was trained.
func (e *Engine) Sync(ctx context.Context) (*domain.Tree, error) {
	if e.classifier == nil {
		return nil, domain.ErrClassifierUnavailable
	}
	tree, err := e.classifier.Tree(ctx)
	if err != nil {
		err = fmt.Errorf("failed to fetch tree: %w", err)
		e.rejected(ctx, SourceClassifier, err)
		return nil, err
	}
	if tree == nil {
		return nil, domain.ErrNoModel
	}

	if err := e.install(ctx, tree, SourceClassifier, true); err != nil {
		return nil, err
	}
	return tree, nil
}

// Train asks the classifier to train on a labelled CSV dataset, then adopts
// the trained tree like Sync. labelCol defaults to domain.DefaultLabelColumn.
func (e *Engine) Train(ctx context.Context, name string, data []byte, labelCol string) (*domain.Tree, error) {
	trainer, ok := e.classifier.(ports.Trainer)
	if !ok {
		return nil, fmt.Errorf("%w: classifier cannot train", domain.ErrClassifierUnavailable)
	}
	if labelCol == "" {
		labelCol = domain.DefaultLabelColumn
	}

	start := time.Now()
	if err := trainer.Train(ctx, name, data, labelCol); err != nil {
		return nil, fmt.Errorf("training failed: %w", err)
	}
	e.logger.Info("model trained", "dataset", name, "label_col", labelCol, "duration", time.Since(start))
	return e.Sync(ctx)
}

// Evaluate scores the classifier's model against a labelled CSV dataset.
func (e *Engine) Evaluate(ctx context.Context, name string, data []byte, labelCol string) (domain.Metrics, error) {
	ev, ok := e.classifier.(ports.Evaluator)
	if !ok {
		return domain.Metrics{}, fmt.Errorf("%w: classifier cannot evaluate", domain.ErrClassifierUnavailable)
	}
	if labelCol == "" {
		labelCol = domain.DefaultLabelColumn
	}

	m, err := ev.Evaluate(ctx, name, data, labelCol)
	if err != nil {
		return domain.Metrics{}, fmt.Errorf("evaluation failed: %w", err)
	}
	e.logger.Info("model evaluated", "dataset", name, "overall", m.Overall, "labels", len(m.LabelCounts))
	return m, nil
}

// Restore reloads the session's stored model.
// It returns domain.ErrModelNotFound when there is no store or no stored model.
func (e *Engine) Restore(ctx context.Context) (*domain.Tree, error) {
	if e.store == nil {
		return nil, fmt.Errorf("no model store configured: %w", domain.ErrModelNotFound)
	}
	rec, err := e.store.Load(ctx, e.sessionID)
	if err != nil {
		return nil, err
	}

	tree, err := compiler.Decode(rec.Text, compiler.WithLogger(e.logger))
	if err != nil {
		err = fmt.Errorf("stored model is corrupt: %w", err)
		e.rejected(ctx, SourceStore, err)
		return nil, err
	}

	if up, ok := e.classifier.(ports.ModelUploader); ok {
		if err := up.UploadModel(ctx, DefaultModelName, rec.Text); err != nil {
			return nil, fmt.Errorf("failed to upload restored model: %w", err)
		}
	}

	if err := e.install(ctx, tree, SourceStore, false); err != nil {
		return nil, err
	}
	return tree, nil
}

// Classify sends text to the classifier and starts the path playback.
func (e *Engine) Classify(ctx context.Context, text string) (domain.Classification, error) {
	if e.classifier == nil {
		return domain.Classification{}, domain.ErrClassifierUnavailable
	}
	tree := e.CurrentTree()
	if tree == nil {
		return domain.Classification{}, domain.ErrNoModel
	}

	e.playMu.Lock()
	e.mu.Lock()
	e.last = nil
	e.mu.Unlock()
	e.playback.Reset()
	e.playMu.Unlock()

	start := time.Now()
	res, err := e.classifier.Classify(ctx, text)
	if err != nil {
		return domain.Classification{}, fmt.Errorf("classification failed: %w", err)
	}
	alignment := align.Align(tree, res.Path, e.alignOpts...)

	e.playMu.Lock()
	e.mu.Lock()
	current := e.tree == tree
	if current {
		e.last = &res
	}
	e.mu.Unlock()
	if current {
		e.playback.Start(tree, res)
	}
	e.playMu.Unlock()

	if !current {
		// The model was replaced while the classifier was busy; its trace no longer applies.
		e.logger.Debug("stale classification not played back", "label", res.Label)
	}

	e.logger.Info("input classified",
		"label", res.Label,
		"steps", len(res.Path),
		"mode", alignment.Mode(),
		"ambiguities", alignment.Ambiguities())

	if e.hooks.OnClassify != nil {
		e.hooks.OnClassify(ctx, &domain.ClassifyEvent{
			EventBase:   domain.EventBase{Timestamp: time.Now(), Type: domain.EventClassified},
			Label:       res.Label,
			Steps:       len(res.Path),
			Ambiguities: alignment.Ambiguities(),
			Duration:    time.Since(start),
		})
	}
	return res, nil
}

// Close cancels both reveals and detaches the hooks.
func (e *Engine) Close() error {
	for _, stop := range e.unsubscribe {
		stop()
	}
	if err := e.construction.Cancel(); err != nil && !errors.Is(err, domain.ErrNoActiveReveal) {
		return err
	}
	if err := e.playback.Cancel(); err != nil && !errors.Is(err, domain.ErrNoActiveReveal) {
		return err
	}
	return nil
}

// install makes tree current: it stores it (when save is set), discards the
// previous trace, and restarts the construction reveal.
func (e *Engine) install(ctx context.Context, tree *domain.Tree, source string, save bool) error {
	if e.locker != nil {
		unlock, err := e.locker.Lock(ctx, e.sessionID, lockTTL)
		if err != nil {
			return fmt.Errorf("failed to lock session: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				e.logger.Warn("failed to release session lock", "err", err)
			}
		}()
	}

	if save && e.store != nil {
		text, err := compiler.Encode(tree)
		if err != nil {
			return fmt.Errorf("failed to encode model: %w", err)
		}
		rec := &domain.ModelRecord{
			SessionID: e.sessionID,
			Source:    source,
			Text:      text,
			Nodes:     tree.Count(),
			SavedAt:   time.Now().UTC(),
		}
		if err := e.store.Save(ctx, e.sessionID, rec); err != nil {
			return fmt.Errorf("failed to store model: %w", err)
		}
	}

	e.playMu.Lock()
	e.mu.Lock()
	e.tree = tree
	e.last = nil
	e.mu.Unlock()
	if e.playback.Highlighting() {
		e.logger.Debug("playback cancelled by new model")
	}
	e.playback.Reset()
	e.playMu.Unlock()

	e.construction.Start(tree)

	e.logger.Info("model loaded", "source", source, "nodes", tree.Count())
	if e.hooks.OnModelLoad != nil {
		e.hooks.OnModelLoad(ctx, &domain.ModelEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventModelLoaded},
			Source:    source,
			Nodes:     tree.Count(),
		})
	}
	return nil
}

func (e *Engine) rejected(ctx context.Context, source string, err error) {
	e.logger.Warn("failed to load model", "source", source, "err", err)
	if e.hooks.OnModelLoad != nil {
		e.hooks.OnModelLoad(ctx, &domain.ModelEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventModelRejected},
			Source:    source,
			Err:       err,
		})
	}
}
