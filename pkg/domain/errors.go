package domain

import "errors"

// ErrMalformedModel is returned when a model description cannot be decoded into a valid tree.
var ErrMalformedModel = errors.New("malformed model")

// ErrNoActiveReveal is returned when cancelling a reveal that is not running.
// Callers treat it as a no-op.
var ErrNoActiveReveal = errors.New("no active reveal")

// ErrNoModel is returned when an operation needs a loaded tree and there is none.
var ErrNoModel = errors.New("no model loaded")

// ErrModelNotFound is returned when a session has no stored model.
var ErrModelNotFound = errors.New("model not found")

// ErrClassifierUnavailable is returned when no classifier collaborator is configured
// or the collaborator reports it is not ready.
var ErrClassifierUnavailable = errors.New("classifier unavailable")

// ErrMalformedDataset is returned when a labelled CSV dataset cannot be read,
// or lacks the text or label column.
var ErrMalformedDataset = errors.New("malformed dataset")
