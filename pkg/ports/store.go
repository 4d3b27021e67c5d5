package ports

import (
	"context"

	"github.com/aretw0/sapling/pkg/domain"
)

// ModelStore keeps the model loaded in a session so the session can be
// restored after a restart of the host process.
type ModelStore interface {
	// Save stores the record for a given session ID, replacing any previous one.
	Save(ctx context.Context, sessionID string, rec *domain.ModelRecord) error

	// Load retrieves the record for a given session ID.
	// Returns domain.ErrModelNotFound if the session has no model.
	Load(ctx context.Context, sessionID string) (*domain.ModelRecord, error)

	// Delete removes the record for a given session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of sessions with a stored model.
	List(ctx context.Context) ([]string, error)
}
