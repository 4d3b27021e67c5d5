package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/sapling/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunModelStoreContract runs a suite of tests to verify that a ModelStore implementation
// adheres to the defined interface contract.
func RunModelStoreContract(t *testing.T, store ModelStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")
	text := "Feature: call\nThreshold: 0.034\nham\nspam\n"

	t.Run("Save and Load", func(t *testing.T) {
		rec := &domain.ModelRecord{
			SessionID: sessionID,
			Source:    "text",
			Text:      text,
			Nodes:     3,
			SavedAt:   time.Now().UTC().Truncate(time.Second),
		}

		err := store.Save(ctx, sessionID, rec)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, text, loaded.Text)
		assert.Equal(t, "text", loaded.Source)
		assert.Equal(t, 3, loaded.Nodes)
		assert.True(t, rec.SavedAt.Equal(loaded.SavedAt))
	})

	t.Run("Save Replaces", func(t *testing.T) {
		next := "Feature: win\nThreshold: 1\nham\nspam\n"
		require.NoError(t, store.Save(ctx, sessionID, &domain.ModelRecord{SessionID: sessionID, Text: next, Nodes: 3}))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, next, loaded.Text)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrModelNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, &domain.ModelRecord{SessionID: sessionID, Text: text})
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrModelNotFound, "Load after Delete should return ErrModelNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, &domain.ModelRecord{SessionID: id1, Text: text})
		_ = store.Save(ctx, id2, &domain.ModelRecord{SessionID: id2, Text: text})

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
