package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/sapling/pkg/adapters/file"
	"github.com/aretw0/sapling/pkg/domain"
	"github.com/aretw0/sapling/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Contract(t *testing.T) {
	ports.RunModelStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_Layout(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "models")
	store := file.New(dir)
	ctx := context.Background()

	sessions, err := store.List(ctx)
	require.NoError(t, err, "a missing directory lists nothing")
	assert.Empty(t, sessions)

	require.NoError(t, store.Save(ctx, "lab", &domain.ModelRecord{SessionID: "lab", Text: "ham\n"}))
	_, err = os.Stat(filepath.Join(dir, "lab.json"))
	require.NoError(t, err)

	// Leftover temp files from an interrupted save are not sessions.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tmp-lab-123.json"), []byte("{"), 0644))
	sessions, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"lab"}, sessions)

	assert.NoError(t, store.Delete(ctx, "never-saved"))
}

func TestFileStore_InvalidSession(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()

	for _, id := range []string{"", "..", "a/b", `a\b`} {
		assert.Error(t, store.Save(ctx, id, &domain.ModelRecord{}), "save %q", id)
		_, err := store.Load(ctx, id)
		assert.Error(t, err, "load %q", id)
	}
}

func TestFileStore_CorruptRecord(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("not json"), 0644))

	_, err := file.New(dir).Load(context.Background(), "bad")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrModelNotFound)
}
