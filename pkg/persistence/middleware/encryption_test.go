package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"
	"time"

	"github.com/aretw0/sapling/pkg/adapters/memory"
	"github.com/aretw0/sapling/pkg/domain"
	"github.com/aretw0/sapling/pkg/persistence/middleware"
	"github.com/aretw0/sapling/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modelText = "Feature: call\nThreshold: 0.034\nham\nspam\n"

func generateKey(t *testing.T) []byte {
	k := make([]byte, middleware.KeySize)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ports.RunModelStoreContract(t, mw(memory.NewStore()))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	secure := middleware.Chain(underlying, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)}))

	ctx := context.Background()
	rec := &domain.ModelRecord{SessionID: "s1", Source: "text", Text: modelText, Nodes: 3, SavedAt: time.Now().UTC()}
	require.NoError(t, secure.Save(ctx, "s1", rec))
	assert.Equal(t, modelText, rec.Text, "the caller's record is not modified")

	stored, err := underlying.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, stored.Text, "the model text is hidden at rest")
	assert.NotEmpty(t, stored.Sealed)
	assert.Equal(t, 3, stored.Nodes, "metadata stays readable")

	loaded, err := secure.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, modelText, loaded.Text)
	assert.Empty(t, loaded.Sealed)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)
	ctx := context.Background()

	secureOld := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlying)
	require.NoError(t, secureOld.Save(ctx, "rot", &domain.ModelRecord{Text: "old"}))

	secureNew := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlying)

	loaded, err := secureNew.Load(ctx, "rot")
	require.NoError(t, err, "fallback key opens older records")
	assert.Equal(t, "old", loaded.Text)

	require.NoError(t, secureNew.Save(ctx, "rot", &domain.ModelRecord{Text: "new"}))
	_, err = secureOld.Load(ctx, "rot")
	assert.Error(t, err, "records sealed with the new key need it")
}

func TestEncryptionMiddleware_FailSecure(t *testing.T) {
	underlying := memory.NewStore()
	key := generateKey(t)
	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})(underlying)
	ctx := context.Background()

	require.NoError(t, underlying.Save(ctx, "plain", &domain.ModelRecord{Text: modelText}))
	_, err := secure.Load(ctx, "plain")
	assert.ErrorContains(t, err, "missing encrypted data envelope")

	// A sealed record moved under another session ID does not open.
	require.NoError(t, secure.Save(ctx, "a", &domain.ModelRecord{Text: modelText}))
	moved, err := underlying.Load(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, underlying.Save(ctx, "b", moved))
	_, err = secure.Load(ctx, "b")
	assert.Error(t, err)

	_, err = secure.Load(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrModelNotFound)
}

func TestEncryptionConfig_Validate(t *testing.T) {
	assert.Error(t, middleware.EncryptionConfig{ActiveKey: []byte("short-key")}.Validate())
	assert.Error(t, middleware.EncryptionConfig{ActiveKey: generateKey(t), FallbackKeys: [][]byte{{1}}}.Validate())
	assert.NoError(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)}.Validate())

	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	})
}
