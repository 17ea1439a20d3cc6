package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-peerctl/pkg/interfaces"
)

func TestFingerprint(t *testing.T) {
	a := Fingerprint("alpha")
	assert.Len(t, a, 32)
	assert.Equal(t, a, Fingerprint("alpha"))
	assert.NotEqual(t, a, Fingerprint("beta"))
}

func TestGenerateKey(t *testing.T) {
	k1, err := GenerateKey()
	require.NoError(t, err)
	k2, err := GenerateKey()
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)

	raw, err := base58.Decode(k1)
	require.NoError(t, err)
	assert.Len(t, raw, keyBytes)
}

func TestMemoryKeyStore(t *testing.T) {
	s := NewMemoryKeyStore("one")

	assert.True(t, s.IsValid("one"))
	assert.False(t, s.IsValid("two"))
	assert.False(t, s.IsValid(""))

	rec, ok := s.Get("one")
	require.True(t, ok)
	assert.Equal(t, "one", rec.Key)
	assert.NotEmpty(t, rec.ID)

	again := s.Add("one", "dup")
	assert.Equal(t, rec.ID, again.ID)
	assert.Len(t, s.Records(), 1)

	gen, err := s.New()
	require.NoError(t, err)
	assert.True(t, s.IsValid(gen.Key))
	assert.Len(t, s.Records(), 2)

	require.NoError(t, s.Remove(rec.ID))
	assert.False(t, s.IsValid("one"))
	assert.ErrorIs(t, s.Remove(rec.ID), ErrKeyNotFound)
	assert.NoError(t, s.Reload())
}

func TestFileKeyStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "keys.json")

	s, err := OpenFileKeyStore(path)
	require.NoError(t, err)
	assert.Empty(t, s.Records())
	assert.Equal(t, path, s.Path())

	rec, err := s.New()
	require.NoError(t, err)
	_, err = s.AddKey("manual", "ops")
	require.NoError(t, err)

	reopened, err := OpenFileKeyStore(path)
	require.NoError(t, err)
	assert.True(t, reopened.IsValid(rec.Key))
	got, ok := reopened.Get("manual")
	require.True(t, ok)
	assert.Equal(t, "ops", got.Label)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileKeyStoreReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")
	s, err := OpenFileKeyStore(path)
	require.NoError(t, err)
	assert.False(t, s.IsValid("external"))

	data, err := json.Marshal(keyFile{Keys: []interfaces.KeyRecord{{ID: "x", Key: "external"}}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	require.NoError(t, s.Reload())
	assert.True(t, s.IsValid("external"))

	require.NoError(t, os.Remove(path))
	require.NoError(t, s.Reload())
	assert.False(t, s.IsValid("external"))
}

func TestFileKeyStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := OpenFileKeyStore(path)
	assert.Error(t, err)
}
