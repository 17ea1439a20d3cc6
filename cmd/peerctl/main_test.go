package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-peerctl/config"
	"github.com/dep2p/go-peerctl/internal/feature/auth"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--quiet"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestKeygen_AddsAndListsKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")

	out, err := execute(t, "keygen", "--keys", path, "--label", "ops")
	require.NoError(t, err)
	require.Contains(t, out, "key: ")
	key := strings.TrimSpace(out[strings.Index(out, "key: ")+len("key: "):])

	_, err = execute(t, "keygen", "--keys", path, "--key", "fixed", "--label", "ci")
	require.NoError(t, err)

	ks, err := auth.OpenFileKeyStore(path)
	require.NoError(t, err)
	assert.True(t, ks.IsValid(key))
	assert.True(t, ks.IsValid("fixed"))
	assert.Len(t, ks.Records(), 2)

	out, err = execute(t, "keygen", "--keys", path, "--list")
	require.NoError(t, err)
	assert.Contains(t, out, "ops")
	assert.Contains(t, out, "ci")
	assert.NotContains(t, out, "fixed")
}

func TestKeygen_RequiresKeysFlag(t *testing.T) {
	_, err := execute(t, "keygen")
	assert.Error(t, err)
}

func TestSetupLogging_RejectsUnknownFormat(t *testing.T) {
	assert.Error(t, setupLogging(&globalFlags{logFormat: "xml"}))
	assert.NoError(t, setupLogging(&globalFlags{quiet: true}))
}

func TestBaseOptions_LoadsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peerctl.json")
	cfg := config.Default()
	cfg.Controller.Endpoint = "127.0.0.1:9999"
	data, err := cfg.ToJSON()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	opts, err := baseOptions(&globalFlags{configFile: path})
	require.NoError(t, err)
	assert.Len(t, opts, 1)

	_, err = baseOptions(&globalFlags{configFile: filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "peerctl ")
}

func TestClient_RejectsBadInterval(t *testing.T) {
	_, err := execute(t, "client", "--interval", "0s")
	assert.Error(t, err)
}
