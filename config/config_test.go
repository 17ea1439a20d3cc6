package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, RoleClient, cfg.Controller.Role)
	assert.Equal(t, 5*time.Second, cfg.Auth.Timeout.Duration())
	assert.Equal(t, 100*time.Millisecond, cfg.Auth.PollInterval.Duration())
	assert.Equal(t, 1500*time.Millisecond, cfg.Reconnect.InitialDelay.Duration())
	assert.Equal(t, 2500*time.Millisecond, cfg.Reconnect.RetryInterval.Duration())
	assert.Equal(t, 60*time.Second, cfg.Reconnect.MaxDelay.Duration())
	assert.Equal(t, TransportTCP, cfg.Transport.Kind)
}

func TestFromJSON(t *testing.T) {
	cfg, err := FromJSON([]byte(`{
		"controller": {"role": "server", "endpoint": ":9000", "capabilities": {"version": "1.0"}},
		"auth": {"required": true, "timeout": "3s"},
		"reconnect": {"max_attempts": 3, "initial_delay": 1000000000},
		"transport": {"kind": "WS", "ws_path": "mesh"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, RoleServer, cfg.Controller.Role)
	assert.Equal(t, ":9000", cfg.Controller.Endpoint)
	assert.Equal(t, "1.0", cfg.Controller.Capabilities["version"])
	assert.True(t, cfg.Auth.Required)
	assert.Equal(t, 3*time.Second, cfg.Auth.Timeout.Duration())
	assert.Equal(t, 100*time.Millisecond, cfg.Auth.PollInterval.Duration())
	assert.Equal(t, 3, cfg.Reconnect.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Reconnect.InitialDelay.Duration())
	assert.True(t, cfg.Reconnect.Enabled)
	assert.Equal(t, TransportWebSocket, cfg.Transport.Kind)
	assert.Equal(t, "/mesh", cfg.Transport.WSPath)
}

func TestFromJSON_Invalid(t *testing.T) {
	for name, body := range map[string]string{
		"syntax":    `{`,
		"role":      `{"controller": {"role": "proxy"}}`,
		"transport": `{"transport": {"kind": "udp"}}`,
		"duration":  `{"auth": {"timeout": "soon"}}`,
		"poll":      `{"auth": {"timeout": "50ms", "poll_interval": "1s"}}`,
		"delay":     `{"reconnect": {"initial_delay": "2m"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := FromJSON([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peerctl.json")
	src := Default()
	src.Controller.Endpoint = "10.0.0.1:7400"
	data, err := src.ToJSON()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, *src, *cfg)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestDuration_JSON(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"250ms"`)))
	assert.Equal(t, 250*time.Millisecond, d.Duration())

	require.NoError(t, d.UnmarshalJSON([]byte(`1000`)))
	assert.Equal(t, time.Microsecond, d.Duration())

	out, err := Duration(2500 * time.Millisecond).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2.5s"`, string(out))

	assert.Error(t, d.UnmarshalJSON([]byte(`true`)))
}
