package configs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()

	require.NoError(t, Validate(&cfg))
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, DefaultEdgeForwardTimeout, cfg.Edge.ForwardTimeout)
	assert.Equal(t, DefaultCacheTTL, cfg.Cache.TTL)
	assert.Equal(t, "memory", cfg.KV.Type)
	assert.Equal(t, MQTypeMemory, cfg.MQ.Type)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Edge.OriginURL = ""
	assert.Error(t, Validate(&cfg))

	cfg = Defaults()
	cfg.Stream.ChunkSize = 10
	assert.Error(t, Validate(&cfg))

	cfg = Defaults()
	cfg.KV.Type = "etcd"
	assert.Error(t, Validate(&cfg))
}

func TestInitConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("server:\n  port: 9100\n  reload_config: false\nedge:\n  origin_url: http://origin.internal:8080\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	t.Setenv("FASTLINK_EDGE_FORWARD_TIMEOUT", "7")

	require.NoError(t, InitConfig(dir))

	cfg := GetConfig()
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "http://origin.internal:8080", cfg.Edge.OriginURL)
	assert.Equal(t, 7, cfg.Edge.ForwardTimeout)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), GetViper().ConfigFileUsed())
}

func TestInitConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("FASTLINK_SERVER_RELOAD_CONFIG", "false")

	require.NoError(t, InitConfig(t.TempDir()))
	assert.Equal(t, DefaultPort, GetConfig().Server.Port)
}

func TestRedacted(t *testing.T) {
	cfg := Defaults()
	cfg.Auth.AdminToken = "token"
	cfg.S3.SecretAccessKey = "secret"

	r := cfg.Redacted()
	assert.Equal(t, "******", r.Auth.AdminToken)
	assert.Equal(t, "******", r.S3.SecretAccessKey)
	assert.Equal(t, "token", cfg.Auth.AdminToken)
}
