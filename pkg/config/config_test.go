package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name string `mapstructure:"name"`
	HTTP struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"http"`
	Vault struct {
		RPCURL  string `mapstructure:"rpc_url"`
		ChainID int64  `mapstructure:"chain_id"`
	} `mapstructure:"vault"`
}

func TestLoadAndWatch_FileEnvAndDefaults(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("name: savings\nhttp:\n  addr: \":9000\"\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test-service.yaml"), yaml, 0o644))

	t.Setenv("LEGACY_RPC_URL", "http://rpc.local")
	t.Setenv("TEST_SERVICE_VAULT_CHAIN_ID", "44787")

	var cfg testConfig
	_, err := LoadAndWatch("test-service", &cfg,
		WithPaths(dir),
		WithDefaults(map[string]any{"vault.chain_id": 1, "vault.rpc_url": ""}),
		WithEnvAliases(map[string][]string{"vault.rpc_url": {"LEGACY_RPC_URL"}}),
	)
	require.NoError(t, err)

	assert.Equal(t, "savings", cfg.Name)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, "http://rpc.local", cfg.Vault.RPCURL)
	assert.Equal(t, int64(44787), cfg.Vault.ChainID)
}

func TestLoadAndWatch_MissingFileUsesDefaults(t *testing.T) {
	var cfg testConfig
	_, err := LoadAndWatch("absent-service", &cfg,
		WithPaths(t.TempDir()),
		WithDefaults(map[string]any{"http.addr": ":8080", "name": "fallback"}),
	)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "fallback", cfg.Name)
}
