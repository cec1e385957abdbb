package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:8645", cfg.RPCAddress)
	require.Equal(t, "./vaultdata", cfg.DataDir)
	require.Equal(t, "poolvault-local", cfg.NetworkName)

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestLoadParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
RPCAddress = "0.0.0.0:9000"
DataDir = "/var/lib/poolvault"
WrappedNative = "0x00000000000000000000000000000000000000ee"
NetworkName = "poolvault-test"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.RPCAddress)
	require.Equal(t, "/var/lib/poolvault", cfg.DataDir)

	wrapped, err := cfg.WrappedNativeToken()
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000ee"), wrapped)
}

func TestLoadFillsMissingDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`RPCAddress = "127.0.0.1:7777"`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:7777", cfg.RPCAddress)
	require.Equal(t, "./vaultdata", cfg.DataDir)
}

func TestLoadRejectsInvalidWrappedNative(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`WrappedNative = "zzz"`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
