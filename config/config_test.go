package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
[db]
driver = "sqlite"
dsn = "taskavs.db"

[auth]
jwt_secret = "s3cret"
admin_addresses = ["0x1111111111111111111111111111111111111111"]

[chain]
name = "anvil"
chain_id = 31337
rpc_url = "http://127.0.0.1:8545"
avs_contract = "0x00000000000000000000000000000000000a7500"
admin_private_key = "0x01"
receipt_timeout = "1m"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestUnmarshalConfig(t *testing.T) {
	c, err := UnmarshalConfig(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", c.DB.Driver)
	assert.Equal(t, int64(31337), c.Chain.ChainID)
	assert.Equal(t, time.Minute, c.Chain.ReceiptTimeout)
	assert.Equal(t, []string{"0x1111111111111111111111111111111111111111"}, c.Auth.AdminAddresses)

	// defaults
	assert.Equal(t, ":3020", c.Api.Port)
	assert.Equal(t, 7*24*time.Hour, c.Auth.TokenTTL)
	assert.Equal(t, "rwa", c.Chain.AssetType)
	assert.Equal(t, 30*time.Second, c.Chain.TxTimeout)
	assert.Equal(t, 10*time.Second, c.Listener.RestartBackoff)
	assert.True(t, c.Metrics.Enabled)
}

func TestUnmarshalConfig_EnvOverride(t *testing.T) {
	t.Setenv("TASKAVS_CHAIN_RPC_URL", "http://node:8545")
	c, err := UnmarshalConfig(writeConfig(t, sample))
	require.NoError(t, err)
	assert.Equal(t, "http://node:8545", c.Chain.RpcUrl)
}

func TestUnmarshalConfig_ChainIDFromName(t *testing.T) {
	c, err := UnmarshalConfig(writeConfig(t, strings.Replace(sample, "chain_id = 31337\n", "", 1)))
	require.NoError(t, err)
	assert.Equal(t, int64(31337), c.Chain.ChainID, "anvil is a known chain")

	unknown := strings.Replace(strings.Replace(sample, "chain_id = 31337\n", "", 1), `name = "anvil"`, `name = "devnet"`, 1)
	_, err = UnmarshalConfig(writeConfig(t, unknown))
	assert.ErrorContains(t, err, "chain.chain_id is required")
}

func TestUnmarshalConfig_Invalid(t *testing.T) {
	_, err := UnmarshalConfig(writeConfig(t, `[db]
dsn = "x"`))
	assert.Error(t, err)

	_, err = UnmarshalConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
