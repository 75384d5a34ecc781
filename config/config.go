package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/locey/TaskAVS/base/chain"
	"github.com/locey/TaskAVS/base/logger/xzap"
	"github.com/locey/TaskAVS/base/stores/gdb"
)

type Config struct {
	Api      Api          `toml:"api" mapstructure:"api" json:"api"`
	Log      xzap.LogConf `toml:"log" mapstructure:"log" json:"log"`
	DB       gdb.Config   `toml:"db" mapstructure:"db" json:"db"`
	Auth     Auth         `toml:"auth" mapstructure:"auth" json:"auth"`
	Chain    Chain        `toml:"chain" mapstructure:"chain" json:"chain"`
	Listener Listener     `toml:"listener" mapstructure:"listener" json:"listener"`
	Metrics  Metrics      `toml:"metrics" mapstructure:"metrics" json:"metrics"`
}

type Api struct {
	Port string `toml:"port" mapstructure:"port" json:"port"`
}

type Auth struct {
	JwtSecret      string        `toml:"jwt_secret" mapstructure:"jwt_secret" json:"jwt_secret"`
	TokenTTL       time.Duration `toml:"token_ttl" mapstructure:"token_ttl" json:"token_ttl"`
	AdminAddresses []string      `toml:"admin_addresses" mapstructure:"admin_addresses" json:"admin_addresses"`
}

type Chain struct {
	Name            string        `toml:"name" mapstructure:"name" json:"name"`
	ChainID         int64         `toml:"chain_id" mapstructure:"chain_id" json:"chain_id"`
	RpcUrl          string        `toml:"rpc_url" mapstructure:"rpc_url" json:"rpc_url"`
	WsUrl           string        `toml:"ws_url" mapstructure:"ws_url" json:"ws_url"`
	AvsContract     string        `toml:"avs_contract" mapstructure:"avs_contract" json:"avs_contract"`
	AdminPrivateKey string        `toml:"admin_private_key" mapstructure:"admin_private_key" json:"-"`
	AbiPath         string        `toml:"abi_path" mapstructure:"abi_path" json:"abi_path"`
	AssetType       string        `toml:"asset_type" mapstructure:"asset_type" json:"asset_type"`
	TxTimeout       time.Duration `toml:"tx_timeout" mapstructure:"tx_timeout" json:"tx_timeout"`
	ReceiptTimeout  time.Duration `toml:"receipt_timeout" mapstructure:"receipt_timeout" json:"receipt_timeout"`
}

type Listener struct {
	RestartBackoff time.Duration `toml:"restart_backoff" mapstructure:"restart_backoff" json:"restart_backoff"`
}

type Metrics struct {
	Enabled bool `toml:"enabled" mapstructure:"enabled" json:"enabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", ":3020")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.mode", "console")
	v.SetDefault("db.driver", "mysql")
	v.SetDefault("auth.token_ttl", 7*24*time.Hour)
	v.SetDefault("chain.asset_type", "rwa")
	v.SetDefault("chain.tx_timeout", 30*time.Second)
	v.SetDefault("chain.receipt_timeout", 120*time.Second)
	v.SetDefault("listener.restart_backoff", 10*time.Second)
	v.SetDefault("metrics.enabled", true)
}

// UnmarshalConfig reads a TOML file; any key can be overridden by an env var
// such as TASKAVS_CHAIN_RPC_URL.
func UnmarshalConfig(configFilePath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configFilePath)
	v.SetConfigType("toml")
	v.SetEnvPrefix("TASKAVS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "failed on read config")
	}

	c := new(Config)
	if err := v.Unmarshal(c); err != nil {
		return nil, errors.Wrap(err, "failed on unmarshal config")
	}
	// well known chains need only a name
	if c.Chain.ChainID == 0 {
		c.Chain.ChainID = chain.ChainIDByName(c.Chain.Name)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	switch {
	case c.DB.Dsn == "":
		return errors.New("db.dsn is required")
	case c.Auth.JwtSecret == "":
		return errors.New("auth.jwt_secret is required")
	case c.Chain.RpcUrl == "" && c.Chain.WsUrl == "":
		return errors.New("chain.rpc_url or chain.ws_url is required")
	case c.Chain.AvsContract == "":
		return errors.New("chain.avs_contract is required")
	case c.Chain.AdminPrivateKey == "":
		return errors.New("chain.admin_private_key is required")
	case c.Chain.ChainID == 0:
		return errors.New("chain.chain_id is required unless chain.name is a known chain")
	}
	return nil
}
