package config

import (
	"time"

	"github.com/samiecode/babylon/internal/savings/vault"
	vipConfig "github.com/samiecode/babylon/pkg/config"
)

const ServiceName = "savings-service"

// 总配置
type Config struct {
	Name     string         `mapstructure:"name"`
	LogLevel string         `mapstructure:"log_level"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Nats     NatsConfig     `mapstructure:"nats"`
	Trace    TraceConfig    `mapstructure:"trace"`
	Vault    vault.Config   `mapstructure:"vault"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Watch    WatchConfig    `mapstructure:"watch"`
}

type HTTPConfig struct {
	Addr      string  `mapstructure:"addr"`
	RateLimit float64 `mapstructure:"rate_limit"`
	Burst     int     `mapstructure:"burst"`
}

type DatabaseConfig struct {
	Driver      string `mapstructure:"driver"`
	DSN         string `mapstructure:"dsn"`
	MaxIdle     int    `mapstructure:"max_idle"`
	MaxOpen     int    `mapstructure:"max_open"`
	MaxLifetime int    `mapstructure:"max_lifetime"`
	LogLevel    string `mapstructure:"log_level"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// Redis is optional; an empty addr keeps withdrawal locks in-process.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

// Nats is optional; an empty url disables event publishing.
type NatsConfig struct {
	URL string `mapstructure:"url"`
}

type TraceConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Stdout   bool   `mapstructure:"stdout"`
}

type WebhookConfig struct {
	// TransferSignature is the topic0 to match; empty means ERC-20 Transfer.
	TransferSignature string `mapstructure:"transfer_signature"`
	Parallelism       int    `mapstructure:"parallelism"`
}

type WatchConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

func defaults() map[string]any {
	return map[string]any{
		"name":                       ServiceName,
		"log_level":                  "info",
		"http.addr":                  ":8080",
		"http.rate_limit":            50,
		"http.burst":                 100,
		"database.driver":            "postgres",
		"database.dsn":               "",
		"database.max_idle":          10,
		"database.max_open":          50,
		"database.max_lifetime":      3600,
		"database.log_level":         "warn",
		"database.auto_migrate":      true,
		"redis.addr":                 "",
		"redis.password":             "",
		"redis.db":                   0,
		"redis.lock_ttl":             "3m",
		"nats.url":                   "",
		"trace.endpoint":             "",
		"trace.stdout":               false,
		"vault.rpc_url":              "",
		"vault.chain_id":             44787,
		"vault.vault_address":        "",
		"vault.relayer_private_key":  "",
		"vault.relayer_mnemonic":     "",
		"vault.relayer_index":        0,
		"vault.confirmations":        1,
		"vault.confirm_timeout":      "90s",
		"vault.poll_interval":        "2s",
		"vault.gas_buffer_percent":   20,
		"webhook.transfer_signature": "",
		"webhook.parallelism":        8,
		"watch.ttl":                  "5m",
	}
}

// envAliases keeps the deployment variable names the service has always read.
func envAliases() map[string][]string {
	return map[string][]string{
		"vault.chain_id":             {"SAVINGS_CHAIN_ID"},
		"vault.rpc_url":              {"SAVINGS_RPC_URL"},
		"vault.vault_address":        {"SAVINGS_VAULT_ADDRESS"},
		"vault.relayer_private_key":  {"SAVINGS_RELAYER_PRIVATE_KEY"},
		"webhook.transfer_signature": {"QUICKNODE_SIGNATURE"},
		"database.dsn":               {"DATABASE_URL"},
	}
}

// Load reads config/{name}.yaml, the environment and the defaults into cfg,
// which is kept current on file change.
func Load(name string, cfg *Config, opts ...vipConfig.Option) error {
	if name == "" {
		name = ServiceName
	}
	all := append([]vipConfig.Option{
		vipConfig.WithDefaults(defaults()),
		vipConfig.WithEnvAliases(envAliases()),
	}, opts...)
	_, err := vipConfig.LoadAndWatch(name, cfg, all...)
	return err
}
