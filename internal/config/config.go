package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Cron      CronConfig      `mapstructure:"cron"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	CoinGecko CoinGeckoConfig `mapstructure:"coingecko"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	PaaS      PaaSConfig      `mapstructure:"paas"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Retention string `mapstructure:"retention"`
}

// MonitorConfig drives the poll scheduler and the retention job.
type MonitorConfig struct {
	AutoStart              bool          `mapstructure:"auto_start"`
	Interval               time.Duration `mapstructure:"interval"`
	InitialDelay           time.Duration `mapstructure:"initial_delay"`
	RetentionWindow        time.Duration `mapstructure:"retention_window"`
	DefaultCooldownMinutes int           `mapstructure:"default_cooldown_minutes"`
	NotifyTimeout          time.Duration `mapstructure:"notify_timeout"`
}

type CoinGeckoConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	VsCurrency string        `mapstructure:"vs_currency"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	BatchSize  int           `mapstructure:"batch_size"`
}

type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
	Debug   bool   `mapstructure:"debug"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	PriceTTL time.Duration `mapstructure:"price_ttl"`
	Prefix   string        `mapstructure:"prefix"`
	Channel  string        `mapstructure:"channel"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
	Insecure    bool   `mapstructure:"insecure"`
}

// PaaSConfig points at the easyweb3 PaaS used for audit logs and gateway auth.
type PaaSConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Agent          string `mapstructure:"agent"`
	AuthDisabled   bool   `mapstructure:"auth_disabled"`
	RequireGateway bool   `mapstructure:"require_gateway"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	setDefaults(v)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.retention", "@every 24h")

	v.SetDefault("monitor.auto_start", true)
	v.SetDefault("monitor.interval", "2m")
	v.SetDefault("monitor.initial_delay", "5s")
	v.SetDefault("monitor.retention_window", "720h")
	v.SetDefault("monitor.default_cooldown_minutes", 60)
	v.SetDefault("monitor.notify_timeout", "10s")

	v.SetDefault("coingecko.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("coingecko.vs_currency", "usd")
	v.SetDefault("coingecko.timeout", "15s")
	v.SetDefault("coingecko.batch_size", 200)

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.debug", false)

	// Redis mirror is optional; the engine runs fine without it.
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.price_ttl", "10m")
	v.SetDefault("redis.prefix", "cryptoalert:price:")
	v.SetDefault("redis.channel", "cryptoalert.triggers")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4317")
	v.SetDefault("tracing.service_name", "cryptoalert-monitor")
	v.SetDefault("tracing.insecure", true)

	v.SetDefault("paas.agent", "cryptoalert-service")
	v.SetDefault("paas.auth_disabled", true)
	v.SetDefault("paas.require_gateway", false)
}

// Validate rejects settings the scheduler cannot run with.
func (c Config) Validate() error {
	if c.Monitor.Interval <= 0 {
		return errors.New("monitor.interval must be positive")
	}
	if c.Monitor.InitialDelay < 0 {
		return errors.New("monitor.initial_delay must not be negative")
	}
	if c.Monitor.RetentionWindow <= 0 {
		return errors.New("monitor.retention_window must be positive")
	}
	if c.Monitor.DefaultCooldownMinutes <= 0 {
		return errors.New("monitor.default_cooldown_minutes must be positive")
	}
	if c.CoinGecko.BatchSize < 0 {
		return errors.New("coingecko.batch_size must not be negative")
	}
	return nil
}
