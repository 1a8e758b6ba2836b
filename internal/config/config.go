package config

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Market    MarketConfig    `mapstructure:"market"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Agents    []AgentProfile  `mapstructure:"agents"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"`
	Development bool   `mapstructure:"development"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type OracleConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKeyEnv string        `mapstructure:"api_key_env"`
	Model     string        `mapstructure:"model"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type MarketConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	ChatLimit int           `mapstructure:"chat_limit"`
}

type WalletConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type TelemetryConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// EngineConfig bounds the orchestrator cycle: how many opportunities are
// enriched per cycle, how stale research may get before a refresh, and the
// pacing windows that keep agent activity looking human.
type EngineConfig struct {
	TopOpportunities int           `mapstructure:"top_opportunities"`
	ResearchTTL      time.Duration `mapstructure:"research_ttl"`
	ResearchDelay    time.Duration `mapstructure:"research_delay"`
	CycleMin         time.Duration `mapstructure:"cycle_min"`
	CycleMax         time.Duration `mapstructure:"cycle_max"`
	AgentDelayMax    time.Duration `mapstructure:"agent_delay_max"`
	ActionDelayMin   time.Duration `mapstructure:"action_delay_min"`
	ActionDelayMax   time.Duration `mapstructure:"action_delay_max"`
}

// AgentProfile is immutable for the process lifetime; profiles are loaded once
// at startup and never reloaded.
type AgentProfile struct {
	Name        string          `mapstructure:"name"`
	Avatar      string          `mapstructure:"avatar"`
	Personality string          `mapstructure:"personality"`
	Model       string          `mapstructure:"model"`
	Temperature float64         `mapstructure:"temperature"`
	MaxWager    decimal.Decimal `mapstructure:"max_wager"`
	RiskTier    string          `mapstructure:"risk_tier"`
	CycleMin    time.Duration   `mapstructure:"cycle_min"`
	CycleMax    time.Duration   `mapstructure:"cycle_max"`
	Research    bool            `mapstructure:"research"`
	Account     string          `mapstructure:"account"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SWARM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("oracle.api_key_env", "SWARM_ORACLE_API_KEY")
	v.SetDefault("oracle.model", "gpt-4o")
	v.SetDefault("oracle.timeout", "120s")
	v.SetDefault("market.timeout", "15s")
	v.SetDefault("market.chat_limit", 20)
	v.SetDefault("wallet.timeout", "15s")
	v.SetDefault("telemetry.timeout", "5s")
	v.SetDefault("engine.top_opportunities", 10)
	v.SetDefault("engine.research_ttl", "30m")
	v.SetDefault("engine.research_delay", "5s")
	v.SetDefault("engine.cycle_min", "3m")
	v.SetDefault("engine.cycle_max", "8m")
	v.SetDefault("engine.agent_delay_max", "45s")
	v.SetDefault("engine.action_delay_min", "2s")
	v.SetDefault("engine.action_delay_max", "10s")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return Config{}, err
	}

	if err := validateAgents(cfg.Agents); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateAgents(agents []AgentProfile) error {
	seen := map[string]struct{}{}
	for _, a := range agents {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			return errors.New("agent profile with empty name")
		}
		if _, ok := seen[name]; ok {
			return errors.New("duplicate agent name: " + name)
		}
		seen[name] = struct{}{}
		if a.MaxWager.IsNegative() {
			return errors.New("agent " + name + ": max_wager must not be negative")
		}
	}
	return nil
}
