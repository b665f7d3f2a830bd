// Package config loads the runtime configuration: a YAML file layered with
// environment overrides. Configuration is an input to construction, never
// stored account state.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration parses YAML scalars like "30s" or "5m". yaml.v3 only decodes
// integers into time.Duration, which nobody wants in a config file.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the plain time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the complete runtime configuration.
type Config struct {
	Account     AccountConfig     `yaml:"account"`
	Permissions PermissionsConfig `yaml:"permissions"`
	Bot         BotConfig         `yaml:"bot"`
	Live        LiveConfig        `yaml:"live"`
}

// AccountConfig locates persisted state.
type AccountConfig struct {
	StatePath   string `yaml:"state_path"`
	JournalPath string `yaml:"journal_path"`
}

// PermissionsConfig is the statically configured permission set.
type PermissionsConfig struct {
	Buy        bool `yaml:"buy"`
	Sell       bool `yaml:"sell"`
	ShortSell  bool `yaml:"short_sell"`
	BuyToCover bool `yaml:"buy_to_cover"`
}

// BotConfig parameterizes the decision loop and its strategy.
type BotConfig struct {
	Symbols        []string      `yaml:"symbols"`
	PollInterval   Duration      `yaml:"poll_interval"`
	OrderShares    int64         `yaml:"order_shares"`
	MaxOrderShares int64         `yaml:"max_order_shares"`

	// threshold strategy
	BuyThreshold  string `yaml:"buy_threshold"`
	SellThreshold string `yaml:"sell_threshold"`

	// policy strategy
	ModelPath   string `yaml:"model_path"`
	PriceWindow int    `yaml:"price_window"`
}

// LiveConfig locates the brokerage gateway. Execution stays off unless the
// flag is set explicitly, in the file or the environment.
type LiveConfig struct {
	Execution bool          `yaml:"execution"`
	Host      string        `yaml:"host"`
	Port      int           `yaml:"port"`
	ClientID  int           `yaml:"client_id"`
	Timeout   Duration      `yaml:"timeout"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			StatePath:   "account.json",
			JournalPath: "journal.db",
		},
		Permissions: PermissionsConfig{
			Buy:        true,
			Sell:       true,
			ShortSell:  true,
			BuyToCover: true,
		},
		Bot: BotConfig{
			PollInterval:   Duration(time.Minute),
			OrderShares:    1,
			MaxOrderShares: 100,
			BuyThreshold:   "0.97",
			SellThreshold:  "1.03",
			PriceWindow:    10,
		},
		Live: LiveConfig{
			Host:     "127.0.0.1",
			Port:     7497,
			ClientID: 1,
			Timeout:  Duration(10 * time.Second),
		},
	}
}

// Load builds the configuration: defaults, then the YAML file if path is
// nonempty, then environment overrides. A .env file beside the process is
// honored if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyEnv layers environment variables over the file. Only the settings an
// operator plausibly flips per-deployment have env forms.
func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv("INVESTOR_LIVE_EXECUTION"); ok {
		c.Live.Execution = v == "1" || v == "true"
	}
	if v, ok := os.LookupEnv("INVESTOR_GATEWAY_HOST"); ok {
		c.Live.Host = v
	}
	if v, ok := os.LookupEnv("INVESTOR_GATEWAY_PORT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Live.Port = n
		}
	}
	if v, ok := os.LookupEnv("INVESTOR_GATEWAY_CLIENT_ID"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Live.ClientID = n
		}
	}
	if v, ok := os.LookupEnv("INVESTOR_MAX_ORDER_SHARES"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Bot.MaxOrderShares = n
		}
	}
	if v, ok := os.LookupEnv("INVESTOR_POLL_INTERVAL"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			c.Bot.PollInterval = Duration(d)
		}
	}
	if v, ok := os.LookupEnv("INVESTOR_STATE_PATH"); ok {
		c.Account.StatePath = v
	}
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if c.Account.StatePath == "" {
		return fmt.Errorf("account.state_path is required")
	}
	if c.Bot.PollInterval <= 0 {
		return fmt.Errorf("bot.poll_interval must be positive")
	}
	if c.Bot.OrderShares <= 0 {
		return fmt.Errorf("bot.order_shares must be positive")
	}
	if c.Bot.MaxOrderShares <= 0 {
		return fmt.Errorf("bot.max_order_shares must be positive")
	}
	if c.Bot.PriceWindow < 1 {
		return fmt.Errorf("bot.price_window must be at least 1")
	}
	if c.Live.Host == "" {
		return fmt.Errorf("live.host is required")
	}
	if c.Live.Port <= 0 || c.Live.Port > 65535 {
		return fmt.Errorf("live.port %d out of range", c.Live.Port)
	}
	if c.Live.Timeout <= 0 {
		return fmt.Errorf("live.timeout must be positive")
	}
	return nil
}
