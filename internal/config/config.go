package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"dealwatcher/internal/analysis"
	"dealwatcher/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Rules     RulesConfig     `mapstructure:"rules"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Digest    DigestConfig    `mapstructure:"digest"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Country     string `mapstructure:"country"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs ingest cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	RunOnStart      bool          `mapstructure:"run_on_start"`
	TickTimeout     time.Duration `mapstructure:"tick_timeout"`
}

// SnapshotConfig locates the scraper output.
type SnapshotConfig struct {
	Path           string              `mapstructure:"path"`
	GenderKeywords map[string][]string `mapstructure:"gender_keywords"`
}

// RulesConfig overrides classifier thresholds and the good-deal tier set.
type RulesConfig struct {
	// Preset selects the classifier: points (per observation) or legacy (batch quantiles).
	Preset        string   `mapstructure:"preset"`
	GoodTiers     []string `mapstructure:"good_tiers"`
	StealTotal    int      `mapstructure:"steal_total"`
	GreatTotal    int      `mapstructure:"great_total"`
	GoodDealTotal int      `mapstructure:"good_deal_total"`
	OKTotal       int      `mapstructure:"ok_total"`
}

// AnalysisConfig sets forecaster defaults.
type AnalysisConfig struct {
	HorizonDays int `mapstructure:"horizon_days"`
	Degree      int `mapstructure:"degree"`
	Workers     int `mapstructure:"workers"`
}

// DigestConfig filters what goes into a notification digest.
type DigestConfig struct {
	MinDiscount   float64       `mapstructure:"min_discount"`
	Sizes         []string      `mapstructure:"sizes"`
	GoodOnly      bool          `mapstructure:"good_only"`
	MaxItems      int           `mapstructure:"max_items"`
	ResendAfter   time.Duration `mapstructure:"resend_after"`
	BlocklistPath string        `mapstructure:"blocklist_path"`
}

// AlertingConfig defines digest routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 推送参数。
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("DEALWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "dealwatcher")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.country", "de")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "6h")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x6465616c))
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.run_on_start", true)
	v.SetDefault("scheduler.tick_timeout", "10m")

	v.SetDefault("snapshot.path", "product-ids/uniqlo-with-sizes.csv")
	v.SetDefault("snapshot.gender_keywords", map[string][]string{
		"women": {"/women/", "damen"},
		"men":   {"/men/", "herren"},
		"kids":  {"/kids/", "kinder"},
		"baby":  {"/baby/"},
	})

	v.SetDefault("rules.preset", "points")
	v.SetDefault("rules.steal_total", 7)
	v.SetDefault("rules.great_total", 6)
	v.SetDefault("rules.good_deal_total", 4)
	v.SetDefault("rules.ok_total", 3)

	v.SetDefault("analysis.horizon_days", analysis.DefaultHorizonDays)
	v.SetDefault("analysis.degree", analysis.DefaultDegree)
	v.SetDefault("analysis.workers", 4)

	v.SetDefault("digest.min_discount", 35.0)
	v.SetDefault("digest.sizes", []string{"XS", "S", "M", "L", "XL", "26INCH", "27INCH", "28INCH", "29INCH", "39-42"})
	v.SetDefault("digest.good_only", false)
	v.SetDefault("digest.max_items", 40)
	v.SetDefault("digest.resend_after", "168h")
	v.SetDefault("digest.blocklist_path", "product-ids/blocked_ids.json")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "10s")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Analysis.HorizonDays <= 0 {
		return fmt.Errorf("analysis.horizon_days must be greater than zero")
	}
	if c.Analysis.Degree < 1 {
		return fmt.Errorf("analysis.degree must be at least 1")
	}
	if c.Digest.MaxItems <= 0 {
		return fmt.Errorf("digest.max_items must be greater than zero")
	}
	if c.Digest.MinDiscount < 0 || c.Digest.MinDiscount > 100 {
		return fmt.Errorf("digest.min_discount must be within [0, 100]")
	}
	switch strings.ToLower(c.Rules.Preset) {
	case "", "points", "legacy":
	default:
		return fmt.Errorf("rules.preset must be points or legacy, got %q", c.Rules.Preset)
	}
	if c.Rules.StealTotal < c.Rules.GreatTotal {
		return fmt.Errorf("rules.steal_total must not be below rules.great_total")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

// Ruleset builds the classifier rule set from configuration.
func (c *Config) Ruleset() analysis.Ruleset {
	rules := analysis.DefaultRuleset()
	if strings.EqualFold(c.Rules.Preset, "legacy") {
		rules = analysis.LegacyRuleset()
	}
	if len(c.Rules.GoodTiers) > 0 {
		rules.GoodTiers = normaliseTiers(c.Rules.GoodTiers)
	}
	if c.Rules.StealTotal > 0 {
		rules.StealTotal = c.Rules.StealTotal
	}
	if c.Rules.GreatTotal > 0 {
		rules.GreatTotal = c.Rules.GreatTotal
	}
	if c.Rules.GoodDealTotal > 0 {
		rules.GoodDealTotal = c.Rules.GoodDealTotal
	}
	if c.Rules.OKTotal > 0 {
		rules.OKTotal = c.Rules.OKTotal
	}
	return rules
}

// ForecastOptions returns forecaster defaults.
func (c *Config) ForecastOptions() analysis.ForecastOptions {
	return analysis.ForecastOptions{HorizonDays: c.Analysis.HorizonDays, Degree: c.Analysis.Degree}
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}

func normaliseTiers(tiers []string) []string {
	out := make([]string, 0, len(tiers))
	for _, t := range tiers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
