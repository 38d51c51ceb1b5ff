package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"fx-rate-alerts/internal/logging"
)

// Defaults for the numeric knobs that fall back instead of aborting when the
// environment hands us garbage (the bot keeps running on a bad THRESHOLD).
const (
	DefaultThreshold     = 1.1
	DefaultUrgentPct     = 0.5
	DefaultShortWindow   = 720
	DefaultLongWindow    = 1440
	DefaultSamplesPerDay = 48
	DefaultTrendEpsilon  = 0.01
)

// Accepted storage.backend values.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Accepted alerting.channels entries.
const (
	ChannelDiscord  = "discord"
	ChannelTelegram = "telegram"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Symbols   []string        `mapstructure:"symbols"`
	Signal    SignalConfig    `mapstructure:"signal"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// SignalConfig tunes the averaging windows and the crossing bands.
type SignalConfig struct {
	Threshold     float64 `mapstructure:"threshold"`
	UrgentPct     float64 `mapstructure:"urgent_pct"`
	ShortWindow   int     `mapstructure:"short_window"`
	LongWindow    int     `mapstructure:"long_window"`
	SamplesPerDay int     `mapstructure:"samples_per_day"`
	TrendEpsilon  float64 `mapstructure:"trend_epsilon"`
}

// Capacity is the maximum retained samples per symbol, by definition the long
// window.
func (s SignalConfig) Capacity() int {
	return s.LongWindow
}

// ShortHalfDays is the real-world span of half the short window.
func (s SignalConfig) ShortHalfDays() float64 {
	return float64(s.ShortWindow) / float64(s.SamplesPerDay) / 2
}

// LongHalfDays is the real-world span of half the long window.
func (s SignalConfig) LongHalfDays() float64 {
	return float64(s.LongWindow) / float64(s.SamplesPerDay) / 2
}

// FetchConfig covers Eximbank API access.
type FetchConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	AuthKey      string        `mapstructure:"auth_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Retries      int           `mapstructure:"retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	LookbackDays int           `mapstructure:"lookback_days"`
	UserAgent    string        `mapstructure:"user_agent"`
}

// StorageConfig selects and parameterises the persistence backend.
type StorageConfig struct {
	Backend  string         `mapstructure:"backend"`
	File     FileConfig     `mapstructure:"file"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// FileConfig locates the csv/state directory of the file backend.
type FileConfig struct {
	Dir string `mapstructure:"dir"`
}

// PostgresConfig encapsulates PostgreSQL connectivity.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig encapsulates Redis connectivity.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AlertingConfig defines notification routing and reporting policy.
type AlertingConfig struct {
	Enabled                bool           `mapstructure:"enabled"`
	Channels               []string       `mapstructure:"channels"`
	AlwaysReport           bool           `mapstructure:"always_report"`
	UrgentSuppressesReport bool           `mapstructure:"urgent_suppresses_report"`
	AttachChart            bool           `mapstructure:"attach_chart"`
	Timeout                time.Duration  `mapstructure:"timeout"`
	Discord                DiscordConfig  `mapstructure:"discord"`
	Telegram               TelegramConfig `mapstructure:"telegram"`
}

// DiscordConfig 描述 Discord Webhook 告警参数。
type DiscordConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// SchedulerConfig governs the watch-mode cadence. One-shot runs ignore it.
type SchedulerConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	RunOnStart    bool          `mapstructure:"run_on_start"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	// Best effort, matching the dotenv habit of the original deployment.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("FXWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Early deployments configured these without the prefix; keep honouring
	// the old names.
	_ = v.BindEnv("fetch.auth_key", "FXWATCHER_FETCH_AUTH_KEY", "EXIMBANK_API_KEY")
	_ = v.BindEnv("alerting.discord.webhook_url", "FXWATCHER_ALERTING_DISCORD_WEBHOOK_URL", "DISCORD_WEBHOOK_URL")
	_ = v.BindEnv("signal.threshold", "FXWATCHER_SIGNAL_THRESHOLD", "THRESHOLD")

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

	sanitizeFloat(v, "signal.threshold", DefaultThreshold)
	sanitizeFloat(v, "signal.urgent_pct", DefaultUrgentPct)

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.normalize()

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

// sanitizeFloat overrides key with def when its raw value does not parse as a
// number, so a mistyped env var degrades to the documented default instead of
// killing the run.
func sanitizeFloat(v *viper.Viper, key string, def float64) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		v.Set(key, def)
		return
	}
	if _, err := strconv.ParseFloat(raw, 64); err != nil {
		v.Set(key, def)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "fxwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("symbols", []string{"JPY(100)", "USD", "AUD", "CHF"})

	v.SetDefault("signal.threshold", DefaultThreshold)
	v.SetDefault("signal.urgent_pct", DefaultUrgentPct)
	v.SetDefault("signal.short_window", DefaultShortWindow)
	v.SetDefault("signal.long_window", DefaultLongWindow)
	v.SetDefault("signal.samples_per_day", DefaultSamplesPerDay)
	v.SetDefault("signal.trend_epsilon", DefaultTrendEpsilon)

	v.SetDefault("fetch.base_url", "https://oapi.koreaexim.go.kr")
	v.SetDefault("fetch.timeout", "25s")
	v.SetDefault("fetch.retries", 4)
	v.SetDefault("fetch.retry_backoff", "2s")
	v.SetDefault("fetch.lookback_days", 7)
	v.SetDefault("fetch.user_agent", "fxwatcher/1.0")

	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.file.dir", "data")
	v.SetDefault("storage.postgres.max_open_conns", 10)
	v.SetDefault("storage.postgres.max_idle_conns", 5)
	v.SetDefault("storage.postgres.conn_max_lifetime", "30m")
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.db", 0)

	v.SetDefault("alerting.enabled", true)
	v.SetDefault("alerting.channels", []string{"discord"})
	v.SetDefault("alerting.always_report", true)
	v.SetDefault("alerting.urgent_suppresses_report", false)
	v.SetDefault("alerting.attach_chart", false)
	v.SetDefault("alerting.timeout", "20s")
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("scheduler.interval", "30m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.run_on_start", true)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("export.max_data_points", 100000)
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

// normalize clamps out-of-range numeric knobs back to the documented
// defaults. The signal core never sees a nonsensical window or band.
func (c *Config) normalize() {
	if c.Signal.Threshold <= 1.0 || c.Signal.Threshold >= 2.0 {
		c.Signal.Threshold = DefaultThreshold
	}
	if c.Signal.UrgentPct <= 0 {
		c.Signal.UrgentPct = DefaultUrgentPct
	}
	if c.Signal.ShortWindow <= 0 {
		c.Signal.ShortWindow = DefaultShortWindow
	}
	if c.Signal.LongWindow <= 0 {
		c.Signal.LongWindow = DefaultLongWindow
	}
	if c.Signal.LongWindow < c.Signal.ShortWindow {
		c.Signal.LongWindow = c.Signal.ShortWindow
	}
	if c.Signal.SamplesPerDay <= 0 {
		c.Signal.SamplesPerDay = DefaultSamplesPerDay
	}
	if c.Signal.TrendEpsilon <= 0 {
		c.Signal.TrendEpsilon = DefaultTrendEpsilon
	}

	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 25 * time.Second
	}
	if c.Fetch.Retries < 0 {
		c.Fetch.Retries = 4
	}
	if c.Fetch.RetryBackoff <= 0 {
		c.Fetch.RetryBackoff = 2 * time.Second
	}
	if c.Fetch.LookbackDays <= 0 {
		c.Fetch.LookbackDays = 7
	}

	if len(c.Symbols) == 0 {
		c.Symbols = []string{"JPY(100)", "USD", "AUD", "CHF"}
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFile, BackendPostgres, BackendRedis:
	default:
		return fmt.Errorf("storage.backend %q is not one of file/postgres/redis", c.Storage.Backend)
	}
	if c.Storage.Backend == BackendFile && c.Storage.File.Dir == "" {
		return fmt.Errorf("storage.file.dir is required for the file backend")
	}
	if c.Storage.Backend == BackendPostgres && c.Storage.Postgres.DSN == "" {
		return fmt.Errorf("storage.postgres.dsn is required for the postgres backend")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	for _, ch := range c.Alerting.Channels {
		switch ch {
		case ChannelDiscord, ChannelTelegram:
		default:
			return fmt.Errorf("unknown alerting channel %q", ch)
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
