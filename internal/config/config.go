// Package config loads application configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"polymarket-edge-lab/internal/gamma"
	"polymarket-edge-lab/internal/pricing"
	"polymarket-edge-lab/internal/scheduler"
	"polymarket-edge-lab/internal/stream"
)

// Config represents the complete application configuration.
type Config struct {
	Catalog   gamma.Config        `mapstructure:"catalog"`
	Oracle    stream.OracleConfig `mapstructure:"oracle"`
	Book      stream.BookConfig   `mapstructure:"book"`
	Scheduler scheduler.Config    `mapstructure:"scheduler"`
	Pricing   pricing.Config      `mapstructure:"pricing"`
	Storage   StorageConfig       `mapstructure:"storage"`
	Recorder  RecorderConfig      `mapstructure:"recorder"`
	Logging   LoggingConfig       `mapstructure:"logging"`
	Metrics   MetricsConfig       `mapstructure:"metrics"`
}

// StorageConfig holds database connection settings.
type StorageConfig struct {
	PostgresDSN   string        `mapstructure:"postgres_dsn"`
	ClickhouseDSN string        `mapstructure:"clickhouse_dsn"`
	PriceMaxAge   time.Duration `mapstructure:"price_max_age"`
}

// RecorderConfig holds CSV output settings.
type RecorderConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig holds the metrics HTTP listener settings.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load reads configuration from the given file path and environment
// variables prefixed with POLYLAB. An empty path loads defaults only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("POLYLAB")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	catalog := gamma.DefaultConfig()
	v.SetDefault("catalog.base_url", catalog.BaseURL)
	v.SetDefault("catalog.timeout", catalog.Timeout)
	v.SetDefault("catalog.page_size", catalog.PageSize)
	v.SetDefault("catalog.max_pages", catalog.MaxPages)
	v.SetDefault("catalog.horizon", catalog.Horizon)
	v.SetDefault("catalog.recurrence", catalog.Recurrence)

	oracle := stream.DefaultOracleConfig()
	v.SetDefault("oracle.url", oracle.URL)
	v.SetDefault("oracle.read_timeout", oracle.ReadTimeout)
	v.SetDefault("oracle.write_timeout", oracle.WriteTimeout)
	v.SetDefault("oracle.reconnect_delay", oracle.ReconnectDelay)

	book := stream.DefaultBookConfig()
	v.SetDefault("book.url", book.URL)
	v.SetDefault("book.ping_interval", book.PingInterval)
	v.SetDefault("book.write_timeout", book.WriteTimeout)

	sched := scheduler.DefaultConfig()
	v.SetDefault("scheduler.tick_interval", sched.TickInterval)
	v.SetDefault("scheduler.rescan_interval", sched.RescanInterval)
	v.SetDefault("scheduler.start_buffer", sched.StartBuffer)
	v.SetDefault("scheduler.stop_buffer", sched.StopBuffer)
	v.SetDefault("scheduler.max_listeners", sched.MaxListeners)
	v.SetDefault("scheduler.vol_lookback", sched.VolLookback)
	v.SetDefault("scheduler.confidence_scale", sched.ConfidenceScale)

	model := pricing.DefaultConfig()
	v.SetDefault("pricing.sigma_floor", model.SigmaFloor)
	v.SetDefault("pricing.default_vol", model.DefaultVol)
	v.SetDefault("pricing.min_edge", model.MinEdge)

	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.clickhouse_dsn", "")
	v.SetDefault("storage.price_max_age", "30m")

	v.SetDefault("recorder.dir", "./market_data")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("metrics.addr", ":9100")
}
