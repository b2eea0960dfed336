package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Source     SourceConfig     `yaml:"source" mapstructure:"source"`
	Sink       SinkConfig       `yaml:"sink" mapstructure:"sink"`
	Report     ReportConfig     `yaml:"report" mapstructure:"report"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// SourceConfig configures the query engine holding the reconciliation table.
type SourceConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Project     string `yaml:"project" mapstructure:"project"`
	Table       string `yaml:"table" mapstructure:"table"`
}

// SinkConfig configures where the snapshot is written.
type SinkConfig struct {
	Driver       string `yaml:"driver" mapstructure:"driver"`
	Path         string `yaml:"path" mapstructure:"path"`
	Bucket       string `yaml:"bucket" mapstructure:"bucket"`
	Key          string `yaml:"key" mapstructure:"key"`
	CacheControl string `yaml:"cache_control" mapstructure:"cache_control"`
}

// ReportConfig overrides the report layout. Zero values keep the preset's setting.
type ReportConfig struct {
	Preset               string         `yaml:"preset" mapstructure:"preset"`
	GeneratedBy          string         `yaml:"generated_by" mapstructure:"generated_by"`
	Sources              []SourceSystem `yaml:"sources" mapstructure:"sources"`
	Primary              string         `yaml:"primary" mapstructure:"primary"`
	Marketed             []string       `yaml:"marketed" mapstructure:"marketed"`
	Risks                []RiskConfig   `yaml:"risks" mapstructure:"risks"`
	Sections             []string       `yaml:"sections" mapstructure:"sections"`
	Columns              ColumnsConfig  `yaml:"columns" mapstructure:"columns"`
	CombinationLimit     int            `yaml:"combination_limit" mapstructure:"combination_limit"`
	MakeLimit            int            `yaml:"make_limit" mapstructure:"make_limit"`
	CriticalLimit        int            `yaml:"critical_limit" mapstructure:"critical_limit"`
	HighPriorities       []int          `yaml:"high_priorities" mapstructure:"high_priorities"`
	CriticalPriority     int            `yaml:"critical_priority" mapstructure:"critical_priority"`
	AgeBounds            []int          `yaml:"age_bounds" mapstructure:"age_bounds"`
	MaxConcurrentQueries int            `yaml:"max_concurrent_queries" mapstructure:"max_concurrent_queries"`
}

// SourceSystem describes one tracked upstream system and its indicator column.
type SourceSystem struct {
	Name   string `yaml:"name" mapstructure:"name"`
	Label  string `yaml:"label" mapstructure:"label"`
	Column string `yaml:"column" mapstructure:"column"`
}

// RiskConfig describes a two-flag risk metric and its per-vehicle dollar estimate.
type RiskConfig struct {
	Name      string  `yaml:"name" mapstructure:"name"`
	Present   string  `yaml:"present" mapstructure:"present"`
	Absent    string  `yaml:"absent" mapstructure:"absent"`
	UnitValue float64 `yaml:"unit_value" mapstructure:"unit_value"`
	CountKey  string  `yaml:"count_key" mapstructure:"count_key"`
	ValueKey  string  `yaml:"value_key" mapstructure:"value_key"`
}

// ColumnsConfig names the descriptive columns of the source table.
type ColumnsConfig struct {
	VIN      string `yaml:"vin" mapstructure:"vin"`
	Status   string `yaml:"status" mapstructure:"status"`
	Priority string `yaml:"priority" mapstructure:"priority"`
	Make     string `yaml:"make" mapstructure:"make"`
	Model    string `yaml:"model" mapstructure:"model"`
	Year     string `yaml:"year" mapstructure:"year"`
	Price    string `yaml:"price" mapstructure:"price"`
	Age      string `yaml:"age" mapstructure:"age"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the refresh trigger server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RefreshRPS     float64  `yaml:"refresh_rps" mapstructure:"refresh_rps"`
	RefreshBurst   int      `yaml:"refresh_burst" mapstructure:"refresh_burst"`
}

// MonitoringConfig configures refresh health alerting.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	StaleAfterHours      int     `yaml:"stale_after_hours" mapstructure:"stale_after_hours"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("VINDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("source.driver", "bigquery")
	v.SetDefault("source.database_url", "")
	v.SetDefault("source.project", "")
	v.SetDefault("source.table", "inventory_exception.VIN_Exception_Report")
	v.SetDefault("sink.driver", "file")
	v.SetDefault("sink.path", "dashboard_data.json")
	v.SetDefault("sink.bucket", "")
	v.SetDefault("sink.key", "dashboard_data.json")
	v.SetDefault("sink.cache_control", "no-cache, max-age=300")
	v.SetDefault("report.preset", "four-source")
	v.SetDefault("report.max_concurrent_queries", 4)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "vin-dashboard.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.refresh_rps", 0.1)
	v.SetDefault("server.refresh_burst", 2)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.stale_after_hours", 6)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings required by the given command mode
// ("export", "serve" or "load").
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Source.Driver {
	case "postgres", "sqlite":
		if c.Source.DatabaseURL == "" {
			errs = append(errs, "source.database_url is required (VINDASH_SOURCE_DATABASE_URL)")
		}
	case "bigquery":
		if c.Source.Project == "" {
			errs = append(errs, "source.project is required for bigquery (VINDASH_SOURCE_PROJECT)")
		}
	default:
		errs = append(errs, fmt.Sprintf("unsupported source driver: %q", c.Source.Driver))
	}
	if c.Source.Table == "" {
		errs = append(errs, "source.table is required")
	}

	switch mode {
	case "export", "serve":
		switch c.Sink.Driver {
		case "file":
			if c.Sink.Path == "" {
				errs = append(errs, "sink.path is required for the file sink")
			}
		case "gcs":
			if c.Sink.Bucket == "" {
				errs = append(errs, "sink.bucket is required for the gcs sink (VINDASH_SINK_BUCKET)")
			}
			if c.Sink.Key == "" {
				errs = append(errs, "sink.key is required for the gcs sink")
			}
		default:
			errs = append(errs, fmt.Sprintf("unsupported sink driver: %q", c.Sink.Driver))
		}
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "load":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Report.MaxConcurrentQueries < 0 || c.Report.MaxConcurrentQueries > 32 {
		errs = append(errs, "report.max_concurrent_queries must be between 0 and 32")
	}

	if c.Monitoring.FailureRateThreshold < 0 || c.Monitoring.FailureRateThreshold > 1 {
		errs = append(errs, "monitoring.failure_rate_threshold must be between 0 and 1")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
