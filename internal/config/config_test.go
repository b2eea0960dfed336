package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "bigquery", cfg.Source.Driver)
	assert.Equal(t, "inventory_exception.VIN_Exception_Report", cfg.Source.Table)
	assert.Equal(t, "file", cfg.Sink.Driver)
	assert.Equal(t, "dashboard_data.json", cfg.Sink.Path)
	assert.Equal(t, "dashboard_data.json", cfg.Sink.Key)
	assert.Equal(t, "no-cache, max-age=300", cfg.Sink.CacheControl)
	assert.Equal(t, "four-source", cfg.Report.Preset)
	assert.Equal(t, 4, cfg.Report.MaxConcurrentQueries)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 0.1, cfg.Server.RefreshRPS, 0.0001)
	assert.Equal(t, 2, cfg.Server.RefreshBurst)
	assert.Equal(t, 300, cfg.Monitoring.CheckIntervalSecs)
	assert.Equal(t, 24, cfg.Monitoring.LookbackWindowHours)
	assert.InDelta(t, 0.5, cfg.Monitoring.FailureRateThreshold, 0.0001)
	assert.Equal(t, 6, cfg.Monitoring.StaleAfterHours)
	assert.Empty(t, cfg.Monitoring.WebhookURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.Report.Sources)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
source:
  driver: postgres
  database_url: postgres://localhost/inventory
  table: inventory_exception.vin_exception_report
sink:
  driver: gcs
  bucket: vin-dashboard
report:
  preset: five-source
  combination_limit: 12
  sources:
    - name: cdk
      label: CDK
      column: CDK_FLAG
    - name: vauto
      label: vAuto
      column: VAUTO_FLAG
  risks:
    - name: not_marketed
      present: cdk
      absent: vauto
      unit_value: 30000
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Source.Driver)
	assert.Equal(t, "postgres://localhost/inventory", cfg.Source.DatabaseURL)
	assert.Equal(t, "gcs", cfg.Sink.Driver)
	assert.Equal(t, "vin-dashboard", cfg.Sink.Bucket)
	assert.Equal(t, "five-source", cfg.Report.Preset)
	assert.Equal(t, 12, cfg.Report.CombinationLimit)
	require.Len(t, cfg.Report.Sources, 2)
	assert.Equal(t, "VAUTO_FLAG", cfg.Report.Sources[1].Column)
	require.Len(t, cfg.Report.Risks, 1)
	assert.InDelta(t, 30000, cfg.Report.Risks[0].UnitValue, 0.001)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	// Defaults still apply for unset values
	assert.Equal(t, "dashboard_data.json", cfg.Sink.Key)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
sink:
  bucket: from-file
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("VINDASH_SINK_BUCKET", "from-env")
	t.Setenv("VINDASH_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Sink.Bucket)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("VINDASH_SERVER_PORT", "3000")
	t.Setenv("VINDASH_SOURCE_PROJECT", "dealer-inventory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "dealer-inventory", cfg.Source.Project)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("source: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config that passes validation in every mode.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Source.Driver = "sqlite"
	cfg.Source.DatabaseURL = "inventory.db"
	cfg.Source.Table = "vin_exception_report"
	cfg.Sink.Driver = "file"
	cfg.Sink.Path = "dashboard_data.json"
	cfg.Server.Port = 8080
	cfg.Report.MaxConcurrentQueries = 4
	return cfg
}

func TestValidate_AllModes(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"export", "serve", "load"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidate_BigQueryNeedsProject(t *testing.T) {
	cfg := validDefaults()
	cfg.Source.Driver = "bigquery"

	err := cfg.Validate("export")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source.project is required")

	cfg.Source.Project = "dealer-inventory"
	assert.NoError(t, cfg.Validate("export"))
}

func TestValidate_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Source.DatabaseURL = ""
	cfg.Source.Table = ""
	cfg.Sink.Driver = "gcs"

	err := cfg.Validate("export")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source.database_url is required")
	assert.Contains(t, err.Error(), "source.table is required")
	assert.Contains(t, err.Error(), "sink.bucket is required")
}

func TestValidate_LoadIgnoresSink(t *testing.T) {
	cfg := validDefaults()
	cfg.Sink.Driver = "s3"

	assert.NoError(t, cfg.Validate("load"))
	assert.Error(t, cfg.Validate("export"))
}

func TestValidate_UnsupportedDrivers(t *testing.T) {
	cfg := validDefaults()
	cfg.Source.Driver = "mysql"
	cfg.Sink.Driver = "ftp"

	err := cfg.Validate("export")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported source driver: "mysql"`)
	assert.Contains(t, err.Error(), `unsupported sink driver: "ftp"`)
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
	assert.NoError(t, cfg.Validate("export"))
}

func TestValidateConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Report.MaxConcurrentQueries = 33
	err := cfg.Validate("export")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrent_queries must be between 0 and 32")

	cfg.Report.MaxConcurrentQueries = 32
	assert.NoError(t, cfg.Validate("export"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateFailureRateThreshold(t *testing.T) {
	cfg := validDefaults()
	cfg.Monitoring.FailureRateThreshold = 1.5

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failure_rate_threshold must be between 0 and 1")
}
