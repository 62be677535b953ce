package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
symbols:
  - "005930"
  - "000660"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"005930", "000660"}, cfg.Symbols)
	assert.Equal(t, "virtual", cfg.Environment)
	assert.Equal(t, "bollinger_williams", cfg.Strategy)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 15*time.Second, cfg.OrderTimeout)
	assert.Equal(t, 20, cfg.BollingerPeriod)
	assert.Equal(t, 14, cfg.WilliamsPeriod)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: real
symbols:
  - "035720"
scan_schedule: "0 10 * * MON-FRI"
strategy: rsi_reversion
workers: 2
request_timeout: 5s
order_timeout: 30s
requests_per_second: 2
burst: 3
bollinger_period: 10
bollinger_std_dev: 2.5
williams_period: 7
rsi_period: 9
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "real", cfg.Environment)
	assert.Equal(t, "0 10 * * MON-FRI", cfg.ScanSchedule)
	assert.Equal(t, "rsi_reversion", cfg.Strategy)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 30*time.Second, cfg.OrderTimeout)
	assert.Equal(t, 2.0, cfg.RequestsPerSecond)
	assert.Equal(t, 3, cfg.Burst)

	params := cfg.IndicatorParams()
	assert.Equal(t, 10, params.BollingerPeriod)
	assert.Equal(t, 2.5, params.BollingerStdDev)
	assert.Equal(t, 7, params.WilliamsPeriod)
	assert.Equal(t, 9, params.RSIPeriod)
}

func TestLoadRequiresSymbols(t *testing.T) {
	path := writeConfig(t, `
environment: virtual
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one symbol")
}

func TestLoadRejectsUnknownEnvironment(t *testing.T) {
	path := writeConfig(t, `
environment: staging
symbols:
  - "005930"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown environment")
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	path := writeConfig(t, `
symbols:
  - "005930"
request_timeout: soon
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid request_timeout")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadMalformedYaml(t *testing.T) {
	path := writeConfig(t, `symbols: ["005930"`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}
