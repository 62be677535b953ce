// Package config loads the scanner configuration from a YAML file. Broker
// credentials are deliberately not part of it; they come from the environment
// and are handed to the broker adapter at construction by the caller.
package config

import (
	"flag"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"kisquant/internal/services/indicators"
)

// Config is the runtime configuration of the signal engine.
type Config struct {
	// Environment selects the KIS endpoint: "virtual" (default) or "real".
	Environment string
	// Symbols is the watchlist evaluated by scheduled scans.
	Symbols []string
	// ScanSchedule is a cron expression for the periodic scan.
	ScanSchedule string
	// Strategy names the classifier rule set.
	Strategy string
	// Workers bounds scan parallelism.
	Workers int

	RequestTimeout    time.Duration
	OrderTimeout      time.Duration
	RequestsPerSecond float64
	Burst             int

	BollingerPeriod int
	BollingerStdDev float64
	WilliamsPeriod  int
	RSIPeriod       int
}

type configTmp struct {
	Environment       string        `yaml:"environment,omitempty"`
	Symbols           []string      `yaml:"symbols"`
	ScanSchedule      string        `yaml:"scan_schedule,omitempty"`
	Strategy          string        `yaml:"strategy,omitempty"`
	Workers           int           `yaml:"workers,omitempty"`
	RequestTimeout    string        `yaml:"request_timeout,omitempty"`
	OrderTimeout      string        `yaml:"order_timeout,omitempty"`
	RequestsPerSecond float64       `yaml:"requests_per_second,omitempty"`
	Burst             int           `yaml:"burst,omitempty"`
	BollingerPeriod   int           `yaml:"bollinger_period,omitempty"`
	BollingerStdDev   float64       `yaml:"bollinger_std_dev,omitempty"`
	WilliamsPeriod    int           `yaml:"williams_period,omitempty"`
	RSIPeriod         int           `yaml:"rsi_period,omitempty"`
}

// Get parses the --config flag and loads the file it names.
func Get() (Config, error) {
	path := flag.String("config", "config.yaml", "path to yaml config")
	flag.Parse()
	return Load(*path)
}

// Load reads and validates a YAML configuration file.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to read config %s", path)
	}

	var tmp configTmp
	if err := yaml.Unmarshal(raw, &tmp); err != nil {
		return Config{}, errors.Wrapf(err, "failed to parse config %s", path)
	}

	cfg := defaultConfig()
	cfg.Symbols = tmp.Symbols
	if tmp.Environment != "" {
		cfg.Environment = tmp.Environment
	}
	if tmp.ScanSchedule != "" {
		cfg.ScanSchedule = tmp.ScanSchedule
	}
	if tmp.Strategy != "" {
		cfg.Strategy = tmp.Strategy
	}
	if tmp.Workers > 0 {
		cfg.Workers = tmp.Workers
	}
	if tmp.RequestTimeout != "" {
		d, err := time.ParseDuration(tmp.RequestTimeout)
		if err != nil {
			return Config{}, errors.Wrapf(err, "invalid request_timeout %q", tmp.RequestTimeout)
		}
		cfg.RequestTimeout = d
	}
	if tmp.OrderTimeout != "" {
		d, err := time.ParseDuration(tmp.OrderTimeout)
		if err != nil {
			return Config{}, errors.Wrapf(err, "invalid order_timeout %q", tmp.OrderTimeout)
		}
		cfg.OrderTimeout = d
	}
	if tmp.RequestsPerSecond > 0 {
		cfg.RequestsPerSecond = tmp.RequestsPerSecond
	}
	if tmp.Burst > 0 {
		cfg.Burst = tmp.Burst
	}
	if tmp.BollingerPeriod > 0 {
		cfg.BollingerPeriod = tmp.BollingerPeriod
	}
	if tmp.BollingerStdDev > 0 {
		cfg.BollingerStdDev = tmp.BollingerStdDev
	}
	if tmp.WilliamsPeriod > 0 {
		cfg.WilliamsPeriod = tmp.WilliamsPeriod
	}
	if tmp.RSIPeriod > 0 {
		cfg.RSIPeriod = tmp.RSIPeriod
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaultConfig() Config {
	params := indicators.DefaultParams()
	return Config{
		Environment:       "virtual",
		ScanSchedule:      "*/10 9-15 * * MON-FRI",
		Strategy:          "bollinger_williams",
		Workers:           4,
		RequestTimeout:    10 * time.Second,
		OrderTimeout:      15 * time.Second,
		RequestsPerSecond: 5,
		Burst:             5,
		BollingerPeriod:   params.BollingerPeriod,
		BollingerStdDev:   params.BollingerStdDev,
		WilliamsPeriod:    params.WilliamsPeriod,
		RSIPeriod:         params.RSIPeriod,
	}
}

func (c Config) validate() error {
	if len(c.Symbols) == 0 {
		return errors.New("config must list at least one symbol")
	}
	if c.Environment != "virtual" && c.Environment != "real" {
		return errors.Errorf("unknown environment %q, want virtual or real", c.Environment)
	}
	return nil
}

// IndicatorParams converts the configured lookbacks into indicator engine
// parameters.
func (c Config) IndicatorParams() indicators.Params {
	return indicators.Params{
		BollingerPeriod: c.BollingerPeriod,
		BollingerStdDev: c.BollingerStdDev,
		WilliamsPeriod:  c.WilliamsPeriod,
		RSIPeriod:       c.RSIPeriod,
	}
}
