// Package config defines the backtest run configuration and its validation.
// Values come from a TOML file, with COINBACK_* environment variables (and a
// .env file, when present) overriding secrets such as the database DSN.
package config

import (
	"errors"
	"fmt"
	"time"

	"coinback/internal/engine"
	"coinback/types"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyTicker     = errors.New("backtest.ticker must be set")
	ErrEmptyDSN        = errors.New("database.dsn must be set")
	ErrBadRate         = errors.New("rate must be in [0, 1)")
	ErrBadCash         = errors.New("backtest.initial_cash must be a non-negative number")
	ErrBadDateRange    = errors.New("backtest.start must be before backtest.end")
	ErrBadWindows      = errors.New("strategy.short_window must be positive and smaller than strategy.long_window")
	ErrUnknownStrategy = errors.New("strategy.name must be set")
)

const dateLayout = "2006-01-02"

// Config is the root configuration structure.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Backtest BacktestConfig `toml:"backtest"`
	Strategy StrategyConfig `toml:"strategy"`
	LogLevel string         `toml:"log_level"`
}

type DatabaseConfig struct {
	DSN string `toml:"dsn"`
}

type BacktestConfig struct {
	Ticker         string   `toml:"ticker"`
	TrackedTickers []string `toml:"tracked_tickers"`
	Interval       string   `toml:"interval"`
	Start          string   `toml:"start"`
	End            string   `toml:"end"`
	InitialCash    string   `toml:"initial_cash"`
	Fee            float64  `toml:"fee"`
	Slippage       float64  `toml:"slippage"`
	SlippagePolicy string   `toml:"slippage_policy"`
	MaxRequeues    int      `toml:"max_requeues"`
	ShowProgress   bool     `toml:"show_progress"`
	CSVOut         string   `toml:"csv_out"`
}

type StrategyConfig struct {
	Name        string `toml:"name"`
	ShortWindow int    `toml:"short_window"`
	LongWindow  int    `toml:"long_window"`
}

// Defaults returns the configuration used when the TOML file leaves fields
// unset.
func Defaults() Config {
	return Config{
		Backtest: BacktestConfig{
			Interval:       string(types.Day),
			InitialCash:    "1000000",
			Fee:            0.0005,
			Slippage:       0.01,
			SlippagePolicy: string(engine.SlippageAdverse),
			ShowProgress:   true,
		},
		Strategy: StrategyConfig{
			Name:        "smacross",
			ShortWindow: 5,
			LongWindow:  20,
		},
		LogLevel: "info",
	}
}

// Validate checks the configuration for structural problems. Any error here
// is fatal at run start.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return ErrEmptyDSN
	}
	if c.Backtest.Ticker == "" {
		return ErrEmptyTicker
	}
	if _, err := types.ParseInterval(c.Backtest.Interval); err != nil {
		return err
	}
	if c.Backtest.Fee < 0 || c.Backtest.Fee >= 1 {
		return fmt.Errorf("backtest.fee %w: %v", ErrBadRate, c.Backtest.Fee)
	}
	if c.Backtest.Slippage < 0 || c.Backtest.Slippage >= 1 {
		return fmt.Errorf("backtest.slippage %w: %v", ErrBadRate, c.Backtest.Slippage)
	}
	cash, err := decimal.NewFromString(c.Backtest.InitialCash)
	if err != nil || cash.IsNegative() {
		return fmt.Errorf("%w: %q", ErrBadCash, c.Backtest.InitialCash)
	}
	start, err := c.StartTime()
	if err != nil {
		return err
	}
	end, err := c.EndTime()
	if err != nil {
		return err
	}
	if !start.Before(end) {
		return fmt.Errorf("%w: %s .. %s", ErrBadDateRange, c.Backtest.Start, c.Backtest.End)
	}
	if c.Strategy.Name == "" {
		return ErrUnknownStrategy
	}
	if c.Strategy.ShortWindow <= 0 || c.Strategy.ShortWindow >= c.Strategy.LongWindow {
		return fmt.Errorf("%w: short %d, long %d", ErrBadWindows, c.Strategy.ShortWindow, c.Strategy.LongWindow)
	}
	return nil
}

// InitialCash parses the configured starting cash. Call Validate first.
func (c *Config) InitialCash() decimal.Decimal {
	cash, err := decimal.NewFromString(c.Backtest.InitialCash)
	if err != nil {
		return decimal.Zero
	}
	return cash
}

// BrokerConfig materializes the friction model for the engine.
func (c *Config) BrokerConfig() engine.BrokerConfig {
	return engine.BrokerConfig{
		FeeRate:     decimal.NewFromFloat(c.Backtest.Fee),
		Slippage:    decimal.NewFromFloat(c.Backtest.Slippage),
		Policy:      engine.SlippagePolicy(c.Backtest.SlippagePolicy),
		MaxRequeues: c.Backtest.MaxRequeues,
	}
}

func (c *Config) StartTime() (time.Time, error) {
	return parseDate(c.Backtest.Start, "backtest.start")
}

func (c *Config) EndTime() (time.Time, error) {
	return parseDate(c.Backtest.End, "backtest.end")
}

func parseDate(s, field string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: cannot parse date %q", field, s)
	}
	return t, nil
}
