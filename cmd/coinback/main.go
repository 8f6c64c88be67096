// Command coinback runs bar-by-bar backtests of crypto trading strategies
// against historical OHLCV data. It loads configuration, wires the bar
// repository, the strategy, and the engine, and prints the run report.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"coinback/internal/config"
	"coinback/internal/engine"
	"coinback/internal/repository"
	"coinback/strategies"
	"coinback/strategies/smacross"
	"coinback/types"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "coinback",
		Usage: "single-asset backtesting engine for crypto trading strategies",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.toml",
				Usage:   "path to the TOML configuration file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "run a backtest for the configured ticker and strategy",
				Action: runBacktest,
			},
			{
				Name:   "strategies",
				Usage:  "list the registered strategies",
				Action: listStrategies,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("run failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	setupLogger(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	registerStrategies(cfg)
	return cfg, nil
}

func setupLogger(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}

// registerStrategies populates the registry explicitly, once, at process
// start. New strategies get a line here.
func registerStrategies(cfg *config.Config) {
	strategies.Register("smacross", func() (engine.Strategy, error) {
		return smacross.New(cfg.Strategy.ShortWindow, cfg.Strategy.LongWindow)
	})
}

func runBacktest(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	strat, err := strategies.New(cfg.Strategy.Name)
	if err != nil {
		return err
	}

	db, err := repository.NewDatabase(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	interval, err := types.ParseInterval(cfg.Backtest.Interval)
	if err != nil {
		return err
	}
	start, err := cfg.StartTime()
	if err != nil {
		return err
	}
	end, err := cfg.EndTime()
	if err != nil {
		return err
	}

	bars, err := db.GetBars(cfg.Backtest.Ticker, interval, start, end, context.Background())
	if err != nil {
		return fmt.Errorf("load bars: %w", err)
	}
	slog.Info("bars loaded",
		slog.String("ticker", cfg.Backtest.Ticker),
		slog.String("interval", string(interval)),
		slog.Int("count", len(bars)),
	)

	eng, err := engine.New(engine.Config{
		Ticker:         cfg.Backtest.Ticker,
		TrackedTickers: cfg.Backtest.TrackedTickers,
		Bars:           bars,
		InitialCash:    cfg.InitialCash(),
		Broker:         cfg.BrokerConfig(),
		Strategy:       strat,
		ShowProgress:   cfg.Backtest.ShowProgress,
	})
	if err != nil {
		return err
	}

	if err := eng.Run(); err != nil {
		return err
	}

	result, err := eng.Result()
	if err != nil {
		return err
	}
	result.Report.Print(os.Stdout)

	if cfg.Backtest.CSVOut != "" {
		if err := engine.WriteValuationsCSVFile(cfg.Backtest.CSVOut, result.Valuations); err != nil {
			return err
		}
		slog.Info("valuation log written", slog.String("path", cfg.Backtest.CSVOut))
	}
	return nil
}

// listStrategies is local only: it needs the strategy section for
// registration, not a reachable database, so it skips validation and falls
// back to defaults when no config file is present.
func listStrategies(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		def := config.Defaults()
		cfg = &def
	}
	setupLogger(cfg.LogLevel)
	registerStrategies(cfg)
	for _, name := range strategies.Names() {
		fmt.Println(name)
	}
	return nil
}
