package engine

import (
	"coinback/types"
	"errors"
	"fmt"
	"log/slog"

	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
)

var (
	ErrNilStrategy = errors.New("engine needs a strategy")
	ErrEmptyTicker = errors.New("engine needs a ticker")
	ErrAlreadyRun  = errors.New("engine instance has already run")
	ErrNotFinished = errors.New("engine has not finished a run")
)

type runState int

const (
	stateInitialized runState = iota
	stateRunning
	stateFinished
)

// Config wires one backtest run. Bars must be deduplicated and ascending;
// TrackedTickers defaults to just the traded ticker.
type Config struct {
	Ticker         string
	TrackedTickers []string
	Bars           []types.Bar
	InitialCash    decimal.Decimal
	Broker         BrokerConfig
	Strategy       Strategy
	// Recorder receives one valuation row per bar. Defaults to an in-memory
	// recorder whose log feeds Result.
	Recorder     Recorder
	ShowProgress bool
}

// Engine replays a bar series forward, one bar at a time, against a single
// strategy. One run per instance; fills, marks, strategy execution and order
// placement for a bar always complete before the next bar starts.
type Engine struct {
	ticker   string
	bars     []types.Bar
	account  *Account
	broker   *Broker
	strategy Strategy
	recorder Recorder
	memory   *MemoryRecorder

	series       *Series
	state        runState
	showProgress bool
}

// New validates the configuration and builds a ready-to-run engine. Structural
// problems (bad rates, non-monotonic series, missing strategy) surface here,
// before any bar is processed.
func New(cfg Config) (*Engine, error) {
	if cfg.Ticker == "" {
		return nil, ErrEmptyTicker
	}
	if cfg.Strategy == nil {
		return nil, ErrNilStrategy
	}
	if err := types.ValidateSeries(cfg.Bars); err != nil {
		return nil, fmt.Errorf("bar series: %w", err)
	}

	tracked := cfg.TrackedTickers
	if len(tracked) == 0 {
		tracked = []string{cfg.Ticker}
	}
	account, err := NewAccount(cfg.InitialCash, tracked)
	if err != nil {
		return nil, fmt.Errorf("account: %w", err)
	}
	if _, ok := account.Position(cfg.Ticker); !ok {
		return nil, fmt.Errorf("%w: traded ticker %q", ErrUnknownTicker, cfg.Ticker)
	}
	broker, err := NewBroker(account, cfg.Broker)
	if err != nil {
		return nil, fmt.Errorf("broker: %w", err)
	}

	e := &Engine{
		ticker:       cfg.Ticker,
		bars:         cfg.Bars,
		account:      account,
		broker:       broker,
		strategy:     cfg.Strategy,
		recorder:     cfg.Recorder,
		showProgress: cfg.ShowProgress,
	}
	if e.recorder == nil {
		e.memory = NewMemoryRecorder()
		e.recorder = e.memory
	} else if mem, ok := cfg.Recorder.(*MemoryRecorder); ok {
		e.memory = mem
	}
	return e, nil
}

// Run iterates the bar series exactly once. Per bar: the broker fills orders
// queued at the previous bar against this bar's close, remaining holdings are
// marked to market, the strategy sees a snapshot and emits new orders, the
// broker queues them for the next bar, and the valuation is recorded.
func (e *Engine) Run() error {
	if e.state != stateInitialized {
		return ErrAlreadyRun
	}
	e.state = stateRunning

	series, err := e.strategy.Update(e.bars)
	if err != nil {
		return fmt.Errorf("strategy update: %w", err)
	}
	if series == nil || len(series.Bars) != len(e.bars) {
		return fmt.Errorf("strategy %q returned a series of wrong length", e.strategy.Name())
	}
	e.series = series

	var bar *progressbar.ProgressBar
	if e.showProgress {
		bar = initProgressBar(len(e.bars))
	}

	for i, cur := range e.bars {
		if err := e.step(i, cur); err != nil {
			return fmt.Errorf("bar %d (%s): %w", i, cur.Date, err)
		}
		if bar != nil {
			bar.Add(1)
		}
	}

	e.state = stateFinished
	slog.Info("backtest finished",
		slog.String("ticker", e.ticker),
		slog.Int("bars", len(e.bars)),
		slog.Int("fills", len(e.broker.Fills())),
		slog.Int("pending", e.broker.PendingCount()),
	)
	return nil
}

func (e *Engine) step(i int, cur types.Bar) error {
	// Fill orders queued at the previous bar; the one-bar lag avoids
	// look-ahead bias.
	if err := e.broker.ExecuteOrders(cur); err != nil {
		return fmt.Errorf("execute orders: %w", err)
	}

	if err := e.account.UpdatePrice(e.ticker, cur.Close); err != nil {
		return fmt.Errorf("mark to market: %w", err)
	}

	snap := e.snapshotAt(i, cur)
	orders, err := e.strategy.Execute(snap)
	if err != nil {
		return fmt.Errorf("strategy execute: %w", err)
	}
	if len(orders) > 0 {
		if err := e.broker.PlaceOrders(orders...); err != nil {
			return fmt.Errorf("place orders: %w", err)
		}
		slog.Debug("orders placed",
			slog.String("ticker", e.ticker),
			slog.Int("count", len(orders)),
			slog.String("close", cur.Close.String()),
		)
	}

	e.recorder.Record(cur.Date, e.account.Summary())
	return nil
}

func (e *Engine) snapshotAt(i int, cur types.Bar) Snapshot {
	return Snapshot{
		Ticker:      e.ticker,
		Bar:         cur,
		Price:       cur.Close,
		Quantity:    e.account.Quantity(e.ticker),
		HasPosition: e.account.HasPosition(e.ticker),
		Balance:     e.account.Balance(),
		FeeRate:     e.broker.FeeRate(),
		Slippage:    e.broker.Slippage(),
		indicators:  e.series.valuesAt(i),
	}
}

// Result is the post-run export: the valuation log plus the aggregated
// report.
type Result struct {
	Ticker     string
	Valuations []ValuationRow
	Fills      []Fill
	Report     *Report
}

// Result aggregates the recorded valuation series after the run has finished.
// It requires the default in-memory recorder (or one passed in explicitly).
func (e *Engine) Result() (*Result, error) {
	if e.state != stateFinished {
		return nil, ErrNotFinished
	}
	if e.memory == nil {
		return nil, errors.New("result requires a memory recorder")
	}
	rows := e.memory.Rows()
	return &Result{
		Ticker:     e.ticker,
		Valuations: rows,
		Fills:      e.broker.Fills(),
		Report:     buildReport(rows, e.broker.Fills()),
	}, nil
}

func initProgressBar(maxTicks int) *progressbar.ProgressBar {
	return progressbar.NewOptions(maxTicks,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription("Backtesting in progress..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
