package smacross

import (
	"errors"
	"math"
	"testing"
	"time"

	"coinback/internal/engine"
	"coinback/types"

	"github.com/shopspring/decimal"
)

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func barSeries(closes ...string) []types.Bar {
	bars := make([]types.Bar, len(closes))
	for i, close := range closes {
		c := dec(close)
		bars[i] = types.Bar{
			Date:   t0.Add(time.Duration(i) * time.Minute),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: dec("1"),
		}
	}
	return bars
}

func TestNewValidatesWindows(t *testing.T) {
	tests := []struct {
		name        string
		short, long int
		wantErr     bool
	}{
		{"ok", 5, 20, false},
		{"zero short", 0, 20, true},
		{"short equals long", 5, 5, true},
		{"short above long", 20, 5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.short, tt.long)
			if tt.wantErr != (err != nil) {
				t.Errorf("New(%d, %d) error = %v", tt.short, tt.long, err)
			}
			if tt.wantErr && !errors.Is(err, ErrBadWindows) {
				t.Errorf("error = %v, want ErrBadWindows", err)
			}
		})
	}
}

func TestUpdateComputesTrailingMeans(t *testing.T) {
	strat, err := New(3, 5)
	if err != nil {
		t.Fatal(err)
	}
	series, err := strat.Update(barSeries("1", "2", "3", "4", "5", "6"))
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	ma3, ok := series.Column("ma3")
	if !ok {
		t.Fatal("ma3 column missing")
	}
	ma5, ok := series.Column("ma5")
	if !ok {
		t.Fatal("ma5 column missing")
	}

	// Warm-up rows are NaN.
	for i := 0; i < 2; i++ {
		if !math.IsNaN(ma3[i]) {
			t.Errorf("ma3[%d] = %v, want NaN", i, ma3[i])
		}
	}
	for i := 0; i < 4; i++ {
		if !math.IsNaN(ma5[i]) {
			t.Errorf("ma5[%d] = %v, want NaN", i, ma5[i])
		}
	}

	// Each value is the mean of its own and the preceding closes only.
	wantMa3 := []float64{2, 3, 4, 5} // rows 2..5
	for i, want := range wantMa3 {
		if got := ma3[i+2]; math.Abs(got-want) > 1e-9 {
			t.Errorf("ma3[%d] = %v, want %v", i+2, got, want)
		}
	}
	if got := ma5[4]; math.Abs(got-3) > 1e-9 {
		t.Errorf("ma5[4] = %v, want 3", got)
	}
	if got := ma5[5]; math.Abs(got-4) > 1e-9 {
		t.Errorf("ma5[5] = %v, want 4", got)
	}
}

func TestUpdateShortSeriesIsAllNaN(t *testing.T) {
	strat, err := New(3, 5)
	if err != nil {
		t.Fatal(err)
	}
	series, err := strat.Update(barSeries("1", "2"))
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	ma5, _ := series.Column("ma5")
	for i, v := range ma5 {
		if !math.IsNaN(v) {
			t.Errorf("ma5[%d] = %v, want NaN", i, v)
		}
	}
}

func TestMaxAffordable(t *testing.T) {
	tests := []struct {
		name     string
		balance  string
		price    string
		fee      string
		slippage string
		want     string // empty means assert invariants only
		wantZero bool
	}{
		{
			// effective price 10.1; 99 units cost 999.9+0.49995 > 1000,
			// 98 units cost 989.8+0.4949 fits.
			name: "steps down whole units until fee fits",
			balance: "1000", price: "10", fee: "0.0005", slippage: "0.01",
			want: "98",
		},
		{
			name: "no fee no slippage buys the floor",
			balance: "1000", price: "10", fee: "0", slippage: "0",
			want: "100",
		},
		{
			name: "zero balance buys nothing",
			balance: "0", price: "10", fee: "0", slippage: "0",
			wantZero: true,
		},
		{
			name: "fractional sizing below one unit",
			balance: "0.5", price: "1", fee: "0.0005", slippage: "0.01",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			balance := dec(tt.balance)
			fee := dec(tt.fee)
			slippage := dec(tt.slippage)
			got := maxAffordable(balance, dec(tt.price), fee, slippage)

			if tt.wantZero {
				if !got.IsZero() {
					t.Errorf("maxAffordable() = %s, want 0", got)
				}
				return
			}
			if tt.want != "" && !got.Equal(dec(tt.want)) {
				t.Errorf("maxAffordable() = %s, want %s", got, tt.want)
			}
			// The sized order must actually be affordable with fees.
			effPrice := dec(tt.price).Mul(dec("1").Add(slippage))
			notional := effPrice.Mul(got)
			total := notional.Add(notional.Mul(fee))
			if total.GreaterThan(balance) {
				t.Errorf("sized order costs %s with balance %s", total, balance)
			}
			if !got.IsPositive() {
				t.Errorf("maxAffordable() = %s, want positive", got)
			}
			if tt.name == "fractional sizing below one unit" && got.GreaterThanOrEqual(dec("1")) {
				t.Errorf("fractional case sized to %s, want < 1", got)
			}
		})
	}
}

// End-to-end: a golden cross buys on the next bar, a dead cross sells the
// whole position on the next bar, and nothing trades during warm-up.
func TestStrategyCrossoverRoundTrip(t *testing.T) {
	strat, err := New(2, 3)
	if err != nil {
		t.Fatal(err)
	}
	recorder := engine.NewMemoryRecorder()
	eng, err := engine.New(engine.Config{
		Ticker:      "KRW-BTC",
		Bars:        barSeries("10", "10", "10", "14", "14", "8", "8"),
		InitialCash: dec("1000"),
		Broker: engine.BrokerConfig{
			FeeRate:  dec("0.0005"),
			Slippage: dec("0.01"),
		},
		Strategy: strat,
		Recorder: recorder,
	})
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	if err := eng.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	result, err := eng.Result()
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}
	fills := result.Fills
	if len(fills) != 2 {
		t.Fatalf("fills = %d, want buy then sell", len(fills))
	}

	// Golden cross at bar 3 (ma2 12 > ma3 11.33) fills at bar 4.
	if fills[0].Side != types.SideTypeBuy || !fills[0].Time.Equal(t0.Add(4*time.Minute)) {
		t.Errorf("first fill = %+v, want buy at bar 4", fills[0])
	}
	// Dead cross at bar 5 (ma2 11 < ma3 12) fills at bar 6 at 8*(1-0.01).
	if fills[1].Side != types.SideTypeSell || !fills[1].Time.Equal(t0.Add(6*time.Minute)) {
		t.Errorf("second fill = %+v, want sell at bar 6", fills[1])
	}
	if !fills[1].Price.Equal(dec("7.92")) {
		t.Errorf("sell price = %s, want 7.92", fills[1].Price)
	}
	if !fills[1].Quantity.Equal(fills[0].Quantity) {
		t.Errorf("sell quantity %s != buy quantity %s", fills[1].Quantity, fills[0].Quantity)
	}

	// Position is flat at the end; all value is cash again.
	last := result.Valuations[len(result.Valuations)-1].Summary
	if !last.MarkValue.IsZero() || !last.TotalCost.IsZero() {
		t.Errorf("final summary not flat: %+v", last)
	}
	if !last.TotalEquity.Equal(last.Cash) {
		t.Errorf("equity %s != cash %s when flat", last.TotalEquity, last.Cash)
	}
}

func TestStrategyStaysIdleDuringWarmUp(t *testing.T) {
	strat, err := New(2, 3)
	if err != nil {
		t.Fatal(err)
	}
	eng, err := engine.New(engine.Config{
		Ticker:      "KRW-BTC",
		Bars:        barSeries("10", "20"), // shorter than the long window
		InitialCash: dec("1000"),
		Strategy:    strat,
	})
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	if err := eng.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	result, err := eng.Result()
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Fills) != 0 {
		t.Errorf("fills = %d, want none during warm-up", len(result.Fills))
	}
}

func TestDescriptionListsColumns(t *testing.T) {
	strat, err := New(5, 20)
	if err != nil {
		t.Fatal(err)
	}
	desc := strat.Description()
	for _, col := range []string{"close", "ma5", "ma20"} {
		if _, ok := desc[col]; !ok {
			t.Errorf("Description() missing %q", col)
		}
	}
}
