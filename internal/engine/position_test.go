package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPositionAverageCostAccounting(t *testing.T) {
	tests := []struct {
		name     string
		buys     [][2]string // quantity, notional
		sellQty  string
		wantQty  string
		wantCost string
	}{
		{
			name:     "cost basis accumulates across buys",
			buys:     [][2]string{{"10", "1000"}, {"5", "750"}},
			wantQty:  "15",
			wantCost: "1750",
		},
		{
			name:     "partial sell shrinks basis proportionally",
			buys:     [][2]string{{"10", "1000"}, {"5", "750"}},
			sellQty:  "6",
			wantQty:  "9",
			wantCost: "1050", // 1750 * 9/15
		},
		{
			name:     "full sell zeroes quantity and basis",
			buys:     [][2]string{{"10", "1010"}},
			sellQty:  "10",
			wantQty:  "0",
			wantCost: "0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := &Position{Ticker: "KRW-BTC"}
			for _, buy := range tt.buys {
				pos.applyBuy(dec(buy[0]), dec(buy[1]))
			}
			if tt.sellQty != "" {
				if err := pos.applySell(dec(tt.sellQty)); err != nil {
					t.Fatalf("applySell() error = %v", err)
				}
			}
			if !pos.Quantity.Equal(dec(tt.wantQty)) {
				t.Errorf("Quantity = %s, want %s", pos.Quantity, tt.wantQty)
			}
			if !pos.CostBasis.Equal(dec(tt.wantCost)) {
				t.Errorf("CostBasis = %s, want %s", pos.CostBasis, tt.wantCost)
			}
		})
	}
}

func TestPositionOversell(t *testing.T) {
	pos := &Position{Ticker: "KRW-BTC"}
	pos.applyBuy(dec("3"), dec("300"))

	err := pos.applySell(dec("4"))
	if !errors.Is(err, ErrOversell) {
		t.Fatalf("applySell() error = %v, want ErrOversell", err)
	}
	// Failed sell must not touch the position.
	if !pos.Quantity.Equal(dec("3")) || !pos.CostBasis.Equal(dec("300")) {
		t.Errorf("position changed after rejected sell: qty %s cost %s", pos.Quantity, pos.CostBasis)
	}
}

func TestPositionMarkIsIdempotent(t *testing.T) {
	pos := &Position{Ticker: "KRW-BTC"}
	pos.applyBuy(dec("2"), dec("200"))

	pos.mark(dec("105"))
	before := *pos
	pos.mark(dec("105"))

	if !reflect.DeepEqual(before, *pos) {
		t.Errorf("marking twice with the same price changed the position: %+v != %+v", before, *pos)
	}
	if !pos.MarkValue().Equal(dec("210")) {
		t.Errorf("MarkValue = %s, want 210", pos.MarkValue())
	}
}
