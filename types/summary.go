package types

import "github.com/shopspring/decimal"

// Summary is one portfolio valuation row, produced once per bar.
//
// TotalEquity is cash plus mark value. The summary never adds cost basis into
// the equity figure; unrealized profit is MarkValue minus TotalCost.
type Summary struct {
	TotalCost   decimal.Decimal // cumulative purchase amount of open positions
	MarkValue   decimal.Decimal // Σ quantity * mark price
	TotalEquity decimal.Decimal // cash + mark value
	ReturnPct   decimal.Decimal // (mark - cost) / cost * 100, zero when cost is zero
	Cash        decimal.Decimal
}
