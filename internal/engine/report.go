package engine

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// Report aggregates the valuation log after a run. It is derived data only
// and plays no part in the simulation invariants.
type Report struct {
	StartDate time.Time
	EndDate   time.Time
	Bars      int

	InitialEquity decimal.Decimal
	FinalEquity   decimal.Decimal
	NetProfit     decimal.Decimal
	ReturnPct     decimal.Decimal

	MaxDrawdown    decimal.Decimal
	MaxDrawdownPct decimal.Decimal

	Fills     int
	TotalFees decimal.Decimal
}

func buildReport(rows []ValuationRow, fills []Fill) *Report {
	report := &Report{}
	if len(rows) == 0 {
		return report
	}

	report.StartDate = rows[0].Date
	report.EndDate = rows[len(rows)-1].Date
	report.Bars = len(rows)
	report.InitialEquity = rows[0].Summary.TotalEquity
	report.FinalEquity = rows[len(rows)-1].Summary.TotalEquity
	report.NetProfit = report.FinalEquity.Sub(report.InitialEquity)
	if report.InitialEquity.IsPositive() {
		report.ReturnPct = report.NetProfit.Div(report.InitialEquity).Mul(decimal.NewFromInt(100))
	}
	report.MaxDrawdown, report.MaxDrawdownPct = calcDrawdown(rows)

	report.Fills = len(fills)
	for _, f := range fills {
		report.TotalFees = report.TotalFees.Add(f.Fee)
	}
	return report
}

// calcDrawdown walks the equity curve and returns the largest peak-to-trough
// fall, in absolute terms and as a percentage of the peak.
func calcDrawdown(rows []ValuationRow) (decimal.Decimal, decimal.Decimal) {
	maxDrawdown := decimal.Zero
	maxDrawdownPct := decimal.Zero
	peak := rows[0].Summary.TotalEquity

	for _, row := range rows[1:] {
		equity := row.Summary.TotalEquity
		if equity.GreaterThan(peak) {
			peak = equity
			continue
		}
		drawdown := peak.Sub(equity)
		if drawdown.GreaterThan(maxDrawdown) {
			maxDrawdown = drawdown
			if peak.IsPositive() {
				maxDrawdownPct = drawdown.Div(peak).Mul(decimal.NewFromInt(100))
			}
		}
	}
	return maxDrawdown, maxDrawdownPct
}

// Print writes the report in a human-readable block.
func (r *Report) Print(w io.Writer) {
	fmt.Fprintln(w, "===== Backtest Report =====")
	fmt.Fprintf(w, "Start Date:       %s\n", r.StartDate.Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "End Date:         %s\n", r.EndDate.Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "Bars:             %d\n", r.Bars)

	fmt.Fprintln(w, "\n-- Performance --")
	fmt.Fprintf(w, "Initial Equity:   %s\n", r.InitialEquity)
	fmt.Fprintf(w, "Final Equity:     %s\n", r.FinalEquity)
	fmt.Fprintf(w, "Net Profit:       %s\n", r.NetProfit)
	fmt.Fprintf(w, "Return %%:         %s\n", r.ReturnPct)

	fmt.Fprintln(w, "\n-- Drawdown --")
	fmt.Fprintf(w, "Max Drawdown:     %s\n", r.MaxDrawdown)
	fmt.Fprintf(w, "Max Drawdown %%:   %s\n", r.MaxDrawdownPct)

	fmt.Fprintln(w, "\n-- Costs --")
	fmt.Fprintf(w, "Fills:            %d\n", r.Fills)
	fmt.Fprintf(w, "Total Fees:       %s\n", r.TotalFees)
	fmt.Fprintln(w, "===========================")
}
