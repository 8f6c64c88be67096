package repository

import (
	"coinback/types"
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var bucketToInterval = map[types.Interval]string{
	types.OneMinute:      "1 minute",
	types.ThreeMinutes:   "3 minutes",
	types.FiveMinutes:    "5 minutes",
	types.FifteenMinutes: "15 minutes",
	types.ThirtyMinutes:  "30 minutes",
	types.Hour:           "1 hour",
	types.FourHours:      "4 hours",
	types.Day:            "1 day",
	types.Week:           "1 week",
}

type aggregateParams struct {
	TimeBucket string
	Ticker     string
	Start      *time.Time
	End        *time.Time
}

type barRow struct {
	Bucket *time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

// GetBars loads the OHLCV series for a ticker between start and end,
// aggregated to the requested interval with TimescaleDB time buckets. The
// result is sorted ascending, ready for the engine.
func (db *Database) GetBars(ticker string, interval types.Interval, start, end time.Time, ctx context.Context) ([]types.Bar, error) {
	bucket, ok := bucketToInterval[interval]
	if !ok {
		return nil, ErrIntervalNotSupported
	}
	args := aggregateParams{
		TimeBucket: bucket,
		Ticker:     ticker,
		Start:      &start,
		End:        &end,
	}
	rows, err := db.bars.GetAggregates(ctx, args)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoBars
		}
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoBars
	}
	return convertBars(rows), nil
}

func convertBars(rows []barRow) []types.Bar {
	var bars []types.Bar
	for _, row := range rows {
		bars = append(bars, types.Bar{
			Date:   *row.Bucket,
			Open:   row.Open,
			High:   row.High,
			Low:    row.Low,
			Close:  row.Close,
			Volume: row.Volume,
		})
	}
	return bars
}

const getAggregatesQuery = `
SELECT time_bucket($1::interval, date) AS bucket,
       first(open, date) AS open,
       max(high) AS high,
       min(low) AS low,
       last(close, date) AS close,
       sum(volume) AS volume
FROM bars
WHERE ticker = $2
  AND date BETWEEN $3 AND $4
GROUP BY bucket
ORDER BY bucket ASC
`

type pgxBars struct {
	conn *pgxpool.Pool
}

func (p pgxBars) GetAggregates(ctx context.Context, arg aggregateParams) ([]barRow, error) {
	rows, err := p.conn.Query(ctx, getAggregatesQuery, arg.TimeBucket, arg.Ticker, arg.Start, arg.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []barRow
	for rows.Next() {
		var r barRow
		if err := rows.Scan(&r.Bucket, &r.Open, &r.High, &r.Low, &r.Close, &r.Volume); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
