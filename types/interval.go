package types

import (
	"errors"
	"fmt"
	"time"
)

type Interval string

const (
	OneMinute      Interval = "1min"
	ThreeMinutes   Interval = "3min"
	FiveMinutes    Interval = "5min"
	FifteenMinutes Interval = "15min"
	ThirtyMinutes  Interval = "30min"
	Hour           Interval = "1hour"
	FourHours      Interval = "4hour"
	Day            Interval = "1day"
	Week           Interval = "7day"
)

var ErrIntervalNotSupported = errors.New("interval not supported")

var IntervalToTime = map[Interval]time.Duration{
	OneMinute:      time.Minute,
	ThreeMinutes:   time.Minute * 3,
	FiveMinutes:    time.Minute * 5,
	FifteenMinutes: time.Minute * 15,
	ThirtyMinutes:  time.Minute * 30,
	Hour:           time.Hour,
	FourHours:      time.Hour * 4,
	Day:            time.Hour * 24,
	Week:           time.Hour * 24 * 7,
}

// ParseInterval converts an interval string such as "15min" or "1day" into a
// supported Interval.
func ParseInterval(s string) (Interval, error) {
	in := Interval(s)
	if _, ok := IntervalToTime[in]; !ok {
		return "", fmt.Errorf("%w: %q", ErrIntervalNotSupported, s)
	}
	return in, nil
}
