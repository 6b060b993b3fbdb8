// Package models provides the data structures for FX minute-series cleaning.
// This package contains the core value records flowing through the pipeline:
// raw rows, bars, series, gaps, invalid blocks, and the per-run report.
package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RawBar is one observation as read from a source file, before time
// normalization. All fields are kept as raw strings so that unparseable or
// missing values survive until the stage responsible for judging them.
type RawBar struct {
	Time  string
	Open  string
	High  string
	Low   string
	Close string
}

// Bar represents one OHLC price observation at a normalized UTC timestamp.
// Price fields remain decimal strings; an empty or unparseable string is a
// missing value. A Bar may be structurally invalid until the row validator
// runs — the pipeline decides when invalidity matters.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      string    `json:"open"`
	High      string    `json:"high"`
	Low       string    `json:"low"`
	Close     string    `json:"close"`
}

// Series is an ordered sequence of Bars. After the time normalizer it holds
// strictly increasing, unique timestamps.
type Series []Bar

// Price parses a single OHLC field. The second return value reports whether
// the field holds a usable numeric value; missing fields return false.
func price(raw string) (decimal.Decimal, bool) {
	if raw == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// OpenDecimal returns the open price and whether it is present.
func (b *Bar) OpenDecimal() (decimal.Decimal, bool) { return price(b.Open) }

// HighDecimal returns the high price and whether it is present.
func (b *Bar) HighDecimal() (decimal.Decimal, bool) { return price(b.High) }

// LowDecimal returns the low price and whether it is present.
func (b *Bar) LowDecimal() (decimal.Decimal, bool) { return price(b.Low) }

// CloseDecimal returns the close price and whether it is present.
func (b *Bar) CloseDecimal() (decimal.Decimal, bool) { return price(b.Close) }

// HasMissingOHLC reports whether any OHLC field is absent or unparseable.
func (b *Bar) HasMissingOHLC() bool {
	for _, raw := range []string{b.Open, b.High, b.Low, b.Close} {
		if _, ok := price(raw); !ok {
			return true
		}
	}
	return false
}

// HasZeroOHLC reports whether any present OHLC field equals zero.
func (b *Bar) HasZeroOHLC() bool {
	for _, raw := range []string{b.Open, b.High, b.Low, b.Close} {
		if d, ok := price(raw); ok && d.IsZero() {
			return true
		}
	}
	return false
}

// Unusable is the invalid-block predicate: an OHLC value is missing or zero.
// Deliberately narrower than the sanity filter — it flags placeholder rows,
// not logically inconsistent candles.
func (b *Bar) Unusable() bool {
	return b.HasMissingOHLC() || b.HasZeroOHLC()
}

// FailsSanity implements the OHLC sanity predicate: any present field zero or
// negative, or high < max(open, close), low > min(open, close), high < low.
// Predicates involving a missing field evaluate to false, so rows with
// missing values are retained here and left to the invalid-block detector.
func (b *Bar) FailsSanity() bool {
	open, hasOpen := b.OpenDecimal()
	high, hasHigh := b.HighDecimal()
	low, hasLow := b.LowDecimal()
	closeP, hasClose := b.CloseDecimal()

	for _, f := range []struct {
		v  decimal.Decimal
		ok bool
	}{{open, hasOpen}, {high, hasHigh}, {low, hasLow}, {closeP, hasClose}} {
		if f.ok && f.v.Sign() <= 0 {
			return true
		}
	}

	if hasHigh && hasOpen && hasClose && high.LessThan(decimal.Max(open, closeP)) {
		return true
	}
	if hasLow && hasOpen && hasClose && low.GreaterThan(decimal.Min(open, closeP)) {
		return true
	}
	if hasHigh && hasLow && high.LessThan(low) {
		return true
	}
	return false
}

// CloseEquals reports strict close-price equality against another bar. A
// missing close on either side never compares equal, so placeholder rows
// break stale runs instead of extending them.
func (b *Bar) CloseEquals(other *Bar) bool {
	a, okA := b.CloseDecimal()
	c, okB := other.CloseDecimal()
	return okA && okB && a.Equal(c)
}

// String implements fmt.Stringer.
func (b *Bar) String() string {
	return fmt.Sprintf("Bar{%s O:%s H:%s L:%s C:%s}",
		b.Timestamp.Format(time.RFC3339), b.Open, b.High, b.Low, b.Close)
}

// Clone returns an independent copy of the series. The orchestrator uses it
// to take the pre-removal snapshot handed to the invalid-block detector.
func (s Series) Clone() Series {
	out := make(Series, len(s))
	copy(out, s)
	return out
}

// Span returns the wall-clock range covered by the series.
func (s Series) Span() time.Duration {
	if len(s) < 2 {
		return 0
	}
	return s[len(s)-1].Timestamp.Sub(s[0].Timestamp)
}
