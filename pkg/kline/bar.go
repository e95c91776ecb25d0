// Package kline implements levels 1-3 of the structural hierarchy: raw
// bars, inclusion-resolved merged bars, and fractal classification.
package kline

import (
	"github.com/algomatic/chanstream/pkg/chanerr"
)

// Bar is an immutable raw price bar ("K-line unit"). It is created once
// when ingested and never mutated afterwards.
type Bar struct {
	Idx       int
	Time      int64 // unix nanoseconds; monotonically increasing across the stream
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Turnover  float64
	TurnRate  float64
	HasVolume bool

	// Indicators holds the per-bar outputs of whatever external indicator
	// evaluators the caller wired in (spec.md §6). The core never reads
	// these; they are attached for downstream consumers.
	Indicators map[string]float64
}

// PriceHigh/PriceLow satisfy interval.HighLow.
func (b Bar) PriceHigh() float64 { return b.High }
func (b Bar) PriceLow() float64  { return b.Low }

// NewBar validates OHLC consistency (low <= min(OHLC), high >= max(OHLC)).
// With autofix=true, an inconsistent bound is clamped to the correct
// extreme; otherwise a KlDataInvalid error is returned.
func NewBar(idx int, t int64, open, high, low, close float64, autofix bool) (Bar, error) {
	b := Bar{Idx: idx, Time: t, Open: open, High: high, Low: low, Close: close}
	lowBound := minOf(open, high, low, close)
	if b.Low > lowBound {
		if !autofix {
			return Bar{}, chanerr.New(chanerr.CodeKlDataInvalid, idx, t, t,
				"low price=%v is not min of [open=%v high=%v low=%v close=%v]", b.Low, open, high, low, close)
		}
		b.Low = lowBound
	}
	highBound := maxOf(open, high, low, close)
	if b.High < highBound {
		if !autofix {
			return Bar{}, chanerr.New(chanerr.CodeKlDataInvalid, idx, t, t,
				"high price=%v is not max of [open=%v high=%v low=%v close=%v]", b.High, open, high, low, close)
		}
		b.High = highBound
	}
	return b, nil
}

func minOf(vals ...float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(vals ...float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
