package kline

import (
	"github.com/algomatic/chanstream/pkg/chanenum"
	"github.com/algomatic/chanstream/pkg/interval"
)

// MergedBar is one inclusion-resolved bar: a run of raw Bars that combine
// into a single high/low interval, carrying the direction by which it was
// appended relative to its predecessor and (once its neighbours are known)
// its fractal classification.
type MergedBar struct {
	Idx int
	c   *interval.Carrier[Bar]

	prev, next *MergedBar
}

func newMergedBar(idx int, first Bar, dir chanenum.Direction) *MergedBar {
	return &MergedBar{Idx: idx, c: interval.NewCarrier(first, dir)}
}

func (m *MergedBar) PriceHigh() float64          { return m.c.High() }
func (m *MergedBar) PriceLow() float64           { return m.c.Low() }
func (m *MergedBar) Dir() chanenum.Direction      { return m.c.Dir() }
func (m *MergedBar) Fractal() chanenum.Fractal    { return m.c.Fractal() }
func (m *MergedBar) Bars() []Bar                  { return m.c.Members() }
func (m *MergedBar) Prev() *MergedBar             { return m.prev }
func (m *MergedBar) Next() *MergedBar             { return m.next }
func (m *MergedBar) TimeBegin() int64             { return m.c.Members()[0].Time }
func (m *MergedBar) TimeEnd() int64               { return m.c.Last().Time }

// HighestBar returns the raw bar whose high equals the merged bar's high,
// preferring the most recent one when several tie (get_high_peak_klu).
func (m *MergedBar) HighestBar() Bar {
	bars := m.c.Members()
	for i := len(bars) - 1; i >= 0; i-- {
		if bars[i].High == m.PriceHigh() {
			return bars[i]
		}
	}
	return bars[len(bars)-1]
}

// LowestBar returns the raw bar whose low equals the merged bar's low,
// preferring the most recent one when several tie (get_low_peak_klu).
func (m *MergedBar) LowestBar() Bar {
	bars := m.c.Members()
	for i := len(bars) - 1; i >= 0; i-- {
		if bars[i].Low == m.PriceLow() {
			return bars[i]
		}
	}
	return bars[len(bars)-1]
}

// HasGapWithNext reports whether this merged bar's interval and its
// successor's do not overlap (has_gap_with_next): used when gap_as_kl
// counts a price gap between merged bars as an extra span unit.
func (m *MergedBar) HasGapWithNext() bool {
	if m.next == nil {
		return false
	}
	return m.PriceHigh() < m.next.PriceLow() || m.PriceLow() > m.next.PriceHigh()
}
