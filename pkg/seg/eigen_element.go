// Package seg implements segment ("seg") detection over a stroke list via
// the eigen-fractal (feature-sequence) state machine: strokes opposite to
// the segment direction being sought are absorbed into a 3-slot buffer of
// FeatureElements using the same inclusion/fractal rules pkg/kline applies
// to raw bars, specialized here over *bi.Stroke.
package seg

import (
	"github.com/algomatic/chanstream/pkg/bi"
	"github.com/algomatic/chanstream/pkg/chanenum"
	"github.com/algomatic/chanstream/pkg/interval"
)

// FeatureElement ("Eigen") is a MergedBar-like aggregate over strokes of a
// single polarity: when seeking an UP segment its members are DOWN
// strokes (and vice versa).
type FeatureElement struct {
	c   *interval.Carrier[*bi.Stroke]
	Gap bool
}

func newFeatureElement(first *bi.Stroke, dir chanenum.Direction) *FeatureElement {
	return &FeatureElement{c: interval.NewCarrier(first, dir)}
}

func (e *FeatureElement) PriceHigh() float64       { return e.c.High() }
func (e *FeatureElement) PriceLow() float64        { return e.c.Low() }
func (e *FeatureElement) Fractal() chanenum.Fractal { return e.c.Fractal() }
func (e *FeatureElement) Strokes() []*bi.Stroke     { return e.c.Members() }
func (e *FeatureElement) Len() int                  { return e.c.Len() }
func (e *FeatureElement) LastStroke() *bi.Stroke     { return e.c.Last() }

func (e *FeatureElement) tryAdd(s *bi.Stroke, excludeIncluded bool, allowTopEqual interval.AllowTopEqual) (chanenum.Direction, error) {
	return e.c.TryAdd(s, excludeIncluded, allowTopEqual)
}

// peakStroke returns the member stroke that achieves this element's extreme
// bound — its high when isHigh, else its low — preferring the most recent
// tie, mirroring MergedBar.HighestBar/LowestBar's convention for the same
// "which raw unit produced this extreme" query, specialized to strokes.
func (e *FeatureElement) peakStroke(isHigh bool) *bi.Stroke {
	members := e.c.Members()
	for i := len(members) - 1; i >= 0; i-- {
		if isHigh && members[i].PriceHigh() == e.PriceHigh() {
			return members[i]
		}
		if !isHigh && members[i].PriceLow() == e.PriceLow() {
			return members[i]
		}
	}
	return members[len(members)-1]
}

// GetPeakBiIdx is GetPeakBiIdx: the idx of the stroke immediately preceding
// this element's extreme member — the actual segment-terminating stroke,
// one position before the opposite-polarity stroke that registers the
// extreme. (original_source's Seg/Eigen.py defining CEigen was not among
// the 15 files the retrieval kept — see DESIGN.md — this reconstructs the
// "-1" convention documented in EigenFX.py's call sites.)
func (e *FeatureElement) GetPeakBiIdx(seekUp bool) int {
	return e.peakStroke(seekUp).Idx - 1
}
