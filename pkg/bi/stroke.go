package bi

import (
	"github.com/algomatic/chanstream/pkg/chanenum"
	"github.com/algomatic/chanstream/pkg/chanerr"
	"github.com/algomatic/chanstream/pkg/kline"
)

// Stroke ("bi") is one confirmed or virtual leg between two fractal merged
// bars, strictly alternating direction with its neighbours.
type Stroke struct {
	Idx     int
	Dir     chanenum.BiDir
	IsSure  bool
	SureEnd []*kline.MergedBar

	begin, end *kline.MergedBar

	Prev, Next *Stroke

	// SegIdx is the index of the segment this stroke currently belongs to,
	// set by pkg/seg; nil until a SegmentList assigns it.
	SegIdx *int
	// ParentSeg is a weak back-link to the owning *seg.Segment, typed any
	// to avoid an import cycle between pkg/bi and pkg/seg.
	ParentSeg any
}

func newStroke(idx int, begin, end *kline.MergedBar, isSure bool) (*Stroke, error) {
	s := &Stroke{Idx: idx, IsSure: isSure}
	if err := s.set(begin, end); err != nil {
		return nil, err
	}
	return s, nil
}

// set assigns begin/end and derives direction from begin's fractal, then
// verifies the direction/endpoint consistency invariant (Bi.check).
func (s *Stroke) set(begin, end *kline.MergedBar) error {
	s.begin, s.end = begin, end
	switch begin.Fractal() {
	case chanenum.FractalBottom:
		s.Dir = chanenum.BiUp
	case chanenum.FractalTop:
		s.Dir = chanenum.BiDown
	default:
		return chanerr.New(chanerr.CodeBiError, begin.Idx, begin.TimeBegin(), begin.TimeEnd(),
			"cannot create stroke: begin merged bar fractal is %s, want TOP or BOTTOM", begin.Fractal())
	}
	return s.check()
}

// check verifies the direction/endpoint-price consistency invariant.
func (s *Stroke) check() error {
	if s.Dir == chanenum.BiDown {
		if !(s.begin.PriceHigh() > s.end.PriceLow()) {
			return chanerr.New(chanerr.CodeBiError, s.Idx, s.begin.TimeBegin(), s.end.TimeEnd(),
				"down stroke begin.high=%v must exceed end.low=%v", s.begin.PriceHigh(), s.end.PriceLow())
		}
		return nil
	}
	if !(s.begin.PriceLow() < s.end.PriceHigh()) {
		return chanerr.New(chanerr.CodeBiError, s.Idx, s.begin.TimeBegin(), s.end.TimeEnd(),
			"up stroke begin.low=%v must be below end.high=%v", s.begin.PriceLow(), s.end.PriceHigh())
	}
	return nil
}

func (s *Stroke) Begin() *kline.MergedBar { return s.begin }
func (s *Stroke) End() *kline.MergedBar   { return s.end }

func (s *Stroke) IsUp() bool   { return s.Dir == chanenum.BiUp }
func (s *Stroke) IsDown() bool { return s.Dir == chanenum.BiDown }

// BeginValue/EndValue are get_begin_val/get_end_val: the price from which,
// respectively to which, the stroke's move is measured.
func (s *Stroke) BeginValue() float64 {
	if s.IsUp() {
		return s.begin.PriceLow()
	}
	return s.begin.PriceHigh()
}

func (s *Stroke) EndValue() float64 {
	if s.IsUp() {
		return s.end.PriceHigh()
	}
	return s.end.PriceLow()
}

// PriceHigh/PriceLow satisfy interval.HighLow so a Stroke can be absorbed
// into a FeatureElement exactly like a Bar is absorbed into a MergedBar.
func (s *Stroke) PriceHigh() float64 {
	if s.IsUp() {
		return s.end.PriceHigh()
	}
	return s.begin.PriceHigh()
}

func (s *Stroke) PriceLow() float64 {
	if s.IsUp() {
		return s.begin.PriceLow()
	}
	return s.end.PriceLow()
}

func (s *Stroke) Amplitude() float64 {
	return abs(s.EndValue() - s.BeginValue())
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// updateVirtualEnd extends the stroke to newEnd while marking it unsure,
// pushing the current end onto the sure_end history (update_virtual_end).
func (s *Stroke) updateVirtualEnd(newEnd *kline.MergedBar) error {
	s.SureEnd = append(s.SureEnd, s.end)
	if err := s.set(s.begin, newEnd); err != nil {
		return err
	}
	s.IsSure = false
	return nil
}

// restoreFromVirtualEnd reverts to a previously confirmed endpoint
// (restore_from_virtual_end).
func (s *Stroke) restoreFromVirtualEnd(sureEnd *kline.MergedBar) error {
	s.IsSure = true
	if err := s.set(s.begin, sureEnd); err != nil {
		return err
	}
	s.SureEnd = nil
	return nil
}

// updateNewEnd moves a sure stroke's endpoint (update_new_end).
func (s *Stroke) updateNewEnd(newEnd *kline.MergedBar) error {
	return s.set(s.begin, newEnd)
}
