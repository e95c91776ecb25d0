package seg

import (
	"github.com/algomatic/chanstream/pkg/bi"
	"github.com/algomatic/chanstream/pkg/chanenum"
	"github.com/algomatic/chanstream/pkg/chanerr"
)

// Segment ("seg") is an aggregation of alternating strokes terminated by a
// feature-sequence fractal.
type Segment struct {
	Idx                  int
	StartStroke, EndStroke *bi.Stroke
	Dir                  chanenum.BiDir
	IsSure               bool
	Status               chanenum.LineStatus
	Reason               string

	// EigenFx is the feature-sequence fractal that witnessed this segment's
	// termination; nil for a segment produced by the residual-tail policy.
	EigenFx *EigenFractal

	BiList []*bi.Stroke

	Prev, Next *Segment

	// SupportTrendLine/ResistanceTrendLine mirror CSeg.support_trend_line /
	// resistance_trend_line's presence in the original shape. Trend-line
	// fitting is out of scope; these stay nil so a future consumer package
	// can populate them without changing Segment's shape.
	SupportTrendLine, ResistanceTrendLine any
}

// NewSegment is CSeg.__init__. segDir overrides the default (end.Dir) for
// the rare case a segment's direction must be forced independent of its
// terminating stroke's own direction.
func NewSegment(idx int, start, end *bi.Stroke, status chanenum.LineStatus, isSure bool, segDir *chanenum.BiDir, reason string) (*Segment, error) {
	dir := end.Dir
	if segDir != nil {
		dir = *segDir
	}
	s := &Segment{
		Idx:         idx,
		StartStroke: start,
		EndStroke:   end,
		Dir:         dir,
		IsSure:      isSure,
		Status:      status,
		Reason:      reason,
	}
	if end.Idx-start.Idx < 2 {
		s.IsSure = false
	}
	if err := s.check(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Segment) IsUp() bool   { return s.Dir == chanenum.BiUp }
func (s *Segment) IsDown() bool { return s.Dir == chanenum.BiDown }

// check verifies the sure-segment invariants of spec.md §3 Segment.
func (s *Segment) check() error {
	if !s.IsSure {
		return nil
	}
	if s.IsDown() {
		if s.StartStroke.BeginValue() < s.EndStroke.EndValue() {
			return chanerr.New(chanerr.CodeSegEndValue, s.Idx, 0, 0,
				"down segment start value %v must exceed end value %v", s.StartStroke.BeginValue(), s.EndStroke.EndValue())
		}
	} else if s.StartStroke.BeginValue() > s.EndStroke.EndValue() {
		return chanerr.New(chanerr.CodeSegEndValue, s.Idx, 0, 0,
			"up segment start value %v must be below end value %v", s.StartStroke.BeginValue(), s.EndStroke.EndValue())
	}
	if s.EndStroke.Idx-s.StartStroke.Idx < 2 {
		return chanerr.New(chanerr.CodeSegLen, s.Idx, 0, 0,
			"segment (%d-%d) length must be at least 2", s.StartStroke.Idx, s.EndStroke.Idx)
	}
	return nil
}

func (s *Segment) GetBeginVal() float64 { return s.StartStroke.BeginValue() }
func (s *Segment) GetEndVal() float64   { return s.EndStroke.EndValue() }

func (s *Segment) Amp() float64 {
	v := s.GetEndVal() - s.GetBeginVal()
	if v < 0 {
		return -v
	}
	return v
}

// Low/High are _low/_high: for an UP segment the low comes from its start
// stroke and the high from its end stroke; for a DOWN segment the low comes
// from its end stroke and the high from its start stroke.
func (s *Segment) Low() float64 {
	if s.IsDown() {
		return s.EndStroke.PriceLow()
	}
	return s.StartStroke.PriceLow()
}

func (s *Segment) High() float64 {
	if s.IsUp() {
		return s.EndStroke.PriceHigh()
	}
	return s.StartStroke.PriceHigh()
}

func (s *Segment) BiCount() int { return s.EndStroke.Idx - s.StartStroke.Idx + 1 }

// UpdateBiList is update_bi_list: attaches strokes[idx1..idx2] (inclusive) as
// this segment's contained stroke range, setting their ParentSeg back-link.
// Trend-line fitting (CTrendLine in the original) is out of scope; this
// method never sets SupportTrendLine or ResistanceTrendLine.
func (s *Segment) UpdateBiList(strokes []*bi.Stroke, idx1, idx2 int) {
	for i := idx1; i <= idx2; i++ {
		strokes[i].ParentSeg = s
		strokes[i].SegIdx = &s.Idx
		s.BiList = append(s.BiList, strokes[i])
	}
}
