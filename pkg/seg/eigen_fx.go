package seg

import (
	"github.com/algomatic/chanstream/pkg/bi"
	"github.com/algomatic/chanstream/pkg/chanenum"
	"github.com/algomatic/chanstream/pkg/chanerr"
	"github.com/algomatic/chanstream/pkg/interval"
)

// EigenFractal ("CEigenFX") hunts for the stroke at which a segment of
// direction Dir terminates, by feeding it the strokes of the OPPOSITE
// direction and watching for a fractal in the 3-slot feature-sequence
// buffer.
type EigenFractal struct {
	Dir             chanenum.BiDir
	excludeIncluded bool
	elementDir      chanenum.Direction

	ele      [3]*FeatureElement
	lst      []*bi.Stroke
	whichEle int

	LastEvidenceBi *bi.Stroke
}

// NewEigenFractal seeds a fresh 3-slot buffer. excludeIncluded matches
// spec.md §4.3's "inclusion handling" toggle — true (the default used by
// pkg/seg.List) makes resets replay history through the buffer instead of
// the cheaper slot-shift used when inclusion handling is off.
func NewEigenFractal(dir chanenum.BiDir, excludeIncluded bool) *EigenFractal {
	elementDir := chanenum.DirDown
	if dir == chanenum.BiUp {
		elementDir = chanenum.DirUp
	}
	return &EigenFractal{Dir: dir, excludeIncluded: excludeIncluded, elementDir: elementDir, whichEle: -1}
}

func (ex *EigenFractal) IsUp() bool   { return ex.Dir == chanenum.BiUp }
func (ex *EigenFractal) IsDown() bool { return ex.Dir == chanenum.BiDown }

// Add feeds one opposite-polarity stroke and reports whether a
// segment-terminating fractal is now confirmed at ele[1].
func (ex *EigenFractal) Add(s *bi.Stroke) (bool, error) {
	ex.lst = append(ex.lst, s)
	switch {
	case ex.ele[0] == nil:
		return ex.treatFirstEle(s), nil
	case ex.ele[1] == nil:
		return ex.treatSecondEle(s)
	case ex.ele[2] == nil:
		return ex.treatThirdEle(s)
	default:
		return false, chanerr.New(chanerr.CodeSegEigen, s.Idx, 0, 0,
			"eigen fractal fed a stroke after all three slots are populated without a reset")
	}
}

func (ex *EigenFractal) treatFirstEle(s *bi.Stroke) bool {
	ex.ele[0] = newFeatureElement(s, ex.elementDir)
	ex.whichEle = 0
	return false
}

func (ex *EigenFractal) treatSecondEle(s *bi.Stroke) (bool, error) {
	dir, err := ex.ele[0].tryAdd(s, ex.excludeIncluded, interval.AllowTopEqualNone)
	if err != nil {
		return false, err
	}
	if dir != chanenum.DirCombine {
		ex.ele[1] = newFeatureElement(s, ex.elementDir)
		ex.whichEle = 1
		if (ex.IsUp() && ex.ele[1].PriceHigh() < ex.ele[0].PriceHigh()) ||
			(ex.IsDown() && ex.ele[1].PriceLow() > ex.ele[0].PriceLow()) {
			return ex.reset()
		}
	}
	return false, nil
}

func (ex *EigenFractal) treatThirdEle(s *bi.Stroke) (bool, error) {
	ex.LastEvidenceBi = s
	allowTopEqual := interval.AllowTopEqualNone
	if ex.excludeIncluded {
		if s.IsDown() {
			allowTopEqual = interval.AllowTopEqualTop
		} else {
			allowTopEqual = interval.AllowTopEqualBottom
		}
	}
	dir, err := ex.ele[1].tryAdd(s, false, allowTopEqual)
	if err != nil {
		return false, err
	}
	if dir == chanenum.DirCombine {
		return false, nil
	}
	ex.ele[2] = newFeatureElement(s, dir)
	ex.whichEle = 2
	brk, err := ex.actualBreak()
	if err != nil {
		return false, err
	}
	if !brk {
		return ex.reset()
	}
	fx := interval.ClassifyFractal(
		ex.ele[0].PriceHigh(), ex.ele[0].PriceLow(),
		ex.ele[1].PriceHigh(), ex.ele[1].PriceLow(),
		ex.ele[2].PriceHigh(), ex.ele[2].PriceLow(),
		ex.excludeIncluded, allowTopEqual,
	)
	ex.ele[1].c.SetFractal(fx)
	ex.ele[1].Gap = ex.ele[0].PriceLow() > ex.ele[1].PriceHigh() || ex.ele[0].PriceHigh() < ex.ele[1].PriceLow()

	isFx := (ex.IsUp() && fx == chanenum.FractalTop) || (ex.IsDown() && fx == chanenum.FractalBottom)
	if isFx {
		return true, nil
	}
	_, err = ex.reset()
	return false, err
}

// reset is the Python reset(): retains stroke history from position 1
// onward and replays it when inclusion handling is on; otherwise shifts
// [ele1, ele2] -> [ele0, ele1] and drops strokes preceding the new ele0.
func (ex *EigenFractal) reset() (bool, error) {
	ex.whichEle = -1
	tail := append([]*bi.Stroke(nil), ex.lst[1:]...)
	if ex.excludeIncluded {
		ex.clear()
		for _, s := range tail {
			ok, err := ex.Add(s)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
	ele2BeginIdx := ex.ele[1].Strokes()[0].Idx
	ex.ele[0], ex.ele[1], ex.ele[2] = ex.ele[1], ex.ele[2], nil
	filtered := ex.lst[:0:0]
	for _, s := range tail {
		if s.Idx >= ele2BeginIdx {
			filtered = append(filtered, s)
		}
	}
	ex.lst = filtered
	return false, nil
}

func (ex *EigenFractal) clear() {
	ex.ele = [3]*FeatureElement{}
	ex.lst = nil
}

// GetPeakBiIdx is the segment-terminating stroke's idx, per ele[1]'s peak.
func (ex *EigenFractal) GetPeakBiIdx() int {
	return ex.ele[1].GetPeakBiIdx(ex.IsUp())
}

// AllBiIsSure is all_bi_is_sure: false if any absorbed stroke is unsure,
// otherwise the sureness of the witness stroke that proved the break.
func (ex *EigenFractal) AllBiIsSure() bool {
	for _, s := range ex.lst {
		if !s.IsSure {
			return false
		}
	}
	if ex.LastEvidenceBi == nil {
		return true
	}
	return ex.LastEvidenceBi.IsSure
}

// actualBreak is actual_break: guards against ele[2] being a spurious
// non-break caused purely by inclusion merging; with exclude_included off
// it's always satisfied (the caller never needs this safety net).
func (ex *EigenFractal) actualBreak() (bool, error) {
	if !ex.excludeIncluded {
		return true, nil
	}
	lastE1 := ex.ele[1].LastStroke()
	if (ex.IsUp() && ex.ele[2].PriceLow() < lastE1.PriceLow()) ||
		(ex.IsDown() && ex.ele[2].PriceHigh() > lastE1.PriceHigh()) {
		return true, nil
	}
	if ex.ele[2].Len() != 1 {
		return false, nil
	}
	e2Stroke := ex.ele[2].Strokes()[0]
	if e2Stroke.Next != nil && e2Stroke.Next.Next != nil {
		follow := e2Stroke.Next.Next
		if e2Stroke.IsDown() && follow.PriceLow() < e2Stroke.PriceLow() {
			ex.LastEvidenceBi = follow
			return true, nil
		}
		if e2Stroke.IsUp() && follow.PriceHigh() > e2Stroke.PriceHigh() {
			ex.LastEvidenceBi = follow
			return true, nil
		}
	}
	return false, nil
}

// CanBeEnd is can_be_end. Without a gap at ele[1] it returns true. With a
// gap it searches for a revert fractal from two strokes past the end stroke:
// true when one is found, nil ("reverse fractal sought to the tail without
// proof", treated by the caller as a tentative end) when the strokes run out.
// It never returns false: findRevertFx does not consult the end stroke's
// peak or ele[0]'s bound, so no breaking stroke stops the search early.
func (ex *EigenFractal) CanBeEnd(strokes []*bi.Stroke) (*bool, error) {
	if !ex.ele[1].Gap {
		t := true
		return &t, nil
	}
	endIdx := ex.GetPeakBiIdx()
	threshold := strokes[endIdx].EndValue()
	breakThreshold := ex.ele[0].PriceHigh()
	if ex.IsUp() {
		breakThreshold = ex.ele[0].PriceLow()
	}
	return findRevertFx(strokes, endIdx+2, threshold, breakThreshold)
}

// findRevertFx is find_revert_fx, using the "common combine" simplification
// the original settles on (COMMON_COMBINE=True): a revert fractal found at
// all is treated as sufficient proof, without additionally checking
// can_be_end recursively on it. threshold and breakThreshold are accepted
// but not used; the result is true or nil, never false.
func findRevertFx(strokes []*bi.Stroke, beginIdx int, threshold, breakThreshold float64) (*bool, error) {
	if beginIdx >= len(strokes) {
		return nil, nil
	}
	firstDir := strokes[beginIdx].Dir
	seekDir := firstDir.Opposite()
	fx := NewEigenFractal(seekDir, false)
	for i := beginIdx; i < len(strokes); i += 2 {
		ok, err := fx.Add(strokes[i])
		if err != nil {
			return nil, err
		}
		if ok {
			t := true
			return &t, nil
		}
	}
	return nil, nil
}
