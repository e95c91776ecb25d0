package seg

import (
	"log/slog"
	"math"

	"github.com/algomatic/chanstream/pkg/bi"
	"github.com/algomatic/chanstream/pkg/chanenum"
	"github.com/algomatic/chanstream/pkg/chanerr"
)

// List ("SegListChan"/"SegListComm" merged into one concrete manager, since
// this module implements a single segment algorithm rather than the
// original's abstract-base/one-concrete-subclass split) maintains an
// ordered segment chain over a growing stroke list.
type List struct {
	segments []*Segment
	config   Config
	log      *slog.Logger
}

func NewList(cfg Config, log *slog.Logger) *List {
	if log == nil {
		log = slog.Default()
	}
	return &List{config: cfg, log: log}
}

func (l *List) Len() int          { return len(l.segments) }
func (l *List) At(i int) *Segment { return l.segments[i] }
func (l *List) All() []*Segment   { return l.segments }
func (l *List) Last() *Segment {
	if len(l.segments) == 0 {
		return nil
	}
	return l.segments[len(l.segments)-1]
}

func (l *List) ExistSureSeg() bool {
	for _, s := range l.segments {
		if s.IsSure {
			return true
		}
	}
	return false
}

// LeftBiBreak is left_bi_break: whether any stroke after the last confirmed
// segment's end has broken past that end's extreme.
func (l *List) LeftBiBreak(strokes []*bi.Stroke) bool {
	if len(l.segments) == 0 {
		return false
	}
	lastEnd := l.segments[len(l.segments)-1].EndStroke
	for _, s := range strokes {
		if s.Idx <= lastEnd.Idx {
			continue
		}
		if lastEnd.IsUp() && s.PriceHigh() > lastEnd.PriceHigh() {
			return true
		}
		if lastEnd.IsDown() && s.PriceLow() < lastEnd.PriceLow() {
			return true
		}
	}
	return false
}

// Update is SegListChan.update: recompute confirmed segments over newly
// available strokes, then assign the residual tail.
func (l *List) Update(strokes []*bi.Stroke) error {
	if len(strokes) == 0 {
		return nil
	}
	l.doInit()
	beginIdx := 0
	if len(l.segments) > 0 {
		beginIdx = l.segments[len(l.segments)-1].EndStroke.Idx + 1
	}
	if err := l.calSegSure(strokes, beginIdx); err != nil {
		return err
	}
	return l.collectLeftSeg(strokes)
}

// doInit pops trailing non-sure segments (unlinking their strokes'
// ParentSeg back-links), then, if the new last segment's terminating eigen
// fractal's third slot ends on an unsure stroke, pops that segment too —
// its feature-sequence bounds could still move.
func (l *List) doInit() {
	for len(l.segments) > 0 && !l.segments[len(l.segments)-1].IsSure {
		last := l.segments[len(l.segments)-1]
		for _, s := range last.BiList {
			s.ParentSeg = nil
			s.SegIdx = nil
		}
		if last.Prev != nil {
			last.Prev.Next = nil
		}
		l.segments = l.segments[:len(l.segments)-1]
	}
	if len(l.segments) == 0 {
		return
	}
	last := l.segments[len(l.segments)-1]
	if last.EigenFx == nil || last.EigenFx.ele[2] == nil {
		return
	}
	if !last.EigenFx.ele[2].LastStroke().IsSure {
		l.segments = l.segments[:len(l.segments)-1]
	}
}

// calSegSure is cal_seg_sure: feed strokes[beginIdx:] into a pair of
// EigenFractal machines (one seeking each direction) until one confirms a
// terminating fractal, then hand off to treatFxEigen.
func (l *List) calSegSure(strokes []*bi.Stroke, beginIdx int) error {
	upEigen := NewEigenFractal(chanenum.BiUp, true)
	downEigen := NewEigenFractal(chanenum.BiDown, true)
	var lastSegDir *chanenum.BiDir
	if len(l.segments) > 0 {
		d := l.segments[len(l.segments)-1].Dir
		lastSegDir = &d
	}
	noSegYet := len(l.segments) == 0
	for i := beginIdx; i < len(strokes); i++ {
		s := strokes[i]
		var fxEigen *EigenFractal
		if s.IsDown() && (lastSegDir == nil || *lastSegDir != chanenum.BiUp) {
			ok, err := upEigen.Add(s)
			if err != nil {
				return err
			}
			if ok {
				fxEigen = upEigen
			}
		} else if s.IsUp() && (lastSegDir == nil || *lastSegDir != chanenum.BiDown) {
			ok, err := downEigen.Add(s)
			if err != nil {
				return err
			}
			if ok {
				fxEigen = downEigen
			}
		}
		if noSegYet {
			if upEigen.ele[1] != nil && s.IsDown() {
				d := chanenum.BiDown
				lastSegDir = &d
				downEigen.clear()
			} else if downEigen.ele[1] != nil && s.IsUp() {
				upEigen.clear()
				d := chanenum.BiUp
				lastSegDir = &d
			}
			if upEigen.ele[1] == nil && lastSegDir != nil && *lastSegDir == chanenum.BiDown && s.Dir == chanenum.BiDown {
				lastSegDir = nil
			} else if downEigen.ele[1] == nil && lastSegDir != nil && *lastSegDir == chanenum.BiUp && s.Dir == chanenum.BiUp {
				lastSegDir = nil
			}
		}
		if fxEigen != nil {
			return l.treatFxEigen(fxEigen, strokes)
		}
	}
	return nil
}

// treatFxEigen is treat_fx_eigen.
func (l *List) treatFxEigen(eigen *EigenFractal, strokes []*bi.Stroke) error {
	testResult, err := eigen.CanBeEnd(strokes)
	if err != nil {
		return err
	}
	endBiIdx := eigen.GetPeakBiIdx()
	if testResult == nil || *testResult {
		isTrue := testResult != nil
		ok, err := l.addNewSeg(strokes, endBiIdx, isTrue && eigen.AllBiIsSure(), nil, true, "normal")
		if err != nil {
			return err
		}
		if !ok {
			return l.calSegSure(strokes, endBiIdx+1)
		}
		l.segments[len(l.segments)-1].EigenFx = eigen
		if isTrue {
			return l.calSegSure(strokes, endBiIdx+1)
		}
		return nil
	}
	return l.calSegSure(strokes, eigen.lst[1].Idx)
}

// addNewSeg is add_new_seg: the single place spec.md §9(a) allows a
// SegEndValueError to be silently swallowed, and only when the segment
// list is still empty (first bootstrap segment).
func (l *List) addNewSeg(strokes []*bi.Stroke, endBiIdx int, isSure bool, segDir *chanenum.BiDir, splitFirstSeg bool, reason string) (bool, error) {
	err := l.tryAddNewSeg(strokes, endBiIdx, isSure, segDir, splitFirstSeg, reason)
	if err != nil {
		if chanerr.Is(err, chanerr.CodeSegEndValue) && len(l.segments) == 0 {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// tryAddNewSeg is try_add_new_seg, including the split_first_seg bootstrap
// clause: when the very first segment would span from index 0, check
// whether an intervening peak stroke should instead terminate a shorter
// first segment, retroactively splitting it in two.
func (l *List) tryAddNewSeg(strokes []*bi.Stroke, endBiIdx int, isSure bool, segDir *chanenum.BiDir, splitFirstSeg bool, reason string) error {
	if len(l.segments) == 0 && splitFirstSeg && endBiIdx >= 3 {
		sub := make([]*bi.Stroke, endBiIdx-2)
		for i := range sub {
			sub[i] = strokes[endBiIdx-3-i]
		}
		if peak := findPeakBi(sub, strokes[endBiIdx].IsDown()); peak != nil {
			cond := (peak.IsDown() && (peak.PriceLow() < strokes[0].PriceLow() || peak.Idx == 0)) ||
				(peak.IsUp() && (peak.PriceHigh() > strokes[0].PriceHigh() || peak.Idx == 0))
			if cond {
				d := peak.Dir
				if _, err := l.addNewSeg(strokes, peak.Idx, false, &d, true, "split_first_1st"); err != nil {
					return err
				}
				if _, err := l.addNewSeg(strokes, endBiIdx, false, nil, true, "split_first_2nd"); err != nil {
					return err
				}
				return nil
			}
		}
	}
	bi1Idx := 0
	if len(l.segments) > 0 {
		bi1Idx = l.segments[len(l.segments)-1].EndStroke.Idx + 1
	}
	newSeg, err := NewSegment(len(l.segments), strokes[bi1Idx], strokes[endBiIdx], chanenum.LineNewGenerated, isSure, segDir, reason)
	if err != nil {
		return err
	}
	l.segments = append(l.segments, newSeg)
	if len(l.segments) >= 2 {
		prev := l.segments[len(l.segments)-2]
		prev.Next = newSeg
		newSeg.Prev = prev
	}
	newSeg.UpdateBiList(strokes, bi1Idx, endBiIdx)
	return nil
}

// collectLeftSeg is collect_left_seg: assigns the residual tail once
// cal_seg_sure exhausts the stroke list without confirming a final segment.
func (l *List) collectLeftSeg(strokes []*bi.Stroke) error {
	if len(l.segments) == 0 {
		return l.collectFirstSeg(strokes)
	}
	return l.collectSegs(strokes)
}

// collectFirstSeg is collect_first_seg: bootstrap a tentative first segment
// when no sure segment has ever been found.
func (l *List) collectFirstSeg(strokes []*bi.Stroke) error {
	if len(strokes) < 3 {
		return nil
	}
	switch l.config.LeftMethod {
	case chanenum.LeftSegPeak:
		high, low := math.Inf(-1), math.Inf(1)
		for _, s := range strokes {
			high = math.Max(high, s.PriceHigh())
			low = math.Min(low, s.PriceLow())
		}
		begin := strokes[0].BeginValue()
		if math.Abs(high-begin) >= math.Abs(low-begin) {
			if peak := findPeakBi(strokes, true); peak != nil && peak.Idx > 0 {
				d := chanenum.BiUp
				if _, err := l.addNewSeg(strokes, peak.Idx, false, &d, false, "0seg_find_high"); err != nil {
					return err
				}
			}
		} else {
			if peak := findPeakBi(strokes, false); peak != nil && peak.Idx > 0 {
				d := chanenum.BiDown
				if _, err := l.addNewSeg(strokes, peak.Idx, false, &d, false, "0seg_find_low"); err != nil {
					return err
				}
			}
		}
		return l.collectLeftAsSeg(strokes)
	case chanenum.LeftSegAll:
		last := strokes[len(strokes)-1]
		d := chanenum.BiDown
		if last.EndValue() >= strokes[0].BeginValue() {
			d = chanenum.BiUp
		}
		_, err := l.addNewSeg(strokes, last.Idx, false, &d, false, "0seg_collect_all")
		return err
	default:
		return chanerr.New(chanerr.CodeSegEigen, 0, 0, 0, "unknown seg left_method %v", l.config.LeftMethod)
	}
}

// collectLeftSegPeakMethod is collect_left_seg_peak_method.
func (l *List) collectLeftSegPeakMethod(lastSegEndBi *bi.Stroke, strokes []*bi.Stroke) error {
	tail := strokes[min(lastSegEndBi.Idx+3, len(strokes)):]
	if lastSegEndBi.IsDown() {
		if peak := findPeakBi(tail, true); peak != nil && peak.Idx-lastSegEndBi.Idx >= 3 {
			d := chanenum.BiUp
			if _, err := l.addNewSeg(strokes, peak.Idx, false, &d, true, "collectleft_find_high"); err != nil {
				return err
			}
		}
	} else {
		if peak := findPeakBi(tail, false); peak != nil && peak.Idx-lastSegEndBi.Idx >= 3 {
			d := chanenum.BiDown
			if _, err := l.addNewSeg(strokes, peak.Idx, false, &d, true, "collectleft_find_low"); err != nil {
				return err
			}
		}
	}
	return l.collectLeftAsSeg(strokes)
}

// collectSegs is collect_segs: extend or re-collect the residual tail once
// at least one segment already exists.
func (l *List) collectSegs(strokes []*bi.Stroke) error {
	lastBi := strokes[len(strokes)-1]
	lastSegEndBi := l.segments[len(l.segments)-1].EndStroke
	if lastBi.Idx-lastSegEndBi.Idx < 3 {
		return nil
	}
	tail := strokes[min(lastSegEndBi.Idx+3, len(strokes)):]
	switch {
	case lastSegEndBi.IsDown() && lastBi.EndValue() <= lastSegEndBi.EndValue():
		if peak := findPeakBi(tail, true); peak != nil {
			d := chanenum.BiUp
			if _, err := l.addNewSeg(strokes, peak.Idx, false, &d, true, "collectleft_find_high_force"); err != nil {
				return err
			}
			return l.collectLeftSeg(strokes)
		}
		return nil
	case lastSegEndBi.IsUp() && lastBi.EndValue() >= lastSegEndBi.EndValue():
		if peak := findPeakBi(tail, false); peak != nil {
			d := chanenum.BiDown
			if _, err := l.addNewSeg(strokes, peak.Idx, false, &d, true, "collectleft_find_low_force"); err != nil {
				return err
			}
			return l.collectLeftSeg(strokes)
		}
		return nil
	case l.config.LeftMethod == chanenum.LeftSegAll:
		return l.collectLeftAsSeg(strokes)
	case l.config.LeftMethod == chanenum.LeftSegPeak:
		return l.collectLeftSegPeakMethod(lastSegEndBi, strokes)
	default:
		return chanerr.New(chanerr.CodeSegEigen, 0, 0, 0, "unknown seg left_method %v", l.config.LeftMethod)
	}
}

// collectLeftAsSeg is collect_left_as_seg: treat the remaining strokes as
// one more tentative segment.
func (l *List) collectLeftAsSeg(strokes []*bi.Stroke) error {
	lastBi := strokes[len(strokes)-1]
	lastSegEndBi := lastBi
	if len(l.segments) > 0 {
		lastSegEndBi = l.segments[len(l.segments)-1].EndStroke
	}
	if lastSegEndBi.Idx+1 >= len(strokes) {
		if len(l.segments) == 0 {
			_, err := l.addNewSeg(strokes, lastBi.Idx, false, nil, false, "add_bi_to_last_seg")
			return err
		}
		return nil
	}
	if lastSegEndBi.Dir == lastBi.Dir {
		_, err := l.addNewSeg(strokes, lastBi.Idx-1, false, nil, true, "collect_left_same_dir")
		return err
	}
	_, err := l.addNewSeg(strokes, lastBi.Idx, false, nil, true, "collect_left_diff_dir")
	return err
}

// findPeakBi is the module-level FindPeakBi: the most extreme (high or low)
// strictly-monotonic-run stroke in strokes, skipping candidates whose
// two-strokes-back predecessor already reached further in the same
// direction (the "already superseded" guard).
func findPeakBi(strokes []*bi.Stroke, isHigh bool) *bi.Stroke {
	peakVal := math.Inf(-1)
	if !isHigh {
		peakVal = math.Inf(1)
	}
	var peak *bi.Stroke
	for _, s := range strokes {
		cond := (isHigh && s.EndValue() >= peakVal && s.IsUp()) || (!isHigh && s.EndValue() <= peakVal && s.IsDown())
		if !cond {
			continue
		}
		if s.Prev != nil && s.Prev.Prev != nil {
			pp := s.Prev.Prev
			if (isHigh && pp.EndValue() > s.EndValue()) || (!isHigh && pp.EndValue() < s.EndValue()) {
				continue
			}
		}
		peakVal = s.EndValue()
		peak = s
	}
	return peak
}
