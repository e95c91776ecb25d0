package bi

import (
	"log/slog"

	"github.com/algomatic/chanstream/pkg/chanenum"
	"github.com/algomatic/chanstream/pkg/kline"
)

// List ("BiList") maintains the ordered, strictly-alternating stroke chain
// over a growing MergedBar chain, per spec.md §4.2.
type List struct {
	strokes []*Stroke
	lastEnd *kline.MergedBar
	config  Config
	log     *slog.Logger

	// freeMergedBars caches fractal merged bars seen before the first stroke
	// could be drawn (free_klc_lst), so tryCreateFirstBi can pair a new
	// fractal with any earlier opposite-polarity candidate, not only the most
	// recent one. Every later stroke chains from the first stroke's end.
	freeMergedBars []*kline.MergedBar
}

func NewList(cfg Config, log *slog.Logger) *List {
	if log == nil {
		log = slog.Default()
	}
	return &List{config: cfg, log: log}
}

func (l *List) Len() int         { return len(l.strokes) }
func (l *List) At(i int) *Stroke { return l.strokes[i] }
func (l *List) All() []*Stroke   { return l.strokes }
func (l *List) Last() *Stroke {
	if len(l.strokes) == 0 {
		return nil
	}
	return l.strokes[len(l.strokes)-1]
}

// Update is update_bi: klc is the penultimate merged bar (whose fractal was
// just classified), lastMB is the current tail merged bar. It reports
// whether the stroke chain changed.
func (l *List) Update(klc, lastMB *kline.MergedBar, calVirtual bool) (bool, error) {
	flag1, err := l.updateBiSure(klc)
	if err != nil {
		return false, err
	}
	if !calVirtual {
		return flag1, nil
	}
	flag2, err := l.TryAddVirtualBi(lastMB, false)
	if err != nil {
		return false, err
	}
	return flag1 || flag2, nil
}

func (l *List) lastEndKluIdx() (int, bool) {
	if len(l.strokes) == 0 {
		return 0, false
	}
	return l.strokes[len(l.strokes)-1].End().Idx, true
}

func (l *List) updateBiSure(klc *kline.MergedBar) (bool, error) {
	prevIdx, prevOK := l.lastEndKluIdx()
	if err := l.deleteVirtualBi(); err != nil {
		return false, err
	}

	if klc.Fractal() == chanenum.FractalUnknown {
		curIdx, curOK := l.lastEndKluIdx()
		return prevOK != curOK || prevIdx != curIdx, nil
	}
	if l.lastEnd == nil || len(l.strokes) == 0 {
		return l.tryCreateFirstBi(klc)
	}
	if klc.Fractal() == l.lastEnd.Fractal() {
		return l.tryUpdateEnd(klc, false)
	}
	ok, err := l.canMakeBi(klc, l.lastEnd, false)
	if err != nil {
		return false, err
	}
	if ok {
		if err := l.addNewBi(l.lastEnd, klc, true); err != nil {
			return false, err
		}
		l.lastEnd = klc
		return true, nil
	}
	ok, err = l.updatePeak(klc, false)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	curIdx, curOK := l.lastEndKluIdx()
	return prevOK != curOK || prevIdx != curIdx, nil
}

// tryCreateFirstBi is try_create_first_bi: scan the free-merged-bar cache
// for a candidate of opposite fractal polarity that can form the first
// stroke with klc.
func (l *List) tryCreateFirstBi(klc *kline.MergedBar) (bool, error) {
	for _, free := range l.freeMergedBars {
		if free.Fractal() == klc.Fractal() {
			continue
		}
		ok, err := l.canMakeBi(klc, free, false)
		if err != nil {
			return false, err
		}
		if ok {
			if err := l.addNewBi(free, klc, true); err != nil {
				return false, err
			}
			l.lastEnd = klc
			return true, nil
		}
	}
	l.freeMergedBars = append(l.freeMergedBars, klc)
	l.lastEnd = klc
	return false, nil
}

func (l *List) addNewBi(pre, cur *kline.MergedBar, isSure bool) error {
	s, err := newStroke(len(l.strokes), pre, cur, isSure)
	if err != nil {
		return err
	}
	if len(l.strokes) > 0 {
		prevStroke := l.strokes[len(l.strokes)-1]
		prevStroke.Next = s
		s.Prev = prevStroke
	}
	l.strokes = append(l.strokes, s)
	return nil
}

// canMakeBi is can_make_bi.
func (l *List) canMakeBi(klc, lastEnd *kline.MergedBar, forVirtual bool) (bool, error) {
	satisfied := l.config.Algo == chanenum.BiAlgoFX || l.satisfyBiSpan(klc, lastEnd)
	if !satisfied {
		return false, nil
	}
	if !l.checkFxValid(lastEnd, klc, l.config.FxCheck, forVirtual) {
		return false, nil
	}
	if l.config.EndIsPeak && !endIsPeak(lastEnd, klc) {
		return false, nil
	}
	return true, nil
}

// satisfyBiSpan is satisfy_bi_span.
func (l *List) satisfyBiSpan(klc, lastEnd *kline.MergedBar) bool {
	span := l.klcSpan(klc, lastEnd)
	if l.config.IsStrict {
		return span >= 4
	}
	unitCount := 0
	tmp := lastEnd.Next()
	for tmp != nil {
		unitCount += len(tmp.Bars())
		if tmp.Next() == nil {
			return false
		}
		if tmp.Next().Idx < klc.Idx {
			tmp = tmp.Next()
		} else {
			break
		}
	}
	return span >= 3 && unitCount >= 3
}

// klcSpan is get_klc_span.
func (l *List) klcSpan(klc, lastEnd *kline.MergedBar) int {
	span := klc.Idx - lastEnd.Idx
	if !l.config.GapAsKl {
		return span
	}
	if span >= 4 {
		return span
	}
	tmp := lastEnd
	for tmp != nil && tmp.Idx < klc.Idx {
		if tmp.HasGapWithNext() {
			span++
		}
		tmp = tmp.Next()
	}
	return span
}

// checkFxValid is the fractal-validity predicate dispatched by bi_fx_check.
// lastEnd must be a classified fractal merged bar; candidate is the
// prospective opposite-polarity endpoint.
//
// original_source's KLine.check_fx_valid was not retrieved (only
// KLine_Combiner.py/KLine_List.py/KLine_Unit.py were kept); this
// reimplements the four named methods from spec.md §4.2's description and
// the conventional chan-theory break-strength ladder: STRICT requires a
// full break past the fractal's own bound, LOSS only past its near bound,
// HALF past its midpoint. TOTALLY applies the same check as STRICT. With
// forVirtual set, every method applies the STRICT check.
func (l *List) checkFxValid(lastEnd, candidate *kline.MergedBar, method chanenum.FXCheckMethod, forVirtual bool) bool {
	if lastEnd.Fractal() == chanenum.FractalTop {
		if method == chanenum.FXCheckStrict || forVirtual {
			return candidate.PriceLow() < lastEnd.PriceLow()
		}
		switch method {
		case chanenum.FXCheckLoss:
			return candidate.PriceLow() < lastEnd.PriceHigh()
		case chanenum.FXCheckHalf:
			return candidate.PriceLow() < (lastEnd.PriceHigh()+lastEnd.PriceLow())/2
		default: // TOTALLY
			return candidate.PriceLow() < lastEnd.PriceLow()
		}
	}
	// BOTTOM
	if method == chanenum.FXCheckStrict || forVirtual {
		return candidate.PriceHigh() > lastEnd.PriceHigh()
	}
	switch method {
	case chanenum.FXCheckLoss:
		return candidate.PriceHigh() > lastEnd.PriceLow()
	case chanenum.FXCheckHalf:
		return candidate.PriceHigh() > (lastEnd.PriceHigh()+lastEnd.PriceLow())/2
	default: // TOTALLY
		return candidate.PriceHigh() > lastEnd.PriceHigh()
	}
}

// tryUpdateEnd is try_update_end.
func (l *List) tryUpdateEnd(klc *kline.MergedBar, forVirtual bool) (bool, error) {
	if len(l.strokes) == 0 {
		return false, nil
	}
	last := l.strokes[len(l.strokes)-1]
	checkTop := func() bool {
		if forVirtual {
			return klc.Dir() == chanenum.DirUp
		}
		return klc.Fractal() == chanenum.FractalTop
	}
	checkBottom := func() bool {
		if forVirtual {
			return klc.Dir() == chanenum.DirDown
		}
		return klc.Fractal() == chanenum.FractalBottom
	}
	match := (last.IsUp() && checkTop() && klc.PriceHigh() >= last.EndValue()) ||
		(last.IsDown() && checkBottom() && klc.PriceLow() <= last.EndValue())
	if !match {
		return false, nil
	}
	var err error
	if forVirtual {
		err = last.updateVirtualEnd(klc)
	} else {
		err = last.updateNewEnd(klc)
	}
	if err != nil {
		return false, err
	}
	l.lastEnd = klc
	return true, nil
}

// canUpdatePeak is can_update_peak — including the asymmetric short-circuit
// documented in DESIGN.md's Open Question §9(b): bi_allow_sub_peak=true
// disables peak updates entirely, matching the original.
func (l *List) canUpdatePeak(klc *kline.MergedBar) bool {
	if l.config.AllowSubPeak || len(l.strokes) < 2 {
		return false
	}
	last := l.strokes[len(l.strokes)-1]
	prev := l.strokes[len(l.strokes)-2]
	if last.IsDown() && klc.PriceHigh() < last.BeginValue() {
		return false
	}
	if last.IsUp() && klc.PriceLow() > last.BeginValue() {
		return false
	}
	if !endIsPeak(prev.Begin(), klc) {
		return false
	}
	if last.IsDown() && last.EndValue() < prev.BeginValue() {
		return false
	}
	if last.IsUp() && last.EndValue() > prev.BeginValue() {
		return false
	}
	return true
}

// updatePeak is update_peak.
func (l *List) updatePeak(klc *kline.MergedBar, forVirtual bool) (bool, error) {
	if !l.canUpdatePeak(klc) {
		return false, nil
	}
	tmpLast := l.strokes[len(l.strokes)-1]
	l.strokes = l.strokes[:len(l.strokes)-1]
	ok, err := l.tryUpdateEnd(klc, forVirtual)
	if err != nil {
		l.strokes = append(l.strokes, tmpLast)
		return false, err
	}
	if !ok {
		l.strokes = append(l.strokes, tmpLast)
		return false, nil
	}
	if forVirtual {
		l.strokes[len(l.strokes)-1].SureEnd = append(l.strokes[len(l.strokes)-1].SureEnd, tmpLast.End())
	}
	return true, nil
}

// deleteVirtualBi is delete_virtual_bi.
func (l *List) deleteVirtualBi() error {
	if len(l.strokes) > 0 && !l.strokes[len(l.strokes)-1].IsSure {
		last := l.strokes[len(l.strokes)-1]
		sureEnds := last.SureEnd
		if len(sureEnds) > 0 {
			if err := last.restoreFromVirtualEnd(sureEnds[0]); err != nil {
				return err
			}
			l.lastEnd = last.End()
			for _, se := range sureEnds[1:] {
				if err := l.addNewBi(l.lastEnd, se, true); err != nil {
					return err
				}
				l.lastEnd = l.strokes[len(l.strokes)-1].End()
			}
		} else {
			l.strokes = l.strokes[:len(l.strokes)-1]
		}
		if len(l.strokes) > 0 {
			l.lastEnd = l.strokes[len(l.strokes)-1].End()
		} else {
			l.lastEnd = nil
		}
	}
	if len(l.strokes) > 0 {
		l.strokes[len(l.strokes)-1].Next = nil
	}
	return nil
}

// TryAddVirtualBi is try_add_virtual_bi.
func (l *List) TryAddVirtualBi(klc *kline.MergedBar, needDelEnd bool) (bool, error) {
	if needDelEnd {
		if err := l.deleteVirtualBi(); err != nil {
			return false, err
		}
	}
	if len(l.strokes) == 0 {
		return false, nil
	}
	last := l.strokes[len(l.strokes)-1]
	if klc.Idx == last.End().Idx {
		return false, nil
	}
	if (last.IsUp() && klc.PriceHigh() >= last.End().PriceHigh()) ||
		(last.IsDown() && klc.PriceLow() <= last.End().PriceLow()) {
		if err := last.updateVirtualEnd(klc); err != nil {
			return false, err
		}
		return true, nil
	}
	tmp := klc
	for tmp != nil && tmp.Idx > last.End().Idx {
		ok, err := l.canMakeBi(tmp, last.End(), true)
		if err != nil {
			return false, err
		}
		if ok {
			if err := l.addNewBi(l.lastEnd, tmp, false); err != nil {
				return false, err
			}
			return true, nil
		}
		ok, err = l.updatePeak(tmp, true)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		tmp = tmp.Prev()
	}
	return false, nil
}

// endIsPeak is the package-level end_is_peak helper: walking merged bars
// strictly between last_end and cur_end, none may exceed cur_end's bound on
// the side opposite last_end's fractal.
func endIsPeak(lastEnd, curEnd *kline.MergedBar) bool {
	switch lastEnd.Fractal() {
	case chanenum.FractalBottom:
		threshold := curEnd.PriceHigh()
		for k := lastEnd.Next(); k != nil; k = k.Next() {
			if k.Idx >= curEnd.Idx {
				return true
			}
			if k.PriceHigh() > threshold {
				return false
			}
		}
	case chanenum.FractalTop:
		threshold := curEnd.PriceLow()
		for k := lastEnd.Next(); k != nil; k = k.Next() {
			if k.Idx >= curEnd.Idx {
				return true
			}
			if k.PriceLow() < threshold {
				return false
			}
		}
	}
	return true
}
