package kline

import (
	"log/slog"

	"github.com/algomatic/chanstream/pkg/chanenum"
	"github.com/algomatic/chanstream/pkg/chanerr"
	"github.com/algomatic/chanstream/pkg/interval"
)

// List is the inclusion-resolved stream of merged bars built one raw bar at
// a time. It mirrors KLine_List.add_single_klu's merge-then-reclassify loop.
type List struct {
	bars       []*MergedBar
	lastTime   int64
	haveLast   bool
	log        *slog.Logger
}

// NewList builds an empty merged-bar list. A nil logger falls back to
// slog.Default(), matching the rest of the core's component constructors.
func NewList(log *slog.Logger) *List {
	if log == nil {
		log = slog.Default()
	}
	return &List{log: log}
}

func (l *List) Len() int             { return len(l.bars) }
func (l *List) At(i int) *MergedBar  { return l.bars[i] }
func (l *List) Last() *MergedBar     { return l.bars[len(l.bars)-1] }
func (l *List) All() []*MergedBar    { return l.bars }

// AddBar ingests one raw bar, resolving inclusion against the current tail
// merged bar and, when a new merged bar is produced, reclassifying the
// fractal of the now-penultimate merged bar. It reports whether a new merged bar
// was appended (the caller uses this to decide whether stroke/segment
// recomputation is due).
func (l *List) AddBar(b Bar) (appended bool, err error) {
	if l.haveLast && !(b.Time > l.lastTime) {
		return false, chanerr.New(chanerr.CodeKlNotMonotonic, b.Idx, b.Time, l.lastTime,
			"bar time %d is not strictly greater than last accepted time %d", b.Time, l.lastTime)
	}
	l.lastTime = b.Time
	l.haveLast = true

	if len(l.bars) == 0 {
		// Seed direction is arbitrary (spec.md): UP, matching TryAdd's
		// DirUp/DirDown-only switch so the first real COMBINE resolves.
		l.bars = append(l.bars, newMergedBar(0, b, chanenum.DirUp))
		return false, nil
	}

	tail := l.bars[len(l.bars)-1]
	dir, err := tail.c.TryAdd(b, false, interval.AllowTopEqualNone)
	if err != nil {
		return false, err
	}
	if dir == chanenum.DirCombine {
		return false, nil
	}

	next := newMergedBar(len(l.bars), b, dir)
	next.prev = tail
	tail.next = next
	l.bars = append(l.bars, next)

	if len(l.bars) >= 3 {
		l.reclassifyFractal(l.bars[len(l.bars)-3], l.bars[len(l.bars)-2], l.bars[len(l.bars)-1])
	}
	return true, nil
}

func (l *List) reclassifyFractal(prev, cur, next *MergedBar) {
	fx := interval.ClassifyFractal(
		prev.PriceHigh(), prev.PriceLow(),
		cur.PriceHigh(), cur.PriceLow(),
		next.PriceHigh(), next.PriceLow(),
		false, interval.AllowTopEqualNone,
	)
	cur.c.SetFractal(fx)
}
