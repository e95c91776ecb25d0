package engine

import (
	"testing"

	"github.com/algomatic/chanstream/pkg/kline"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return New(DefaultConfig(), nil)
}

// feed drives a whole bar series through Engine.AddBar, exactly as a live
// caller streaming bars one at a time would.
func feed(t *testing.T, e *Engine, ohlc [][4]float64) {
	t.Helper()
	for i, v := range ohlc {
		b, err := kline.NewBar(i, int64(i+1), v[0], v[1], v[2], v[3], false)
		if err != nil {
			t.Fatalf("bar %d: %v", i, err)
		}
		if err := e.AddBar(b); err != nil {
			t.Fatalf("AddBar %d: %v", i, err)
		}
	}
}

func multiSwingBars() [][4]float64 {
	var out [][4]float64
	level := 10.0
	for leg := 0; leg < 8; leg++ {
		up := leg%2 == 0
		for step := 0; step < 4; step++ {
			var o, h, l, c float64
			if up {
				o = level
				l = level - 1
				c = level + 4
				h = c + 1
				level = c
			} else {
				o = level
				h = level + 1
				c = level - 4
				l = c - 1
				level = c
			}
			out = append(out, [4]float64{o, h, l, c})
		}
	}
	return out
}

func TestEngineDrivesMergedBarsStrokesAndSegments(t *testing.T) {
	e := newTestEngine(t)
	feed(t, e, multiSwingBars())
	if e.MergedBars().Len() == 0 {
		t.Fatal("expected merged bars to be produced")
	}
	if e.Strokes().Len() == 0 {
		t.Fatal("expected at least one stroke from a long alternating swing")
	}
}

func TestEngineBatchModeDefersSegments(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StepByStep = false
	e := New(cfg, nil)
	feed(t, e, multiSwingBars())
	if e.Segments().Len() != 0 {
		t.Fatal("batch mode must not recompute segments until asked")
	}
	if err := e.RecomputeSegments(); err != nil {
		t.Fatalf("RecomputeSegments: %v", err)
	}
}

// TestEngineCombineBarDoesNotSealOrDropStrokes exercises add_single_klu's
// "issue#175" branch: a bar that combines into the existing tail merged bar
// (no new merged bar sealed) is still offered to TryAddVirtualBi in step
// mode. The bar lies strictly inside the tail, so it cannot extend anything;
// the test checks that no merged bar is sealed and no stroke is lost.
func TestEngineCombineBarDoesNotSealOrDropStrokes(t *testing.T) {
	e := newTestEngine(t)
	bars := multiSwingBars()
	feed(t, e, bars)

	mergedBefore := e.MergedBars().Len()
	strokesBefore := e.Strokes().Len()

	last := e.MergedBars().Last()
	high := last.PriceHigh() - 0.01
	low := last.PriceLow() + 0.01
	mid := (high + low) / 2

	b, err := kline.NewBar(len(bars), int64(len(bars)+1), mid, high, low, mid, false)
	if err != nil {
		t.Fatalf("building combine bar: %v", err)
	}
	if err := e.AddBar(b); err != nil {
		t.Fatalf("AddBar on combine bar: %v", err)
	}

	if e.MergedBars().Len() != mergedBefore {
		t.Fatalf("expected the interior bar to combine, not seal a new merged bar: got %d want %d",
			e.MergedBars().Len(), mergedBefore)
	}
	if e.Strokes().Len() < strokesBefore {
		t.Fatalf("stroke count unexpectedly shrank after a combine bar: got %d want >= %d",
			e.Strokes().Len(), strokesBefore)
	}
}

func TestEngineRejectsNonMonotonicTime(t *testing.T) {
	e := newTestEngine(t)
	b1, _ := kline.NewBar(0, 10, 10, 11, 9, 10, false)
	b2, _ := kline.NewBar(1, 5, 10, 11, 9, 10, false)
	if err := e.AddBar(b1); err != nil {
		t.Fatalf("first bar: %v", err)
	}
	if err := e.AddBar(b2); err == nil {
		t.Fatal("expected a non-monotonic timestamp to be rejected")
	}
}
