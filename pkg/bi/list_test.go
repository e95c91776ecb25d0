package bi

import (
	"testing"

	"github.com/algomatic/chanstream/pkg/kline"
)

// driveBars feeds a zigzag price series through a merged-bar list and a
// stroke list, updating strokes on every bar that seals a new merged bar as
// pkg/engine's AddBar does, but without virtual strokes (calVirtual=false).
// It returns the stroke list for inspection.
func driveBars(t *testing.T, cfg Config, ohlc [][4]float64) (*kline.List, *List) {
	t.Helper()
	kl := kline.NewList(nil)
	bl := NewList(cfg, nil)
	for i, v := range ohlc {
		b, err := kline.NewBar(i, int64(i+1), v[0], v[1], v[2], v[3], false)
		if err != nil {
			t.Fatalf("bar %d: %v", i, err)
		}
		appended, err := kl.AddBar(b)
		if err != nil {
			t.Fatalf("AddBar %d: %v", i, err)
		}
		if appended && kl.Len() >= 3 {
			if _, err := bl.Update(kl.At(kl.Len()-2), kl.Last(), false); err != nil {
				t.Fatalf("stroke update at %d: %v", i, err)
			}
		}
	}
	return kl, bl
}

// zigzag builds a clean up-down-up-down price path wide enough to satisfy
// the strict 4-span stroke rule at every leg.
func zigzag() [][4]float64 {
	return [][4]float64{
		{11.5, 12, 10, 10.5},
		{9.5, 10, 8, 8.5}, // falling
		{7.5, 8, 6, 6.5},  // trough
		{7.5, 9, 7, 8.5},
		{8.5, 10, 8, 9.5},
		{9.5, 11, 9, 10.5},
		{10.5, 12, 10, 11.5}, // peak
		{10.5, 11, 9, 9.5},
		{9.5, 10, 8, 8.5},
		{8.5, 9, 7, 7.5},
		{7.5, 8, 6, 6.5}, // second trough
		{7.5, 9, 7, 8.5},
		{8.5, 10, 8, 9.5},
		{9.5, 11, 9, 10.5},
		{10.5, 12, 10, 11.5}, // second peak
		{10.5, 11, 9, 9.5},
	}
}

func TestStrokeListFormsAlternatingStrokes(t *testing.T) {
	cfg := DefaultConfig()
	_, bl := driveBars(t, cfg, zigzag())
	if bl.Len() == 0 {
		t.Fatal("expected at least one stroke from a clear zigzag")
	}
	for i := 1; i < bl.Len(); i++ {
		if bl.At(i).Dir == bl.At(i-1).Dir {
			t.Fatalf("stroke %d has same direction as stroke %d: %v", i, i-1, bl.At(i).Dir)
		}
	}
}

func TestStrokeIdxMatchesPosition(t *testing.T) {
	cfg := DefaultConfig()
	_, bl := driveBars(t, cfg, zigzag())
	for i := 0; i < bl.Len(); i++ {
		if bl.At(i).Idx != i {
			t.Errorf("stroke at position %d has Idx=%d", i, bl.At(i).Idx)
		}
	}
}

func TestEndIsPeakMonotonicScan(t *testing.T) {
	kl := kline.NewList(nil)
	bars := [][4]float64{
		{10, 11, 9, 10},
		{10, 15, 10, 14}, // becomes the TOP fractal
		{12, 13, 8, 9},
		{9, 12, 9, 11},
		{11, 20, 11, 18},
	}
	for i, v := range bars {
		b, err := kline.NewBar(i, int64(i+1), v[0], v[1], v[2], v[3], false)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := kl.AddBar(b); err != nil {
			t.Fatal(err)
		}
	}
	if kl.Len() < 3 {
		t.Fatal("expected inclusion-resolved bars to produce a multi-bar chain")
	}
	// Merged bars: [9,11], [10,15] TOP, [8,12] BOTTOM, [11,20]. Scanning from
	// the TOP at merged bar 1 to merged bar 3, merged bar 2's low 8 undercuts
	// the candidate end's low 11, so the end is not a peak.
	if endIsPeak(kl.At(1), kl.At(3)) {
		t.Fatal("endIsPeak accepted an end whose low is undercut by an interior merged bar")
	}
}
