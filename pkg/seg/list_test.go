package seg

import (
	"testing"

	"github.com/algomatic/chanstream/pkg/bi"
	"github.com/algomatic/chanstream/pkg/kline"
)

// driveAll feeds a bar series through the full merge -> stroke -> segment
// pipeline as pkg/engine's AddBar does in step mode for bars that seal a new
// merged bar, but without virtual strokes (calVirtual=false): every bar that
// changes the stroke list is immediately offered to the segment list.
func driveAll(t *testing.T, biCfg bi.Config, segCfg Config, ohlc [][4]float64) (*kline.List, *bi.List, *List) {
	t.Helper()
	kl := kline.NewList(nil)
	bl := bi.NewList(biCfg, nil)
	sl := NewList(segCfg, nil)
	for i, v := range ohlc {
		b, err := kline.NewBar(i, int64(i+1), v[0], v[1], v[2], v[3], false)
		if err != nil {
			t.Fatalf("bar %d: %v", i, err)
		}
		appended, err := kl.AddBar(b)
		if err != nil {
			t.Fatalf("AddBar %d: %v", i, err)
		}
		if !appended || kl.Len() < 3 {
			continue
		}
		changed, err := bl.Update(kl.At(kl.Len()-2), kl.Last(), false)
		if err != nil {
			t.Fatalf("stroke update at %d: %v", i, err)
		}
		if changed {
			if err := sl.Update(bl.All()); err != nil {
				t.Fatalf("segment update at %d: %v", i, err)
			}
		}
	}
	return kl, bl, sl
}

// multiSwing produces a long alternating up/down price path wide enough
// that every leg satisfies the strict 4-span stroke rule, and with enough
// legs (well beyond the 3-stroke minimum feature sequence) for at least one
// segment-terminating fractal to have a chance to form.
func multiSwing() [][4]float64 {
	var out [][4]float64
	level := 10.0
	for leg := 0; leg < 8; leg++ {
		up := leg%2 == 0
		for step := 0; step < 5; step++ {
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

func TestSegmentListFormsAlternatingSegments(t *testing.T) {
	_, _, sl := driveAll(t, bi.DefaultConfig(), DefaultConfig(), multiSwing())
	for i := 1; i < sl.Len(); i++ {
		if sl.At(i).IsSure && sl.At(i-1).IsSure && sl.At(i).Dir == sl.At(i-1).Dir {
			t.Fatalf("sure segment %d has same direction as sure segment %d: %v", i, i-1, sl.At(i).Dir)
		}
	}
}

func TestSureSegmentSpanInvariant(t *testing.T) {
	_, _, sl := driveAll(t, bi.DefaultConfig(), DefaultConfig(), multiSwing())
	for i := 0; i < sl.Len(); i++ {
		s := sl.At(i)
		if s.IsSure && s.EndStroke.Idx-s.StartStroke.Idx < 2 {
			t.Errorf("sure segment %d spans only %d strokes", i, s.EndStroke.Idx-s.StartStroke.Idx)
		}
	}
}

func TestSegmentBiListParentBackLinks(t *testing.T) {
	_, _, sl := driveAll(t, bi.DefaultConfig(), DefaultConfig(), multiSwing())
	for i := 0; i < sl.Len(); i++ {
		s := sl.At(i)
		for _, strokeInSeg := range s.BiList {
			if strokeInSeg.ParentSeg != s {
				t.Errorf("segment %d: stroke %d has ParentSeg %v, want this segment", i, strokeInSeg.Idx, strokeInSeg.ParentSeg)
			}
		}
	}
}

func TestEigenFractalSeedsFirstSlotThenFalse(t *testing.T) {
	bars := multiSwing()
	kl := kline.NewList(nil)
	bl := bi.NewList(bi.DefaultConfig(), nil)
	for i, v := range bars[:12] {
		b, err := kline.NewBar(i, int64(i+1), v[0], v[1], v[2], v[3], false)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := kl.AddBar(b); err != nil {
			t.Fatal(err)
		}
		if kl.Len() >= 3 {
			if _, err := bl.Update(kl.At(kl.Len()-2), kl.Last(), false); err != nil {
				t.Fatal(err)
			}
		}
	}
	if bl.Len() == 0 {
		t.Fatal("expected at least one stroke to seed an eigen fractal from")
	}
	ex := NewEigenFractal(bl.At(0).Dir.Opposite(), true)
	ok, err := ex.Add(bl.At(0))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("a single stroke can never itself confirm a fractal")
	}
	if ex.ele[0] == nil {
		t.Fatal("expected first slot to be seeded")
	}
}
