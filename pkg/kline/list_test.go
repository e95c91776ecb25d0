package kline

import (
	"testing"

	"github.com/algomatic/chanstream/pkg/chanenum"
)

// makeBars builds one raw bar per (open, high, low, close) tuple, at
// timestamps 1, 2, 3, ... nanoseconds.
func makeBars(ohlc [][4]float64) []Bar {
	bars := make([]Bar, len(ohlc))
	for i, v := range ohlc {
		b, err := NewBar(i, int64(i+1), v[0], v[1], v[2], v[3], false)
		if err != nil {
			panic(err)
		}
		bars[i] = b
	}
	return bars
}

func TestNewBarAutofix(t *testing.T) {
	b, err := NewBar(0, 1, 10, 9, 11, 10, true)
	if err != nil {
		t.Fatalf("autofix should not error: %v", err)
	}
	if b.High != 11 {
		t.Errorf("High = %v, want 11 (autofixed to max)", b.High)
	}
	if b.Low != 9 {
		t.Errorf("Low = %v, want 9", b.Low)
	}
}

func TestNewBarInvalidNoAutofix(t *testing.T) {
	_, err := NewBar(0, 1, 10, 9, 11, 10, false)
	if err == nil {
		t.Fatal("expected KlDataInvalid error")
	}
}

func TestAddBarMonotonicViolation(t *testing.T) {
	l := NewList(nil)
	bars := makeBars([][4]float64{{1, 2, 1, 1.5}, {1.5, 2.5, 1.5, 2}})
	if _, err := l.AddBar(bars[0]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stale := bars[0]
	if _, err := l.AddBar(stale); err == nil {
		t.Fatal("expected KlNotMonotonous error on non-increasing time")
	}
}

func TestAddBarInclusionMerge(t *testing.T) {
	l := NewList(nil)
	bars := makeBars([][4]float64{
		{6, 10, 5, 8},
		{8, 9, 6, 7}, // fully inside bar 0 -> left-side inclusion, merges
	})
	for _, b := range bars {
		if _, err := l.AddBar(b); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if l.Len() != 1 {
		t.Fatalf("expected inclusion to merge into 1 merged bar, got %d", l.Len())
	}
	// The first merged bar is arbitrarily seeded UP, so the directional
	// inclusion rule takes the higher high *and* the higher low of the two
	// bars, not the strict envelope: [max(10,9), max(5,6)] = [10,6].
	if l.Last().PriceHigh() != 10 || l.Last().PriceLow() != 6 {
		t.Errorf("merged interval = [%v,%v], want [6,10]", l.Last().PriceLow(), l.Last().PriceHigh())
	}
}

func TestAddBarFractalClassification(t *testing.T) {
	l := NewList(nil)
	bars := makeBars([][4]float64{
		{9, 10, 8, 9},  // rising into a peak
		{9, 15, 9, 12}, // the top
		{11, 11, 5, 6}, // falling away
	})
	for _, b := range bars {
		if _, err := l.AddBar(b); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if l.Len() != 3 {
		t.Fatalf("expected 3 distinct merged bars, got %d", l.Len())
	}
	mid := l.At(1)
	if mid.Fractal() != chanenum.FractalTop {
		t.Errorf("middle merged bar fractal = %v, want TOP", mid.Fractal())
	}
}
