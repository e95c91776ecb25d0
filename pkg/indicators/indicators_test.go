package indicators

import "testing"

func TestRSIBoundedZeroToHundred(t *testing.T) {
	r := NewRSIEvaluator(14)
	closes := []float64{10, 11, 12, 11, 13, 14, 12, 15, 16, 15, 17, 18, 16, 19, 20}
	for _, c := range closes {
		v := r.Add(c)
		if v < 0 || v > 100 {
			t.Fatalf("RSI out of bounds: %v", v)
		}
	}
}

func TestBOLLMidBandAtConstantPrice(t *testing.T) {
	b := NewBOLLEvaluator(5, 2)
	var got float64
	for i := 0; i < 5; i++ {
		got = b.Add(100)
	}
	if got != 0.5 {
		t.Fatalf("expected %%b=0.5 on a flat price series, got %v", got)
	}
}

func TestMACDZeroOnFlatSeries(t *testing.T) {
	m := NewMACDEvaluator(12, 26, 9)
	var got float64
	for i := 0; i < 30; i++ {
		got = m.Add(100)
	}
	if got != 0 {
		t.Fatalf("expected MACD histogram to settle at 0 on a flat series, got %v", got)
	}
}

func TestDemarkCountsClampToNine(t *testing.T) {
	d := NewDemarkEvaluator()
	price := 100.0
	var got float64
	for i := 0; i < 20; i++ {
		price += 1
		got = d.Add(price+1, price-1, price)
	}
	if got != 9 {
		t.Fatalf("expected the rising-close count to clamp at 9, got %v", got)
	}
}
