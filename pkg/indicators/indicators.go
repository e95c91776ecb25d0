// Package indicators implements the minimal per-bar evaluators spec.md §6
// describes as external collaborators: each exposes add(close) or
// add(high, low, close) and returns one value to attach to the bar. The
// core never calls these itself; a caller may store their outputs in
// Bar.Indicators when building each Bar. cmd/chanstream-probe does not use
// them.
package indicators

import "math"

// CloseEvaluator is the add(close) shape of spec.md §6.
type CloseEvaluator interface {
	Add(close float64) float64
}

// HLCEvaluator is the add(high, low, close) shape of spec.md §6.
type HLCEvaluator interface {
	Add(high, low, close float64) float64
}

type ema struct {
	period int
	alpha  float64
	value  float64
	seeded bool
}

func newEMA(period int) *ema {
	return &ema{period: period, alpha: 2.0 / float64(period+1)}
}

func (e *ema) add(v float64) float64 {
	if !e.seeded {
		e.value = v
		e.seeded = true
		return e.value
	}
	e.value = e.alpha*v + (1-e.alpha)*e.value
	return e.value
}

// MACDEvaluator is the EMA(fast) - EMA(slow), smoothed by a signal EMA,
// histogram = macd - signal.
type MACDEvaluator struct {
	fast, slow, signal *ema
}

func NewMACDEvaluator(fast, slow, signalPeriod int) *MACDEvaluator {
	return &MACDEvaluator{fast: newEMA(fast), slow: newEMA(slow), signal: newEMA(signalPeriod)}
}

func (m *MACDEvaluator) Add(close float64) float64 {
	macd := m.fast.add(close) - m.slow.add(close)
	return macd - m.signal.add(macd)
}

// BOLLEvaluator tracks a rolling SMA/stddev window and returns %b: the
// close's position within the current band, 0 at the lower band, 1 at the
// upper band.
type BOLLEvaluator struct {
	period int
	numStd float64
	window []float64
}

func NewBOLLEvaluator(period int, numStd float64) *BOLLEvaluator {
	return &BOLLEvaluator{period: period, numStd: numStd}
}

func (b *BOLLEvaluator) Add(close float64) float64 {
	b.window = append(b.window, close)
	if len(b.window) > b.period {
		b.window = b.window[len(b.window)-b.period:]
	}
	mean := 0.0
	for _, v := range b.window {
		mean += v
	}
	mean /= float64(len(b.window))
	variance := 0.0
	for _, v := range b.window {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(b.window))
	stddev := math.Sqrt(variance)
	upper := mean + b.numStd*stddev
	lower := mean - b.numStd*stddev
	if upper == lower {
		return 0.5
	}
	return (close - lower) / (upper - lower)
}

// RSIEvaluator is Wilder's smoothed RSI.
type RSIEvaluator struct {
	period         int
	avgGain, avgLoss float64
	prevClose      float64
	seeded         bool
}

func NewRSIEvaluator(period int) *RSIEvaluator {
	return &RSIEvaluator{period: period}
}

func (r *RSIEvaluator) Add(close float64) float64 {
	if !r.seeded {
		r.prevClose = close
		r.seeded = true
		return 50
	}
	change := close - r.prevClose
	r.prevClose = close
	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}
	n := float64(r.period)
	r.avgGain = (r.avgGain*(n-1) + gain) / n
	r.avgLoss = (r.avgLoss*(n-1) + loss) / n
	if r.avgLoss == 0 {
		return 100
	}
	rs := r.avgGain / r.avgLoss
	return 100 - 100/(1+rs)
}

// KDJEvaluator is the stochastic %K/%D/J family collapsed to its J value,
// the component traditionally used as the more sensitive reversal signal.
type KDJEvaluator struct {
	period   int
	highs    []float64
	lows     []float64
	k, d     float64
	seeded   bool
}

func NewKDJEvaluator(period int) *KDJEvaluator {
	return &KDJEvaluator{period: period, k: 50, d: 50}
}

func (k *KDJEvaluator) Add(high, low, close float64) float64 {
	k.highs = append(k.highs, high)
	k.lows = append(k.lows, low)
	if len(k.highs) > k.period {
		k.highs = k.highs[len(k.highs)-k.period:]
		k.lows = k.lows[len(k.lows)-k.period:]
	}
	hh, ll := k.highs[0], k.lows[0]
	for i := 1; i < len(k.highs); i++ {
		hh = math.Max(hh, k.highs[i])
		ll = math.Min(ll, k.lows[i])
	}
	rsv := 50.0
	if hh != ll {
		rsv = (close - ll) / (hh - ll) * 100
	}
	if !k.seeded {
		k.k, k.d = rsv, rsv
		k.seeded = true
	} else {
		k.k = (2*k.k + rsv) / 3
		k.d = (2*k.d + k.k) / 3
	}
	return 3*k.k - 2*k.d
}

// DemarkEvaluator is a TD Sequential-style setup counter comparing each
// close with the close four bars prior. Returns the signed count: a run of
// higher closes counts up (1, 2, ...), a run of lower closes counts down
// (-1, -2, ...), both clamped at ±9; an equal close resets it to 0.
type DemarkEvaluator struct {
	history []float64
	count   int
}

func NewDemarkEvaluator() *DemarkEvaluator {
	return &DemarkEvaluator{}
}

func (d *DemarkEvaluator) Add(high, low, close float64) float64 {
	d.history = append(d.history, close)
	if len(d.history) <= 4 {
		return 0
	}
	ref := d.history[len(d.history)-5]
	switch {
	case close < ref:
		if d.count < 0 {
			d.count--
		} else {
			d.count = -1
		}
	case close > ref:
		if d.count > 0 {
			d.count++
		} else {
			d.count = 1
		}
	default:
		d.count = 0
	}
	if d.count > 9 {
		d.count = 9
	}
	if d.count < -9 {
		d.count = -9
	}
	return float64(d.count)
}
