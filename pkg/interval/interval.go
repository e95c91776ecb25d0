// Package interval implements the directional-inclusion rule set shared by
// merged bars (over raw bars) and feature elements (over strokes): the same
// test_combine / try_add / update_fx algorithm, parameterised by
// (excludeIncluded, allowTopEqual) and specialized by its two callers.
//
// Carrier is deliberately generic: pkg/kline specializes it over Bar and
// pkg/seg specializes it over Stroke, sharing this one implementation of
// the inclusion and fractal rules instead of duplicating them.
package interval

import (
	"github.com/algomatic/chanstream/pkg/chanenum"
	"github.com/algomatic/chanstream/pkg/chanerr"
)

// AllowTopEqual selects the equal-top/equal-bottom policy used when
// resolving right-side inclusion at the feature-sequence level. Zero means
// "no special handling" (the bar-level default).
type AllowTopEqual int

const (
	AllowTopEqualNone    AllowTopEqual = 0
	AllowTopEqualTop     AllowTopEqual = 1
	AllowTopEqualBottom  AllowTopEqual = -1
)

// HighLow is anything with a price interval — a Bar, or a Stroke treated as
// the interval [low, high].
type HighLow interface {
	PriceHigh() float64
	PriceLow() float64
}

// Carrier is one combined interval: a MergedBar or a FeatureElement. T is
// the member type being absorbed (Bar or Stroke).
type Carrier[T HighLow] struct {
	high, low float64
	dir       chanenum.Direction
	fractal   chanenum.Fractal
	members   []T
}

// NewCarrier seeds a carrier from its first member, in the given direction
// (the direction by which it was appended relative to its predecessor).
func NewCarrier[T HighLow](first T, dir chanenum.Direction) *Carrier[T] {
	return &Carrier[T]{
		high:    first.PriceHigh(),
		low:     first.PriceLow(),
		dir:     dir,
		fractal: chanenum.FractalUnknown,
		members: []T{first},
	}
}

func (c *Carrier[T]) High() float64               { return c.high }
func (c *Carrier[T]) Low() float64                { return c.low }
func (c *Carrier[T]) Dir() chanenum.Direction      { return c.dir }
func (c *Carrier[T]) Fractal() chanenum.Fractal    { return c.fractal }
func (c *Carrier[T]) Members() []T                 { return c.members }
func (c *Carrier[T]) Last() T                      { return c.members[len(c.members)-1] }
func (c *Carrier[T]) Len() int                     { return len(c.members) }
func (c *Carrier[T]) SetFractal(f chanenum.Fractal) { c.fractal = f }

// TestCombine classifies the relation between this carrier and an incoming
// item's interval, per spec.md §4.1's table.
func TestCombine(high, low, itemHigh, itemLow float64, excludeIncluded bool, allowTopEqual AllowTopEqual) (chanenum.Direction, error) {
	switch {
	case high >= itemHigh && low <= itemLow:
		// left-side inclusion: this carrier already contains the item.
		return chanenum.DirCombine, nil
	case high <= itemHigh && low >= itemLow:
		// right-side inclusion: the item contains this carrier.
		if allowTopEqual == AllowTopEqualTop && high == itemHigh && low > itemLow {
			return chanenum.DirDown, nil
		}
		if allowTopEqual == AllowTopEqualBottom && low == itemLow && high < itemHigh {
			return chanenum.DirUp, nil
		}
		if excludeIncluded {
			return chanenum.DirIncluded, nil
		}
		return chanenum.DirCombine, nil
	case high > itemHigh && low > itemLow:
		return chanenum.DirDown, nil
	case high < itemHigh && low < itemLow:
		return chanenum.DirUp, nil
	default:
		return chanenum.DirUnknown, chanerr.New(chanerr.CodeCombinerError, 0, 0, 0,
			"combine type unknown: carrier=[%.6f,%.6f] item=[%.6f,%.6f]", low, high, itemLow, itemHigh)
	}
}

// TryAdd absorbs item into the carrier if it combines, returning the
// relation. isSinglePrice marks an item whose high==low (a one-line bar);
// such an item never widens the bound it is equal to (spec.md §4.1
// exception).
func (c *Carrier[T]) TryAdd(item T, excludeIncluded bool, allowTopEqual AllowTopEqual) (chanenum.Direction, error) {
	itemHigh, itemLow := item.PriceHigh(), item.PriceLow()
	dir, err := TestCombine(c.high, c.low, itemHigh, itemLow, excludeIncluded, allowTopEqual)
	if err != nil {
		return dir, err
	}
	if dir != chanenum.DirCombine {
		return dir, nil
	}
	c.members = append(c.members, item)
	isSinglePrice := itemHigh == itemLow
	switch c.dir {
	case chanenum.DirUp:
		// Dominant bound for an UP carrier is its high; a one-line bar
		// sitting exactly on it must not widen (or narrow) the interval.
		if !(isSinglePrice && itemHigh == c.high) {
			c.high = max(itemHigh, c.high)
			c.low = max(itemLow, c.low)
		}
	case chanenum.DirDown:
		// Dominant bound for a DOWN carrier is its low.
		if !(isSinglePrice && itemLow == c.low) {
			c.high = min(itemHigh, c.high)
			c.low = min(itemLow, c.low)
		}
	default:
		return dir, chanerr.New(chanerr.CodeCombinerError, 0, 0, 0, "carrier direction %s must be UP/DOWN", c.dir)
	}
	return dir, nil
}

// ClassifyFractal implements update_fx: classify the carrier lying between
// prev and next as TOP, BOTTOM, or UNKNOWN.
//
// Normal mode (excludeIncluded=false) requires strict inequality on both
// sides. Strict mode (excludeIncluded=true, used on feature sequences)
// admits equality on the "next" side, broken by allowTopEqual.
func ClassifyFractal(prevHigh, prevLow, high, low, nextHigh, nextLow float64, excludeIncluded bool, allowTopEqual AllowTopEqual) chanenum.Fractal {
	if excludeIncluded {
		switch {
		case prevHigh < high && nextHigh <= high && nextLow < low:
			if allowTopEqual == AllowTopEqualTop || nextHigh < high {
				return chanenum.FractalTop
			}
		case nextHigh > high && prevLow > low && nextLow >= low:
			if allowTopEqual == AllowTopEqualBottom || nextLow > low {
				return chanenum.FractalBottom
			}
		}
		return chanenum.FractalUnknown
	}
	switch {
	case prevHigh < high && nextHigh < high && prevLow < low && nextLow < low:
		return chanenum.FractalTop
	case prevHigh > high && nextHigh > high && prevLow > low && nextLow > low:
		return chanenum.FractalBottom
	default:
		// Monotonic through-trend (prev < self < next or prev > self > next):
		// not a fractal, matches the original's no-op branches.
		return chanenum.FractalUnknown
	}
}
