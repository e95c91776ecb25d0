package bi

import "github.com/algomatic/chanstream/pkg/chanenum"

// Config holds the per-StrokeList tunables from spec.md §6's
// bi_* configuration keys.
type Config struct {
	Algo          chanenum.BiAlgo
	IsStrict      bool
	GapAsKl       bool
	FxCheck       chanenum.FXCheckMethod
	EndIsPeak     bool
	AllowSubPeak  bool
}

// DefaultConfig matches the original's CBiConfig defaults: normal algo,
// strict span, gaps not counted, strict fractal check, no peak requirement,
// sub-peak updates allowed.
func DefaultConfig() Config {
	return Config{
		Algo:         chanenum.BiAlgoNormal,
		IsStrict:     true,
		GapAsKl:      false,
		FxCheck:      chanenum.FXCheckStrict,
		EndIsPeak:    false,
		AllowSubPeak: true,
	}
}
