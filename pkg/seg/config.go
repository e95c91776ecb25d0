package seg

import "github.com/algomatic/chanstream/pkg/chanenum"

// Config holds SegmentList's tunables.
type Config struct {
	// LeftMethod selects the residual-tail assignment policy applied by
	// SegmentList.collectLeftSeg.
	LeftMethod chanenum.LeftSegMethod
}

func DefaultConfig() Config {
	return Config{LeftMethod: chanenum.LeftSegAll}
}
