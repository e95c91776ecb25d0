// Package engine drives the per-bar control flow of spec.md §2: each
// incoming bar is fused into the merged-bar chain, re-evaluated for a
// fractal, fed into the stroke state machine, and — in step-by-step mode —
// offered to the segment state machine. Mirrors the original's
// KLine_List.add_single_klu/cal_seg_and_zs dispatch.
package engine

import (
	"log/slog"

	"github.com/algomatic/chanstream/pkg/bi"
	"github.com/algomatic/chanstream/pkg/kline"
	"github.com/algomatic/chanstream/pkg/seg"
)

// Config selects the per-bar recomputation mode and the sub-component
// configurations each carries.
type Config struct {
	Bi  bi.Config
	Seg seg.Config

	// StepByStep mirrors step_by_step/trigger_load: when true, SegmentList
	// is recomputed on every bar that changes the stroke list. When false,
	// segment recomputation is the caller's responsibility (e.g. a single
	// batch pass at the end of a replay) via RecomputeSegments.
	StepByStep bool

	// CalVirtual mirrors cal_virtual: when true, StrokeList additionally
	// tries to extend an unconfirmed "virtual" stroke to the current tail
	// bar on every update, giving a live-but-tentative last stroke.
	CalVirtual bool
}

func DefaultConfig() Config {
	return Config{
		Bi:         bi.DefaultConfig(),
		Seg:        seg.DefaultConfig(),
		StepByStep: true,
		CalVirtual: true,
	}
}

// Engine owns one symbol's full MergedBar -> Stroke -> Segment pipeline.
type Engine struct {
	cfg Config
	log *slog.Logger

	bars    *kline.List
	strokes *bi.List
	segs    *seg.List
}

// New creates an Engine for a single bar stream.
func New(cfg Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	log.Info("engine initialised", "step_by_step", cfg.StepByStep, "cal_virtual", cfg.CalVirtual)
	return &Engine{
		cfg:     cfg,
		log:     log,
		bars:    kline.NewList(log),
		strokes: bi.NewList(cfg.Bi, log),
		segs:    seg.NewList(cfg.Seg, log),
	}
}

func (e *Engine) MergedBars() *kline.List { return e.bars }
func (e *Engine) Strokes() *bi.List       { return e.strokes }
func (e *Engine) Segments() *seg.List     { return e.segs }

// AddBar is add_single_klu: absorb one raw bar and drive the structural
// pipeline as far as it can go this step.
func (e *Engine) AddBar(b kline.Bar) error {
	appended, err := e.bars.AddBar(b)
	if err != nil {
		return err
	}
	if !appended {
		// The bar combined into the existing tail merged bar rather than
		// sealing a new one. No fractal/stroke update is possible, but the
		// tail's extended high/low can still stretch an unconfirmed virtual
		// stroke (original's add_single_klu "issue#175" branch).
		if e.cfg.StepByStep {
			extended, err := e.strokes.TryAddVirtualBi(e.bars.Last(), true)
			if err != nil {
				return err
			}
			if extended {
				return e.RecomputeSegments()
			}
		}
		return nil
	}
	if e.bars.Len() < 3 {
		return nil
	}
	changed, err := e.strokes.Update(e.bars.At(e.bars.Len()-2), e.bars.Last(), e.cfg.CalVirtual)
	if err != nil {
		return err
	}
	if changed {
		e.log.Debug("stroke list changed", "bar_idx", b.Idx, "stroke_cnt", e.strokes.Len())
	}
	if changed && e.cfg.StepByStep {
		return e.RecomputeSegments()
	}
	return nil
}

// RecomputeSegments is cal_seg_and_zs (minus the out-of-scope central-zone
// half): re-run SegmentList.update over the full current stroke chain. Safe
// to call directly when StepByStep is off, e.g. once after a batch replay.
func (e *Engine) RecomputeSegments() error {
	if err := e.segs.Update(e.strokes.All()); err != nil {
		return err
	}
	e.log.Debug("segment list updated", "segment_cnt", e.segs.Len())
	return nil
}
