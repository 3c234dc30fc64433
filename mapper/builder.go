package mapper

import (
	"runtime"

	"github.com/sarchlab/eyemap/analyzer"
	"github.com/sarchlab/eyemap/eyeriss"
)

// Builder can create explorers.
type Builder struct {
	hw        eyeriss.HardwareParams
	evaluator Evaluator
	workers   int
	modes     []eyeriss.Mode
	maxM      int
	maxK      int
	maxN      int
}

// MakeBuilder returns a builder with the default search space.
func MakeBuilder() Builder {
	return Builder{
		hw:        eyeriss.DefaultHardware(),
		evaluator: analyzer.Model{},
		workers:   runtime.NumCPU(),
		modes:     eyeriss.Modes(),
		maxM:      512,
		maxK:      512,
		maxN:      512,
	}
}

// WithHardware sets the hardware to map onto.
func (b Builder) WithHardware(hw eyeriss.HardwareParams) Builder {
	b.hw = hw
	return b
}

// WithEvaluator replaces the cost model.
func (b Builder) WithEvaluator(evaluator Evaluator) Builder {
	b.evaluator = evaluator
	return b
}

// WithWorkers sets the number of scoring goroutines.
func (b Builder) WithWorkers(n int) Builder {
	if n < 1 {
		panic("at least one worker is required")
	}
	b.workers = n
	return b
}

// WithModes restricts the reduction modes searched.
func (b Builder) WithModes(modes ...eyeriss.Mode) Builder {
	for _, m := range modes {
		if !m.Valid() {
			panic("unsupported reduction mode")
		}
	}
	b.modes = modes
	return b
}

// WithLimits sets the upper bounds of M, K and N.
func (b Builder) WithLimits(maxM, maxK, maxN int) Builder {
	b.maxM = maxM
	b.maxK = maxK
	b.maxN = maxN
	return b
}

// Build creates an explorer.
func (b Builder) Build() *Explorer {
	return &Explorer{
		hw:        b.hw,
		evaluator: b.evaluator,
		workers:   b.workers,
		modes:     append([]eyeriss.Mode(nil), b.modes...),
		maxM:      b.maxM,
		maxK:      b.maxK,
		maxN:      b.maxN,
	}
}
