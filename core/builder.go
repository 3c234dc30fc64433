package core

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/eyemap/eyeriss"
)

// Builder can create PE arrays and the steppers that drive them.
type Builder struct {
	engine sim.Engine
	freq   sim.Freq
	mode   eyeriss.Mode
}

// WithEngine sets the engine used by steppers.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the array.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithMode sets the initial reduction mode.
func (b Builder) WithMode(mode eyeriss.Mode) Builder {
	if !mode.Valid() {
		panic("unsupported reduction mode")
	}
	b.mode = mode
	return b
}

func NewBuilder() Builder {
	return Builder{
		freq: 200 * sim.MHz,
		mode: 1,
	}
}

// Build creates a PE array.
func (b Builder) Build(name string) *PEArray {
	return newPEArray(name, b.mode)
}

// BuildStepper creates a ticking component that steps the given array one
// MAC per cycle. It requires an engine.
func (b Builder) BuildStepper(name string, array *PEArray) *Stepper {
	if b.engine == nil {
		panic("stepper requires an engine")
	}

	return NewStepper(name, b.engine, b.freq, array)
}
