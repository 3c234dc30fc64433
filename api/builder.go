package api

import (
	"github.com/sarchlab/eyemap/core"
	"github.com/sarchlab/eyemap/eyeriss"
)

// SchedulerBuilder creates a new instance of Scheduler.
type SchedulerBuilder struct {
	hw      eyeriss.HardwareParams
	shape   eyeriss.LinearShape
	mapping eyeriss.Mapping
	array   *core.PEArray
	stepper *core.Stepper
	output  *Buffer
}

// MakeSchedulerBuilder returns a builder for the default hardware.
func MakeSchedulerBuilder() SchedulerBuilder {
	return SchedulerBuilder{
		hw: eyeriss.DefaultHardware(),
	}
}

// WithHardware sets the hardware parameters.
func (b SchedulerBuilder) WithHardware(hw eyeriss.HardwareParams) SchedulerBuilder {
	b.hw = hw
	return b
}

// WithShape sets the layer to run.
func (b SchedulerBuilder) WithShape(shape eyeriss.LinearShape) SchedulerBuilder {
	b.shape = shape
	return b
}

// WithMapping sets the mapping to run.
func (b SchedulerBuilder) WithMapping(mapping eyeriss.Mapping) SchedulerBuilder {
	b.mapping = mapping
	return b
}

// WithArray sets the PE array. A fresh array is built if none is given.
func (b SchedulerBuilder) WithArray(array *core.PEArray) SchedulerBuilder {
	b.array = array
	return b
}

// WithStepper switches the scheduler to cycle-accurate compute. The
// stepper's array is used.
func (b SchedulerBuilder) WithStepper(stepper *core.Stepper) SchedulerBuilder {
	b.stepper = stepper
	return b
}

// WithOutput sets the output buffer. A buffer sized to the layer is created
// if none is given.
func (b SchedulerBuilder) WithOutput(output *Buffer) SchedulerBuilder {
	b.output = output
	return b
}

// Build creates a scheduler. Illegal mappings are rejected here.
func (b SchedulerBuilder) Build(name string) (*Scheduler, error) {
	if err := b.shape.Validate(); err != nil {
		return nil, err
	}

	if err := b.hw.Validate(); err != nil {
		return nil, err
	}

	if err := b.mapping.Validate(b.shape, b.hw); err != nil {
		return nil, err
	}

	s := &Scheduler{
		name:    name,
		hw:      b.hw,
		shape:   b.shape,
		mapping: b.mapping,
		tiling:  Tiling{Shape: b.shape, Mapping: b.mapping},
		layout:  NewLayout(b.shape),
		array:   b.array,
		stepper: b.stepper,
		output:  b.output,
	}

	if s.stepper != nil {
		s.array = s.stepper.Array()
	}

	if s.array == nil {
		s.array = core.NewBuilder().
			WithMode(b.mapping.Mode).
			Build(name + ".Array")
	}

	if s.output == nil {
		s.output = NewBuffer(name+".Output", b.shape.OutputWords())
	}

	return s, nil
}
