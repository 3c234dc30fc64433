package core

import (
	"github.com/sarchlab/akita/v4/sim"
)

// Stepper drives a PE array cycle by cycle from an akita engine.
type Stepper struct {
	*sim.TickingComponent

	engine sim.Engine
	array  *PEArray
	cycles uint64
}

// NewStepper creates a Stepper.
func NewStepper(
	name string,
	engine sim.Engine,
	freq sim.Freq,
	array *PEArray,
) *Stepper {
	s := &Stepper{engine: engine, array: array}
	s.TickingComponent = sim.NewTickingComponent(name, engine, freq, s)

	return s
}

// Array returns the array the stepper drives.
func (s *Stepper) Array() *PEArray {
	return s.array
}

// Cycles returns the number of cycles in which the array made progress.
func (s *Stepper) Cycles() uint64 {
	return s.cycles
}

// Tick advances every busy PE by one MAC.
func (s *Stepper) Tick() (madeProgress bool) {
	if !s.array.AnyBusy() {
		return false
	}

	madeProgress = s.array.StepAll()
	if madeProgress {
		s.cycles++
	}

	return madeProgress
}

// RunToCompletion starts a stepped computation on the array and runs the
// engine until no PE is busy. It returns the cycles spent and the number of
// PEs that refused to start.
func (s *Stepper) RunToCompletion() (cycles uint64, refused int, err error) {
	refused = s.array.StartAll()
	start := s.cycles

	s.TickLater()
	if err = s.engine.Run(); err != nil {
		return s.cycles - start, refused, err
	}

	return s.cycles - start, refused, nil
}
