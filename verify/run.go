package verify

import (
	"github.com/sarchlab/eyemap/api"
	"github.com/sarchlab/eyemap/config"
	"github.com/sarchlab/eyemap/eyeriss"
)

// Outcome is the result of simulating a pattern.
type Outcome struct {
	Stats  api.Stats
	Output []int32

	// Err is the comparison failure, a *MismatchError, or nil.
	Err error
}

// Passed reports whether the output matched the golden data.
func (o *Outcome) Passed() bool {
	return o.Err == nil
}

// RunPattern simulates the pattern on the device with the given mapping and
// compares the output with the golden data. The returned error covers
// failures to run; a wrong output is reported in the outcome.
func RunPattern(
	dev *config.Device,
	mapping eyeriss.Mapping,
	p Pattern,
) (*Outcome, error) {
	builder := api.MakeSchedulerBuilder().
		WithHardware(dev.Hardware).
		WithShape(p.Shape).
		WithMapping(mapping).
		WithArray(dev.Array)

	if dev.Stepper != nil {
		builder = builder.WithStepper(dev.Stepper)
	}

	s, err := builder.Build(dev.Name + ".Scheduler")
	if err != nil {
		return nil, err
	}

	if err := s.Run(p.Ifmap, p.Weight); err != nil {
		return nil, err
	}

	out, err := s.Output()
	if err != nil {
		return nil, err
	}

	return &Outcome{
		Stats:  s.Stats(),
		Output: out,
		Err:    Compare(p.Golden, out),
	}, nil
}
