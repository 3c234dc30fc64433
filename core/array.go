package core

import (
	"fmt"
	"log/slog"

	"github.com/sarchlab/eyemap/eyeriss"
)

// PEArray is the 6x8 grid of PEs. PE i sits at row i/8, column i%8.
type PEArray struct {
	name    string
	mode    eyeriss.Mode
	pes     [eyeriss.NumPE]PE
	hazards int
}

func newPEArray(name string, mode eyeriss.Mode) *PEArray {
	a := &PEArray{name: name}
	for i := range a.pes {
		a.pes[i].index = i
	}

	if err := a.SetMode(mode); err != nil {
		panic(err)
	}

	return a
}

// Name returns the name of the array.
func (a *PEArray) Name() string {
	return a.name
}

// Mode returns the active reduction mode.
func (a *PEArray) Mode() eyeriss.Mode {
	return a.mode
}

// SetMode switches the reduction topology and recomputes every tag.
func (a *PEArray) SetMode(mode eyeriss.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %d", eyeriss.ErrInvalidMode, int(mode))
	}

	a.mode = mode
	for i := range a.pes {
		a.pes[i].tag = mode.Tag(i/eyeriss.ArrayCols, i%eyeriss.ArrayCols)
	}

	return nil
}

// PE returns the PE at a flat index.
func (a *PEArray) PE(i int) *PE {
	if i < 0 || i >= eyeriss.NumPE {
		panic(fmt.Sprintf("pe index %d out of range", i))
	}

	return &a.pes[i]
}

// At returns the PE at a grid position.
func (a *PEArray) At(row, col int) *PE {
	return a.PE(row*eyeriss.ArrayCols + col)
}

// Leader returns the PE that holds the reduced result of a group column.
func (a *PEArray) Leader(group, col int) *PE {
	return a.At(a.mode.LeaderRow(group), col)
}

// Base returns the PE that receives reloaded partial sums of a group
// column.
func (a *PEArray) Base(group, col int) *PE {
	return a.At(a.mode.BaseRow(group), col)
}

// Hazards returns the number of refused computations since the last reset.
func (a *PEArray) Hazards() int {
	return a.hazards
}

// MACs returns the number of lane MACs performed by all PEs.
func (a *PEArray) MACs() uint64 {
	var total uint64
	for i := range a.pes {
		total += a.pes[i].macs
	}

	return total
}

// ComputeAll runs ComputeFull on every PE and returns how many refused.
func (a *PEArray) ComputeAll() int {
	refused := 0
	for i := range a.pes {
		if a.pes[i].ComputeFull() != nil {
			refused++
		}
	}

	a.noteHazards("compute", refused)

	return refused
}

// StartAll starts a stepped computation on every PE and returns how many
// refused.
func (a *PEArray) StartAll() int {
	refused := 0
	for i := range a.pes {
		if a.pes[i].StartCycleCompute() != nil {
			refused++
		}
	}

	a.noteHazards("start", refused)

	return refused
}

func (a *PEArray) noteHazards(op string, n int) {
	if n == 0 {
		return
	}

	a.hazards += n
	slog.Warn("PE array structural hazard",
		"Array", a.name, "Op", op, "PEs", n)
}

// StepAll advances every busy PE by one MAC. It reports whether any PE made
// progress.
func (a *PEArray) StepAll() bool {
	progress := false
	for i := range a.pes {
		progress = a.pes[i].StepCycle() || progress
	}

	return progress
}

// AnyBusy reports whether a stepped computation is still running.
func (a *PEArray) AnyBusy() bool {
	for i := range a.pes {
		if a.pes[i].Busy() {
			return true
		}
	}

	return false
}

// ReducePartials folds valid outputs upward along each column. Walking
// indices in increasing order, a PE that shares its tag with the PE below
// absorbs that PE's partial sums, which leaves the sum of the whole group in
// its top row.
func (a *PEArray) ReducePartials() {
	for i := eyeriss.ArrayCols; i < eyeriss.NumPE; i++ {
		upper := &a.pes[i]
		lower := &a.pes[i-eyeriss.ArrayCols]

		if upper.tag != lower.tag || !lower.OutputValid() {
			continue
		}

		psum := lower.Consume()
		for lane, v := range psum {
			upper.AddPartialSum(v, lane)
		}
	}
}

// RetainAll makes every valid PE idle while keeping its partial sums.
func (a *PEArray) RetainAll() {
	for i := range a.pes {
		a.pes[i].Retain()
	}
}

// ClearAll consumes every PE's partial sums.
func (a *PEArray) ClearAll() {
	for i := range a.pes {
		a.pes[i].Consume()
	}
}

// Reset clears every PE and the hazard counter. The mode is kept.
func (a *PEArray) Reset() {
	for i := range a.pes {
		a.pes[i].Reset()
	}

	a.hazards = 0
}
