package core

import (
	"errors"
	"fmt"

	"github.com/sarchlab/eyemap/eyeriss"
)

// ErrOutputPending is returned when a PE is asked to compute while it still
// holds an unconsumed output or is mid-computation.
var ErrOutputPending = errors.New("pe output pending")

// PEState is the state of a PE.
type PEState int

const (
	PEIdle PEState = iota
	PEBusy
	PEOutputValid
)

func (s PEState) String() string {
	switch s {
	case PEIdle:
		return "idle"
	case PEBusy:
		return "busy"
	case PEOutputValid:
		return "valid"
	default:
		return fmt.Sprintf("PEState(%d)", int(s))
	}
}

// tilePos is the position of the next MAC inside the scratchpad tile. Lane
// is the innermost index, then the output channel, then the ifmap word.
type tilePos struct {
	ifmap  int
	weight int
	lane   int
}

// advance moves to the next MAC and reports whether the tile has more.
func (p *tilePos) advance() bool {
	p.lane++
	if p.lane == eyeriss.LanesPerWord {
		p.lane = 0
		p.weight++
	}

	if p.weight == eyeriss.PsumsPerPE {
		p.weight = 0
		p.ifmap++
	}

	return p.ifmap < eyeriss.IfmapWordsPerPE
}

// PE is a processing element. It holds 3 ifmap words, 12 weight words and 4
// partial sums, one per output channel. Weight word 4i+j pairs ifmap word i
// with output channel j.
type PE struct {
	index int
	tag   int

	ifmap  [eyeriss.IfmapWordsPerPE]uint32
	weight [eyeriss.WeightWordsPerPE]uint32
	psum   [eyeriss.PsumsPerPE]int32

	state PEState
	pos   tilePos
	macs  uint64
}

// Index returns the flat position of the PE in its array.
func (pe *PE) Index() int {
	return pe.index
}

// Tag returns the reduction tag.
func (pe *PE) Tag() int {
	return pe.tag
}

// State returns the current state.
func (pe *PE) State() PEState {
	return pe.state
}

// OutputValid reports whether the partial sums hold a finished result.
func (pe *PE) OutputValid() bool {
	return pe.state == PEOutputValid
}

// Busy reports whether a stepped computation is in progress.
func (pe *PE) Busy() bool {
	return pe.state == PEBusy
}

// MACs returns the number of lane MACs performed since the last reset.
func (pe *PE) MACs() uint64 {
	return pe.macs
}

// LoadIfmap overwrites the ifmap scratchpad. Words beyond the capacity are
// ignored and missing words read as zero.
func (pe *PE) LoadIfmap(words []uint32) {
	pe.ifmap = [eyeriss.IfmapWordsPerPE]uint32{}
	copy(pe.ifmap[:], words)
}

// LoadWeight overwrites the weight scratchpad.
func (pe *PE) LoadWeight(words []uint32) {
	pe.weight = [eyeriss.WeightWordsPerPE]uint32{}
	copy(pe.weight[:], words)
}

// SetIfmapWord writes one ifmap scratchpad word.
func (pe *PE) SetIfmapWord(i int, w uint32) {
	pe.ifmap[i] = w
}

// SetWeightWord writes one weight scratchpad word.
func (pe *PE) SetWeightWord(i int, w uint32) {
	pe.weight[i] = w
}

// IfmapWord reads one ifmap scratchpad word.
func (pe *PE) IfmapWord(i int) uint32 {
	return pe.ifmap[i]
}

// WeightWord reads one weight scratchpad word.
func (pe *PE) WeightWord(i int) uint32 {
	return pe.weight[i]
}

// Psum returns the partial sum of an output channel.
func (pe *PE) Psum(lane int) int32 {
	return pe.psum[lane]
}

// Psums returns all partial sums.
func (pe *PE) Psums() [eyeriss.PsumsPerPE]int32 {
	return pe.psum
}

func (pe *PE) mac(i, j, k int) {
	a := eyeriss.Lane(pe.ifmap[i], k)
	b := eyeriss.Lane(pe.weight[i*eyeriss.PsumsPerPE+j], k)
	pe.psum[j] += int32(a * b)
	pe.macs++
}

func (pe *PE) hazard(op string) error {
	Trace("PEHazard", "PE", pe.index, "Op", op, "State", pe.state.String())
	return fmt.Errorf("%w: pe %d %s while %v", ErrOutputPending, pe.index, op, pe.state)
}

// ComputeFull runs every MAC of the scratchpad at once and marks the output
// valid. It does nothing and returns ErrOutputPending if the PE is not idle.
func (pe *PE) ComputeFull() error {
	if pe.state != PEIdle {
		return pe.hazard("compute")
	}

	for i := 0; i < eyeriss.IfmapWordsPerPE; i++ {
		for j := 0; j < eyeriss.PsumsPerPE; j++ {
			for k := 0; k < eyeriss.LanesPerWord; k++ {
				pe.mac(i, j, k)
			}
		}
	}

	pe.state = PEOutputValid

	return nil
}

// StartCycleCompute prepares a stepped computation.
func (pe *PE) StartCycleCompute() error {
	if pe.state != PEIdle {
		return pe.hazard("start")
	}

	pe.pos = tilePos{}
	pe.state = PEBusy

	return nil
}

// StepCycle performs one lane MAC. It returns false if the PE was not busy.
// After the last MAC of the tile the output becomes valid.
func (pe *PE) StepCycle() bool {
	if pe.state != PEBusy {
		return false
	}

	pe.mac(pe.pos.ifmap, pe.pos.weight, pe.pos.lane)

	if !pe.pos.advance() {
		pe.pos = tilePos{}
		pe.state = PEOutputValid
	}

	return true
}

// AddPartialSum adds an externally supplied partial sum to a channel.
func (pe *PE) AddPartialSum(value int32, lane int) {
	pe.psum[lane] += value
}

// Consume returns the partial sums and leaves the PE idle and zeroed.
func (pe *PE) Consume() [eyeriss.PsumsPerPE]int32 {
	out := pe.psum
	pe.ResetPsum()
	pe.state = PEIdle

	return out
}

// Retain makes a valid PE idle again while keeping its partial sums, so the
// next reduction step can accumulate on top of them.
func (pe *PE) Retain() {
	if pe.state == PEOutputValid {
		pe.state = PEIdle
	}
}

// ResetPsum zeroes the partial sums.
func (pe *PE) ResetPsum() {
	pe.psum = [eyeriss.PsumsPerPE]int32{}
}

// Reset clears the scratchpads and the state. The tag is kept.
func (pe *PE) Reset() {
	pe.ifmap = [eyeriss.IfmapWordsPerPE]uint32{}
	pe.weight = [eyeriss.WeightWordsPerPE]uint32{}
	pe.psum = [eyeriss.PsumsPerPE]int32{}
	pe.state = PEIdle
	pe.pos = tilePos{}
	pe.macs = 0
}
