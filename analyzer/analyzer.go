// Package analyzer estimates the memory traffic, latency, energy and power of
// a mapping of a linear layer onto the PE array.
package analyzer

import (
	"math"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/eyemap/eyeriss"
)

const (
	// Clock is the accelerator clock.
	Clock = 200 * sim.MHz

	// GLBAccessTime is the cost of one GLB byte in cycles per unit of NoC
	// bandwidth.
	GLBAccessTime = 2

	// DRAMAccessTime is the cost of one DRAM byte in cycles per unit of bus
	// bandwidth.
	DRAMAccessTime = 5

	// EnergyUnit scales the per-access energy figures below.
	EnergyUnit    = 1e-6
	EnergyPerMAC  = 2 * EnergyUnit
	EnergyPerGLB  = 10 * EnergyUnit
	EnergyPerDRAM = 200 * EnergyUnit

	// LeakagePower is constant over the run.
	LeakagePower = 50.0

	// ComputeLatency is the number of cycles a PE spends on one full
	// scratchpad (3 ifmap words x 4 channels x 4 lanes).
	ComputeLatency = eyeriss.IfmapWordsPerPE * eyeriss.PsumsPerPE *
		eyeriss.LanesPerWord

	// AccumulateLatency is the cost of one vertical reduction.
	AccumulateLatency = 6
)

// Bound is the roofline classification of a mapping.
type Bound int

const (
	BoundUndefined Bound = iota
	BoundCompute
	BoundMemory
	BoundBalanced
)

func (b Bound) String() string {
	switch b {
	case BoundCompute:
		return "compute"
	case BoundMemory:
		return "memory"
	case BoundBalanced:
		return "balanced"
	default:
		return "undefined"
	}
}

// Traffic counts the bytes moved at each level of the memory hierarchy.
type Traffic struct {
	GLBRead   int64
	GLBWrite  int64
	DRAMRead  int64
	DRAMWrite int64
}

// GLBAccess is the total GLB traffic.
func (t Traffic) GLBAccess() int64 {
	return t.GLBRead + t.GLBWrite
}

// DRAMAccess is the total DRAM traffic.
func (t Traffic) DRAMAccess() int64 {
	return t.DRAMRead + t.DRAMWrite
}

// Add accumulates another traffic record.
func (t *Traffic) Add(o Traffic) {
	t.GLBRead += o.GLBRead
	t.GLBWrite += o.GLBWrite
	t.DRAMRead += o.DRAMRead
	t.DRAMWrite += o.DRAMWrite
}

// MemoryCycles converts traffic into cycles spent moving data.
func MemoryCycles(t Traffic, hw eyeriss.HardwareParams) float64 {
	glb := float64(t.GLBAccess()) * GLBAccessTime / float64(hw.NoCBandwidth)
	dram := float64(t.DRAMAccess()) * DRAMAccessTime / float64(hw.BusBandwidth)

	return glb + dram
}

// Seconds converts cycles to seconds at the accelerator clock.
func Seconds(cycles float64) float64 {
	return cycles / float64(Clock)
}

// Energy is an energy breakdown.
type Energy struct {
	Compute float64
	Memory  float64
	Leakage float64
	Total   float64
}

// Power is a power breakdown.
type Power struct {
	Compute float64
	Memory  float64
	Leakage float64
	Total   float64
}

// Result is the analysis of one mapping.
type Result struct {
	Mapping eyeriss.Mapping
	Legal   bool

	GLBUsage int
	Traffic
	MACs int64

	LatencyCycles   float64
	Latency         float64
	ComputeCycles   float64
	EstimatedCycles float64

	Energy Energy
	Power  Power

	Intensity       float64
	PeakPerformance float64
	PeakBandwidth   float64
	Bound           Bound
}

// Degenerate reports whether some derived metric is undefined.
func (r Result) Degenerate() bool {
	return math.IsNaN(r.Intensity) || math.IsNaN(r.Power.Total)
}

// IsComputeBound reports whether the mapping sits right of the ridge point.
func (r Result) IsComputeBound() bool {
	return r.Bound == BoundCompute
}

// IsMemoryBound reports whether the mapping sits left of the ridge point.
func (r Result) IsMemoryBound() bool {
	return r.Bound == BoundMemory
}

// Attainable is the roofline bound on throughput in MACs per cycle.
func (r Result) Attainable() float64 {
	if math.IsNaN(r.Intensity) {
		return math.NaN()
	}

	return math.Min(r.PeakPerformance, r.Intensity*r.PeakBandwidth)
}
