package analyzer

import (
	"math"

	"github.com/sarchlab/eyemap/eyeriss"
)

// Schedule holds the loop trip counts the tile scheduler executes for a
// mapping.
type Schedule struct {
	OutTiles   int
	PassesK    int
	PassesN    int
	BatchTiles int
	MSteps     int
	NSteps     int
	KSteps     int
}

// NewSchedule derives the trip counts of a mapping.
func NewSchedule(shape eyeriss.LinearShape, m eyeriss.Mapping) Schedule {
	s := Schedule{
		OutTiles:   eyeriss.CeilDiv(shape.OutFeatures, m.TileChannels()),
		PassesK:    eyeriss.CeilDiv(shape.InWords(), m.TileWords()),
		BatchTiles: eyeriss.CeilDiv(shape.Batch, m.M),
		MSteps:     eyeriss.CeilDiv(m.M, int(m.Mode)),
		NSteps:     eyeriss.CeilDiv(m.N, m.TN),
		KSteps:     eyeriss.CeilDiv(m.K, m.TK),
	}
	s.PassesN = s.PassesK * s.OutTiles

	return s
}

// GroupSteps is the number of reduction groups flushed per input pass.
func (s Schedule) GroupSteps() int64 {
	return int64(s.BatchTiles) * int64(s.MSteps) * int64(s.NSteps)
}

// TileSteps is the total number of reduction groups flushed.
func (s Schedule) TileSteps() int64 {
	return int64(s.PassesN) * s.GroupSteps()
}

// IfmapTileBytes is the size of one ifmap tile fetched from DRAM.
func IfmapTileBytes(m eyeriss.Mapping) int64 {
	return int64(m.TileWords()) * eyeriss.WordBytes
}

// WeightTileBytes is the size of one weight tile fetched from DRAM.
func WeightTileBytes(m eyeriss.Mapping) int64 {
	return int64(m.K) * int64(m.N) * eyeriss.WeightWordsPerPE * eyeriss.WordBytes
}

// IfmapStepBytes is the GLB read of the ifmap words for one K step.
func IfmapStepBytes(m eyeriss.Mapping) int64 {
	return int64(m.Mode) * int64(m.TK) * eyeriss.IfmapWordsPerPE * eyeriss.WordBytes
}

// WeightStepBytes is the GLB read of the weight words for one K step. The
// weights are multicast to every group.
func WeightStepBytes(m eyeriss.Mapping) int64 {
	return int64(m.TK) * int64(m.TN) * eyeriss.WeightWordsPerPE * eyeriss.WordBytes
}

// PsumGroupBytes is the size of the partial sums of one reduction group.
func PsumGroupBytes(m eyeriss.Mapping) int64 {
	return int64(m.Mode) * int64(m.TN) * eyeriss.PsumsPerPE * eyeriss.WordBytes
}

// OutputTileBytes is the DRAM write of one output tile.
func OutputTileBytes(shape eyeriss.LinearShape, m eyeriss.Mapping, outf int) int64 {
	width := min(m.TileChannels(), shape.OutFeatures-outf)
	return int64(width) * eyeriss.WordBytes
}

// EstimateTraffic computes the traffic of a mapping in closed form.
func EstimateTraffic(shape eyeriss.LinearShape, m eyeriss.Mapping) Traffic {
	s := NewSchedule(shape, m)
	tileSteps := s.TileSteps()
	reloads := int64(s.OutTiles) * int64(s.PassesK-1) * s.GroupSteps()

	return Traffic{
		GLBRead: tileSteps*int64(s.KSteps)*(IfmapStepBytes(m)+WeightStepBytes(m)) +
			reloads*PsumGroupBytes(m),
		GLBWrite: tileSteps * PsumGroupBytes(m),
		DRAMRead: int64(s.PassesK)*IfmapTileBytes(m) +
			int64(s.PassesN)*WeightTileBytes(m),
		DRAMWrite: int64(shape.OutFeatures) * eyeriss.WordBytes,
	}
}

// EstimateComputeCycles returns the cycles the PE array spends computing and
// reducing when every K step runs the full scratchpad.
func EstimateComputeCycles(shape eyeriss.LinearShape, m eyeriss.Mapping) float64 {
	s := NewSchedule(shape, m)
	tileSteps := float64(s.TileSteps())

	return tileSteps*float64(s.KSteps)*ComputeLatency + tileSteps*AccumulateLatency
}

// Model is the analytical cost model.
type Model struct{}

// Analyze evaluates a mapping. It only fails on unusable inputs; a mapping
// that overflows the global buffer is analyzed and marked illegal.
func (Model) Analyze(
	shape eyeriss.LinearShape,
	hw eyeriss.HardwareParams,
	m eyeriss.Mapping,
) (Result, error) {
	return Analyze(shape, hw, m)
}

// Analyze evaluates a mapping with the default model.
func Analyze(
	shape eyeriss.LinearShape,
	hw eyeriss.HardwareParams,
	m eyeriss.Mapping,
) (Result, error) {
	if err := shape.Validate(); err != nil {
		return Result{}, err
	}

	if err := hw.Validate(); err != nil {
		return Result{}, err
	}

	if err := m.ValidateTiling(shape, hw); err != nil {
		return Result{}, err
	}

	r := Result{
		Mapping:         m,
		Legal:           m.Fits(shape, hw),
		GLBUsage:        eyeriss.GLBFootprint(shape, m),
		Traffic:         EstimateTraffic(shape, m),
		MACs:            shape.MACs(),
		PeakPerformance: float64(hw.NumPE()),
		PeakBandwidth:   float64(hw.BusBandwidth),
	}

	r.LatencyCycles = MemoryCycles(r.Traffic, hw)
	r.Latency = Seconds(r.LatencyCycles)
	r.ComputeCycles = EstimateComputeCycles(shape, m)
	r.EstimatedCycles = r.LatencyCycles + r.ComputeCycles

	r.Energy = estimateEnergy(r)
	r.Power = estimatePower(r)
	r.Intensity, r.Bound = classify(r)

	return r, nil
}

func estimateEnergy(r Result) Energy {
	e := Energy{
		Compute: float64(r.MACs) * EnergyPerMAC,
		Memory: float64(r.GLBAccess())*EnergyPerGLB +
			float64(r.DRAMAccess())*EnergyPerDRAM,
		Leakage: LeakagePower * r.Latency,
	}
	e.Total = e.Compute + e.Memory + e.Leakage

	return e
}

func estimatePower(r Result) Power {
	if r.Latency <= 0 {
		nan := math.NaN()
		return Power{Compute: nan, Memory: nan, Leakage: LeakagePower, Total: nan}
	}

	p := Power{
		Compute: r.Energy.Compute / r.Latency,
		Memory:  r.Energy.Memory / r.Latency,
		Leakage: LeakagePower,
	}
	p.Total = p.Compute + p.Memory + p.Leakage

	return p
}

func classify(r Result) (float64, Bound) {
	if r.DRAMAccess() == 0 || r.PeakBandwidth <= 0 {
		return math.NaN(), BoundUndefined
	}

	intensity := float64(r.MACs) / float64(r.DRAMAccess())
	balance := r.PeakPerformance / r.PeakBandwidth

	switch {
	case intensity > balance:
		return intensity, BoundCompute
	case intensity < balance:
		return intensity, BoundMemory
	default:
		return intensity, BoundBalanced
	}
}
