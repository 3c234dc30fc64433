package eyeriss

import (
	"fmt"

	"github.com/sarchlab/akita/v4/mem/mem"
)

// LinearShape is the shape of a linear layer Y = X·W.
type LinearShape struct {
	Batch       int `yaml:"batch"`
	InFeatures  int `yaml:"in_features"`
	OutFeatures int `yaml:"out_features"`
}

// Validate checks that every dimension is positive.
func (s LinearShape) Validate() error {
	if s.Batch <= 0 || s.InFeatures <= 0 || s.OutFeatures <= 0 {
		return fmt.Errorf("%w: shape %v", ErrInvalidShape, s)
	}

	return nil
}

// InWords is the number of packed words along the reduction dimension.
func (s LinearShape) InWords() int {
	return CeilDiv(s.InFeatures, LanesPerWord)
}

// MACs is the number of byte-level multiply-accumulates of the layer.
func (s LinearShape) MACs() int64 {
	return int64(s.Batch) * int64(s.InFeatures) * int64(s.OutFeatures)
}

// IfmapWords is the size of matrix A in words.
func (s LinearShape) IfmapWords() int {
	return s.Batch * s.InWords()
}

// WeightWords is the size of matrix B in words.
func (s LinearShape) WeightWords() int {
	return s.InWords() * s.OutFeatures
}

// OutputWords is the size of matrix C in words.
func (s LinearShape) OutputWords() int {
	return s.Batch * s.OutFeatures
}

func (s LinearShape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Batch, s.InFeatures, s.OutFeatures)
}

// HardwareParams describes the accelerator. It is treated as immutable.
type HardwareParams struct {
	PERows          int `yaml:"pe_rows"`
	PECols          int `yaml:"pe_cols"`
	IfmapSpadBytes  int `yaml:"ifmap_spad_bytes"`
	WeightSpadBytes int `yaml:"weight_spad_bytes"`
	PsumSpadBytes   int `yaml:"psum_spad_bytes"`
	GLBBytes        int `yaml:"glb_bytes"`
	BusBandwidth    int `yaml:"bus_bandwidth"`
	NoCBandwidth    int `yaml:"noc_bandwidth"`
}

// DefaultHardware returns the 6x8 array with a 64 KiB global buffer.
func DefaultHardware() HardwareParams {
	return HardwareParams{
		PERows:          ArrayRows,
		PECols:          ArrayCols,
		IfmapSpadBytes:  IfmapWordsPerPE * WordBytes,
		WeightSpadBytes: WeightWordsPerPE * WordBytes,
		PsumSpadBytes:   PsumsPerPE * WordBytes,
		GLBBytes:        int(64 * mem.KB),
		BusBandwidth:    4,
		NoCBandwidth:    4,
	}
}

// NumPE returns the number of PEs.
func (h HardwareParams) NumPE() int {
	return h.PERows * h.PECols
}

// Validate rejects non-positive parameters and grids the array model cannot
// represent.
func (h HardwareParams) Validate() error {
	fields := []struct {
		name  string
		value int
	}{
		{"pe_rows", h.PERows},
		{"pe_cols", h.PECols},
		{"ifmap_spad_bytes", h.IfmapSpadBytes},
		{"weight_spad_bytes", h.WeightSpadBytes},
		{"psum_spad_bytes", h.PsumSpadBytes},
		{"glb_bytes", h.GLBBytes},
		{"bus_bandwidth", h.BusBandwidth},
		{"noc_bandwidth", h.NoCBandwidth},
	}

	for _, f := range fields {
		if f.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d",
				ErrInvalidHardware, f.name, f.value)
		}
	}

	if h.PERows != ArrayRows || h.PECols != ArrayCols {
		return fmt.Errorf("%w: only a %dx%d array is supported, got %dx%d",
			ErrInvalidHardware, ArrayRows, ArrayCols, h.PERows, h.PECols)
	}

	return nil
}
