package eyeriss

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidShape means a layer dimension is not positive.
	ErrInvalidShape = errors.New("invalid linear shape")

	// ErrInvalidHardware means the hardware parameters are unusable.
	ErrInvalidHardware = errors.New("invalid hardware parameters")

	// ErrInvalidMode means the reduction mode is not supported.
	ErrInvalidMode = errors.New("invalid reduction mode")

	// ErrIllegalMapping means a mapping violates a tiling constraint.
	ErrIllegalMapping = errors.New("illegal mapping")

	// ErrGLBOverflow means the tiles of a mapping do not fit in the GLB.
	ErrGLBOverflow = fmt.Errorf("%w: global buffer overflow", ErrIllegalMapping)
)

// Mapping is one candidate tiling of a linear layer.
//
// K counts PE rows, each covering IfmapWordsPerPE words of the reduction
// dimension. N counts PE columns, each covering PsumsPerPE output channels.
type Mapping struct {
	TK   int  `yaml:"tk"`
	TN   int  `yaml:"tn"`
	Mode Mode `yaml:"mode"`
	M    int  `yaml:"m"`
	K    int  `yaml:"k"`
	N    int  `yaml:"n"`
}

// NewMapping creates a mapping using the mode's tk and the full column
// width as tn.
func NewMapping(mode Mode, m, k, n int) Mapping {
	return Mapping{
		TK:   mode.RowsPerGroup(),
		TN:   ArrayCols,
		Mode: mode,
		M:    m,
		K:    k,
		N:    n,
	}
}

// TileWords is the number of reduction words covered by one K tile.
func (m Mapping) TileWords() int {
	return m.K * IfmapWordsPerPE
}

// TileChannels is the number of output channels covered by one N tile.
func (m Mapping) TileChannels() int {
	return m.N * PsumsPerPE
}

// StepWords is the number of reduction words consumed by one K step.
func (m Mapping) StepWords() int {
	return m.TK * IfmapWordsPerPE
}

// StepChannels is the number of output channels produced by one N step.
func (m Mapping) StepChannels() int {
	return m.TN * PsumsPerPE
}

// GLBFootprint returns the bytes the tiles of the mapping occupy in the
// global buffer: one ifmap tile, one weight tile and the output rows of a
// batch tile.
func GLBFootprint(shape LinearShape, m Mapping) int {
	ifmap := m.K * IfmapWordsPerPE * WordBytes
	weight := m.K * m.N * WeightWordsPerPE * WordBytes
	output := m.M * shape.OutFeatures * WordBytes

	return ifmap + weight + output
}

// Fits reports whether the mapping fits in the global buffer.
func (m Mapping) Fits(shape LinearShape, hw HardwareParams) bool {
	return GLBFootprint(shape, m) <= hw.GLBBytes
}

// Validate checks the mapping against the layer and the hardware.
func (m Mapping) Validate(shape LinearShape, hw HardwareParams) error {
	if err := m.ValidateTiling(shape, hw); err != nil {
		return err
	}

	if !m.Fits(shape, hw) {
		return fmt.Errorf("%w: %d bytes needed, %d available",
			ErrGLBOverflow, GLBFootprint(shape, m), hw.GLBBytes)
	}

	return nil
}

// ValidateTiling checks every constraint except the global buffer capacity.
func (m Mapping) ValidateTiling(shape LinearShape, hw HardwareParams) error {
	if !m.Mode.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidMode, int(m.Mode))
	}

	if m.TK != m.Mode.RowsPerGroup() {
		return fmt.Errorf("%w: tk %d does not match %v (want %d)",
			ErrIllegalMapping, m.TK, m.Mode, m.Mode.RowsPerGroup())
	}

	if m.TN < 1 || m.TN > hw.PECols {
		return fmt.Errorf("%w: tn %d out of range 1..%d",
			ErrIllegalMapping, m.TN, hw.PECols)
	}

	if m.M < 1 || m.M > shape.Batch {
		return fmt.Errorf("%w: M %d out of range 1..%d",
			ErrIllegalMapping, m.M, shape.Batch)
	}

	if m.K < 1 || m.N < 1 {
		return fmt.Errorf("%w: K %d and N %d must be positive",
			ErrIllegalMapping, m.K, m.N)
	}

	return nil
}

func (m Mapping) String() string {
	return fmt.Sprintf("tk=%d tn=%d mode=%d M=%d K=%d N=%d",
		m.TK, m.TN, int(m.Mode), m.M, m.K, m.N)
}
