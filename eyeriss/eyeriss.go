// Package eyeriss provides the data structures shared by the cost model, the
// mapping explorer and the PE-array simulator.
package eyeriss

const (
	// WordBytes is the size of a packed word in bytes.
	WordBytes = 4

	// LanesPerWord is the number of byte lanes in a packed word.
	LanesPerWord = 4

	// IfmapWordsPerPE is the number of ifmap words a PE scratchpad holds.
	IfmapWordsPerPE = 3

	// WeightWordsPerPE is the number of weight words a PE scratchpad holds.
	WeightWordsPerPE = 12

	// PsumsPerPE is the number of output channels a PE accumulates.
	PsumsPerPE = 4

	// ArrayRows and ArrayCols describe the fixed PE grid.
	ArrayRows = 6
	ArrayCols = 8

	// NumPE is the number of PEs in the array.
	NumPE = ArrayRows * ArrayCols
)

// Lane extracts byte lane k of a packed word as an unsigned value.
func Lane(w uint32, k int) uint32 {
	return (w >> (8 * k)) & 0xFF
}

// Lanes unpacks all four lanes of a word, lane 0 first.
func Lanes(w uint32) [LanesPerWord]uint8 {
	var b [LanesPerWord]uint8
	for k := 0; k < LanesPerWord; k++ {
		b[k] = uint8(Lane(w, k))
	}

	return b
}

// Pack builds a word from four byte lanes, lane 0 in the lowest byte.
func Pack(b [LanesPerWord]uint8) uint32 {
	var w uint32
	for k := 0; k < LanesPerWord; k++ {
		w |= uint32(b[k]) << (8 * k)
	}

	return w
}

// DotLanes multiplies two words lane by lane and sums the products.
func DotLanes(a, b uint32) int32 {
	var sum uint32
	for k := 0; k < LanesPerWord; k++ {
		sum += Lane(a, k) * Lane(b, k)
	}

	return int32(sum)
}

// CeilDiv divides a by b rounding up. Both must be positive.
func CeilDiv(a, b int) int {
	return (a + b - 1) / b
}
