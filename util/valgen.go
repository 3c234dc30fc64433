// Some helpers using closures to generate values
package valgen

import "math/rand"

func MakeConstGen(constant uint8) func() uint8 {
	return func() uint8 {
		return constant
	}
}

func MakeIncreasingGen(start uint8) func() uint8 {
	current := start
	return func() uint8 {
		current++
		return current
	}
}

// MakeRandomGen returns bytes drawn uniformly from [0, limit]. The caller
// owns the random source, so a fixed seed reproduces the sequence.
func MakeRandomGen(rng *rand.Rand, limit uint8) func() uint8 {
	return func() uint8 {
		return uint8(rng.Intn(int(limit) + 1))
	}
}

// PackWord draws the first lanes bytes of a word from gen and leaves the
// remaining lanes zero.
func PackWord(gen func() uint8, lanes int) uint32 {
	var w uint32
	for k := 0; k < lanes && k < 4; k++ {
		w |= uint32(gen()) << (8 * k)
	}

	return w
}
