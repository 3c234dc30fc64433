// Package verify checks simulated outputs against a reference GEMM and
// handles the files the tools exchange.
package verify

import (
	"fmt"

	"github.com/sarchlab/eyemap/eyeriss"
)

// Reference computes C = A·B directly over the packed byte lanes.
func Reference(shape eyeriss.LinearShape, a, b []uint32) []int32 {
	iw, out := shape.InWords(), shape.OutFeatures
	c := make([]int32, shape.OutputWords())

	for i := 0; i < shape.Batch; i++ {
		for j := 0; j < out; j++ {
			var sum int32
			for w := 0; w < iw; w++ {
				sum += eyeriss.DotLanes(word(a, i*iw+w), word(b, w*out+j))
			}
			c[i*out+j] = sum
		}
	}

	return c
}

func word(m []uint32, i int) uint32 {
	if i >= len(m) {
		return 0
	}

	return m[i]
}

// MismatchError describes how a simulated output differs from the
// reference.
type MismatchError struct {
	Count      int
	FirstIndex int
	LastIndex  int

	// Expected and Actual are the values at LastIndex.
	Expected int32
	Actual   int32
	LenWant  int
	LenGot   int
}

func (e *MismatchError) Error() string {
	if e.LenWant != e.LenGot {
		return fmt.Sprintf("output has %d words, expected %d", e.LenGot, e.LenWant)
	}

	return fmt.Sprintf(
		"%d mismatches, first at %d, last at %d (expected %d, got %d)",
		e.Count, e.FirstIndex, e.LastIndex, e.Expected, e.Actual)
}

// Compare returns a *MismatchError if the outputs differ.
func Compare(expected, actual []int32) error {
	if len(expected) != len(actual) {
		return &MismatchError{LenWant: len(expected), LenGot: len(actual)}
	}

	var e *MismatchError
	for i := range expected {
		if expected[i] == actual[i] {
			continue
		}

		if e == nil {
			e = &MismatchError{FirstIndex: i, LenWant: len(expected), LenGot: len(actual)}
		}

		e.Count++
		e.LastIndex = i
		e.Expected = expected[i]
		e.Actual = actual[i]
	}

	if e != nil {
		return e
	}

	return nil
}
