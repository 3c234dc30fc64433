package verify

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/sarchlab/eyemap/eyeriss"
	valgen "github.com/sarchlab/eyemap/util"
)

// File names inside a pattern directory.
const (
	IfmapFile  = "A.txt"
	WeightFile = "B.txt"
	GoldenFile = "C_golden.txt"
)

// DefaultByteLimit is the largest byte value drawn for generated patterns.
const DefaultByteLimit = 32

// Pattern is a test case: the two operands and the expected output.
type Pattern struct {
	Shape  eyeriss.LinearShape
	Ifmap  []uint32
	Weight []uint32
	Golden []int32
}

// GeneratePattern fills A and B with random bytes in [0, limit] and
// computes the golden output. Padding lanes past InFeatures stay zero.
func GeneratePattern(shape eyeriss.LinearShape, rng *rand.Rand, limit uint8) Pattern {
	gen := valgen.MakeRandomGen(rng, limit)
	iw := shape.InWords()

	lanes := func(w int) int {
		return min(eyeriss.LanesPerWord, shape.InFeatures-w*eyeriss.LanesPerWord)
	}

	p := Pattern{
		Shape:  shape,
		Ifmap:  make([]uint32, shape.IfmapWords()),
		Weight: make([]uint32, shape.WeightWords()),
	}

	for i := 0; i < shape.Batch; i++ {
		for w := 0; w < iw; w++ {
			p.Ifmap[i*iw+w] = valgen.PackWord(gen, lanes(w))
		}
	}

	for w := 0; w < iw; w++ {
		for j := 0; j < shape.OutFeatures; j++ {
			p.Weight[w*shape.OutFeatures+j] = valgen.PackWord(gen, lanes(w))
		}
	}

	p.Golden = Reference(shape, p.Ifmap, p.Weight)

	return p
}

// Save writes the pattern files into dir, creating it if needed.
func (p Pattern) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	files := []struct {
		name  string
		words []uint32
	}{
		{IfmapFile, p.Ifmap},
		{WeightFile, p.Weight},
		{GoldenFile, ToWords(p.Golden)},
	}

	for _, f := range files {
		if err := SaveHex(filepath.Join(dir, f.name), f.words); err != nil {
			return fmt.Errorf("saving pattern: %w", err)
		}
	}

	return nil
}

// LoadPattern reads a pattern directory for a layer. A missing golden file
// is replaced by the reference output.
func LoadPattern(dir string, shape eyeriss.LinearShape) (Pattern, error) {
	p := Pattern{Shape: shape}

	var err error
	if p.Ifmap, err = LoadHex(filepath.Join(dir, IfmapFile)); err != nil {
		return Pattern{}, fmt.Errorf("loading pattern: %w", err)
	}

	if p.Weight, err = LoadHex(filepath.Join(dir, WeightFile)); err != nil {
		return Pattern{}, fmt.Errorf("loading pattern: %w", err)
	}

	checkSize(dir, IfmapFile, len(p.Ifmap), shape.IfmapWords())
	checkSize(dir, WeightFile, len(p.Weight), shape.WeightWords())

	golden, err := LoadHex(filepath.Join(dir, GoldenFile))
	switch {
	case os.IsNotExist(err):
		p.Golden = Reference(shape, p.Ifmap, p.Weight)
	case err != nil:
		return Pattern{}, fmt.Errorf("loading pattern: %w", err)
	default:
		checkSize(dir, GoldenFile, len(golden), shape.OutputWords())
		p.Golden = ToInt32(golden)
	}

	return p, nil
}

func checkSize(dir, name string, got, want int) {
	if got != want {
		slog.Warn("pattern size does not match the layer",
			"Dir", dir, "File", name, "Words", got, "Expected", want)
	}
}
