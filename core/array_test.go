package core

import (
	"bytes"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/eyemap/eyeriss"
)

func loadRandom(a *PEArray, rng *rand.Rand) {
	for i := 0; i < eyeriss.NumPE; i++ {
		a.PE(i).LoadIfmap(randomWords(rng, eyeriss.IfmapWordsPerPE))
		a.PE(i).LoadWeight(randomWords(rng, eyeriss.WeightWordsPerPE))
	}
}

var _ = Describe("PEArray", func() {
	var (
		array *PEArray
		rng   *rand.Rand
	)

	BeforeEach(func() {
		array = NewBuilder().Build("Array")
		rng = rand.New(rand.NewSource(42))
	})

	It("should reject unsupported modes", func() {
		Expect(array.SetMode(4)).To(MatchError(eyeriss.ErrInvalidMode))
		Expect(array.Mode()).To(Equal(eyeriss.Mode(1)))
	})

	DescribeTable("tags",
		func(mode eyeriss.Mode, expected func(i int) int) {
			Expect(array.SetMode(mode)).To(Succeed())
			for i := 0; i < eyeriss.NumPE; i++ {
				Expect(array.PE(i).Tag()).To(Equal(expected(i)), "PE %d", i)
			}
		},
		Entry("mode 1", eyeriss.Mode(1), func(i int) int { return i % 8 }),
		Entry("mode 2", eyeriss.Mode(2), func(i int) int {
			if i < 24 {
				return i % 8
			}
			return i%8 + 8
		}),
		Entry("mode 3", eyeriss.Mode(3), func(i int) int {
			switch {
			case i < 16:
				return i % 8
			case i < 32:
				return i%8 + 8
			default:
				return i%8 + 16
			}
		}),
		Entry("mode 6", eyeriss.Mode(6), func(i int) int { return i }),
	)

	DescribeTable("reduction",
		func(mode eyeriss.Mode) {
			Expect(array.SetMode(mode)).To(Succeed())
			loadRandom(array, rng)
			Expect(array.ComputeAll()).To(Equal(0))

			var before [eyeriss.NumPE][eyeriss.PsumsPerPE]int32
			for i := range before {
				before[i] = array.PE(i).Psums()
			}

			array.ReducePartials()

			for g := 0; g < mode.Groups(); g++ {
				for c := 0; c < eyeriss.ArrayCols; c++ {
					var want [eyeriss.PsumsPerPE]int32
					for r := mode.BaseRow(g); r <= mode.LeaderRow(g); r++ {
						for j := range want {
							want[j] += before[r*eyeriss.ArrayCols+c][j]
						}
					}

					leader := array.Leader(g, c)
					Expect(leader.Psums()).To(Equal(want))
					Expect(leader.OutputValid()).To(BeTrue())

					for r := mode.BaseRow(g); r < mode.LeaderRow(g); r++ {
						pe := array.At(r, c)
						Expect(pe.OutputValid()).To(BeFalse())
						Expect(pe.Psums()).To(Equal([4]int32{}))
					}
				}
			}
		},
		Entry("mode 1", eyeriss.Mode(1)),
		Entry("mode 2", eyeriss.Mode(2)),
		Entry("mode 3", eyeriss.Mode(3)),
		Entry("mode 6", eyeriss.Mode(6)),
	)

	It("should skip PEs without a valid output", func() {
		array.PE(0).AddPartialSum(5, 0)
		array.PE(8).LoadIfmap([]uint32{1})
		array.PE(8).LoadWeight([]uint32{1})
		Expect(array.PE(8).ComputeFull()).To(Succeed())

		array.ReducePartials()
		Expect(array.PE(0).Psum(0)).To(Equal(int32(5)))
		Expect(array.PE(8).Psum(0)).To(Equal(int32(0)))
		Expect(array.PE(16).Psum(0)).To(Equal(int32(1)))
		Expect(array.PE(24).Psum(0)).To(Equal(int32(0)))
	})

	It("should count structural hazards and keep running", func() {
		loadRandom(array, rng)
		Expect(array.ComputeAll()).To(Equal(0))
		psum := array.PE(5).Psums()

		Expect(array.ComputeAll()).To(Equal(eyeriss.NumPE))
		Expect(array.Hazards()).To(Equal(eyeriss.NumPE))
		Expect(array.PE(5).Psums()).To(Equal(psum))

		array.RetainAll()
		Expect(array.ComputeAll()).To(Equal(0))

		array.Reset()
		Expect(array.Hazards()).To(Equal(0))
	})

	It("should step to the same result as the atomic computation", func() {
		loadRandom(array, rng)
		other := NewBuilder().Build("Other")
		for i := 0; i < eyeriss.NumPE; i++ {
			for w := 0; w < eyeriss.IfmapWordsPerPE; w++ {
				other.PE(i).SetIfmapWord(w, array.PE(i).IfmapWord(w))
			}
			for w := 0; w < eyeriss.WeightWordsPerPE; w++ {
				other.PE(i).SetWeightWord(w, array.PE(i).WeightWord(w))
			}
		}

		array.ComputeAll()
		Expect(other.StartAll()).To(Equal(0))

		cycles := 0
		for other.AnyBusy() {
			Expect(other.StepAll()).To(BeTrue())
			cycles++
		}

		Expect(cycles).To(Equal(48))
		for i := 0; i < eyeriss.NumPE; i++ {
			Expect(other.PE(i).Psums()).To(Equal(array.PE(i).Psums()))
		}
		Expect(other.MACs()).To(Equal(array.MACs()))
	})

	It("should clear every PE", func() {
		loadRandom(array, rng)
		array.ComputeAll()
		array.ClearAll()

		for i := 0; i < eyeriss.NumPE; i++ {
			Expect(array.PE(i).State()).To(Equal(PEIdle))
			Expect(array.PE(i).Psums()).To(Equal([4]int32{}))
		}
	})

	It("should dump the grid", func() {
		var buf bytes.Buffer
		array.Dump(&buf)
		DumpPE(&buf, array.PE(0))
		Expect(buf.String()).To(ContainSubstring("Array"))
		Expect(buf.String()).To(ContainSubstring("psum"))
	})

	It("should panic on an invalid PE index", func() {
		Expect(func() { array.PE(eyeriss.NumPE) }).To(Panic())
	})
})

var _ = Describe("Stepper", func() {
	It("should run a stepped computation on the engine", func() {
		engine := sim.NewSerialEngine()
		builder := NewBuilder().WithEngine(engine).WithMode(3)
		array := builder.Build("Array")
		stepper := builder.BuildStepper("Array.Stepper", array)
		loadRandom(array, rand.New(rand.NewSource(1)))

		cycles, refused, err := stepper.RunToCompletion()
		Expect(err).ToNot(HaveOccurred())
		Expect(refused).To(Equal(0))
		Expect(cycles).To(Equal(uint64(48)))
		Expect(array.AnyBusy()).To(BeFalse())
		Expect(array.PE(0).OutputValid()).To(BeTrue())

		array.RetainAll()
		cycles, _, err = stepper.RunToCompletion()
		Expect(err).ToNot(HaveOccurred())
		Expect(cycles).To(Equal(uint64(48)))
		Expect(stepper.Cycles()).To(Equal(uint64(96)))
		Expect(engine.CurrentTime()).To(BeNumerically(">", 0))
	})

	It("should require an engine", func() {
		b := NewBuilder()
		Expect(func() { b.BuildStepper("S", b.Build("A")) }).To(Panic())
	})
})
