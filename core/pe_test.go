package core

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/eyemap/eyeriss"
)

func randomWords(rng *rand.Rand, n int) []uint32 {
	words := make([]uint32, n)
	for i := range words {
		words[i] = rng.Uint32()
	}

	return words
}

func expectedPsums(ifmap, weight []uint32) [eyeriss.PsumsPerPE]int32 {
	var out [eyeriss.PsumsPerPE]int32
	for i := 0; i < eyeriss.IfmapWordsPerPE; i++ {
		for j := 0; j < eyeriss.PsumsPerPE; j++ {
			out[j] += eyeriss.DotLanes(ifmap[i], weight[i*eyeriss.PsumsPerPE+j])
		}
	}

	return out
}

var _ = Describe("PE", func() {
	var (
		pe  *PE
		rng *rand.Rand
	)

	BeforeEach(func() {
		pe = &PE{index: 3}
		rng = rand.New(rand.NewSource(7))
	})

	It("should compute the full tile at once", func() {
		ifmap := randomWords(rng, eyeriss.IfmapWordsPerPE)
		weight := randomWords(rng, eyeriss.WeightWordsPerPE)
		pe.LoadIfmap(ifmap)
		pe.LoadWeight(weight)

		Expect(pe.ComputeFull()).To(Succeed())
		Expect(pe.OutputValid()).To(BeTrue())
		Expect(pe.Psums()).To(Equal(expectedPsums(ifmap, weight)))
		Expect(pe.MACs()).To(Equal(uint64(48)))
	})

	It("should pair ifmap word i with weight words 4i..4i+3", func() {
		pe.LoadIfmap([]uint32{0, 0x00000001})
		pe.SetWeightWord(4, 5)
		pe.SetWeightWord(7, 9)
		pe.SetWeightWord(0, 100)

		Expect(pe.ComputeFull()).To(Succeed())
		Expect(pe.Psums()).To(Equal([4]int32{5, 0, 0, 9}))
	})

	It("should zero missing words and ignore extra ones", func() {
		pe.LoadIfmap([]uint32{1, 2, 3, 4, 5})
		Expect(pe.IfmapWord(2)).To(Equal(uint32(3)))
		pe.LoadIfmap([]uint32{9})
		Expect(pe.IfmapWord(1)).To(Equal(uint32(0)))
	})

	It("should refuse to compute while the output is pending", func() {
		pe.LoadIfmap([]uint32{0x01010101})
		pe.LoadWeight([]uint32{0x01010101})
		Expect(pe.ComputeFull()).To(Succeed())

		err := pe.ComputeFull()
		Expect(err).To(MatchError(ErrOutputPending))
		Expect(pe.Psum(0)).To(Equal(int32(4)))
	})

	It("should accumulate on top of retained partial sums", func() {
		pe.LoadIfmap([]uint32{0x01010101})
		pe.LoadWeight([]uint32{0x01010101})
		Expect(pe.ComputeFull()).To(Succeed())

		pe.Retain()
		Expect(pe.State()).To(Equal(PEIdle))
		Expect(pe.ComputeFull()).To(Succeed())
		Expect(pe.Psum(0)).To(Equal(int32(8)))
	})

	It("should step one lane MAC per cycle", func() {
		pe.LoadIfmap([]uint32{0x00000002})
		pe.LoadWeight([]uint32{0x00000003, 0x00000005})
		Expect(pe.StartCycleCompute()).To(Succeed())

		Expect(pe.StepCycle()).To(BeTrue())
		Expect(pe.Psums()).To(Equal([4]int32{6, 0, 0, 0}))

		for i := 0; i < 4; i++ {
			Expect(pe.StepCycle()).To(BeTrue())
		}
		Expect(pe.Psums()).To(Equal([4]int32{6, 10, 0, 0}))
		Expect(pe.Busy()).To(BeTrue())
	})

	It("should finish a stepped computation in 48 cycles", func() {
		ifmap := randomWords(rng, eyeriss.IfmapWordsPerPE)
		weight := randomWords(rng, eyeriss.WeightWordsPerPE)
		pe.LoadIfmap(ifmap)
		pe.LoadWeight(weight)
		Expect(pe.StartCycleCompute()).To(Succeed())

		steps := 0
		for pe.StepCycle() {
			steps++
		}

		Expect(steps).To(Equal(48))
		Expect(pe.OutputValid()).To(BeTrue())
		Expect(pe.Psums()).To(Equal(expectedPsums(ifmap, weight)))
		Expect(pe.StartCycleCompute()).To(MatchError(ErrOutputPending))
	})

	It("should consume and reset partial sums", func() {
		pe.AddPartialSum(-7, 2)
		pe.AddPartialSum(3, 2)
		Expect(pe.Psum(2)).To(Equal(int32(-4)))

		out := pe.Consume()
		Expect(out).To(Equal([4]int32{0, 0, -4, 0}))
		Expect(pe.Psums()).To(Equal([4]int32{}))
		Expect(pe.State()).To(Equal(PEIdle))
	})

	It("should reset everything but the tag", func() {
		pe.tag = 11
		pe.LoadIfmap([]uint32{1})
		pe.AddPartialSum(1, 0)
		Expect(pe.StartCycleCompute()).To(Succeed())

		pe.Reset()
		Expect(pe.State()).To(Equal(PEIdle))
		Expect(pe.IfmapWord(0)).To(Equal(uint32(0)))
		Expect(pe.Psum(0)).To(Equal(int32(0)))
		Expect(pe.Tag()).To(Equal(11))
	})
})
