package api

import (
	"errors"
	"math/rand"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/eyemap/analyzer"
	"github.com/sarchlab/eyemap/core"
	"github.com/sarchlab/eyemap/eyeriss"
)

func referenceGEMM(shape eyeriss.LinearShape, a, b []uint32) []int32 {
	iw, out := shape.InWords(), shape.OutFeatures
	c := make([]int32, shape.OutputWords())

	for i := 0; i < shape.Batch; i++ {
		for j := 0; j < out; j++ {
			var sum int32
			for w := 0; w < iw; w++ {
				sum += eyeriss.DotLanes(a[i*iw+w], b[w*out+j])
			}
			c[i*out+j] = sum
		}
	}

	return c
}

func randomMatrices(
	rng *rand.Rand,
	shape eyeriss.LinearShape,
) (a, b []uint32) {
	a = make([]uint32, shape.IfmapWords())
	b = make([]uint32, shape.WeightWords())

	for i := range a {
		a[i] = rng.Uint32()
	}

	for i := range b {
		b[i] = rng.Uint32()
	}

	return a, b
}

var _ = Describe("Scheduler", func() {
	var (
		shape eyeriss.LinearShape
		rng   *rand.Rand
	)

	BeforeEach(func() {
		shape = eyeriss.LinearShape{Batch: 5, InFeatures: 100, OutFeatures: 45}
		rng = rand.New(rand.NewSource(2024))
	})

	DescribeTable("matches the reference GEMM",
		func(m eyeriss.Mapping) {
			a, b := randomMatrices(rng, shape)

			s, err := MakeSchedulerBuilder().
				WithShape(shape).
				WithMapping(m).
				Build("Scheduler")
			Expect(err).ToNot(HaveOccurred())
			Expect(s.Run(a, b)).To(Succeed())

			got, err := s.Output()
			Expect(err).ToNot(HaveOccurred())
			Expect(cmp.Diff(referenceGEMM(shape, a, b), got)).To(BeEmpty())
			Expect(s.Stats().Hazards).To(Equal(0))
		},
		Entry("mode 1", eyeriss.NewMapping(1, 3, 6, 8)),
		Entry("mode 1 narrow columns", eyeriss.Mapping{TK: 6, TN: 3, Mode: 1, M: 2, K: 6, N: 5}),
		Entry("mode 2", eyeriss.NewMapping(2, 3, 4, 3)),
		Entry("mode 3", eyeriss.NewMapping(3, 4, 5, 10)),
		Entry("mode 6", eyeriss.NewMapping(6, 5, 2, 9)),
		Entry("single tile", eyeriss.NewMapping(6, 5, 9, 12)),
	)

	DescribeTable("charges the traffic the cost model predicts",
		func(m eyeriss.Mapping) {
			a, b := randomMatrices(rng, shape)

			s, err := MakeSchedulerBuilder().
				WithShape(shape).
				WithMapping(m).
				Build("Scheduler")
			Expect(err).ToNot(HaveOccurred())
			Expect(s.Run(a, b)).To(Succeed())

			r, err := analyzer.Analyze(shape, eyeriss.DefaultHardware(), m)
			Expect(err).ToNot(HaveOccurred())

			stats := s.Stats()
			sched := analyzer.NewSchedule(shape, m)
			Expect(stats.Traffic).To(Equal(analyzer.EstimateTraffic(shape, m)))
			Expect(stats.TileSteps).To(Equal(sched.TileSteps()))
			Expect(stats.KSteps).To(Equal(sched.TileSteps() * int64(sched.KSteps)))
			Expect(stats.MemoryCycles).To(Equal(r.LatencyCycles))
			Expect(stats.TotalCycles).To(Equal(r.EstimatedCycles))
		},
		Entry("mode 1", eyeriss.NewMapping(1, 3, 6, 8)),
		Entry("mode 2", eyeriss.NewMapping(2, 3, 4, 3)),
		Entry("mode 3", eyeriss.NewMapping(3, 4, 5, 10)),
		Entry("mode 6", eyeriss.NewMapping(6, 5, 2, 9)),
	)

	It("should produce the same output cycle by cycle", func() {
		m := eyeriss.NewMapping(3, 4, 5, 10)
		a, b := randomMatrices(rng, shape)

		atomic, err := MakeSchedulerBuilder().
			WithShape(shape).
			WithMapping(m).
			Build("Atomic")
		Expect(err).ToNot(HaveOccurred())
		Expect(atomic.Run(a, b)).To(Succeed())

		engine := sim.NewSerialEngine()
		builder := core.NewBuilder().WithEngine(engine).WithMode(m.Mode)
		array := builder.Build("Stepped.Array")
		stepped, err := MakeSchedulerBuilder().
			WithShape(shape).
			WithMapping(m).
			WithStepper(builder.BuildStepper("Stepped.Stepper", array)).
			Build("Stepped")
		Expect(err).ToNot(HaveOccurred())
		Expect(stepped.Run(a, b)).To(Succeed())

		want, _ := atomic.Output()
		got, _ := stepped.Output()
		Expect(got).To(Equal(want))
		Expect(stepped.Array()).To(BeIdenticalTo(array))
		Expect(stepped.Stats().ComputeCycles).To(Equal(atomic.Stats().ComputeCycles))
		Expect(stepped.Stats().TotalCycles).To(Equal(atomic.Stats().TotalCycles))
	})

	It("should be repeatable", func() {
		m := eyeriss.NewMapping(2, 3, 4, 3)
		a, b := randomMatrices(rng, shape)

		s, err := MakeSchedulerBuilder().WithShape(shape).WithMapping(m).Build("S")
		Expect(err).ToNot(HaveOccurred())
		Expect(s.Run(a, b)).To(Succeed())
		first, _ := s.Output()
		stats := s.Stats()

		Expect(s.Run(a, b)).To(Succeed())
		second, _ := s.Output()
		Expect(second).To(Equal(first))
		Expect(s.Stats()).To(Equal(stats))
	})

	It("should reject an illegal mapping before running", func() {
		_, err := MakeSchedulerBuilder().
			WithShape(shape).
			WithMapping(eyeriss.NewMapping(1, 5, 600, 8)).
			Build("S")
		Expect(err).To(MatchError(eyeriss.ErrGLBOverflow))
	})

	It("should stop on an output write out of range", func() {
		a, b := randomMatrices(rng, shape)
		s, err := MakeSchedulerBuilder().
			WithShape(shape).
			WithMapping(eyeriss.NewMapping(1, 3, 6, 8)).
			WithOutput(NewBuffer("Small", 10)).
			Build("S")
		Expect(err).ToNot(HaveOccurred())

		err = s.Run(a, b)
		var ierr *IndexError
		Expect(errors.As(err, &ierr)).To(BeTrue())
		Expect(ierr.Buffer).To(Equal("Small"))
		Expect(ierr.Coord).ToNot(BeNil())
		Expect(ierr.Index).To(BeNumerically(">=", 10))
	})

	It("should read missing input words as zero", func() {
		s, err := MakeSchedulerBuilder().
			WithShape(shape).
			WithMapping(eyeriss.NewMapping(6, 5, 2, 9)).
			Build("S")
		Expect(err).ToNot(HaveOccurred())
		Expect(s.Run(nil, nil)).To(Succeed())

		got, _ := s.Output()
		Expect(got).To(Equal(make([]int32, shape.OutputWords())))
	})
})
