package analyzer

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/eyemap/eyeriss"
)

var _ = Describe("Analyze", func() {
	var (
		hw eyeriss.HardwareParams
	)

	BeforeEach(func() {
		hw = eyeriss.DefaultHardware()
	})

	Context("small memory-bound layer", func() {
		var (
			shape eyeriss.LinearShape
			m     eyeriss.Mapping
			r     Result
		)

		BeforeEach(func() {
			var err error
			shape = eyeriss.LinearShape{Batch: 8, InFeatures: 48, OutFeatures: 32}
			m = eyeriss.NewMapping(1, 4, 6, 8)
			r, err = Analyze(shape, hw, m)
			Expect(err).ToNot(HaveOccurred())
		})

		It("should count traffic", func() {
			Expect(r.Legal).To(BeTrue())
			Expect(r.GLBUsage).To(Equal(2888))
			Expect(r.GLBRead).To(Equal(int64(19008)))
			Expect(r.GLBWrite).To(Equal(int64(1024)))
			Expect(r.GLBAccess()).To(Equal(int64(20032)))
			Expect(r.DRAMRead).To(Equal(int64(2376)))
			Expect(r.DRAMWrite).To(Equal(int64(128)))
			Expect(r.DRAMAccess()).To(Equal(int64(2504)))
			Expect(r.MACs).To(Equal(int64(12288)))
		})

		It("should derive latency", func() {
			Expect(r.LatencyCycles).To(BeNumerically("~", 13146, 1e-9))
			Expect(r.Latency).To(BeNumerically("~", 13146/200e6, 1e-15))
			Expect(r.ComputeCycles).To(BeNumerically("~", 432, 1e-9))
			Expect(r.EstimatedCycles).To(BeNumerically("~", 13578, 1e-9))
		})

		It("should derive energy and power", func() {
			Expect(r.Energy.Compute).To(BeNumerically("~", 0.024576, 1e-12))
			Expect(r.Energy.Memory).To(BeNumerically("~", 0.70112, 1e-12))
			Expect(r.Energy.Leakage).To(BeNumerically("~", 50*13146/200e6, 1e-12))
			Expect(r.Energy.Total).To(BeNumerically("~",
				r.Energy.Compute+r.Energy.Memory+r.Energy.Leakage, 1e-12))
			Expect(r.Power.Leakage).To(Equal(LeakagePower))
			Expect(r.Power.Total).To(BeNumerically("~",
				(r.Energy.Compute+r.Energy.Memory)/r.Latency+LeakagePower, 1e-6))
		})

		It("should classify the mapping as memory bound", func() {
			Expect(r.Intensity).To(BeNumerically("~", 12288.0/2504.0, 1e-12))
			Expect(r.PeakPerformance).To(Equal(48.0))
			Expect(r.PeakBandwidth).To(Equal(4.0))
			Expect(r.Bound).To(Equal(BoundMemory))
			Expect(r.IsMemoryBound()).To(BeTrue())
			Expect(r.Attainable()).To(BeNumerically("~", r.Intensity*4, 1e-12))
			Expect(r.Degenerate()).To(BeFalse())
		})

		It("should be pure", func() {
			again, err := Analyze(shape, hw, m)
			Expect(err).ToNot(HaveOccurred())
			Expect(again).To(Equal(r))
		})
	})

	It("should classify a large layer as compute bound", func() {
		shape := eyeriss.LinearShape{Batch: 64, InFeatures: 8192, OutFeatures: 256}
		r, err := Analyze(shape, hw, eyeriss.NewMapping(1, 16, 6, 8))
		Expect(err).ToNot(HaveOccurred())
		Expect(r.DRAMAccess()).To(Equal(int64(2110480)))
		Expect(r.Bound).To(Equal(BoundCompute))
		Expect(r.Attainable()).To(Equal(48.0))
	})

	It("should reload partial sums on every input pass but the first", func() {
		shape := eyeriss.LinearShape{Batch: 6, InFeatures: 96, OutFeatures: 8}
		m := eyeriss.NewMapping(6, 6, 6, 2)
		s := NewSchedule(shape, m)
		Expect(s.PassesK).To(Equal(2))
		Expect(s.OutTiles).To(Equal(1))
		Expect(s.NSteps).To(Equal(1))
		Expect(s.KSteps).To(Equal(6))

		t := EstimateTraffic(shape, m)
		psum := PsumGroupBytes(m)
		Expect(t.GLBWrite).To(Equal(2 * psum))
		Expect(t.GLBRead).To(Equal(
			2*6*(IfmapStepBytes(m)+WeightStepBytes(m)) + psum))
	})

	It("should analyze a mapping that overflows the GLB as illegal", func() {
		shape := eyeriss.LinearShape{Batch: 64, InFeatures: 8192, OutFeatures: 256}
		r, err := Analyze(shape, hw, eyeriss.NewMapping(1, 64, 6, 8))
		Expect(err).ToNot(HaveOccurred())
		Expect(r.Legal).To(BeFalse())
	})

	It("should reject malformed inputs", func() {
		shape := eyeriss.LinearShape{Batch: 0, InFeatures: 8, OutFeatures: 8}
		_, err := Analyze(shape, hw, eyeriss.NewMapping(1, 1, 6, 8))
		Expect(err).To(MatchError(eyeriss.ErrInvalidShape))

		shape.Batch = 1
		_, err = Model{}.Analyze(shape, hw, eyeriss.Mapping{Mode: 5})
		Expect(err).To(MatchError(eyeriss.ErrInvalidMode))
	})

	Context("degenerate metrics", func() {
		It("should leave intensity undefined without DRAM traffic", func() {
			intensity, bound := classify(Result{MACs: 10, PeakBandwidth: 4, PeakPerformance: 48})
			Expect(math.IsNaN(intensity)).To(BeTrue())
			Expect(bound).To(Equal(BoundUndefined))
		})

		It("should leave power undefined without latency", func() {
			p := estimatePower(Result{})
			Expect(math.IsNaN(p.Total)).To(BeTrue())
			Expect(Result{Power: p}.Degenerate()).To(BeTrue())
		})

		It("should report a balanced mapping on the ridge point", func() {
			r := Result{
				MACs:            120,
				Traffic:         Traffic{DRAMRead: 10},
				PeakPerformance: 48,
				PeakBandwidth:   4,
			}
			_, bound := classify(r)
			Expect(bound).To(Equal(BoundBalanced))
			Expect(bound.String()).To(Equal("balanced"))
		})
	})
})
