// Package api runs a mapped linear layer on the PE array model.
package api

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/sarchlab/eyemap/analyzer"
	"github.com/sarchlab/eyemap/core"
	"github.com/sarchlab/eyemap/eyeriss"
)

// Stats summarizes one run. Traffic is charged per event in the same units
// as the cost model, so the two can be compared field by field.
type Stats struct {
	analyzer.Traffic

	TileSteps        int64
	KSteps           int64
	ComputeCycles    int64
	AccumulateCycles int64
	MemoryCycles     float64
	TotalCycles      float64
	Hazards          int
	MACs             uint64
}

// Scheduler walks the tile loop nest of a mapping and drives the PE array.
type Scheduler struct {
	name    string
	hw      eyeriss.HardwareParams
	shape   eyeriss.LinearShape
	mapping eyeriss.Mapping
	tiling  Tiling
	layout  Layout
	array   *core.PEArray
	stepper *core.Stepper
	output  *Buffer
	stats   Stats
}

// Name returns the name of the scheduler.
func (s *Scheduler) Name() string {
	return s.name
}

// Array returns the PE array.
func (s *Scheduler) Array() *core.PEArray {
	return s.array
}

// Stats returns the statistics of the last run.
func (s *Scheduler) Stats() Stats {
	return s.stats
}

// OutputBuffer returns the output buffer.
func (s *Scheduler) OutputBuffer() *Buffer {
	return s.output
}

// Output returns a copy of the output matrix.
func (s *Scheduler) Output() ([]int32, error) {
	return s.output.Words()
}

// Run computes C = A·B. Ifmap is A as Batch x InWords words and weight is B
// as InWords x OutFeatures words, both row-major.
func (s *Scheduler) Run(ifmap, weight []uint32) error {
	if len(ifmap) != s.shape.IfmapWords() || len(weight) != s.shape.WeightWords() {
		slog.Warn("input size does not match the layer, missing words read as zero",
			"Scheduler", s.name,
			"Ifmap", len(ifmap), "WantIfmap", s.shape.IfmapWords(),
			"Weight", len(weight), "WantWeight", s.shape.WeightWords())
	}

	s.stats = Stats{}
	s.array.Reset()
	if err := s.array.SetMode(s.mapping.Mode); err != nil {
		return err
	}

	m := s.mapping
	for outf := 0; outf < s.shape.OutFeatures; outf += m.TileChannels() {
		core.Trace("OutputTile", "Scheduler", s.name, "OutF", outf)

		for inf := 0; inf < s.shape.InWords(); inf += m.TileWords() {
			s.charge(analyzer.Traffic{DRAMRead: analyzer.WeightTileBytes(m)})
			if outf == 0 {
				s.charge(analyzer.Traffic{DRAMRead: analyzer.IfmapTileBytes(m)})
			}

			if err := s.runInputTile(outf, inf, ifmap, weight); err != nil {
				return err
			}
		}

		s.charge(analyzer.Traffic{
			DRAMWrite: analyzer.OutputTileBytes(s.shape, m, outf),
		})
	}

	s.finish()

	return nil
}

func (s *Scheduler) runInputTile(outf, inf int, ifmap, weight []uint32) error {
	m := s.mapping

	for b := 0; b < s.shape.Batch; b += m.M {
		for mm := 0; mm < m.M; mm += int(m.Mode) {
			for n := 0; n < m.TileChannels(); n += m.StepChannels() {
				c := TileCoord{OutF: outf, InF: inf, Batch: b, M: mm, N: n}
				if err := s.runGroup(c, ifmap, weight); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// runGroup computes one set of reduction groups: reload partial sums, run
// every K step, reduce and store.
func (s *Scheduler) runGroup(c TileCoord, ifmap, weight []uint32) error {
	m := s.mapping

	if c.InF != 0 {
		s.loadPartials(c)
	}

	for k := 0; k < m.TileWords(); k += m.StepWords() {
		c.K = k
		if k != 0 {
			s.array.RetainAll()
		}

		s.loadOperands(c, ifmap, weight)
		if err := s.compute(); err != nil {
			return err
		}
	}

	s.array.ReducePartials()
	s.stats.AccumulateCycles += analyzer.AccumulateLatency
	s.stats.TileSteps++

	err := s.storePartials(c)
	s.array.ClearAll()

	return err
}

func (s *Scheduler) loadPartials(c TileCoord) {
	m := s.mapping
	s.charge(analyzer.Traffic{GLBRead: analyzer.PsumGroupBytes(m)})

	for g := 0; g < m.Mode.Groups(); g++ {
		row, ok := s.tiling.BatchRow(c, g)
		if !ok {
			continue
		}

		for col := 0; col < m.TN; col++ {
			pe := s.array.Base(g, col)
			for j := 0; j < eyeriss.PsumsPerPE; j++ {
				ch, ok := s.tiling.OutChannel(c, col, j)
				if !ok {
					continue
				}

				off, _ := s.layout.OutputOffset(row, ch)
				v, err := s.output.Load(off)
				if err != nil {
					core.Trace("PsumReloadOutOfRange", "Row", row, "Channel", ch)
					continue
				}

				pe.AddPartialSum(v, j)
			}
		}
	}
}

func (s *Scheduler) loadOperands(c TileCoord, ifmap, weight []uint32) {
	m := s.mapping
	s.charge(analyzer.Traffic{
		GLBRead: analyzer.IfmapStepBytes(m) + analyzer.WeightStepBytes(m),
	})

	for g := 0; g < m.Mode.Groups(); g++ {
		row, rowOK := s.tiling.BatchRow(c, g)

		for r := 0; r < m.TK; r++ {
			for col := 0; col < eyeriss.ArrayCols; col++ {
				pe := s.array.PE(PEIndex(m.Mode, g, r, col))

				for slot := 0; slot < eyeriss.IfmapWordsPerPE; slot++ {
					word, wordOK := s.tiling.InWord(c, r, slot)

					var a uint32
					if rowOK && wordOK && col < m.TN {
						a = s.ifmapAt(ifmap, row, word)
					}
					pe.SetIfmapWord(slot, a)

					for j := 0; j < eyeriss.PsumsPerPE; j++ {
						var w uint32
						if ch, ok := s.tiling.OutChannel(c, col, j); ok && wordOK {
							w = s.weightAt(weight, word, ch)
						}
						pe.SetWeightWord(slot*eyeriss.PsumsPerPE+j, w)
					}
				}
			}
		}
	}
}

func (s *Scheduler) ifmapAt(ifmap []uint32, row, word int) uint32 {
	off, ok := s.layout.IfmapOffset(row, word)
	if !ok || off >= len(ifmap) {
		return 0
	}

	return ifmap[off]
}

func (s *Scheduler) weightAt(weight []uint32, word, ch int) uint32 {
	off, ok := s.layout.WeightOffset(word, ch)
	if !ok || off >= len(weight) {
		return 0
	}

	return weight[off]
}

func (s *Scheduler) compute() error {
	s.stats.KSteps++

	if s.stepper == nil {
		s.array.ComputeAll()
		s.stats.ComputeCycles += analyzer.ComputeLatency
		return nil
	}

	cycles, _, err := s.stepper.RunToCompletion()
	if err != nil {
		return fmt.Errorf("%s: stepping the array: %w", s.name, err)
	}
	s.stats.ComputeCycles += int64(cycles)

	return nil
}

func (s *Scheduler) storePartials(c TileCoord) error {
	m := s.mapping
	s.charge(analyzer.Traffic{GLBWrite: analyzer.PsumGroupBytes(m)})

	for g := 0; g < m.Mode.Groups(); g++ {
		row, ok := s.tiling.BatchRow(c, g)
		if !ok {
			continue
		}

		for col := 0; col < m.TN; col++ {
			leader := s.array.Leader(g, col)
			for j := 0; j < eyeriss.PsumsPerPE; j++ {
				ch, ok := s.tiling.OutChannel(c, col, j)
				if !ok {
					continue
				}

				off, _ := s.layout.OutputOffset(row, ch)
				if err := s.output.Store(off, leader.Psum(j)); err != nil {
					return s.storeError(err, c, row, ch)
				}
			}
		}
	}

	return nil
}

func (s *Scheduler) storeError(err error, c TileCoord, row, ch int) error {
	var ierr *IndexError
	if errors.As(err, &ierr) {
		ierr.Row = row
		ierr.Channel = ch
		ierr.Coord = &c
	}

	slog.Error("output write out of range",
		"Scheduler", s.name, "Mapping", s.mapping.String(), "Error", err)

	return fmt.Errorf("%s: storing partial sums: %w", s.name, err)
}

func (s *Scheduler) charge(t analyzer.Traffic) {
	s.stats.Traffic.Add(t)
}

func (s *Scheduler) finish() {
	s.stats.Hazards = s.array.Hazards()
	s.stats.MACs = s.array.MACs()
	s.stats.MemoryCycles = analyzer.MemoryCycles(s.stats.Traffic, s.hw)
	s.stats.TotalCycles = s.stats.MemoryCycles +
		float64(s.stats.ComputeCycles+s.stats.AccumulateCycles)

	slog.Info("linear layer simulated",
		"Scheduler", s.name,
		"Shape", s.shape.String(),
		"Mapping", s.mapping.String(),
		"Cycles", s.stats.TotalCycles,
		"Hazards", s.stats.Hazards)
}
