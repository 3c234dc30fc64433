package main

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/sarchlab/akita/v4/monitoring"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/eyemap/analyzer"
	"github.com/sarchlab/eyemap/config"
	"github.com/sarchlab/eyemap/mapper"
	"github.com/sarchlab/eyemap/verify"
)

func newSearchCommand() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Rank the legal mappings of the workload layer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w, err := loadWorkload()
			if err != nil {
				return err
			}

			if topK > 0 {
				w.Search.TopK = topK
			}

			cands, err := search(cmd.Context(), w)
			if err != nil {
				return err
			}

			verify.WriteRanking(cmd.OutOrStdout(), w.Layer, cands)

			rows := make([]verify.Row, 0, len(cands))
			for _, c := range cands {
				rows = append(rows, verify.NewRow(w.Layer, c.Result))
			}

			return verify.SaveCSV(w.Report.CSV, rows)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of mappings to report")

	return cmd
}

func search(ctx context.Context, w config.Workload) ([]mapper.Candidate, error) {
	explorer, err := w.Explorer()
	if err != nil {
		return nil, err
	}

	cands, err := explorer.Search(ctx, w.Shape, w.Search.TopK)
	if err != nil {
		return nil, err
	}

	if len(cands) == 0 {
		return nil, fmt.Errorf("%s: %w", w.Layer, mapper.ErrNoValidMapping)
	}

	return cands, nil
}

func newSimulateCommand() *cobra.Command {
	var (
		cycleAccurate bool
		monitor       bool
		patternDir    string
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate the best mapping and check it against the golden output",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w, err := loadWorkload()
			if err != nil {
				return err
			}

			if cycleAccurate {
				w.Simulation.CycleAccurate = true
			}

			if patternDir != "" {
				w.Simulation.PatternDir = patternDir
			}

			return simulate(cmd, w, monitor)
		},
	}

	cmd.Flags().BoolVar(&cycleAccurate, "cycle-accurate", false,
		"step the PE array from the simulation engine")
	cmd.Flags().BoolVar(&monitor, "monitor", false,
		"serve the akita monitor while simulating")
	cmd.Flags().StringVarP(&patternDir, "pattern", "p", "",
		"pattern directory with A.txt, B.txt and C_golden.txt")

	return cmd
}

func chooseMapping(cmd *cobra.Command, w config.Workload) (analyzer.Result, error) {
	if m := w.Simulation.Mapping; m != nil {
		return analyzer.Analyze(w.Shape, w.Hardware, *m)
	}

	cands, err := search(cmd.Context(), w)
	if err != nil {
		return analyzer.Result{}, err
	}

	verify.WriteRanking(cmd.OutOrStdout(), w.Layer, cands)

	return cands[0].Result, nil
}

func loadPattern(w config.Workload) (verify.Pattern, error) {
	if w.Simulation.PatternDir != "" {
		return verify.LoadPattern(w.Simulation.PatternDir, w.Shape)
	}

	rng := rand.New(rand.NewSource(w.Simulation.Seed))

	return verify.GeneratePattern(w.Shape, rng, verify.DefaultByteLimit), nil
}

func simulate(cmd *cobra.Command, w config.Workload, withMonitor bool) error {
	best, err := chooseMapping(cmd, w)
	if err != nil {
		return err
	}

	p, err := loadPattern(w)
	if err != nil {
		return err
	}

	builder := config.MakeDeviceBuilder().
		WithHardware(w.Hardware).
		WithFreq(analyzer.Clock).
		WithMode(best.Mapping.Mode)

	if w.Simulation.CycleAccurate {
		engine := sim.NewSerialEngine()
		builder = builder.WithEngine(engine)

		if withMonitor {
			m := monitoring.NewMonitor()
			m.RegisterEngine(engine)
			builder = builder.WithMonitor(m)
			dev := builder.Build("Device")
			m.StartServer()

			return runAndReport(cmd, w, best, dev, p)
		}
	}

	return runAndReport(cmd, w, best, builder.Build("Device"), p)
}

func runAndReport(
	cmd *cobra.Command,
	w config.Workload,
	best analyzer.Result,
	dev *config.Device,
	p verify.Pattern,
) error {
	outcome, err := verify.RunPattern(dev, best.Mapping, p)
	if err != nil {
		return err
	}

	verify.WriteSummary(cmd.OutOrStdout(), w.Layer, best, outcome)

	row := verify.NewRow(w.Layer, best)
	row.Cycles = outcome.Stats.TotalCycles
	if err := verify.SaveCSV(w.Report.CSV, []verify.Row{row}); err != nil {
		return err
	}

	if !outcome.Passed() {
		fmt.Fprintln(cmd.ErrOrStderr(), outcome.Err)
		atexit.Exit(1)
	}

	return nil
}

func newPatternCommand() *cobra.Command {
	var (
		out   string
		seed  int64
		limit uint8
	)

	cmd := &cobra.Command{
		Use:   "pattern",
		Short: "Generate a random test pattern for the workload layer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w, err := loadWorkload()
			if err != nil {
				return err
			}

			rng := rand.New(rand.NewSource(seed))
			p := verify.GeneratePattern(w.Shape, rng, limit)
			if err := p.Save(out); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s pattern to %s\n", w.Shape, out)

			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "Pattern0", "output directory")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed")
	cmd.Flags().Uint8Var(&limit, "limit", verify.DefaultByteLimit, "largest byte value")

	_ = cmd.MarkFlagDirname("out")

	return cmd
}
