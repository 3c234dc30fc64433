package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"math/rand"
	"os"

	"github.com/sarchlab/akita/v4/monitoring"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/eyemap/analyzer"
	"github.com/sarchlab/eyemap/config"
	"github.com/sarchlab/eyemap/core"
	"github.com/sarchlab/eyemap/verify"
)

//go:embed linear.yaml
var workloadYAML []byte

func main() {
	w, err := config.Parse(workloadYAML)
	if err != nil {
		panic(err)
	}

	f, err := os.Create(w.Report.LogFile)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	handler := slog.NewJSONHandler(f, &slog.HandlerOptions{
		Level: core.LevelTrace,
	})
	slog.SetDefault(slog.New(handler))

	explorer, err := w.Explorer()
	if err != nil {
		panic(err)
	}

	best, err := explorer.SearchBest(context.Background(), w.Shape)
	if err != nil {
		panic(err)
	}

	monitor := monitoring.NewMonitor()
	engine := sim.NewSerialEngine()
	monitor.RegisterEngine(engine)

	device := config.MakeDeviceBuilder().
		WithEngine(engine).
		WithFreq(analyzer.Clock).
		WithHardware(w.Hardware).
		WithMode(best.Mapping.Mode).
		WithMonitor(monitor).
		Build("Device")

	monitor.StartServer()

	rng := rand.New(rand.NewSource(w.Simulation.Seed))
	p := verify.GeneratePattern(w.Shape, rng, verify.DefaultByteLimit)

	outcome, err := verify.RunPattern(device, best.Mapping, p)
	if err != nil {
		panic(err)
	}

	verify.WriteSummary(os.Stdout, w.Layer, best.Result, outcome)

	if !outcome.Passed() {
		fmt.Println(outcome.Err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
