package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/eyemap/eyeriss"
	"github.com/sarchlab/eyemap/mapper"
)

// SearchConfig bounds the mapping search.
type SearchConfig struct {
	TopK    int   `yaml:"top_k"`
	Workers int   `yaml:"workers"`
	Modes   []int `yaml:"modes"`
	MaxM    int   `yaml:"max_m"`
	MaxK    int   `yaml:"max_k"`
	MaxN    int   `yaml:"max_n"`
}

// SimulationConfig controls the functional run.
type SimulationConfig struct {
	CycleAccurate bool   `yaml:"cycle_accurate"`
	PatternDir    string `yaml:"pattern_dir"`
	Seed          int64  `yaml:"seed"`

	// Mapping overrides the search result when set.
	Mapping *eyeriss.Mapping `yaml:"mapping"`
}

// ReportConfig names the output files.
type ReportConfig struct {
	CSV     string `yaml:"csv"`
	LogFile string `yaml:"log_file"`
}

// Workload is a layer together with the hardware and the tool settings.
type Workload struct {
	Layer      string                 `yaml:"layer"`
	Shape      eyeriss.LinearShape    `yaml:"shape"`
	Hardware   eyeriss.HardwareParams `yaml:"hardware"`
	Search     SearchConfig           `yaml:"search"`
	Simulation SimulationConfig       `yaml:"simulation"`
	Report     ReportConfig           `yaml:"report"`
}

// DefaultWorkload returns the 64x8192x256 layer on the default hardware.
func DefaultWorkload() Workload {
	return Workload{
		Layer:    "linear",
		Shape:    eyeriss.LinearShape{Batch: 64, InFeatures: 8192, OutFeatures: 256},
		Hardware: eyeriss.DefaultHardware(),
		Search: SearchConfig{
			TopK:    5,
			Workers: runtime.NumCPU(),
			Modes:   []int{1, 2, 3, 6},
			MaxM:    512,
			MaxK:    512,
			MaxN:    512,
		},
		Simulation: SimulationConfig{
			Seed: 1,
		},
		Report: ReportConfig{
			CSV:     "result.csv",
			LogFile: "eyemap.log",
		},
	}
}

// Load reads a workload file. Fields missing from the file keep their
// defaults.
func Load(path string) (Workload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Workload{}, fmt.Errorf("reading workload: %w", err)
	}

	w, err := Parse(data)
	if err != nil {
		return Workload{}, fmt.Errorf("%s: %w", path, err)
	}

	return w, nil
}

// Parse decodes a workload on top of the defaults.
func Parse(data []byte) (Workload, error) {
	w := DefaultWorkload()
	if err := yaml.Unmarshal(data, &w); err != nil {
		return Workload{}, fmt.Errorf("parsing workload: %w", err)
	}

	if err := w.Validate(); err != nil {
		return Workload{}, err
	}

	return w, nil
}

// Validate checks the workload.
func (w Workload) Validate() error {
	if err := w.Shape.Validate(); err != nil {
		return err
	}

	if err := w.Hardware.Validate(); err != nil {
		return err
	}

	if _, err := w.Modes(); err != nil {
		return err
	}

	if w.Search.TopK < 1 || w.Search.Workers < 1 {
		return fmt.Errorf("search: top_k and workers must be positive")
	}

	if w.Search.MaxM < 1 || w.Search.MaxK < 1 || w.Search.MaxN < 1 {
		return fmt.Errorf("search: limits must be positive")
	}

	if m := w.Simulation.Mapping; m != nil {
		if err := m.Validate(w.Shape, w.Hardware); err != nil {
			return fmt.Errorf("simulation mapping: %w", err)
		}
	}

	return nil
}

// Modes converts the configured modes.
func (w Workload) Modes() ([]eyeriss.Mode, error) {
	modes := make([]eyeriss.Mode, 0, len(w.Search.Modes))
	for _, v := range w.Search.Modes {
		m, err := eyeriss.ParseMode(v)
		if err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
		modes = append(modes, m)
	}

	if len(modes) == 0 {
		return nil, fmt.Errorf("search: %w: no modes", eyeriss.ErrInvalidMode)
	}

	return modes, nil
}

// Explorer builds the mapping explorer the workload describes.
func (w Workload) Explorer() (*mapper.Explorer, error) {
	modes, err := w.Modes()
	if err != nil {
		return nil, err
	}

	return mapper.MakeBuilder().
		WithHardware(w.Hardware).
		WithWorkers(w.Search.Workers).
		WithModes(modes...).
		WithLimits(w.Search.MaxM, w.Search.MaxK, w.Search.MaxN).
		Build(), nil
}
