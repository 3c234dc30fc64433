// Command eyemap searches and simulates mappings of linear layers on an
// Eyeriss-style PE array.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/eyemap/config"
	"github.com/sarchlab/eyemap/core"
)

var (
	configPath string
	logFile    string
	verbose    bool
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "eyemap",
		Short:         "Map linear layers onto an Eyeriss-style PE array",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return setupLogging()
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"workload YAML file (defaults are used when empty)")
	root.PersistentFlags().StringVar(&logFile, "log-file", "",
		"JSON log file, overrides the workload setting")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"log trace events")

	root.AddCommand(newSearchCommand(), newSimulateCommand(), newPatternCommand())

	return root
}

func setupLogging() error {
	path := logFile
	if path == "" {
		w, err := loadWorkload()
		if err != nil {
			return err
		}
		path = w.Report.LogFile
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating log file: %w", err)
	}

	atexit.Register(func() {
		f.Sync()
		f.Close()
	})

	level := slog.LevelInfo
	if verbose {
		level = core.LevelTrace
	}

	handler := slog.NewJSONHandler(f, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))

	return nil
}

func loadWorkload() (config.Workload, error) {
	if configPath == "" {
		w := config.DefaultWorkload()
		return w, w.Validate()
	}

	return config.Load(configPath)
}
