package verify

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sarchlab/eyemap/analyzer"
	"github.com/sarchlab/eyemap/mapper"
)

// CSVHeader lists the report columns without the optional cycle count.
var CSVHeader = []string{
	"layer", "glb_usage", "glb_read", "glb_write", "glb_access",
	"dram_read", "dram_write", "dram_access", "macs", "intensity",
	"peak_performance", "peak_bandwidth", "latency", "energy_total",
	"power_total", "tk", "tn", "mode", "M", "K", "N",
}

// Row is one line of the mapping report.
type Row struct {
	Layer  string
	Result analyzer.Result

	// Cycles is the simulated cycle count, or negative when not simulated.
	Cycles float64
}

// NewRow creates a report row without a simulated cycle count.
func NewRow(layer string, r analyzer.Result) Row {
	return Row{Layer: layer, Result: r, Cycles: -1}
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}

	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (row Row) fields(withCycles bool) []string {
	r := row.Result
	m := r.Mapping
	i64 := func(v int64) string { return strconv.FormatInt(v, 10) }

	out := []string{
		row.Layer,
		strconv.Itoa(r.GLBUsage),
		i64(r.GLBRead), i64(r.GLBWrite), i64(r.GLBAccess()),
		i64(r.DRAMRead), i64(r.DRAMWrite), i64(r.DRAMAccess()),
		i64(r.MACs),
		formatFloat(r.Intensity),
		formatFloat(r.PeakPerformance),
		formatFloat(r.PeakBandwidth),
		formatFloat(r.Latency),
		formatFloat(r.Energy.Total),
		formatFloat(r.Power.Total),
		strconv.Itoa(m.TK), strconv.Itoa(m.TN), strconv.Itoa(int(m.Mode)),
		strconv.Itoa(m.M), strconv.Itoa(m.K), strconv.Itoa(m.N),
	}

	if withCycles {
		out = append(out, formatFloat(row.Cycles))
	}

	return out
}

// WriteCSV writes the report. The cycles column is added when any row has
// been simulated.
func WriteCSV(w io.Writer, rows []Row) error {
	withCycles := false
	for _, row := range rows {
		if row.Cycles >= 0 {
			withCycles = true
		}
	}

	cw := csv.NewWriter(w)

	header := append([]string(nil), CSVHeader...)
	if withCycles {
		header = append(header, "cycles")
	}

	if err := cw.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		if err := cw.Write(row.fields(withCycles)); err != nil {
			return err
		}
	}

	cw.Flush()

	return cw.Error()
}

// SaveCSV writes the report to a file.
func SaveCSV(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := WriteCSV(f, rows); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// WriteRanking prints the ranked candidates as a table.
func WriteRanking(w io.Writer, layer string, cands []mapper.Candidate) {
	p := message.NewPrinter(language.English)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("Top %d mappings for %s", len(cands), layer))
	t.AppendHeader(table.Row{"#", "Mode", "M", "K", "N", "GLB",
		"DRAM", "Latency (cyc)", "Energy", "Bound", "Score"})

	for i, c := range cands {
		r := c.Result
		t.AppendRow(table.Row{
			i + 1,
			int(c.Mapping.Mode),
			c.Mapping.M, c.Mapping.K, c.Mapping.N,
			p.Sprintf("%d", r.GLBUsage),
			p.Sprintf("%d", r.DRAMAccess()),
			p.Sprintf("%.0f", r.LatencyCycles),
			p.Sprintf("%.4f", r.Energy.Total),
			r.Bound.String(),
			p.Sprintf("%.1f", c.Score),
		})
	}

	t.Render()
}

// WriteSummary prints the analysis of one mapping and, if available, the
// simulated result.
func WriteSummary(w io.Writer, layer string, r analyzer.Result, sim *Outcome) {
	p := message.NewPrinter(language.English)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("%s: %v", layer, r.Mapping))
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"GLB usage (B)", p.Sprintf("%d", r.GLBUsage)},
		{"GLB read / write (B)", p.Sprintf("%d / %d", r.GLBRead, r.GLBWrite)},
		{"DRAM read / write (B)", p.Sprintf("%d / %d", r.DRAMRead, r.DRAMWrite)},
		{"MACs", p.Sprintf("%d", r.MACs)},
		{"Intensity (MAC/B)", p.Sprintf("%.3f", r.Intensity)},
		{"Bound", r.Bound.String()},
		{"Memory latency (cyc)", p.Sprintf("%.0f", r.LatencyCycles)},
		{"Estimated cycles", p.Sprintf("%.0f", r.EstimatedCycles)},
		{"Energy compute / memory / leakage", p.Sprintf("%.4f / %.4f / %.6f",
			r.Energy.Compute, r.Energy.Memory, r.Energy.Leakage)},
		{"Power total", p.Sprintf("%.2f", r.Power.Total)},
	})

	if sim != nil {
		status := "PASS"
		if sim.Err != nil {
			status = "FAIL: " + sim.Err.Error()
		}

		t.AppendSeparator()
		t.AppendRows([]table.Row{
			{"Simulated cycles", p.Sprintf("%.0f", sim.Stats.TotalCycles)},
			{"Compute cycles", p.Sprintf("%d", sim.Stats.ComputeCycles)},
			{"Hazards", sim.Stats.Hazards},
			{"Check", status},
		})
	}

	t.Render()
}
