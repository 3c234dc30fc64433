package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sarchlab/eyemap/eyeriss"
)

const (
	LevelTrace slog.Level = slog.LevelInfo + 1
)

func Trace(msg string, args ...any) {
	slog.Log(context.Background(), LevelTrace, msg, args...)
}

// DumpPE writes the scratchpads and partial sums of one PE.
func DumpPE(w io.Writer, pe *PE) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("PE %d (tag %d, %v)", pe.index, pe.tag, pe.state))
	t.AppendHeader(table.Row{"Slot", "0", "1", "2", "3"})

	row := table.Row{"ifmap"}
	for i := 0; i < eyeriss.IfmapWordsPerPE; i++ {
		row = append(row, fmt.Sprintf("%08X", pe.ifmap[i]))
	}
	t.AppendRow(row)

	for i := 0; i < eyeriss.IfmapWordsPerPE; i++ {
		row = table.Row{fmt.Sprintf("weight %d", i)}
		for j := 0; j < eyeriss.PsumsPerPE; j++ {
			row = append(row, fmt.Sprintf("%08X", pe.weight[i*eyeriss.PsumsPerPE+j]))
		}
		t.AppendRow(row)
	}

	row = table.Row{"psum"}
	for j := 0; j < eyeriss.PsumsPerPE; j++ {
		row = append(row, pe.psum[j])
	}
	t.AppendRow(row)

	t.Render()
}

// Dump writes the state, tag and first partial sum of every PE as a grid,
// top row first.
func (a *PEArray) Dump(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("%s (%v, %d hazards)", a.name, a.mode, a.hazards))

	header := table.Row{"Row"}
	for c := 0; c < eyeriss.ArrayCols; c++ {
		header = append(header, fmt.Sprintf("C%d", c))
	}
	t.AppendHeader(header)

	for r := eyeriss.ArrayRows - 1; r >= 0; r-- {
		row := table.Row{fmt.Sprintf("R%d", r)}
		for c := 0; c < eyeriss.ArrayCols; c++ {
			pe := a.At(r, c)
			row = append(row, fmt.Sprintf("t%d %s %v",
				pe.tag, pe.state.String()[:1], pe.psum))
		}
		t.AppendRow(row)
	}

	t.Render()
}
