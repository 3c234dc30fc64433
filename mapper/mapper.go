// Package mapper searches the mapping space of a linear layer for the
// cheapest configurations.
package mapper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/eyemap/analyzer"
	"github.com/sarchlab/eyemap/eyeriss"
)

// ErrNoValidMapping means no mapping of the layer fits the hardware.
var ErrNoValidMapping = errors.New("no valid mapping")

// LatencyWeight converts latency cycles into score units.
const LatencyWeight = 10

// Evaluator estimates the cost of a mapping.
type Evaluator interface {
	Analyze(
		shape eyeriss.LinearShape,
		hw eyeriss.HardwareParams,
		m eyeriss.Mapping,
	) (analyzer.Result, error)
}

// Candidate is a scored mapping.
type Candidate struct {
	Mapping eyeriss.Mapping
	Result  analyzer.Result
	Score   float64

	order int
}

// Score ranks an analysis result. Lower is better.
func Score(r analyzer.Result) float64 {
	return r.Energy.Total + r.LatencyCycles*LatencyWeight
}

// Explorer enumerates and ranks mappings.
type Explorer struct {
	hw        eyeriss.HardwareParams
	evaluator Evaluator
	workers   int
	modes     []eyeriss.Mode
	maxM      int
	maxK      int
	maxN      int
}

// Hardware returns the hardware the explorer maps onto.
func (e *Explorer) Hardware() eyeriss.HardwareParams {
	return e.hw
}

// Enumerate lists the legal mappings in search order: mode, then M, K and
// N ascending. The GLB footprint grows with N, so the N loop stops at the
// first mapping that does not fit.
func (e *Explorer) Enumerate(shape eyeriss.LinearShape) []eyeriss.Mapping {
	var out []eyeriss.Mapping

	for _, mode := range e.modes {
		tk := mode.RowsPerGroup()
		tn := eyeriss.ArrayCols

		for m := int(mode); m <= min(e.maxM, shape.Batch); m++ {
			for k := tk; k <= e.maxK; k++ {
				for n := tn; n <= e.maxN; n++ {
					mapping := eyeriss.Mapping{TK: tk, TN: tn, Mode: mode, M: m, K: k, N: n}
					if !mapping.Fits(shape, e.hw) {
						break
					}

					out = append(out, mapping)
				}
			}
		}
	}

	return out
}

// Search scores every legal mapping and returns the topK cheapest, best
// first. Ties keep enumeration order. Mappings with a non-positive score are
// dropped. A layer without legal mappings yields an empty list.
func (e *Explorer) Search(
	ctx context.Context,
	shape eyeriss.LinearShape,
	topK int,
) ([]Candidate, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}

	if topK < 1 {
		return nil, fmt.Errorf("top-k must be positive, got %d", topK)
	}

	mappings := e.Enumerate(shape)
	if len(mappings) == 0 {
		slog.Warn("no legal mapping", "Shape", shape.String())
		return []Candidate{}, nil
	}

	workers := max(1, min(e.workers, len(mappings)))
	chunk := eyeriss.CeilDiv(len(mappings), workers)
	partial := make([][]Candidate, workers)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, len(mappings))

		g.Go(func() error {
			local, err := e.scoreRange(ctx, shape, mappings, lo, hi, topK)
			partial[w] = local
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []Candidate
	for _, p := range partial {
		merged = append(merged, p...)
	}

	best := selectTop(merged, topK)

	slog.Info("mapping search done",
		"Shape", shape.String(),
		"Enumerated", len(mappings),
		"Returned", len(best))

	return best, nil
}

func (e *Explorer) scoreRange(
	ctx context.Context,
	shape eyeriss.LinearShape,
	mappings []eyeriss.Mapping,
	lo, hi, topK int,
) ([]Candidate, error) {
	var local []Candidate

	for i := lo; i < hi; i++ {
		if (i-lo)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		r, err := e.evaluator.Analyze(shape, e.hw, mappings[i])
		if err != nil {
			return nil, fmt.Errorf("evaluating %v: %w", mappings[i], err)
		}

		score := Score(r)
		if !(score > 0) {
			continue
		}

		local = append(local, Candidate{
			Mapping: mappings[i],
			Result:  r,
			Score:   score,
			order:   i,
		})

		if len(local) >= 2*topK {
			local = selectTop(local, topK)
		}
	}

	return selectTop(local, topK), nil
}

// SearchBest returns the cheapest mapping.
func (e *Explorer) SearchBest(
	ctx context.Context,
	shape eyeriss.LinearShape,
) (Candidate, error) {
	best, err := e.Search(ctx, shape, 1)
	if err != nil {
		return Candidate{}, err
	}

	if len(best) == 0 {
		return Candidate{}, fmt.Errorf("%w for %v", ErrNoValidMapping, shape)
	}

	return best[0], nil
}

// selectTop orders candidates by score, then enumeration order, and keeps
// the first k.
func selectTop(c []Candidate, k int) []Candidate {
	sort.Slice(c, func(i, j int) bool {
		if c[i].Score != c[j].Score {
			return c[i].Score < c[j].Score
		}
		return c[i].order < c[j].order
	})

	if len(c) > k {
		c = c[:k]
	}

	return c
}
