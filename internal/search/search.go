// Package search implements the grid scan over symmetric periodic-orbit
// seeds and their Newton refinement into a deduplicated orbit catalog.
//
// Each candidate runs independently against the shared read-only
// parameter set, so the scan is a worker pool over grid points with a
// single merge at the end. Candidate-level failures (no section return,
// diverged correction) are counted, never propagated; only invalid
// configuration aborts a scan.
package search

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/gavinathaya/KleoProj/internal/field"
	"github.com/gavinathaya/KleoProj/internal/kleo"
	"github.com/rs/zerolog"
)

// Searcher runs grid searches for one parameter set. Construct with New;
// a Searcher is safe to reuse across Run calls.
type Searcher struct {
	params   field.Parameters
	cfg      Config
	sym      Symmetry
	log      zerolog.Logger
	progress func(Progress)
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithLogger attaches a structured logger; per-candidate outcomes go to
// Debug, scan summaries to Info.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Searcher) { s.log = log }
}

// WithProgress registers a callback invoked after every finished
// candidate. It must be fast; it runs under the collector's lock.
func WithProgress(fn func(Progress)) Option {
	return func(s *Searcher) { s.progress = fn }
}

// New validates the physical parameters and search configuration and
// builds a Searcher. Validation failures are fatal and produce no
// partial results.
func New(params field.Parameters, cfg Config, opts ...Option) (*Searcher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sym, err := NewSymmetry(cfg.Symmetry, cfg.Z0)
	if err != nil {
		return nil, err
	}

	s := &Searcher{
		params: params,
		cfg:    cfg,
		sym:    sym,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Seeds enumerates the grid, x0-major ascending, deriving each section
// speed from the effective potential. Infeasible combinations stay in
// the list so the scan statistics account for every grid point.
func (s *Searcher) Seeds() []Seed {
	x0s := s.cfg.X0.Values()
	cs := s.cfg.C.Values()

	seeds := make([]Seed, 0, len(x0s)*len(cs))
	for _, x0 := range x0s {
		for _, c := range cs {
			vy0, ok := SectionSpeed(s.params, x0, c)
			seeds = append(seeds, Seed{
				Index:    len(seeds),
				X0:       x0,
				C:        c,
				VY0:      vy0,
				Feasible: ok,
			})
		}
	}
	return seeds
}

// Refine runs differential correction from an explicit seed state,
// outside any grid scan. Useful for re-polishing a catalog entry or
// continuing a family member by hand.
func (s *Searcher) Refine(seed kleo.State) (*PeriodicOrbit, Outcome) {
	return newRefiner(s.params, s.cfg, s.sym).refine(seed)
}

// Run executes the scan. The returned Result is valid (with whatever
// completed) even when ctx is canceled mid-scan; the context error is
// returned alongside it in that case.
func (s *Searcher) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	seeds := s.Seeds()

	candidates := make([]Candidate, len(seeds))
	jobs := make(chan Seed)

	var mu sync.Mutex
	done := 0
	converged := 0

	var wg sync.WaitGroup
	for w := 0; w < s.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ref := newRefiner(s.params, s.cfg, s.sym)
			for seed := range jobs {
				cand := s.runCandidate(ref, seed)
				candidates[seed.Index] = cand

				mu.Lock()
				done++
				if cand.Outcome == OutcomeConverged {
					converged++
				}
				if s.progress != nil {
					s.progress(Progress{Done: done, Total: len(seeds), Converged: converged})
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, seed := range seeds {
		select {
		case jobs <- seed:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	result := s.collect(candidates)
	result.Stats.Elapsed = time.Since(start)

	s.log.Info().
		Int("seeded", result.Stats.Seeded).
		Int("infeasible", result.Stats.Infeasible).
		Int("no_event", result.Stats.NoEvent).
		Int("converged", result.Stats.Converged).
		Int("diverged", result.Stats.Diverged).
		Int("rejected", result.Stats.Rejected).
		Int("duplicates", result.Stats.Duplicates).
		Dur("elapsed", result.Stats.Elapsed).
		Msg("grid search finished")

	return result, ctx.Err()
}

func (s *Searcher) runCandidate(ref *refiner, seed Seed) Candidate {
	if !seed.Feasible {
		return Candidate{Seed: seed, Outcome: OutcomeInfeasible}
	}

	orbit, outcome := ref.refine(s.sym.SeedState(seed.X0, seed.VY0))
	if orbit != nil {
		orbit.SeedIndex = seed.Index
	}

	s.log.Debug().
		Int("seed", seed.Index).
		Float64("x0", seed.X0).
		Float64("c", seed.C).
		Stringer("outcome", outcome).
		Msg("candidate finished")

	return Candidate{Seed: seed, Outcome: outcome, Orbit: orbit}
}

// collect merges per-seed records into the final catalog: count
// outcomes, order converged orbits by scan position, drop duplicates.
func (s *Searcher) collect(candidates []Candidate) *Result {
	result := &Result{Candidates: candidates}
	result.Stats.Seeded = len(candidates)

	var orbits []PeriodicOrbit
	for _, cand := range candidates {
		switch cand.Outcome {
		case OutcomePending:
			result.Stats.Pending++
		case OutcomeInfeasible:
			result.Stats.Infeasible++
		case OutcomeNoEvent:
			result.Stats.NoEvent++
		case OutcomeConverged:
			result.Stats.Converged++
			orbits = append(orbits, *cand.Orbit)
		case OutcomeDiverged:
			result.Stats.Diverged++
		case OutcomeRejected:
			result.Stats.Rejected++
		}
	}

	sort.SliceStable(orbits, func(i, j int) bool {
		if orbits[i].Initial[0] != orbits[j].Initial[0] {
			return orbits[i].Initial[0] < orbits[j].Initial[0]
		}
		return orbits[i].Jacobi < orbits[j].Jacobi
	})

	result.Orbits, result.Stats.Duplicates = dedupe(orbits, s.cfg.DedupTol)
	return result
}

// dedupe collapses orbits that agree within tol in both seed position
// and Jacobi constant; a dense grid otherwise reports one family member
// many times. The first (lowest scan position) representative wins.
func dedupe(orbits []PeriodicOrbit, tol float64) ([]PeriodicOrbit, int) {
	kept := make([]PeriodicOrbit, 0, len(orbits))
	dropped := 0
	for _, orb := range orbits {
		dup := false
		for _, k := range kept {
			if math.Abs(orb.Initial[0]-k.Initial[0]) < tol && math.Abs(orb.Jacobi-k.Jacobi) < tol {
				dup = true
				break
			}
		}
		if dup {
			dropped++
		} else {
			kept = append(kept, orb)
		}
	}
	return kept, dropped
}
