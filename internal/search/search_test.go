package search

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gavinathaya/KleoProj/internal/field"
	"github.com/gavinathaya/KleoProj/internal/kleo"
	"gonum.org/v1/gonum/mat"
)

// matFromSlope builds the 1x1 residual Jacobian with the given slope.
func matFromSlope(slope float64) *mat.Dense {
	return mat.NewDense(1, 1, []float64{slope})
}

var _ = Describe("RangeSpec", func() {
	It("counts inclusive endpoints", func() {
		Expect(RangeSpec{Min: -2, Max: -1, Step: 0.5}.Count()).To(Equal(3))
		Expect(RangeSpec{Min: 1, Max: 1, Step: 0.1}.Count()).To(Equal(1))
	})

	It("is empty for degenerate ranges", func() {
		Expect(RangeSpec{Min: 1, Max: 0, Step: 0.1}.Count()).To(BeZero())
		Expect(RangeSpec{Min: 0, Max: 1, Step: 0}.Count()).To(BeZero())
	})

	It("enumerates values at fixed resolution", func() {
		vals := RangeSpec{Min: -1, Max: 0, Step: 0.25}.Values()
		Expect(vals).To(HaveLen(5))
		Expect(vals[0]).To(Equal(-1.0))
		Expect(vals[4]).To(BeNumerically("~", 0, 1e-12))
	})

	It("tolerates steps that do not divide the span exactly", func() {
		// 0.1 is not exact in binary; the count must not flicker.
		Expect(RangeSpec{Min: -3, Max: 2, Step: 0.1}.Count()).To(Equal(51))
	})
})

var _ = Describe("SectionSpeed", func() {
	params := field.Kleopatra()

	It("realizes the requested Jacobi constant", func() {
		vy0, ok := SectionSpeed(params, -2, 3.3)
		Expect(ok).To(BeTrue())
		Expect(vy0).To(BeNumerically(">", 0))
		c := 2*field.EffectivePotential(params, -2, 0, 0) - vy0*vy0
		Expect(c).To(BeNumerically("~", 3.3, 1e-12))
	})

	It("reports energetically forbidden seeds", func() {
		_, ok := SectionSpeed(params, -2, 100)
		Expect(ok).To(BeFalse())
	})

	It("reports seeds on the singular set", func() {
		// The origin lies on the segment; the potential diverges there.
		_, ok := SectionSpeed(params, 0, 3)
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("Symmetry", func() {
	It("builds planar seeds on the section", func() {
		sym, err := NewSymmetry(SymmetryPlanar, 0)
		Expect(err).NotTo(HaveOccurred())

		seed := sym.SeedState(-2, 1.3)
		Expect(seed).To(Equal(kleo.State{-2, 0, 0, 0, 1.3, 0}))
		Expect(sym.CorrectionIndices()).To(Equal([]int{kleo.IVY}))
		Expect(sym.ResidualIndices()).To(Equal([]int{kleo.IVX}))
	})

	It("builds vertical seeds off the equatorial plane", func() {
		sym, err := NewSymmetry(SymmetryVertical, 0.1)
		Expect(err).NotTo(HaveOccurred())

		seed := sym.SeedState(-2, 1.3)
		Expect(seed).To(Equal(kleo.State{-2, 0, 0.1, 0, 1.3, 0}))
		Expect(sym.CorrectionIndices()).To(Equal([]int{kleo.IZ, kleo.IVY}))
		Expect(sym.ResidualIndices()).To(Equal([]int{kleo.IVX, kleo.IVZ}))
	})

	It("tags planar families by orbital sense", func() {
		sym, _ := NewSymmetry(SymmetryPlanar, 0)
		// Inertial angular momentum positive: rotating-frame speed added
		// to the frame rotation.
		Expect(sym.Family(kleo.State{-2, 0, 0, 0, 1.3, 0})).To(Equal("planar-prograde"))
		// Slow rotating-frame motion at small radius stays prograde...
		Expect(sym.Family(kleo.State{2, 0, 0, 0, 0.1, 0})).To(Equal("planar-prograde"))
		// ...while fast opposing motion flips the sense.
		Expect(sym.Family(kleo.State{2, 0, 0, 0, -3, 0})).To(Equal("planar-retrograde"))
	})

	It("rejects unknown symmetry types", func() {
		_, err := NewSymmetry("diagonal", 0)
		Expect(err).To(MatchError(kleo.ErrInvalidConfig))
	})
})

var _ = Describe("Config", func() {
	It("validates the defaults", func() {
		Expect(DefaultConfig().Validate()).To(Succeed())
	})

	DescribeTable("rejects broken configurations",
		func(mutate func(*Config)) {
			cfg := DefaultConfig()
			mutate(&cfg)
			Expect(cfg.Validate()).To(MatchError(kleo.ErrInvalidConfig))
		},
		Entry("empty x0 range", func(c *Config) { c.X0.Step = 0 }),
		Entry("empty C range", func(c *Config) { c.C = RangeSpec{Min: 5, Max: -5, Step: 1} }),
		Entry("zero tolerance", func(c *Config) { c.Rtol = 0 }),
		Entry("negative time budget", func(c *Config) { c.MaxTime = -1 }),
		Entry("no refinement budget", func(c *Config) { c.MaxRefine = 0 }),
		Entry("unknown sensitivity", func(c *Config) { c.Sensitivity = "magic" }),
		Entry("unknown symmetry", func(c *Config) { c.Symmetry = "diagonal" }),
		Entry("no workers", func(c *Config) { c.Workers = 0 }),
	)
})

var _ = Describe("dedupe", func() {
	orbit := func(x0, c float64) PeriodicOrbit {
		return PeriodicOrbit{Initial: kleo.State{x0, 0, 0, 0, 1, 0}, Jacobi: c}
	}

	It("collapses near-identical orbits and keeps distinct ones", func() {
		orbits := []PeriodicOrbit{
			orbit(-2.0, 3.37),
			orbit(-2.0+2e-4, 3.37+1e-4),
			orbit(-1.5, 3.37),
			orbit(-2.0, 2.00),
		}
		kept, dropped := dedupe(orbits, 1e-3)
		Expect(kept).To(HaveLen(3))
		Expect(dropped).To(Equal(1))
		Expect(kept[0].Initial[0]).To(Equal(-2.0))
	})

	It("keeps orbits apart in only one coordinate", func() {
		kept, dropped := dedupe([]PeriodicOrbit{
			orbit(-2.0, 3.37),
			orbit(-2.0, 3.40),
		}, 1e-3)
		Expect(kept).To(HaveLen(2))
		Expect(dropped).To(BeZero())
	})
})

var _ = Describe("Seeds", func() {
	It("enumerates the grid x0-major with derived speeds", func() {
		cfg := DefaultConfig()
		cfg.X0 = RangeSpec{Min: -2, Max: -1.9, Step: 0.1}
		cfg.C = RangeSpec{Min: 3, Max: 3.2, Step: 0.1}

		s, err := New(field.Kleopatra(), cfg)
		Expect(err).NotTo(HaveOccurred())

		seeds := s.Seeds()
		Expect(seeds).To(HaveLen(6))
		for i, seed := range seeds {
			Expect(seed.Index).To(Equal(i))
		}
		// x0-major: first block at x0 = -2 across C ascending.
		Expect(seeds[0].X0).To(Equal(-2.0))
		Expect(seeds[2].X0).To(Equal(-2.0))
		Expect(seeds[3].X0).To(BeNumerically("~", -1.9, 1e-12))
		Expect(seeds[1].C).To(BeNumerically(">", seeds[0].C))

		for _, seed := range seeds {
			Expect(seed.Feasible).To(BeTrue())
			want := 2*field.EffectivePotential(field.Kleopatra(), seed.X0, 0, 0) - seed.C
			Expect(seed.VY0 * seed.VY0).To(BeNumerically("~", want, 1e-12))
		}
	})
})

var _ = Describe("grid scan", func() {
	params := field.Kleopatra()

	newScanConfig := func() Config {
		cfg := DefaultConfig()
		// One scan position in the exterior retrograde region, with the
		// Jacobi range bracketing the near-circular member at x0 = -2.
		cfg.X0 = RangeSpec{Min: -2, Max: -2, Step: 0.1}
		cfg.C = RangeSpec{Min: 3.2, Max: 3.6, Step: 0.1}
		cfg.Workers = 4
		return cfg
	}

	It("converges at least one orbit of the exterior family", func() {
		s, err := New(params, newScanConfig())
		Expect(err).NotTo(HaveOccurred())

		result, err := s.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Stats.Seeded).To(Equal(5))
		Expect(result.Stats.Converged).To(BeNumerically(">=", 1))
		Expect(result.Orbits).NotTo(BeEmpty())

		total := result.Stats.Pending + result.Stats.Infeasible + result.Stats.NoEvent +
			result.Stats.Converged + result.Stats.Diverged + result.Stats.Rejected
		Expect(total).To(Equal(result.Stats.Seeded))
		Expect(result.Stats.Pending).To(BeZero())

		for _, orb := range result.Orbits {
			Expect(orb.Residual).To(BeNumerically("<", 1e-10))
			Expect(orb.Initial[kleo.IY]).To(BeZero())
			Expect(orb.Initial[kleo.IVX]).To(BeZero())
			Expect(orb.Period).To(Equal(2 * orb.HalfPeriod))
			// Exterior near-circular member: rotating-frame period well
			// above the spin period but below the time budget.
			Expect(orb.Period).To(BeNumerically(">", 6))
			Expect(orb.Period).To(BeNumerically("<", 14))
			Expect(orb.Family).To(Equal("planar-prograde"))
			Expect(field.JacobiConstant(params, orb.Initial)).To(BeNumerically("~", orb.Jacobi, 1e-12))
		}
	})

	It("re-refining a catalog entry does not drift it", func() {
		s, err := New(params, newScanConfig())
		Expect(err).NotTo(HaveOccurred())
		result, err := s.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Orbits).NotTo(BeEmpty())

		orbit := result.Orbits[0]
		again, outcome := s.Refine(orbit.Initial)
		Expect(outcome).To(Equal(OutcomeConverged))
		Expect(again.Iterations).To(BeZero())
		Expect(again.Initial).To(Equal(orbit.Initial))
		Expect(again.HalfPeriod).To(BeNumerically("~", orbit.HalfPeriod, 1e-9))
	})

	It("contracts the residual from a perturbed seed", func() {
		s, err := New(params, newScanConfig())
		Expect(err).NotTo(HaveOccurred())
		result, err := s.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Orbits).NotTo(BeEmpty())

		seed := result.Orbits[0].Initial.Clone()
		seed[kleo.IVY] += 5e-4

		orb, outcome := s.Refine(seed)
		Expect(outcome).To(Equal(OutcomeConverged))
		Expect(orb.Iterations).To(BeNumerically(">=", 1))
		Expect(orb.ResidualHistory).To(HaveLen(orb.Iterations + 1))
		for i := 1; i < len(orb.ResidualHistory); i++ {
			Expect(orb.ResidualHistory[i]).To(BeNumerically("<", orb.ResidualHistory[i-1]))
		}
		Expect(orb.Initial[kleo.IVY]).To(BeNumerically("~", result.Orbits[0].Initial[kleo.IVY], 1e-8))
	})

	It("finds the same orbit with finite-difference sensitivities", func() {
		cfg := newScanConfig()
		s, err := New(params, cfg)
		Expect(err).NotTo(HaveOccurred())
		result, err := s.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Orbits).NotTo(BeEmpty())

		cfgFD := cfg
		cfgFD.Sensitivity = SensitivityFiniteDiff
		sFD, err := New(params, cfgFD)
		Expect(err).NotTo(HaveOccurred())

		seed := result.Orbits[0].Initial.Clone()
		seed[kleo.IVY] += 5e-4
		orb, outcome := sFD.Refine(seed)
		Expect(outcome).To(Equal(OutcomeConverged))
		Expect(orb.Initial[kleo.IVY]).To(BeNumerically("~", result.Orbits[0].Initial[kleo.IVY], 1e-8))
	})

	It("converges vertical orbits with both mirror conditions met", func() {
		cfg := DefaultConfig()
		cfg.X0 = RangeSpec{Min: -2.5, Max: -1.5, Step: 0.1}
		cfg.C = RangeSpec{Min: 2.5, Max: 4.0, Step: 0.25}
		cfg.Symmetry = SymmetryVertical
		cfg.Z0 = 0.1
		cfg.Workers = 4

		s, err := New(params, cfg)
		Expect(err).NotTo(HaveOccurred())

		result, err := s.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Stats.Seeded).To(Equal(77))
		Expect(result.Stats.Converged).To(BeNumerically(">=", 1))
		Expect(result.Orbits).NotTo(BeEmpty())

		for _, orb := range result.Orbits {
			Expect(orb.Family).To(Equal("vertical"))
			Expect(orb.Residual).To(BeNumerically("<", cfg.ResidualTol))
			// The seed stays on the y = 0 section, perpendicular to it.
			Expect(orb.Initial[kleo.IY]).To(BeZero())
			Expect(orb.Initial[kleo.IVX]).To(BeZero())
			Expect(orb.Initial[kleo.IVZ]).To(BeZero())
		}

		// The two-residual correction is idempotent like the planar one:
		// both vx and vz at the return crossing stay below tolerance on
		// a re-refinement, with no further Newton steps.
		orbit := result.Orbits[0]
		again, outcome := s.Refine(orbit.Initial)
		Expect(outcome).To(Equal(OutcomeConverged))
		Expect(again.Iterations).To(BeZero())
		Expect(again.Residual).To(BeNumerically("<", cfg.ResidualTol))
		Expect(again.Initial).To(Equal(orbit.Initial))
	})

	It("counts energetically forbidden seeds as infeasible", func() {
		cfg := newScanConfig()
		cfg.C = RangeSpec{Min: 100, Max: 100, Step: 1}
		s, err := New(params, cfg)
		Expect(err).NotTo(HaveOccurred())

		result, err := s.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Stats.Infeasible).To(Equal(result.Stats.Seeded))
		Expect(result.Orbits).To(BeEmpty())
	})

	It("returns partial statistics when canceled", func() {
		cfg := DefaultConfig()
		// A grid of instant candidates: every seed is infeasible, so the
		// outcome split is purely about cancellation.
		cfg.X0 = RangeSpec{Min: -2.9, Max: -2.0, Step: 0.1}
		cfg.C = RangeSpec{Min: 100, Max: 109, Step: 1}
		cfg.Workers = 2

		s, err := New(params, cfg)
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := s.Run(ctx)
		Expect(err).To(MatchError(context.Canceled))
		Expect(result).NotTo(BeNil())
		Expect(result.Stats.Pending).To(BeNumerically(">=", 1))
		Expect(result.Stats.Pending + result.Stats.Infeasible).To(Equal(result.Stats.Seeded))
	})

	It("rejects invalid configuration before scanning", func() {
		cfg := newScanConfig()
		cfg.Workers = 0
		_, err := New(params, cfg)
		Expect(err).To(MatchError(kleo.ErrInvalidConfig))

		bad := params
		bad.Mu = 2
		_, err = New(bad, newScanConfig())
		Expect(err).To(MatchError(kleo.ErrInvalidConfig))
	})
})

var _ = Describe("refinement safeguards", func() {
	It("clamps oversized Newton steps", func() {
		jac := matFromSlope(1e-8)
		delta, err := solveCorrection(jac, []float64{1})
		Expect(err).NotTo(HaveOccurred())
		Expect(math.Abs(delta[0])).To(BeNumerically("~", maxCorrection, 1e-12))
	})

	It("solves the scalar correction exactly when well conditioned", func() {
		jac := matFromSlope(2.0)
		delta, err := solveCorrection(jac, []float64{0.01})
		Expect(err).NotTo(HaveOccurred())
		Expect(delta[0]).To(BeNumerically("~", -0.005, 1e-12))
	})
})
