package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gavinathaya/KleoProj/internal/analysis"
	"github.com/gavinathaya/KleoProj/internal/config"
	"github.com/gavinathaya/KleoProj/internal/dynamics"
	"github.com/gavinathaya/KleoProj/internal/integrators"
	"github.com/gavinathaya/KleoProj/internal/search"
	"github.com/gavinathaya/KleoProj/internal/storage"
	"github.com/gavinathaya/KleoProj/internal/tui"
)

const version = "0.2.0"

var (
	dataDir    string
	verbose    bool
	configFile string
	preset     string

	x0Min, x0Max, x0Step float64
	cMin, cMax, cStep    float64
	symmetry             string
	z0                   float64
	atol, rtol           float64
	maxTime              float64
	maxRefine            int
	residualTol          float64
	dedupTol             float64
	workers              int
	sensitivity          string
	noProgress           bool
)

var (
	headStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	faintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "kleoproj",
		Short: "symmetric periodic orbits around 216-Kleopatra (dipole-segment model)",
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".kleoproj", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "run a grid search for symmetric periodic orbits",
		RunE:  runSearch,
	}
	searchCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	searchCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	searchCmd.Flags().Float64Var(&x0Min, "x0-min", 0, "scan start position")
	searchCmd.Flags().Float64Var(&x0Max, "x0-max", 0, "scan end position")
	searchCmd.Flags().Float64Var(&x0Step, "x0-step", 0, "scan position step")
	searchCmd.Flags().Float64Var(&cMin, "c-min", 0, "Jacobi constant minimum")
	searchCmd.Flags().Float64Var(&cMax, "c-max", 0, "Jacobi constant maximum")
	searchCmd.Flags().Float64Var(&cStep, "c-step", 0, "Jacobi constant step")
	searchCmd.Flags().StringVar(&symmetry, "symmetry", "", "symmetry type (planar, vertical)")
	searchCmd.Flags().Float64Var(&z0, "z0", 0, "seed plane offset (vertical symmetry)")
	searchCmd.Flags().Float64Var(&atol, "atol", 0, "integrator absolute tolerance")
	searchCmd.Flags().Float64Var(&rtol, "rtol", 0, "integrator relative tolerance")
	searchCmd.Flags().Float64Var(&maxTime, "max-time", 0, "per-candidate integration time budget")
	searchCmd.Flags().IntVar(&maxRefine, "max-refine", 0, "Newton iteration budget")
	searchCmd.Flags().Float64Var(&residualTol, "residual-tol", 0, "periodicity residual tolerance")
	searchCmd.Flags().Float64Var(&dedupTol, "dedup-tol", 0, "catalog deduplication tolerance")
	searchCmd.Flags().IntVar(&workers, "workers", 0, "worker goroutines")
	searchCmd.Flags().StringVar(&sensitivity, "sensitivity", "", "sensitivity mode (stm, fd)")
	searchCmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress UI")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show a run's catalog",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id] [orbit_index]",
		Short: "re-integrate an orbit and plot its coordinates",
		Args:  cobra.ExactArgs(2),
		RunE:  plotOrbit,
	}

	equilibriaCmd := &cobra.Command{
		Use:   "equilibria",
		Short: "locate collinear equilibrium points",
		RunE:  showEquilibria,
	}
	equilibriaCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kleoproj %s\n", version)
		},
	}

	rootCmd.AddCommand(searchCmd, listCmd, showCmd, plotCmd, equilibriaCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

// loadConfig resolves preset, config file, and flag overrides, in that
// order of increasing precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if preset != "" {
		p := config.GetPreset(preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		cfg = p
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("x0-min") || flags.Changed("x0-max") || flags.Changed("x0-step") {
		cfg.Search.X0 = config.RangeConfig{Min: x0Min, Max: x0Max, Step: x0Step}
	}
	if flags.Changed("c-min") || flags.Changed("c-max") || flags.Changed("c-step") {
		cfg.Search.C = config.RangeConfig{Min: cMin, Max: cMax, Step: cStep}
	}
	if flags.Changed("symmetry") {
		cfg.Search.Symmetry = symmetry
	}
	if flags.Changed("z0") {
		cfg.Search.Z0 = z0
	}
	if flags.Changed("atol") {
		cfg.Search.Atol = atol
	}
	if flags.Changed("rtol") {
		cfg.Search.Rtol = rtol
	}
	if flags.Changed("max-time") {
		cfg.Search.MaxTime = maxTime
	}
	if flags.Changed("max-refine") {
		cfg.Search.MaxRefine = maxRefine
	}
	if flags.Changed("residual-tol") {
		cfg.Search.ResidualTol = residualTol
	}
	if flags.Changed("dedup-tol") {
		cfg.Search.DedupTol = dedupTol
	}
	if flags.Changed("workers") {
		cfg.Search.Workers = workers
	}
	if flags.Changed("sensitivity") {
		cfg.Search.Sensitivity = sensitivity
	}
	return cfg, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	log := newLogger()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	params, err := cfg.FieldParameters()
	if err != nil {
		return err
	}
	searchCfg := cfg.SearchConfig()

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	updates := make(chan search.Progress, 64)
	opts := []search.Option{search.WithLogger(log)}
	if !noProgress {
		opts = append(opts, search.WithProgress(func(p search.Progress) {
			select {
			case updates <- p:
			default: // UI lagging; drop the snapshot
			}
		}))
	}

	searcher, err := search.New(params, searchCfg, opts...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var result *search.Result
	var runErr error
	done := make(chan struct{})
	go func() {
		result, runErr = searcher.Run(ctx)
		close(updates)
		close(done)
	}()

	if !noProgress {
		if _, err := tea.NewProgram(tui.NewProgress(updates)).Run(); err != nil {
			log.Warn().Err(err).Msg("progress UI failed; scan continues")
		}
		select {
		case <-done:
		default:
			cancel() // UI was quit mid-scan
		}
	}
	<-done

	if runErr != nil && result == nil {
		return runErr
	}

	runID, err := st.Save(cfg.Body, searchCfg, result)
	if err != nil {
		return err
	}

	printSummary(result, runID)
	return runErr
}

func printSummary(result *search.Result, runID string) {
	s := result.Stats
	fmt.Println(headStyle.Render("grid search complete"))
	fmt.Printf("%s %s\n", faintStyle.Render("run id:"), runID)
	fmt.Printf("%s %v\n", faintStyle.Render("elapsed:"), s.Elapsed.Round(time.Millisecond))
	fmt.Printf("seeds %d | infeasible %d | no-event %d | diverged %d | rejected %d\n",
		s.Seeded, s.Infeasible, s.NoEvent, s.Diverged, s.Rejected)
	if s.Pending > 0 {
		fmt.Printf("pending %d (scan aborted early)\n", s.Pending)
	}
	fmt.Println(okStyle.Render(fmt.Sprintf("converged %d (%d duplicates dropped)", s.Converged, s.Duplicates)))

	if len(result.Orbits) > 0 {
		fmt.Println()
		printCatalog(result.Orbits)
	}
}

func printCatalog(orbits []search.PeriodicOrbit) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tfamily\tx0\tvy0\tperiod\tjacobi\tresidual")
	for i, orb := range orbits {
		fmt.Fprintf(w, "%d\t%s\t%.6f\t%.6f\t%.6f\t%.6f\t%.2e\n",
			i, orb.Family, orb.Initial[0], orb.Initial[4], orb.Period, orb.Jacobi, orb.Residual)
	}
	w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	ids, err := st.List()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("no runs stored")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "run\ttimestamp\tsymmetry\tseeds\torbits")
	for _, id := range ids {
		meta, err := st.LoadMetadata(id)
		if err != nil {
			fmt.Fprintf(w, "%s\t(unreadable: %v)\n", id, err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
			id, meta.Timestamp.Format(time.RFC3339), meta.Symmetry,
			meta.Stats.Seeded, meta.Stats.Converged-meta.Stats.Duplicates)
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.LoadMetadata(args[0])
	if err != nil {
		return err
	}
	orbits, err := st.LoadCatalog(args[0])
	if err != nil {
		return err
	}

	fmt.Println(headStyle.Render(meta.ID))
	fmt.Printf("body %s | symmetry %s | %s\n", meta.Body, meta.Symmetry, meta.Timestamp.Format(time.RFC3339))
	s := meta.Stats
	fmt.Printf("seeds %d | converged %d | no-event %d | diverged %d | rejected %d\n\n",
		s.Seeded, s.Converged, s.NoEvent, s.Diverged, s.Rejected)
	printCatalog(orbits)
	return nil
}

func plotOrbit(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.LoadMetadata(args[0])
	if err != nil {
		return err
	}
	orbits, err := st.LoadCatalog(args[0])
	if err != nil {
		return err
	}
	var idx int
	if _, err := fmt.Sscanf(args[1], "%d", &idx); err != nil || idx < 0 || idx >= len(orbits) {
		return fmt.Errorf("orbit index out of range (catalog has %d orbits)", len(orbits))
	}
	orb := orbits[idx]

	fieldParams, err := (&config.Config{Body: meta.Body}).FieldParameters()
	if err != nil {
		return err
	}

	// Fixed-step re-integration gives evenly spaced samples, which is
	// what the terminal graph wants.
	sys := dynamics.NewRotatingFrame(fieldParams)
	integ := integrators.NewRK4()
	const samples = 512
	dt := orb.Period / samples

	xs := make([]float64, 0, samples+1)
	ys := make([]float64, 0, samples+1)
	x := orb.Initial.Clone()
	t := 0.0
	for i := 0; i <= samples; i++ {
		xs = append(xs, x[0])
		ys = append(ys, x[1])
		x = integ.Step(sys, x, t, dt)
		t += dt
	}

	fmt.Printf("orbit %d: family %s, period %.6f, C %.6f\n\n", idx, orb.Family, orb.Period, orb.Jacobi)
	fmt.Println("x(t)")
	fmt.Println(asciigraph.Plot(xs, asciigraph.Height(12), asciigraph.Width(72)))
	fmt.Println("\ny(t)")
	fmt.Println(asciigraph.Plot(ys, asciigraph.Height(12), asciigraph.Width(72)))
	return nil
}

func showEquilibria(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	params, err := cfg.FieldParameters()
	if err != nil {
		return err
	}

	points := analysis.CollinearEquilibria(params, -3, 3, 6000)
	if len(points) == 0 {
		fmt.Println("no collinear equilibria in [-3, 3]")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "x\tjacobi")
	for _, eq := range points {
		fmt.Fprintf(w, "%.9f\t%.9f\n", eq.X, eq.Jacobi)
	}
	return w.Flush()
}
