package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/magtrack/internal/alongstep"
	"github.com/san-kum/magtrack/internal/config"
	"github.com/san-kum/magtrack/internal/core"
	"github.com/san-kum/magtrack/internal/field"
	"github.com/san-kum/magtrack/internal/metrics"
	"github.com/san-kum/magtrack/internal/sim"
	"github.com/san-kum/magtrack/internal/storage"
	"github.com/san-kum/magtrack/internal/viz"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	dataDir  string
	logLevel string
	theme    string
	// Run configuration
	configFile  string
	preset      string
	seed        uint64
	workers     int
	integrator  string
	recordSteps bool
	repeat      int
	noSave      bool
	// Plotting
	quantity string
	trackID  uint64
	output   string
	// Field sampling
	lineFrom []float64
	lineTo   []float64
	samples  int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "magtrack",
		Short: "charged particle transport through magnetic fields",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(logLevel)); err != nil {
				return fmt.Errorf("invalid log level %q: %w", logLevel, err)
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			viz.SetTheme(theme)
			return nil
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".magtrack", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&theme, "theme", "cyberpunk", "color theme")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a tracking simulation",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addConfigFlags(runCmd)
	runCmd.Flags().Uint64Var(&seed, "seed", config.DefaultSeed, "random seed")
	runCmd.Flags().IntVar(&workers, "workers", 0, "along-step workers (0 uses every CPU)")
	runCmd.Flags().StringVar(&integrator, "integrator", string(alongstep.IntegratorDormandPrince), "field integrator")
	runCmd.Flags().BoolVar(&recordSteps, "record-steps", false, "store every step")
	runCmd.Flags().IntVar(&repeat, "repeat", 1, "independent runs with consecutive seeds")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&quantity, "quantity", "deposit", "track quantity (deposit, energy, steps) or step quantity (step-energy, step-length, z)")
	plotCmd.Flags().Uint64Var(&trackID, "track", 0, "track for step quantities")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&output, "output", "o", "", "output file (stdout if empty)")

	fieldCmd := &cobra.Command{
		Use:   "field",
		Short: "sample the configured field along a line",
		Args:  cobra.NoArgs,
		RunE:  sampleField,
	}
	addConfigFlags(fieldCmd)
	fieldCmd.Flags().Float64SliceVar(&lineFrom, "from", []float64{0, 0, -100}, "line start x,y,z [cm]")
	fieldCmd.Flags().Float64SliceVar(&lineTo, "to", []float64{0, 0, 100}, "line end x,y,z [cm]")
	fieldCmd.Flags().IntVar(&samples, "samples", 101, "number of samples")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDESCRIPTION")
			for _, name := range config.ListPresets() {
				fmt.Fprintf(w, "%s\t%s\n", name, describePreset(name))
			}
			return w.Flush()
		},
	}

	liveCmd := &cobra.Command{
		Use:   "live [preset]",
		Short: "step a preset with live visualization",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "time each integrator on a configuration",
		Args:  cobra.NoArgs,
		RunE:  benchIntegrators,
	}
	addConfigFlags(benchCmd)

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportCmd, fieldCmd, presetsCmd, liveCmd, benchCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
}

// loadConfig starts from the preset or the defaults, then the config file,
// then any flag set on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		if cfg = config.GetPreset(preset); cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("workers") {
		cfg.Sim.Workers = workers
	}
	if flags.Changed("integrator") {
		cfg.Sim.Integrator = integrator
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type runSetup struct {
	params    *core.Params
	action    *alongstep.Action
	primaries []core.Primary
}

func setup(cfg *config.Config) (*runSetup, error) {
	params, err := cfg.BuildParams()
	if err != nil {
		return nil, err
	}
	action, err := cfg.BuildAction(params)
	if err != nil {
		return nil, err
	}
	primaries, err := cfg.BuildPrimaries(params)
	if err != nil {
		return nil, err
	}
	return &runSetup{params: params, action: action, primaries: primaries}, nil
}

func (rs *runSetup) simulator() *sim.Simulator {
	s := sim.New(rs.params, rs.action)
	for _, m := range metrics.Standard() {
		s.AddMetric(m)
	}
	s.SetLogger(slog.Default())
	return s
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	rs, err := setup(cfg)
	if err != nil {
		return err
	}
	simCfg := cfg.SimConfig()
	simCfg.RecordSteps = recordSteps

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("tracking %d primaries with %s...\n", len(rs.primaries), rs.action.Label())
	start := time.Now()

	var results []*sim.Result
	if repeat > 1 {
		results, err = sim.NewEnsemble(rs.simulator, repeat, cfg.Seed).Run(ctx, rs.primaries, simCfg)
	} else {
		var res *sim.Result
		res, err = rs.simulator().Run(ctx, rs.primaries, simCfg)
		results = []*sim.Result{res}
	}
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	var st *storage.Store
	if !noSave {
		st = storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
	}

	for i, res := range results {
		fmt.Println(viz.RenderSummary(res))
		if st == nil {
			continue
		}
		runCfg := *cfg
		runCfg.Seed = cfg.Seed + uint64(i)
		runID, err := st.Save(&runCfg, res)
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", runID)
	}
	if len(results) > 1 {
		stats := sim.Summarize(results)
		fmt.Printf("deposit over %d runs: %.6g ± %.3g MeV (%d errored tracks)\n",
			stats.Runs, stats.MeanDeposit, stats.StdDeposit, stats.Errored)
	}
	fmt.Printf("completed in %v\n", elapsed)
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFIELD\tTIME\tTRACKS\tITER\tDEPOSIT\tINTEG\tERRORS")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.4g\t%s\t%d\n",
			run.ID,
			run.Field,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.NumTracks,
			run.Iterations,
			run.TotalDeposit,
			run.Integrator,
			len(run.Errors),
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	var data []float64
	var caption string
	switch quantity {
	case "deposit", "energy", "steps":
		tracks, err := st.LoadTracks(runID)
		if err != nil {
			return err
		}
		for _, t := range tracks {
			switch quantity {
			case "deposit":
				data = append(data, t.Deposit)
			case "energy":
				data = append(data, t.Energy)
			default:
				data = append(data, float64(t.NumSteps))
			}
		}
		caption = fmt.Sprintf("%s by track", quantity)
	case "step-energy", "step-length", "z":
		steps, err := st.LoadSteps(runID)
		if err != nil {
			return err
		}
		for _, ev := range steps {
			if ev.TrackID != trackID {
				continue
			}
			switch quantity {
			case "step-energy":
				data = append(data, ev.Energy)
			case "step-length":
				data = append(data, ev.StepLength)
			default:
				data = append(data, ev.Pos.Z)
			}
		}
		caption = fmt.Sprintf("%s of track %d by step", quantity, trackID)
	default:
		return fmt.Errorf("unknown quantity: %s", quantity)
	}

	if len(data) == 0 {
		return fmt.Errorf("no data to plot (steps are stored with --record-steps)")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("action: %s\n", meta.Action)
	fmt.Printf("samples: %d\n\n", len(data))
	fmt.Println(viz.PlotSeries(data, caption))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := st.ExportJSON(args[0], w); err != nil {
		return err
	}
	if output != "" {
		fmt.Printf("exported %s to %s\n", args[0], output)
	}
	return nil
}

func toVec(v []float64) (r3.Vec, error) {
	if len(v) != 3 {
		return r3.Vec{}, fmt.Errorf("expected x,y,z, got %v", v)
	}
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}, nil
}

func sampleField(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	f, err := cfg.Sampler()
	if err != nil {
		return err
	}
	if f == nil {
		return fmt.Errorf("field kind %q has no field to sample", cfg.Field.Kind)
	}
	a, err := toVec(lineFrom)
	if err != nil {
		return err
	}
	b, err := toVec(lineTo)
	if err != nil {
		return err
	}
	if samples < 2 {
		return fmt.Errorf("need at least 2 samples, got %d", samples)
	}

	pos, values := field.SampleLine(f, a, b, samples)
	fmt.Println(viz.PlotFieldProfile(values, r3.Norm(r3.Sub(b, a)), cfg.Field.Kind))

	mid := len(pos) / 2
	fmt.Printf("\nB(%.4g, %.4g, %.4g) = (%.6g, %.6g, %.6g) T\n",
		pos[mid].X, pos[mid].Y, pos[mid].Z, values[mid].X, values[mid].Y, values[mid].Z)
	return nil
}

func describePreset(name string) string {
	cfg := config.GetPreset(name)
	if cfg == nil {
		return ""
	}
	desc := fmt.Sprintf("%s field, %d primaries", cfg.Field.Kind, cfg.NumPrimaries())
	if len(cfg.Primaries) > 0 {
		p := cfg.Primaries[0]
		desc += fmt.Sprintf(", %g MeV %s", p.Energy, p.Particle)
	}
	return desc
}

func launchPreset(ctx context.Context) viz.Launcher {
	return func(name string) (*viz.LiveModel, error) {
		cfg := config.GetPreset(name)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s", name)
		}
		rs, err := setup(cfg)
		if err != nil {
			return nil, err
		}
		s := rs.simulator()
		// Log records would tear the terminal UI
		s.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return viz.NewLiveModel(ctx, s, rs.primaries, cfg.SimConfig(), name)
	}
}

func runLive(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	launch := launchPreset(ctx)

	var m tea.Model
	if len(args) == 1 {
		live, err := launch(args[0])
		if err != nil {
			return err
		}
		m = live
	} else {
		m = viz.NewPresetMenu(config.ListPresets(), describePreset, launch)
	}

	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}

	var live *viz.LiveModel
	switch v := final.(type) {
	case *viz.LiveModel:
		live = v
	case *viz.PresetMenu:
		live = v.Live()
	}
	if live == nil {
		return nil
	}
	if err := live.Err(); err != nil {
		return err
	}
	if res := live.Result(); res != nil {
		fmt.Println(viz.RenderSummary(res))
	}
	return nil
}

func benchIntegrators(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Field.Kind == "neutral" {
		return fmt.Errorf("neutral tracks are not integrated")
	}

	fmt.Printf("benchmarking %s field, %d primaries\n\n", cfg.Field.Kind, cfg.NumPrimaries())
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INTEGRATOR\tSTEPS\tTIME\tSTEPS/SEC\tDEPOSIT\tERRORS")

	for _, integ := range alongstep.Integrators() {
		runCfg := *cfg
		runCfg.Sim.Integrator = string(integ)
		rs, err := setup(&runCfg)
		if err != nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\t%v\n", integ, err)
			continue
		}

		start := time.Now()
		res, err := rs.simulator().Run(context.Background(), rs.primaries, runCfg.SimConfig())
		if err != nil {
			return err
		}
		elapsed := time.Since(start)

		steps := 0
		for _, t := range res.Tracks {
			steps += t.NumSteps
		}
		fmt.Fprintf(w, "%s\t%d\t%v\t%.0f\t%.4g\t%d\n",
			integ, steps, elapsed.Round(time.Microsecond), float64(steps)/elapsed.Seconds(), res.TotalDeposit(), len(res.Errors))
	}

	return w.Flush()
}
