package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/dynid/internal/analysis"
	"github.com/san-kum/dynid/internal/config"
	"github.com/san-kum/dynid/internal/experiment"
	"github.com/san-kum/dynid/internal/fit"
	"github.com/san-kum/dynid/internal/logging"
	"github.com/san-kum/dynid/internal/models"
	"github.com/san-kum/dynid/internal/optim"
	"github.com/san-kum/dynid/internal/storage"
	"github.com/san-kum/dynid/internal/viz"
)

var (
	storeDir string
	logLevel string
	devLog   bool

	configFile string
	preset     string
	csvFile    string
	seed       int64

	// generate
	outFile string
	samples int

	// fit
	numIter    int
	lr         float64
	batchSize  int
	seqLen     int
	optimizer  string
	variant    string
	checkpoint string
	runs       int
	live       bool

	// validate / plot
	pngFile  string
	spectrum bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "dynid",
		Short:         "nonlinear state-space system identification",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&storeDir, "store", ".dynid", "run store directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&devLog, "dev", true, "human-readable console logs")

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "simulate a system and write its record as csv",
		RunE:  generateData,
	}
	addConfigFlags(generateCmd)
	generateCmd.Flags().StringVarP(&outFile, "out", "o", "", "output csv (default <system>.csv)")
	generateCmd.Flags().IntVar(&samples, "samples", 0, "number of samples")

	fitCmd := &cobra.Command{
		Use:   "fit",
		Short: "identify a model and store the run",
		RunE:  fitModel,
	}
	addConfigFlags(fitCmd)
	fitCmd.Flags().IntVar(&numIter, "num-iter", 0, "number of iterations")
	fitCmd.Flags().Float64Var(&lr, "lr", 0, "learning rate")
	fitCmd.Flags().IntVar(&batchSize, "batch-size", 0, "subsequences per batch")
	fitCmd.Flags().IntVar(&seqLen, "seq-len", 0, "subsequence length")
	fitCmd.Flags().StringVar(&optimizer, "optimizer", "", "optimizer ("+strings.Join(optim.Names(), ", ")+")")
	fitCmd.Flags().StringVar(&variant, "variant", "", "model variant (free-form, residual-plus-linear, pure-linear)")
	fitCmd.Flags().StringVar(&checkpoint, "checkpoint", "", "warm start from a checkpoint file")
	fitCmd.Flags().IntVar(&runs, "runs", 1, "independent seeded runs")
	fitCmd.Flags().BoolVar(&live, "live", false, "follow the fit in a live view")

	validateCmd := &cobra.Command{
		Use:   "validate [run_id]",
		Short: "simulate a stored model over its validation record",
		Args:  cobra.ExactArgs(1),
		RunE:  validateRun,
	}
	validateCmd.Flags().StringVar(&pngFile, "png", "", "write a validation figure")
	validateCmd.Flags().BoolVar(&spectrum, "spectrum", false, "show the residual power spectrum")
	validateCmd.Flags().StringVar(&csvFile, "csv", "", "validate against another csv record")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot loss history and validation traces",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&pngFile, "png", "", "write the loss history figure")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets [system]",
		Short: "list presets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}
	presetsSaveCmd := &cobra.Command{
		Use:   "save [system/name] [path]",
		Short: "write a preset as a yaml config",
		Args:  cobra.ExactArgs(2),
		RunE:  savePreset,
	}
	presetsCmd.AddCommand(presetsSaveCmd)

	rootCmd.AddCommand(generateCmd, fitCmd, validateCmd, listCmd, plotCmd, exportCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, viz.StatusFailed.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "preset as system/name")
	cmd.Flags().StringVar(&csvFile, "csv", "", "read the record from a csv file")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed")
}

// loadConfig starts from the defaults, applies the preset, then the config
// file, then any flag the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		system, name, ok := strings.Cut(preset, "/")
		if !ok {
			return nil, fmt.Errorf("preset must be system/name, got %q", preset)
		}
		cfg = config.GetPreset(system, name)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(system))
		}
	}
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("csv") {
		cfg.Data = csvFile
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("samples") {
		cfg.Generator.Samples = samples
	}
	if flags.Changed("num-iter") {
		cfg.NumIter = numIter
	}
	if flags.Changed("lr") {
		cfg.LearningRate = lr
	}
	if flags.Changed("batch-size") {
		cfg.BatchSize = batchSize
	}
	if flags.Changed("seq-len") {
		cfg.SeqLen = seqLen
	}
	if flags.Changed("optimizer") {
		cfg.Optimizer = optimizer
	}
	if flags.Changed("variant") {
		cfg.ModelVariant = variant
	}
	if flags.Changed("checkpoint") {
		cfg.Checkpoint = checkpoint
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger() (*zap.Logger, error) {
	return logging.New(logLevel, devLog)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func generateData(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Data != "" {
		return fmt.Errorf("generate simulates the configured system; drop --csv")
	}
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	e := experiment.New(cfg, log)
	s, err := e.Registry().Generate(ctx, cfg)
	if err != nil {
		return err
	}

	path := outFile
	if path == "" {
		path = cfg.System + ".csv"
	}
	if err := storage.SaveSeries(path, s, e.Columns()); err != nil {
		return err
	}

	fmt.Println(viz.Title.Render("generated " + cfg.System))
	fmt.Println(viz.Metric("samples", fmt.Sprint(s.Len())))
	fmt.Println(viz.Metric("ts", fmt.Sprintf("%g", cfg.Generator.Ts)))
	fmt.Println(viz.Metric("file", path))
	return nil
}

func fitModel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if runs < 1 {
		return fmt.Errorf("--runs must be positive, got %d", runs)
	}
	if live && runs != 1 {
		return fmt.Errorf("--live follows a single run")
	}

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()
	if live {
		log = zap.NewNop()
	}

	st := storage.New(storeDir)
	if err := st.Init(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	e := experiment.New(cfg, log)
	d, err := e.Prepare(ctx)
	if err != nil {
		return err
	}

	var outcomes []*experiment.Outcome
	switch {
	case live:
		out, err := fitLive(ctx, e, d)
		if out == nil {
			return err
		}
		outcomes = []*experiment.Outcome{out}
		if err != nil {
			fmt.Println(viz.StatusStopped.Render("fit stopped: ") + err.Error())
		}
	case runs == 1:
		out, err := e.Fit(ctx, d, cfg.Seed, fit.WithReporter(fit.NewLogReporter(log)))
		if out == nil || !errors.Is(err, context.Canceled) && err != nil {
			return err
		}
		outcomes = []*experiment.Outcome{out}
		if err != nil {
			fmt.Println(viz.StatusStopped.Render("fit interrupted, saving partial run"))
		}
	default:
		outcomes, err = e.RunSeeds(ctx, d, runs, fit.WithReporter(fit.NewLogReporter(log)))
		if err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSEED\tITERS\tAVG LOSS\tVAL FIT %\tVAL R2")
	for _, out := range outcomes {
		id, err := saveOutcome(st, cfg, out)
		if err != nil {
			return err
		}
		fitIdx, r2 := "-", "-"
		if out.Validation != nil {
			fitIdx = formatChannels(out.Validation.Metrics["fit"], "%.1f")
			r2 = formatChannels(out.Validation.Metrics["r2"], "%.4f")
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%.4e\t%s\t%s\n",
			id, out.Seed, out.Result.Iterations, out.Result.Average, fitIdx, r2)
	}
	return w.Flush()
}

// fitLive runs one fit in the background while a Monitor follows it.
// Quitting the monitor cancels the fit.
func fitLive(ctx context.Context, e *experiment.Experiment, d *experiment.Data) (*experiment.Outcome, error) {
	cfg := e.Config()
	title := fmt.Sprintf("%s · %s", cfg.System, cfg.ModelVariant)
	return viz.Watch(ctx, title, cfg.NumIter, func(ctx context.Context, r fit.Reporter) (*experiment.Outcome, error) {
		return e.Fit(ctx, d, cfg.Seed, fit.WithReporter(r))
	})
}

func saveOutcome(st *storage.Store, cfg *config.Config, out *experiment.Outcome) (string, error) {
	c := *cfg
	c.Seed = out.Seed
	meta := &storage.RunMetadata{
		System:     cfg.System,
		Variant:    cfg.ModelVariant,
		Seed:       out.Seed,
		Iterations: out.Result.Iterations,
		LossScale:  out.Result.LossScale,
		FinalLoss:  out.Result.Average,
		Config:     &c,
	}
	if out.Validation != nil {
		meta.Metrics = out.Validation.Metrics
	}

	id, err := st.Save(meta, out.Result.Losses, models.Snapshot(out.Model))
	if err != nil {
		return "", err
	}
	if out.Validation != nil {
		if err := st.SaveValidation(id, out.Validation.Trajectories()); err != nil {
			return "", err
		}
	}
	return id, nil
}

func validateRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(storeDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	if meta.Config == nil {
		return fmt.Errorf("run %s has no stored config", runID)
	}

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	cfg := *meta.Config
	cfg.Checkpoint = st.CheckpointPath(runID)
	cfg.NoiseStd = nil
	if cmd.Flags().Changed("csv") {
		cfg.Data = csvFile
		cfg.FitSamples = 0
	}

	e := experiment.New(&cfg, log)
	d, err := e.Prepare(ctx)
	if err != nil {
		return err
	}
	model, err := e.BuildModel(d.Fit.Ts(), meta.Seed)
	if err != nil {
		return err
	}
	v, err := experiment.Validate(model, d.Val, d.Proj)
	if err != nil {
		return err
	}

	tr := v.Trajectories()
	if !cmd.Flags().Changed("csv") {
		if err := st.SaveValidation(runID, tr); err != nil {
			return err
		}
		meta.Metrics = v.Metrics
		if err := st.Update(meta); err != nil {
			return err
		}
	}

	names := channelNames(&cfg, d.Proj)
	fmt.Println(viz.Title.Render("validation " + runID))
	fmt.Println(viz.Metric("samples", fmt.Sprint(d.Val.Len())))
	printMetrics(v.Metrics, names)
	if d.Val.HasStates() {
		fmt.Println(viz.Metric("consistency", fmt.Sprintf("%.4e", v.Consistency)))
	}
	fmt.Println()
	for _, chart := range viz.TrajectoryCharts(tr, names, viz.ChartWidth, viz.ChartHeight) {
		fmt.Println(chart)
		fmt.Println()
	}

	if spectrum {
		res, err := analysis.Residuals(tr.Measured, tr.Simulated)
		if err != nil {
			return err
		}
		for j, r := range res {
			freqs, power := analysis.PowerSpectrum(r, d.Val.Ts())
			if len(power) < 2 {
				continue
			}
			name := fmt.Sprintf("y%d", j)
			if j < len(names) {
				name = names[j]
			}
			peak, _ := analysis.Peak(freqs, power)
			fmt.Println(asciigraph.Plot(power[1:],
				asciigraph.Height(8),
				asciigraph.Width(viz.ChartWidth),
				asciigraph.Caption(fmt.Sprintf("%s residual spectrum, peak at %.4g", name, peak)),
			))
			fmt.Println()
		}
	}

	if pngFile != "" {
		if err := viz.SaveValidationFigure(pngFile, tr, names); err != nil {
			return err
		}
		fmt.Println(viz.Metric("figure", pngFile))
	}
	return nil
}

// channelNames labels the compared channels: the output columns for
// projected comparisons, the state columns otherwise.
func channelNames(cfg *config.Config, proj []int) []string {
	if len(proj) > 0 {
		return cfg.Columns.Outputs
	}
	if len(cfg.Columns.States) > 0 {
		return cfg.Columns.States
	}
	return experiment.New(cfg, nil).Columns().States
}

func printMetrics(m map[string][]float64, names []string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprint(w, "METRIC")
	for _, n := range names {
		fmt.Fprintf(w, "\t%s", n)
	}
	fmt.Fprintln(w)
	for _, k := range keys {
		fmt.Fprint(w, k)
		for _, v := range m[k] {
			fmt.Fprintf(w, "\t%.4g", v)
		}
		fmt.Fprintln(w)
	}
	w.Flush()
}

func formatChannels(vals []float64, format string) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf(format, v)
	}
	return strings.Join(parts, ",")
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(storeDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSYSTEM\tVARIANT\tTIME\tSEED\tITERS\tAVG LOSS\tVAL FIT %")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%.4e\t%s\n",
			run.ID,
			run.System,
			run.Variant,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Seed,
			run.Iterations,
			run.FinalLoss,
			formatChannels(run.Metrics["fit"], "%.1f"),
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(storeDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	losses, err := st.LoadLosses(runID)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("system: %s (%s)\n", meta.System, meta.Variant)
	fmt.Printf("iterations: %d\n\n", len(losses))

	if chart := viz.LossChart(losses, viz.ChartWidth, viz.ChartHeight); chart != "" {
		fmt.Println(chart)
		fmt.Println()
	}

	tr, err := st.LoadValidation(runID)
	switch {
	case err == nil:
		var names []string
		if meta.Config != nil {
			names = channelNames(meta.Config, nil)
			if len(tr.Measured) > 0 && len(names) != len(tr.Measured[0]) {
				names = meta.Config.Columns.Outputs
			}
		}
		for _, chart := range viz.TrajectoryCharts(tr, names, viz.ChartWidth, viz.ChartHeight) {
			fmt.Println(chart)
			fmt.Println()
		}
	case !os.IsNotExist(err):
		return err
	}

	if pngFile != "" {
		if err := viz.SaveLossFigure(pngFile, losses); err != nil {
			return err
		}
		fmt.Printf("figure: %s\n", pngFile)
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(storeDir)
	if outFile == "" {
		return st.Export(args[0], os.Stdout)
	}
	if err := st.ExportFile(args[0], outFile); err != nil {
		return err
	}
	fmt.Printf("exported %s to %s\n", args[0], outFile)
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	systems := config.ListSystems()
	if len(args) == 1 {
		systems = []string{args[0]}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tVARIANT\tN_X\tN_U\tSEQ_LEN\tBATCH\tITERS\tUNMEASURED")
	for _, system := range systems {
		names := config.ListPresets(system)
		if len(names) == 0 {
			return fmt.Errorf("no presets for system %q", system)
		}
		for _, name := range names {
			p := config.GetPreset(system, name)
			fmt.Fprintf(w, "%s/%s\t%s\t%d\t%d\t%d\t%d\t%d\t%t\n",
				system, name, p.ModelVariant, p.NX, p.NU, p.SeqLen, p.BatchSize, p.NumIter, p.Unmeasured)
		}
	}
	return w.Flush()
}

func savePreset(cmd *cobra.Command, args []string) error {
	system, name, ok := strings.Cut(args[0], "/")
	if !ok {
		return fmt.Errorf("preset must be system/name, got %q", args[0])
	}
	p := config.GetPreset(system, name)
	if p == nil {
		return fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets(system))
	}
	if err := config.Save(args[1], p); err != nil {
		return err
	}
	fmt.Printf("wrote %s to %s\n", args[0], args[1])
	return nil
}
