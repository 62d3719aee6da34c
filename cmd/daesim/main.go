package main

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/san-kum/daesim/internal/config"
	"github.com/san-kum/daesim/internal/diag"
	"github.com/san-kum/daesim/internal/dynamo"
	"github.com/san-kum/daesim/internal/models"
	"github.com/san-kum/daesim/internal/processed"
	"github.com/san-kum/daesim/internal/solution"
	"github.com/san-kum/daesim/internal/solver"
	"github.com/san-kum/daesim/internal/sweep"
)

var (
	duration    float64
	points      int
	batchSize   int
	threads     int
	preset      string
	configFile  string
	inputFlags  []string
	sensFlags   []string
	varName     string
	plot        bool
	showMetrics bool
	logLevel    string
	paramFlag   string
	target      float64
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(16)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "daesim",
		Short: "batched DAE integration with sensitivities",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(logLevel)
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "solve a model and show a variable",
		Args:  cobra.ExactArgs(1),
		RunE:  runSolve,
	}
	addSolveFlags(runCmd)
	runCmd.Flags().StringArrayVar(&inputFlags, "input", nil, "model input name=value, repeatable; several values per name fill a batch")
	runCmd.Flags().StringSliceVar(&sensFlags, "sensitivities", nil, "inputs to compute sensitivities for")
	runCmd.Flags().StringVar(&varName, "var", "", "variable to show (default: first scalar variable)")
	runCmd.Flags().BoolVar(&plot, "plot", false, "plot the variable in the terminal")
	runCmd.Flags().BoolVar(&showMetrics, "metrics", false, "print solver metrics")

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list models",
		RunE:  listModels,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list option presets",
		Run:   listPresets,
	}

	configCmd := &cobra.Command{
		Use:   "config [path]",
		Short: "write the default options to a yaml file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions()
			if err != nil {
				return err
			}
			return config.Save(args[0], opts)
		},
	}
	configCmd.Flags().StringVar(&preset, "preset", "", "start from a preset")

	sweepCmd := &cobra.Command{
		Use:   "sweep [model]",
		Short: "find the input value whose final variable value is closest to a target",
		Args:  cobra.ExactArgs(1),
		RunE:  runSweep,
	}
	addSolveFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&paramFlag, "param", "", "grid as name=v1,v2,...")
	sweepCmd.Flags().StringVar(&varName, "var", "", "scalar variable to score")
	sweepCmd.Flags().Float64Var(&target, "target", 0, "target final value")

	rootCmd.AddCommand(runCmd, modelsCmd, presetsCmd, configCmd, sweepCmd)
	return rootCmd
}

func addSolveFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&duration, "time", 1.0, "final time")
	cmd.Flags().IntVar(&points, "points", 101, "number of output times")
	cmd.Flags().IntVar(&batchSize, "batch", 1, "scenarios per stacked solve")
	cmd.Flags().IntVar(&threads, "threads", 0, "concurrent batches (default from options)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset options")
	cmd.Flags().StringVar(&configFile, "config", "", "options file (yaml), applied over --preset")
}

func setupLogging(level string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
	return nil
}

func loadOptions() (config.Options, error) {
	opts := config.DefaultOptions()
	if preset != "" {
		p, ok := config.GetPreset(preset)
		if !ok {
			return opts, fmt.Errorf("unknown preset: %s (available: %s)", preset, strings.Join(config.ListPresets(), ", "))
		}
		opts = p
	}
	if configFile != "" {
		loaded, err := config.LoadOver(configFile, opts)
		if err != nil {
			return opts, err
		}
		opts = loaded
	}
	if threads > 0 {
		opts.NumThreads = threads
	}
	return opts, nil
}

func outputTimes() []float64 {
	if points < 2 {
		points = 2
	}
	t := make([]float64, points)
	for i := range t {
		t[i] = duration * float64(i) / float64(points-1)
	}
	return t
}

// parseInputs expands name=v1,v2 flags into one scenario per value. All
// names with several values must have the same count.
func parseInputs(flags []string) ([]dynamo.Inputs, error) {
	count := 1
	var names []string
	values := map[string][]float64{}
	for _, f := range flags {
		name, vals, err := parseAssignment(f)
		if err != nil {
			return nil, err
		}
		if len(vals) > 1 {
			if count > 1 && len(vals) != count {
				return nil, fmt.Errorf("input %s has %d values, expected %d", name, len(vals), count)
			}
			count = len(vals)
		}
		names = append(names, name)
		values[name] = vals
	}

	out := make([]dynamo.Inputs, count)
	for i := range out {
		for _, name := range names {
			vals := values[name]
			v := vals[0]
			if len(vals) > 1 {
				v = vals[i]
			}
			out[i] = out[i].With(name, v)
		}
	}
	return out, nil
}

func parseAssignment(s string) (string, []float64, error) {
	name, list, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return "", nil, fmt.Errorf("expected name=value, got %q", s)
	}
	var vals []float64
	for _, part := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return "", nil, fmt.Errorf("input %s: %w", name, err)
		}
		vals = append(vals, v)
	}
	return name, vals, nil
}

func newRecorder() (diag.Recorder, *prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	m, err := diag.NewMetrics(reg)
	if err != nil {
		return nil, nil, err
	}
	return diag.Multi(diag.NewSlog(slog.Default()), m), reg, nil
}

func runSolve(cmd *cobra.Command, args []string) error {
	model, err := models.NewRegistry().Get(args[0])
	if err != nil {
		return err
	}
	opts, err := loadOptions()
	if err != nil {
		return err
	}
	if len(sensFlags) > 0 {
		opts.Sensitivities = sensFlags
	}
	inputs, err := parseInputs(inputFlags)
	if err != nil {
		return err
	}

	rec, reg, err := newRecorder()
	if err != nil {
		return err
	}
	setup, err := solver.NewSetup(model, opts, batchSize)
	if err != nil {
		return err
	}
	sols, err := solver.New(setup, rec).Solve(cmd.Context(), outputTimes(), inputs...)
	if err != nil {
		return err
	}

	name := varName
	if name == "" {
		name = firstScalar(model)
	}
	for i, sol := range sols {
		if err := report(i, sol, name); err != nil {
			return err
		}
	}

	if showMetrics {
		families, err := reg.Gather()
		if err != nil {
			return err
		}
		for _, mf := range families {
			if _, err := expfmt.MetricFamilyToText(os.Stdout, mf); err != nil {
				return err
			}
		}
	}
	return nil
}

func firstScalar(m dynamo.Model) string {
	var names []string
	for name, v := range m.Variables() {
		if v.Size() == 1 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

func report(i int, sol *solution.Solution, name string) error {
	t := sol.T()
	fmt.Println(titleStyle.Render(fmt.Sprintf("scenario %d", i)))
	row := func(label, value string) {
		fmt.Println(labelStyle.Render(label) + valueStyle.Render(value))
	}
	row("run", sol.ID())
	row("termination", string(sol.Termination()))
	row("final time", fmt.Sprintf("%g", t[len(t)-1]))
	row("wall time", sol.IntegrationTime().String())
	for _, in := range sol.Inputs()[0] {
		row(in.Name, fmt.Sprint(in.Value))
	}
	if name == "" {
		return nil
	}

	v, err := sol.Variable(name)
	if err != nil {
		return err
	}
	out, err := v.Eval(processed.Query{})
	if err != nil {
		return err
	}
	if v.Dims() > 0 {
		fmt.Println(warnStyle.Render(fmt.Sprintf("%s is %dD; showing its mean over space", name, v.Dims())))
	}
	series := timeSeries(out)
	row(name, fmt.Sprintf("%.6g", series[len(series)-1]))

	sens, err := v.Sensitivities()
	if err != nil {
		return err
	}
	if len(sens) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "d %s / d\tfinal\n", name)
		keys := make([]string, 0, len(sens))
		for k := range sens {
			if k != "all" {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			r, _ := sens[k].Dims()
			fmt.Fprintf(w, "%s\t%.6g\n", k, sens[k].At(r-1, 0))
		}
		w.Flush()
	}

	if plot {
		graph := asciigraph.Plot(series,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("%s vs time", name)),
		)
		fmt.Println(graph)
	}
	fmt.Println()
	return nil
}

// timeSeries averages every time slice of an evaluated variable.
func timeSeries(a *processed.Array) []float64 {
	nt := a.Shape[len(a.Shape)-1]
	per := len(a.Data) / nt
	out := make([]float64, nt)
	for ti := 0; ti < nt; ti++ {
		sum, count := 0.0, 0
		for k := 0; k < per; k++ {
			v := a.Data[k*nt+ti]
			if math.IsNaN(v) {
				continue
			}
			sum += v
			count++
		}
		out[ti] = sum / float64(count)
	}
	return out
}

func runSweep(cmd *cobra.Command, args []string) error {
	model, err := models.NewRegistry().Get(args[0])
	if err != nil {
		return err
	}
	opts, err := loadOptions()
	if err != nil {
		return err
	}
	name, vals, err := parseAssignment(paramFlag)
	if err != nil {
		return err
	}
	if varName == "" {
		varName = firstScalar(model)
	}

	rec, _, err := newRecorder()
	if err != nil {
		return err
	}
	setup, err := solver.NewSetup(model, opts, batchSize)
	if err != nil {
		return err
	}
	g := sweep.NewGrid().Add(name, vals...)
	res, err := sweep.Search(cmd.Context(), solver.New(setup, rec), outputTimes(), g, nil, sweep.Final(varName, target))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t|%s - target|\n", name, varName)
	for i, v := range vals {
		fmt.Fprintf(w, "%g\t%.6g\n", v, res.Values[i])
	}
	w.Flush()
	fmt.Println(titleStyle.Render(fmt.Sprintf("best %s = %g", name, res.Best.Scalar(name, math.NaN()))))
	return nil
}

func listPresets(cmd *cobra.Command, args []string) {
	for _, name := range config.ListPresets() {
		o, _ := config.GetPreset(name)
		fmt.Fprintf(cmd.OutOrStdout(), "%-10s rtol=%g atol=%v jacobian=%s solver=%s\n", name, o.Rtol, o.Atol, o.Jacobian, o.LinearSolver)
	}
}

func listModels(cmd *cobra.Command, args []string) error {
	reg := models.NewRegistry()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tSTATES\tVARIABLES")
	for _, name := range reg.List() {
		m, err := reg.Get(name)
		if err != nil {
			return err
		}
		vars := make([]string, 0)
		for v := range m.Variables() {
			vars = append(vars, v)
		}
		sort.Strings(vars)
		fmt.Fprintf(w, "%s\t%d\t%s\n", name, m.Size(), strings.Join(vars, ", "))
	}
	return w.Flush()
}
