package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rj-04/mimotune/internal/config"
	"github.com/rj-04/mimotune/internal/fuzzy"
	"github.com/rj-04/mimotune/internal/session"
	"github.com/rj-04/mimotune/internal/store"
	"github.com/rj-04/mimotune/internal/sweep"
)

var (
	paramName    string
	startValue   float64
	stepValue    float64
	iterations   int
	radius       float64
	solveTimeout time.Duration
	solveDelay   time.Duration
	runDataDir   string
	noSave       bool
	jsonOutput   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a parameter sweep against the synthetic antenna",
	Long: `Scans a design parameter from --start in --step increments, solving and
scoring every design, then commits the best value. Each iteration is printed
as it completes. Unless --no-save is given, the run record and its JSONL
trace are written under <data-dir>/runs/<run-id>/.`,
	RunE: runSweep,
}

func init() {
	runCmd.Flags().StringVar(&paramName, "param", "", "Design parameter to sweep")
	runCmd.Flags().Float64Var(&startValue, "start", 0, "First parameter value")
	runCmd.Flags().Float64Var(&stepValue, "step", 0, "Parameter increment per iteration")
	runCmd.Flags().IntVar(&iterations, "iterations", 0, "Number of iterations")
	runCmd.Flags().Float64Var(&radius, "radius", 0, "Band exclusion radius around the primary resonance (GHz)")
	runCmd.Flags().DurationVar(&solveTimeout, "solve-timeout", 0, "Deadline per solve (0 = none)")
	runCmd.Flags().DurationVar(&solveDelay, "solve-delay", 0, "Synthetic solver latency")
	runCmd.Flags().StringVar(&runDataDir, "data-dir", "", "Base directory for run records")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "Do not persist the run")
	runCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON instead of a table")

	rootCmd.AddCommand(runCmd)
}

// applyRunFlags overrides config values with explicitly set flags.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("param") {
		cfg.Sweep.Parameter = paramName
	}
	if flags.Changed("start") {
		cfg.Sweep.Start = startValue
	}
	if flags.Changed("step") {
		cfg.Sweep.Step = stepValue
	}
	if flags.Changed("iterations") {
		cfg.Sweep.Iterations = iterations
	}
	if flags.Changed("radius") {
		cfg.Sweep.ExclusionRadius = radius
	}
	if flags.Changed("solve-timeout") {
		cfg.Sweep.SolveTimeout = solveTimeout
	}
	if flags.Changed("solve-delay") {
		cfg.Synthetic.SolveDelay = solveDelay
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = runDataDir
	}
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.New().String()
	res, err := executeSweep(ctx, cfg, runID, !noSave, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nBest %s = %.6g (score %.1f%%, iteration %d)\n",
		res.Parameter, res.BestValue, res.BestFitness*100, res.BestIndex+1)
	if !noSave {
		fmt.Fprintf(cmd.OutOrStdout(), "Run %s saved to %s\n", runID, cfg.DataDir)
	}
	return nil
}

// executeSweep runs one sweep against a synthetic session. When table output
// is enabled each iteration is written to out as it completes.
func executeSweep(ctx context.Context, cfg *config.Config, runID string, save bool, out io.Writer) (*sweep.Result, error) {
	sess, err := session.NewSynthetic(cfg.Synthetic, cfg.Results)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	engine, err := fuzzy.NewEngine(fuzzy.AntennaConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to build inference engine: %w", err)
	}

	scfg := cfg.SweepConfig()
	sw, err := sweep.New(sess, engine, scfg)
	if err != nil {
		return nil, err
	}

	if !jsonOutput {
		printHeader(out)
		sw.AddObserver(sweep.ObserverFunc(func(it sweep.Iteration) {
			printIteration(out, it)
		}))
	}

	var (
		st       *store.FSStore
		observed []sweep.Iteration
	)
	if save {
		st, err = store.NewFSStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create run store: %w", err)
		}
		tw, err := store.NewTraceWriter(cfg.DataDir, runID, false)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace: %w", err)
		}
		defer tw.Close()
		sw.AddObserver(tw)
		sw.AddObserver(sweep.ObserverFunc(func(it sweep.Iteration) {
			observed = append(observed, it)
		}))
	}

	started := time.Now()
	res, runErr := sw.Run(ctx)

	if st != nil {
		runCfg := store.NewRunConfig(scfg, "synthetic")
		var run *store.Run
		if runErr != nil {
			run = store.NewFailedRun(runID, runCfg, observed, runErr, started)
		} else {
			run = store.NewRun(runID, runCfg, res, started)
		}
		if err := st.SaveRun(runID, run); err != nil {
			slog.Error("Failed to save run", "run_id", runID, "error", err)
		}
	}

	if runErr != nil {
		return nil, runErr
	}
	return res, nil
}

func printHeader(w io.Writer) {
	fmt.Fprintf(w, "%-4s %8s %9s %9s %9s %9s %9s %9s %6s %6s %6s %6s %7s\n",
		"#", "VALUE", "F1 GHz", "S11 dB", "S21 dB", "F2 GHz", "S11 dB", "S21 dB", "EFF1", "EFF2", "GAIN1", "GAIN2", "SCORE")
	fmt.Fprintln(w, strings.Repeat("-", 110))
}

func printIteration(w io.Writer, it sweep.Iteration) {
	fmt.Fprintf(w, "%-4d %8.4g %9.3f %9.2f %9.2f %9.3f %9.2f %9.2f %6.3f %6.3f %6.2f %6.2f %6.1f%%",
		it.Index+1, it.Value,
		it.Band1.Frequency, it.Band1.ReflectionDB, it.Band1.IsolationDB,
		it.Band2.Frequency, it.Band2.ReflectionDB, it.Band2.IsolationDB,
		it.Efficiency1, it.Efficiency2, it.Gain1, it.Gain2,
		it.Fitness*100,
	)
	if len(it.Clamped) > 0 {
		fmt.Fprintf(w, "  clamped: %s", strings.Join(it.Clamped, ","))
	}
	fmt.Fprintln(w)
}
