package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rj-04/mimotune/internal/fuzzy"
)

var scoreBands [2]fuzzy.BandObservation

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score one set of dual-band observations",
	Long: `Runs the fuzzy inference engine on a single pair of band observations and
prints the score together with every rule strength and antecedent degree.
Values outside a variable's universe by more than one step are clamped and
reported.`,
	RunE: runScore,
}

func init() {
	defaults := [2]fuzzy.BandObservation{
		{Frequency: 28, ReflectionDB: -30, IsolationDB: -25, Efficiency: 0.9, GainDB: 9.5},
		{Frequency: 38, ReflectionDB: -30, IsolationDB: -25, Efficiency: 0.9, GainDB: 9.5},
	}
	for i := range scoreBands {
		n := i + 1
		b := &scoreBands[i]
		scoreCmd.Flags().Float64Var(&b.Frequency, fmt.Sprintf("freq%d", n), defaults[i].Frequency, fmt.Sprintf("Band %d resonance frequency (GHz)", n))
		scoreCmd.Flags().Float64Var(&b.ReflectionDB, fmt.Sprintf("s11-%d", n), defaults[i].ReflectionDB, fmt.Sprintf("Band %d S11 (dB)", n))
		scoreCmd.Flags().Float64Var(&b.IsolationDB, fmt.Sprintf("s21-%d", n), defaults[i].IsolationDB, fmt.Sprintf("Band %d S21 (dB)", n))
		scoreCmd.Flags().Float64Var(&b.Efficiency, fmt.Sprintf("eff%d", n), defaults[i].Efficiency, fmt.Sprintf("Band %d total efficiency (fraction)", n))
		scoreCmd.Flags().Float64Var(&b.GainDB, fmt.Sprintf("gain%d", n), defaults[i].GainDB, fmt.Sprintf("Band %d max gain (dBi)", n))
	}

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	engine, err := fuzzy.NewEngine(fuzzy.AntennaConfig())
	if err != nil {
		return fmt.Errorf("failed to build inference engine: %w", err)
	}

	eval, err := engine.Evaluate(fuzzy.AntennaObservations(scoreBands[0], scoreBands[1]))
	if err != nil {
		return err
	}
	return printEvaluation(cmd.OutOrStdout(), eval)
}

func printEvaluation(out io.Writer, eval *fuzzy.Evaluation) error {
	fmt.Fprintf(out, "Score: %.4f (%.1f%%)\n\n", eval.Score, eval.Score*100)

	for i, s := range eval.Strengths {
		fmt.Fprintf(out, "Rule %d strength: %.4f\n", i+1, s)
	}
	fmt.Fprintln(out)

	keys := make([]string, 0, len(eval.Degrees))
	for k := range eval.Degrees {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ANTECEDENT\tDEGREE")
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%.4f\n", k, eval.Degrees[k])
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(eval.Clamped) > 0 {
		fmt.Fprintf(out, "\nClamped: %s\n", strings.Join(eval.Clamped, ", "))
	}
	return nil
}
