package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/rj-04/mimotune/internal/server"
)

var (
	serverURL string
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific sweep job",
	Long: `Queries the server for sweep job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

// jobStatus mirrors the body of GET /api/v1/sweeps/{id}/status.
type jobStatus struct {
	ID          string           `json:"id"`
	State       server.JobState  `json:"state"`
	Config      server.JobConfig `json:"config"`
	Completed   int              `json:"completed"`
	Progress    float64          `json:"progress"`
	BestValue   float64          `json:"bestValue"`
	BestFitness float64          `json:"bestFitness"`
	BestIndex   int              `json:"bestIndex"`
	Elapsed     float64          `json:"elapsed"`
	Error       string           `json:"error"`
}

var statusClient = &http.Client{Timeout: 10 * time.Second}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if len(args) == 0 {
		return listJobs(out, fmt.Sprintf("%s/api/v1/sweeps", serverURL))
	}
	jobID := args[0]
	return getJobStatus(out, fmt.Sprintf("%s/api/v1/sweeps/%s/status", serverURL, jobID), jobID)
}

func getJSON(url string, v any) (int, error) {
	resp, err := statusClient.Get(url)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("server returned error: %s", string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func listJobs(out io.Writer, url string) error {
	var jobs []server.Job
	if _, err := getJSON(url, &jobs); err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs found")
		return nil
	}

	fmt.Fprintf(out, "Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		fmt.Fprintf(out, "Job ID: %s\n", job.ID)
		fmt.Fprintf(out, "  State: %s\n", job.State)
		fmt.Fprintf(out, "  Sweep: %s from %g step %g x %d\n",
			job.Config.Parameter, job.Config.Start, job.Config.Step, job.Config.Iterations)
		if job.BestIndex >= 0 {
			fmt.Fprintf(out, "  Best: %.6g (score %.1f%%)\n", job.BestValue, job.BestFitness*100)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func getJobStatus(out io.Writer, url, jobID string) error {
	var status jobStatus
	code, err := getJSON(url, &status)
	if code == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Job: %s\n", status.ID)
	fmt.Fprintf(out, "State: %s\n", status.State)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Configuration:")
	fmt.Fprintf(out, "  Parameter: %s\n", status.Config.Parameter)
	fmt.Fprintf(out, "  Start: %g\n", status.Config.Start)
	fmt.Fprintf(out, "  Step: %g\n", status.Config.Step)
	fmt.Fprintf(out, "  Iterations: %d\n", status.Config.Iterations)
	fmt.Fprintf(out, "  Exclusion radius: %g GHz\n", status.Config.ExclusionRadius)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Progress:")
	fmt.Fprintf(out, "  Completed: %d/%d (%.0f%%)\n", status.Completed, status.Config.Iterations, status.Progress*100)
	if status.BestIndex >= 0 {
		fmt.Fprintf(out, "  Best value: %.6g (iteration %d)\n", status.BestValue, status.BestIndex+1)
		fmt.Fprintf(out, "  Best score: %.1f%%\n", status.BestFitness*100)
	}
	elapsed := time.Duration(status.Elapsed * float64(time.Second))
	fmt.Fprintf(out, "  Elapsed: %s\n", elapsed.Round(time.Millisecond))

	if status.Error != "" {
		fmt.Fprintf(out, "\nError: %s\n", status.Error)
	}
	return nil
}
