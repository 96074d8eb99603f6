package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDefault_Valid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default config invalid: %v", err)
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tune.yaml")
	data := `
sweep:
  start: 11.2
  iterations: 3
  solve_timeout: 90s
results:
  gain: Tables\1D Results\Realized Gain
synthetic:
  solve_delay: 50ms
data_dir: /tmp/mimotune
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := Default()
	want.Sweep.Start = 11.2
	want.Sweep.Iterations = 3
	want.Sweep.SolveTimeout = 90 * time.Second
	want.Results.Gain = `Tables\1D Results\Realized Gain`
	want.Synthetic.SolveDelay = 50 * time.Millisecond
	want.DataDir = "/tmp/mimotune"

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_EnvFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.yaml")
	if err := os.WriteFile(path, []byte("sweep:\n  step: 0.05\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Sweep.Step != 0.05 {
		t.Errorf("Expected step 0.05 from env config, got %g", cfg.Sweep.Step)
	}
}

func TestLoad_ExplicitZeroIterations(t *testing.T) {
	cfg, err := Parse([]byte("sweep:\n  iterations: 0\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Sweep.Iterations != 0 {
		t.Errorf("Expected explicit zero iterations to be kept, got %d", cfg.Sweep.Iterations)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed yaml", "sweep: [1, 2"},
		{"negative iterations", "sweep:\n  iterations: -1\n"},
		{"empty parameter", "sweep:\n  parameter: \"\"\n"},
		{"negative radius", "sweep:\n  exclusion_radius: -2\n"},
		{"empty result path", "results:\n  s21: \"\"\n"},
		{"bad synthetic span", "synthetic:\n  start_ghz: 50\n"},
		{"empty data dir", "data_dir: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tune.yaml")
	cfg := Default()
	cfg.Sweep.Iterations = 9
	cfg.Sweep.SolveTimeout = 2 * time.Minute

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("Config mismatch (-want +got):\n%s", diff)
	}
}

func TestSweepConfig(t *testing.T) {
	cfg := Default()
	sc := cfg.SweepConfig()
	if sc.Parameter != "patch_length" || sc.Iterations != 5 || sc.Paths != cfg.Results {
		t.Errorf("Unexpected sweep config: %+v", sc)
	}
}
