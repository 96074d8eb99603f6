package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"github.com/rj-04/mimotune/internal/store"
)

func saveTestRun(t *testing.T, st *store.FSStore, runID string, finished time.Time) {
	t.Helper()
	run := &store.Run{
		RunID:  runID,
		Status: store.StatusCompleted,
		Config: store.RunConfig{
			Parameter:       "patch_length",
			Start:           10.7,
			Step:            0.1,
			Iterations:      0,
			ExclusionRadius: 2,
			Session:         "synthetic",
		},
		BestValue:  10.7,
		BestIndex:  -1,
		StartedAt:  finished.Add(-time.Second),
		FinishedAt: finished,
	}
	if err := st.SaveRun(runID, run); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
}

// withRunsDataDir points the runs commands at dir for the duration of a test.
func withRunsDataDir(t *testing.T, dir string) {
	t.Helper()
	original := runsDataDir
	runsDataDir = dir
	t.Cleanup(func() { runsDataDir = original })
}

func testCommand(out *bytes.Buffer) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetIn(strings.NewReader(""))
	return cmd
}

func runIDs(infos []store.RunInfo) []string {
	ids := make([]string, len(infos))
	for i, info := range infos {
		ids[i] = info.RunID
	}
	return ids
}

func TestSelectRunsForDeletion_ByAge(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	infos := []store.RunInfo{
		{RunID: "run1", FinishedAt: now.AddDate(0, 0, -10)},
		{RunID: "run2", FinishedAt: now.AddDate(0, 0, -5)},
		{RunID: "run3", FinishedAt: now.AddDate(0, 0, -1)},
		{RunID: "run4", FinishedAt: now.AddDate(0, 0, -30)},
	}

	got := runIDs(selectRunsForDeletion(infos, 0, 7, now))
	if diff := cmp.Diff([]string{"run1", "run4"}, got); diff != "" {
		t.Errorf("Unexpected selection (-want +got):\n%s", diff)
	}
}

func TestSelectRunsForDeletion_ByCount(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	infos := []store.RunInfo{
		{RunID: "run1", FinishedAt: now.Add(-4 * time.Hour)},
		{RunID: "run2", FinishedAt: now.Add(-1 * time.Hour)},
		{RunID: "run3", FinishedAt: now.Add(-3 * time.Hour)},
		{RunID: "run4", FinishedAt: now.Add(-2 * time.Hour)},
	}

	got := runIDs(selectRunsForDeletion(infos, 2, 0, now))
	if diff := cmp.Diff([]string{"run3", "run1"}, got); diff != "" {
		t.Errorf("Expected the two oldest runs (-want +got):\n%s", diff)
	}

	if got := selectRunsForDeletion(infos, 4, 0, now); len(got) != 0 {
		t.Errorf("Nothing should be deleted when keeping all runs, got %v", runIDs(got))
	}
}

func TestSelectRunsForDeletion_Combined(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	infos := []store.RunInfo{
		{RunID: "old", FinishedAt: now.AddDate(0, 0, -20)},
		{RunID: "mid", FinishedAt: now.AddDate(0, 0, -3)},
		{RunID: "new", FinishedAt: now.AddDate(0, 0, -1)},
	}

	got := runIDs(selectRunsForDeletion(infos, 1, 10, now))
	if diff := cmp.Diff([]string{"old", "mid"}, got); diff != "" {
		t.Errorf("Runs must be selected once (-want +got):\n%s", diff)
	}
}

func TestGetDirSize(t *testing.T) {
	tmpDir := t.TempDir()
	content := []byte("Hello, World!")
	if err := os.WriteFile(filepath.Join(tmpDir, "test.txt"), content, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	size, err := getDirSize(tmpDir)
	if err != nil {
		t.Fatalf("getDirSize failed: %v", err)
	}
	if size < int64(len(content)) {
		t.Errorf("Expected size >= %d, got %d", len(content), size)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
	}

	for _, tt := range tests {
		if got := formatBytes(tt.bytes); got != tt.expected {
			t.Errorf("formatBytes(%d) = %s, expected %s", tt.bytes, got, tt.expected)
		}
	}
}

func TestRunsListCommand_NoRuns(t *testing.T) {
	withRunsDataDir(t, t.TempDir())

	var out bytes.Buffer
	if err := runListRuns(testCommand(&out), nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(out.String(), "No runs found.") {
		t.Errorf("Unexpected output: %q", out.String())
	}
}

func TestRunsListCommand_WithRuns(t *testing.T) {
	dir := t.TempDir()
	st, err := store.NewFSStore(dir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	saveTestRun(t, st, "run-a", time.Now())
	withRunsDataDir(t, dir)

	var out bytes.Buffer
	if err := runListRuns(testCommand(&out), nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	for _, want := range []string{"run-a", "patch_length", "Total runs: 1"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Output should contain %q:\n%s", want, out.String())
		}
	}
}

func TestRunsShowCommand_NotFound(t *testing.T) {
	withRunsDataDir(t, t.TempDir())

	var out bytes.Buffer
	if err := runShowRun(testCommand(&out), []string{"missing"}); err == nil {
		t.Error("Expected error for unknown run")
	}
}

func TestRunsCleanCommand_NoFlags(t *testing.T) {
	withRunsDataDir(t, t.TempDir())
	keepLast, olderThanDays = 0, 0

	var out bytes.Buffer
	if err := runCleanRuns(testCommand(&out), nil); err == nil {
		t.Error("Expected error when no flags specified")
	}
}

func TestRunsCleanCommand_WithForce(t *testing.T) {
	dir := t.TempDir()
	st, err := store.NewFSStore(dir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	saveTestRun(t, st, "old-run", time.Now().AddDate(0, 0, -30))
	saveTestRun(t, st, "new-run", time.Now())
	withRunsDataDir(t, dir)

	keepLast, olderThanDays, forceClean = 0, 7, true
	defer func() { keepLast, olderThanDays, forceClean = 0, 0, false }()

	var out bytes.Buffer
	if err := runCleanRuns(testCommand(&out), nil); err != nil {
		t.Fatalf("Clean failed: %v", err)
	}

	if _, err := st.LoadRun("old-run"); err == nil {
		t.Error("Old run should have been deleted")
	}
	if _, err := st.LoadRun("new-run"); err != nil {
		t.Errorf("New run should be kept: %v", err)
	}
}

func TestRunsCleanCommand_Aborted(t *testing.T) {
	dir := t.TempDir()
	st, err := store.NewFSStore(dir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	saveTestRun(t, st, "old-run", time.Now().AddDate(0, 0, -30))
	withRunsDataDir(t, dir)

	keepLast, olderThanDays, forceClean = 0, 7, false
	defer func() { keepLast, olderThanDays = 0, 0 }()

	var out bytes.Buffer
	cmd := testCommand(&out)
	cmd.SetIn(strings.NewReader("n\n"))
	if err := runCleanRuns(cmd, nil); err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	if !strings.Contains(out.String(), "Aborted.") {
		t.Errorf("Expected abort message:\n%s", out.String())
	}
	if _, err := st.LoadRun("old-run"); err != nil {
		t.Errorf("Run should survive an aborted clean: %v", err)
	}
}
