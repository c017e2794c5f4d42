package report_test

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dukex/flowtransfer/pkg/models"
	"github.com/dukex/flowtransfer/pkg/plugins/report"
	"github.com/dukex/flowtransfer/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSummary() *models.Summary {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	return &models.Summary{
		RunID:       "0f8fad5b-d9cb-469f-a165-70867728950e",
		Total:       3,
		Processed:   3,
		Transferred: 1,
		Skipped:     1,
		Failed:      1,
		StartTime:   start,
		EndTime:     start.Add(2 * time.Second),
		Duration:    2 * time.Second,
		Workflows: []models.WorkflowResult{
			{ID: "1", Name: "Daily | Report", Status: models.RecordStatusTransferred, TargetID: "77", Tags: []string{"production", "critical"}},
			{ID: "2", Name: "Sync", Status: models.RecordStatusSkipped, Reason: `workflow "Sync" already exists on target (id 4)`},
			{ID: "3", Name: "Broken", Status: models.RecordStatusFailed, Reason: "POST failed with status 400"},
		},
	}
}

func TestReporters_Generate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	tests := []struct {
		reporter protocol.Reporter
		ext      string
	}{
		{reporter: report.NewMarkdown(dir), ext: ".md"},
		{reporter: report.NewJSON(dir), ext: ".json"},
		{reporter: report.NewCSV(dir), ext: ".csv"},
	}

	for _, tt := range tests {
		t.Run(tt.reporter.Info().Name, func(t *testing.T) {
			t.Parallel()

			path, err := tt.reporter.Generate(context.Background(), sampleSummary())
			require.NoError(t, err)

			assert.Equal(t, dir, filepath.Dir(path))
			assert.Equal(t, "transfer-report-20260301-100002-0f8fad5b"+tt.ext, filepath.Base(path))
			assert.FileExists(t, path)
			assert.Equal(t, protocol.PluginTypeReporter, tt.reporter.Info().Type)
			assert.Equal(t, string(models.InferReportFormat(tt.reporter.Info().Name)), formatOf(tt.ext))
		})
	}
}

func formatOf(ext string) string {
	switch ext {
	case ".md":
		return "markdown"
	case ".json":
		return "json"
	default:
		return "csv"
	}
}

func TestMarkdown_Content(t *testing.T) {
	t.Parallel()

	summary := sampleSummary()
	summary.DryRun = true

	path, err := report.NewMarkdown(t.TempDir()).Generate(context.Background(), summary)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	text := string(content)
	assert.Contains(t, text, "# Workflow Transfer Report")
	assert.Contains(t, text, "Dry run")
	assert.Contains(t, text, "| Transferred | 1 |")
	assert.Contains(t, text, "| Success rate | 33.3% |")
	assert.Contains(t, text, `| 1 | Daily \| Report | transferred | 77 |  |`)
	assert.NotContains(t, text, "cancelled before")
}

func TestJSON_Content(t *testing.T) {
	t.Parallel()

	path, err := report.NewJSON(t.TempDir()).Generate(context.Background(), sampleSummary())
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(content, &decoded))

	assert.Equal(t, float64(3), decoded["total"])
	assert.Equal(t, float64(2000), decoded["durationMs"])
	assert.Len(t, decoded["workflows"], 3)
}

func TestCSV_Content(t *testing.T) {
	t.Parallel()

	path, err := report.NewCSV(t.TempDir()).Generate(context.Background(), sampleSummary())
	require.NoError(t, err)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, []string{"id", "name", "status", "simulated", "target_id", "reason", "tags"}, rows[0])
	assert.Equal(t, "production;critical", rows[1][6])
	assert.True(t, strings.HasPrefix(rows[2][5], "workflow"))
	assert.Equal(t, "failed", rows[3][2])
}

func TestReporter_UnwritableDirectory(t *testing.T) {
	t.Parallel()

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	_, err := report.NewJSON(filepath.Join(blocker, "reports")).Generate(context.Background(), sampleSummary())
	require.Error(t, err)
}
