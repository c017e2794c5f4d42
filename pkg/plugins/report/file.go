// Package report provides the built-in reporters. Each one writes a file into an output
// directory and returns its path.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dukex/flowtransfer/pkg/models"
)

const (
	MarkdownName = "markdown-reporter"
	JSONName     = "json-reporter"
	CSVName      = "csv-reporter"

	version = "1.0.0"

	filePrefix = "transfer-report"
	dirMode    = 0o755
	fileMode   = 0o644
)

// fileName builds a name unique per run: transfer-report-<end time>-<run id prefix>.<ext>.
func fileName(summary *models.Summary, ext string) string {
	stamp := summary.EndTime
	if stamp.IsZero() {
		stamp = time.Now()
	}

	name := fmt.Sprintf("%s-%s", filePrefix, stamp.UTC().Format("20060102-150405"))

	runID := summary.RunID
	if len(runID) > 8 {
		runID = runID[:8]
	}

	if runID != "" {
		name += "-" + runID
	}

	return name + "." + ext
}

func writeFile(dir string, name string, content []byte) (string, error) {
	err := os.MkdirAll(dir, dirMode)
	if err != nil {
		return "", fmt.Errorf("failed to create report directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, name)

	err = os.WriteFile(path, content, fileMode)
	if err != nil {
		return "", fmt.Errorf("failed to write report %s: %w", path, err)
	}

	return path, nil
}
