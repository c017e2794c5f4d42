package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/dukex/flowtransfer/pkg/models"
	"github.com/dukex/flowtransfer/pkg/protocol"
)

var csvHeader = []string{"id", "name", "status", "simulated", "target_id", "reason", "tags"}

// CSV writes one row per processed workflow.
type CSV struct {
	dir string
}

var _ protocol.Reporter = (*CSV)(nil)

func NewCSV(dir string) *CSV {
	return &CSV{dir: dir}
}

func (r *CSV) Info() protocol.PluginInfo {
	return protocol.PluginInfo{
		Name:        CSVName,
		Version:     version,
		Type:        protocol.PluginTypeReporter,
		Enabled:     true,
		Description: "Writes one CSV row per processed workflow",
	}
}

func (r *CSV) Generate(_ context.Context, summary *models.Summary) (string, error) {
	var buf bytes.Buffer

	writer := csv.NewWriter(&buf)

	err := writer.Write(csvHeader)
	if err != nil {
		return "", fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, result := range summary.Workflows {
		err = writer.Write([]string{
			result.ID,
			result.Name,
			string(result.Status),
			strconv.FormatBool(result.Simulated),
			result.TargetID,
			result.Reason,
			strings.Join(result.Tags, ";"),
		})
		if err != nil {
			return "", fmt.Errorf("failed to write csv row for %s: %w", result.ID, err)
		}
	}

	writer.Flush()

	err = writer.Error()
	if err != nil {
		return "", fmt.Errorf("failed to flush csv: %w", err)
	}

	return writeFile(r.dir, fileName(summary, "csv"), buf.Bytes())
}
