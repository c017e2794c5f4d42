package report

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dukex/flowtransfer/pkg/models"
	"github.com/dukex/flowtransfer/pkg/protocol"
)

// JSON writes the summary as an indented JSON document.
type JSON struct {
	dir string
}

var _ protocol.Reporter = (*JSON)(nil)

func NewJSON(dir string) *JSON {
	return &JSON{dir: dir}
}

func (r *JSON) Info() protocol.PluginInfo {
	return protocol.PluginInfo{
		Name:        JSONName,
		Version:     version,
		Type:        protocol.PluginTypeReporter,
		Enabled:     true,
		Description: "Writes the run summary as JSON",
	}
}

func (r *JSON) Generate(_ context.Context, summary *models.Summary) (string, error) {
	payload, err := json.MarshalIndent(struct {
		*models.Summary

		DurationMS  int64   `json:"durationMs"`
		SuccessRate float64 `json:"successRate"`
	}{summary, summary.Duration.Milliseconds(), summary.SuccessRate()}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode summary: %w", err)
	}

	return writeFile(r.dir, fileName(summary, "json"), payload)
}
