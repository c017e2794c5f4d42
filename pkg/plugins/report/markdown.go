package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/dukex/flowtransfer/pkg/models"
	"github.com/dukex/flowtransfer/pkg/protocol"
)

var markdownTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"cell": markdownCell,
	"time": func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
	"rate": func(rate float64) string { return fmt.Sprintf("%.1f%%", rate) },
}).Parse(`# Workflow Transfer Report

{{ if .DryRun }}> Dry run: no workflow was written to the target.
{{ end }}{{ if .Cancelled }}> The run was cancelled before every workflow was processed.
{{ end }}
| Metric | Value |
|---|---|
| Run | {{ .RunID }} |
| Started | {{ time .StartTime }} |
| Finished | {{ time .EndTime }} |
| Duration | {{ .Duration }} |
| Total | {{ .Total }} |
| Processed | {{ .Processed }} |
| Transferred | {{ .Transferred }} |
| Skipped | {{ .Skipped }} |
| Failed | {{ .Failed }} |
| Success rate | {{ rate .SuccessRate }} |
{{ if .Workflows }}
## Workflows

| ID | Name | Status | Target ID | Reason |
|---|---|---|---|---|
{{ range .Workflows }}| {{ cell .ID }} | {{ cell .Name }} | {{ .Status }} | {{ cell .TargetID }} | {{ cell .Reason }} |
{{ end }}{{ end }}`))

// Markdown writes a human readable summary with a table of workflows.
type Markdown struct {
	dir string
}

var _ protocol.Reporter = (*Markdown)(nil)

func NewMarkdown(dir string) *Markdown {
	return &Markdown{dir: dir}
}

func (r *Markdown) Info() protocol.PluginInfo {
	return protocol.PluginInfo{
		Name:        MarkdownName,
		Version:     version,
		Type:        protocol.PluginTypeReporter,
		Enabled:     true,
		Description: "Writes a Markdown transfer report",
	}
}

func (r *Markdown) Generate(_ context.Context, summary *models.Summary) (string, error) {
	var buf bytes.Buffer

	err := markdownTemplate.Execute(&buf, summary)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown report: %w", err)
	}

	return writeFile(r.dir, fileName(summary, "md"), buf.Bytes())
}

func markdownCell(value string) string {
	value = strings.ReplaceAll(value, "|", `\|`)

	return strings.ReplaceAll(value, "\n", " ")
}
