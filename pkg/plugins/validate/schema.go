package validate

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/dukex/flowtransfer/pkg/models"
	"github.com/dukex/flowtransfer/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed workflow.schema.json
var workflowSchema []byte

// Schema validates workflows against a JSON schema.
type Schema struct {
	schema *gojsonschema.Schema
}

var _ protocol.Validator = (*Schema)(nil)

// NewSchema compiles the built-in workflow schema.
func NewSchema() (*Schema, error) {
	return NewSchemaFrom(workflowSchema)
}

// NewSchemaFrom compiles a custom JSON schema document.
func NewSchemaFrom(document []byte) (*Schema, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return nil, fmt.Errorf("invalid workflow schema: %w", err)
	}

	return &Schema{schema: schema}, nil
}

func (v *Schema) Info() protocol.PluginInfo {
	return protocol.PluginInfo{
		Name:        SchemaName,
		Version:     version,
		Type:        protocol.PluginTypeValidator,
		Enabled:     true,
		Description: "Validates workflows against a JSON schema",
	}
}

func (v *Schema) Validate(_ context.Context, workflow *models.Workflow) protocol.ValidationOutcome {
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(workflow))
	if err != nil {
		return protocol.NewValidationOutcome([]string{"schema validation failed: " + err.Error()}, nil)
	}

	if result.Valid() {
		return protocol.NewValidationOutcome(nil, nil)
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		errs = append(errs, resultErr.String())
	}

	return protocol.NewValidationOutcome(errs, nil)
}
