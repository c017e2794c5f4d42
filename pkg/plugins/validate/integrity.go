// Package validate provides the built-in workflow validators.
package validate

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/dukex/flowtransfer/pkg/models"
	"github.com/dukex/flowtransfer/pkg/protocol"
)

const (
	IntegrityName = "integrity-validator"
	SchemaName    = "schema-validator"

	version = "1.0.0"
)

// Integrity checks the structural soundness of a workflow graph.
type Integrity struct{}

var _ protocol.Validator = (*Integrity)(nil)

func NewIntegrity() *Integrity {
	return &Integrity{}
}

func (v *Integrity) Info() protocol.PluginInfo {
	return protocol.PluginInfo{
		Name:        IntegrityName,
		Version:     version,
		Type:        protocol.PluginTypeValidator,
		Enabled:     true,
		Description: "Checks names, nodes and connections of a workflow",
	}
}

func (v *Integrity) Validate(_ context.Context, workflow *models.Workflow) protocol.ValidationOutcome {
	var errs, warnings []string

	if strings.TrimSpace(workflow.Name) == "" {
		errs = append(errs, "workflow name is required")
	}

	if len(workflow.Nodes) == 0 {
		errs = append(errs, "workflow has no nodes")

		return protocol.NewValidationOutcome(errs, warnings)
	}

	seen := make(map[string]bool, len(workflow.Nodes))
	hasTrigger := false

	for i, node := range workflow.Nodes {
		if node == nil {
			errs = append(errs, fmt.Sprintf("node #%d is empty", i))

			continue
		}

		switch {
		case node.Name == "":
			errs = append(errs, fmt.Sprintf("node #%d has no name", i))
		case seen[node.Name]:
			errs = append(errs, fmt.Sprintf("duplicate node name %q", node.Name))
		default:
			seen[node.Name] = true
		}

		if node.Type == "" {
			errs = append(errs, fmt.Sprintf("node %q has no type", node.Name))
		}

		if node.Disabled {
			warnings = append(warnings, fmt.Sprintf("node %q is disabled", node.Name))
		}

		if node.IsTrigger() {
			hasTrigger = true
		}
	}

	errs = append(errs, checkConnections(workflow.Connections, seen)...)

	if !hasTrigger {
		warnings = append(warnings, "workflow has no trigger node")
	}

	if len(workflow.Nodes) > 1 && len(workflow.Connections) == 0 {
		warnings = append(warnings, "workflow nodes are not connected")
	}

	return protocol.NewValidationOutcome(errs, warnings)
}

// checkConnections walks {source: {output: [[{node: target}]]}} in key order and reports
// every endpoint that does not name a node of the workflow.
func checkConnections(connections map[string]any, nodes map[string]bool) []string {
	var errs []string

	for _, source := range slices.Sorted(maps.Keys(connections)) {
		outputs := connections[source]

		if !nodes[source] {
			errs = append(errs, fmt.Sprintf("connection source %q does not match any node", source))
		}

		byType, ok := outputs.(map[string]any)
		if !ok {
			errs = append(errs, fmt.Sprintf("connections of %q are malformed", source))

			continue
		}

		for _, output := range slices.Sorted(maps.Keys(byType)) {
			slots := byType[output]

			slotList, ok := slots.([]any)
			if !ok {
				errs = append(errs, fmt.Sprintf("connections of %q are malformed", source))

				continue
			}

			for _, slot := range slotList {
				targets, _ := slot.([]any)
				for _, target := range targets {
					endpoint, _ := target.(map[string]any)
					name, _ := endpoint["node"].(string)

					if !nodes[name] {
						errs = append(errs, fmt.Sprintf("connection from %q targets unknown node %q", source, name))
					}
				}
			}
		}
	}

	return errs
}
