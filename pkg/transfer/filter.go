package transfer

import (
	"slices"

	"github.com/dukex/flowtransfer/pkg/models"
)

// Match reports whether workflow passes every configured category.
func (f Filters) Match(workflow *models.Workflow) bool {
	if workflow == nil {
		return false
	}

	if len(f.WorkflowIDs) > 0 && !slices.Contains(f.WorkflowIDs, workflow.ID) {
		return false
	}

	if len(f.WorkflowNames) > 0 && !slices.Contains(f.WorkflowNames, workflow.Name) {
		return false
	}

	if len(f.Tags) > 0 && !slices.ContainsFunc(f.Tags, workflow.HasTag) {
		return false
	}

	if slices.ContainsFunc(f.ExcludeTags, workflow.HasTag) {
		return false
	}

	return true
}

// Apply returns the matching workflows in their original order.
func (f Filters) Apply(workflows []*models.Workflow) []*models.Workflow {
	matched := make([]*models.Workflow, 0, len(workflows))

	for _, workflow := range workflows {
		if f.Match(workflow) {
			matched = append(matched, workflow)
		}
	}

	return matched
}

// IsEmpty reports whether no category is configured.
func (f Filters) IsEmpty() bool {
	return len(f.WorkflowIDs) == 0 && len(f.WorkflowNames) == 0 && len(f.Tags) == 0 && len(f.ExcludeTags) == 0
}
