// Package dedup provides the built-in deduplicators.
package dedup

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dukex/flowtransfer/pkg/models"
	"github.com/dukex/flowtransfer/pkg/protocol"
)

const (
	StandardName = "standard-deduplicator"
	StrictName   = "strict-deduplicator"

	version = "1.0.0"
)

// reason keeps the explanation of the last positive match.
type reason struct {
	mu    sync.Mutex
	value string
}

func (r *reason) set(value string) {
	r.mu.Lock()
	r.value = value
	r.mu.Unlock()
}

func (r *reason) get() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.value
}

// Standard treats two workflows as the same when their names match, ignoring case and
// surrounding whitespace.
type Standard struct {
	reason reason
}

var _ protocol.Deduplicator = (*Standard)(nil)

func NewStandard() *Standard {
	return &Standard{}
}

func (d *Standard) Info() protocol.PluginInfo {
	return protocol.PluginInfo{
		Name:        StandardName,
		Version:     version,
		Type:        protocol.PluginTypeDeduplicator,
		Enabled:     true,
		Description: "Skips workflows whose name already exists on the target",
	}
}

func (d *Standard) IsDuplicate(_ context.Context, workflow *models.Workflow, targets []*models.Workflow) (bool, error) {
	match := findByName(workflow, targets)
	if match == nil {
		return false, nil
	}

	d.reason.set(fmt.Sprintf("workflow %q already exists on target (id %s)", match.Name, match.ID))

	return true, nil
}

func (d *Standard) Reason() string {
	return d.reason.get()
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func findByName(workflow *models.Workflow, targets []*models.Workflow) *models.Workflow {
	name := normalizeName(workflow.Name)
	if name == "" {
		return nil
	}

	for _, target := range targets {
		if target != nil && normalizeName(target.Name) == name {
			return target
		}
	}

	return nil
}
