package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/dukex/flowtransfer/pkg/models"
	"github.com/dukex/flowtransfer/pkg/protocol"
)

// Strict requires a name match and an identical structure: the same node names and types
// wired by the same connections. Parameters and positions are ignored.
type Strict struct {
	reason reason
}

var _ protocol.Deduplicator = (*Strict)(nil)

func NewStrict() *Strict {
	return &Strict{}
}

func (d *Strict) Info() protocol.PluginInfo {
	return protocol.PluginInfo{
		Name:        StrictName,
		Version:     version,
		Type:        protocol.PluginTypeDeduplicator,
		Enabled:     true,
		Description: "Skips workflows whose name and node structure already exist on the target",
	}
}

func (d *Strict) IsDuplicate(_ context.Context, workflow *models.Workflow, targets []*models.Workflow) (bool, error) {
	name := normalizeName(workflow.Name)
	if name == "" {
		return false, nil
	}

	fingerprint, err := Fingerprint(workflow)
	if err != nil {
		return false, err
	}

	for _, target := range targets {
		if target == nil || normalizeName(target.Name) != name {
			continue
		}

		targetFingerprint, err := Fingerprint(target)
		if err != nil {
			return false, err
		}

		if targetFingerprint == fingerprint {
			d.reason.set(fmt.Sprintf("workflow %q already exists on target with identical structure (id %s)", target.Name, target.ID))

			return true, nil
		}
	}

	return false, nil
}

func (d *Strict) Reason() string {
	return d.reason.get()
}

// Fingerprint hashes the node names, types and versions together with the connections.
func Fingerprint(workflow *models.Workflow) (string, error) {
	nodes := make([]string, 0, len(workflow.Nodes))
	for _, node := range workflow.Nodes {
		if node == nil {
			continue
		}

		nodes = append(nodes, node.Name+"|"+node.Type+"|"+strconv.FormatFloat(node.TypeVersion, 'f', -1, 64))
	}

	sort.Strings(nodes)

	connections := workflow.Connections
	if connections == nil {
		connections = map[string]any{}
	}

	// map keys are marshalled in sorted order, which keeps the encoding stable
	payload, err := json.Marshal(struct {
		Nodes       []string       `json:"nodes"`
		Connections map[string]any `json:"connections"`
	}{nodes, connections})
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint workflow %q: %w", workflow.Name, err)
	}

	sum := sha256.Sum256(payload)

	return hex.EncodeToString(sum[:]), nil
}
