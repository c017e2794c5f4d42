// Package models defines the workflow records moved between instances and the run bookkeeping around them.
package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/mohae/deepcopy"
)

// Workflow is a workflow definition as exposed by the instance REST API.
// Its content is carried as-is between SOURCE and TARGET.
type Workflow struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"`
	Active      bool           `json:"active"`
	Nodes       []*Node        `json:"nodes"`
	Connections map[string]any `json:"connections"`
	Settings    map[string]any `json:"settings,omitempty"`
	StaticData  any            `json:"staticData,omitempty"`
	PinData     map[string]any `json:"pinData,omitempty"`
	Tags        []Tag          `json:"tags,omitempty"`
	CreatedAt   *time.Time     `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time     `json:"updatedAt,omitempty"`
}

// Node is a single step of a workflow.
type Node struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	TypeVersion float64        `json:"typeVersion,omitempty"`
	Position    []float64      `json:"position,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Credentials map[string]any `json:"credentials,omitempty"`
	Disabled    bool           `json:"disabled,omitempty"`
}

// Tag labels a workflow. Instances return tags either as plain strings or as {id, name} objects.
type Tag struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

func (t *Tag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &t.Name)
	}

	type plain Tag

	var decoded plain

	err := json.Unmarshal(data, &decoded)
	if err != nil {
		return err
	}

	*t = Tag(decoded)

	return nil
}

// TagNames returns the tag names in declaration order.
func (w *Workflow) TagNames() []string {
	names := make([]string, 0, len(w.Tags))
	for _, tag := range w.Tags {
		names = append(names, tag.Name)
	}

	return names
}

// HasTag reports whether the workflow carries a tag with exactly this name.
func (w *Workflow) HasTag(name string) bool {
	for _, tag := range w.Tags {
		if tag.Name == name {
			return true
		}
	}

	return false
}

// HasCredentials reports whether any node references a non-empty credentials block.
func (w *Workflow) HasCredentials() bool {
	for _, node := range w.Nodes {
		if node != nil && len(node.Credentials) > 0 {
			return true
		}
	}

	return false
}

// NodeByName returns the node with the given name or nil.
func (w *Workflow) NodeByName(name string) *Node {
	for _, node := range w.Nodes {
		if node != nil && node.Name == name {
			return node
		}
	}

	return nil
}

// IsTrigger reports whether the node starts a workflow run.
func (n *Node) IsTrigger() bool {
	lower := strings.ToLower(n.Type)

	return strings.HasSuffix(lower, "trigger") || strings.Contains(lower, "webhook")
}

// Clone returns a deep copy so callers can annotate or mutate it without touching the listing it came from.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}

	clone, ok := deepcopy.Copy(w).(*Workflow)
	if !ok {
		return nil
	}

	return clone
}
