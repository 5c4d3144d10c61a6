package dataflow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// dynamicNodes are the four nodes the dispatcher supplies itself; the
// dataflow spec YAML only needs to name the external ASR/LLM/TTS nodes
// (spec.md §6.1).
var dynamicNodes = map[string]bool{
	"mofa-audio-player": true,
	"mofa-mic-input":    true,
	"mofa-prompt-input": true,
	"mofa-system-log":   true,
}

// NodeSpec describes one node in the dataflow graph.
type NodeSpec struct {
	Name    string            `yaml:"name"`
	Inputs  []string          `yaml:"inputs"`
	Outputs []string          `yaml:"outputs"`
	Env     map[string]string `yaml:"env"`
}

// Spec is the parsed dataflow specification YAML (spec.md §6.1).
type Spec struct {
	Name  string     `yaml:"name"`
	Nodes []NodeSpec `yaml:"nodes"`
}

// LoadSpec reads and parses the dataflow specification at path.
func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataflow: read spec %q: %w", path, err)
	}
	var s Spec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("dataflow: parse spec %q: %w", path, err)
	}
	return &s, nil
}

// IsDynamicNode reports whether name is one of the four nodes the
// dispatcher supplies itself rather than expecting from the graph.
func IsDynamicNode(name string) bool {
	return dynamicNodes[name]
}

// ExternalNodes returns the nodes in s that are not dispatcher-supplied
// dynamic nodes — the ASR/LLM/TTS nodes the dispatcher merely launches
// alongside its own bridges.
func (s *Spec) ExternalNodes() []NodeSpec {
	out := make([]NodeSpec, 0, len(s.Nodes))
	for _, n := range s.Nodes {
		if !IsDynamicNode(n.Name) {
			out = append(out, n)
		}
	}
	return out
}
