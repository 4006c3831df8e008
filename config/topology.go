// Package config loads the core's execution topology from a YAML or JSON
// file, selected by extension.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Topology declares how many execute pipes of which kind exist and which
// issue queues may target them.
type Topology struct {
	ExecutionTopology string `yaml:"execution_topology" json:"execution_topology"`

	// Pipelines is an array of arrays of pipe tags per execute-unit
	// index, e.g. [["INT","BR"], ["MUL"], ["LSU"]].
	Pipelines [][]string `yaml:"pipelines" json:"pipelines"`

	// IssueQueueToPipeMap maps an issue queue name to the pipe tags it
	// may issue to.
	IssueQueueToPipeMap map[string][]string `yaml:"issue_queue_to_pipe_map" json:"issue_queue_to_pipe_map"`

	// ExePipeRename and IssueQueueRename are optional display-name
	// overrides, used only for trace/stats labeling.
	ExePipeRename    map[string]string `yaml:"exe_pipe_rename,omitempty" json:"exe_pipe_rename,omitempty"`
	IssueQueueRename map[string]string `yaml:"issue_queue_rename,omitempty" json:"issue_queue_rename,omitempty"`

	IssueQueueSize int `yaml:"issue_queue_size" json:"issue_queue_size"`
	ROBSize        int `yaml:"rob_size" json:"rob_size"`
	NumToDispatch  int `yaml:"num_to_dispatch" json:"num_to_dispatch"`
	NumToRetire    int `yaml:"num_to_retire" json:"num_to_retire"`

	NumPhysRegsInt    int `yaml:"num_phys_regs_int" json:"num_phys_regs_int"`
	NumPhysRegsFloat  int `yaml:"num_phys_regs_float" json:"num_phys_regs_float"`
	NumPhysRegsVector int `yaml:"num_phys_regs_vector" json:"num_phys_regs_vector"`

	// L1D* declare the scalar/vector load-store units' shared L1 data
	// cache. See timing/cache.Config for field meaning.
	L1DSizeBytes      int    `yaml:"l1d_size_bytes" json:"l1d_size_bytes"`
	L1DAssociativity  int    `yaml:"l1d_associativity" json:"l1d_associativity"`
	L1DBlockSizeBytes int    `yaml:"l1d_block_size_bytes" json:"l1d_block_size_bytes"`
	L1DHitLatency     uint64 `yaml:"l1d_hit_latency" json:"l1d_hit_latency"`
	L1DMissLatency    uint64 `yaml:"l1d_miss_latency" json:"l1d_miss_latency"`
}

// Default returns a single-cluster topology sized for a modest
// superscalar core: one INT/BR pipe, one MUL/DIV pipe, one LSU pipe, one
// vector pipe (which also resolves vset instructions), each served by its
// own issue queue.
func Default() *Topology {
	return &Topology{
		ExecutionTopology: "default",
		Pipelines: [][]string{
			{"INT", "BR"},
			{"MUL", "DIV"},
			{"LSU"},
			{"VINT", "VMUL", "VSET"},
		},
		IssueQueueToPipeMap: map[string][]string{
			"iq_int": {"INT", "BR"},
			"iq_mul": {"MUL", "DIV"},
			"iq_lsu": {"LSU"},
			"iq_vec": {"VINT", "VMUL", "VSET"},
		},
		IssueQueueSize:    16,
		ROBSize:           128,
		NumToDispatch:     4,
		NumToRetire:       4,
		NumPhysRegsInt:    128,
		NumPhysRegsFloat:  128,
		NumPhysRegsVector: 64,
		L1DSizeBytes:      32 * 1024,
		L1DAssociativity:  8,
		L1DBlockSizeBytes: 64,
		L1DHitLatency:     3,
		L1DMissLatency:    10,
	}
}

// Load reads a Topology from path, dispatching by file extension (.yaml,
// .yml, or .json).
func Load(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	t := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, t); err != nil {
			return nil, fmt.Errorf("config: parse yaml topology %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, t); err != nil {
			return nil, fmt.Errorf("config: parse json topology %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("config: unrecognized topology file extension: %s", path)
	}
	return t, nil
}

// Save writes t to path as YAML.
func (t *Topology) Save(path string) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("config: marshal topology: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
