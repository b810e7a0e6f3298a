// Package subgraph converts the kernel dump written by the graph dumper into the subgraph
// descriptor consumed by the kernel checker (and shipped with the kernels), plus the file with
// the shapes of the subgraph inputs.
package subgraph

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DumpFileName is the name of the kernel dump written by the graph dumper in its working directory.
const DumpFileName = "intel_gpu_kernel_dump.json"

// Dump is the kernel dump of a graph.
type Dump struct {
	Nodes  []Node  `json:"nodes"`
	Inputs []Input `json:"inputs"`
}

// Node of the dumped graph.
type Node struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	// Kernel executing the node, if any.
	Kernel string `json:"kernel,omitempty"`

	// Inputs are the IDs of other nodes or of graph inputs.
	Inputs []string `json:"inputs,omitempty"`

	// Payload holds the base64 encoded node parameters (e.g. constant weights).
	Payload string `json:"payload,omitempty"`
}

// Input of the graph. Dynamic dimensions of its shape are negative.
type Input struct {
	Name  string `json:"name"`
	DType string `json:"dtype"`
	Shape []int  `json:"shape"`
}

// Descriptor is the subgraph descriptor: the dumped graph under a name.
type Descriptor struct {
	Name string `json:"name"`
	Dump
}

// Files written by Convert.
type Files struct {
	// Subgraph is the path of the subgraph descriptor.
	Subgraph string

	// Shapes is the path of the input shapes.
	Shapes string
}

// Load reads and validates the kernel dump from the dumper's working directory.
func Load(workDir string) (*Dump, error) {
	dumpPath := filepath.Join(workDir, DumpFileName)
	contents, err := os.ReadFile(dumpPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read kernel dump")
	}
	dump := &Dump{}
	if err = json.Unmarshal(contents, dump); err != nil {
		return nil, errors.Wrapf(err, "failed to parse kernel dump %s", dumpPath)
	}
	if err = dump.Validate(); err != nil {
		return nil, errors.WithMessagef(err, "invalid kernel dump %s", dumpPath)
	}
	return dump, nil
}

// Validate checks that node IDs are unique, that node inputs refer to known nodes or graph inputs,
// and that payloads are valid base64. Shapes are not checked: dynamic dimensions (negative values)
// are passed through to the checker as they are.
func (d *Dump) Validate() error {
	known := make(map[string]bool, len(d.Nodes)+len(d.Inputs))
	for _, input := range d.Inputs {
		if input.Name == "" {
			return errors.New("graph input with no name")
		}
		if known[input.Name] {
			return errors.Errorf("graph input %q defined more than once", input.Name)
		}
		known[input.Name] = true
	}
	for _, node := range d.Nodes {
		if node.ID == "" {
			return errors.Errorf("node of type %q with no id", node.Type)
		}
		if known[node.ID] {
			return errors.Errorf("node id %q defined more than once", node.ID)
		}
		known[node.ID] = true
	}
	for _, node := range d.Nodes {
		for _, input := range node.Inputs {
			if !known[input] {
				return errors.Errorf("node %q uses unknown input %q", node.ID, input)
			}
		}
		if node.Payload != "" {
			if _, err := base64.StdEncoding.DecodeString(node.Payload); err != nil {
				return errors.Wrapf(err, "node %q has an invalid payload", node.ID)
			}
		}
	}
	return nil
}

// Kernels returns the names of the kernels used by the graph, sorted and without repetitions.
func (d *Dump) Kernels() []string {
	var names []string
	for _, node := range d.Nodes {
		if node.Kernel != "" {
			names = append(names, node.Kernel)
		}
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// Shapes returns the shapes of the graph inputs, indexed by input name.
func (d *Dump) Shapes() map[string][]int {
	shapes := make(map[string][]int, len(d.Inputs))
	for _, input := range d.Inputs {
		shapes[input.Name] = input.Shape
	}
	return shapes
}

// Convert loads the kernel dump in workDir, and writes the subgraph descriptor to
// "<outDir>/<name>.json" and the input shapes to "<workDir>/<name>_shapes.json".
func Convert(workDir, outDir, name string) (*Files, error) {
	if name == "" {
		return nil, errors.New("subgraph name can't be empty")
	}
	dump, err := Load(workDir)
	if err != nil {
		return nil, err
	}
	files := &Files{
		Subgraph: filepath.Join(outDir, name+".json"),
		Shapes:   filepath.Join(workDir, name+"_shapes.json"),
	}
	if err = writeJSON(files.Subgraph, &Descriptor{Name: name, Dump: *dump}); err != nil {
		return nil, err
	}
	if err = writeJSON(files.Shapes, dump.Shapes()); err != nil {
		return nil, err
	}
	klog.V(1).Infof("subgraph %q: %d node(s), %d input(s), kernels %v", name, len(dump.Nodes), len(dump.Inputs), dump.Kernels())
	return files, nil
}

func writeJSON(filePath string, value any) error {
	contents, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s", filepath.Base(filePath))
	}
	if err = os.WriteFile(filePath, append(contents, '\n'), 0644); err != nil {
		return errors.Wrapf(err, "failed to write %s", filePath)
	}
	return nil
}
