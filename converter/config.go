package converter

import (
	"bytes"
	"io"
	"os"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/gomlx/nnconverter/devices"
	"github.com/gomlx/nnconverter/internal/fsutil"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds the parameters of a conversion that are fixed when the converter is built for a
// model: they are baked into the binary at build time, and can be overridden with a YAML file.
type Config struct {
	// Name of the converted model: the subgraph descriptor is written as "<Name>.json".
	Name string `yaml:"name"`

	// Ocloc is the path to the ahead-of-time OpenCL compiler.
	Ocloc string `yaml:"ocloc"`

	// Models lists either the topology and weights files of the model (OpenVINO IR: ".xml" and ".bin"),
	// or a single self-contained model file (ONNX).
	Models []string `yaml:"models"`

	// Device is the default target device, used if none is given on the command line.
	Device string `yaml:"device"`

	// Dumper and Checker are the paths to the graph dumper and kernel checker programs.
	Dumper  string `yaml:"dumper"`
	Checker string `yaml:"checker"`

	// ToolTimeout limits the time of each execution of an external program. 0 means no limit.
	ToolTimeout time.Duration `yaml:"tool_timeout"`
}

// DefaultConfig returns the configuration defaults: only the paths of the external programs and the
// device are set.
func DefaultConfig() Config {
	config := Config{
		Ocloc:   "ocloc",
		Device:  devices.DeviceTGLLP.String(),
		Dumper:  "tools/ov_graph_dumper",
		Checker: "tools/ov_graph_check",
	}
	if runtime.GOOS == "windows" {
		config.Dumper += ".exe"
		config.Checker += ".exe"
	}
	return config
}

// LoadConfig reads the YAML file in filePath, overriding the values in base with the ones
// set in the file. Unknown fields are an error.
func LoadConfig(filePath string, base Config) (Config, error) {
	filePath, err := fsutil.ReplaceTildeInDir(filePath)
	if err != nil {
		return base, err
	}
	contents, err := os.ReadFile(filePath)
	if err != nil {
		return base, errors.Wrapf(err, "failed to read configuration")
	}
	config := base
	decoder := yaml.NewDecoder(bytes.NewReader(contents))
	decoder.KnownFields(true)
	if err = decoder.Decode(&config); err != nil && err != io.EOF {
		return base, errors.Wrapf(err, "failed to parse configuration file %s", filePath)
	}
	for _, p := range []*string{&config.Ocloc, &config.Dumper, &config.Checker} {
		if *p, err = fsutil.ReplaceTildeInDir(*p); err != nil {
			return base, err
		}
	}
	config.Models = slices.Clone(config.Models)
	for ii := range config.Models {
		if config.Models[ii], err = fsutil.ReplaceTildeInDir(config.Models[ii]); err != nil {
			return base, err
		}
	}
	return config, nil
}

// Validate checks that all required values are set.
//
// Device is not checked here: it is only a default, validated when no device is given on the
// command line.
func (c *Config) Validate() error {
	if c.Name == "" {
		return errors.New("configuration has no model name")
	}
	if c.Ocloc == "" || c.Dumper == "" || c.Checker == "" {
		return errors.Errorf("configuration is missing the path to ocloc (%q), dumper (%q) or checker (%q)",
			c.Ocloc, c.Dumper, c.Checker)
	}
	if _, err := NewModel(c.Models); err != nil {
		return err
	}
	if c.ToolTimeout < 0 {
		return errors.Errorf("configuration has negative tool_timeout %s", c.ToolTimeout)
	}
	return nil
}

// SplitList splits a comma separated list, trimming spaces and dropping empty elements.
// It is used for lists baked at build time as a single string.
func SplitList(list string) []string {
	var values []string
	for _, value := range strings.Split(list, ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			values = append(values, value)
		}
	}
	return values
}
