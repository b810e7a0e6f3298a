/*
 *	Copyright 2024 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// Package converter runs the conversion of a neural-network model into the set of GPU kernels
// needed to execute it on a target device:
//
//  1. The graph dumper loads the model and dumps the sources of its kernels and a kernel dump of its graph.
//  2. The kernel sources are recompiled with ocloc for the target device.
//  3. The kernel dump is converted to a subgraph descriptor, written to the output directory.
//  4. Each compiled kernel is tested with the kernel checker, and only the mandatory ones are
//     copied to the output directory.
//
// All the work is done in a temporary directory, removed at the end unless Options.KeepTemp is set.
package converter

import (
	"context"
	"os"
	"path/filepath"

	"github.com/gomlx/nnconverter/compile"
	"github.com/gomlx/nnconverter/devices"
	"github.com/gomlx/nnconverter/internal/fsutil"
	"github.com/gomlx/nnconverter/kernels"
	"github.com/gomlx/nnconverter/prune"
	"github.com/gomlx/nnconverter/subgraph"
	"github.com/gomlx/nnconverter/toolchain"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Options of one conversion, usually given on the command line.
type Options struct {
	Device devices.Device

	// DisableZeBin and ZeBin select the binary format, see devices.ResolveFormat.
	DisableZeBin, ZeBin bool

	// SPIRV publishes the kernels in SPIR-V (".spv") instead of binary (".cl_cache").
	SPIRV bool

	// OutDir where the subgraph descriptor and the kernels are written. Created if missing.
	OutDir string

	// KeepTemp keeps the temporary directory, for inspection.
	KeepTemp bool
}

// Converter of one model. Create it with New.
type Converter struct {
	name     string
	model    Model
	options  Options
	encoding kernels.Encoding
	dumper   *toolchain.Dumper
	checker  *toolchain.Checker
	ocloc    *toolchain.Ocloc
}

// Result of a conversion.
type Result struct {
	// Subgraph is the path of the subgraph descriptor.
	Subgraph string

	// Kernels are the paths of the published kernels.
	Kernels []string

	// TempDir is the temporary directory used, only set if it was kept.
	TempDir string
}

// New validates the configuration and the options and returns a Converter.
// It doesn't run any external program.
func New(config Config, options Options) (*Converter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	model, err := NewModel(config.Models)
	if err != nil {
		return nil, err
	}
	if options.OutDir == "" {
		options.OutDir = "."
	}
	options.OutDir, err = fsutil.ReplaceTildeInDir(options.OutDir)
	if err != nil {
		return nil, err
	}
	options.OutDir, err = filepath.Abs(options.OutDir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve output directory")
	}
	ocloc, err := toolchain.NewOcloc(config.Ocloc, options.Device, devices.ResolveFormat(options.DisableZeBin, options.ZeBin))
	if err != nil {
		return nil, err
	}
	ocloc.Timeout = config.ToolTimeout
	return &Converter{
		name:     config.Name,
		model:    model,
		options:  options,
		encoding: kernels.EncodingFor(options.SPIRV),
		dumper:   &toolchain.Dumper{Path: config.Dumper, Timeout: config.ToolTimeout},
		checker:  &toolchain.Checker{Path: config.Checker, Timeout: config.ToolTimeout},
		ocloc:    ocloc,
	}, nil
}

// Ocloc returns the path of the compiler that will be used.
func (c *Converter) Ocloc() string {
	return c.ocloc.Path
}

// OutDir returns the absolute path of the output directory.
func (c *Converter) OutDir() string {
	return c.options.OutDir
}

// Run the conversion. It stops at the first error.
//
// The model files are checked before anything else is done: if they are missing an error wrapping
// ErrModelNotFound is returned.
func (c *Converter) Run(ctx context.Context) (result *Result, err error) {
	if err = c.model.Check(); err != nil {
		return nil, err
	}
	if err = os.MkdirAll(c.options.OutDir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create output directory")
	}
	tmpDir, err := os.MkdirTemp("", "nn_converter_")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create temporary directory")
	}
	result = &Result{}
	defer func() {
		if c.options.KeepTemp {
			klog.Infof("Temporary files are kept at %s", tmpDir)
			if result != nil {
				result.TempDir = tmpDir
			}
			return
		}
		fsutil.ReportError(os.RemoveAll(tmpDir))
	}()

	workDir := filepath.Join(tmpDir, "ov_dump")
	if err = os.MkdirAll(workDir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create working directory")
	}
	klog.Infof("Dumping OpenVINO graph...")
	if err = c.dumper.Dump(ctx, c.model.Topology, c.model.Weights, workDir); err != nil {
		return nil, err
	}

	klog.Infof("Compiling sources for %s (format %s)...", c.ocloc.Device, c.ocloc.Format)
	kernelsDir, err := compile.Recompile(ctx, c.ocloc, workDir, c.encoding)
	if err != nil {
		return nil, err
	}

	klog.Infof("Copying kernels...")
	files, err := subgraph.Convert(workDir, c.options.OutDir, c.name)
	if err != nil {
		return nil, err
	}
	result.Subgraph = files.Subgraph
	pruner := &prune.Pruner{
		Checker:  c.checker,
		Subgraph: files.Subgraph,
		Shapes:   files.Shapes,
		OutDir:   c.options.OutDir,
	}
	report, err := pruner.Prune(ctx, kernelsDir, c.encoding)
	if err != nil {
		return nil, err
	}
	for _, name := range report.Kept {
		result.Kernels = append(result.Kernels, filepath.Join(c.options.OutDir, name))
	}
	klog.Infof("Conversion done: %d mandatory kernel(s) out of %d written to %s",
		len(report.Kept), len(report.Kept)+len(report.Removed), c.options.OutDir)
	return result, nil
}
