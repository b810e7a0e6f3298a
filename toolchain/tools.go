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

package toolchain

import (
	"context"
	"path/filepath"
	"time"

	"github.com/gomlx/nnconverter/devices"
	"github.com/pkg/errors"
)

// Dumper runs the graph dumper, which loads a model and writes the sources of its kernels,
// plus a kernel dump of the graph, into a working directory.
type Dumper struct {
	Path    string
	Timeout time.Duration
}

// Dump runs `<dumper> <topology> <weights> <workDir>`.
// A non-zero exit code is returned as an *ExitError.
func (d *Dumper) Dump(ctx context.Context, topology, weights, workDir string) error {
	cmd := &Command{Path: d.Path, Args: []string{topology, weights, workDir}, Timeout: d.Timeout}
	result, err := cmd.Run(ctx)
	if err != nil {
		return errors.WithMessage(err, "graph dump failed")
	}
	if err = result.Err(); err != nil {
		return errors.WithMessage(err, "graph dump failed")
	}
	return nil
}

// Checker runs the kernel checker, which executes a subgraph using only the kernels found
// in a kernel cache directory.
//
// The checker exits with 0 if the subgraph ran with the given kernels, and non-zero if it
// didn't -- the checker's verdict is in Result.ExitCode.
type Checker struct {
	Path    string
	Timeout time.Duration
}

// Check runs `<checker> <subgraph> <cacheDir> <shapes>`.
// An error is only returned if the checker could not be run.
func (c *Checker) Check(ctx context.Context, subgraph, cacheDir, shapes string) (*Result, error) {
	cmd := &Command{Path: c.Path, Args: []string{subgraph, cacheDir, shapes}, Timeout: c.Timeout}
	return cmd.Run(ctx)
}

// Ocloc drives the ahead-of-time OpenCL compiler for one target device and format.
type Ocloc struct {
	Path    string
	Device  devices.Device
	Format  devices.Format
	Timeout time.Duration
}

// NewOcloc returns an Ocloc for the compiler in path. If path is not a bare program name
// (to be searched in $PATH) it is made absolute.
func NewOcloc(path string, device devices.Device, format devices.Format) (*Ocloc, error) {
	if !device.IsADevice() {
		return nil, errors.Errorf("invalid device %s, valid values are %v", device, devices.DeviceStrings())
	}
	if filepath.Base(path) != path {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to resolve ocloc path %q", path)
		}
		path = absPath
	}
	return &Ocloc{Path: path, Device: device, Format: format}, nil
}

// Command returns the compiler command for one kernel source.
//
// Outputs are named after the source stem (-output_no_suffix) and warnings are suppressed.
func (o *Ocloc) Command(source, outDir string) *Command {
	args := []string{
		"-file", source,
		"-device", o.Device.String(),
		"-out_dir", outDir,
		"-output_no_suffix",
		"-options", "-w",
	}
	args = append(args, o.Format.CompilerArgs()...)
	return &Command{Path: o.Path, Args: args, Timeout: o.Timeout}
}

// Compile runs the compiler on source, writing outputs to outDir.
// A non-zero exit code is returned as an *ExitError.
func (o *Ocloc) Compile(ctx context.Context, source, outDir string) error {
	result, err := o.Command(source, outDir).Run(ctx)
	if err != nil {
		return err
	}
	if err = result.Err(); err != nil {
		return errors.WithMessagef(err, "ocloc compile error for %s", filepath.Base(source))
	}
	return nil
}
