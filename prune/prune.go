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

// Package prune selects the mandatory kernels of a model: the ones without which the model's
// subgraph can't be executed.
//
// Not all dumped kernels are mandatory, some are only used during graph optimization. Each kernel
// is tested by disabling it and running the checker on the subgraph: if the checker still succeeds
// the kernel is discarded, otherwise it is restored and published to the output directory.
package prune

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/gomlx/nnconverter/internal/fsutil"
	"github.com/gomlx/nnconverter/kernels"
	"github.com/gomlx/nnconverter/toolchain"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Checker runs a subgraph using only the kernels in cacheDir.
//
// Notice the polarity: a successful Result (exit code 0) means the subgraph ran fine, so the
// kernel being tested is not needed. A non-zero exit code means the kernel is mandatory.
// An error means the checker couldn't run at all, and no verdict is available.
type Checker interface {
	Check(ctx context.Context, subgraph, cacheDir, shapes string) (*toolchain.Result, error)
}

var _ Checker = (*toolchain.Checker)(nil)

// Pruner tests kernels against one subgraph and publishes the mandatory ones to OutDir.
type Pruner struct {
	Checker Checker

	// Subgraph is the path of the subgraph descriptor.
	Subgraph string

	// Shapes is the path of the input shapes of the subgraph.
	Shapes string

	// OutDir where mandatory kernels are copied.
	OutDir string
}

// Report of a pruning pass.
type Report struct {
	// Kept lists the file names of the mandatory kernels, copied to the output directory.
	Kept []string

	// Removed lists the file names of the kernels that were deleted.
	Removed []string
}

// Prune tests every artifact in cacheDir with the given encoding (other files are ignored),
// deleting the ones that are not needed, and copying the mandatory ones to OutDir.
//
// If the checker fails to run, pruning is aborted: the artifact being tested is restored and
// not published, and the remaining artifacts are left untouched. The partial Report is returned
// along with the error.
func (p *Pruner) Prune(ctx context.Context, cacheDir string, encoding kernels.Encoding) (*Report, error) {
	artifacts, err := kernels.List(cacheDir, encoding)
	if err != nil {
		return nil, err
	}
	return p.pruneArtifacts(ctx, artifacts)
}

func (p *Pruner) pruneArtifacts(ctx context.Context, artifacts []*kernels.Artifact) (*Report, error) {
	report := &Report{}
	for _, artifact := range artifacts {
		mandatory, err := p.isMandatory(ctx, artifact)
		if err != nil {
			return report, err
		}
		if !mandatory {
			if err = artifact.Remove(); err != nil {
				return report, err
			}
			report.Removed = append(report.Removed, artifact.FileName())
			continue
		}
		if err = artifact.Restore(); err != nil {
			return report, err
		}
		klog.Infof("%s is mandatory, copy %s to %s", artifact.Kernel, artifact.FileName(), p.OutDir)
		if err = fsutil.CopyFile(artifact.Path(), filepath.Join(p.OutDir, artifact.FileName())); err != nil {
			return report, err
		}
		report.Kept = append(report.Kept, artifact.FileName())
	}
	klog.V(1).Infof("pruned %d kernel(s), %d mandatory", len(report.Removed), len(report.Kept))
	return report, nil
}

// isMandatory disables the artifact and runs the checker. On success the artifact is left Disabled,
// for the caller to either remove or restore it.
// On error the artifact is restored, so it is never left in an undecided state.
func (p *Pruner) isMandatory(ctx context.Context, artifact *kernels.Artifact) (bool, error) {
	if err := artifact.Disable(); err != nil {
		return false, err
	}
	klog.Infof("check %s", artifact.FileName())
	result, err := p.Checker.Check(ctx, p.Subgraph, artifact.Dir, p.Shapes)
	if err != nil {
		fsutil.ReportError(artifact.Restore())
		return false, errors.WithMessagef(err, "failed to check whether %s is mandatory, pruning aborted",
			artifact.FileName())
	}
	if result.Success() {
		return false, nil
	}
	if out := strings.TrimSpace(string(result.Stdout)); out != "" {
		klog.Infof("checker output without %s:\n%s", artifact.FileName(), out)
	}
	return true, nil
}
