// Package compile recompiles the kernel sources dumped from a model for a target device,
// and normalizes the compiler outputs into a kernel cache directory.
package compile

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/gomlx/nnconverter/internal/fsutil"
	"github.com/gomlx/nnconverter/kernels"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Layout of the dumper's working directory.
const (
	// SourcesDir holds one OpenCL source ("<kernel>.cl") per kernel.
	SourcesDir = "cldnn_ov/cldnn_sources"

	// KernelsDir receives the compiled kernels. It is the kernel cache directory.
	KernelsDir = "cldnn_ov/cldnn_kernels_cc"
)

// Compiler compiles one kernel source into outDir, writing "<stem>.bin", and optionally
// "<stem>.spv" and "<stem>.gen". It is implemented by toolchain.Ocloc.
type Compiler interface {
	Compile(ctx context.Context, source, outDir string) error
}

// Recompile every source in workDir with compiler, and returns the kernel cache directory with
// one artifact per source, in the given encoding.
//
// The kernel cache directory is emptied first, so artifacts from previous runs (maybe from other
// compiler versions) are never mixed in. The first compilation failure aborts.
func Recompile(ctx context.Context, compiler Compiler, workDir string, encoding kernels.Encoding) (string, error) {
	sourcesDir := filepath.Join(workDir, SourcesDir)
	kernelsDir := filepath.Join(workDir, KernelsDir)
	if err := fsutil.ResetDir(kernelsDir); err != nil {
		return "", err
	}
	sources, err := fsutil.Glob(sourcesDir, kernels.SourceExt)
	if err != nil {
		return "", errors.WithMessage(err, "kernel sources not found, did the dump succeed?")
	}
	if len(sources) == 0 {
		klog.Warningf("no kernel sources (*%s) found in %s", kernels.SourceExt, sourcesDir)
	}
	for _, source := range sources {
		if err := compiler.Compile(ctx, source, kernelsDir); err != nil {
			return "", err
		}
		stem := strings.TrimSuffix(filepath.Base(source), kernels.SourceExt)
		if err := normalize(kernelsDir, stem, encoding); err != nil {
			return "", err
		}
	}
	klog.V(1).Infof("compiled %d kernel(s) to %s", len(sources), kernelsDir)
	return kernelsDir, nil
}

// normalize the outputs of one compilation so only "<stem><encoding.Ext()>" is left.
func normalize(dir, stem string, encoding kernels.Encoding) error {
	base := filepath.Join(dir, stem)

	// Some compiler versions (e.g. 2022WW42) don't generate the .gen file.
	if _, err := fsutil.RemoveIfExists(base + kernels.GenExt); err != nil {
		return err
	}

	binPath := base + kernels.BinaryExt
	spvPath := base + kernels.SPIRVExt
	switch encoding {
	case kernels.SPIRV:
		if err := os.Remove(binPath); err != nil {
			return missingOutput(err, stem, binPath)
		}
		found, err := fsutil.Exists(spvPath)
		if err != nil {
			return err
		}
		if !found {
			return missingOutput(os.ErrNotExist, stem, spvPath)
		}
	default:
		if err := os.Rename(binPath, base+kernels.CacheExt); err != nil {
			return missingOutput(err, stem, binPath)
		}
		if err := os.Remove(spvPath); err != nil {
			return missingOutput(err, stem, spvPath)
		}
	}
	return nil
}

func missingOutput(err error, stem, filePath string) error {
	return errors.Wrapf(err, "compilation of %s reported success, but %s can't be processed: "+
		"is the ocloc version supported?", stem+kernels.SourceExt, filepath.Base(filePath))
}
