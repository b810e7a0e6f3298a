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

// Package kernels models the compiled kernel artifacts kept in a kernel cache directory.
//
// An Artifact can be temporarily disabled, which hides it from programs reading the cache directory
// (it is renamed to "<name>.bak"), and later restored or removed.
package kernels

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gomlx/nnconverter/internal/fsutil"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Encoding of a compiled kernel, which defines its file extension.
type Encoding int

const (
	// Cache is the vendor binary form, loaded directly by the driver for the device it was compiled for.
	Cache Encoding = iota

	// SPIRV is the portable intermediate form, lowered by the driver when loaded.
	SPIRV
)

// Extensions used by the compiler outputs and by the kernel cache.
const (
	CacheExt  = ".cl_cache"
	SPIRVExt  = ".spv"
	BinaryExt = ".bin"
	GenExt    = ".gen"
	SourceExt = ".cl"
	BackupExt = ".bak"
)

// EncodingFor returns SPIRV if spv is true, Cache otherwise.
func EncodingFor(spv bool) Encoding {
	if spv {
		return SPIRV
	}
	return Cache
}

// Ext returns the file extension of the encoding, including the ".".
func (e Encoding) Ext() string {
	if e == SPIRV {
		return SPIRVExt
	}
	return CacheExt
}

// String implements fmt.Stringer.
func (e Encoding) String() string {
	switch e {
	case Cache:
		return "Cache"
	case SPIRV:
		return "SPIRV"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// State of an Artifact in the kernel cache directory.
type State int

const (
	// Active artifacts are visible in the cache directory under their name.
	Active State = iota

	// Disabled artifacts are renamed to their backup name.
	Disabled
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Active:
		return "Active"
	case Disabled:
		return "Disabled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Artifact is one compiled kernel file in a kernel cache directory.
type Artifact struct {
	// Dir is the kernel cache directory holding the artifact.
	Dir string

	// Kernel is the name of the kernel, the file name without extension.
	Kernel   string
	Encoding Encoding
	State    State
}

// FileName returns the name of the artifact when Active, e.g.: "conv1.cl_cache".
func (a *Artifact) FileName() string {
	return a.Kernel + a.Encoding.Ext()
}

// Path returns the path of the artifact when Active.
func (a *Artifact) Path() string {
	return filepath.Join(a.Dir, a.FileName())
}

// DisabledPath returns the path of the artifact when Disabled, e.g.: ".../conv1.bak".
func (a *Artifact) DisabledPath() string {
	return filepath.Join(a.Dir, a.Kernel+BackupExt)
}

// CurrentPath returns where the artifact file is, according to its State.
func (a *Artifact) CurrentPath() string {
	if a.State == Disabled {
		return a.DisabledPath()
	}
	return a.Path()
}

// String implements fmt.Stringer.
func (a *Artifact) String() string {
	return fmt.Sprintf("%s[%s]", a.FileName(), a.State)
}

// Disable hides the artifact from the cache directory by renaming it to its backup name.
//
// It fails if a file with the backup name is already there, since it would be overwritten.
func (a *Artifact) Disable() error {
	if a.State != Active {
		return errors.Errorf("can't disable %s, it is not active", a)
	}
	found, err := fsutil.Exists(a.DisabledPath())
	if err != nil {
		return err
	}
	if found {
		return errors.Errorf("can't disable %s: stale %s already in %s", a, a.Kernel+BackupExt, a.Dir)
	}
	if err = os.Rename(a.Path(), a.DisabledPath()); err != nil {
		return errors.Wrapf(err, "failed to disable %s", a)
	}
	a.State = Disabled
	klog.V(2).Infof("disabled %s", a.FileName())
	return nil
}

// Restore makes a Disabled artifact Active again, renaming it back to its name.
func (a *Artifact) Restore() error {
	if a.State != Disabled {
		return errors.Errorf("can't restore %s, it is not disabled", a)
	}
	if err := os.Rename(a.DisabledPath(), a.Path()); err != nil {
		return errors.Wrapf(err, "failed to restore %s", a)
	}
	a.State = Active
	klog.V(2).Infof("restored %s", a.FileName())
	return nil
}

// Remove deletes the artifact file, whatever its State.
func (a *Artifact) Remove() error {
	if err := os.Remove(a.CurrentPath()); err != nil {
		return errors.Wrapf(err, "failed to remove %s", a)
	}
	klog.V(2).Infof("removed %s", a.FileName())
	return nil
}

// List returns the Active artifacts with the given encoding found in dir, sorted by kernel name.
// Files with other extensions are ignored.
func List(dir string, encoding Encoding) ([]*Artifact, error) {
	files, err := fsutil.Glob(dir, encoding.Ext())
	if err != nil {
		return nil, err
	}
	artifacts := make([]*Artifact, 0, len(files))
	for _, file := range files {
		artifacts = append(artifacts, &Artifact{
			Dir:      dir,
			Kernel:   strings.TrimSuffix(filepath.Base(file), encoding.Ext()),
			Encoding: encoding,
			State:    Active,
		})
	}
	return artifacts, nil
}
