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

// Package devices lists the GPU platforms kernels can be compiled for, and the binary formats
// the ahead-of-time compiler (ocloc) can package them in.
package devices

import (
	"k8s.io/klog/v2"
)

// Device is a target GPU platform code, as accepted by `ocloc -device`.
//
// Kernels compiled for one device still load on another, but cross-device loading triggers a
// recompilation by the driver.
type Device int

//go:generate go tool enumer -type=Device -trimprefix=Device -transform=lower devices.go

const (
	DeviceSKL Device = iota
	DeviceTGLLP
	DeviceADLP
	DeviceMTL
	DeviceLNL
	DevicePTL
	DeviceNVL
)

// Format is the binary packaging requested from the compiler.
type Format int

//go:generate go tool enumer -type=Format -trimprefix=Format -transform=lower devices.go

const (
	// FormatDefault lets the compiler pick its default format: no `--format` option is given.
	FormatDefault Format = iota

	// FormatPatchTokens is the legacy format, it disables ze-bin.
	FormatPatchTokens

	// FormatZeBin enables ze-bin, which allows fast binary loading across driver versions.
	FormatZeBin
)

// ResolveFormat maps the two ze-bin flags to one Format.
//
// If both are set, disableZeBin wins: FormatPatchTokens is returned and a warning is logged.
func ResolveFormat(disableZeBin, zeBin bool) Format {
	switch {
	case disableZeBin && zeBin:
		klog.Warningf("both disable_ze_bin and ze_bin were requested, using %q", FormatPatchTokens)
		return FormatPatchTokens
	case disableZeBin:
		return FormatPatchTokens
	case zeBin:
		return FormatZeBin
	default:
		return FormatDefault
	}
}

// CompilerArgs returns the compiler options selecting the format, or nil for FormatDefault.
func (f Format) CompilerArgs() []string {
	if f == FormatDefault || !f.IsAFormat() {
		return nil
	}
	return []string{"--format", f.String()}
}
