// nn_converter converts a neural-network model into the minimal set of GPU kernels needed to run it
// on a target device.
//
// The model, its name and the ocloc compiler are baked into the binary at build time, e.g.:
//
//	go build -ldflags "-X main.buildName=srcnn -X main.buildModels=data/srcnn.xml,data/srcnn.bin \
//	    -X main.buildOcloc=/opt/intel/ocloc -X main.buildDevice=mtl" ./cmd/nn_converter
//
// They can be overridden with a YAML file given with -config.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/gomlx/nnconverter/converter"
	"github.com/gomlx/nnconverter/devices"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Set at build time with -ldflags "-X main.<var>=<value>".
var (
	buildName   = ""
	buildOcloc  = ""
	buildModels = "" // Comma separated.
	buildDevice = ""
)

var (
	flagDevice = flag.String("device", "",
		fmt.Sprintf("Target device, the binary kernels are compiled for this platform. "+
			"Loading the kernels on another device triggers a recompilation. "+
			"Valid values: %s. If empty uses the default device of the configuration.",
			strings.Join(devices.DeviceStrings(), ", ")))
	flagDisableZeBin = flag.Bool("disable_ze_bin", false, "Disable the ze-bin format (use legacy patch tokens). "+
		"It takes precedence over -ze_bin.")
	flagZeBin    = flag.Bool("ze_bin", false, "Enable the ze-bin format, which loads fast across driver versions.")
	flagSPIRV    = flag.Bool("spv", false, "Compile to SPIR-V rather than binary.")
	flagOutDir   = flag.String("out-dir", ".", "Output directory, created if it doesn't exist.")
	flagKeepTemp = flag.Bool("keep-temp-files", false, "Don't delete the temporary files, for inspection.")
	flagConfig   = flag.String("config", "", "YAML file overriding the configuration baked in at build time "+
		"(name, ocloc, models, device, dumper, checker, tool_timeout).")
	flagToolTimeout = flag.Duration("tool_timeout", 0,
		"Timeout for each execution of an external program (dumper, ocloc, checker). 0 means no timeout.")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `nn_converter dumps the GPU kernels of a model, recompiles them for the target device
and keeps only the ones that are mandatory to run the model.

The ze-bin format is enabled by default on recent compute SDKs, but not on legacy ones.

Examples:
	$ nn_converter -disable_ze_bin -device mtl
	$ nn_converter -ze_bin -device mtl -out-dir ./kernels

Flags:
`)
		flag.PrintDefaults()
	}
	klog.InitFlags(nil)
	flag.Parse()

	config, options, err := configFromFlags()
	if err != nil {
		klog.Fatal(err)
	}
	c, err := converter.New(config, options)
	if err != nil {
		klog.Fatal(err)
	}
	fmt.Println("cwd=", must.M1(os.Getwd()))
	fmt.Println("ocloc=", c.Ocloc())
	fmt.Println("out_dir=", c.OutDir())
	if _, err = c.Run(context.Background()); err != nil {
		klog.Fatalf("Conversion failed: %v", err)
	}
}

// configFromFlags builds the configuration from the values baked at build time, the -config file
// and the flags -- in this order of precedence.
func configFromFlags() (config converter.Config, options converter.Options, err error) {
	config = converter.DefaultConfig()
	config.Name = buildName
	config.Models = converter.SplitList(buildModels)
	if buildOcloc != "" {
		config.Ocloc = buildOcloc
	}
	if buildDevice != "" {
		config.Device = buildDevice
	}
	if *flagConfig != "" {
		config, err = converter.LoadConfig(*flagConfig, config)
		if err != nil {
			return
		}
	}
	if *flagToolTimeout != 0 {
		config.ToolTimeout = *flagToolTimeout
	}

	options = converter.Options{
		DisableZeBin: *flagDisableZeBin,
		ZeBin:        *flagZeBin,
		SPIRV:        *flagSPIRV,
		OutDir:       *flagOutDir,
		KeepTemp:     *flagKeepTemp,
	}
	if *flagDevice == "" {
		options.Device, err = devices.DeviceString(config.Device)
		if err != nil {
			err = errors.Errorf("configuration has invalid device %q and no -device was given, valid values are %s",
				config.Device, strings.Join(devices.DeviceStrings(), ", "))
		}
		return
	}
	options.Device, err = devices.DeviceString(*flagDevice)
	if err != nil {
		err = errors.Errorf("invalid -device=%q, valid values are %s", *flagDevice, strings.Join(devices.DeviceStrings(), ", "))
	}
	return
}
