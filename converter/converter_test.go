package converter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/nnconverter/devices"
	"github.com/gomlx/nnconverter/toolchain"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// Stub of the graph dumper: it records its arguments in the file given as %[1]s, and dumps
// 3 kernels sources and a kernel dump.
const stubDumper = `echo "$1|$2|$3" > %[1]q
src="$3/cldnn_ov/cldnn_sources"
mkdir -p "$src"
for k in conv1 conv2 relu1; do
  echo "__kernel void $k() {}" > "$src/$k.cl"
done
cat > "$3/intel_gpu_kernel_dump.json" <<'JSON'
{
  "inputs": [{"name": "image", "dtype": "f16", "shape": [1, 3, 32, 32]}],
  "nodes": [
    {"id": "conv1", "type": "convolution", "kernel": "conv1", "inputs": ["image"], "payload": "AAEC"},
    {"id": "relu1", "type": "activation", "kernel": "relu1", "inputs": ["conv1"]}
  ]
}
JSON
`

// Stub of ocloc: it records its arguments in the file given as %[1]s, and writes the usual outputs.
const stubOcloc = `echo "$@" >> %[1]q
while [ $# -gt 0 ]; do
  case "$1" in
    -file) src="$2"; shift 2;;
    -out_dir) out="$2"; shift 2;;
    *) shift;;
  esac
done
stem=$(basename "$src" .cl)
echo "binary $stem" > "$out/$stem.bin"
echo "spirv $stem" > "$out/$stem.spv"
echo "gen $stem" > "$out/$stem.gen"
`

// Stub of the checker: conv1 and relu1 are mandatory, and it fails if the subgraph or shapes are missing.
const stubChecker = `test -f "$1" || { echo "no subgraph $1"; exit 2; }
test -f "$3" || { echo "no shapes $3"; exit 2; }
for k in conv1 relu1; do
  test -f "$2/$k.cl_cache" || test -f "$2/$k.spv" || { echo "kernel $k not found"; exit 1; }
done
`

type testEnv struct {
	config                Config
	dumperArgs, oclocArgs string
	modelXML, modelBin    string
	outDir                string
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	scriptPath := filepath.Join(dir, name)
	must.M(os.WriteFile(scriptPath, []byte("#!/bin/sh\n"+body), 0755))
	return scriptPath
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dumperArgs: filepath.Join(dir, "dumper_args.txt"),
		oclocArgs:  filepath.Join(dir, "ocloc_args.txt"),
		modelXML:   filepath.Join(dir, "model.xml"),
		modelBin:   filepath.Join(dir, "model.bin"),
		outDir:     filepath.Join(dir, "out", "kernels"),
	}
	must.M(os.WriteFile(env.modelXML, []byte("<net/>"), 0644))
	must.M(os.WriteFile(env.modelBin, []byte{0, 1, 2}, 0644))
	env.config = Config{
		Name:    "srcnn",
		Models:  []string{env.modelXML, env.modelBin},
		Device:  "mtl",
		Dumper:  writeScript(t, dir, "dumper", fmt.Sprintf(stubDumper, env.dumperArgs)),
		Ocloc:   writeScript(t, dir, "ocloc", fmt.Sprintf(stubOcloc, env.oclocArgs)),
		Checker: writeScript(t, dir, "checker", stubChecker),
	}
	return env
}

// dumperCall returns the arguments the dumper was called with: topology, weights and working directory.
func (env *testEnv) dumperCall(t *testing.T) []string {
	t.Helper()
	parts := strings.Split(strings.TrimSpace(string(must.M1(os.ReadFile(env.dumperArgs)))), "|")
	require.Len(t, parts, 3)
	return parts
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	var names []string
	for _, entry := range must.M1(os.ReadDir(dir)) {
		names = append(names, entry.Name())
	}
	return names
}

func TestRun(t *testing.T) {
	env := newTestEnv(t)
	c, err := New(env.config, Options{Device: devices.DeviceMTL, ZeBin: true, OutDir: env.outDir})
	require.NoError(t, err)
	result, err := c.Run(context.Background())
	require.NoError(t, err)

	// Dumper called with the model files and a fresh working directory.
	dumperArgs := env.dumperCall(t)
	require.Equal(t, env.modelXML, dumperArgs[0])
	require.Equal(t, env.modelBin, dumperArgs[1])
	require.Equal(t, "ov_dump", filepath.Base(dumperArgs[2]))

	// ocloc called once per source, with the device and format.
	oclocCalls := strings.Split(strings.TrimSpace(string(must.M1(os.ReadFile(env.oclocArgs)))), "\n")
	require.Len(t, oclocCalls, 3)
	for _, call := range oclocCalls {
		require.Contains(t, call, "-device mtl")
		require.Contains(t, call, "-output_no_suffix -options -w --format zebin")
	}

	// Only mandatory kernels published, along with the subgraph.
	require.Equal(t, []string{"conv1.cl_cache", "relu1.cl_cache", "srcnn.json"}, listDir(t, env.outDir))
	require.Equal(t, "binary conv1\n", string(must.M1(os.ReadFile(filepath.Join(env.outDir, "conv1.cl_cache")))))
	require.Equal(t, filepath.Join(env.outDir, "srcnn.json"), result.Subgraph)
	require.Equal(t, []string{
		filepath.Join(env.outDir, "conv1.cl_cache"),
		filepath.Join(env.outDir, "relu1.cl_cache")}, result.Kernels)

	// Temporary directory removed.
	require.Empty(t, result.TempDir)
	require.NoDirExists(t, filepath.Dir(dumperArgs[2]))

	// Running again gives the same result.
	result, err = c.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Kernels, 2)
	require.Equal(t, []string{"conv1.cl_cache", "relu1.cl_cache", "srcnn.json"}, listDir(t, env.outDir))
}

func TestRun_SPIRVKeepTemp(t *testing.T) {
	env := newTestEnv(t)
	env.config.Models = []string{env.modelXML}
	c, err := New(env.config, Options{Device: devices.DeviceLNL, SPIRV: true, OutDir: env.outDir, KeepTemp: true})
	require.NoError(t, err)
	result, err := c.Run(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(result.TempDir) })

	dumperArgs := env.dumperCall(t)
	require.Equal(t, env.modelXML, dumperArgs[0])
	require.Equal(t, env.modelXML, dumperArgs[1])

	oclocCall := strings.Split(string(must.M1(os.ReadFile(env.oclocArgs))), "\n")[0]
	require.Contains(t, oclocCall, "-device lnl")
	require.NotContains(t, oclocCall, "--format")

	require.Equal(t, []string{"conv1.spv", "relu1.spv", "srcnn.json"}, listDir(t, env.outDir))
	require.Equal(t, filepath.Dir(dumperArgs[2]), result.TempDir)
	kernelsDir := filepath.Join(dumperArgs[2], "cldnn_ov", "cldnn_kernels_cc")
	require.Equal(t, []string{"conv1.spv", "relu1.spv"}, listDir(t, kernelsDir))
}

func TestRun_MissingModel(t *testing.T) {
	env := newTestEnv(t)
	must.M(os.Remove(env.modelBin))
	c, err := New(env.config, Options{Device: devices.DeviceMTL, OutDir: env.outDir})
	require.NoError(t, err)
	_, err = c.Run(context.Background())
	require.ErrorIs(t, err, ErrModelNotFound)
	require.ErrorContains(t, err, env.modelBin)

	// Nothing was run nor created.
	require.NoFileExists(t, env.dumperArgs)
	require.NoDirExists(t, env.outDir)
}

func TestRun_DumpFailure(t *testing.T) {
	env := newTestEnv(t)
	env.config.Dumper = writeScript(t, t.TempDir(), "dumper",
		fmt.Sprintf(`echo "$1|$2|$3" > %q; echo "failed to read network"; exit 1`, env.dumperArgs))
	c := must.M1(New(env.config, Options{Device: devices.DeviceMTL, OutDir: env.outDir}))
	_, err := c.Run(context.Background())
	var exitErr *toolchain.ExitError
	require.True(t, errors.As(err, &exitErr))
	require.ErrorContains(t, err, "graph dump failed")
	require.ErrorContains(t, err, "failed to read network")
	require.NoFileExists(t, env.oclocArgs)
	require.NoDirExists(t, filepath.Dir(env.dumperCall(t)[2]), "temporary directory should be removed on failure")
}

func TestRun_CompileFailure(t *testing.T) {
	env := newTestEnv(t)
	env.config.Ocloc = writeScript(t, t.TempDir(), "ocloc", `echo "Build failed with error code: -11"; exit 1`)
	c := must.M1(New(env.config, Options{Device: devices.DeviceADLP, DisableZeBin: true, ZeBin: true, OutDir: env.outDir}))
	_, err := c.Run(context.Background())
	require.ErrorContains(t, err, "ocloc compile error for conv1.cl")
	require.ErrorContains(t, err, "-device adlp -out_dir")
	require.ErrorContains(t, err, "--format patchtokens")
	require.ErrorContains(t, err, "Build failed")
	require.Empty(t, listDir(t, env.outDir))
}

func TestRun_CheckerMissing(t *testing.T) {
	env := newTestEnv(t)
	env.config.Checker = filepath.Join(t.TempDir(), "no_checker")
	c := must.M1(New(env.config, Options{Device: devices.DeviceMTL, OutDir: env.outDir}))
	_, err := c.Run(context.Background())
	require.ErrorContains(t, err, "failed to check whether conv1.cl_cache is mandatory")
	require.ErrorContains(t, err, "failed to launch")

	// Only the subgraph descriptor was written: no kernel in an undecided state was published.
	require.Equal(t, []string{"srcnn.json"}, listDir(t, env.outDir))
}

func TestNew_Errors(t *testing.T) {
	env := newTestEnv(t)
	_, err := New(env.config, Options{Device: devices.Device(99)})
	require.ErrorContains(t, err, "invalid device")

	config := env.config
	config.Name = ""
	_, err = New(config, Options{})
	require.Error(t, err)

	c, err := New(env.config, Options{})
	require.NoError(t, err)
	require.Equal(t, must.M1(filepath.Abs(".")), c.OutDir())
	require.Equal(t, env.config.Ocloc, c.Ocloc())
}
