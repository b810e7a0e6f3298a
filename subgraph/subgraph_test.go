package subgraph

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"
)

const validDump = `{
  "inputs": [{"name": "image", "dtype": "f16", "shape": [1, 3, 64, 64]}],
  "nodes": [
    {"id": "conv1", "type": "convolution", "kernel": "conv1", "inputs": ["image"], "payload": "AAECAw=="},
    {"id": "relu1", "type": "activation", "kernel": "relu1", "inputs": ["conv1"]},
    {"id": "conv2", "type": "convolution", "kernel": "conv1", "inputs": ["relu1"]},
    {"id": "output", "type": "output", "inputs": ["conv2"]}
  ]
}`

func writeDump(t *testing.T, contents string) string {
	t.Helper()
	workDir := t.TempDir()
	must.M(os.WriteFile(filepath.Join(workDir, DumpFileName), []byte(contents), 0644))
	return workDir
}

func TestConvert(t *testing.T) {
	workDir := writeDump(t, validDump)
	outDir := t.TempDir()
	files, err := Convert(workDir, outDir, "srcnn")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(outDir, "srcnn.json"), files.Subgraph)
	require.Equal(t, filepath.Join(workDir, "srcnn_shapes.json"), files.Shapes)

	var descriptor Descriptor
	must.M(json.Unmarshal(must.M1(os.ReadFile(files.Subgraph)), &descriptor))
	require.Equal(t, "srcnn", descriptor.Name)
	require.Len(t, descriptor.Nodes, 4)
	require.Equal(t, "AAECAw==", descriptor.Nodes[0].Payload)
	require.Equal(t, []string{"conv1", "relu1"}, descriptor.Kernels())

	var shapes map[string][]int
	must.M(json.Unmarshal(must.M1(os.ReadFile(files.Shapes)), &shapes))
	require.Equal(t, map[string][]int{"image": {1, 3, 64, 64}}, shapes)
}

func TestConvert_DynamicShapes(t *testing.T) {
	workDir := writeDump(t, `{
  "inputs": [{"name": "x", "dtype": "f32", "shape": [-1, 3, 224, 224]}],
  "nodes": [{"id": "conv1", "type": "convolution", "kernel": "conv1", "inputs": ["x"]}]
}`)
	files, err := Convert(workDir, t.TempDir(), "resnet")
	require.NoError(t, err)
	var shapes map[string][]int
	must.M(json.Unmarshal(must.M1(os.ReadFile(files.Shapes)), &shapes))
	require.Equal(t, map[string][]int{"x": {-1, 3, 224, 224}}, shapes)

	// A graph with no inputs is accepted as well.
	_, err = Convert(writeDump(t, `{"nodes": [{"id": "const", "type": "constant", "payload": "AA=="}]}`), t.TempDir(), "consts")
	require.NoError(t, err)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(t.TempDir())
	require.ErrorContains(t, err, "failed to read kernel dump")

	_, err = Load(writeDump(t, "{not json"))
	require.ErrorContains(t, err, "failed to parse kernel dump")

	testCases := map[string]string{
		"defined more than once": `{"inputs": [{"name": "x", "shape": [1]}],
			"nodes": [{"id": "a", "type": "t"}, {"id": "a", "type": "t"}]}`,
		`uses unknown input "y"`: `{"inputs": [{"name": "x", "shape": [1]}],
			"nodes": [{"id": "a", "type": "t", "inputs": ["y"]}]}`,
		"invalid payload": `{"inputs": [{"name": "x", "shape": [1]}],
			"nodes": [{"id": "a", "type": "t", "payload": "!!not base64!!"}]}`,
	}
	for want, contents := range testCases {
		_, err = Load(writeDump(t, contents))
		require.ErrorContains(t, err, want)
	}
}

func TestConvert_EmptyName(t *testing.T) {
	_, err := Convert(writeDump(t, validDump), t.TempDir(), "")
	require.Error(t, err)
}
