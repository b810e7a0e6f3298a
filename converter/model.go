package converter

import (
	"github.com/gomlx/nnconverter/internal/fsutil"
	"github.com/pkg/errors"
)

// ErrModelNotFound is returned (wrapped) when the model files don't exist.
var ErrModelNotFound = errors.New("model not found")

// Model references the files of the model to convert.
type Model struct {
	// Topology of the network (OpenVINO IR ".xml").
	Topology string

	// Weights of the network (OpenVINO IR ".bin"). For self-contained formats (ONNX) it is the
	// same as Topology.
	Weights string
}

// NewModel creates a Model from either 2 paths (topology and weights) or 1 path (self-contained model).
func NewModel(paths []string) (Model, error) {
	switch len(paths) {
	case 2:
		return Model{Topology: paths[0], Weights: paths[1]}, nil
	case 1:
		return Model{Topology: paths[0], Weights: paths[0]}, nil
	default:
		return Model{}, errors.Errorf("model must be given as 1 file (ONNX) or 2 files (OpenVINO IR topology and weights), got %d: %q",
			len(paths), paths)
	}
}

// Check that the model files exist.
func (m Model) Check() error {
	for _, p := range []string{m.Topology, m.Weights} {
		found, err := fsutil.Exists(p)
		if err != nil {
			return err
		}
		if !found {
			return errors.Wrapf(ErrModelNotFound, "missing %s (model %s, %s)", p, m.Topology, m.Weights)
		}
	}
	return nil
}
