package utils

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"

	"lenet_lib/nn"
	"lenet_lib/nn/layers"
	"lenet_lib/tensor"
)

// WeightsVersion is written into every exported ModelWeights.
const WeightsVersion = "1"

// WeightData represents serializable weight data for a layer
type WeightData struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// ModelWeights represents all weights in a model
type ModelWeights struct {
	Version string                 `json:"version"`
	RunID   string                 `json:"run_id"`
	Layers  map[string]LayerWeight `json:"layers"`
}

// LayerWeight contains weights and bias for a layer
type LayerWeight struct {
	Weight *WeightData `json:"weight,omitempty"`
	Bias   *WeightData `json:"bias,omitempty"`
}

// LayerKey names layer i of a network inside ModelWeights.Layers.
func LayerKey(i int, l nn.Layer) string {
	return fmt.Sprintf("%02d_%s", i, l.Tag())
}

// SaveWeights saves model weights to a JSON file
func SaveWeights(filepath string, weights *ModelWeights) error {
	data, err := json.MarshalIndent(weights, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal weights: %w", err)
	}
	return os.WriteFile(filepath, data, 0644)
}

// LoadWeights loads model weights from a JSON file
func LoadWeights(filepath string) (*ModelWeights, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read weights file: %w", err)
	}
	var weights ModelWeights
	if err := json.Unmarshal(data, &weights); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weights: %w", err)
	}
	return &weights, nil
}

// VectorToWeightData converts a vector to serializable weight data
func VectorToWeightData(name string, v tensor.Vector, shape ...int) *WeightData {
	if len(shape) == 0 {
		shape = []int{len(v)}
	}
	return &WeightData{
		Name:  name,
		Shape: shape,
		Data:  append([]float64{}, v...), // copy
	}
}

// ExportWeights snapshots every parameterized layer of net under a fresh
// run ID. Parameter-free layers are omitted.
func ExportWeights(net *nn.Network) (*ModelWeights, error) {
	mw := &ModelWeights{
		Version: WeightsVersion,
		RunID:   uuid.NewString(),
		Layers:  make(map[string]LayerWeight),
	}
	for i, l := range net.Layers() {
		key := LayerKey(i, l)
		switch l := l.(type) {
		case *layers.FullyConnected:
			mw.Layers[key] = LayerWeight{
				Weight: VectorToWeightData(key+".weight", l.W.Data(), l.W.Rows, l.W.Cols),
				Bias:   VectorToWeightData(key+".bias", l.B),
			}
		case *layers.Convolution:
			var w, b tensor.Vector
			for _, ch := range l.Channels {
				w = append(w, ch.Weights...)
				b = append(b, ch.Bias)
			}
			lw := LayerWeight{Weight: VectorToWeightData(key+".weight", w)}
			if l.HasBias() {
				lw.Bias = VectorToWeightData(key+".bias", b)
			}
			mw.Layers[key] = lw
		default:
			if l.NumParams() != 0 {
				return nil, fmt.Errorf("export %s: unsupported parameterized layer", key)
			}
		}
	}
	return mw, nil
}

func copyInto(dst tensor.Vector, wd *WeightData, what string) error {
	if wd == nil {
		return fmt.Errorf("%s missing", what)
	}
	if len(wd.Data) != len(dst) {
		return fmt.Errorf("%s has %d values, want %d: %w", what, len(wd.Data), len(dst), tensor.ErrDimensionMismatch)
	}
	copy(dst, wd.Data)
	return nil
}

// ImportWeights writes an exported snapshot back into a network of the same
// topology.
func ImportWeights(net *nn.Network, mw *ModelWeights) error {
	for i, l := range net.Layers() {
		if l.NumParams() == 0 {
			continue
		}
		key := LayerKey(i, l)
		lw, ok := mw.Layers[key]
		if !ok {
			return fmt.Errorf("import: no weights for %s", key)
		}
		switch l := l.(type) {
		case *layers.FullyConnected:
			if err := copyInto(l.W.Data(), lw.Weight, key+".weight"); err != nil {
				return fmt.Errorf("import: %w", err)
			}
			if err := copyInto(l.B, lw.Bias, key+".bias"); err != nil {
				return fmt.Errorf("import: %w", err)
			}
		case *layers.Convolution:
			w := tensor.NewVector(0)
			for _, ch := range l.Channels {
				w = append(w, ch.Weights...)
			}
			if err := copyInto(w, lw.Weight, key+".weight"); err != nil {
				return fmt.Errorf("import: %w", err)
			}
			var b tensor.Vector
			if l.HasBias() {
				b = tensor.NewVector(len(l.Channels))
				if err := copyInto(b, lw.Bias, key+".bias"); err != nil {
					return fmt.Errorf("import: %w", err)
				}
			}
			off := 0
			for oc := range l.Channels {
				ch := &l.Channels[oc]
				off += copy(ch.Weights, w[off:])
				if b != nil {
					ch.Bias = b[oc]
				}
			}
		default:
			return fmt.Errorf("import %s: unsupported parameterized layer", key)
		}
	}
	return nil
}
