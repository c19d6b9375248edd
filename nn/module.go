package nn

import (
	"io"

	"lenet_lib/nn/layers"
	"lenet_lib/tensor"
)

// Layer is a single differentiable stage of a Network.
type Layer interface {
	// Forward evaluates x and caches x and the output for a later Grad.
	Forward(x tensor.Vector) (tensor.Vector, error)
	// Eval is Forward without touching the cache.
	Eval(x tensor.Vector) (tensor.Vector, error)
	// Grad back-propagates dy through the most recent Forward.
	Grad(dy tensor.Vector) (layers.Gradient, error)
	// Backward is Grad with the forward context passed explicitly.
	Backward(x, y, dy tensor.Vector) (layers.Gradient, error)

	AdjustWeights(delta tensor.Vector) error
	Initialize(gen tensor.Generator)
	NumParams() int
	Params() tensor.Vector
	DumpWeights(w io.Writer) error
	LoadWeights(r io.Reader) error
	Tag() string
}

var (
	_ Layer = (*layers.FullyConnected)(nil)
	_ Layer = (*layers.Sigmoid)(nil)
	_ Layer = (*layers.AveragePooling)(nil)
	_ Layer = (*layers.Convolution)(nil)
)
