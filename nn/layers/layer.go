package layers

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"lenet_lib/tensor"
)

// ErrNoForward is returned by Grad when no Forward call has populated the
// layer's cache.
var ErrNoForward = errors.New("grad called before forward")

// Gradient is the result of a backward pass through one layer.
type Gradient struct {
	DX tensor.Vector // dLoss/dInput, handed to the previous layer
	DW tensor.Vector // dLoss/dParams in dump order, empty for parameter-free layers
}

// cache holds the input and output of the most recent Forward call.
type cache struct {
	x, y  tensor.Vector
	valid bool
}

func (c *cache) forward(eval func(tensor.Vector) (tensor.Vector, error), x tensor.Vector) (tensor.Vector, error) {
	y, err := eval(x)
	if err != nil {
		return nil, err
	}
	c.x, c.y, c.valid = x.Clone(), y, true
	return y, nil
}

func (c *cache) grad(backward func(x, y, dy tensor.Vector) (Gradient, error), dy tensor.Vector) (Gradient, error) {
	if !c.valid {
		return Gradient{}, ErrNoForward
	}
	return backward(c.x, c.y, dy)
}

// checkLen wraps tensor.ErrDimensionMismatch with the layer tag.
func checkLen(tag, what string, got, want int) error {
	if got != want {
		return fmt.Errorf("%s: %s has %d values, want %d: %w", tag, what, got, want, tensor.ErrDimensionMismatch)
	}
	return nil
}

// writeFloats and readFloats implement the native-endian float64 weight
// stream shared by every parameterized layer.
func writeFloats(w io.Writer, v []float64) error {
	return binary.Write(w, binary.NativeEndian, v)
}

func readFloats(r io.Reader, v []float64) error {
	return binary.Read(r, binary.NativeEndian, v)
}
