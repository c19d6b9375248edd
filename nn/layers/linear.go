package layers

import (
	"fmt"
	"io"

	"lenet_lib/tensor"
)

// FullyConnected computes y = Wx + b. Activation is a separate layer.
type FullyConnected struct {
	cache

	W *tensor.Matrix // neurons × inputs
	B tensor.Vector  // neurons
}

// NewFullyConnected allocates a zero-initialized inDim→outDim layer.
func NewFullyConnected(inDim, outDim int) (*FullyConnected, error) {
	w, err := tensor.NewMatrix(outDim, inDim, nil)
	if err != nil {
		return nil, fmt.Errorf("FullyConnected_%d_%d: %w", inDim, outDim, err)
	}
	return &FullyConnected{W: w, B: tensor.NewVector(outDim)}, nil
}

// NewFullyConnectedFrom builds a layer from explicit weights and biases.
// The layer takes ownership of both.
func NewFullyConnectedFrom(w *tensor.Matrix, b tensor.Vector) (*FullyConnected, error) {
	if len(b) != w.Rows {
		return nil, fmt.Errorf("FullyConnected_%d_%d: bias has %d values: %w", w.Cols, w.Rows, len(b), tensor.ErrDimensionMismatch)
	}
	return &FullyConnected{W: w, B: b}, nil
}

func (l *FullyConnected) inputs() int  { return l.W.Cols }
func (l *FullyConnected) neurons() int { return l.W.Rows }

// Forward evaluates the layer and caches x and y for Grad.
func (l *FullyConnected) Forward(x tensor.Vector) (tensor.Vector, error) {
	return l.cache.forward(l.Eval, x)
}

// Eval returns Wx + b.
func (l *FullyConnected) Eval(x tensor.Vector) (tensor.Vector, error) {
	wx, err := l.W.MulVec(x)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.Tag(), err)
	}
	return wx.Add(l.B)
}

// Grad back-propagates dy through the most recent Forward.
func (l *FullyConnected) Grad(dy tensor.Vector) (Gradient, error) {
	return l.cache.grad(l.Backward, dy)
}

// Backward returns dx = Wᵀdy and dw = (dy ⊗ x, dy).
func (l *FullyConnected) Backward(x, _, dy tensor.Vector) (Gradient, error) {
	if err := checkLen(l.Tag(), "input", len(x), l.inputs()); err != nil {
		return Gradient{}, err
	}
	if err := checkLen(l.Tag(), "upstream gradient", len(dy), l.neurons()); err != nil {
		return Gradient{}, err
	}

	inDim, outDim := l.inputs(), l.neurons()
	dw := tensor.NewVector(l.NumParams())
	for j := 0; j < outDim; j++ {
		for i := 0; i < inDim; i++ {
			dw[j*inDim+i] = dy[j] * x[i]
		}
	}
	copy(dw[outDim*inDim:], dy)

	dx, err := l.W.TransMulVec(dy)
	if err != nil {
		return Gradient{}, fmt.Errorf("%s: %w", l.Tag(), err)
	}
	return Gradient{DX: dx, DW: dw}, nil
}

// AdjustWeights adds delta (weights row-major, then biases) to the parameters.
func (l *FullyConnected) AdjustWeights(delta tensor.Vector) error {
	if err := checkLen(l.Tag(), "delta", len(delta), l.NumParams()); err != nil {
		return err
	}
	n := l.W.Size()
	if err := l.W.AddVec(delta[:n]); err != nil {
		return err
	}
	return l.B.AddInPlace(delta[n:])
}

// Initialize fills weights then biases from gen.
func (l *FullyConnected) Initialize(gen tensor.Generator) {
	l.W.Fill(gen)
	l.B.Fill(gen)
}

// NumParams returns rows*cols + rows.
func (l *FullyConnected) NumParams() int { return l.W.Size() + len(l.B) }

// Params returns a flattened copy of the parameters in dump order.
func (l *FullyConnected) Params() tensor.Vector {
	out := make(tensor.Vector, 0, l.NumParams())
	out = append(out, l.W.Data()...)
	return append(out, l.B...)
}

// DumpWeights writes rows*cols weights followed by rows biases.
func (l *FullyConnected) DumpWeights(w io.Writer) error {
	if err := writeFloats(w, l.W.Data()); err != nil {
		return fmt.Errorf("%s: dump weights: %w", l.Tag(), err)
	}
	if err := writeFloats(w, l.B); err != nil {
		return fmt.Errorf("%s: dump biases: %w", l.Tag(), err)
	}
	return nil
}

// LoadWeights reads the layout written by DumpWeights.
func (l *FullyConnected) LoadWeights(r io.Reader) error {
	if err := readFloats(r, l.W.Data()); err != nil {
		return fmt.Errorf("%s: load weights: %w", l.Tag(), err)
	}
	if err := readFloats(r, l.B); err != nil {
		return fmt.Errorf("%s: load biases: %w", l.Tag(), err)
	}
	return nil
}

func (l *FullyConnected) Tag() string {
	return fmt.Sprintf("FullyConnected_%d_%d", l.inputs(), l.neurons())
}
