package layers

import (
	"fmt"
	"io"
	"math"

	"lenet_lib/tensor"
)

// Sigmoid applies the logistic function elementwise. It has no parameters.
type Sigmoid struct {
	cache
}

// NewSigmoid returns a parameterless sigmoid activation.
func NewSigmoid() *Sigmoid { return &Sigmoid{} }

// SigmoidFunc returns 1/(1+e^-x).
func SigmoidFunc(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// SigmoidDeriv returns e^-x/(1+e^-x)^2.
func SigmoidDeriv(x float64) float64 {
	emx := math.Exp(-x)
	return emx / ((1.0 + emx) * (1.0 + emx))
}

// Forward evaluates the layer and caches x and y for Grad.
func (a *Sigmoid) Forward(x tensor.Vector) (tensor.Vector, error) {
	return a.cache.forward(a.Eval, x)
}

// Eval applies the logistic function to every element of x.
func (a *Sigmoid) Eval(x tensor.Vector) (tensor.Vector, error) {
	y := x.Clone()
	y.Apply(SigmoidFunc)
	return y, nil
}

// Grad back-propagates dy through the most recent Forward.
func (a *Sigmoid) Grad(dy tensor.Vector) (Gradient, error) {
	return a.cache.grad(a.Backward, dy)
}

// Backward returns dx = dy ⊙ sigmoid'(x).
func (a *Sigmoid) Backward(x, _, dy tensor.Vector) (Gradient, error) {
	ds := x.Clone()
	ds.Apply(SigmoidDeriv)
	dx, err := ds.Hadamard(dy)
	if err != nil {
		return Gradient{}, fmt.Errorf("%s: %w", a.Tag(), err)
	}
	return Gradient{DX: dx, DW: tensor.Vector{}}, nil
}

func (a *Sigmoid) AdjustWeights(delta tensor.Vector) error {
	return checkLen(a.Tag(), "delta", len(delta), 0)
}

func (a *Sigmoid) Initialize(tensor.Generator) {}
func (a *Sigmoid) NumParams() int              { return 0 }
func (a *Sigmoid) Params() tensor.Vector       { return tensor.Vector{} }
func (a *Sigmoid) DumpWeights(io.Writer) error { return nil }
func (a *Sigmoid) LoadWeights(io.Reader) error { return nil }
func (a *Sigmoid) Tag() string                 { return "Sigmoid" }
