package layers

import (
	"bytes"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lenet_lib/tensor"
)

func TestSigmoid_Eval(t *testing.T) {
	s := NewSigmoid()
	y, err := s.Eval(tensor.Vector{0, 1, -1})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, y[0], 1e-12)
	assert.InDelta(t, 0.7310585786, y[1], 1e-9)
	assert.InDelta(t, 0.2689414214, y[2], 1e-9)
}

func TestSigmoid_DerivMatchesIdentity(t *testing.T) {
	for _, x := range []float64{-5, -1, 0, 0.3, 2, 7} {
		s := SigmoidFunc(x)
		assert.InDelta(t, s*(1-s), SigmoidDeriv(x), 1e-12, "x=%v", x)
	}
}

func TestSigmoid_Adjoint(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	s := NewSigmoid()
	checkInputAdjoint(t, s, randVec(r, 9), randVec(r, 9), 1e-7)
}

func TestSigmoid_Backward(t *testing.T) {
	s := NewSigmoid()
	_, err := s.Forward(tensor.Vector{0, 2})
	require.NoError(t, err)
	g, err := s.Grad(tensor.Vector{4, 1})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, g.DX[0], 1e-12)
	assert.InDelta(t, math.Exp(-2)/math.Pow(1+math.Exp(-2), 2), g.DX[1], 1e-12)
	assert.Empty(t, g.DW)

	_, err = s.Grad(tensor.Vector{1})
	assert.ErrorIs(t, err, tensor.ErrDimensionMismatch)
}

func TestSigmoid_NoParameters(t *testing.T) {
	s := NewSigmoid()
	assert.Zero(t, s.NumParams())
	assert.NoError(t, s.AdjustWeights(tensor.Vector{}))
	assert.ErrorIs(t, s.AdjustWeights(tensor.Vector{1}), tensor.ErrDimensionMismatch)

	n := roundTrip(t,
		func(b *bytes.Buffer) error { return s.DumpWeights(b) },
		func(b *bytes.Buffer) error { return s.LoadWeights(b) },
	)
	assert.Zero(t, n)
}

func TestSigmoid_GradBeforeForward(t *testing.T) {
	_, err := NewSigmoid().Grad(tensor.Vector{1})
	assert.ErrorIs(t, err, ErrNoForward)
}
