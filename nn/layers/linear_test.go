package layers

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lenet_lib/tensor"
)

func TestFullyConnected_Eval(t *testing.T) {
	w, err := tensor.NewMatrix(2, 3, []float64{
		1, 2, 3,
		-1, 0, 1,
	})
	require.NoError(t, err)
	l, err := NewFullyConnectedFrom(w, tensor.Vector{0.5, -0.5})
	require.NoError(t, err)

	y, err := l.Eval(tensor.Vector{1, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, tensor.Vector{6.5, -0.5}, y)

	_, err = l.Eval(tensor.Vector{1, 1})
	assert.ErrorIs(t, err, tensor.ErrDimensionMismatch)
}

func TestFullyConnected_BackwardLayout(t *testing.T) {
	w, err := tensor.NewMatrix(2, 3, []float64{
		1, 2, 3,
		4, 5, 6,
	})
	require.NoError(t, err)
	l, err := NewFullyConnectedFrom(w, tensor.Vector{0, 0})
	require.NoError(t, err)

	x := tensor.Vector{1, 2, 3}
	dy := tensor.Vector{10, -1}
	_, err = l.Forward(x)
	require.NoError(t, err)
	g, err := l.Grad(dy)
	require.NoError(t, err)

	// outer product dy ⊗ x row-major, then dy for the biases
	assert.Equal(t, tensor.Vector{10, 20, 30, -1, -2, -3, 10, -1}, g.DW)
	// Wᵀdy
	assert.Equal(t, tensor.Vector{6, 15, 24}, g.DX)
}

func TestFullyConnected_Adjoint(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	l, err := NewFullyConnected(5, 4)
	require.NoError(t, err)
	l.Initialize(r.NormFloat64)

	x, dy := randVec(r, 5), randVec(r, 4)
	checkInputAdjoint(t, l, x, dy, 1e-6)
	checkParamAdjoint(t, l, x, dy, 1e-6)
}

func TestFullyConnected_AdjustWeights(t *testing.T) {
	l, err := NewFullyConnected(2, 2)
	require.NoError(t, err)
	require.NoError(t, l.AdjustWeights(tensor.Vector{1, 2, 3, 4, 5, 6}))

	assert.Equal(t, 2.0, l.W.At(0, 1))
	assert.Equal(t, 3.0, l.W.At(1, 0))
	assert.Equal(t, tensor.Vector{5, 6}, l.B)
	assert.Equal(t, tensor.Vector{1, 2, 3, 4, 5, 6}, l.Params())

	assert.ErrorIs(t, l.AdjustWeights(tensor.Vector{1}), tensor.ErrDimensionMismatch)
}

func TestFullyConnected_DumpLoadRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	src, err := NewFullyConnected(7, 3)
	require.NoError(t, err)
	src.Initialize(r.NormFloat64)
	dst, err := NewFullyConnected(7, 3)
	require.NoError(t, err)

	n := roundTrip(t,
		func(b *bytes.Buffer) error { return src.DumpWeights(b) },
		func(b *bytes.Buffer) error { return dst.LoadWeights(b) },
	)
	assert.Equal(t, 8*(7*3+3), n)
	assert.Equal(t, src.Params(), dst.Params())
}

func TestFullyConnected_LoadShortStream(t *testing.T) {
	l, err := NewFullyConnected(2, 2)
	require.NoError(t, err)
	err = l.LoadWeights(bytes.NewReader(make([]byte, 8*3)))
	assert.Error(t, err)
}

func TestFullyConnected_GradBeforeForward(t *testing.T) {
	l, err := NewFullyConnected(2, 2)
	require.NoError(t, err)
	_, err = l.Grad(tensor.Vector{1, 1})
	assert.ErrorIs(t, err, ErrNoForward)
}
