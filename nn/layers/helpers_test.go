package layers

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"

	"lenet_lib/tensor"
)

// testLayer is the method set shared by every layer in this package.
type testLayer interface {
	Forward(x tensor.Vector) (tensor.Vector, error)
	Eval(x tensor.Vector) (tensor.Vector, error)
	Grad(dy tensor.Vector) (Gradient, error)
	Backward(x, y, dy tensor.Vector) (Gradient, error)
	AdjustWeights(delta tensor.Vector) error
	Initialize(gen tensor.Generator)
	NumParams() int
	Params() tensor.Vector
}

func randVec(r *rand.Rand, n int) tensor.Vector {
	v := tensor.NewVector(n)
	v.Fill(r.NormFloat64)
	return v
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// setParams overwrites the layer parameters with p through AdjustWeights.
func setParams(t *testing.T, l testLayer, p tensor.Vector) {
	t.Helper()
	cur := l.Params()
	delta := tensor.NewVector(len(p))
	for i := range p {
		delta[i] = p[i] - cur[i]
	}
	require.NoError(t, l.AdjustWeights(delta))
}

// checkInputAdjoint compares Backward's dx with the central-difference
// gradient of <dy, Eval(x)>.
func checkInputAdjoint(t *testing.T, l testLayer, x, dy tensor.Vector, tol float64) {
	t.Helper()
	y, err := l.Forward(x)
	require.NoError(t, err)
	g, err := l.Grad(dy)
	require.NoError(t, err)
	require.Len(t, g.DX, len(x))

	f := func(in []float64) float64 {
		out, err := l.Eval(in)
		require.NoError(t, err)
		d, err := out.Dot(dy)
		require.NoError(t, err)
		return d
	}
	num := fd.Gradient(nil, f, x, &fd.Settings{Formula: fd.Central})
	for i := range num {
		require.InDelta(t, num[i], g.DX[i], tol, "dx[%d]", i)
	}
	require.Len(t, y, len(dy))
}

// checkParamAdjoint compares Backward's dw with the central-difference
// gradient of <dy, Eval(x)> with respect to the flattened parameters.
func checkParamAdjoint(t *testing.T, l testLayer, x, dy tensor.Vector, tol float64) {
	t.Helper()
	_, err := l.Forward(x)
	require.NoError(t, err)
	g, err := l.Grad(dy)
	require.NoError(t, err)
	require.Len(t, g.DW, l.NumParams())

	orig := l.Params()
	f := func(p []float64) float64 {
		setParams(t, l, p)
		out, err := l.Eval(x)
		require.NoError(t, err)
		d, err := out.Dot(dy)
		require.NoError(t, err)
		return d
	}
	num := fd.Gradient(nil, f, orig, &fd.Settings{Formula: fd.Central})
	setParams(t, l, orig)
	for i := range num {
		require.InDelta(t, num[i], g.DW[i], tol, "dw[%d]", i)
	}
}

// roundTrip dumps through dump and reads back through load, returning the
// stream length in bytes.
func roundTrip(t *testing.T, dump func(*bytes.Buffer) error, load func(*bytes.Buffer) error) int {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, dump(&buf))
	n := buf.Len()
	require.NoError(t, load(&buf))
	require.Zero(t, buf.Len(), "load must consume the whole stream")
	return n
}
