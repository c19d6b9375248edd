package nn

import (
	"bytes"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"

	"lenet_lib/nn/layers"
	"lenet_lib/tensor"
)

func randVec(r *rand.Rand, n int) tensor.Vector {
	v := tensor.NewVector(n)
	v.Fill(r.NormFloat64)
	return v
}

func oneHot(class, n int) tensor.Vector {
	v := tensor.NewVector(n)
	v[class] = 1
	return v
}

// smallNet is conv → sigmoid → pool → fc, small enough for finite differences.
func smallNet(t *testing.T, seed int64) *Network {
	t.Helper()
	conv, err := layers.NewConvolution(layers.ConvolutionConfig{
		InputHeight: 4, InputWidth: 4, InputChannels: 2,
		FilterHeight: 3, FilterWidth: 3, Padding: 1,
		Connections: [][]int{{0}, {0, 1}},
	})
	require.NoError(t, err)
	pool, err := layers.NewAveragePooling(2, 4, 4, 2, 2)
	require.NoError(t, err)
	fc, err := layers.NewFullyConnected(8, 3)
	require.NoError(t, err)

	net := NewNetwork(conv, layers.NewSigmoid(), pool, fc)
	r := rand.New(rand.NewSource(seed))
	net.Initialize(func() float64 { return 0.5 * r.NormFloat64() })
	return net
}

func TestNetwork_EndToEndFixedWeights(t *testing.T) {
	w, err := tensor.NewMatrix(2, 2, []float64{1, 0, 0, 1})
	require.NoError(t, err)
	fc, err := layers.NewFullyConnectedFrom(w, tensor.Vector{0, 0})
	require.NoError(t, err)
	net := NewNetwork(fc, layers.NewSigmoid())

	y, err := net.Forward(tensor.Vector{1, -1})
	require.NoError(t, err)
	require.Len(t, y, 2)
	assert.InDelta(t, 0.7311, y[0], 1e-4)
	assert.InDelta(t, 0.2689, y[1], 1e-4)
}

func TestNetwork_TrainStepDescendDecreasesLoss(t *testing.T) {
	net := smallNet(t, 1)
	r := rand.New(rand.NewSource(2))
	x, y := randVec(r, 32), oneHot(2, 3)

	before, err := net.TrainStep(x, y)
	require.NoError(t, err)
	require.Equal(t, 1, net.BatchSize())
	require.NoError(t, net.Descend(0.1))
	assert.Zero(t, net.BatchSize())

	after, err := net.TrainStep(x, y)
	require.NoError(t, err)
	assert.Less(t, after, before)
}

// The accumulated gradient is the negative loss gradient, so Descend with
// a positive rate is gradient descent.
func TestNetwork_AccumulatedGradientIsNegativeLossGradient(t *testing.T) {
	net := smallNet(t, 3)
	r := rand.New(rand.NewSource(4))
	x, y := randVec(r, 32), oneHot(1, 3)

	_, err := net.TrainStep(x, y)
	require.NoError(t, err)

	last := len(net.Layers()) - 1
	for i, l := range net.Layers() {
		if l.NumParams() == 0 {
			assert.Empty(t, net.gradients[last-i])
			continue
		}
		orig := l.Params()
		loss := func(p []float64) float64 {
			setParams(t, l, p)
			_, probs, err := net.Predict(x)
			require.NoError(t, err)
			ce, err := CrossEntropy(probs, y)
			require.NoError(t, err)
			return ce
		}
		num := fd.Gradient(nil, loss, orig, &fd.Settings{Formula: fd.Central})
		setParams(t, l, orig)

		acc := net.gradients[last-i]
		require.Len(t, acc, len(num), "layer %d", i)
		for k := range num {
			require.InDelta(t, -num[k], acc[k], 1e-6, "layer %d param %d", i, k)
		}
	}
}

func TestNetwork_GradientsSumWithinBatch(t *testing.T) {
	net := smallNet(t, 5)
	r := rand.New(rand.NewSource(6))
	x, y := randVec(r, 32), oneHot(0, 3)

	_, err := net.TrainStep(x, y)
	require.NoError(t, err)
	single := make([]tensor.Vector, len(net.gradients))
	for i, g := range net.gradients {
		single[i] = g.Clone()
	}
	_, err = net.TrainStep(x, y)
	require.NoError(t, err)
	assert.Equal(t, 2, net.BatchSize())

	for i := range single {
		require.Len(t, net.gradients[i], len(single[i]))
		for k := range single[i] {
			assert.InDelta(t, 2*single[i][k], net.gradients[i][k], 1e-12)
		}
	}
}

func TestNetwork_Reset(t *testing.T) {
	net := smallNet(t, 7)
	r := rand.New(rand.NewSource(8))
	before := paramsOf(net)

	_, err := net.TrainStep(randVec(r, 32), oneHot(0, 3))
	require.NoError(t, err)
	net.Reset()
	assert.Zero(t, net.BatchSize())

	// Descend after Reset has nothing to apply.
	require.NoError(t, net.Descend(1))
	assert.Equal(t, before, paramsOf(net))
}

func TestNetwork_DescendAppliesScaledGradient(t *testing.T) {
	net := smallNet(t, 9)
	r := rand.New(rand.NewSource(10))
	before := paramsOf(net)

	_, err := net.TrainStep(randVec(r, 32), oneHot(2, 3))
	require.NoError(t, err)
	last := len(net.Layers()) - 1
	want := make([]tensor.Vector, len(before))
	for i := range before {
		want[i] = before[i].Clone()
		for k, g := range net.gradients[last-i] {
			want[i][k] += 0.25 * g
		}
	}
	require.NoError(t, net.Descend(0.25))

	got := paramsOf(net)
	for i := range want {
		for k := range want[i] {
			assert.InDelta(t, want[i][k], got[i][k], 1e-12)
		}
	}
}

func TestNetwork_DumpLoadRoundTrip(t *testing.T) {
	src := smallNet(t, 11)
	dst := smallNet(t, 12)

	var buf bytes.Buffer
	require.NoError(t, src.DumpWeights(&buf))
	assert.Equal(t, 8*src.NumParams(), buf.Len())
	require.NoError(t, dst.LoadWeights(&buf))
	assert.Zero(t, buf.Len())
	assert.Equal(t, paramsOf(src), paramsOf(dst))

	err := dst.LoadWeights(bytes.NewReader(make([]byte, 8)))
	assert.Error(t, err)
}

func TestNetwork_PredictAndEvaluate(t *testing.T) {
	w, err := tensor.NewMatrix(2, 2, []float64{1, 0, 0, 1})
	require.NoError(t, err)
	fc, err := layers.NewFullyConnectedFrom(w, tensor.Vector{0, 0})
	require.NoError(t, err)
	net := NewNetwork(fc)

	class, p, err := net.Predict(tensor.Vector{0, 3})
	require.NoError(t, err)
	assert.Equal(t, 1, class)
	assert.InDelta(t, 1.0, p.Sum(), 1e-12)

	xs := []tensor.Vector{{0, 3}, {3, 0}, {0, 3}, {1, 0}}
	ys := []tensor.Vector{oneHot(1, 2), oneHot(0, 2), oneHot(0, 2), oneHot(0, 2)}
	acc, loss, err := net.Evaluate(xs, ys)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, acc, 1e-12)
	want := (2*math.Log(1+math.Exp(-3)) + math.Log(1+math.Exp(3)) + math.Log(1+math.Exp(-1))) / 4
	assert.InDelta(t, want, loss, 1e-9)

	_, _, err = net.Evaluate(xs, ys[:1])
	assert.ErrorIs(t, err, tensor.ErrDimensionMismatch)
}

func TestNetwork_LayerErrorsAreWrapped(t *testing.T) {
	net := smallNet(t, 13)
	_, err := net.Forward(tensor.NewVector(31))
	assert.ErrorIs(t, err, tensor.ErrDimensionMismatch)
	assert.Contains(t, err.Error(), "layer 0")

	_, err = net.TrainStep(tensor.NewVector(32), oneHot(0, 4))
	assert.ErrorIs(t, err, tensor.ErrDimensionMismatch)
	assert.Zero(t, net.BatchSize())
}

func paramsOf(n *Network) []tensor.Vector {
	out := make([]tensor.Vector, len(n.Layers()))
	for i, l := range n.Layers() {
		out[i] = l.Params()
	}
	return out
}

func setParams(t *testing.T, l Layer, p tensor.Vector) {
	t.Helper()
	cur := l.Params()
	delta := tensor.NewVector(len(p))
	for i := range p {
		delta[i] = p[i] - cur[i]
	}
	require.NoError(t, l.AdjustWeights(delta))
}
