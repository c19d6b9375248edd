package bench

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lenet_lib/nn"
	"lenet_lib/tensor"
)

func TestBuildNet(t *testing.T) {
	for _, name := range []string{"lenet5", "mnistfc"} {
		net, err := BuildNet(name)
		require.NoError(t, err)
		assert.Equal(t, 784, net.InputDim)
		out, err := net.Net.Forward(tensor.NewVector(net.InputDim))
		require.NoError(t, err)
		assert.Len(t, out, 10)
	}
	_, err := BuildNet("resnet")
	assert.Error(t, err)
}

func TestRunLayerBenchmarks(t *testing.T) {
	built, err := BuildMNISTFC()
	require.NoError(t, err)
	built.Net.Initialize(nn.NormalGenerator(0.1, 1))
	before := built.Net.Layers()[0].Params()

	x := tensor.NewVector(built.InputDim)
	x.Fill(nn.UniformGenerator(0, 1, 2))
	points, err := RunLayerBenchmarks(built, x, 2, 1)
	require.NoError(t, err)
	require.Len(t, points, len(built.Net.Layers()))
	assert.Equal(t, "FullyConnected_784_128", points[0].Tag)
	assert.Equal(t, 784*128+128, points[0].Params)
	assert.Zero(t, points[1].Params)
	// timing updates add a zero delta
	assert.Equal(t, before, built.Net.Layers()[0].Params())

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, points, true))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, len(points)+1)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, "mnistfc", rows[1][0])

	_, err = RunLayerBenchmarks(built, tensor.NewVector(3), 1, 0)
	assert.Error(t, err)
}
