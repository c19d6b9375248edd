package nn

import (
	"lenet_lib/nn/layers"
)

// LeNet5C3Connections is the classic C3 table: output maps 0-5 read three
// contiguous S2 maps, 6-11 read four contiguous maps, 12-14 read four
// non-contiguous maps and 15 reads all six.
func LeNet5C3Connections() [][]int {
	return [][]int{
		{0, 1, 2},
		{1, 2, 3},
		{2, 3, 4},
		{3, 4, 5},
		{4, 5, 0},
		{5, 0, 1},
		{0, 1, 2, 3},
		{1, 2, 3, 4},
		{2, 3, 4, 5},
		{3, 4, 5, 0},
		{4, 5, 0, 1},
		{5, 0, 1, 2},
		{0, 1, 3, 4},
		{1, 2, 4, 5},
		{0, 2, 3, 5},
		{0, 1, 2, 3, 4, 5},
	}
}

// NewLeNet5 builds the 28×28 grayscale LeNet-5:
//
//	C1 conv 5×5 pad 2 (1→6) → sigmoid → S2 avg 2×2
//	C3 conv 5×5 (6→16, partial) → sigmoid → S4 avg 2×2
//	C5 conv 5×5 (16→120) → sigmoid
//	F6 fc 120→84 → sigmoid → output fc 84→10
//
// Parameters are zero; call Initialize or LoadWeights before use.
func NewLeNet5() (*Network, error) {
	c1, err := layers.NewConvolution(layers.ConvolutionConfig{
		InputHeight: 28, InputWidth: 28, InputChannels: 1,
		FilterHeight: 5, FilterWidth: 5, Padding: 2,
		Connections: layers.FullConnections(1, 6),
	})
	if err != nil {
		return nil, err
	}
	s2, err := layers.NewAveragePooling(6, 28, 28, 2, 2)
	if err != nil {
		return nil, err
	}
	c3, err := layers.NewConvolution(layers.ConvolutionConfig{
		InputHeight: 14, InputWidth: 14, InputChannels: 6,
		FilterHeight: 5, FilterWidth: 5,
		Connections: LeNet5C3Connections(),
	})
	if err != nil {
		return nil, err
	}
	s4, err := layers.NewAveragePooling(16, 10, 10, 2, 2)
	if err != nil {
		return nil, err
	}
	c5, err := layers.NewConvolution(layers.ConvolutionConfig{
		InputHeight: 5, InputWidth: 5, InputChannels: 16,
		FilterHeight: 5, FilterWidth: 5,
		Connections: layers.FullConnections(16, 120),
	})
	if err != nil {
		return nil, err
	}
	f6, err := layers.NewFullyConnected(120, 84)
	if err != nil {
		return nil, err
	}
	out, err := layers.NewFullyConnected(84, 10)
	if err != nil {
		return nil, err
	}

	return NewNetwork(
		c1, layers.NewSigmoid(), s2,
		c3, layers.NewSigmoid(), s4,
		c5, layers.NewSigmoid(),
		f6, layers.NewSigmoid(),
		out,
	), nil
}
