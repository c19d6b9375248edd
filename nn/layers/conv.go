package layers

import (
	"fmt"
	"io"

	"lenet_lib/tensor"
)

// ConvolutionConfig describes a Convolution layer.
//
// Connections has one entry per output channel listing the input channels
// that output channel reads. Partial tables such as the LeNet-5 C3 layer are
// allowed; FullConnections builds the dense table.
type ConvolutionConfig struct {
	InputHeight, InputWidth, InputChannels int
	FilterHeight, FilterWidth              int
	Padding                                int
	Connections                            [][]int
	NoBias                                 bool
}

// FullConnections returns a table where each of out channels reads all in
// input channels.
func FullConnections(in, out int) [][]int {
	table := make([][]int, out)
	for oc := range table {
		table[oc] = make([]int, in)
		for ic := range table[oc] {
			table[oc][ic] = ic
		}
	}
	return table
}

// Channel is one output feature map.
type Channel struct {
	Weights tensor.Vector // len(Inputs) × fh × fw, row-major per input
	Bias    float64
	Inputs  []int
}

// Convolution is a multi-channel, zero-padded, optionally sparsely connected
// 2-D convolution with stride 1. Input and output are flattened
// channels×height×width.
type Convolution struct {
	cache

	inH, inW, inChan int
	kh, kw           int
	padding          int
	bias             bool
	outH, outW       int

	Channels []Channel

	// weightsStart[c] is the offset of channel c in the flattened parameters.
	weightsStart []int
	numParams    int
}

// NewConvolution validates cfg and allocates a zero-initialized layer.
func NewConvolution(cfg ConvolutionConfig) (*Convolution, error) {
	c := &Convolution{
		inH:     cfg.InputHeight,
		inW:     cfg.InputWidth,
		inChan:  cfg.InputChannels,
		kh:      cfg.FilterHeight,
		kw:      cfg.FilterWidth,
		padding: cfg.Padding,
		bias:    !cfg.NoBias,
	}
	c.outH = c.inH - c.kh + 1 + 2*c.padding
	c.outW = c.inW - c.kw + 1 + 2*c.padding

	if c.inH <= 0 || c.inW <= 0 || c.inChan <= 0 || c.kh <= 0 || c.kw <= 0 || c.padding < 0 {
		return nil, fmt.Errorf("%s: invalid geometry: %w", c.Tag(), tensor.ErrDimensionMismatch)
	}
	if c.outH <= 0 || c.outW <= 0 {
		return nil, fmt.Errorf("%s: filter larger than padded input: %w", c.Tag(), tensor.ErrDimensionMismatch)
	}
	if len(cfg.Connections) == 0 {
		return nil, fmt.Errorf("%s: no output channels: %w", c.Tag(), tensor.ErrDimensionMismatch)
	}

	c.Channels = make([]Channel, len(cfg.Connections))
	c.weightsStart = make([]int, len(cfg.Connections))
	offset := 0
	for oc, inputs := range cfg.Connections {
		if len(inputs) == 0 {
			return nil, fmt.Errorf("%s: output channel %d reads no input: %w", c.Tag(), oc, tensor.ErrDimensionMismatch)
		}
		for _, ic := range inputs {
			if ic < 0 || ic >= c.inChan {
				return nil, fmt.Errorf("%s: output channel %d reads input %d of %d: %w", c.Tag(), oc, ic, c.inChan, tensor.ErrDimensionMismatch)
			}
		}
		c.Channels[oc] = Channel{
			Weights: tensor.NewVector(len(inputs) * c.kh * c.kw),
			Inputs:  append([]int(nil), inputs...),
		}
		c.weightsStart[oc] = offset
		offset += c.channelParams(oc)
	}
	c.numParams = offset
	return c, nil
}

// channelParams is the number of parameters channel oc contributes.
func (c *Convolution) channelParams(oc int) int {
	n := len(c.Channels[oc].Weights)
	if c.bias {
		n++
	}
	return n
}

// OutputShape returns the number of output channels and the per-channel
// output height and width.
func (c *Convolution) OutputShape() (channels, outH, outW int) {
	return len(c.Channels), c.outH, c.outW
}

// WeightsStart returns the offset of channel oc in the flattened parameters.
func (c *Convolution) WeightsStart(oc int) int { return c.weightsStart[oc] }

// HasBias reports whether each channel carries a bias term.
func (c *Convolution) HasBias() bool { return c.bias }

// Forward evaluates the layer and caches x and y for Grad.
func (c *Convolution) Forward(x tensor.Vector) (tensor.Vector, error) {
	return c.cache.forward(c.Eval, x)
}

// Eval convolves each output channel's filters over its connected
// input channels and adds the bias.
func (c *Convolution) Eval(x tensor.Vector) (tensor.Vector, error) {
	if err := checkLen(c.Tag(), "input", len(x), c.inChan*c.inH*c.inW); err != nil {
		return nil, err
	}
	inSize, outSize, kSize := c.inH*c.inW, c.outH*c.outW, c.kh*c.kw

	y := tensor.NewVector(len(c.Channels) * outSize)
	for oc, ch := range c.Channels {
		for oy := 0; oy < c.outH; oy++ {
			for ox := 0; ox < c.outW; ox++ {
				sum := 0.0
				for k, ic := range ch.Inputs {
					for dy := 0; dy < c.kh; dy++ {
						iy := oy + dy - c.padding
						if iy < 0 || iy >= c.inH {
							continue
						}
						for dx := 0; dx < c.kw; dx++ {
							ix := ox + dx - c.padding
							if ix < 0 || ix >= c.inW {
								continue
							}
							sum += ch.Weights[k*kSize+dy*c.kw+dx] * x[ic*inSize+iy*c.inW+ix]
						}
					}
				}
				if c.bias {
					sum += ch.Bias
				}
				y[oc*outSize+oy*c.outW+ox] = sum
			}
		}
	}
	return y, nil
}

// Grad back-propagates dy through the most recent Forward.
func (c *Convolution) Grad(dy tensor.Vector) (Gradient, error) {
	return c.cache.grad(c.Backward, dy)
}

// Backward mirrors the Eval loop nest: every (weight, input) product that
// contributed to an output receives that output's upstream gradient.
func (c *Convolution) Backward(x, _, gradOut tensor.Vector) (Gradient, error) {
	if err := checkLen(c.Tag(), "input", len(x), c.inChan*c.inH*c.inW); err != nil {
		return Gradient{}, err
	}
	if err := checkLen(c.Tag(), "upstream gradient", len(gradOut), len(c.Channels)*c.outH*c.outW); err != nil {
		return Gradient{}, err
	}
	inSize, outSize, kSize := c.inH*c.inW, c.outH*c.outW, c.kh*c.kw

	dx := tensor.NewVector(len(x))
	dw := tensor.NewVector(c.numParams)
	for oc, ch := range c.Channels {
		start := c.weightsStart[oc]
		biasIdx := start + len(ch.Weights)
		for oy := 0; oy < c.outH; oy++ {
			for ox := 0; ox < c.outW; ox++ {
				g := gradOut[oc*outSize+oy*c.outW+ox]
				for k, ic := range ch.Inputs {
					for dy := 0; dy < c.kh; dy++ {
						iy := oy + dy - c.padding
						if iy < 0 || iy >= c.inH {
							continue
						}
						for dxi := 0; dxi < c.kw; dxi++ {
							ix := ox + dxi - c.padding
							if ix < 0 || ix >= c.inW {
								continue
							}
							wIdx := k*kSize + dy*c.kw + dxi
							inIdx := ic*inSize + iy*c.inW + ix
							dw[start+wIdx] += g * x[inIdx]
							dx[inIdx] += g * ch.Weights[wIdx]
						}
					}
				}
				if c.bias {
					dw[biasIdx] += g
				}
			}
		}
	}
	return Gradient{DX: dx, DW: dw}, nil
}

// AdjustWeights adds delta, laid out per channel as weights then bias, to
// the parameters.
func (c *Convolution) AdjustWeights(delta tensor.Vector) error {
	if err := checkLen(c.Tag(), "delta", len(delta), c.numParams); err != nil {
		return err
	}
	for oc := range c.Channels {
		ch := &c.Channels[oc]
		start := c.weightsStart[oc]
		n := len(ch.Weights)
		if err := ch.Weights.AddInPlace(delta[start : start+n]); err != nil {
			return err
		}
		if c.bias {
			ch.Bias += delta[start+n]
		}
	}
	return nil
}

// Initialize fills each channel's weights then its bias from gen.
func (c *Convolution) Initialize(gen tensor.Generator) {
	for oc := range c.Channels {
		c.Channels[oc].Weights.Fill(gen)
		if c.bias {
			c.Channels[oc].Bias = gen()
		}
	}
}

func (c *Convolution) NumParams() int { return c.numParams }

// Params returns a flattened copy of the parameters in dump order.
func (c *Convolution) Params() tensor.Vector {
	out := tensor.NewVector(c.numParams)
	for oc, ch := range c.Channels {
		start := c.weightsStart[oc]
		copy(out[start:], ch.Weights)
		if c.bias {
			out[start+len(ch.Weights)] = ch.Bias
		}
	}
	return out
}

// DumpWeights writes, per channel, its weights followed by its bias.
func (c *Convolution) DumpWeights(w io.Writer) error {
	for oc := range c.Channels {
		ch := &c.Channels[oc]
		if err := writeFloats(w, ch.Weights); err != nil {
			return fmt.Errorf("%s: dump channel %d: %w", c.Tag(), oc, err)
		}
		if !c.bias {
			continue
		}
		if err := writeFloats(w, []float64{ch.Bias}); err != nil {
			return fmt.Errorf("%s: dump channel %d bias: %w", c.Tag(), oc, err)
		}
	}
	return nil
}

// LoadWeights reads the layout written by DumpWeights.
func (c *Convolution) LoadWeights(r io.Reader) error {
	for oc := range c.Channels {
		ch := &c.Channels[oc]
		if err := readFloats(r, ch.Weights); err != nil {
			return fmt.Errorf("%s: load channel %d: %w", c.Tag(), oc, err)
		}
		if !c.bias {
			continue
		}
		b := make([]float64, 1)
		if err := readFloats(r, b); err != nil {
			return fmt.Errorf("%s: load channel %d bias: %w", c.Tag(), oc, err)
		}
		ch.Bias = b[0]
	}
	return nil
}

func (c *Convolution) Tag() string {
	return fmt.Sprintf("Convolution_%d_%d_%dx%d", c.inChan, len(c.Channels), c.kh, c.kw)
}
