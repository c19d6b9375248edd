package layers

import (
	"fmt"
	"io"

	"lenet_lib/tensor"
)

// AveragePooling downsamples each channel of a channels×height×width input
// with non-overlapping ph×pw windows.
type AveragePooling struct {
	cache

	channels, inH, inW int
	ph, pw             int
}

// NewAveragePooling pools a channels×inH×inW input with ph×pw windows.
// Rows and columns that do not fill a whole window are ignored.
func NewAveragePooling(channels, inH, inW, ph, pw int) (*AveragePooling, error) {
	if channels <= 0 || ph <= 0 || pw <= 0 || inH < ph || inW < pw {
		return nil, fmt.Errorf("AveragePooling: %d×%d×%d input with %d×%d window: %w",
			channels, inH, inW, ph, pw, tensor.ErrDimensionMismatch)
	}
	return &AveragePooling{channels: channels, inH: inH, inW: inW, ph: ph, pw: pw}, nil
}

// OutputShape returns the per-channel output height and width.
func (a *AveragePooling) OutputShape() (outH, outW int) {
	return a.inH / a.ph, a.inW / a.pw
}

// Channels returns the number of pooled feature maps.
func (a *AveragePooling) Channels() int { return a.channels }

// Forward evaluates the layer and caches x and y for Grad.
func (a *AveragePooling) Forward(x tensor.Vector) (tensor.Vector, error) {
	return a.cache.forward(a.Eval, x)
}

// Eval averages each ph×pw window of every channel.
func (a *AveragePooling) Eval(x tensor.Vector) (tensor.Vector, error) {
	if err := checkLen(a.Tag(), "input", len(x), a.channels*a.inH*a.inW); err != nil {
		return nil, err
	}
	outH, outW := a.OutputShape()
	inSize, outSize := a.inH*a.inW, outH*outW
	inv := 1.0 / float64(a.ph*a.pw)

	y := tensor.NewVector(a.channels * outSize)
	for c := 0; c < a.channels; c++ {
		for oh := 0; oh < outH; oh++ {
			for ow := 0; ow < outW; ow++ {
				sum := 0.0
				for ph := 0; ph < a.ph; ph++ {
					for pw := 0; pw < a.pw; pw++ {
						sum += x[c*inSize+(oh*a.ph+ph)*a.inW+(ow*a.pw+pw)]
					}
				}
				y[c*outSize+oh*outW+ow] = inv * sum
			}
		}
	}
	return y, nil
}

// Grad back-propagates dy through the most recent Forward.
func (a *AveragePooling) Grad(dy tensor.Vector) (Gradient, error) {
	return a.cache.grad(a.Backward, dy)
}

// Backward spreads each output gradient evenly over its window.
func (a *AveragePooling) Backward(_, _, dy tensor.Vector) (Gradient, error) {
	outH, outW := a.OutputShape()
	if err := checkLen(a.Tag(), "upstream gradient", len(dy), a.channels*outH*outW); err != nil {
		return Gradient{}, err
	}
	inSize, outSize := a.inH*a.inW, outH*outW
	inv := 1.0 / float64(a.ph*a.pw)

	dx := tensor.NewVector(a.channels * inSize)
	for c := 0; c < a.channels; c++ {
		for oh := 0; oh < outH; oh++ {
			for ow := 0; ow < outW; ow++ {
				g := inv * dy[c*outSize+oh*outW+ow]
				for ph := 0; ph < a.ph; ph++ {
					for pw := 0; pw < a.pw; pw++ {
						dx[c*inSize+(oh*a.ph+ph)*a.inW+(ow*a.pw+pw)] = g
					}
				}
			}
		}
	}
	return Gradient{DX: dx, DW: tensor.Vector{}}, nil
}

func (a *AveragePooling) AdjustWeights(delta tensor.Vector) error {
	return checkLen(a.Tag(), "delta", len(delta), 0)
}

func (a *AveragePooling) Initialize(tensor.Generator) {}
func (a *AveragePooling) NumParams() int              { return 0 }
func (a *AveragePooling) Params() tensor.Vector       { return tensor.Vector{} }
func (a *AveragePooling) DumpWeights(io.Writer) error { return nil }
func (a *AveragePooling) LoadWeights(io.Reader) error { return nil }

func (a *AveragePooling) Tag() string {
	return fmt.Sprintf("AveragePooling_%d_%dx%d_%dx%d", a.channels, a.inH, a.inW, a.ph, a.pw)
}
