package nn

import (
	"fmt"
	"io"

	"lenet_lib/tensor"
)

// Network chains layers and accumulates their parameter gradients between
// calls to Descend.
type Network struct {
	layers []Layer

	// gradients holds one accumulated DW per layer in reverse layer order:
	// gradients[0] belongs to the last layer. Empty between batches.
	gradients []tensor.Vector
	batch     int
}

func NewNetwork(layers ...Layer) *Network {
	return &Network{layers: layers}
}

// Layers returns the layers in forward order.
func (n *Network) Layers() []Layer { return n.layers }

// NumParams is the total parameter count over all layers.
func (n *Network) NumParams() int {
	total := 0
	for _, l := range n.layers {
		total += l.NumParams()
	}
	return total
}

// BatchSize is the number of TrainStep calls accumulated since the last
// Descend or Reset.
func (n *Network) BatchSize() int { return n.batch }

// Forward runs x through every layer, refreshing each layer's cache.
func (n *Network) Forward(x tensor.Vector) (tensor.Vector, error) {
	var err error
	out := x
	for i, l := range n.layers {
		out, err = l.Forward(out)
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, l.Tag(), err)
		}
	}
	return out, nil
}

// eval is Forward without touching any cache.
func (n *Network) eval(x tensor.Vector) (tensor.Vector, error) {
	var err error
	out := x
	for i, l := range n.layers {
		out, err = l.Eval(out)
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, l.Tag(), err)
		}
	}
	return out, nil
}

// TrainStep runs one sample forward, back-propagates y - softmax(output)
// and adds every layer's DW to the accumulator. It returns the
// cross-entropy loss of the sample. The accumulator is left untouched when
// an error is returned.
func (n *Network) TrainStep(x, y tensor.Vector) (float64, error) {
	out, err := n.Forward(x)
	if err != nil {
		return 0, err
	}
	p := Softmax(out)
	loss, err := CrossEntropy(p, y)
	if err != nil {
		return 0, err
	}
	dy, err := outputError(p, y)
	if err != nil {
		return 0, err
	}

	step := make([]tensor.Vector, 0, len(n.layers))
	for i := len(n.layers) - 1; i >= 0; i-- {
		g, err := n.layers[i].Grad(dy)
		if err != nil {
			return 0, fmt.Errorf("layer %d (%s): %w", i, n.layers[i].Tag(), err)
		}
		step = append(step, g.DW)
		dy = g.DX
	}

	if len(n.gradients) == 0 {
		n.gradients = step
	} else {
		for i := range step {
			if err := n.gradients[i].AddInPlace(step[i]); err != nil {
				return 0, err
			}
		}
	}
	n.batch++
	return loss, nil
}

// Descend adds rate times the accumulated gradients to every layer and
// clears the accumulator. Gradients within a batch are summed, so callers
// that want a mean pass rate divided by BatchSize. Descend on an empty
// accumulator only resets the batch count.
func (n *Network) Descend(rate float64) error {
	if len(n.gradients) == 0 {
		n.Reset()
		return nil
	}
	last := len(n.layers) - 1
	for i, l := range n.layers {
		if err := l.AdjustWeights(n.gradients[last-i].Scale(rate)); err != nil {
			return fmt.Errorf("layer %d (%s): %w", i, l.Tag(), err)
		}
	}
	n.Reset()
	return nil
}

// Reset drops the accumulated gradients without touching the parameters.
func (n *Network) Reset() {
	n.gradients = nil
	n.batch = 0
}

// Initialize draws every parameter from gen, layer by layer in order.
func (n *Network) Initialize(gen tensor.Generator) {
	for _, l := range n.layers {
		l.Initialize(gen)
	}
}

// DumpWeights writes every layer's parameters to w as one stream.
func (n *Network) DumpWeights(w io.Writer) error {
	for i, l := range n.layers {
		if err := l.DumpWeights(w); err != nil {
			return fmt.Errorf("layer %d: %w", i, err)
		}
	}
	return nil
}

// LoadWeights reads a stream written by DumpWeights on a network of the same
// topology.
func (n *Network) LoadWeights(r io.Reader) error {
	for i, l := range n.layers {
		if err := l.LoadWeights(r); err != nil {
			return fmt.Errorf("layer %d: %w", i, err)
		}
	}
	return nil
}

// Predict returns the most probable class and the softmax probabilities.
func (n *Network) Predict(x tensor.Vector) (int, tensor.Vector, error) {
	out, err := n.eval(x)
	if err != nil {
		return -1, nil, err
	}
	p := Softmax(out)
	return p.ArgMax(), p, nil
}

// Evaluate returns the accuracy and mean cross-entropy over the samples.
func (n *Network) Evaluate(xs, ys []tensor.Vector) (accuracy, meanLoss float64, err error) {
	if len(xs) != len(ys) {
		return 0, 0, fmt.Errorf("evaluate: %d inputs, %d labels: %w", len(xs), len(ys), tensor.ErrDimensionMismatch)
	}
	if len(xs) == 0 {
		return 0, 0, nil
	}
	correct, total := 0, 0.0
	for i := range xs {
		class, p, err := n.Predict(xs[i])
		if err != nil {
			return 0, 0, fmt.Errorf("sample %d: %w", i, err)
		}
		loss, err := CrossEntropy(p, ys[i])
		if err != nil {
			return 0, 0, fmt.Errorf("sample %d: %w", i, err)
		}
		total += loss
		if class == ys[i].ArgMax() {
			correct++
		}
	}
	count := float64(len(xs))
	return float64(correct) / count, total / count, nil
}
