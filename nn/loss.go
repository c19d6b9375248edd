package nn

import (
	"fmt"
	"math"

	"lenet_lib/tensor"
)

// Softmax exponentiates every logit and normalizes by the sum. Logits are
// not shifted by their maximum, so inputs of large magnitude overflow to
// +Inf and produce NaN probabilities.
func Softmax(logits tensor.Vector) tensor.Vector {
	p := logits.Clone()
	p.Apply(math.Exp)
	return p.Scale(1 / p.Sum())
}

// CrossEntropy returns -Σ y_i log p_i. Terms with y_i == 0 are skipped so a
// zero probability on a wrong class does not turn the loss into NaN.
func CrossEntropy(p, y tensor.Vector) (float64, error) {
	if len(p) != len(y) {
		return 0, fmt.Errorf("cross entropy: %d probabilities, %d labels: %w", len(p), len(y), tensor.ErrDimensionMismatch)
	}
	loss := 0.0
	for i := range y {
		if y[i] == 0 {
			continue
		}
		loss -= y[i] * math.Log(p[i])
	}
	return loss, nil
}

// outputError is the seed fed into the last layer: y - p. Descend adds
// rate times the accumulated seed-driven gradients, which moves the
// parameters against the cross-entropy gradient.
func outputError(p, y tensor.Vector) (tensor.Vector, error) {
	return y.Add(p.Scale(-1))
}
