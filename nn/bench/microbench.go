package bench

import (
	"time"

	"lenet_lib/nn"
	"lenet_lib/tensor"
)

// TimeLayer runs numRuns forward, backward and update passes of m on x and
// returns the summed durations together with the layer output. The update
// adds a zero delta, so parameters are left unchanged.
func TimeLayer(m nn.Layer, x tensor.Vector, numRuns int) (fwd, bwd, upd time.Duration, y tensor.Vector, err error) {
	delta := tensor.NewVector(m.NumParams())
	for i := 0; i < numRuns; i++ {
		start := time.Now()
		y, err = m.Forward(x)
		if err != nil {
			return 0, 0, 0, nil, err
		}
		fwd += time.Since(start)

		dy := tensor.NewVector(len(y))
		dy.Fill(func() float64 { return 1 })
		start = time.Now()
		if _, err = m.Grad(dy); err != nil {
			return 0, 0, 0, nil, err
		}
		bwd += time.Since(start)

		start = time.Now()
		if err = m.AdjustWeights(delta); err != nil {
			return 0, 0, 0, nil, err
		}
		upd += time.Since(start)
	}
	return fwd, bwd, upd, y, nil
}
