package nn

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"lenet_lib/tensor"
)

// NormalGenerator draws from N(0, sigma²) with a seeded source.
func NormalGenerator(sigma float64, seed uint64) tensor.Generator {
	dist := distuv.Normal{
		Mu:    0,
		Sigma: sigma,
		Src:   rand.NewSource(seed),
	}
	return dist.Rand
}

// UniformGenerator draws from U[min, max) with a seeded source.
func UniformGenerator(min, max float64, seed uint64) tensor.Generator {
	dist := distuv.Uniform{
		Min: min,
		Max: max,
		Src: rand.NewSource(seed),
	}
	return dist.Rand
}
