// lenet-bench: per-layer forward/backward/update timings written as CSV
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"lenet_lib/nn"
	benchpkg "lenet_lib/nn/bench"
	"lenet_lib/tensor"
)

func parseCSVNames(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	var modelsCSV string
	var outPath string
	var iters int
	var warmup int
	var seed uint64

	flag.StringVar(&modelsCSV, "models", "lenet5,mnistfc", "Comma-separated list of models to run (lenet5, mnistfc)")
	flag.StringVar(&outPath, "out", "bench_results.csv", "Output CSV path")
	flag.IntVar(&iters, "iters", 20, "Timed iterations per layer")
	flag.IntVar(&warmup, "warmup", 2, "Warmup runs per layer before timing")
	flag.Uint64Var(&seed, "seed", 1, "Random seed for weights and input")
	flag.Parse()

	f, err := os.Create(outPath)
	if err != nil {
		log.Fatalf("create %s: %v", outPath, err)
	}
	defer f.Close()

	header := true
	for _, name := range parseCSVNames(modelsCSV) {
		built, err := benchpkg.BuildNet(name)
		if err != nil {
			log.Fatalf("%v", err)
		}
		built.Net.Initialize(nn.NormalGenerator(0.1, seed))
		x := tensor.NewVector(built.InputDim)
		x.Fill(nn.UniformGenerator(0, 1, seed+1))

		points, err := benchpkg.RunLayerBenchmarks(built, x, iters, warmup)
		if err != nil {
			log.Fatalf("benchmark %s: %v", name, err)
		}
		if err := benchpkg.WriteCSV(f, points, header); err != nil {
			log.Fatalf("write %s: %v", outPath, err)
		}
		header = false

		for _, p := range points {
			fmt.Printf("%-8s %2d %-36s fwd %10v  bwd %10v  upd %10v\n", p.Net, p.Layer, p.Tag, p.Fwd, p.Bwd, p.Upd)
		}
	}
	fmt.Printf("Results written to %s\n", outPath)
}
