// lenet-infer: LeNet-5 inference on the MNIST test set using saved weights
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"lenet_lib/dataset"
	"lenet_lib/nn"
	"lenet_lib/tensor"
	"lenet_lib/utils"
)

var (
	dataDir     = flag.String("data", "data", "MNIST directory")
	weightsFile = flag.String("weights", "", "Weights file (binary, or JSON when it ends in .json)")
	index       = flag.Int("index", 0, "Test sample to classify")
	topK        = flag.Int("topk", 3, "Top predictions to show")
	limit       = flag.Int("limit", 0, "Test samples to evaluate (0 = all, -1 = none)")
	verbose     = flag.Bool("verbose", true, "Verbose output")
)

func main() {
	flag.Parse()
	utils.Verbose = *verbose

	fmt.Println("=== LeNet-5 Inference ===")
	if *weightsFile == "" {
		log.Fatalf("no weights file given, use -weights")
	}

	stats := &utils.TimingStats{}
	totalStart := time.Now()

	start := time.Now()
	test, err := dataset.LoadSet(
		filepath.Join(*dataDir, dataset.TestImagesFile),
		filepath.Join(*dataDir, dataset.TestLabelsFile),
	)
	if err != nil {
		log.Fatalf("load MNIST: %v", err)
	}
	stats.DataLoadingTime = time.Since(start)
	fmt.Printf("Test set: %d images of %dx%d\n", test.Len(), test.Images.Rows, test.Images.Cols)

	net, err := nn.NewLeNet5()
	if err != nil {
		log.Fatalf("build model: %v", err)
	}
	start = time.Now()
	if err := loadWeights(net, *weightsFile); err != nil {
		log.Fatalf("load weights: %v", err)
	}
	stats.WeightIOTime = time.Since(start)
	fmt.Printf("Loaded %d parameters from %s\n", net.NumParams(), *weightsFile)

	if *topK < 0 {
		log.Fatalf("topk %d must not be negative", *topK)
	}
	if *index < 0 || *index >= test.Len() {
		log.Fatalf("index %d out of range [0, %d)", *index, test.Len())
	}
	x, y := test.Sample(*index)
	class, probs, err := net.Predict(x)
	if err != nil {
		log.Fatalf("predict: %v", err)
	}
	fmt.Printf("\nSample %d: label %d, predicted %d\n", *index, y.ArgMax(), class)
	for rank, c := range topClasses(probs, *topK) {
		fmt.Printf("  #%d: class %d (%.2f%%)\n", rank+1, c, probs[c]*100)
	}

	if *limit >= 0 {
		xs, ys := test.Samples(*limit)
		start = time.Now()
		acc, loss, err := net.Evaluate(xs, ys)
		if err != nil {
			log.Fatalf("evaluate: %v", err)
		}
		stats.EvaluationTime = time.Since(start)
		fmt.Printf("\nTest accuracy: %.2f%% | Test loss: %.6f | Samples: %d\n", acc*100, loss, len(xs))
	}

	stats.TotalTime = time.Since(totalStart)
	utils.PrintTimingStats(stats, 0)
}

// topClasses returns up to k class indices ordered by falling probability.
// Ties keep the lower class first.
func topClasses(probs tensor.Vector, k int) []int {
	order := make([]int, len(probs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return probs[order[a]] > probs[order[b]] })
	return order[:max(0, min(k, len(order)))]
}

func loadWeights(net *nn.Network, path string) error {
	if strings.HasSuffix(path, ".json") {
		mw, err := utils.LoadWeights(path)
		if err != nil {
			return err
		}
		if *verbose {
			fmt.Printf("Weights version %s, run %s\n", mw.Version, mw.RunID)
		}
		return utils.ImportWeights(net, mw)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return net.LoadWeights(bufio.NewReader(f))
}
