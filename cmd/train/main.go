// lenet-train: single-process LeNet-5 trainer on MNIST
//
// Usage:
//
//	lenet-train --data=./mnist --epochs=5 --batch=16 --lr=0.1 --weights=lenet.bin
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/exp/rand"

	"lenet_lib/dataset"
	"lenet_lib/nn"
	"lenet_lib/utils"
)

var (
	flagCfg     = utils.DefaultConfig()
	weightsFile = flag.String("weights", "", "Output weights file (binary)")
	loadFile    = flag.String("load", "", "Resume from a binary weights file")
	jsonFile    = flag.String("json", "", "Also export weights as JSON")
	envFile     = flag.String("env", ".env", "Environment file with LENET_* defaults")
	verbose     = flag.Bool("verbose", true, "Verbose output")
)

func init() {
	flag.StringVar(&flagCfg.DataDir, "data", flagCfg.DataDir, "MNIST directory")
	flag.IntVar(&flagCfg.Epochs, "epochs", flagCfg.Epochs, "Number of training epochs")
	flag.IntVar(&flagCfg.BatchSize, "batch", flagCfg.BatchSize, "Samples per weight update")
	flag.Float64Var(&flagCfg.LearningRate, "lr", flagCfg.LearningRate, "Learning rate")
	flag.Uint64Var(&flagCfg.Seed, "seed", flagCfg.Seed, "Random seed")
	flag.Float64Var(&flagCfg.Sigma, "sigma", flagCfg.Sigma, "Stddev of the initial weights")
	flag.IntVar(&flagCfg.Samples, "samples", flagCfg.Samples, "Training samples per epoch (0 = all)")
}

// resolveConfig layers explicit flags over LENET_* variables over defaults.
func resolveConfig() utils.Config {
	cfg := utils.ConfigFromEnv(utils.DefaultConfig())
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "data":
			cfg.DataDir = flagCfg.DataDir
		case "epochs":
			cfg.Epochs = flagCfg.Epochs
		case "batch":
			cfg.BatchSize = flagCfg.BatchSize
		case "lr":
			cfg.LearningRate = flagCfg.LearningRate
		case "seed":
			cfg.Seed = flagCfg.Seed
		case "sigma":
			cfg.Sigma = flagCfg.Sigma
		case "samples":
			cfg.Samples = flagCfg.Samples
		}
	})
	return cfg
}

func main() {
	flag.Parse()
	utils.Verbose = *verbose
	if err := utils.LoadEnv(*envFile); err != nil {
		log.Fatalf("load %s: %v", *envFile, err)
	}
	cfg := resolveConfig()
	if err := utils.ValidateConfig(&cfg); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	fmt.Println("=== LeNet-5 Trainer ===")
	fmt.Printf("\nConfiguration:\n")
	fmt.Printf("  Data:          %s\n", cfg.DataDir)
	fmt.Printf("  Epochs:        %d\n", cfg.Epochs)
	fmt.Printf("  Batch size:    %d\n", cfg.BatchSize)
	fmt.Printf("  Learning Rate: %.4f\n", cfg.LearningRate)
	fmt.Printf("  Init sigma:    %.4f\n", cfg.Sigma)
	fmt.Printf("  Seed:          %d\n", cfg.Seed)
	fmt.Println()

	stats := &utils.TimingStats{}
	totalStart := time.Now()

	start := time.Now()
	data, err := dataset.Load(cfg.DataDir)
	if err != nil {
		log.Fatalf("load MNIST: %v", err)
	}
	stats.DataLoadingTime = time.Since(start)
	fmt.Printf("Train set: %d images of %dx%d\n", data.Train.Len(), data.Train.Images.Rows, data.Train.Images.Cols)
	fmt.Printf("Test set:  %d images of %dx%d\n", data.Test.Len(), data.Test.Images.Rows, data.Test.Images.Cols)

	start = time.Now()
	net, err := nn.NewLeNet5()
	if err != nil {
		log.Fatalf("build model: %v", err)
	}
	if *loadFile != "" {
		if err := loadWeights(net, *loadFile); err != nil {
			log.Fatalf("load weights: %v", err)
		}
		fmt.Printf("Resumed from %s\n", *loadFile)
	} else {
		net.Initialize(nn.NormalGenerator(cfg.Sigma, cfg.Seed))
	}
	stats.ModelInitTime = time.Since(start)
	fmt.Printf("\nModel: %d layers, %d parameters\n", len(net.Layers()), net.NumParams())

	n := cfg.Samples
	if n <= 0 || n > data.Train.Len() {
		n = data.Train.Len()
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	testX, testY := data.Test.Samples(0)

	fmt.Println("\nStarting training...")
	steps := 0
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		epochStart := time.Now()
		epochLoss := 0.0

		for i, idx := range rng.Perm(data.Train.Len())[:n] {
			x, y := data.Train.Sample(idx)

			start = time.Now()
			loss, err := net.TrainStep(x, y)
			if err != nil {
				log.Fatalf("sample %d: %v", idx, err)
			}
			stats.TrainStepTime += time.Since(start)
			epochLoss += loss
			steps++

			if net.BatchSize() == cfg.BatchSize || i == n-1 {
				start = time.Now()
				if err := net.Descend(cfg.LearningRate / float64(net.BatchSize())); err != nil {
					log.Fatalf("descend: %v", err)
				}
				stats.UpdateTime += time.Since(start)
			}
			if *verbose && (i+1)%1000 == 0 {
				fmt.Printf("  [%d/%d] loss %.6f\n", i+1, n, epochLoss/float64(i+1))
			}
		}

		start = time.Now()
		acc, testLoss, err := net.Evaluate(testX, testY)
		if err != nil {
			log.Fatalf("evaluate: %v", err)
		}
		stats.EvaluationTime += time.Since(start)
		fmt.Printf("Epoch %d/%d | Loss: %.6f | Test loss: %.6f | Test accuracy: %.2f%% | Time: %.2fs\n",
			epoch+1, cfg.Epochs, epochLoss/float64(n), testLoss, acc*100, time.Since(epochStart).Seconds())
	}

	if *weightsFile != "" {
		fmt.Printf("\nSaving weights to %s...\n", *weightsFile)
		start = time.Now()
		if err := saveWeights(net, *weightsFile); err != nil {
			log.Fatalf("save weights: %v", err)
		}
		stats.WeightIOTime += time.Since(start)
	}
	if *jsonFile != "" {
		fmt.Printf("Exporting weights to %s...\n", *jsonFile)
		mw, err := utils.ExportWeights(net)
		if err != nil {
			log.Fatalf("export weights: %v", err)
		}
		if err := utils.SaveWeights(*jsonFile, mw); err != nil {
			log.Fatalf("export weights: %v", err)
		}
		fmt.Printf("Run ID: %s\n", mw.RunID)
	}

	stats.TotalTime = time.Since(totalStart)
	fmt.Printf("\nTraining complete! Total time: %.2fs\n", stats.TotalTime.Seconds())
	utils.PrintTimingStats(stats, steps)
}

func saveWeights(net *nn.Network, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := net.DumpWeights(w); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func loadWeights(net *nn.Network, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return net.LoadWeights(bufio.NewReader(f))
}
