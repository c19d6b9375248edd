package utils

import (
	"fmt"
)

// Config holds training configuration
type Config struct {
	DataDir      string
	Epochs       int
	BatchSize    int
	LearningRate float64
	Sigma        float64
	Seed         uint64
	Samples      int // 0 means the whole training set
}

// DefaultConfig returns the configuration used when neither flags nor the
// environment override a value.
func DefaultConfig() Config {
	return Config{
		DataDir:      "data",
		Epochs:       1,
		BatchSize:    16,
		LearningRate: 0.1,
		Sigma:        0.1,
		Seed:         1,
	}
}

// ConfigFromEnv overlays LENET_* environment variables on base.
func ConfigFromEnv(base Config) Config {
	return Config{
		DataDir:      EnvString("LENET_DATA", base.DataDir),
		Epochs:       EnvInt("LENET_EPOCHS", base.Epochs),
		BatchSize:    EnvInt("LENET_BATCH", base.BatchSize),
		LearningRate: EnvFloat("LENET_LR", base.LearningRate),
		Sigma:        EnvFloat("LENET_SIGMA", base.Sigma),
		Seed:         EnvUint64("LENET_SEED", base.Seed),
		Samples:      EnvInt("LENET_SAMPLES", base.Samples),
	}
}

// ValidateConfig validates training configuration
func ValidateConfig(config *Config) error {
	if config.DataDir == "" {
		return fmt.Errorf("data directory must be set")
	}

	if config.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive")
	}

	if config.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}

	if config.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive")
	}

	if config.Sigma <= 0 {
		return fmt.Errorf("initialization sigma must be positive")
	}

	if config.Samples < 0 {
		return fmt.Errorf("samples must not be negative")
	}

	return nil
}
