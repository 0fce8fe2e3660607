package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// Config holds training configuration
type Config struct {
	Architecture   []int
	Activation     string
	Init           string
	Optimizer      string
	Epochs         int
	BatchSize      int
	LearningRate   float64
	WeightDecay    float64
	Momentum       float64
	BiasCorrection string // Adam bias-correction exponent: "layer" or "step"
	Seed           uint64
	ValFraction    float64
	TestFraction   float64
}

// DefaultConfig mirrors the digit-classification setup.
func DefaultConfig() Config {
	return Config{
		Architecture:   []int{64, 32, 16, 10},
		Activation:     "relu",
		Init:           "xavier",
		Optimizer:      "adam",
		Epochs:         10,
		BatchSize:      32,
		LearningRate:   0.001,
		Momentum:       0.9,
		BiasCorrection: "layer",
		Seed:           42,
		ValFraction:    0.15,
		TestFraction:   0.15,
	}
}

// ParseArchitecture parses architecture string into slice of integers.
// Layer sizes may be separated by spaces or commas.
func ParseArchitecture(archStr string) ([]int, error) {
	archParts := strings.FieldsFunc(archStr, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	arch := make([]int, len(archParts))
	for i, s := range archParts {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		arch[i] = n
	}
	return arch, nil
}

// ValidateConfig validates training configuration
func ValidateConfig(config *Config) error {
	if len(config.Architecture) < 2 {
		return fmt.Errorf("architecture must have at least 2 layers (input and output)")
	}

	for i, n := range config.Architecture {
		if n <= 0 {
			return fmt.Errorf("layer %d must have a positive size, got %d", i, n)
		}
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

	if config.WeightDecay < 0 {
		return fmt.Errorf("weight decay must not be negative")
	}

	if config.ValFraction <= 0 || config.TestFraction <= 0 || config.ValFraction+config.TestFraction >= 1 {
		return fmt.Errorf("validation and test fractions must be positive and leave room for training data")
	}

	return nil
}
