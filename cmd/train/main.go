// mlp-train: trains a fully connected classifier and reports held-out accuracy.
//
// Usage:
//
//	mlp-train --data=digits.csv --arch="64 32 16 10" --optimizer=adam --epochs=10
//
// Without --data a 10-class Gaussian-blob set of 1797 samples is generated.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"gonum.org/v1/gonum/mat"

	"mlptrain/core/ckkswrapper"
	"mlptrain/data"
	"mlptrain/metrics"
	"mlptrain/nn"
	"mlptrain/split"
	"mlptrain/utils"
)

var defaults = utils.DefaultConfig()

var (
	dataFile       = flag.String("data", "", "CSV dataset, one sample per line (synthetic data when empty)")
	labelFirst     = flag.Bool("label-first", false, "Label is the first CSV column instead of the last")
	arch           = flag.String("arch", "64 32 16 10", "Layer sizes, input and output included")
	activation     = flag.String("activation", defaults.Activation, "Hidden activation: sigmoid, tanh, relu")
	initScheme     = flag.String("init", defaults.Init, "Weight init: xavier, he, normal")
	optimizer      = flag.String("optimizer", defaults.Optimizer, "Optimizer: sgd, momentum, adam")
	epochs         = flag.Int("epochs", defaults.Epochs, "Number of training epochs")
	batchSize      = flag.Int("batch", defaults.BatchSize, "Mini-batch size")
	learningRate   = flag.Float64("lr", defaults.LearningRate, "Learning rate")
	weightDecay    = flag.Float64("wd", defaults.WeightDecay, "L2 weight decay coefficient")
	momentum       = flag.Float64("momentum", defaults.Momentum, "Momentum coefficient")
	biasCorrection = flag.String("bias-correction", defaults.BiasCorrection, "Adam bias-correction exponent: layer or step")
	seed           = flag.Uint64("seed", defaults.Seed, "Random seed")
	samples        = flag.Int("samples", 1797, "Number of synthetic samples")
	valFraction    = flag.Float64("val", defaults.ValFraction, "Validation fraction")
	testFraction   = flag.Float64("test", defaults.TestFraction, "Test fraction")
	analysisFile   = flag.String("analysis", "", "Append a summary row to this CSV file")
	encrypted      = flag.Bool("encrypted", false, "Also score the test set with the first layer under CKKS")
	logN           = flag.Int("logN", 13, "Ring dimension log2 for encrypted scoring (12-14)")
	verbose        = flag.Bool("verbose", true, "Verbose output")
)

func main() {
	flag.Parse()
	utils.Verbose = *verbose

	cfg, err := buildConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func buildConfig() (utils.Config, error) {
	architecture, err := utils.ParseArchitecture(*arch)
	if err != nil {
		return utils.Config{}, err
	}
	cfg := utils.Config{
		Architecture:   architecture,
		Activation:     *activation,
		Init:           *initScheme,
		Optimizer:      *optimizer,
		Epochs:         *epochs,
		BatchSize:      *batchSize,
		LearningRate:   *learningRate,
		WeightDecay:    *weightDecay,
		Momentum:       *momentum,
		BiasCorrection: *biasCorrection,
		Seed:           *seed,
		ValFraction:    *valFraction,
		TestFraction:   *testFraction,
	}
	return cfg, utils.ValidateConfig(&cfg)
}

func run(cfg utils.Config) error {
	stats := &utils.TimingStats{}
	totalStart := time.Now()

	fmt.Printf("\nConfiguration:\n")
	fmt.Printf("  Architecture:  %v\n", cfg.Architecture)
	fmt.Printf("  Activation:    %s\n", cfg.Activation)
	fmt.Printf("  Optimizer:     %s\n", cfg.Optimizer)
	fmt.Printf("  Epochs:        %d\n", cfg.Epochs)
	fmt.Printf("  Batch size:    %d\n", cfg.BatchSize)
	fmt.Printf("  Learning Rate: %.4f\n", cfg.LearningRate)
	fmt.Printf("  Weight decay:  %.4f\n", cfg.WeightDecay)
	fmt.Println()

	start := time.Now()
	parts, err := loadData(cfg)
	if err != nil {
		return err
	}
	stats.DataLoadingTime = time.Since(start)
	fmt.Printf("Samples: %d train, %d validation, %d test\n", parts.Train.Len(), parts.Val.Len(), parts.Test.Len())

	yTrain, err := parts.Train.OneHot()
	if err != nil {
		return err
	}
	yVal, err := parts.Val.OneHot()
	if err != nil {
		return err
	}
	yTest, err := parts.Test.OneHot()
	if err != nil {
		return err
	}

	start = time.Now()
	network, err := nn.NewNetwork(nn.Config{
		Sizes:      cfg.Architecture,
		Activation: cfg.Activation,
		Init:       cfg.Init,
		Seed:       cfg.Seed,
	})
	if err != nil {
		return err
	}
	bc, err := nn.ParseBiasCorrection(cfg.BiasCorrection)
	if err != nil {
		return err
	}
	stats.ModelInitTime = time.Since(start)

	fmt.Println("\nStarting training...")
	trainStart := time.Now()
	history, err := network.Train(parts.Train.X, yTrain, parts.Val.X, yVal, nn.TrainConfig{
		Epochs:       cfg.Epochs,
		BatchSize:    cfg.BatchSize,
		LearningRate: cfg.LearningRate,
		Optimizer:    cfg.Optimizer,
		WeightDecay:  cfg.WeightDecay,
		Momentum:     cfg.Momentum,
		Adam:         nn.AdamConfig{BiasCorrection: bc},
		Stats:        stats,
	})
	if err != nil {
		return err
	}
	trainTime := time.Since(trainStart)
	fmt.Printf("\nTraining complete! Training time: %.2fs\n", trainTime.Seconds())

	eval, err := network.Evaluate(parts.Test.X, yTest)
	if err != nil {
		return err
	}
	fmt.Printf("Test Loss: %.6f | Test MSE: %.6f | Test Acc: %.2f%%\n", eval.Loss, eval.MSE, 100*eval.Accuracy)

	predicted := metrics.Argmax(eval.Probabilities)
	cm, err := metrics.ConfusionMatrix(predicted, parts.Test.Labels, parts.Test.Classes)
	if err != nil {
		return err
	}
	if utils.Verbose {
		fmt.Println("\nConfusion matrix (rows: true class, columns: predicted):")
		if err := metrics.WriteConfusion(os.Stdout, cm); err != nil {
			return err
		}
	}

	if *encrypted {
		if err := scoreEncrypted(network, parts.Test, stats); err != nil {
			return fmt.Errorf("encrypted scoring: %w", err)
		}
	}

	if *analysisFile != "" {
		last := history[len(history)-1]
		rec := metrics.RunRecord{
			Name:           fmt.Sprintf("%s-%s-%d", cfg.Optimizer, cfg.Activation, cfg.Seed),
			Activation:     cfg.Activation,
			Architecture:   cfg.Architecture,
			Optimizer:      cfg.Optimizer,
			Epochs:         cfg.Epochs,
			BatchSize:      cfg.BatchSize,
			LearningRate:   cfg.LearningRate,
			WeightDecay:    cfg.WeightDecay,
			EndTime:        time.Now().Unix(),
			SecondsToTrain: trainTime.Seconds(),
			ValAccuracy:    last.ValAccuracy,
			TestAccuracy:   eval.Accuracy,
		}
		if err := metrics.AppendRun(*analysisFile, rec); err != nil {
			return err
		}
	}

	stats.TotalTime = time.Since(totalStart)
	trainRows, _ := parts.Train.X.Dims()
	steps := cfg.Epochs * ((trainRows + cfg.BatchSize - 1) / cfg.BatchSize)
	utils.PrintTimingStats(stats, steps)
	return nil
}

func loadData(cfg utils.Config) (*data.Partitions, error) {
	var (
		ds  *data.Dataset
		err error
	)
	if *dataFile != "" {
		layout := data.LabelLast
		if *labelFirst {
			layout = data.LabelFirst
		}
		ds, err = data.LoadCSVFile(*dataFile, layout)
		if err != nil {
			return nil, err
		}
	} else {
		in, out := cfg.Architecture[0], cfg.Architecture[len(cfg.Architecture)-1]
		fmt.Printf("Generating %d synthetic samples...\n", *samples)
		ds = data.GaussianBlobs(*samples, in, out, 0.6, cfg.Seed)
	}

	parts, err := data.Split(ds, cfg.ValFraction, cfg.TestFraction, cfg.Seed)
	if err != nil {
		return nil, err
	}
	data.Standardize(parts.Train, parts.Val, parts.Test)
	return parts, nil
}

// scoreEncrypted runs the test set through a server on an in-process pipe with
// the first layer evaluated on ciphertexts.
func scoreEncrypted(network *nn.Network, test *data.Dataset, stats *utils.TimingStats) error {
	fmt.Println("\nInitializing HE context...")
	start := time.Now()
	he, err := ckkswrapper.NewHeContextWithLogN(*logN)
	if err != nil {
		return err
	}
	server, err := split.ServerFor(he, network)
	if err != nil {
		return err
	}
	stats.HEInitTime = time.Since(start)
	fmt.Printf("HE initialization: %.2fs\n", stats.HEInitTime.Seconds())

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	done := make(chan error, 1)
	go func() {
		defer serverConn.Close()
		done <- server.Serve(split.NewProtocol(serverConn, serverConn))
	}()

	client, err := split.NewClient(he, network, split.NewProtocol(clientConn, clientConn))
	if err != nil {
		return err
	}
	client.Stats = stats

	rows, cols := test.X.Dims()
	perBatch := server.Layout().PerCiphertext
	predicted := make([]int, 0, rows)
	start = time.Now()
	for lo := 0; lo < rows; lo += perBatch {
		hi := lo + perBatch
		if hi > rows {
			hi = rows
		}
		labels, err := client.Predict(test.X.Slice(lo, hi, 0, cols).(*mat.Dense))
		if err != nil {
			return err
		}
		predicted = append(predicted, labels...)
	}
	elapsed := time.Since(start)
	stats.ServerLinearTime = elapsed - stats.EncryptionTime - stats.DecryptionTime
	if err := client.Close(); err != nil {
		return err
	}
	if err := <-done; err != nil {
		return err
	}

	acc, err := metrics.LabelAccuracy(predicted, test.Labels)
	if err != nil {
		return err
	}
	fmt.Printf("Encrypted Test Acc: %.2f%% (%d samples in %.2fs)\n", 100*acc, rows, elapsed.Seconds())
	return nil
}
