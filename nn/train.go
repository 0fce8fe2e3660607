package nn

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"mlptrain/metrics"
	"mlptrain/utils"
)

// TrainConfig holds the hyper-parameters of a training run.
type TrainConfig struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	// Optimizer is "sgd", "momentum" or "adam".
	Optimizer string
	// WeightDecay shrinks every weight matrix by (1 - lr*WeightDecay) after each
	// update when positive.
	WeightDecay float64
	Momentum    float64
	Adam        AdamConfig
	// Stats, when set, accumulates forward/backward/update/evaluation durations.
	Stats *utils.TimingStats
}

// EpochMetrics is what the training loop reports after every epoch.
type EpochMetrics struct {
	Epoch       int
	TrainLoss   float64 // mean cross-entropy over the epoch's batches
	ValLoss     float64
	ValAccuracy float64 // fraction of correctly classified validation samples
}

// Evaluation is the result of a forward-only pass over a labelled set.
type Evaluation struct {
	Accuracy      float64
	Loss          float64 // cross-entropy
	MSE           float64 // mean squared error of the probabilities
	Probabilities *mat.Dense
}

func (cfg TrainConfig) optimizer() (Optimizer, error) {
	if cfg.Epochs <= 0 {
		return nil, fmt.Errorf("%w: epochs must be positive, got %d", ErrConfiguration, cfg.Epochs)
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive, got %d", ErrConfiguration, cfg.BatchSize)
	}
	if cfg.LearningRate <= 0 {
		return nil, fmt.Errorf("%w: learning rate must be positive, got %g", ErrConfiguration, cfg.LearningRate)
	}
	if cfg.WeightDecay < 0 {
		return nil, fmt.Errorf("%w: weight decay must not be negative, got %g", ErrConfiguration, cfg.WeightDecay)
	}
	return NewOptimizer(cfg.Optimizer, OptimizerConfig{Momentum: cfg.Momentum, Adam: cfg.Adam})
}

// Train runs cfg.Epochs passes over the training set in contiguous batches of
// cfg.BatchSize rows (the last batch may be smaller), without shuffling. Each
// batch goes forward, backward, through the optimizer and, when configured,
// weight decay. After every epoch the validation set is evaluated and the
// metrics are appended to the returned history and printed to utils.Output.
func (net *Network) Train(xTrain, yTrain, xVal, yVal mat.Matrix, cfg TrainConfig) ([]EpochMetrics, error) {
	opt, err := cfg.optimizer()
	if err != nil {
		return nil, err
	}
	if err := net.checkLabelled("training", xTrain, yTrain); err != nil {
		return nil, err
	}
	if err := net.checkLabelled("validation", xVal, yVal); err != nil {
		return nil, err
	}
	stats := cfg.Stats
	if stats == nil {
		stats = &utils.TimingStats{}
	}

	inputs := mat.DenseCopyOf(xTrain)
	targets := mat.DenseCopyOf(yTrain)
	rows, _ := inputs.Dims()
	batches := createBatches(rows, cfg.BatchSize)

	history := make([]EpochMetrics, 0, cfg.Epochs)
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		lossSum := 0.0
		for _, b := range batches {
			x := inputs.Slice(b.start, b.end, 0, net.sizes[0])
			y := targets.Slice(b.start, b.end, 0, net.sizes[net.lastIndex()])
			loss, err := net.trainBatch(x, y, opt, cfg, stats)
			if err != nil {
				return history, fmt.Errorf("epoch %d, rows %d-%d: %w", epoch, b.start, b.end, err)
			}
			lossSum += loss * float64(b.end-b.start)
		}

		start := time.Now()
		eval, err := net.Evaluate(xVal, yVal)
		stats.EvaluationTime += time.Since(start)
		if err != nil {
			return history, fmt.Errorf("epoch %d validation: %w", epoch, err)
		}

		m := EpochMetrics{
			Epoch:       epoch,
			TrainLoss:   lossSum / float64(rows),
			ValLoss:     eval.Loss,
			ValAccuracy: eval.Accuracy,
		}
		history = append(history, m)
		if utils.Verbose {
			fmt.Fprintf(utils.Output, "Epoch %d/%d | Loss: %.6f | Val Loss: %.6f | Val Acc: %.2f%%\n",
				epoch, cfg.Epochs, m.TrainLoss, m.ValLoss, 100*m.ValAccuracy)
		}
	}
	return history, nil
}

func (net *Network) trainBatch(x, y mat.Matrix, opt Optimizer, cfg TrainConfig, stats *utils.TimingStats) (float64, error) {
	start := time.Now()
	probs, err := net.Forward(x)
	stats.ForwardPassTime += time.Since(start)
	if err != nil {
		return 0, err
	}

	start = time.Now()
	loss, err := CrossEntropy(probs, y)
	stats.LossComputationTime += time.Since(start)
	if err != nil {
		return 0, err
	}

	start = time.Now()
	grads, err := net.Backward(x, y)
	stats.BackwardPassTime += time.Since(start)
	if err != nil {
		return 0, err
	}

	start = time.Now()
	defer func() { stats.UpdateTime += time.Since(start) }()
	if err := opt.Update(net, grads, cfg.LearningRate); err != nil {
		return 0, err
	}
	if cfg.WeightDecay > 0 {
		net.decayWeights(1 - cfg.LearningRate*cfg.WeightDecay)
	}
	return loss, nil
}

// decayWeights multiplies every weight matrix (not the biases) by factor.
func (net *Network) decayWeights(factor float64) {
	for _, w := range net.weights {
		w.Scale(factor, w)
	}
}

// Evaluate runs a forward pass over x and scores it against the one-hot
// targets y. Parameters are not modified.
func (net *Network) Evaluate(x, y mat.Matrix) (*Evaluation, error) {
	if err := net.checkLabelled("evaluation", x, y); err != nil {
		return nil, err
	}
	probs, err := net.Forward(x)
	if err != nil {
		return nil, err
	}
	loss, err := CrossEntropy(probs, y)
	if err != nil {
		return nil, err
	}
	mse, err := MeanSquaredError(probs, y)
	if err != nil {
		return nil, err
	}
	acc, err := metrics.Accuracy(probs, y)
	if err != nil {
		return nil, err
	}
	return &Evaluation{Accuracy: acc, Loss: loss, MSE: mse, Probabilities: probs}, nil
}

// checkLabelled validates a feature matrix and its one-hot targets against the
// layer sizes.
func (net *Network) checkLabelled(name string, x, y mat.Matrix) error {
	if x == nil || y == nil {
		return fmt.Errorf("%w: %s set is empty", ErrConfiguration, name)
	}
	xr, xc := x.Dims()
	yr, yc := y.Dims()
	if xr == 0 {
		return fmt.Errorf("%w: %s set is empty", ErrConfiguration, name)
	}
	if xc != net.sizes[0] {
		return fmt.Errorf("%w: %s inputs have %d features, first layer has %d", ErrShapeMismatch, name, xc, net.sizes[0])
	}
	if yc != net.sizes[net.lastIndex()] {
		return fmt.Errorf("%w: %s labels have width %d, output layer has %d", ErrShapeMismatch, name, yc, net.sizes[net.lastIndex()])
	}
	if xr != yr {
		return fmt.Errorf("%w: %s set has %d inputs and %d labels", ErrShapeMismatch, name, xr, yr)
	}
	return nil
}

type batch struct {
	start, end int
}

func createBatches(rows, batchSize int) []batch {
	numBatches := (rows + batchSize - 1) / batchSize
	batches := make([]batch, numBatches)

	for i := 0; i < numBatches; i++ {
		startIdx := i * batchSize
		endIdx := startIdx + batchSize

		if endIdx > rows {
			endIdx = rows
		}

		batches[i] = batch{start: startIdx, end: endIdx}
	}

	return batches
}
