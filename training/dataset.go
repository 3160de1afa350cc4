// Package training drives teacher-forced training of the translator over
// mini-batches, checkpointing periodically.
package training

import (
	"math/rand"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Dataset holds the padded source/target id tensors and serves shuffled
// fixed-size training batches. The corpus is split 80/20 into training and
// validation indices at construction; only the training side is consumed by
// the loop, matching the original system, but the validation side is kept
// accessible for evaluation tooling.
type Dataset struct {
	source [][]int32 // [n, sourceSteps]
	target [][]int32 // [n, targetSteps]

	batchSize int
	rng       *rand.Rand

	trainIndices []int
	valIndices   []int
}

// NewDataset validates the padded tensors and performs the shuffled 80/20
// train/validation split. seed fixes the shuffling for reproducible runs.
func NewDataset(source, target [][]int32, batchSize int, seed int64) (*Dataset, error) {
	if len(source) == 0 || len(source) != len(target) {
		return nil, errors.Errorf("need equal, non-zero source/target rows, got %d and %d", len(source), len(target))
	}
	if batchSize <= 0 {
		return nil, errors.Errorf("batch size must be positive, got %d", batchSize)
	}
	for i := 1; i < len(source); i++ {
		if len(source[i]) != len(source[0]) || len(target[i]) != len(target[0]) {
			return nil, errors.Errorf("row %d is not padded to the corpus width", i)
		}
	}
	if len(target[0]) < 2 {
		return nil, errors.Errorf("target sequences must hold at least the start and end markers")
	}

	rng := rand.New(rand.NewSource(seed))
	indices := rng.Perm(len(source))
	split := len(indices) - len(indices)/5
	d := &Dataset{
		source:       source,
		target:       target,
		batchSize:    batchSize,
		rng:          rng,
		trainIndices: indices[:split],
		valIndices:   indices[split:],
	}
	if d.Steps() == 0 {
		return nil, errors.Errorf("training split of %d rows yields no full batch of %d", len(d.trainIndices), batchSize)
	}
	return d, nil
}

// Steps returns the number of full batches per epoch; the incomplete final
// batch is dropped.
func (d *Dataset) Steps() int { return len(d.trainIndices) / d.batchSize }

// ValidationSize returns the number of held-out rows.
func (d *Dataset) ValidationSize() int { return len(d.valIndices) }

// Shuffle reshuffles the training indices; called once per epoch.
func (d *Dataset) Shuffle() {
	d.rng.Shuffle(len(d.trainIndices), func(i, j int) {
		d.trainIndices[i], d.trainIndices[j] = d.trainIndices[j], d.trainIndices[i]
	})
}

// Batch materializes the step-th batch as tensors for one training step:
// the source ids [batch, sourceSteps], the teacher-forced decoder inputs
// [batch, targetSteps-1] (target shifted right, starting at the start
// marker), and the labels [batch, targetSteps-1, 1] (target shifted left).
func (d *Dataset) Batch(step int) (source, decoderInputs, labels *tensors.Tensor) {
	targetSteps := len(d.target[0])
	srcRows := make([][]int32, d.batchSize)
	inRows := make([][]int32, d.batchSize)
	labelRows := make([][][]int32, d.batchSize)
	for i := 0; i < d.batchSize; i++ {
		row := d.trainIndices[step*d.batchSize+i]
		srcRows[i] = d.source[row]
		inRows[i] = d.target[row][:targetSteps-1]
		labelRows[i] = make([][]int32, targetSteps-1)
		for t := 1; t < targetSteps; t++ {
			labelRows[i][t-1] = []int32{d.target[row][t]}
		}
	}
	return tensors.FromValue(srcRows), tensors.FromValue(inRows), tensors.FromValue(labelRows)
}
