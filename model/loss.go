package model

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/train/losses"
)

// MaskedSparseCategoricalCrossEntropy is the training loss: sparse
// categorical cross-entropy on logits, with padding positions (true token
// id 0) contributing exactly zero regardless of the predicted logits.
//
// labels[0] is [batch, timeSteps, 1] int32, predictions[0] is
// [batch, timeSteps, targetVocab] logits. The returned per-position losses
// [batch, timeSteps] are reduced to their mean by the trainer.
func MaskedSparseCategoricalCrossEntropy(labels, predictions []*Node) *Node {
	perPosition := losses.SparseCategoricalCrossEntropyLogits(labels, predictions)
	truth := Squeeze(labels[0], -1)
	g := truth.Graph()
	mask := ConvertDType(NotEqual(truth, Zeros(g, truth.Shape())), perPosition.DType())
	return Mul(perPosition, mask)
}
