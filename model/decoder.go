package model

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
)

// DecodeStep runs the decoder for a single target timestep.
//
// prevToken is [batch, 1] int32 (the previous output token, or the start
// marker at step 0), hidden is [batch, units], encOutputs is
// [batch, sourceSteps, units]. The step computes the attention context
// against encOutputs using the current hidden state, embeds prevToken,
// concatenates context and embedding, advances the recurrent unit once, and
// projects the new hidden state to target-vocabulary logits.
//
// It returns logits [batch, targetVocab] (not probabilities), the new
// hidden state [batch, units], and the attention weights
// [batch, sourceSteps, 1].
func DecodeStep(ctx *context.Context, prevToken, hidden, encOutputs *Node) (logits, newHidden, weights *Node) {
	units := context.GetParamOr(ctx, ParamUnits, 1024)
	embedDim := context.GetParamOr(ctx, ParamEmbedDim, 256)
	vocabSize := context.GetParamOr(ctx, ParamTargetVocabSize, 0)

	contextVector, weights := BahdanauAttention(ctx.In("attention"), hidden, encOutputs)

	// embedded is [batch, 1, embedDim] -> [batch, embedDim].
	embedded := Squeeze(layers.Embedding(ctx.In("embedding"), prevToken, dtype, vocabSize, embedDim), 1)

	x := Concatenate([]*Node{contextVector, embedded}, -1)
	newHidden = gruCell(ctx.In("gru"), x, hidden, units)
	logits = layers.Dense(ctx.In("output"), newHidden, true, vocabSize)
	return logits, newHidden, weights
}
