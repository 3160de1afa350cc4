package model

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
)

// BahdanauAttention computes an additive-attention context vector from the
// decoder's current hidden state (query) and the encoder's per-timestep
// outputs (values).
//
// query is [batch, units], values is [batch, timeSteps, units]. The score
// for each timestep is V(tanh(W1·query + W2·values)); scores are normalized
// with a softmax over the time axis, so the weights of each example sum
// to 1. The context vector is the weight-averaged sum of values.
//
// It returns the context vector [batch, units] and the attention weights
// [batch, timeSteps, 1]. The weights are exposed for inspection only.
func BahdanauAttention(ctx *context.Context, query, values *Node) (contextVector, weights *Node) {
	units := context.GetParamOr(ctx, ParamUnits, 1024)

	// Broadcast the query along the time axis: [batch, 1, units].
	queryWithTime := ExpandDims(query, 1)
	score := layers.Dense(ctx.In("v"),
		Tanh(Add(
			layers.Dense(ctx.In("w_query"), queryWithTime, true, units),
			layers.Dense(ctx.In("w_values"), values, true, units))),
		true, 1)

	weights = Softmax(score, 1)
	contextVector = ReduceSum(Mul(weights, values), 1)
	return
}
