package model

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
)

// Encode embeds a batch of padded source token ids and runs the recurrent
// unit over the time axis with a zero initial state.
//
// tokens is [batch, timeSteps] int32. It returns the per-timestep outputs
// [batch, timeSteps, units] and the final hidden state [batch, units], which
// seeds the decoder.
func Encode(ctx *context.Context, tokens *Node) (outputs, state *Node) {
	g := tokens.Graph()
	units := context.GetParamOr(ctx, ParamUnits, 1024)
	embedDim := context.GetParamOr(ctx, ParamEmbedDim, 256)
	vocabSize := context.GetParamOr(ctx, ParamSourceVocabSize, 0)
	batchSize := tokens.Shape().Dimensions[0]
	timeSteps := tokens.Shape().Dimensions[1]

	// embedded is [batch, timeSteps, embedDim].
	embedded := layers.Embedding(ctx.In("embedding"), tokens, dtype, vocabSize, embedDim)

	state = Zeros(g, shapes.Make(dtype, batchSize, units))
	cellCtx := ctx.In("gru")
	steps := make([]*Node, 0, timeSteps)
	for t := 0; t < timeSteps; t++ {
		x := Squeeze(Slice(embedded, AxisRange(), AxisRange(t, t+1)), 1)
		state = gruCell(cellCtx, x, state, units)
		steps = append(steps, ExpandDims(state, 1))
	}
	outputs = Concatenate(steps, 1)
	return
}
