package model

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
)

// gruCell applies one step of a gated recurrent unit.
//
// x is [batch, features], state is [batch, units]; it returns the new state
// [batch, units]. Variables live under ctx, so calling it repeatedly with
// the same scope unrolls a single cell over time.
func gruCell(ctx *context.Context, x, state *Node, units int) *Node {
	update := Sigmoid(Add(
		layers.Dense(ctx.In("update_x"), x, true, units),
		layers.Dense(ctx.In("update_h"), state, false, units)))
	reset := Sigmoid(Add(
		layers.Dense(ctx.In("reset_x"), x, true, units),
		layers.Dense(ctx.In("reset_h"), state, false, units)))
	candidate := Tanh(Add(
		layers.Dense(ctx.In("candidate_x"), x, true, units),
		Mul(reset, layers.Dense(ctx.In("candidate_h"), state, false, units))))
	return Add(Mul(update, state), Mul(OneMinus(update), candidate))
}
