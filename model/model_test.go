package model

import (
	"math"
	"testing"

	"github.com/gomlx/gomlx/backends"
	_ "github.com/gomlx/gomlx/backends/default"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmtgo/translator/tokenizers/words"
)

func testBackend(t *testing.T) backends.Backend {
	t.Helper()
	backend, err := backends.New()
	require.NoError(t, err)
	return backend
}

// testSession builds a tiny session so graph executions stay cheap.
func testSession(t *testing.T) *Session {
	t.Helper()
	source := words.Build([]string{"<start> hi there <end>"})
	target := words.Build([]string{"<start> salut toi <end>"})
	s := NewSession(testBackend(t), "eng-fra", source, target)
	s.Ctx.SetParams(map[string]any{
		ParamBatchSize: 2,
		ParamEmbedDim:  4,
		ParamUnits:     8,
	})
	return s
}

func TestAttentionWeightsSumToOne(t *testing.T) {
	s := testSession(t)
	exec, err := context.NewExec(s.Backend, s.Ctx,
		func(ctx *context.Context, query, values *Node) *Node {
			_, weights := BahdanauAttention(ctx.In("attention"), query, values)
			return weights
		})
	require.NoError(t, err)

	query := tensors.FromValue([][]float32{
		{0.5, -1, 2, 0, 1, -0.5, 0.25, 3},
		{1, 1, 1, 1, 1, 1, 1, 1},
	})
	values := tensors.FromValue([][][]float32{
		{{1, 0, 0, 0, 0, 0, 0, 0}, {0, 1, 0, 0, 0, 0, 0, 0}, {0, 0, 1, 0, 0, 0, 0, 0}},
		{{0, 0, 0, 1, 0, 0, 0, 0}, {0, 0, 0, 0, 1, 0, 0, 0}, {0, 0, 0, 0, 0, 1, 0, 0}},
	})
	outputs, err := exec.Exec(query, values)
	require.NoError(t, err)

	weights := outputs[0].Value().([][][]float32)
	require.Len(t, weights, 2)
	for i, example := range weights {
		var sum float64
		for _, step := range example {
			require.Len(t, step, 1)
			assert.GreaterOrEqual(t, step[0], float32(0))
			sum += float64(step[0])
		}
		assert.InDelta(t, 1.0, sum, 1e-5, "example %d", i)
	}
}

func TestMaskedLossIsZeroAtPaddingPositions(t *testing.T) {
	s := testSession(t)
	exec, err := context.NewExec(s.Backend, s.Ctx,
		func(_ *context.Context, labels, logits *Node) *Node {
			return MaskedSparseCategoricalCrossEntropy([]*Node{labels}, []*Node{logits})
		})
	require.NoError(t, err)

	// Second position of each row is padding (id 0).
	labels := tensors.FromValue([][][]int32{
		{{2}, {0}},
		{{1}, {0}},
	})
	logits := tensors.FromValue([][][]float32{
		{{5, -3, 2, 0}, {9, 9, 9, 9}},
		{{0, 0, 1, 0}, {-4, 7, 1, 2}},
	})
	outputs, err := exec.Exec(labels, logits)
	require.NoError(t, err)

	perPosition := outputs[0].Value().([][]float32)
	require.Len(t, perPosition, 2)
	for i, row := range perPosition {
		assert.Greater(t, row[0], float32(0), "row %d real position", i)
		assert.Zero(t, row[1], "row %d padding position", i)
	}
}

func TestEncodeShapes(t *testing.T) {
	s := testSession(t)
	exec, err := context.NewExec(s.Backend, s.Ctx,
		func(ctx *context.Context, tokens *Node) []*Node {
			outputs, state := Encode(ctx.In(EncoderScope), tokens)
			return []*Node{outputs, state}
		})
	require.NoError(t, err)

	tokens := tensors.FromValue([][]int32{{1, 2, 3, 4}, {1, 2, 4, 0}})
	outputs, err := exec.Exec(tokens)
	require.NoError(t, err)

	assert.Equal(t, []int{2, 4, 8}, outputs[0].Shape().Dimensions)
	assert.Equal(t, []int{2, 8}, outputs[1].Shape().Dimensions)

	// All values must be finite even before any training.
	state := outputs[1].Value().([][]float32)
	for _, row := range state {
		for _, v := range row {
			assert.False(t, math.IsNaN(float64(v)))
		}
	}
}

func TestDecodeStepShapes(t *testing.T) {
	s := testSession(t)
	exec, err := context.NewExec(s.Backend, s.Ctx,
		func(ctx *context.Context, prevToken, hidden, encOutputs *Node) []*Node {
			logits, newHidden, weights := DecodeStep(ctx.In(DecoderScope), prevToken, hidden, encOutputs)
			return []*Node{logits, newHidden, weights}
		})
	require.NoError(t, err)

	prevToken := tensors.FromValue([][]int32{{1}, {1}})
	hidden := tensors.FromValue(make2D(2, 8))
	encOutputs := tensors.FromValue(make3D(2, 3, 8))
	outputs, err := exec.Exec(prevToken, hidden, encOutputs)
	require.NoError(t, err)

	assert.Equal(t, []int{2, s.Target.Size()}, outputs[0].Shape().Dimensions)
	assert.Equal(t, []int{2, 8}, outputs[1].Shape().Dimensions)
	assert.Equal(t, []int{2, 3, 1}, outputs[2].Shape().Dimensions)
}

func make2D(rows, cols int) [][]float32 {
	out := make([][]float32, rows)
	for i := range out {
		out[i] = make([]float32, cols)
		for j := range out[i] {
			out[i][j] = float32(i+j) * 0.1
		}
	}
	return out
}

func make3D(rows, steps, cols int) [][][]float32 {
	out := make([][][]float32, rows)
	for i := range out {
		out[i] = make2D(steps, cols)
	}
	return out
}
