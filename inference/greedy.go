// Package inference translates single sentences with a trained session,
// decoding greedily until the end marker or the trained length bound.
package inference

import (
	"strings"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/pkg/errors"

	"github.com/nmtgo/translator/model"
	"github.com/nmtgo/translator/texts"
	"github.com/nmtgo/translator/tokenizers/api"
	"github.com/nmtgo/translator/tokenizers/words"
)

// Result is one translation plus the attention weights over the source
// positions, one row per emitted token. The weights are diagnostic only.
type Result struct {
	// Input is the preprocessed form of the requested sentence.
	Input string

	// Text is the space-joined translation, without markers.
	Text string

	// Attention[i][j] is the weight of source position j when emitting
	// output token i.
	Attention [][]float32
}

// Translator runs greedy batch-1 inference against a session's variables.
// Create it after training (or after a checkpoint restore); it shares the
// session context, so a concurrent training loop must not be running.
type Translator struct {
	session *model.Session
	encoder *context.Exec
	decoder *context.Exec

	startID int
	endID   int
}

// New compiles the encoder and the single-step decoder executors for
// batch-1 inference.
func New(session *model.Session) (*Translator, error) {
	startID, err := session.Target.SpecialTokenID(api.TokStart)
	if err != nil {
		return nil, err
	}
	endID, err := session.Target.SpecialTokenID(api.TokEnd)
	if err != nil {
		return nil, err
	}

	encoder, err := context.NewExec(session.Backend, session.Ctx.Reuse(),
		func(ctx *context.Context, tokens *Node) []*Node {
			outputs, state := model.Encode(ctx.In(model.EncoderScope), tokens)
			return []*Node{outputs, state}
		})
	if err != nil {
		return nil, errors.Wrap(err, "compiling encoder executor")
	}
	decoder, err := context.NewExec(session.Backend, session.Ctx.Reuse(),
		func(ctx *context.Context, prevToken, hidden, encOutputs *Node) []*Node {
			logits, newHidden, weights := model.DecodeStep(ctx.In(model.DecoderScope), prevToken, hidden, encOutputs)
			return []*Node{logits, newHidden, weights}
		})
	if err != nil {
		return nil, errors.Wrap(err, "compiling decoder executor")
	}

	return &Translator{
		session: session,
		encoder: encoder,
		decoder: decoder,
		startID: startID,
		endID:   endID,
	}, nil
}

// Translate preprocesses sentence, encodes it, and decodes greedily: at each
// step the argmax token id is taken from the logits; the end marker stops
// decoding without being emitted, and the loop is bounded by the trained
// maximum target length. Unknown source tokens fail with a typed error
// matching api.ErrUnknownToken.
func (t *Translator) Translate(sentence string) (*Result, error) {
	preprocessed := texts.Preprocess(sentence)
	ids, err := t.session.Source.Encode(preprocessed)
	if err != nil {
		return nil, errors.WithMessagef(err, "encoding %q", sentence)
	}

	input := tensors.FromValue([][]int32{words.PadTo(ids, t.session.MaxSourceLen)})
	encoded, err := t.encoder.Exec(input)
	if err != nil {
		return nil, errors.Wrap(err, "running encoder")
	}
	encOutputs, hidden := encoded[0], encoded[1]

	result := &Result{Input: preprocessed}
	prevToken := int32(t.startID)
	var tokens []string
	for step := 0; step < t.session.MaxTargetLen; step++ {
		outputs, err := t.decoder.Exec(tensors.FromValue([][]int32{{prevToken}}), hidden, encOutputs)
		if err != nil {
			return nil, errors.Wrapf(err, "running decoder step %d", step)
		}
		logits, weights := outputs[0], outputs[2]
		hidden = outputs[1]

		predicted := argmax(logits.Value().([][]float32)[0])
		if predicted == t.endID {
			break
		}
		token, ok := t.session.Target.TokenForID(predicted)
		if !ok {
			// Padding won the argmax; there is nothing sensible to emit.
			break
		}
		tokens = append(tokens, token)
		result.Attention = append(result.Attention, flattenWeights(weights))
		prevToken = int32(predicted)
	}
	result.Text = strings.Join(tokens, " ")
	return result, nil
}

// argmax returns the index of the largest logit.
func argmax(logits []float32) int {
	best := 0
	for i, v := range logits {
		if v > logits[best] {
			best = i
		}
	}
	return best
}

// flattenWeights converts the [1, sourceSteps, 1] attention tensor to a flat
// per-source-position row.
func flattenWeights(weights *tensors.Tensor) []float32 {
	rows := weights.Value().([][][]float32)[0]
	flat := make([]float32, len(rows))
	for i, row := range rows {
		flat[i] = row[0]
	}
	return flat
}
