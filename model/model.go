// Package model implements the translator network: a GRU encoder, a
// Bahdanau-style additive attention module, and a GRU decoder projecting to
// target-vocabulary logits. All numeric work is delegated to GoMLX; this
// package only builds graphs over context variables.
package model

import (
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"

	"github.com/nmtgo/translator/tokenizers/words"
)

// Context hyperparameter keys.
const (
	ParamBatchSize       = "batch_size"
	ParamEmbedDim        = "embed_dim"
	ParamUnits           = "units"
	ParamSourceVocabSize = "source_vocab_size"
	ParamTargetVocabSize = "target_vocab_size"
)

// Scope names for the two halves of the network inside the context.
const (
	EncoderScope = "encoder"
	DecoderScope = "decoder"
)

var dtype = dtypes.Float32

// Session owns the network variables, both vocabularies, and the trained
// sequence bounds for one language pair. It is created at startup and passed
// to the training loop and the inference routine; it is not safe for
// concurrent training and inference.
type Session struct {
	Backend backends.Backend
	Ctx     *context.Context

	LangPair string
	Source   *words.Vocabulary
	Target   *words.Vocabulary

	// MaxSourceLen and MaxTargetLen are the padded tensor widths the model
	// was trained with; inference pads and bounds against them.
	MaxSourceLen int
	MaxTargetLen int
}

// NewSession creates a Session with the tutorial's default hyperparameters,
// dimensioned for the given vocabularies.
func NewSession(backend backends.Backend, langPair string, source, target *words.Vocabulary) *Session {
	ctx := context.New()
	ctx.SetParams(map[string]any{
		ParamBatchSize:       64,
		ParamEmbedDim:        256,
		ParamUnits:           1024,
		ParamSourceVocabSize: source.Size(),
		ParamTargetVocabSize: target.Size(),

		optimizers.ParamLearningRate: 0.001,
	})
	return &Session{
		Backend:      backend,
		Ctx:          ctx,
		LangPair:     langPair,
		Source:       source,
		Target:       target,
		MaxSourceLen: source.MaxLen(),
		MaxTargetLen: target.MaxLen(),
	}
}

// BatchSize returns the configured training batch size.
func (s *Session) BatchSize() int {
	return context.GetParamOr(s.Ctx, ParamBatchSize, 64)
}
