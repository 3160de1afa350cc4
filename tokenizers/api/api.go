// Package api defines the Tokenizer API.
// It keeps the vocabulary implementations and their consumers (training,
// inference) decoupled.
package api

import "github.com/pkg/errors"

// ErrUnknownToken is returned by Tokenizer.Encode when a token was never
// seen during vocabulary construction. Callers match it with errors.Is.
var ErrUnknownToken = errors.New("token not in vocabulary")

// Tokenizer converts space-delimited token strings to integer ids and back.
//
// It also maps special tokens: tokens with a common semantic (like padding)
// that may map to different ids for different vocabularies.
type Tokenizer interface {
	// Encode returns the ids of the whitespace-delimited tokens of text.
	// It fails with ErrUnknownToken (wrapped) for out-of-vocabulary tokens.
	Encode(text string) ([]int, error)

	// Decode returns the space-joined tokens for ids, skipping padding.
	Decode(ids []int) string

	// SpecialTokenID returns the id for the given special token if
	// registered, or an error if not.
	SpecialTokenID(token SpecialToken) (int, error)
}

// SpecialToken is an enum of the special tokens the translator relies on.
type SpecialToken int

const (
	TokStart SpecialToken = iota
	TokEnd
	TokPad
	TokSpecialTokensCount
)

// String implements fmt.Stringer.
func (t SpecialToken) String() string {
	switch t {
	case TokStart:
		return "start"
	case TokEnd:
		return "end"
	case TokPad:
		return "pad"
	}
	return "invalid"
}
