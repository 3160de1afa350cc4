// Package words implements a tokenizers api.Tokenizer backed by a word-level
// vocabulary built from the training corpus.
package words

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/nmtgo/translator/tokenizers/api"
)

// PadID is the id reserved for padding. It is never assigned to a token.
const PadID = 0

// Vocabulary is a bidirectional mapping between token strings and integer
// ids for one language. Ids are assigned in order of first occurrence in the
// corpus, starting at 1. Immutable after Build.
type Vocabulary struct {
	idsByToken map[string]int
	tokensByID []string // index is the id; index 0 is the padding slot
	maxLen     int      // longest sentence (in tokens) seen at Build time
}

// Compile time assert that words.Vocabulary implements api.Tokenizer.
var _ api.Tokenizer = &Vocabulary{}

// Build constructs a Vocabulary from preprocessed sentences. Tokens are the
// whitespace-delimited fields of each sentence, which includes the start and
// end markers.
func Build(sentences []string) *Vocabulary {
	v := &Vocabulary{
		idsByToken: make(map[string]int),
		tokensByID: []string{""},
	}
	for _, sentence := range sentences {
		n := 0
		for _, token := range strings.Fields(sentence) {
			n++
			if _, seen := v.idsByToken[token]; !seen {
				v.idsByToken[token] = len(v.tokensByID)
				v.tokensByID = append(v.tokensByID, token)
			}
		}
		if n > v.maxLen {
			v.maxLen = n
		}
	}
	return v
}

// Size returns the number of ids, including the padding slot. This is the
// vocabulary size the embedding and output layers are dimensioned for.
func (v *Vocabulary) Size() int { return len(v.tokensByID) }

// MaxLen returns the token count of the longest sentence seen at Build time,
// which is the padded width of this language's tensors.
func (v *Vocabulary) MaxLen() int { return v.maxLen }

// Encode returns the ids of the whitespace-delimited tokens of text.
// It implements api.Tokenizer; unknown tokens fail with api.ErrUnknownToken.
func (v *Vocabulary) Encode(text string) ([]int, error) {
	fields := strings.Fields(text)
	ids := make([]int, 0, len(fields))
	for _, token := range fields {
		id, ok := v.idsByToken[token]
		if !ok {
			return nil, errors.Wrapf(api.ErrUnknownToken, "%q", token)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Decode returns the space-joined tokens for ids. Padding ids and ids out of
// range are skipped.
func (v *Vocabulary) Decode(ids []int) string {
	tokens := make([]string, 0, len(ids))
	for _, id := range ids {
		if token, ok := v.TokenForID(id); ok {
			tokens = append(tokens, token)
		}
	}
	return strings.Join(tokens, " ")
}

// TokenForID returns the token string for a single id, and whether the id
// maps to a real token (padding does not).
func (v *Vocabulary) TokenForID(id int) (string, bool) {
	if id <= PadID || id >= len(v.tokensByID) {
		return "", false
	}
	return v.tokensByID[id], true
}

// SpecialTokenID returns the id of the given special token, or an error if
// the marker never appeared in the corpus.
func (v *Vocabulary) SpecialTokenID(token api.SpecialToken) (int, error) {
	switch token {
	case api.TokPad:
		return PadID, nil
	case api.TokStart:
		return v.markerID("<start>")
	case api.TokEnd:
		return v.markerID("<end>")
	default:
		return 0, errors.Errorf("unknown special token: %s (%d)", token, int(token))
	}
}

func (v *Vocabulary) markerID(marker string) (int, error) {
	id, ok := v.idsByToken[marker]
	if !ok {
		return 0, errors.Errorf("marker %q not present in vocabulary", marker)
	}
	return id, nil
}

// EncodeBatch encodes sentences into a rectangular id tensor, post-padded
// with PadID to the vocabulary's MaxLen. All rows share the same width.
func (v *Vocabulary) EncodeBatch(sentences []string) ([][]int32, error) {
	rows := make([][]int32, len(sentences))
	for i, sentence := range sentences {
		ids, err := v.Encode(sentence)
		if err != nil {
			return nil, errors.WithMessagef(err, "sentence %d", i)
		}
		rows[i] = PadTo(ids, v.maxLen)
	}
	return rows, nil
}

// PadTo post-pads ids with PadID to exactly length entries, truncating
// overlong input, converted to int32 for the tensor layer.
func PadTo(ids []int, length int) []int32 {
	row := make([]int32, length)
	for i, id := range ids {
		if i >= length {
			break
		}
		row[i] = int32(id)
	}
	return row
}
