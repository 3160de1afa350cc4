package words

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmtgo/translator/texts"
	"github.com/nmtgo/translator/tokenizers/api"
)

func TestBuildAssignsIDsByFirstOccurrence(t *testing.T) {
	v := Build([]string{
		"<start> hi there <end>",
		"<start> there you go <end>",
	})

	// 0 is padding; tokens get 1.. in order of first occurrence.
	assert.Equal(t, 7, v.Size()) // <start> hi there <end> you go + padding

	ids, err := v.Encode("<start> hi there <end>")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, ids)

	ids, err = v.Encode("you go")
	require.NoError(t, err)
	assert.Equal(t, []int{5, 6}, ids)
}

func TestEncodeUnknownToken(t *testing.T) {
	v := Build([]string{"<start> hi <end>"})
	_, err := v.Encode("<start> bonjour <end>")
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrUnknownToken))
	assert.Contains(t, err.Error(), "bonjour")
}

func TestRoundTrip(t *testing.T) {
	sentences := []string{
		texts.Preprocess("Go."),
		texts.Preprocess("¿Puedo tomar prestado este libro?"),
	}
	v := Build(sentences)
	for _, sentence := range sentences {
		ids, err := v.Encode(sentence)
		require.NoError(t, err)
		assert.Equal(t, sentence, v.Decode(ids))
	}
}

func TestDecodeSkipsPadding(t *testing.T) {
	v := Build([]string{"<start> hi <end>"})
	ids, err := v.Encode("hi")
	require.NoError(t, err)
	padded := PadTo(ids, 5)
	asInts := make([]int, len(padded))
	for i, id := range padded {
		asInts[i] = int(id)
	}
	assert.Equal(t, "hi", v.Decode(asInts))
}

func TestSpecialTokenIDs(t *testing.T) {
	v := Build([]string{"<start> hi <end>"})

	pad, err := v.SpecialTokenID(api.TokPad)
	require.NoError(t, err)
	assert.Equal(t, PadID, pad)

	start, err := v.SpecialTokenID(api.TokStart)
	require.NoError(t, err)
	assert.Equal(t, 1, start)

	end, err := v.SpecialTokenID(api.TokEnd)
	require.NoError(t, err)
	assert.Equal(t, 3, end)

	_, err = v.SpecialTokenID(api.TokSpecialTokensCount)
	assert.Error(t, err)
}

func TestEncodeBatchIsRectangular(t *testing.T) {
	v := Build([]string{
		"<start> hi <end>",
		"<start> hi there again <end>",
	})
	require.Equal(t, 5, v.MaxLen())

	rows, err := v.EncodeBatch([]string{"<start> hi <end>", "hi there"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Len(t, row, v.MaxLen())
	}
	// Post-padding: content first, zeros after.
	assert.Equal(t, []int32{1, 2, 3, 0, 0}, rows[0])
	assert.Equal(t, []int32{2, 4, 0, 0, 0}, rows[1])
}

func TestPadToTruncates(t *testing.T) {
	assert.Equal(t, []int32{1, 2}, PadTo([]int{1, 2, 3, 4}, 2))
}
