package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExcerptPrefersDocumentText(t *testing.T) {
	t.Parallel()

	rec := Report{Abstract: "short abstract", DocumentText: "full document text"}
	require.Equal(t, "full document text", rec.Excerpt(100))

	rec.DocumentText = ""
	require.Equal(t, "short abstract", rec.Excerpt(100))
}

func TestExcerptCapsAtLimit(t *testing.T) {
	t.Parallel()

	rec := Report{Abstract: strings.Repeat("x", 2000)}
	require.Len(t, rec.Excerpt(1500), 1500)
	require.Len(t, rec.Excerpt(0), 2000)
}

func TestTopicsRoundTrip(t *testing.T) {
	t.Parallel()

	encoded, err := EncodeTopics([]string{"fraud", "waste"})
	require.NoError(t, err)
	require.Equal(t, `["fraud","waste"]`, encoded)
	require.Equal(t, []string{"fraud", "waste"}, DecodeTopics(encoded))
}

func TestEncodeTopicsEmptyIsStableLiteral(t *testing.T) {
	t.Parallel()

	encoded, err := EncodeTopics(nil)
	require.NoError(t, err)
	require.Equal(t, "[]", encoded)
	require.Nil(t, DecodeTopics(encoded))
}

func TestDecodeTopicsToleratesGarbage(t *testing.T) {
	t.Parallel()

	require.Nil(t, DecodeTopics(""))
	require.Nil(t, DecodeTopics("not json"))
	require.Nil(t, DecodeTopics(`{"wrong": "shape"}`))
}
