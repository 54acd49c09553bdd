package app

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/bft-labs/dmfilter/internal/domain"
)

func chatBody(t require.TestingT, content string) []byte {
	body, err := json.Marshal(map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"role": "assistant", "content": content}},
		},
	})
	require.NoError(t, err)
	return body
}

func labels(results []domain.Result) []domain.Label {
	out := make([]domain.Label, len(results))
	for i, r := range results {
		out[i] = r.Label
	}
	return out
}

func TestAligner_PadsMissingLines(t *testing.T) {
	a := NewAligner(nil, "unclassified")
	b := batchOf("b", "1", "2", "3", "4", "5")

	got := a.Align(chatBody(t, "normal\nspam\nnormal"), b)

	assert.Equal(t, []domain.Label{"normal", "spam", "normal", "unclassified", "unclassified"}, labels(got))
}

func TestAligner_IgnoresSurplusLines(t *testing.T) {
	a := NewAligner(nil, "unclassified")
	b := batchOf("b", "1", "2", "3")

	got := a.Align(chatBody(t, "a\nb\nc\nd\ne"), b)

	assert.Equal(t, []domain.Label{"a", "b", "c"}, labels(got))
}

func TestAligner_PreservesItemOrder(t *testing.T) {
	a := NewAligner(nil, "unclassified")
	b := batchOf("b", "first", "second")

	got := a.Align(chatBody(t, "x\ny"), b)

	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Item.Text)
	assert.Equal(t, "second", got[1].Item.Text)
}

func TestAligner_UndecodableBody(t *testing.T) {
	a := NewAligner(ChatCompletionDecoder{}, "unclassified")
	b := batchOf("b", "1", "2")

	for name, body := range map[string][]byte{
		"not json":   []byte("normal\nspam"),
		"no choices": []byte(`{"choices":[]}`),
		"empty":      nil,
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, []domain.Label{"unclassified", "unclassified"}, labels(a.Align(body, b)))
		})
	}
}

func TestAligner_BlankLinesGetFallback(t *testing.T) {
	a := NewAligner(PlainTextDecoder{}, "unclassified")
	b := batchOf("b", "1", "2", "3")

	got := a.Align([]byte("\n  normal \r\n\r\nspam\n"), b)

	assert.Equal(t, []domain.Label{"normal", "unclassified", "spam"}, labels(got))
}

func TestAligner_Fallback(t *testing.T) {
	a := NewAligner(nil, "unclassified")
	got := a.Fallback(batchOf("b", "1", "2"))
	assert.Equal(t, []domain.Label{"unclassified", "unclassified"}, labels(got))
}

func TestSplitLines(t *testing.T) {
	assert.Nil(t, SplitLines(""))
	assert.Nil(t, SplitLines(" \n \n"))
	assert.Equal(t, []string{"a", "b", "c"}, SplitLines("a\r\nb\rc"))
	assert.Equal(t, []string{"a", "", "b"}, SplitLines("\n a \n\n b \n"))
}

func TestAligner_ResultCountMatchesBatch(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		texts := rapid.SliceOfN(rapid.StringMatching(`[a-z]{1,8}`), 1, 30).Draw(t, "texts")
		answer := rapid.SliceOf(rapid.StringMatching(`[a-z ]{0,8}`)).Draw(t, "answer")

		a := NewAligner(nil, "unclassified")
		b := batchOf("b", texts...)
		got := a.Align(chatBody(t, strings.Join(answer, "\n")), b)

		if len(got) != len(texts) {
			t.Fatalf("got %d results for %d items", len(got), len(texts))
		}
		for i, r := range got {
			if r.Item.Text != texts[i] {
				t.Fatalf("result %d carries %q, want %q", i, r.Item.Text, texts[i])
			}
			if r.Label == "" {
				t.Fatalf("result %d has an empty label", i)
			}
		}
	})
}
