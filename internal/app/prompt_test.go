package app

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPromptBuilder_Header(t *testing.T) {
	p := NewPromptBuilder([]string{"normal", "spam", "unclassified"}, "unclassified")
	h := p.Header()

	assert.Contains(t, h, "3 labels")
	assert.Contains(t, h, "normal, spam, unclassified")
	assert.Contains(t, h, `answer "unclassified"`)
}

func TestPromptBuilder_Build(t *testing.T) {
	p := NewPromptBuilder([]string{"normal"}, "unclassified")
	b := batchOf("b7", "hello", "multi\nline\r\ncomment", "bye")

	req := p.Build(b, "Some video")

	assert.Equal(t, "b7", req.BatchID)
	assert.Equal(t, "Some video", req.Title)
	assert.Equal(t, []string{"hello", "multi line comment", "bye"}, req.Texts)
	assert.True(t, strings.HasPrefix(req.Prompt, p.Header()))
	assert.True(t, strings.HasSuffix(req.Prompt, "Title: Some video\nComments:\nhello\nmulti line comment\nbye"))

	// the batch itself is untouched
	assert.Equal(t, "multi\nline\r\ncomment", b.Items[1].Text)
}
