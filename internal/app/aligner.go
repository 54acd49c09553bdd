package app

import (
	"encoding/json"
	"strings"

	"github.com/bft-labs/dmfilter/internal/domain"
)

// Decoder extracts the classifier's answer text from a raw response body.
// ok is false when the body does not carry an answer at all.
type Decoder interface {
	Decode(body []byte) (text string, ok bool)
}

// ChatCompletionDecoder reads choices[0].message.content from an
// OpenAI-compatible chat completion response.
type ChatCompletionDecoder struct{}

type chatCompletion struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Decode implements Decoder.
func (ChatCompletionDecoder) Decode(body []byte) (string, bool) {
	var cc chatCompletion
	if err := json.Unmarshal(body, &cc); err != nil {
		return "", false
	}
	if len(cc.Choices) == 0 {
		return "", false
	}
	return cc.Choices[0].Message.Content, true
}

// PlainTextDecoder treats the whole body as the answer text.
type PlainTextDecoder struct{}

// Decode implements Decoder.
func (PlainTextDecoder) Decode(body []byte) (string, bool) {
	return string(body), true
}

// Aligner maps a classifier answer back onto the items of a batch.
type Aligner struct {
	decoder  Decoder
	fallback domain.Label
}

// NewAligner creates an aligner. A nil decoder defaults to
// ChatCompletionDecoder.
func NewAligner(decoder Decoder, fallback domain.Label) *Aligner {
	if decoder == nil {
		decoder = ChatCompletionDecoder{}
	}
	return &Aligner{decoder: decoder, fallback: fallback}
}

// Align returns exactly one result per item of b, in batch order. Missing or
// blank lines get the fallback label; surplus lines are ignored; an
// undecodable body counts as zero lines.
func (a *Aligner) Align(body []byte, b *domain.Batch) []domain.Result {
	var lines []string
	if text, ok := a.decoder.Decode(body); ok {
		lines = SplitLines(text)
	}

	out := make([]domain.Result, len(b.Items))
	for i, it := range b.Items {
		label := a.fallback
		if i < len(lines) && lines[i] != "" {
			label = domain.Label(lines[i])
		}
		out[i] = domain.Result{Item: it, Label: label}
	}
	return out
}

// Fallback returns every item of b paired with the fallback label.
func (a *Aligner) Fallback(b *domain.Batch) []domain.Result {
	return domain.FallbackResults(b, a.fallback)
}

// SplitLines splits text on \n, \r\n or \r and trims each line. Leading and
// trailing blank space of the whole text is dropped first; an empty text
// yields no lines.
func SplitLines(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return lines
}
