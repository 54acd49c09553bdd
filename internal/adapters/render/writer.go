package render

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/bft-labs/dmfilter/internal/domain"
	"github.com/bft-labs/dmfilter/internal/ports"
)

// Format selects the output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q: %w", s, domain.ErrInvalidConfig)
	}
}

// Record is the JSON form of one labeled item.
type Record struct {
	Handle  string `json:"handle,omitempty"`
	Text    string `json:"text"`
	Label   string `json:"label"`
	Outcome string `json:"outcome"`
}

// Writer writes one line per applied result.
type Writer struct {
	mu     sync.Mutex
	w      *bufio.Writer
	enc    *json.Encoder
	policy domain.LabelPolicy
	format Format
	logger ports.Logger
}

// NewWriter creates a writer that renders results under policy.
func NewWriter(w io.Writer, policy domain.LabelPolicy, format Format, logger ports.Logger) *Writer {
	bw := bufio.NewWriter(w)
	return &Writer{
		w:      bw,
		enc:    json.NewEncoder(bw),
		policy: policy,
		format: format,
		logger: logger,
	}
}

// Apply implements ports.ResultApplier. Write failures are logged, never
// returned to the caller.
func (w *Writer) Apply(item domain.Item, label domain.Label) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.write(item, label); err != nil && w.logger != nil {
		w.logger.Error("write result", ports.Err(err))
	}
}

func (w *Writer) write(item domain.Item, label domain.Label) error {
	outcome := w.policy.Decide(label)

	if w.format == FormatJSON {
		rec := Record{Text: item.Text, Label: string(label), Outcome: outcome.String()}
		if item.Handle != nil {
			rec.Handle = item.Handle.Key()
		}
		if err := w.enc.Encode(rec); err != nil {
			return err
		}
		return w.w.Flush()
	}

	var line string
	switch outcome {
	case domain.OutcomeHide:
		return nil
	case domain.OutcomeAnnotate:
		line = domain.Annotate(item.Text, label)
	default:
		line = item.Text
	}
	if _, err := w.w.WriteString(line + "\n"); err != nil {
		return err
	}
	return w.w.Flush()
}
