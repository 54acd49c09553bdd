package dmfilter

import (
	"bufio"
	"context"
	"fmt"
	"io"
)

// MaxLineBytes is the longest line ScanLines accepts.
const MaxLineBytes = 1 << 20

// LineHandle identifies a line of a text source. Re-submitting the same
// source and line number with unchanged text is treated as a duplicate.
type LineHandle struct {
	Source string
	Line   int
}

// Key implements Handle.
func (h LineHandle) Key() string {
	return fmt.Sprintf("%s:%d", h.Source, h.Line)
}

// ScanLines submits every line of r as an item, numbering lines from
// first. It returns the number of the last line read, which callers can pass
// back as first-1 to continue a followed source.
func ScanLines(ctx context.Context, r io.Reader, source string, first int, submit func(Item) error) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)

	line := first - 1
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return line, err
		}
		line++
		item := Item{Text: sc.Text(), Handle: LineHandle{Source: source, Line: line}}
		if err := submit(item); err != nil {
			return line, err
		}
	}
	if err := sc.Err(); err != nil {
		return line, fmt.Errorf("scan %s: %w", source, err)
	}
	return line, nil
}
