package domain

import "regexp"

// Handle is the external presentation object an item was read from.
// Ownership stays with the content source; the core only passes it back to
// the result applier.
type Handle interface {
	// Key identifies the handle for deduplication. Two handles with the same
	// key are treated as the same presentation object.
	Key() string
}

// Item is one classifiable unit.
type Item struct {
	// Text is captured at submission time and never changes afterwards.
	Text string

	// Handle references the presentation object the text came from.
	Handle Handle
}

// annotationPattern matches a trailing "[label]" marker left by annotate mode.
var annotationPattern = regexp.MustCompile(`\[[^\]]+\]$`)

// HasAnnotation reports whether text already carries a terminal annotation
// marker such as "hello [normal]".
func HasAnnotation(text string) bool {
	return annotationPattern.MatchString(text)
}

// Annotate renders text with a trailing label marker.
func Annotate(text string, label Label) string {
	return text + " [" + string(label) + "]"
}
