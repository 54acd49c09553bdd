// Package render turns labeled items into output lines.
//
// [Writer] implements ports.ResultApplier. In annotate mode every item is
// written as "text [label]". In hide mode only items whose label is in the
// keep-set are written, unchanged. The JSON format writes one object per item
// regardless of mode and records the presentation outcome instead.
package render
