package domain

// Label is a short classification string.
type Label string

// Outcome is the presentation effect a label has on its item.
type Outcome int

const (
	// OutcomeShow leaves the item visible and unchanged.
	OutcomeShow Outcome = iota
	// OutcomeHide removes the item from view.
	OutcomeHide
	// OutcomeAnnotate shows the item with its label appended.
	OutcomeAnnotate
)

// String returns a human-readable representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeShow:
		return "show"
	case OutcomeHide:
		return "hide"
	case OutcomeAnnotate:
		return "annotate"
	default:
		return "unknown"
	}
}

// LabelPolicy decides what a label means for presentation.
type LabelPolicy struct {
	keep     map[Label]struct{}
	fallback Label
	hide     bool
}

// NewLabelPolicy builds a policy from the keep-set, the fallback label and
// the hide-mode flag.
func NewLabelPolicy(keep []string, fallback string, hide bool) LabelPolicy {
	set := make(map[Label]struct{}, len(keep))
	for _, k := range keep {
		set[Label(k)] = struct{}{}
	}
	return LabelPolicy{keep: set, fallback: Label(fallback), hide: hide}
}

// Fallback returns the label used when no classification is available.
func (p LabelPolicy) Fallback() Label {
	return p.fallback
}

// HideMode reports whether non-kept items are hidden instead of annotated.
func (p LabelPolicy) HideMode() bool {
	return p.hide
}

// Keeps reports whether label is in the keep-set.
func (p LabelPolicy) Keeps(label Label) bool {
	_, ok := p.keep[label]
	return ok
}

// Decide maps a label to its presentation outcome. Without hide mode every
// label is shown as an annotation.
func (p LabelPolicy) Decide(label Label) Outcome {
	if !p.hide {
		return OutcomeAnnotate
	}
	if p.Keeps(label) {
		return OutcomeShow
	}
	return OutcomeHide
}
