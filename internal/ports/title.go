package ports

// TitleSource exposes the subject title the current items belong to.
// It is read once per dispatched batch, not at submission time.
type TitleSource interface {
	Title() string
}
