package ports

import "context"

// Classifier transmits one classification request to the external service.
// Implementations handle serialization, HTTP communication and authentication.
type Classifier interface {
	// Classify sends the request and returns the raw response body.
	// An error means the batch could not be classified (connection failure,
	// non-success status). The core never retries.
	Classify(ctx context.Context, req ClassifyRequest) ([]byte, error)
}

// ClassifyRequest is the transport-neutral form of one batch request.
type ClassifyRequest struct {
	// BatchID correlates the request with the batch it was built from.
	BatchID string

	// Prompt is the full instruction block followed by the item texts.
	Prompt string

	// Title is the contextual subject the items belong to.
	Title string

	// Texts holds the item texts in batch order.
	Texts []string
}
