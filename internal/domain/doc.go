// Package domain contains the core entities and value objects for dmfilter.
//
// This package is the innermost layer of the architecture. It has no
// dependencies on infrastructure concerns (HTTP, file system, logging) and
// holds only the data model the batching core operates on.
//
// # Entities
//
//   - [Item]: one classifiable text unit tied to a presentation [Handle]
//   - [Batch]: an immutable, order-preserving group of items sent in one request
//   - [Label]: a classification string returned by the classifier
//   - [LabelPolicy]: the keep-set, fallback label and hide/annotate mode
//
// Items and batches are never mutated once they leave the intake buffer.
package domain
