// Package ner is the narrow contract to the external entity-classification
// service, plus its HTTP client. The pipeline only ever sees the Classifier
// interface so tests substitute a deterministic fake.
package ner

import "context"

// GroupOrganization is the entity group the merchant extractor consumes.
const GroupOrganization = "ORG"

// Entity is one labeled span; Start and End are byte offsets into the
// submitted input string.
type Entity struct {
	EntityGroup string  `json:"entity_group"`
	Score       float32 `json:"score"`
	Word        string  `json:"word"`
	Start       int     `json:"start"`
	End         int     `json:"end"`
}

// Classifier classifies a line of text into labeled entity spans.
type Classifier interface {
	Classify(ctx context.Context, text string) ([]Entity, error)
}
