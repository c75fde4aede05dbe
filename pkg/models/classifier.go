// Package models contains shared data models used across the codebase.
package models

import "context"

// Classification is the inference engine's answer for one image.
type Classification struct {
	Label           string       `json:"label"`
	Confidence      float64      `json:"confidence"`
	TopClasses      []ClassScore `json:"top_classes"`
	InferenceTimeMS float64      `json:"inference_time_ms"`
}

// Classifier is the inference engine capability. Never call a concrete
// engine directly — always inject this interface.
type Classifier interface {
	// ClassifyOne classifies a single image payload.
	ClassifyOne(ctx context.Context, image []byte) (Classification, error)
	// ClassifyMany classifies a batch in one engine call. Results are
	// aligned positionally with the input slice.
	ClassifyMany(ctx context.Context, images [][]byte) ([]Classification, error)
	// Name returns the provider identifier (e.g., "http", "mock").
	Name() string
}
