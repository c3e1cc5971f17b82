// Package memory holds the scrapbook: a persistent, ordered collection
// of generated memories keyed by id.
package memory

import "errors"

// Memory is one saved unit of generated content. ID, UserPrompt and
// ImagePrompt never change after creation; ImageURL is replaced in
// place by each successful revision.
type Memory struct {
	ID          string `json:"id"`
	UserPrompt  string `json:"userPrompt"`
	Narrative   string `json:"narrative"`
	ImagePrompt string `json:"imagePrompt"`
	ImageURL    string `json:"imageUrl"`
}

var (
	// ErrNotFound is returned by Get for an unknown id.
	ErrNotFound = errors.New("memory not found")

	// ErrIncomplete is returned by Upsert for a record missing its
	// narrative or image. Partial generations stay in transient
	// pipeline state and are never written to the store.
	ErrIncomplete = errors.New("memory must have a narrative and an image")
)
