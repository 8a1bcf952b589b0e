// Package models defines the domain types for schemaview.
package models

import "time"

// SchemaMetadata is a lightweight representation returned by list operations.
type SchemaMetadata struct {
	Path      string    `json:"path"`
	Title     string    `json:"title,omitempty"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
