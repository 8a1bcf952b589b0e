package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/schemaview/internal/explorer"
)

// CreateSchemaRequest is the request body for creating a schema file.
type CreateSchemaRequest struct {
	Path    string `json:"path" example:"shapes/point.json" validate:"required"`
	Content string `json:"content" example:"{\"type\": \"object\"}" validate:"required"`
}

// UpdateSchemaRequest is the request body for replacing a schema file.
type UpdateSchemaRequest struct {
	Content string `json:"content" example:"{\"type\": \"string\"}" validate:"required"`
}

// OpenTreeRequest opens a tree session over a catalog schema.
type OpenTreeRequest struct {
	Path               string `json:"path" example:"shapes/point.json" validate:"required"`
	ExpandedDepth      *int   `json:"expanded_depth,omitempty" example:"1"`
	MergeAllOf         *bool  `json:"merge_all_of,omitempty"`
	LimitPropertyCount *int   `json:"limit_property_count,omitempty" example:"100"`
}

// Validate implements validation.Validatable.
func (r OpenTreeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Required),
		validation.Field(&r.ExpandedDepth, validation.Min(0)),
		validation.Field(&r.LimitPropertyCount, validation.Min(0)),
	)
}

func (r OpenTreeRequest) options() explorer.TreeOptions {
	return explorer.TreeOptions{
		ExpandedDepth:      r.ExpandedDepth,
		MergeAllOf:         r.MergeAllOf,
		LimitPropertyCount: r.LimitPropertyCount,
	}
}

// SetExpandedRequest toggles the expansion flag of one node.
type SetExpandedRequest struct {
	Expanded bool `json:"expanded"`
}

// SchemaDetail is the full schema response type (aliased from the domain layer).
type SchemaDetail = explorer.SchemaDetail

// SchemaListItem is a lightweight item in a list response (aliased from the domain layer).
type SchemaListItem = explorer.SchemaListItem

// SchemaListResponse wraps paginated schema listings.
type SchemaListResponse struct {
	Schemas []SchemaListItem `json:"schemas" validate:"required"`
	Total   int              `json:"total" example:"42" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	Path    string `json:"path" example:"shapes/point.json" validate:"required"`
	Title   string `json:"title" example:"Point" validate:"required"`
	Snippet string `json:"snippet" example:"...matched text..." validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// GraphNode is a schema file in the reference graph.
type GraphNode struct {
	ID    string `json:"id" example:"shapes/point.json" validate:"required"`
	Title string `json:"title,omitempty" example:"Point"`
}

// GraphLink is a reference between two schema files.
type GraphLink struct {
	Source string `json:"source" example:"shapes/line.json" validate:"required"`
	Target string `json:"target" example:"shapes/point.json" validate:"required"`
}

// GraphResponse wraps the reference graph.
type GraphResponse struct {
	Nodes []GraphNode `json:"nodes" validate:"required"`
	Links []GraphLink `json:"links" validate:"required"`
}
