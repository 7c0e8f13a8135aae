// Package vectorstore abstracts the external vector database behind a
// narrow interface. The answering pipeline and the assistant service depend
// on this abstraction, not on the Weaviate client directly.
package vectorstore

import "context"

// Match is one stored object returned by a lookup or similarity query.
type Match struct {
	ID         string
	Certainty  float64
	Properties map[string]any
}

// Store is the contract for a schema-style vector database: named classes
// holding vector+property objects, queried by nearest vector or by property
// filter.
type Store interface {
	// EnsureClass creates the class if it does not exist. Idempotent.
	// properties maps property name to data type ("string", "text",
	// "string[]", "date").
	EnsureClass(ctx context.Context, class string, properties map[string]string) error

	ClassExists(ctx context.Context, class string) (bool, error)

	DeleteClass(ctx context.Context, class string) error

	// CreateObject inserts an object and returns its store-assigned ID.
	// vector may be nil for classes that are never similarity-searched.
	CreateObject(ctx context.Context, class string, vector []float32, properties map[string]any) (string, error)

	// MergeObject patches the given properties into an existing object.
	MergeObject(ctx context.Context, class, id string, properties map[string]any) error

	DeleteObject(ctx context.Context, class, id string) error

	// GetObject fetches a single object by ID, or nil when absent.
	GetObject(ctx context.Context, class, id string) (*Match, error)

	// ListObjects returns every object of a class with the named properties.
	ListObjects(ctx context.Context, class string, fields []string) ([]Match, error)

	// NearVector returns up to limit objects with certainty at or above the
	// threshold, ordered by descending similarity.
	NearVector(ctx context.Context, class string, vector []float32, certainty float64, limit int, fields []string) ([]Match, error)

	// WhereEqual returns objects whose property equals the given value.
	WhereEqual(ctx context.Context, class, property, value string, fields []string) ([]Match, error)
}
