package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/fault"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// Weaviate implements Store against a Weaviate instance. Classes are
// created with an explicit vector (vectorizer "none") and cosine distance,
// so embeddings are always supplied by the caller.
type Weaviate struct {
	client *weaviate.Client
}

// NewWeaviate connects to the Weaviate instance at host. apiKey may be
// empty for unauthenticated local instances.
func NewWeaviate(host, scheme, apiKey string) (*Weaviate, error) {
	cfg := weaviate.Config{
		Host:   host,
		Scheme: scheme,
	}
	if apiKey != "" {
		cfg.AuthConfig = auth.ApiKey{Value: apiKey}
	}

	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}
	return &Weaviate{client: client}, nil
}

func (w *Weaviate) EnsureClass(ctx context.Context, class string, properties map[string]string) error {
	exists, err := w.ClassExists(ctx, class)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)

	props := make([]*models.Property, 0, len(names))
	for _, name := range names {
		props = append(props, &models.Property{
			Name:     name,
			DataType: []string{properties[name]},
		})
	}

	err = w.client.Schema().ClassCreator().WithClass(&models.Class{
		Class:             class,
		Properties:        props,
		Vectorizer:        "none",
		VectorIndexConfig: map[string]any{"distance": "cosine"},
	}).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to create class %s: %w", class, err)
	}
	return nil
}

func (w *Weaviate) ClassExists(ctx context.Context, class string) (bool, error) {
	exists, err := w.client.Schema().ClassExistenceChecker().WithClassName(class).Do(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check class %s: %w", class, err)
	}
	return exists, nil
}

func (w *Weaviate) DeleteClass(ctx context.Context, class string) error {
	if err := w.client.Schema().ClassDeleter().WithClassName(class).Do(ctx); err != nil {
		return fmt.Errorf("failed to delete class %s: %w", class, err)
	}
	return nil
}

func (w *Weaviate) CreateObject(ctx context.Context, class string, vector []float32, properties map[string]any) (string, error) {
	creator := w.client.Data().Creator().
		WithClassName(class).
		WithProperties(properties)
	if vector != nil {
		creator = creator.WithVector(vector)
	}

	wrapper, err := creator.Do(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create object in %s: %w", class, err)
	}
	return wrapper.Object.ID.String(), nil
}

func (w *Weaviate) MergeObject(ctx context.Context, class, id string, properties map[string]any) error {
	err := w.client.Data().Updater().
		WithMerge().
		WithClassName(class).
		WithID(id).
		WithProperties(properties).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to patch object %s/%s: %w", class, id, err)
	}
	return nil
}

func (w *Weaviate) DeleteObject(ctx context.Context, class, id string) error {
	if err := w.client.Data().Deleter().WithClassName(class).WithID(id).Do(ctx); err != nil {
		return fmt.Errorf("failed to delete object %s/%s: %w", class, id, err)
	}
	return nil
}

func (w *Weaviate) GetObject(ctx context.Context, class, id string) (*Match, error) {
	objs, err := w.client.Data().ObjectsGetter().WithClassName(class).WithID(id).Do(ctx)
	if err != nil {
		var clientErr *fault.WeaviateClientError
		if errors.As(err, &clientErr) && clientErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get object %s/%s: %w", class, id, err)
	}
	if len(objs) == 0 {
		return nil, nil
	}

	match := Match{ID: objs[0].ID.String()}
	if props, ok := objs[0].Properties.(map[string]any); ok {
		match.Properties = props
	}
	return &match, nil
}

func (w *Weaviate) ListObjects(ctx context.Context, class string, fields []string) ([]Match, error) {
	resp, err := w.client.GraphQL().Get().
		WithClassName(class).
		WithFields(gqlFields(fields, false)...).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", class, err)
	}
	return parseGetResponse(resp, class)
}

func (w *Weaviate) NearVector(ctx context.Context, class string, vector []float32, certainty float64, limit int, fields []string) ([]Match, error) {
	nearVector := w.client.GraphQL().NearVectorArgBuilder().
		WithVector(vector).
		WithCertainty(float32(certainty))

	resp, err := w.client.GraphQL().Get().
		WithClassName(class).
		WithFields(gqlFields(fields, true)...).
		WithNearVector(nearVector).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("near-vector query on %s failed: %w", class, err)
	}
	return parseGetResponse(resp, class)
}

func (w *Weaviate) WhereEqual(ctx context.Context, class, property, value string, fields []string) ([]Match, error) {
	where := filters.Where().
		WithPath([]string{property}).
		WithOperator(filters.Equal).
		WithValueText(value)

	resp, err := w.client.GraphQL().Get().
		WithClassName(class).
		WithWhere(where).
		WithFields(gqlFields(fields, false)...).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("filter query on %s failed: %w", class, err)
	}
	return parseGetResponse(resp, class)
}

func gqlFields(names []string, withCertainty bool) []graphql.Field {
	fields := make([]graphql.Field, 0, len(names)+1)
	for _, name := range names {
		fields = append(fields, graphql.Field{Name: name})
	}

	additional := []graphql.Field{{Name: "id"}}
	if withCertainty {
		additional = append(additional, graphql.Field{Name: "certainty"})
	}
	return append(fields, graphql.Field{Name: "_additional", Fields: additional})
}

func parseGetResponse(resp *models.GraphQLResponse, class string) ([]Match, error) {
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, fmt.Errorf("graphql query on %s failed: %s", class, strings.Join(msgs, "; "))
	}

	get, ok := resp.Data["Get"].(map[string]any)
	if !ok {
		return nil, nil
	}
	rows, _ := get[class].([]any)

	matches := make([]Match, 0, len(rows))
	for _, row := range rows {
		obj, ok := row.(map[string]any)
		if !ok {
			continue
		}
		match := Match{Properties: make(map[string]any, len(obj))}
		for key, value := range obj {
			if key == "_additional" {
				if additional, ok := value.(map[string]any); ok {
					if id, ok := additional["id"].(string); ok {
						match.ID = id
					}
					if certainty, ok := additional["certainty"].(float64); ok {
						match.Certainty = certainty
					}
				}
				continue
			}
			match.Properties[key] = value
		}
		matches = append(matches, match)
	}
	return matches, nil
}
