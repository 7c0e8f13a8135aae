package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type memoryObject struct {
	id         string
	vector     []float32
	properties map[string]any
}

type memoryClass struct {
	properties map[string]string
	objects    []*memoryObject
}

// Memory is an in-process Store with cosine similarity, mirroring the
// Weaviate adapter's semantics closely enough for tests: queries against a
// missing class fail, certainty is (1+cos)/2.
type Memory struct {
	mu      sync.RWMutex
	classes map[string]*memoryClass
}

func NewMemory() *Memory {
	return &Memory{classes: make(map[string]*memoryClass)}
}

func (m *Memory) EnsureClass(ctx context.Context, class string, properties map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.classes[class]; ok {
		return nil
	}
	m.classes[class] = &memoryClass{properties: properties}
	return nil
}

func (m *Memory) ClassExists(ctx context.Context, class string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.classes[class]
	return ok, nil
}

func (m *Memory) DeleteClass(ctx context.Context, class string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.classes[class]; !ok {
		return fmt.Errorf("class %s does not exist", class)
	}
	delete(m.classes, class)
	return nil
}

func (m *Memory) CreateObject(ctx context.Context, class string, vector []float32, properties map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.classes[class]
	if !ok {
		return "", fmt.Errorf("class %s does not exist", class)
	}

	props := make(map[string]any, len(properties))
	for k, v := range properties {
		props[k] = v
	}
	obj := &memoryObject{
		id:         uuid.NewString(),
		vector:     append([]float32(nil), vector...),
		properties: props,
	}
	c.objects = append(c.objects, obj)
	return obj.id, nil
}

func (m *Memory) MergeObject(ctx context.Context, class, id string, properties map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, err := m.find(class, id)
	if err != nil {
		return err
	}
	for k, v := range properties {
		obj.properties[k] = v
	}
	return nil
}

func (m *Memory) DeleteObject(ctx context.Context, class, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.classes[class]
	if !ok {
		return fmt.Errorf("class %s does not exist", class)
	}
	for i, obj := range c.objects {
		if obj.id == id {
			c.objects = append(c.objects[:i], c.objects[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("object %s/%s does not exist", class, id)
}

func (m *Memory) GetObject(ctx context.Context, class, id string) (*Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, err := m.find(class, id)
	if err != nil {
		return nil, nil
	}
	return &Match{ID: obj.id, Properties: copyProps(obj.properties, nil)}, nil
}

func (m *Memory) ListObjects(ctx context.Context, class string, fields []string) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.classes[class]
	if !ok {
		return nil, fmt.Errorf("class %s does not exist", class)
	}

	matches := make([]Match, 0, len(c.objects))
	for _, obj := range c.objects {
		matches = append(matches, Match{ID: obj.id, Properties: copyProps(obj.properties, fields)})
	}
	return matches, nil
}

func (m *Memory) NearVector(ctx context.Context, class string, vector []float32, certainty float64, limit int, fields []string) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.classes[class]
	if !ok {
		return nil, fmt.Errorf("class %s does not exist", class)
	}

	matches := make([]Match, 0, len(c.objects))
	for _, obj := range c.objects {
		score := (1 + cosineSimilarity(vector, obj.vector)) / 2
		if score < certainty {
			continue
		}
		matches = append(matches, Match{
			ID:         obj.id,
			Certainty:  score,
			Properties: copyProps(obj.properties, fields),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Certainty > matches[j].Certainty
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (m *Memory) WhereEqual(ctx context.Context, class, property, value string, fields []string) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.classes[class]
	if !ok {
		return nil, fmt.Errorf("class %s does not exist", class)
	}

	var matches []Match
	for _, obj := range c.objects {
		if v, ok := obj.properties[property].(string); ok && v == value {
			matches = append(matches, Match{ID: obj.id, Properties: copyProps(obj.properties, fields)})
		}
	}
	return matches, nil
}

// find expects the caller to hold the lock.
func (m *Memory) find(class, id string) (*memoryObject, error) {
	c, ok := m.classes[class]
	if !ok {
		return nil, fmt.Errorf("class %s does not exist", class)
	}
	for _, obj := range c.objects {
		if obj.id == id {
			return obj, nil
		}
	}
	return nil, fmt.Errorf("object %s/%s does not exist", class, id)
}

func copyProps(props map[string]any, fields []string) map[string]any {
	out := make(map[string]any, len(props))
	if fields == nil {
		for k, v := range props {
			out[k] = v
		}
		return out
	}
	for _, f := range fields {
		if v, ok := props[f]; ok {
			out[f] = v
		}
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
