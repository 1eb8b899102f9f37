package fakeapi

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// ErrUnknownModel indicates the requested model is not in the catalog.
var ErrUnknownModel = errors.New("unknown model")

// ErrDuplicateModel indicates an attempt to register the same model twice.
var ErrDuplicateModel = errors.New("model already registered")

// Catalog is the set of models the fake API advertises.
type Catalog struct {
	mu     sync.RWMutex
	models map[string]openai.Model
}

// NewCatalog constructs a catalog holding the given models.
func NewCatalog(models ...openai.Model) (*Catalog, error) {
	c := &Catalog{models: make(map[string]openai.Model)}
	if err := c.Register(models...); err != nil {
		return nil, err
	}
	return c, nil
}

// Register adds models to the catalog.
func (c *Catalog) Register(models ...openai.Model) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, model := range models {
		if model.ID == "" {
			return errors.New("model id must not be empty")
		}
		if _, exists := c.models[model.ID]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateModel, model.ID)
		}
		if model.Object == "" {
			model.Object = "model"
		}
		c.models[model.ID] = model
	}
	return nil
}

// Lookup returns the descriptor for a model ID.
func (c *Catalog) Lookup(id string) (openai.Model, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	model, ok := c.models[id]
	if !ok {
		return openai.Model{}, fmt.Errorf("%w: %s", ErrUnknownModel, id)
	}
	return model, nil
}

// List returns every model ordered by ID.
func (c *Catalog) List() []openai.Model {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]openai.Model, 0, len(c.models))
	for _, model := range c.models {
		result = append(result, model)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
