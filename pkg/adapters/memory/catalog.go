package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/aretw0/arbor/pkg/domain"
)

// Catalog implements ports.TemplateCatalog using an in-memory map.
type Catalog struct {
	templates map[string]domain.Template
}

// NewCatalog creates a catalogue from domain objects.
func NewCatalog(templates ...domain.Template) (*Catalog, error) {
	data := make(map[string]domain.Template, len(templates))
	for _, t := range templates {
		if t.ID == "" {
			return nil, fmt.Errorf("template missing ID")
		}
		data[t.ID] = t
	}
	return &Catalog{templates: data}, nil
}

// GetTemplate retrieves a template by ID.
func (c *Catalog) GetTemplate(ctx context.Context, id string) (domain.Template, error) {
	t, ok := c.templates[id]
	if !ok {
		return domain.Template{}, fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, id)
	}
	return t, nil
}

// ListTemplates returns all templates ordered by ID.
func (c *Catalog) ListTemplates(ctx context.Context) ([]domain.Template, error) {
	out := make([]domain.Template, 0, len(c.templates))
	for _, t := range c.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID }) // Deterministic order
	return out, nil
}
