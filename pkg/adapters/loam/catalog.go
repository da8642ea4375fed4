// Package loam serves form templates stored as Markdown/YAML/JSON documents
// in a Loam repository.
package loam

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/schema"
	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
)

// Catalog adapts a Loam repository to ports.TemplateCatalog.
type Catalog struct {
	Repo *loam.TypedRepository[TemplateMetadata]
}

var _ ports.TemplateCatalog = (*Catalog)(nil)

// New creates a catalogue over an initialised repository.
func New(repo core.Repository) *Catalog {
	return &Catalog{Repo: loam.NewTypedRepository[TemplateMetadata](repo)}
}

// Open initialises a read-only repository at dir.
func Open(dir string) (*Catalog, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(abs,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(repo), nil
}

// ListTemplates returns every valid template ordered by ID.
// A document that does not describe a valid form is an error, so broken
// templates surface at startup rather than when a user picks them.
func (c *Catalog) ListTemplates(ctx context.Context) ([]domain.Template, error) {
	docs, err := c.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string, len(docs))
	out := make([]domain.Template, 0, len(docs))
	for _, doc := range docs {
		t, err := toTemplate(doc.ID, doc.Data, doc.Content)
		if err != nil {
			return nil, err
		}
		if existing, ok := seen[t.ID]; ok {
			return nil, fmt.Errorf("collision detected: template '%s' is defined in both '%s' and '%s'", t.ID, existing, doc.ID)
		}
		seen[t.ID] = doc.ID
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetTemplate retrieves a template by ID.
func (c *Catalog) GetTemplate(ctx context.Context, id string) (domain.Template, error) {
	all, err := c.ListTemplates(ctx)
	if err != nil {
		return domain.Template{}, err
	}
	for _, t := range all {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.Template{}, fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, id)
}

func toTemplate(docID string, meta TemplateMetadata, content string) (domain.Template, error) {
	id := meta.ID
	if id == "" {
		id = docID
	}
	id = trimExtension(id)

	name := meta.Name
	if name == "" {
		name = id
	}
	description := meta.Description
	if description == "" {
		description = strings.TrimSpace(content)
	}

	data := domain.NewBookingFlowData(id, name)
	if meta.Theme != "" {
		data.Theme = meta.Theme
	}
	data.PrimaryColor = meta.PrimaryColor

	if len(meta.Services) > 0 {
		raw, err := json.Marshal(meta.Services)
		if err != nil {
			return domain.Template{}, fmt.Errorf("template %s: %w", id, err)
		}
		if err := json.Unmarshal(raw, &data.ServiceTree.Children); err != nil {
			return domain.Template{}, fmt.Errorf("template %s: invalid services: %w", id, err)
		}
	}
	if len(meta.Questions) > 0 {
		questions, err := domain.DecodeFields(meta.Questions)
		if err != nil {
			return domain.Template{}, fmt.Errorf("template %s: invalid questions: %w", id, err)
		}
		data.BaseQuestions = questions
	}

	if err := schema.ValidateData(data); err != nil {
		return domain.Template{}, fmt.Errorf("template %s: %w", id, err)
	}
	return domain.Template{ID: id, Name: name, Description: description, Tags: meta.Tags, Data: data}, nil
}

func trimExtension(id string) string {
	if ext := filepath.Ext(id); ext != "" {
		id = strings.TrimSuffix(id, ext)
	}
	return filepath.ToSlash(id)
}
