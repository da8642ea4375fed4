package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// TemplateCatalog lists the starter forms users can create forms from.
type TemplateCatalog interface {
	// ListTemplates returns every template ordered by ID.
	ListTemplates(ctx context.Context) ([]domain.Template, error)

	// GetTemplate returns domain.ErrTemplateNotFound if the template does not exist.
	GetTemplate(ctx context.Context, id string) (domain.Template, error)
}
