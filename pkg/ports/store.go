package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// FormStore defines the interface for persisting booking forms.
// Stores keep soft-deleted forms like any other; hiding them is the job of
// the soft-delete middleware.
type FormStore interface {
	// Save creates or replaces the form.
	Save(ctx context.Context, form *domain.Form) error

	// Load retrieves a form by ID.
	// Returns domain.ErrFormNotFound if the form does not exist.
	Load(ctx context.Context, formID string) (*domain.Form, error)

	// Delete removes the form. Deleting a missing form is not an error.
	Delete(ctx context.Context, formID string) error

	// List returns the forms of an organisation ordered by ID.
	// An empty organisation ID lists the forms of every organisation.
	List(ctx context.Context, organizationID string) ([]*domain.Form, error)
}

// EmployeeStore persists employees synchronised from the provider.
type EmployeeStore interface {
	// SaveEmployee creates or replaces an employee.
	SaveEmployee(ctx context.Context, e domain.Employee) error

	// GetEmployee returns domain.ErrEmployeeNotFound if the employee does not exist.
	GetEmployee(ctx context.Context, employeeID string) (domain.Employee, error)

	// ListEmployees returns the employees of an organisation ordered by name.
	ListEmployees(ctx context.Context, organizationID string) ([]domain.Employee, error)
}

// OrganizationStore persists tenants.
type OrganizationStore interface {
	SaveOrganization(ctx context.Context, org domain.Organization) error

	// GetOrganization returns domain.ErrOrganizationNotFound if the organisation does not exist.
	GetOrganization(ctx context.Context, organizationID string) (domain.Organization, error)
}

// Watchable defines an interface for stores that can notify about changes.
type Watchable interface {
	// Watch returns a channel of change events that is closed when ctx ends.
	Watch(ctx context.Context) (<-chan domain.ChangeEvent, error)
}
