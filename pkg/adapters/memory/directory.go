package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
)

// Directory implements ports.EmployeeStore and ports.OrganizationStore in memory.
type Directory struct {
	mu        sync.RWMutex
	employees map[string]domain.Employee
	orgs      map[string]domain.Organization
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		employees: make(map[string]domain.Employee),
		orgs:      make(map[string]domain.Organization),
	}
}

func (d *Directory) SaveEmployee(ctx context.Context, e domain.Employee) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.employees[e.ID] = e
	return nil
}

func (d *Directory) GetEmployee(ctx context.Context, employeeID string) (domain.Employee, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.employees[employeeID]
	if !ok {
		return domain.Employee{}, domain.ErrEmployeeNotFound
	}
	return e, nil
}

func (d *Directory) ListEmployees(ctx context.Context, organizationID string) ([]domain.Employee, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]domain.Employee, 0)
	for _, e := range d.employees {
		if e.OrganizationID == organizationID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (d *Directory) SaveOrganization(ctx context.Context, org domain.Organization) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.orgs[org.ID] = org
	return nil
}

func (d *Directory) GetOrganization(ctx context.Context, organizationID string) (domain.Organization, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	org, ok := d.orgs[organizationID]
	if !ok {
		return domain.Organization{}, domain.ErrOrganizationNotFound
	}
	return org, nil
}
