package middleware_test

import (
	"context"
	"sort"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// MockStore is a simple map-based store for testing middleware.
type MockStore struct {
	data map[string]*domain.Form
	err  error
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]*domain.Form),
	}
}

func (s *MockStore) Save(ctx context.Context, form *domain.Form) error {
	if s.err != nil {
		return s.err
	}
	s.data[form.ID] = form.Clone()
	return nil
}

func (s *MockStore) Load(ctx context.Context, formID string) (*domain.Form, error) {
	if s.err != nil {
		return nil, s.err
	}
	form, ok := s.data[formID]
	if !ok {
		return nil, domain.ErrFormNotFound
	}
	return form.Clone(), nil
}

func (s *MockStore) Delete(ctx context.Context, formID string) error {
	delete(s.data, formID)
	return nil
}

func (s *MockStore) List(ctx context.Context, organizationID string) ([]*domain.Form, error) {
	forms := make([]*domain.Form, 0, len(s.data))
	for _, f := range s.data {
		if organizationID == "" || f.OrganizationID == organizationID {
			forms = append(forms, f.Clone())
		}
	}
	sort.Slice(forms, func(i, j int) bool { return forms[i].ID < forms[j].ID })
	return forms, nil
}

var _ ports.FormStore = (*MockStore)(nil)

func newForm(id, org string) *domain.Form {
	return &domain.Form{ID: id, OrganizationID: org, Data: domain.NewBookingFlowData(id, "Form "+id)}
}
