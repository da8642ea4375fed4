package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractForm(id, orgID string) *domain.Form {
	now := time.Now().UTC().Truncate(time.Millisecond)
	data := domain.NewBookingFlowData(id, "Contract "+id)
	data.ServiceTree.Children = []domain.FlowNode{{
		ID: "svc", Type: domain.NodeTypeService, Label: "Consult",
		Service: &domain.ServiceConfig{DurationMinutes: 30, EmployeeIDs: []string{"e1"}},
	}}
	return &domain.Form{ID: id, OrganizationID: orgID, Data: data, CreatedAt: now, UpdatedAt: now}
}

// RunFormStoreContract runs a suite of tests to verify that a FormStore
// implementation adheres to the defined interface contract.
func RunFormStoreContract(t *testing.T, store FormStore) {
	ctx := context.Background()
	suffix := time.Now().Format("20060102150405.000000")
	orgA := "org-a-" + suffix
	orgB := "org-b-" + suffix

	t.Run("Save and Load", func(t *testing.T) {
		form := contractForm("form-1-"+suffix, orgA)
		require.NoError(t, store.Save(ctx, form), "Save should not return error")

		loaded, err := store.Load(ctx, form.ID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, form.OrganizationID, loaded.OrganizationID)
		assert.Equal(t, form.Data, loaded.Data)
		assert.True(t, form.CreatedAt.Equal(loaded.CreatedAt), "CreatedAt %v != %v", form.CreatedAt, loaded.CreatedAt)
		assert.Nil(t, loaded.DeletedAt)
	})

	t.Run("Save Replaces", func(t *testing.T) {
		form := contractForm("form-2-"+suffix, orgA)
		require.NoError(t, store.Save(ctx, form))

		form.Data.InternalName = "Renamed"
		deleted := time.Now().UTC().Truncate(time.Millisecond)
		form.DeletedAt = &deleted
		require.NoError(t, store.Save(ctx, form))

		loaded, err := store.Load(ctx, form.ID)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", loaded.Data.InternalName)
		require.NotNil(t, loaded.DeletedAt, "stores must keep soft-deleted forms")
		assert.True(t, deleted.Equal(*loaded.DeletedAt))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+suffix)
		assert.ErrorIs(t, err, domain.ErrFormNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		form := contractForm("form-3-"+suffix, orgA)
		require.NoError(t, store.Save(ctx, form))

		require.NoError(t, store.Delete(ctx, form.ID), "Delete should not return error")
		_, err := store.Load(ctx, form.ID)
		assert.ErrorIs(t, err, domain.ErrFormNotFound, "Load after Delete should return ErrFormNotFound")

		assert.NoError(t, store.Delete(ctx, form.ID), "Deleting twice is not an error")
	})

	t.Run("List By Organization", func(t *testing.T) {
		b2 := contractForm("form-b2-"+suffix, orgB)
		b1 := contractForm("form-b1-"+suffix, orgB)
		other := contractForm("form-a9-"+suffix, orgA)
		for _, f := range []*domain.Form{b2, b1, other} {
			require.NoError(t, store.Save(ctx, f))
		}
		defer func() {
			_ = store.Delete(ctx, b1.ID)
			_ = store.Delete(ctx, b2.ID)
			_ = store.Delete(ctx, other.ID)
		}()

		forms, err := store.List(ctx, orgB)
		require.NoError(t, err)
		require.Len(t, forms, 2)
		assert.Equal(t, b1.ID, forms[0].ID, "List is ordered by ID")
		assert.Equal(t, b2.ID, forms[1].ID)

		all, err := store.List(ctx, "")
		require.NoError(t, err)
		ids := make([]string, 0, len(all))
		for _, f := range all {
			ids = append(ids, f.ID)
		}
		assert.Contains(t, ids, b1.ID)
		assert.Contains(t, ids, other.ID)
	})
}

// RunEmployeeStoreContract verifies an EmployeeStore implementation.
func RunEmployeeStoreContract(t *testing.T, store EmployeeStore) {
	ctx := context.Background()
	org := "org-emp-" + time.Now().Format("150405.000000")
	synced := time.Now().UTC().Truncate(time.Second)

	t.Run("Save and Get", func(t *testing.T) {
		e := domain.Employee{ID: org + "-e1", OrganizationID: org, ProviderID: "101", Name: "Zoe", Active: true, SyncedAt: synced}
		require.NoError(t, store.SaveEmployee(ctx, e))

		got, err := store.GetEmployee(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, "Zoe", got.Name)
		assert.Equal(t, "101", got.ProviderID)
		assert.True(t, got.Active)
		assert.True(t, synced.Equal(got.SyncedAt))
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.GetEmployee(ctx, org+"-missing")
		assert.ErrorIs(t, err, domain.ErrEmployeeNotFound)
	})

	t.Run("List Ordered By Name", func(t *testing.T) {
		require.NoError(t, store.SaveEmployee(ctx, domain.Employee{ID: org + "-e2", OrganizationID: org, ProviderID: "102", Name: "Adam"}))
		require.NoError(t, store.SaveEmployee(ctx, domain.Employee{ID: "other-" + org, OrganizationID: "other", ProviderID: "9", Name: "Bob"}))

		list, err := store.ListEmployees(ctx, org)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Adam", list[0].Name)
		assert.Equal(t, "Zoe", list[1].Name)
	})
}

// RunOrganizationStoreContract verifies an OrganizationStore implementation.
func RunOrganizationStoreContract(t *testing.T, store OrganizationStore) {
	ctx := context.Background()
	id := "org-" + time.Now().Format("150405.000000")

	org := domain.Organization{
		ID:       id,
		Name:     "Harbour Physio",
		Timezone: "Australia/Sydney",
		BusinessHours: domain.BusinessHours{
			"monday": {{Start: "09:00", End: "12:00"}, {Start: "13:00", End: "17:00"}},
		},
		ClosedDates: []string{"2026-12-25"},
	}
	require.NoError(t, store.SaveOrganization(ctx, org))

	got, err := store.GetOrganization(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, org, got)

	_, err = store.GetOrganization(ctx, id+"-missing")
	assert.ErrorIs(t, err, domain.ErrOrganizationNotFound)
}
