package postgres_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aretw0/arbor/pkg/adapters/postgres"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*postgres.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return postgres.New(sqlx.NewDb(db, "postgres")), mock
}

func TestStore_SaveForm(t *testing.T) {
	store, mock := newMock(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	form := &domain.Form{ID: "f1", OrganizationID: "org", Data: domain.NewBookingFlowData("f1", "Cuts"), CreatedAt: now, UpdatedAt: now}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO forms")).
		WithArgs("f1", "org", sqlmock.AnyArg(), now, now, sql.NullTime{}).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Save(context.Background(), form))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_LoadForm(t *testing.T) {
	store, mock := newMock(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	data, err := json.Marshal(domain.NewBookingFlowData("f1", "Cuts"))
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("FROM forms WHERE id = $1")).
		WithArgs("f1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "data", "created_at", "updated_at", "deleted_at"}).
			AddRow("f1", "org", data, now, now, now))

	form, err := store.Load(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, "Cuts", form.Data.InternalName)
	assert.Equal(t, domain.RootNodeID, form.Data.ServiceTree.ID)
	require.NotNil(t, form.DeletedAt)
	assert.True(t, form.DeletedAt.Equal(now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_LoadFormNotFound(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM forms WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrFormNotFound)
}

func TestStore_ListForms(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM forms")).
		WithArgs("org").
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "data", "created_at", "updated_at", "deleted_at"}).
			AddRow("a", "org", []byte(`{"id":"a","internalName":"A"}`), now, now, nil).
			AddRow("b", "org", []byte(`{"id":"b","internalName":"B"}`), now, now, nil))

	forms, err := store.List(context.Background(), "org")
	require.NoError(t, err)
	require.Len(t, forms, 2)
	assert.Equal(t, "A", forms[0].Data.InternalName)
	assert.Nil(t, forms[1].DeletedAt)
}

func TestStore_DeleteFormError(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM forms")).
		WithArgs("f1").
		WillReturnError(errors.New("connection reset"))

	err := store.Delete(context.Background(), "f1")
	assert.ErrorContains(t, err, "connection reset")
}

func TestStore_Employees(t *testing.T) {
	store, mock := newMock(t)
	synced := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	e := domain.Employee{ID: "e1", OrganizationID: "org", ProviderID: "101", Name: "Zoe", Active: true, SyncedAt: synced}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO employees")).
		WithArgs("e1", "org", "101", "Zoe", "", true, synced).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.SaveEmployee(context.Background(), e))

	cols := []string{"id", "organization_id", "provider_id", "name", "email", "active", "synced_at"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM employees WHERE id = $1")).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("e1", "org", "101", "Zoe", "", true, synced))
	got, err := store.GetEmployee(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, e, got)

	mock.ExpectQuery(regexp.QuoteMeta("FROM employees WHERE id = $1")).
		WithArgs("nobody").
		WillReturnError(sql.ErrNoRows)
	_, err = store.GetEmployee(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrEmployeeNotFound)

	mock.ExpectQuery(regexp.QuoteMeta("FROM employees")).
		WithArgs("empty-org").
		WillReturnRows(sqlmock.NewRows(cols))
	list, err := store.ListEmployees(context.Background(), "empty-org")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Organization(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM organizations WHERE id = $1")).
		WithArgs("org").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "timezone", "business_hours", "closed_dates"}).
			AddRow("org", "Salon", "Europe/Lisbon", []byte(`{"monday":[{"start":"09:00","end":"17:00"}]}`), []byte(`["2026-12-25"]`)))

	org, err := store.GetOrganization(context.Background(), "org")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Lisbon", org.Timezone)
	assert.Equal(t, []domain.TimeRange{{Start: "09:00", End: "17:00"}}, org.BusinessHours["monday"])
	assert.True(t, org.IsClosed("2026-12-25"))

	mock.ExpectQuery(regexp.QuoteMeta("FROM organizations WHERE id = $1")).
		WithArgs("none").
		WillReturnError(sql.ErrNoRows)
	_, err = store.GetOrganization(context.Background(), "none")
	assert.ErrorIs(t, err, domain.ErrOrganizationNotFound)
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	store, err := postgres.Open(context.Background(), dsn)
	require.NoError(t, err)
	defer store.Close()

	ports.RunFormStoreContract(t, store)
	ports.RunEmployeeStoreContract(t, store)
	ports.RunOrganizationStoreContract(t, store)
}
