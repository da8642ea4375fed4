package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // registers the "postgres" driver
)

// Store implements the form, employee and organisation stores backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var (
	_ ports.FormStore         = (*Store)(nil)
	_ ports.EmployeeStore     = (*Store)(nil)
	_ ports.OrganizationStore = (*Store)(nil)
)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to dsn and applies pending migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := Migrate(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db), nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- FormStore ---------------------------------------------------------------

type formRow struct {
	ID             string       `db:"id"`
	OrganizationID string       `db:"organization_id"`
	Data           []byte       `db:"data"`
	CreatedAt      time.Time    `db:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at"`
	DeletedAt      sql.NullTime `db:"deleted_at"`
}

func (r formRow) form() (*domain.Form, error) {
	f := &domain.Form{
		ID:             r.ID,
		OrganizationID: r.OrganizationID,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if err := json.Unmarshal(r.Data, &f.Data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal form %s: %w", r.ID, err)
	}
	if r.DeletedAt.Valid {
		t := r.DeletedAt.Time
		f.DeletedAt = &t
	}
	return f, nil
}

const formColumns = `id, organization_id, data, created_at, updated_at, deleted_at`

func (s *Store) Save(ctx context.Context, form *domain.Form) error {
	data, err := json.Marshal(form.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal form: %w", err)
	}
	var deletedAt sql.NullTime
	if form.DeletedAt != nil {
		deletedAt = sql.NullTime{Time: *form.DeletedAt, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO forms (`+formColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			organization_id = EXCLUDED.organization_id,
			data = EXCLUDED.data,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at
	`, form.ID, form.OrganizationID, data, form.CreatedAt, form.UpdatedAt, deletedAt)
	if err != nil {
		return fmt.Errorf("failed to save form %s: %w", form.ID, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, formID string) (*domain.Form, error) {
	var row formRow
	err := s.db.GetContext(ctx, &row, `SELECT `+formColumns+` FROM forms WHERE id = $1`, formID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrFormNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load form %s: %w", formID, err)
	}
	return row.form()
}

func (s *Store) Delete(ctx context.Context, formID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM forms WHERE id = $1`, formID); err != nil {
		return fmt.Errorf("failed to delete form %s: %w", formID, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, organizationID string) ([]*domain.Form, error) {
	var rows []formRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+formColumns+` FROM forms
		WHERE $1 = '' OR organization_id = $1
		ORDER BY id
	`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}

	forms := make([]*domain.Form, 0, len(rows))
	for _, r := range rows {
		f, err := r.form()
		if err != nil {
			return nil, err
		}
		forms = append(forms, f)
	}
	return forms, nil
}

// --- EmployeeStore -----------------------------------------------------------

const employeeColumns = `id, organization_id, provider_id, name, email, active, synced_at`

func (s *Store) SaveEmployee(ctx context.Context, e domain.Employee) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO employees (`+employeeColumns+`)
		VALUES (:id, :organization_id, :provider_id, :name, :email, :active, :synced_at)
		ON CONFLICT (id) DO UPDATE SET
			organization_id = EXCLUDED.organization_id,
			provider_id = EXCLUDED.provider_id,
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			active = EXCLUDED.active,
			synced_at = EXCLUDED.synced_at
	`, e)
	if err != nil {
		return fmt.Errorf("failed to save employee %s: %w", e.ID, err)
	}
	return nil
}

func (s *Store) GetEmployee(ctx context.Context, employeeID string) (domain.Employee, error) {
	var e domain.Employee
	err := s.db.GetContext(ctx, &e, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, employeeID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Employee{}, domain.ErrEmployeeNotFound
	}
	if err != nil {
		return domain.Employee{}, fmt.Errorf("failed to load employee %s: %w", employeeID, err)
	}
	return e, nil
}

func (s *Store) ListEmployees(ctx context.Context, organizationID string) ([]domain.Employee, error) {
	employees := []domain.Employee{}
	err := s.db.SelectContext(ctx, &employees, `
		SELECT `+employeeColumns+` FROM employees
		WHERE organization_id = $1
		ORDER BY name, id
	`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	return employees, nil
}

// --- OrganizationStore -------------------------------------------------------

type organizationRow struct {
	ID            string `db:"id"`
	Name          string `db:"name"`
	Timezone      string `db:"timezone"`
	BusinessHours []byte `db:"business_hours"`
	ClosedDates   []byte `db:"closed_dates"`
}

func (s *Store) SaveOrganization(ctx context.Context, org domain.Organization) error {
	hours, err := json.Marshal(org.BusinessHours)
	if err != nil {
		return fmt.Errorf("failed to marshal business hours: %w", err)
	}
	closed, err := json.Marshal(org.ClosedDates)
	if err != nil {
		return fmt.Errorf("failed to marshal closed dates: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO organizations (id, name, timezone, business_hours, closed_dates)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			timezone = EXCLUDED.timezone,
			business_hours = EXCLUDED.business_hours,
			closed_dates = EXCLUDED.closed_dates
	`, org.ID, org.Name, org.Timezone, hours, closed)
	if err != nil {
		return fmt.Errorf("failed to save organization %s: %w", org.ID, err)
	}
	return nil
}

func (s *Store) GetOrganization(ctx context.Context, organizationID string) (domain.Organization, error) {
	var row organizationRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, name, timezone, business_hours, closed_dates
		FROM organizations WHERE id = $1
	`, organizationID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Organization{}, domain.ErrOrganizationNotFound
	}
	if err != nil {
		return domain.Organization{}, fmt.Errorf("failed to load organization %s: %w", organizationID, err)
	}

	org := domain.Organization{ID: row.ID, Name: row.Name, Timezone: row.Timezone}
	if len(row.BusinessHours) > 0 {
		if err := json.Unmarshal(row.BusinessHours, &org.BusinessHours); err != nil {
			return domain.Organization{}, fmt.Errorf("failed to unmarshal business hours: %w", err)
		}
	}
	if len(row.ClosedDates) > 0 {
		if err := json.Unmarshal(row.ClosedDates, &org.ClosedDates); err != nil {
			return domain.Organization{}, fmt.Errorf("failed to unmarshal closed dates: %w", err)
		}
	}
	return org, nil
}
