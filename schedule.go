package arbor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/arbor/pkg/availability"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/employees"
)

// AvailabilityQuery selects one month of one service.
type AvailabilityQuery struct {
	FormID    string
	ServiceID string
	Year      int
	Month     time.Month
}

// Availability computes the bookable slots of a service of a form, using the
// stored form rather than the draft.
func (s *Service) Availability(ctx context.Context, organizationID string, q AvailabilityQuery) (res availability.Result, err error) {
	if s.calculator == nil {
		return res, fmt.Errorf("%w: no provider configured", domain.ErrProviderUnavailable)
	}
	if q.Year < 1 {
		return res, invalid(fmt.Errorf("year %d", q.Year))
	}

	form, err := s.GetForm(ctx, organizationID, q.FormID)
	if err != nil {
		return res, err
	}
	node, ok := form.Data.ServiceTree.Find(q.ServiceID)
	if !ok || !node.IsLeaf() {
		return res, fmt.Errorf("%w: %s", domain.ErrServiceNotFound, q.ServiceID)
	}
	org, err := s.orgs.GetOrganization(ctx, organizationID)
	if err != nil {
		return res, err
	}
	staff, err := s.employees.ListEmployees(ctx, organizationID)
	if err != nil {
		return res, fmt.Errorf("failed to list employees: %w", err)
	}

	req := availability.Request{
		Organization: org,
		Year:         q.Year,
		Month:        q.Month,
	}
	if svc := node.Service; svc != nil {
		req.ServiceMinutes = svc.DurationMinutes
		req.Settings = svc.Scheduling
		req.Assignments = domain.Assignments(svc.EmployeeIDs, staff)
	}

	start := s.now()
	defer func() {
		if s.availObserver != nil {
			s.availObserver.ObserveAvailability(s.now().Sub(start), err)
		}
	}()
	return s.calculator.Compute(ctx, req)
}

// ListEmployees returns the employees of an organisation ordered by name.
func (s *Service) ListEmployees(ctx context.Context, organizationID string) ([]domain.Employee, error) {
	if organizationID == "" {
		return nil, invalid(errors.New("organization is required"))
	}
	return s.employees.ListEmployees(ctx, organizationID)
}

// SyncEmployees pulls the employee list of the provider into the
// organisation's directory.
func (s *Service) SyncEmployees(ctx context.Context, organizationID string) (employees.Report, error) {
	if s.syncer == nil {
		return employees.Report{}, fmt.Errorf("%w: no provider configured", domain.ErrProviderUnavailable)
	}
	if organizationID == "" {
		return employees.Report{}, invalid(errors.New("organization is required"))
	}
	return s.syncer.Sync(ctx, organizationID)
}

// ToggleEmployee flips whether an employee can be booked. Later syncs keep
// the toggled value.
func (s *Service) ToggleEmployee(ctx context.Context, organizationID, employeeID string) (domain.Employee, error) {
	e, err := s.employees.GetEmployee(ctx, employeeID)
	if err != nil {
		return domain.Employee{}, err
	}
	if organizationID == "" || e.OrganizationID != organizationID {
		return domain.Employee{}, fmt.Errorf("%w: %s", domain.ErrEmployeeNotFound, employeeID)
	}
	e.Active = !e.Active
	if err := s.employees.SaveEmployee(ctx, e); err != nil {
		return domain.Employee{}, fmt.Errorf("failed to save employee %s: %w", employeeID, err)
	}
	s.logger.Info("employee toggled", "employee_id", employeeID, "active", e.Active)
	return e, nil
}

// Jobs returns the periodic jobs of the service, ready for a scheduler:
// employee sync of the given organisations and purge of expired forms.
func (s *Service) Jobs(organizations []string) (sync employees.Job, purge employees.Job) {
	sync = func(ctx context.Context) error {
		var errs []error
		for _, org := range organizations {
			if _, err := s.SyncEmployees(ctx, org); err != nil {
				errs = append(errs, fmt.Errorf("organization %s: %w", org, err))
			}
		}
		return errors.Join(errs...)
	}
	purge = func(ctx context.Context) error {
		_, err := s.PurgeDeleted(ctx)
		return err
	}
	return sync, purge
}
