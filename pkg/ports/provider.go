package ports

import (
	"context"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
)

// ScheduleProvider is the external field-service system that owns employees
// and their calendars.
type ScheduleProvider interface {
	// ListEmployees returns every employee known to the provider.
	ListEmployees(ctx context.Context) ([]domain.ProviderEmployee, error)

	// FreeIntervals returns the time an employee is available and not
	// already scheduled within [from, to).
	FreeIntervals(ctx context.Context, providerEmployeeID string, from, to time.Time) ([]domain.Interval, error)
}
