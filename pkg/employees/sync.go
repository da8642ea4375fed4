// Package employees keeps the local employee directory in step with the
// schedule provider.
package employees

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/google/uuid"
)

// Report summarises one synchronisation run.
type Report struct {
	OrganizationID string    `json:"organizationId"`
	Created        int       `json:"created"`
	Updated        int       `json:"updated"`
	Deactivated    int       `json:"deactivated"`
	SyncedAt       time.Time `json:"syncedAt"`
}

// Observer is told about the outcome of every run.
type Observer interface {
	ObserveEmployeeSync(err error)
}

// Syncer copies provider employees into an EmployeeStore.
type Syncer struct {
	provider ports.ScheduleProvider
	store    ports.EmployeeStore
	now      func() time.Time
	newID    func() string
	observer Observer
	logger   *slog.Logger
}

// Option configures the Syncer.
type Option func(*Syncer)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) {
		s.now = now
	}
}

// WithIDGenerator overrides how new employee IDs are minted.
func WithIDGenerator(fn func() string) Option {
	return func(s *Syncer) {
		s.newID = fn
	}
}

// WithObserver reports run outcomes to obs.
func WithObserver(obs Observer) Option {
	return func(s *Syncer) {
		s.observer = obs
	}
}

// WithLogger configures a logger for the Syncer.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Syncer) {
		s.logger = logger
	}
}

// NewSyncer creates a Syncer.
func NewSyncer(provider ports.ScheduleProvider, store ports.EmployeeStore, opts ...Option) *Syncer {
	s := &Syncer{
		provider: provider,
		store:    store,
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync upserts the provider's employees into organizationID.
//
// New employees start active. Known employees get their name and email
// refreshed but keep their active flag, so manual toggles survive. Employees
// the provider no longer reports are deactivated, never deleted.
func (s *Syncer) Sync(ctx context.Context, organizationID string) (rep Report, err error) {
	defer func() {
		if s.observer != nil {
			s.observer.ObserveEmployeeSync(err)
		}
	}()

	remote, err := s.provider.ListEmployees(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list provider employees: %w", err)
	}
	local, err := s.store.ListEmployees(ctx, organizationID)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list employees: %w", err)
	}

	byProvider := make(map[string]domain.Employee, len(local))
	for _, e := range local {
		byProvider[e.ProviderID] = e
	}

	now := s.now().UTC()
	rep = Report{OrganizationID: organizationID, SyncedAt: now}
	seen := make(map[string]bool, len(remote))

	for _, pe := range remote {
		if pe.ID == "" || seen[pe.ID] {
			continue
		}
		seen[pe.ID] = true

		e, exists := byProvider[pe.ID]
		if exists {
			rep.Updated++
		} else {
			e = domain.Employee{
				ID:             s.newID(),
				OrganizationID: organizationID,
				ProviderID:     pe.ID,
				Active:         true,
			}
			rep.Created++
		}
		e.Name = pe.Name
		e.Email = pe.Email
		e.SyncedAt = now
		if err := s.store.SaveEmployee(ctx, e); err != nil {
			return rep, fmt.Errorf("failed to save employee %s: %w", e.ID, err)
		}
	}

	for _, e := range local {
		if seen[e.ProviderID] || !e.Active {
			continue
		}
		e.Active = false
		e.SyncedAt = now
		if err := s.store.SaveEmployee(ctx, e); err != nil {
			return rep, fmt.Errorf("failed to deactivate employee %s: %w", e.ID, err)
		}
		rep.Deactivated++
	}

	s.logger.Info("employees synced",
		"organization_id", organizationID,
		"created", rep.Created,
		"updated", rep.Updated,
		"deactivated", rep.Deactivated)
	return rep, nil
}
