package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// DefaultRestoreWindow is how long a deleted form can be restored.
const DefaultRestoreWindow = 30 * 24 * time.Hour

// SoftDeleteStore marks forms as deleted instead of removing them.
// Deleted forms are invisible to Load and List until restored, and are removed
// for good by Purge once the restore window has passed.
type SoftDeleteStore struct {
	next   ports.FormStore
	window time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// SoftDeleteOption configures a SoftDeleteStore.
type SoftDeleteOption func(*SoftDeleteStore)

// WithRestoreWindow sets how long deleted forms stay restorable.
func WithRestoreWindow(d time.Duration) SoftDeleteOption {
	return func(s *SoftDeleteStore) {
		s.window = d
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) SoftDeleteOption {
	return func(s *SoftDeleteStore) {
		s.now = now
	}
}

// WithLogger configures a logger for purges.
func WithLogger(logger *slog.Logger) SoftDeleteOption {
	return func(s *SoftDeleteStore) {
		s.logger = logger
	}
}

// NewSoftDeleteStore wraps next.
func NewSoftDeleteStore(next ports.FormStore, opts ...SoftDeleteOption) *SoftDeleteStore {
	s := &SoftDeleteStore{
		next:   next,
		window: DefaultRestoreWindow,
		now:    time.Now,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SoftDelete returns the soft-delete behaviour as a Middleware.
func SoftDelete(opts ...SoftDeleteOption) Middleware {
	return func(next ports.FormStore) ports.FormStore {
		return NewSoftDeleteStore(next, opts...)
	}
}

// Window returns the restore window.
func (s *SoftDeleteStore) Window() time.Duration {
	return s.window
}

// Save persists the form as is, including its DeletedAt stamp.
func (s *SoftDeleteStore) Save(ctx context.Context, form *domain.Form) error {
	return s.next.Save(ctx, form)
}

// Load hides deleted forms.
func (s *SoftDeleteStore) Load(ctx context.Context, formID string) (*domain.Form, error) {
	form, err := s.next.Load(ctx, formID)
	if err != nil {
		return nil, err
	}
	if form.Deleted() {
		return nil, domain.ErrFormNotFound
	}
	return form, nil
}

// Delete stamps DeletedAt. Deleting a missing or already deleted form is not an error.
func (s *SoftDeleteStore) Delete(ctx context.Context, formID string) error {
	form, err := s.next.Load(ctx, formID)
	if errors.Is(err, domain.ErrFormNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if form.Deleted() {
		return nil
	}
	now := s.now().UTC()
	form.DeletedAt = &now
	return s.next.Save(ctx, form)
}

// List returns the live forms of an organisation.
func (s *SoftDeleteStore) List(ctx context.Context, organizationID string) ([]*domain.Form, error) {
	return s.filter(ctx, organizationID, false)
}

// ListDeleted returns the soft-deleted forms of an organisation.
func (s *SoftDeleteStore) ListDeleted(ctx context.Context, organizationID string) ([]*domain.Form, error) {
	return s.filter(ctx, organizationID, true)
}

// LoadAny returns the form whether or not it is deleted.
func (s *SoftDeleteStore) LoadAny(ctx context.Context, formID string) (*domain.Form, error) {
	return s.next.Load(ctx, formID)
}

// Restore clears the deletion stamp of a form deleted within the window.
// Restoring a live form is a no-op.
func (s *SoftDeleteStore) Restore(ctx context.Context, formID string) (*domain.Form, error) {
	form, err := s.next.Load(ctx, formID)
	if err != nil {
		return nil, err
	}
	if !form.Deleted() {
		return form, nil
	}
	if s.expired(form) {
		return nil, fmt.Errorf("%w: form %s deleted at %s", domain.ErrRestoreWindowExpired, formID, form.DeletedAt.Format(time.RFC3339))
	}
	form.DeletedAt = nil
	form.UpdatedAt = s.now().UTC()
	if err := s.next.Save(ctx, form); err != nil {
		return nil, fmt.Errorf("failed to restore form %s: %w", formID, err)
	}
	return form, nil
}

// Purge removes every form whose restore window has passed and reports how many were removed.
func (s *SoftDeleteStore) Purge(ctx context.Context) (int, error) {
	forms, err := s.next.List(ctx, "")
	if err != nil {
		return 0, err
	}
	purged := 0
	for _, f := range forms {
		if !f.Deleted() || !s.expired(f) {
			continue
		}
		if err := s.next.Delete(ctx, f.ID); err != nil {
			return purged, fmt.Errorf("failed to purge form %s: %w", f.ID, err)
		}
		purged++
	}
	if purged > 0 {
		s.logger.Info("purged deleted forms", "count", purged)
	}
	return purged, nil
}

// Watch forwards change events of the wrapped store.
func (s *SoftDeleteStore) Watch(ctx context.Context) (<-chan domain.ChangeEvent, error) {
	return watch(ctx, s.next)
}

func (s *SoftDeleteStore) expired(f *domain.Form) bool {
	return s.now().Sub(*f.DeletedAt) > s.window
}

func (s *SoftDeleteStore) filter(ctx context.Context, organizationID string, deleted bool) ([]*domain.Form, error) {
	forms, err := s.next.List(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	out := forms[:0]
	for _, f := range forms {
		if f.Deleted() == deleted {
			out = append(out, f)
		}
	}
	return out, nil
}
