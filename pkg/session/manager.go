package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed replica can hold a form lock.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serialises access to forms, so that read-modify-write cycles on one
// form never interleave. Locks are reference counted and dropped once unused.
type Manager struct {
	store ports.FormStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Manager over the given form store.
func NewManager(store ports.FormStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(formID) after unlocking.
func (m *Manager) acquire(formID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[formID]
	if !exists {
		entry = &lockEntry{}
		m.locks[formID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(formID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[formID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, formID)
	}
}

// Load retrieves a form from the store.
func (m *Manager) Load(ctx context.Context, formID string) (*domain.Form, error) {
	var form *domain.Form
	err := m.WithLock(ctx, formID, func(ctx context.Context) error {
		var err error
		form, err = m.store.Load(ctx, formID)
		return err
	})
	return form, err
}

// Save persists the form.
func (m *Manager) Save(ctx context.Context, form *domain.Form) error {
	return m.WithLock(ctx, form.ID, func(ctx context.Context) error {
		return m.store.Save(ctx, form)
	})
}

// Delete removes the form from the store.
func (m *Manager) Delete(ctx context.Context, formID string) error {
	return m.WithLock(ctx, formID, func(ctx context.Context) error {
		return m.store.Delete(ctx, formID)
	})
}

// Update loads the form, lets fn change it and saves the result, all while
// holding the form lock. Returning an error from fn aborts the save.
func (m *Manager) Update(ctx context.Context, formID string, fn func(*domain.Form) error) (*domain.Form, error) {
	var form *domain.Form
	err := m.WithLock(ctx, formID, func(ctx context.Context) error {
		current, err := m.store.Load(ctx, formID)
		if err != nil {
			return err
		}
		if err := fn(current); err != nil {
			return err
		}
		if err := m.store.Save(ctx, current); err != nil {
			return fmt.Errorf("failed to save form %s: %w", formID, err)
		}
		form = current
		return nil
	})
	return form, err
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context, organizationID string) ([]*domain.Form, error) {
	return m.store.List(ctx, organizationID)
}

// Store returns the underlying form store.
func (m *Manager) Store() ports.FormStore {
	return m.store
}

// WithLock executes a function while holding the lock for the form.
func (m *Manager) WithLock(ctx context.Context, formID string, fn func(context.Context) error) error {
	entry := m.acquire(formID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(formID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, "form:"+formID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"form_id", formID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
