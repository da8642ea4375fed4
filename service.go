package arbor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/autosave"
	"github.com/aretw0/arbor/pkg/availability"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/employees"
	"github.com/aretw0/arbor/pkg/persistence/middleware"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/session"
	"github.com/google/uuid"
)

// AvailabilityObserver receives the outcome of every availability computation.
type AvailabilityObserver interface {
	ObserveAvailability(elapsed time.Duration, err error)
}

// Service is the entry point of Arbor. It owns the forms of every
// organisation, the live drafts being edited and the employee directory.
//
// Every form operation takes the caller's organisation ID; forms of other
// organisations are reported as domain.ErrFormNotFound.
type Service struct {
	sessions *session.Manager
	trash    *middleware.SoftDeleteStore

	employees ports.EmployeeStore
	orgs      ports.OrganizationStore
	catalog   ports.TemplateCatalog
	provider  ports.ScheduleProvider

	calculator *availability.Calculator
	syncer     *employees.Syncer

	locker        ports.DistributedLocker
	lockTTL       time.Duration
	restoreWindow time.Duration
	storeObserver middleware.Observer
	availObserver AvailabilityObserver
	syncObserver  employees.Observer
	concurrency   int
	autosaveOpts  []autosave.Option
	hooks         domain.SaveHooks

	now    func() time.Time
	newID  func() string
	logger *slog.Logger

	mu     sync.Mutex
	drafts map[string]*draft
	closed bool
}

// Option configures the Service.
type Option func(*Service)

// WithEmployeeStore sets where synchronised employees are kept.
// Defaults to an in-memory directory shared with the organisation store.
func WithEmployeeStore(store ports.EmployeeStore) Option {
	return func(s *Service) {
		s.employees = store
	}
}

// WithOrganizationStore sets where tenants are kept.
func WithOrganizationStore(store ports.OrganizationStore) Option {
	return func(s *Service) {
		s.orgs = store
	}
}

// WithCatalog sets the template catalogue offered by Templates and CreateForm.
func WithCatalog(catalog ports.TemplateCatalog) Option {
	return func(s *Service) {
		s.catalog = catalog
	}
}

// WithProvider sets the schedule provider. Without one, availability and
// employee sync fail with domain.ErrProviderUnavailable.
func WithProvider(provider ports.ScheduleProvider) Option {
	return func(s *Service) {
		s.provider = provider
	}
}

// WithLocker serialises writers across replicas.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(s *Service) {
		s.locker = locker
		s.lockTTL = ttl
	}
}

// WithRestoreWindow sets how long deleted forms can be restored.
func WithRestoreWindow(d time.Duration) Option {
	return func(s *Service) {
		s.restoreWindow = d
	}
}

// WithStoreObserver records the latency and errors of form store calls.
func WithStoreObserver(obs middleware.Observer) Option {
	return func(s *Service) {
		s.storeObserver = obs
	}
}

// WithAvailabilityObserver records availability computations.
func WithAvailabilityObserver(obs AvailabilityObserver) Option {
	return func(s *Service) {
		s.availObserver = obs
	}
}

// WithSyncObserver records employee sync runs.
func WithSyncObserver(obs employees.Observer) Option {
	return func(s *Service) {
		s.syncObserver = obs
	}
}

// WithAvailabilityConcurrency bounds concurrent provider calls per computation.
func WithAvailabilityConcurrency(n int) Option {
	return func(s *Service) {
		s.concurrency = n
	}
}

// WithAutosave configures the coordinators backing drafts.
func WithAutosave(opts ...autosave.Option) Option {
	return func(s *Service) {
		s.autosaveOpts = append(s.autosaveOpts, opts...)
	}
}

// WithSaveHooks registers callbacks run on every draft save attempt.
func WithSaveHooks(hooks domain.SaveHooks) Option {
	return func(s *Service) {
		s.hooks = hooks
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithIDGenerator overrides how form IDs are generated.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		s.newID = fn
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New creates a Service persisting forms in store.
func New(store ports.FormStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("form store is required")
	}
	s := &Service{
		restoreWindow: middleware.DefaultRestoreWindow,
		lockTTL:       session.DefaultLockTTL,
		concurrency:   availability.DefaultConcurrency,
		now:           time.Now,
		newID:         uuid.NewString,
		logger:        logging.NewNop(),
		drafts:        make(map[string]*draft),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.employees == nil || s.orgs == nil {
		dir := memory.NewDirectory()
		if s.employees == nil {
			s.employees = dir
		}
		if s.orgs == nil {
			s.orgs = dir
		}
	}
	if s.catalog == nil {
		catalog, err := memory.NewCatalog()
		if err != nil {
			return nil, err
		}
		s.catalog = catalog
	}

	if s.storeObserver != nil {
		store = middleware.Chain(store, middleware.Instrument(s.storeObserver))
	}
	s.trash = middleware.NewSoftDeleteStore(store,
		middleware.WithRestoreWindow(s.restoreWindow),
		middleware.WithClock(s.now),
		middleware.WithLogger(s.logger),
	)

	sessionOpts := []session.Option{session.WithLogger(s.logger)}
	if s.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(s.locker), session.WithLockTTL(s.lockTTL))
	}
	s.sessions = session.NewManager(s.trash, sessionOpts...)

	if s.provider != nil {
		s.calculator = availability.NewCalculator(s.provider,
			availability.WithClock(s.now),
			availability.WithConcurrency(s.concurrency),
			availability.WithLogger(s.logger),
		)
		syncOpts := []employees.Option{employees.WithClock(s.now), employees.WithLogger(s.logger)}
		if s.syncObserver != nil {
			syncOpts = append(syncOpts, employees.WithObserver(s.syncObserver))
		}
		s.syncer = employees.NewSyncer(s.provider, s.employees, syncOpts...)
	}
	return s, nil
}

// Watch streams store change notifications.
// Returns domain.ErrWatchUnsupported when the store cannot be watched.
func (s *Service) Watch(ctx context.Context) (<-chan domain.ChangeEvent, error) {
	return s.trash.Watch(ctx)
}

// Organizations exposes the tenant store.
func (s *Service) Organizations() ports.OrganizationStore {
	return s.orgs
}

// Close flushes every open draft. The service must not be used afterwards.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	drafts := s.drafts
	s.drafts = make(map[string]*draft)
	s.mu.Unlock()

	var errs []error
	for id, d := range drafts {
		if err := d.close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush draft %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
}
