package autosave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/editor"
	"github.com/aretw0/arbor/pkg/schema"
	"github.com/cenkalti/backoff/v4"
)

// Defaults used when no option overrides them.
const (
	DefaultDebounce       = time.Second
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = 100 * time.Millisecond
	DefaultMaxBackoff     = 2 * time.Second
)

// ErrValidation is returned when the data fails validation and is not saved.
var ErrValidation = errors.New("validation failed")

// SaveFunc persists data and returns the stored version.
type SaveFunc func(ctx context.Context, data domain.BookingFlowData) (domain.BookingFlowData, error)

// ValidateFunc checks data before it is persisted.
type ValidateFunc func(data domain.BookingFlowData) schema.Result

// Status is the state of the coordinator.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusPending Status = "pending"
	StatusSaving  Status = "saving"
	StatusError   Status = "error"
)

// Snapshot is a point-in-time view of the coordinator.
type Snapshot struct {
	Data      domain.BookingFlowData `json:"data"`
	Status    Status                 `json:"status"`
	IsDirty   bool                   `json:"isDirty"`
	IsSaving  bool                   `json:"isSaving"`
	LastSaved *time.Time             `json:"lastSaved,omitempty"`
	Errors    []string               `json:"errors"`
}

// Coordinator keeps the editable copy of one form and persists it in the
// background. Edits apply locally at once; persistence is debounced so that
// a burst of edits produces a single save of the latest data.
//
// A failed save is retried with exponential backoff. When every attempt
// fails the error is recorded and the local data is kept as it is.
type Coordinator struct {
	save     SaveFunc
	validate ValidateFunc

	debounce       time.Duration
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	enabled        bool

	logger *slog.Logger
	hooks  domain.SaveHooks
	now    func() time.Time

	mu           sync.Mutex
	data         domain.BookingFlowData
	version      uint64 // bumped on every edit
	savedVersion uint64
	status       Status
	saving       bool
	inflight     chan struct{} // closed when the running save ends
	rerun        bool          // the timer fired while saving
	timer        *time.Timer
	lastSaved    time.Time
	errs         []string
	closed       bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a coordinator holding initial, which is considered saved.
func New(initial domain.BookingFlowData, save SaveFunc, opts ...Option) *Coordinator {
	c := &Coordinator{
		save:           save,
		debounce:       DefaultDebounce,
		maxRetries:     DefaultMaxRetries,
		initialBackoff: DefaultInitialBackoff,
		maxBackoff:     DefaultMaxBackoff,
		enabled:        true,
		logger:         logging.NewNop(),
		now:            time.Now,
		data:           initial,
		status:         StatusIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxRetries < 1 {
		c.maxRetries = 1
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// Update replaces the local data and schedules a save.
func (c *Coordinator) Update(data domain.BookingFlowData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edit(data)
}

// Dispatch applies an editor action to the local data, schedules a save and
// returns the new data.
func (c *Coordinator) Dispatch(action editor.Action) domain.BookingFlowData {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edit(editor.Reduce(c.data, action))
	return c.data
}

func (c *Coordinator) edit(data domain.BookingFlowData) {
	c.data = data
	c.version++
	if !c.saving {
		c.status = StatusPending
	}
	c.schedule()
}

// schedule (re)arms the debounce timer. Caller holds mu.
func (c *Coordinator) schedule() {
	if !c.enabled || c.closed {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, c.onTimer)
}

func (c *Coordinator) onTimer() {
	c.mu.Lock()
	if c.saving {
		c.rerun = true
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	if err := c.run(c.ctx); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Debug("scheduled save did not complete", "form_id", c.formID(), "error", err)
	}
}

// SaveNow cancels the pending timer and persists the latest data, waiting for
// any save already in flight. It returns the error of its own save attempt.
func (c *Coordinator) SaveNow(ctx context.Context) error {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.mu.Unlock()

	for {
		c.mu.Lock()
		if !c.saving {
			c.mu.Unlock()
			return c.run(ctx)
		}
		done := c.inflight
		c.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// run persists the current data if it is dirty and no other save is running.
func (c *Coordinator) run(ctx context.Context) error {
	c.mu.Lock()
	if c.saving || c.version == c.savedVersion {
		c.mu.Unlock()
		return nil
	}
	data := c.data
	ver := c.version
	done := make(chan struct{})
	c.saving = true
	c.inflight = done
	c.status = StatusSaving
	c.mu.Unlock()

	defer close(done)

	stored, err := c.persist(ctx, data)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.saving = false
	if err != nil {
		if !errors.Is(err, ErrValidation) {
			c.errs = append(c.errs, err.Error())
		}
		c.status = StatusError
	} else {
		c.savedVersion = ver
		c.lastSaved = c.now()
		c.errs = nil
		if c.version == ver {
			c.data = stored
		}
		c.status = StatusIdle
		if c.version != c.savedVersion {
			c.status = StatusPending
		}
	}
	if c.rerun {
		c.rerun = false
		if c.version != c.savedVersion {
			c.schedule()
		}
	}
	return err
}

func (c *Coordinator) persist(ctx context.Context, data domain.BookingFlowData) (domain.BookingFlowData, error) {
	if c.validate != nil {
		if res := c.validate(data); !res.IsValid {
			err := fmt.Errorf("%w: %d problem(s)", ErrValidation, len(res.Errors))
			c.mu.Lock()
			c.errs = append(c.errs, res.Errors...)
			c.mu.Unlock()
			c.emitFailed(ctx, 0, err)
			c.logger.Warn("autosave blocked by validation", "form_id", data.ID, "problems", len(res.Errors))
			return data, err
		}
	}

	var (
		stored  domain.BookingFlowData
		attempt int
	)
	op := func() error {
		attempt++
		if c.hooks.OnSaveStart != nil {
			c.hooks.OnSaveStart(ctx, c.event(domain.EventSaveStart, data.ID, attempt, nil))
		}
		out, err := c.save(ctx, data)
		if err != nil {
			if errors.Is(err, domain.ErrFormNotFound) {
				return backoff.Permanent(err)
			}
			return err
		}
		stored = out
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialBackoff
	b.MaxInterval = c.maxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxRetries-1)), ctx)

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("autosave attempt failed, retrying", "form_id", data.ID, "attempt", attempt, "wait", wait, "error", err)
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		err = fmt.Errorf("save failed after %d attempt(s): %w", attempt, err)
		c.emitFailed(ctx, attempt, err)
		c.logger.Error("autosave failed", "form_id", data.ID, "error", err)
		return data, err
	}

	if c.hooks.OnSaved != nil {
		c.hooks.OnSaved(ctx, c.event(domain.EventSaved, data.ID, attempt, nil), stored)
	}
	c.logger.Debug("autosave completed", "form_id", data.ID, "attempts", attempt)
	return stored, nil
}

func (c *Coordinator) emitFailed(ctx context.Context, attempt int, err error) {
	if c.hooks.OnSaveFailed != nil {
		c.hooks.OnSaveFailed(ctx, c.event(domain.EventSaveFailed, c.formID(), attempt, err))
	}
}

func (c *Coordinator) event(typ domain.EventType, formID string, attempt int, err error) *domain.SaveEvent {
	ev := &domain.SaveEvent{Timestamp: c.now(), Type: typ, FormID: formID, Attempt: attempt}
	if err != nil {
		ev.Err = err.Error()
	}
	return ev
}

func (c *Coordinator) formID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data.ID
}

// Snapshot returns the current state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		Data:     c.data,
		Status:   c.status,
		IsDirty:  c.version != c.savedVersion,
		IsSaving: c.saving,
		Errors:   append([]string{}, c.errs...),
	}
	if !c.lastSaved.IsZero() {
		t := c.lastSaved
		s.LastSaved = &t
	}
	return s
}

// Data returns the current local data.
func (c *Coordinator) Data() domain.BookingFlowData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data
}

// Close flushes pending edits and stops background saving.
// The coordinator keeps accepting edits afterwards but no longer saves them
// on its own.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
	}
	c.mu.Unlock()

	err := c.SaveNow(ctx)
	c.cancel()
	return err
}
