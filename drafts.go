package arbor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/arbor/pkg/autosave"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/editor"
	"github.com/aretw0/arbor/pkg/schema"
)

// ErrServiceClosed is returned by draft operations after Close.
var ErrServiceClosed = errors.New("service closed")

// Draft event types. Save events reuse the domain.EventType values.
const (
	DraftEventDiff = "diff"
)

// DraftEvent is pushed to subscribers of a draft.
type DraftEvent struct {
	Type string            `json:"type"`
	Diff *domain.FormDiff  `json:"diff,omitempty"`
	Save *domain.SaveEvent `json:"save,omitempty"`
}

const subscriberBuffer = 16

// draft is the editable copy of one form, saved in the background.
type draft struct {
	organizationID string
	coord          *autosave.Coordinator

	edit sync.Mutex // orders Check, Dispatch and Diff of concurrent edits

	mu   sync.Mutex
	subs map[chan DraftEvent]struct{}
}

func (d *draft) publish(ev DraftEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for ch := range d.subs {
		select {
		case ch <- ev:
		default: // slow subscriber, drop
		}
	}
}

func (d *draft) subscribe(ctx context.Context) <-chan DraftEvent {
	ch := make(chan DraftEvent, subscriberBuffer)
	d.mu.Lock()
	d.subs[ch] = struct{}{}
	d.mu.Unlock()

	go func() {
		<-ctx.Done()
		d.mu.Lock()
		defer d.mu.Unlock()
		if _, ok := d.subs[ch]; ok {
			delete(d.subs, ch)
			close(ch)
		}
	}()
	return ch
}

func (d *draft) close(ctx context.Context) error {
	err := d.coord.Close(ctx)
	d.mu.Lock()
	for ch := range d.subs {
		delete(d.subs, ch)
		close(ch)
	}
	d.mu.Unlock()
	return err
}

func (d *draft) hooks(next domain.SaveHooks) domain.SaveHooks {
	return domain.SaveHooks{
		OnSaveStart: func(ctx context.Context, e *domain.SaveEvent) {
			d.publish(DraftEvent{Type: string(e.Type), Save: e})
			if next.OnSaveStart != nil {
				next.OnSaveStart(ctx, e)
			}
		},
		OnSaved: func(ctx context.Context, e *domain.SaveEvent, data domain.BookingFlowData) {
			d.publish(DraftEvent{Type: string(e.Type), Save: e})
			if next.OnSaved != nil {
				next.OnSaved(ctx, e, data)
			}
		},
		OnSaveFailed: func(ctx context.Context, e *domain.SaveEvent) {
			d.publish(DraftEvent{Type: string(e.Type), Save: e})
			if next.OnSaveFailed != nil {
				next.OnSaveFailed(ctx, e)
			}
		},
	}
}

// Dispatch applies an editor action to the draft of a form and returns the
// new draft data. The change is persisted by autosave. Actions the reducer
// would ignore are rejected with domain.ErrInvalidInput.
func (s *Service) Dispatch(ctx context.Context, organizationID, formID string, action editor.Action) (domain.BookingFlowData, error) {
	if action == nil {
		return domain.BookingFlowData{}, invalid(errors.New("action is required"))
	}
	d, err := s.draftFor(ctx, organizationID, formID)
	if err != nil {
		return domain.BookingFlowData{}, err
	}

	d.edit.Lock()
	defer d.edit.Unlock()
	before := d.coord.Data()
	if err := editor.Check(before, action); err != nil {
		return before, invalid(err)
	}
	after := d.coord.Dispatch(action)
	if diff := domain.Diff(&before, after); !diff.IsEmpty() {
		d.publish(DraftEvent{Type: DraftEventDiff, Diff: diff})
	}
	s.logger.Debug("action dispatched", "form_id", formID, "action", action.Type())
	return after, nil
}

// Draft returns the state of the draft of a form, opening it if needed.
func (s *Service) Draft(ctx context.Context, organizationID, formID string) (autosave.Snapshot, error) {
	d, err := s.draftFor(ctx, organizationID, formID)
	if err != nil {
		return autosave.Snapshot{}, err
	}
	return d.coord.Snapshot(), nil
}

// SaveDraft persists pending draft edits immediately.
func (s *Service) SaveDraft(ctx context.Context, organizationID, formID string) (autosave.Snapshot, error) {
	d, err := s.draftFor(ctx, organizationID, formID)
	if err != nil {
		return autosave.Snapshot{}, err
	}
	if err := d.coord.SaveNow(ctx); err != nil {
		if errors.Is(err, autosave.ErrValidation) {
			return d.coord.Snapshot(), invalid(err)
		}
		return d.coord.Snapshot(), err
	}
	return d.coord.Snapshot(), nil
}

// Subscribe streams the diffs and save events of the draft of a form until
// ctx ends. Events are dropped for subscribers that fall behind.
func (s *Service) Subscribe(ctx context.Context, organizationID, formID string) (<-chan DraftEvent, error) {
	d, err := s.draftFor(ctx, organizationID, formID)
	if err != nil {
		return nil, err
	}
	return d.subscribe(ctx), nil
}

// TODO: evict drafts that are clean and have no subscribers, they currently
// live until the form is deleted or the service closes.
func (s *Service) draftFor(ctx context.Context, organizationID, formID string) (*draft, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrServiceClosed
	}
	d, ok := s.drafts[formID]
	s.mu.Unlock()
	if ok {
		if d.organizationID != organizationID {
			return nil, fmt.Errorf("%w: %s", domain.ErrFormNotFound, formID)
		}
		return d, nil
	}

	form, err := s.GetForm(ctx, organizationID, formID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrServiceClosed
	}
	if existing, ok := s.drafts[formID]; ok {
		return existing, nil
	}

	d = &draft{organizationID: organizationID, subs: make(map[chan DraftEvent]struct{})}
	save := func(ctx context.Context, data domain.BookingFlowData) (domain.BookingFlowData, error) {
		f, err := s.store(ctx, organizationID, formID, data)
		if err != nil {
			return data, err
		}
		return f.Data, nil
	}
	opts := append([]autosave.Option{
		autosave.WithValidator(schema.Validate),
		autosave.WithLogger(s.logger),
		autosave.WithClock(s.now),
	}, s.autosaveOpts...)
	opts = append(opts, autosave.WithHooks(d.hooks(s.hooks)))
	d.coord = autosave.New(form.Data, save, opts...)

	s.drafts[formID] = d
	s.logger.Debug("draft opened", "form_id", formID, "organization_id", organizationID)
	return d, nil
}

func (s *Service) openDraft(formID string) *draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drafts[formID]
}

func (s *Service) dropDraft(formID string) *draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.drafts[formID]
	delete(s.drafts, formID)
	return d
}
