package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
)

// Store implements ports.FormStore and ports.Watchable in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Form
	mu   sync.RWMutex

	watchers []chan domain.ChangeEvent
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Form),
	}
}

// Save persists a copy of the form.
func (s *Store) Save(ctx context.Context, form *domain.Form) error {
	copied := form.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[form.ID] = copied
	s.notify(domain.ChangeEvent{FormID: form.ID, Op: "save", Timestamp: time.Now()})
	return nil
}

// Load returns a copy so callers can't mutate the stored form by pointer.
func (s *Store) Load(ctx context.Context, formID string) (*domain.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	form, ok := s.data[formID]
	if !ok {
		return nil, domain.ErrFormNotFound
	}
	return form.Clone(), nil
}

// Delete removes the form.
func (s *Store) Delete(ctx context.Context, formID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[formID]; ok {
		delete(s.data, formID)
		s.notify(domain.ChangeEvent{FormID: formID, Op: "delete", Timestamp: time.Now()})
	}
	return nil
}

// List returns the forms of an organisation ordered by ID.
func (s *Store) List(ctx context.Context, organizationID string) ([]*domain.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	forms := make([]*domain.Form, 0, len(s.data))
	for _, f := range s.data {
		if organizationID == "" || f.OrganizationID == organizationID {
			forms = append(forms, f.Clone())
		}
	}
	sort.Slice(forms, func(i, j int) bool { return forms[i].ID < forms[j].ID })
	return forms, nil
}

// Watch streams change events until ctx is done. Slow readers miss events.
func (s *Store) Watch(ctx context.Context) (<-chan domain.ChangeEvent, error) {
	ch := make(chan domain.ChangeEvent, 16)

	s.mu.Lock()
	s.watchers = append(s.watchers, ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, w := range s.watchers {
			if w == ch {
				s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

// notify fans an event out to watchers. Caller holds mu.
func (s *Store) notify(ev domain.ChangeEvent) {
	for _, w := range s.watchers {
		select {
		case w <- ev:
		default:
		}
	}
}
