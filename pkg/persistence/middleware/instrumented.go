package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// Observer receives the outcome of every store call.
type Observer interface {
	ObserveStoreOp(op string, elapsed time.Duration, err error)
}

// Instrument reports the latency and errors of store calls to obs.
func Instrument(obs Observer) Middleware {
	return func(next ports.FormStore) ports.FormStore {
		return &instrumentedStore{next: next, obs: obs}
	}
}

type instrumentedStore struct {
	next ports.FormStore
	obs  Observer
}

func (s *instrumentedStore) observe(op string, start time.Time, err error) {
	s.obs.ObserveStoreOp(op, time.Since(start), err)
}

func (s *instrumentedStore) Save(ctx context.Context, form *domain.Form) error {
	start := time.Now()
	err := s.next.Save(ctx, form)
	s.observe("save", start, err)
	return err
}

func (s *instrumentedStore) Load(ctx context.Context, formID string) (*domain.Form, error) {
	start := time.Now()
	form, err := s.next.Load(ctx, formID)
	// A missing form is an answer, not a store failure.
	if errors.Is(err, domain.ErrFormNotFound) {
		s.observe("load", start, nil)
	} else {
		s.observe("load", start, err)
	}
	return form, err
}

func (s *instrumentedStore) Delete(ctx context.Context, formID string) error {
	start := time.Now()
	err := s.next.Delete(ctx, formID)
	s.observe("delete", start, err)
	return err
}

func (s *instrumentedStore) List(ctx context.Context, organizationID string) ([]*domain.Form, error) {
	start := time.Now()
	forms, err := s.next.List(ctx, organizationID)
	s.observe("list", start, err)
	return forms, err
}

func (s *instrumentedStore) Watch(ctx context.Context) (<-chan domain.ChangeEvent, error) {
	return watch(ctx, s.next)
}
