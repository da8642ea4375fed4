package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "arbor:"

// Store implements ports.FormStore and ports.Watchable using Redis.
//
// Forms are stored as JSON strings. Two sorted sets with a constant score
// index them, one global and one per organisation, so that ZRANGE returns IDs
// in lexical order. Changes are published on a pub/sub channel.
type Store struct {
	client *backend.Client
	prefix string
}

type Option func(*Store)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Client exposes the underlying client, shared with the Locker.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) key(formID string) string {
	return s.prefix + "form:" + formID
}

func (s *Store) indexKey(organizationID string) string {
	if organizationID == "" {
		return s.prefix + "index"
	}
	return s.prefix + "index:" + organizationID
}

func (s *Store) channel() string {
	return s.prefix + "events"
}

// Save persists the form and moves it to its organisation's index.
func (s *Store) Save(ctx context.Context, form *domain.Form) error {
	data, err := json.Marshal(form)
	if err != nil {
		return fmt.Errorf("failed to marshal form: %w", err)
	}

	previous, err := s.Load(ctx, form.ID)
	if err != nil && !errors.Is(err, domain.ErrFormNotFound) {
		return err
	}

	pipe := s.client.TxPipeline()
	if previous != nil && previous.OrganizationID != form.OrganizationID {
		pipe.ZRem(ctx, s.indexKey(previous.OrganizationID), form.ID)
	}
	pipe.Set(ctx, s.key(form.ID), data, 0)
	pipe.ZAdd(ctx, s.indexKey(""), backend.Z{Member: form.ID})
	pipe.ZAdd(ctx, s.indexKey(form.OrganizationID), backend.Z{Member: form.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}

	s.publish(ctx, domain.ChangeEvent{FormID: form.ID, Op: "save", Timestamp: time.Now()})
	return nil
}

// Load retrieves the form from Redis.
func (s *Store) Load(ctx context.Context, formID string) (*domain.Form, error) {
	val, err := s.client.Get(ctx, s.key(formID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrFormNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var form domain.Form
	if err := json.Unmarshal(val, &form); err != nil {
		return nil, fmt.Errorf("failed to unmarshal form: %w", err)
	}
	return &form, nil
}

// Delete removes the form and its index entries.
func (s *Store) Delete(ctx context.Context, formID string) error {
	form, err := s.Load(ctx, formID)
	if errors.Is(err, domain.ErrFormNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(formID))
	pipe.ZRem(ctx, s.indexKey(""), formID)
	pipe.ZRem(ctx, s.indexKey(form.OrganizationID), formID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}

	s.publish(ctx, domain.ChangeEvent{FormID: formID, Op: "delete", Timestamp: time.Now()})
	return nil
}

// List returns the forms of an organisation ordered by ID.
func (s *Store) List(ctx context.Context, organizationID string) ([]*domain.Form, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(organizationID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}
	if len(ids) == 0 {
		return []*domain.Form{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load forms: %w", err)
	}

	forms := make([]*domain.Form, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// Index entry without a value; skip it.
			continue
		}
		var form domain.Form
		if err := json.Unmarshal([]byte(raw), &form); err != nil {
			return nil, fmt.Errorf("failed to unmarshal form %s: %w", ids[i], err)
		}
		forms = append(forms, &form)
	}
	return forms, nil
}

// Watch subscribes to change events published by every store sharing the prefix.
func (s *Store) Watch(ctx context.Context) (<-chan domain.ChangeEvent, error) {
	sub := s.client.Subscribe(ctx, s.channel())
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan domain.ChangeEvent, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var e domain.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					continue
				}
				select {
				case out <- e:
				default:
				}
			}
		}
	}()
	return out, nil
}

func (s *Store) publish(ctx context.Context, e domain.ChangeEvent) {
	payload, err := json.Marshal(e)
	if err != nil {
		return
	}
	// Notifications are best effort.
	_ = s.client.Publish(ctx, s.channel(), payload).Err()
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
