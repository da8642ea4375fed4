// Package badger stores forms in an embedded BadgerDB, for single-node
// deployments that need durability without an external database.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/dgraph-io/badger/v4"
)

const (
	formPrefix = "form/"
	orgPrefix  = "org/"
)

// Config holds configuration for the embedded database.
type Config struct {
	// Path is the directory for database files. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM. Useful for testing.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives BadgerDB's internal logs. Nil disables them.
	Logger *slog.Logger
}

// Store implements ports.FormStore on BadgerDB.
//
// Forms live under "form/<id>" as JSON. An empty marker under
// "org/<organization>/<id>" indexes them per organisation; since Badger
// iterates keys in byte order, both prefixes list forms ordered by ID.
type Store struct {
	db *badger.DB
}

var _ ports.FormStore = (*Store)(nil)

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Open creates or opens the database described by cfg.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func formKey(id string) []byte {
	return []byte(formPrefix + id)
}

func orgKey(org, id string) []byte {
	return []byte(orgPrefix + org + "/" + id)
}

func (s *Store) Save(ctx context.Context, form *domain.Form) error {
	data, err := json.Marshal(form)
	if err != nil {
		return fmt.Errorf("failed to marshal form: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		previous, err := getForm(txn, form.ID)
		if err != nil && !errors.Is(err, domain.ErrFormNotFound) {
			return err
		}
		if previous != nil && previous.OrganizationID != form.OrganizationID {
			if err := txn.Delete(orgKey(previous.OrganizationID, form.ID)); err != nil {
				return err
			}
		}
		if err := txn.Set(formKey(form.ID), data); err != nil {
			return err
		}
		return txn.Set(orgKey(form.OrganizationID, form.ID), nil)
	})
	if err != nil {
		return fmt.Errorf("failed to save form %s: %w", form.ID, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, formID string) (*domain.Form, error) {
	var form *domain.Form
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		form, err = getForm(txn, formID)
		return err
	})
	return form, err
}

func (s *Store) Delete(ctx context.Context, formID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		form, err := getForm(txn, formID)
		if errors.Is(err, domain.ErrFormNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := txn.Delete(orgKey(form.OrganizationID, formID)); err != nil {
			return err
		}
		return txn.Delete(formKey(formID))
	})
	if err != nil {
		return fmt.Errorf("failed to delete form %s: %w", formID, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, organizationID string) ([]*domain.Form, error) {
	forms := []*domain.Form{}
	err := s.db.View(func(txn *badger.Txn) error {
		if organizationID == "" {
			return iterate(txn, []byte(formPrefix), true, func(item *badger.Item) error {
				form, err := decode(item)
				if err != nil {
					return err
				}
				forms = append(forms, form)
				return nil
			})
		}

		prefix := orgKey(organizationID, "")
		return iterate(txn, prefix, false, func(item *badger.Item) error {
			id := string(item.Key()[len(prefix):])
			form, err := getForm(txn, id)
			if errors.Is(err, domain.ErrFormNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			forms = append(forms, form)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}
	return forms, nil
}

func iterate(txn *badger.Txn, prefix []byte, values bool, fn func(*badger.Item) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = values
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		if err := fn(it.Item()); err != nil {
			return err
		}
	}
	return nil
}

func getForm(txn *badger.Txn, id string) (*domain.Form, error) {
	item, err := txn.Get(formKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrFormNotFound
	}
	if err != nil {
		return nil, err
	}
	return decode(item)
}

func decode(item *badger.Item) (*domain.Form, error) {
	var form domain.Form
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &form)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", item.Key(), err)
	}
	return &form, nil
}
