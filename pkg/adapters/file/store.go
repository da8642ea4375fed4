package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/fsnotify/fsnotify"
)

const ext = ".json"

// Store implements ports.FormStore and ports.Watchable using the local filesystem.
// It stores forms as JSON files in a configured directory.
type Store struct {
	BasePath string
	logger   *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger configures a logger for watch errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".arbor/forms".
func New(basePath string, opts ...Option) *Store {
	if basePath == "" {
		basePath = filepath.Join(".arbor", "forms")
	}
	s := &Store{BasePath: basePath, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) path(formID string) (string, error) {
	if formID == "" || strings.ContainsAny(formID, `/\`) || formID == "." || formID == ".." {
		return "", fmt.Errorf("%w: form id %q", domain.ErrInvalidInput, formID)
	}
	return filepath.Join(s.BasePath, formID+ext), nil
}

// Save persists the form to a JSON file atomically.
// It writes to a temporary file first, syncs it and then renames it to the destination.
func (s *Store) Save(ctx context.Context, form *domain.Form) error {
	destPath, err := s.path(form.ID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.BasePath, 0o755); err != nil {
		return fmt.Errorf("failed to ensure form directory: %w", err)
	}

	data, err := json.MarshalIndent(form, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal form: %w", err)
	}

	// Same directory, so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(s.BasePath, ".tmp-"+form.ID+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Load retrieves the form from its JSON file.
func (s *Store) Load(ctx context.Context, formID string) (*domain.Form, error) {
	p, err := s.path(formID)
	if err != nil {
		return nil, err
	}
	return readForm(p)
}

func readForm(p string) (*domain.Form, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrFormNotFound
		}
		return nil, fmt.Errorf("failed to read form file: %w", err)
	}

	var form domain.Form
	if err := json.Unmarshal(data, &form); err != nil {
		return nil, fmt.Errorf("failed to unmarshal form %s: %w", filepath.Base(p), err)
	}
	return &form, nil
}

// Delete removes the form file.
func (s *Store) Delete(ctx context.Context, formID string) error {
	p, err := s.path(formID)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete form file: %w", err)
	}
	return nil
}

// List reads every form file and returns those of the organisation ordered by ID.
func (s *Store) List(ctx context.Context, organizationID string) ([]*domain.Form, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*domain.Form{}, nil
		}
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}

	forms := []*domain.Form{}
	for _, entry := range entries {
		if _, ok := formID(entry.Name()); !ok || entry.IsDir() {
			continue
		}
		form, err := readForm(filepath.Join(s.BasePath, entry.Name()))
		if errors.Is(err, domain.ErrFormNotFound) {
			// Removed between ReadDir and ReadFile.
			continue
		}
		if err != nil {
			return nil, err
		}
		if organizationID == "" || form.OrganizationID == organizationID {
			forms = append(forms, form)
		}
	}
	sort.Slice(forms, func(i, j int) bool { return forms[i].ID < forms[j].ID })
	return forms, nil
}

// Watch reports changes to form files, including edits made outside the
// process. The channel is closed when ctx is done.
func (s *Store) Watch(ctx context.Context) (<-chan domain.ChangeEvent, error) {
	if err := os.MkdirAll(s.BasePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure form directory: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(s.BasePath); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", s.BasePath, err)
	}

	out := make(chan domain.ChangeEvent, 16)
	go func() {
		defer close(out)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				id, ok := formID(filepath.Base(ev.Name))
				if !ok {
					continue
				}
				op := "save"
				if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
					op = "delete"
				} else if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
					continue
				}
				select {
				case out <- domain.ChangeEvent{FormID: id, Op: op, Timestamp: time.Now()}:
				default:
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Warn("form watcher error", "path", s.BasePath, "err", err)
			}
		}
	}()
	return out, nil
}

// formID extracts the form ID from a file name, ignoring temp files.
func formID(name string) (string, bool) {
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ext) {
		return "", false
	}
	return strings.TrimSuffix(name, ext), true
}
