package arbor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/schema"
)

// CreateFormInput describes a new form.
type CreateFormInput struct {
	// InternalName defaults to the template name.
	InternalName string `json:"internalName"`
	// TemplateID seeds the form from a catalogue template.
	TemplateID string `json:"templateId,omitempty"`
}

// CreateForm creates a form owned by organizationID.
func (s *Service) CreateForm(ctx context.Context, organizationID string, in CreateFormInput) (*domain.Form, error) {
	if organizationID == "" {
		return nil, invalid(errors.New("organization is required"))
	}
	id := s.newID()

	name := strings.TrimSpace(in.InternalName)
	data := domain.NewBookingFlowData(id, name)
	if in.TemplateID != "" {
		tmpl, err := s.catalog.GetTemplate(ctx, in.TemplateID)
		if err != nil {
			if errors.Is(err, domain.ErrTemplateNotFound) {
				return nil, invalid(err)
			}
			return nil, err
		}
		data = tmpl.Data.Clone()
		data.ID = id
		if name == "" {
			name = tmpl.Name
		}
		data.InternalName = name
	}
	if name == "" {
		return nil, invalid(errors.New("internal name is required"))
	}
	if err := schema.ValidateData(data); err != nil {
		return nil, invalid(err)
	}

	now := s.now().UTC()
	form := &domain.Form{
		ID:             id,
		OrganizationID: organizationID,
		Data:           data,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.sessions.Save(ctx, form); err != nil {
		return nil, fmt.Errorf("failed to create form: %w", err)
	}
	s.logger.Info("form created", "form_id", id, "organization_id", organizationID, "template_id", in.TemplateID)
	return form, nil
}

// GetForm returns the stored version of a form. Pending draft edits are not
// included; use Draft for those.
func (s *Service) GetForm(ctx context.Context, organizationID, formID string) (*domain.Form, error) {
	form, err := s.sessions.Load(ctx, formID)
	if err != nil {
		return nil, err
	}
	if err := owns(organizationID, form); err != nil {
		return nil, err
	}
	return form, nil
}

// ListForms returns the live forms of an organisation ordered by ID.
func (s *Service) ListForms(ctx context.Context, organizationID string) ([]*domain.Form, error) {
	if organizationID == "" {
		return nil, invalid(errors.New("organization is required"))
	}
	return s.sessions.List(ctx, organizationID)
}

// ListDeletedForms returns the forms of an organisation waiting in the
// restore window, including the expired ones not yet purged.
func (s *Service) ListDeletedForms(ctx context.Context, organizationID string) ([]*domain.Form, error) {
	if organizationID == "" {
		return nil, invalid(errors.New("organization is required"))
	}
	return s.trash.ListDeleted(ctx, organizationID)
}

// SaveForm replaces the data of a form. When the form has an open draft the
// draft takes the new data and is flushed immediately.
func (s *Service) SaveForm(ctx context.Context, organizationID, formID string, data domain.BookingFlowData) (*domain.Form, error) {
	data.ID = formID
	if err := schema.ValidateData(data); err != nil {
		return nil, invalid(err)
	}

	if d := s.openDraft(formID); d != nil && d.organizationID == organizationID {
		d.coord.Update(data)
		if err := d.coord.SaveNow(ctx); err != nil {
			return nil, err
		}
		return s.GetForm(ctx, organizationID, formID)
	}
	return s.store(ctx, organizationID, formID, data)
}

// store writes data under the form lock after checking ownership.
func (s *Service) store(ctx context.Context, organizationID, formID string, data domain.BookingFlowData) (*domain.Form, error) {
	return s.sessions.Update(ctx, formID, func(f *domain.Form) error {
		if err := owns(organizationID, f); err != nil {
			return err
		}
		f.Data = data.Clone()
		f.UpdatedAt = s.now().UTC()
		return nil
	})
}

// DeleteForm soft-deletes a form. Pending draft edits are flushed first.
func (s *Service) DeleteForm(ctx context.Context, organizationID, formID string) error {
	if _, err := s.GetForm(ctx, organizationID, formID); err != nil {
		return err
	}
	if d := s.dropDraft(formID); d != nil {
		if err := d.close(ctx); err != nil {
			s.logger.Warn("failed to flush draft before delete", "form_id", formID, "err", err)
		}
	}
	if err := s.sessions.Delete(ctx, formID); err != nil {
		return fmt.Errorf("failed to delete form %s: %w", formID, err)
	}
	s.logger.Info("form deleted", "form_id", formID, "organization_id", organizationID)
	return nil
}

// RestoreForm brings back a form deleted within the restore window.
// Returns domain.ErrRestoreWindowExpired when the window has passed.
func (s *Service) RestoreForm(ctx context.Context, organizationID, formID string) (*domain.Form, error) {
	var form *domain.Form
	err := s.sessions.WithLock(ctx, formID, func(ctx context.Context) error {
		current, err := s.trash.LoadAny(ctx, formID)
		if err != nil {
			return err
		}
		if err := owns(organizationID, current); err != nil {
			return err
		}
		form, err = s.trash.Restore(ctx, formID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("form restored", "form_id", formID, "organization_id", organizationID)
	return form, nil
}

// PurgeDeleted permanently removes forms whose restore window has passed.
func (s *Service) PurgeDeleted(ctx context.Context) (int, error) {
	return s.trash.Purge(ctx)
}

// Templates lists the starter forms of the catalogue.
func (s *Service) Templates(ctx context.Context) ([]domain.Template, error) {
	return s.catalog.ListTemplates(ctx)
}

func owns(organizationID string, form *domain.Form) error {
	if organizationID == "" || form.OrganizationID != organizationID {
		return fmt.Errorf("%w: %s", domain.ErrFormNotFound, form.ID)
	}
	return nil
}
