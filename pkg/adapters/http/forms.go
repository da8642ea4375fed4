package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/editor"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

func pathParam(r *http.Request, name string) (string, error) {
	var v string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &v, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return v, nil
}

func decodeBody(r *http.Request, v any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

func (s *Server) listForms(w http.ResponseWriter, r *http.Request) {
	var deleted bool
	if err := runtime.BindQueryParameter("form", true, false, "deleted", r.URL.Query(), &deleted); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}

	var (
		forms []*domain.Form
		err   error
	)
	if deleted {
		forms, err = s.svc.ListDeletedForms(r.Context(), organization(r))
	} else {
		forms, err = s.svc.ListForms(r.Context(), organization(r))
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if forms == nil {
		forms = []*domain.Form{}
	}
	s.writeJSON(w, http.StatusOK, forms)
}

func (s *Server) createForm(w http.ResponseWriter, r *http.Request) {
	var in arbor.CreateFormInput
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	form, err := s.svc.CreateForm(r.Context(), organization(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/forms/"+form.ID)
	s.writeJSON(w, http.StatusCreated, form)
}

func (s *Server) getForm(w http.ResponseWriter, r *http.Request) {
	formID, err := pathParam(r, "formID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	form, err := s.svc.GetForm(r.Context(), organization(r), formID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, form)
}

func (s *Server) saveForm(w http.ResponseWriter, r *http.Request) {
	formID, err := pathParam(r, "formID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var data domain.BookingFlowData
	if err := decodeBody(r, &data); err != nil {
		s.writeError(w, r, err)
		return
	}
	form, err := s.svc.SaveForm(r.Context(), organization(r), formID, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, form)
}

func (s *Server) deleteForm(w http.ResponseWriter, r *http.Request) {
	formID, err := pathParam(r, "formID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.DeleteForm(r.Context(), organization(r), formID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) restoreForm(w http.ResponseWriter, r *http.Request) {
	formID, err := pathParam(r, "formID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	form, err := s.svc.RestoreForm(r.Context(), organization(r), formID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, form)
}

func (s *Server) dispatchAction(w http.ResponseWriter, r *http.Request) {
	formID, err := pathParam(r, "formID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}
	action, err := editor.UnmarshalAction(raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := s.svc.Dispatch(r.Context(), organization(r), formID, action)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, data)
}

func (s *Server) getDraft(w http.ResponseWriter, r *http.Request) {
	formID, err := pathParam(r, "formID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := s.svc.Draft(r.Context(), organization(r), formID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) saveDraft(w http.ResponseWriter, r *http.Request) {
	formID, err := pathParam(r, "formID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := s.svc.SaveDraft(r.Context(), organization(r), formID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) getAvailability(w http.ResponseWriter, r *http.Request) {
	formID, err := pathParam(r, "formID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	serviceID, err := pathParam(r, "serviceID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var year, month int
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, true, "year", query, &year); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}
	if err := runtime.BindQueryParameter("form", true, true, "month", query, &month); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}

	res, err := s.svc.Availability(r.Context(), organization(r), arbor.AvailabilityQuery{
		FormID:    formID,
		ServiceID: serviceID,
		Year:      year,
		Month:     time.Month(month),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.svc.Templates(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if templates == nil {
		templates = []domain.Template{}
	}
	s.writeJSON(w, http.StatusOK, templates)
}
