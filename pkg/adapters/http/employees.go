package http

import (
	"net/http"

	"github.com/aretw0/arbor/pkg/domain"
)

func (s *Server) listEmployees(w http.ResponseWriter, r *http.Request) {
	staff, err := s.svc.ListEmployees(r.Context(), organization(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if staff == nil {
		staff = []domain.Employee{}
	}
	s.writeJSON(w, http.StatusOK, staff)
}

func (s *Server) syncEmployees(w http.ResponseWriter, r *http.Request) {
	rep, err := s.svc.SyncEmployees(r.Context(), organization(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rep)
}

func (s *Server) toggleEmployee(w http.ResponseWriter, r *http.Request) {
	employeeID, err := pathParam(r, "employeeID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.svc.ToggleEmployee(r.Context(), organization(r), employeeID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, e)
}
