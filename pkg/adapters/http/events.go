package http

import (
	"encoding/json"
	"fmt"
	"net/http"
)

func startStream(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	return flusher, true
}

// subscribeDraft handles GET /forms/{formID}/events: diffs of the draft and
// its save events, each as an SSE event named after its type.
func (s *Server) subscribeDraft(w http.ResponseWriter, r *http.Request) {
	formID, err := pathParam(r, "formID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	events, err := s.svc.Subscribe(r.Context(), organization(r), formID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	flusher, ok := startStream(w)
	if !ok {
		s.writeError(w, r, fmt.Errorf("streaming not supported"))
		return
	}
	s.logger.Info("SSE: draft subscriber connected", "form_id", formID)

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: draft subscriber disconnected", "form_id", formID)
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("SSE: failed to encode draft event", "err", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
			flusher.Flush()
		}
	}
}

// watchStore handles GET /events: change notifications of the form store.
func (s *Server) watchStore(w http.ResponseWriter, r *http.Request) {
	org := organization(r)
	events, err := s.svc.Watch(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	flusher, ok := startStream(w)
	if !ok {
		s.writeError(w, r, fmt.Errorf("streaming not supported"))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			// Events carry no tenant, so only forms the caller can read are forwarded.
			if _, err := s.svc.GetForm(r.Context(), org, ev.FormID); err != nil {
				continue
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
