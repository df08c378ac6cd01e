package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/tkingovr/viewfilter/api"
	"github.com/tkingovr/viewfilter/internal/policy"
	"gopkg.in/yaml.v3"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.auditStore.Stats(r.Context())
	if err != nil {
		http.Error(w, "failed to get stats", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, stats)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	filter, err := parseQueryFilter(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := s.auditStore.Query(r.Context(), filter)
	if err != nil {
		http.Error(w, "failed to query audit log", http.StatusInternalServerError)
		return
	}

	// Newest first
	slices.Reverse(records)
	if records == nil {
		records = []*api.AuditRecord{}
	}
	s.writeJSON(w, records)
}

func (s *Server) handleAuditStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ch, cancel := s.auditStore.Subscribe(r.Context())
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case record, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(record)
			if err != nil {
				s.logger.Error("encoding audit event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: audit\ndata: %s\n\n", data)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	routes := []api.RouteInfo{}
	if s.routes != nil {
		routes = append(routes, s.routes.Routes()...)
	}
	s.writeJSON(w, routes)
}

// handlePolicy shows the rules policy as YAML. The OPA engine has no
// rules to show.
func (s *Server) handlePolicy(w http.ResponseWriter, r *http.Request) {
	pe, ok := s.engine.(interface{ Policy() *policy.Policy })
	if !ok {
		http.Error(w, "policy is not rule based", http.StatusNotFound)
		return
	}
	data, err := yaml.Marshal(pe.Policy())
	if err != nil {
		http.Error(w, "failed to encode policy", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Write(data)
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req api.CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Method == "" || req.Path == "" {
		http.Error(w, "method and path are required", http.StatusBadRequest)
		return
	}

	input := &policy.EvalInput{
		Method:  req.Method,
		Path:    req.Path,
		Headers: req.Headers,
	}

	result, err := s.engine.Evaluate(r.Context(), input)
	if err != nil {
		http.Error(w, "evaluation error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, api.CheckResponse{
		Verdict: result.Verdict,
		Rule:    result.Rule,
		Message: result.Message,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}

func parseQueryFilter(q url.Values) (api.QueryFilter, error) {
	f := api.QueryFilter{
		Method: q.Get("method"),
		Path:   q.Get("path"),
		Limit:  100,
	}

	var err error
	if f.Since, err = parseTime(q, "since"); err != nil {
		return f, err
	}
	if f.Until, err = parseTime(q, "until"); err != nil {
		return f, err
	}
	if f.Status, err = parseInt(q, "status", 0); err != nil {
		return f, err
	}
	if f.Limit, err = parseInt(q, "limit", f.Limit); err != nil {
		return f, err
	}
	if f.Offset, err = parseInt(q, "offset", 0); err != nil {
		return f, err
	}
	if v := q.Get("aborted"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("invalid aborted %q", v)
		}
		f.Aborted = b
	}
	return f, nil
}

func parseTime(q url.Values, key string) (time.Time, error) {
	v := q.Get(key)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: expected RFC3339", key, v)
	}
	return t, nil
}

func parseInt(q url.Values, key string, def int) (int, error) {
	v := q.Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}
