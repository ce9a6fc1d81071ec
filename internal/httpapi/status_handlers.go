package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/DonGar/house-monitor/internal/httpapi/apierrors"
	"github.com/DonGar/house-monitor/internal/statustree"
)

// writeStatusJSON writes {"revision","status","url"} (alphabetical key
// order, 2-space indent) by round-tripping through a map: encoding/json
// sorts map keys, which gives exactly the ordering the wire format
// requires without hand-maintaining field order in a struct.
func writeStatusJSON(w http.ResponseWriter, url string, revision int64, status statustree.Value) {
	// encoding/json sorts map keys alphabetically but preserves struct
	// field order; the spec's {"revision", "status", "url"} ordering is
	// alphabetical, so round-tripping through a map gives exactly that.
	payload := map[string]interface{}{
		"url":      url,
		"revision": revision,
		"status":   status,
	}
	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
	w.Write([]byte("\n"))
}

func parseRevisionParam(r *http.Request) (*int64, error) {
	raw := r.URL.Query().Get("revision")
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// handleStatus implements GET /status/<path...>?revision=R (long-poll) and
// PUT /status/<path...>?revision=R (optimistic-concurrency write, gated by
// the web-updatable registry).
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)
	rest := mux.Vars(r)["rest"]
	url := statustree.Scheme
	if rest != "" {
		url += rest
	}

	expected, err := parseRevisionParam(r)
	if err != nil {
		apierrors.Write(w, requestID, &statustree.BadPathError{Path: url, Reason: "revision must be an integer"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleStatusGet(w, r, url, expected)
	case http.MethodPut:
		s.handleStatusPut(w, r, url, expected)
	}
}

func (s *Server) handleStatusGet(w http.ResponseWriter, r *http.Request, url string, expected *int64) {
	if expected != nil {
		watcher, err := s.cfg.Tree.Deferred(url, expected)
		if err != nil {
			apierrors.Write(w, requestIDFrom(r), err)
			return
		}

		select {
		case <-watcher.Done():
		case <-r.Context().Done():
			watcher.Cancel()
			return
		}
	}

	value, err := s.cfg.Tree.Get(url, statustree.Null())
	if err != nil {
		apierrors.Write(w, requestIDFrom(r), err)
		return
	}
	revision, err := s.cfg.Tree.Revision(url)
	if err != nil {
		// The node may have been removed between the watcher firing and
		// this read; report revision 0 alongside the null value rather
		// than failing the long-poll outright.
		revision = 0
	}
	writeStatusJSON(w, url, revision, value)
}

func (s *Server) handleStatusPut(w http.ResponseWriter, r *http.Request, url string, expected *int64) {
	if s.cfg.WebPaths != nil && !s.cfg.WebPaths.IsWebUpdatable(url) {
		http.Error(w, "path is not web-updatable", http.StatusForbidden)
		return
	}

	var raw interface{}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		apierrors.Write(w, requestIDFrom(r), &statustree.BadPathError{Path: url, Reason: "body is not valid JSON"})
		return
	}
	value := statustree.FromAny(raw)

	if err := s.cfg.Tree.Set(url, value, expected); err != nil {
		apierrors.Write(w, requestIDFrom(r), err)
		return
	}

	revision, _ := s.cfg.Tree.Revision(url)
	writeStatusJSON(w, url, revision, value)
}
