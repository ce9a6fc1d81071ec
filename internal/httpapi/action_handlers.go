package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/DonGar/house-monitor/internal/httpapi/apierrors"
	"github.com/DonGar/house-monitor/internal/httpapi/middleware"
	"github.com/DonGar/house-monitor/internal/statustree"
)

func requestIDFrom(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}

// handleButton implements POST /button/<id>: record a push timestamp
// against every matching button, then dispatch its action if present.
func (s *Server) handleButton(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	now := time.Now().Unix()

	pushedPattern := "status://*/button/" + id + "/pushed"
	urls, err := s.cfg.Tree.GetMatchingURLs(pushedPattern)
	if err != nil {
		apierrors.Write(w, requestIDFrom(r), err)
		return
	}

	for _, pushedURL := range urls {
		if err := s.cfg.Tree.Set(pushedURL, statustree.Int(now), nil); err != nil {
			apierrors.Write(w, requestIDFrom(r), err)
			return
		}

		actionURL := pushedURL[:len(pushedURL)-len("/pushed")] + "/action"
		action, err := s.cfg.Tree.Get(actionURL, statustree.Null())
		if err != nil {
			apierrors.Write(w, requestIDFrom(r), err)
			return
		}
		if action.IsNull() {
			continue
		}
		if err := s.cfg.Manager.DispatchAndAudit(r.Context(), "button "+id, action); err != nil {
			s.cfg.Logger.Error("button action failed", "button", id, "error", err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleHost implements POST /host/<id>?action=<name>: dispatch
// status://*/host/<id>/actions/<name> for every match.
func (s *Server) handleHost(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	name := r.URL.Query().Get("action")
	if name == "" {
		apierrors.Write(w, requestIDFrom(r), &statustree.BadPathError{Path: "status://*/host/" + id, Reason: "missing required ?action= query parameter"})
		return
	}

	pattern := "status://*/host/" + id + "/actions/" + name
	urls, err := s.cfg.Tree.GetMatchingURLs(pattern)
	if err != nil {
		apierrors.Write(w, requestIDFrom(r), err)
		return
	}

	for _, actionURL := range urls {
		action, err := s.cfg.Tree.Get(actionURL, statustree.Null())
		if err != nil {
			apierrors.Write(w, requestIDFrom(r), err)
			return
		}
		if action.IsNull() {
			continue
		}
		if err := s.cfg.Manager.DispatchAndAudit(r.Context(), "host "+id+" "+name, action); err != nil {
			s.cfg.Logger.Error("host action failed", "host", id, "action", name, "error", err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleRestart implements POST /restart.
func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
	if s.cfg.Restart != nil {
		go s.cfg.Restart.Restart()
	}
}
