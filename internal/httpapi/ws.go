package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/DonGar/house-monitor/internal/statustree"
)

var wsUpgrader = websocket.Upgrader{
	// Home-LAN surface; see middleware.DefaultCORSConfig for the same
	// reasoning applied to plain HTTP requests.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsStatusMessage struct {
	URL      string               `json:"url"`
	Revision int64                `json:"revision"`
	Status   statustree.Value     `json:"status"`
}

// handleWebSocket implements GET /ws/status (and /ws/status/{rest}):
// push instead of long-poll. It loops creating a new watcher each time
// the previous one fires, writing the resulting {url, revision, status}
// as a JSON-framed message, built on the same Tree.Deferred primitive
// the long-poll /status endpoint uses.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	rest := mux.Vars(r)["rest"]
	url := statustree.Scheme
	if rest != "" {
		url += rest
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.cfg.Logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	var expected *int64

	for {
		watcher, err := s.cfg.Tree.Deferred(url, expected)
		if err != nil {
			s.cfg.Logger.Error("websocket watcher failed", "url", url, "error", err)
			return
		}

		select {
		case <-watcher.Done():
		case <-ctx.Done():
			watcher.Cancel()
			return
		}

		value, err := s.cfg.Tree.Get(url, statustree.Null())
		if err != nil {
			return
		}
		revision, err := s.cfg.Tree.Revision(url)
		if err != nil {
			revision = 0
		}

		if err := conn.WriteJSON(wsStatusMessage{URL: url, Revision: revision, Status: value}); err != nil {
			return
		}
		expected = &revision
	}
}
