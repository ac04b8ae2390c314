package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/errandly/backend/internal/feed"
)

// streamFeed handles GET /requests/feed as a Server-Sent Events stream.
// The first event is a "snapshot" carrying the current open set; after
// that, each lifecycle change arrives as one event whose name is the
// change kind (created, accepted, completed) and whose data is the full
// request snapshot. A per-connection OpenSet folds the pushes in, so
// replayed or reordered updates never produce a duplicate or stale
// snapshot on reconnect. The stream stays open until the client
// disconnects.
func (s *Server) streamFeed(w http.ResponseWriter, r *http.Request) {
	if s.feed == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error: errorDetail{Code: "unavailable", Message: "live feed is not enabled"},
		})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: errorDetail{Code: "internal_error", Message: "streaming unsupported"},
		})
		return
	}

	ctx := r.Context()

	// Subscribe before the initial list fetch so no update falls between
	// the snapshot and the stream.
	updates, closeSub := s.feed.Subscribe(ctx)
	defer func() {
		if err := closeSub(); err != nil {
			s.log.Warn("close feed subscription", "error", err)
		}
	}()

	open, err := s.requests.ListOpen(ctx, nil)
	if err != nil {
		s.writeError(w, err)
		return
	}

	set := feed.NewOpenSet()
	set.Replace(open)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	s.emitEvent(w, "snapshot", requestsToResponse(set.Snapshot(), nil))
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case u, more := <-updates:
			if !more {
				return
			}
			set.Apply(u)
			s.emitEvent(w, string(u.Kind), requestToResponse(u.Request, nil))
			flusher.Flush()
		}
	}
}

// emitEvent writes one SSE frame. Marshal failures are logged and the
// frame dropped; the stream itself stays up.
func (s *Server) emitEvent(w http.ResponseWriter, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		s.log.Error("marshal feed event", "event", event, "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}
