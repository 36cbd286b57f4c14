package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/SwapCodesDev/farmingo-sub000/internal/platform/api"
	"github.com/SwapCodesDev/farmingo-sub000/internal/platform/httpserver"
	"github.com/SwapCodesDev/farmingo-sub000/internal/threads/fanout"
	"github.com/SwapCodesDev/farmingo-sub000/internal/threads/service"
	"github.com/SwapCodesDev/farmingo-sub000/internal/threads/store"
)

// StreamThread handles GET /v1/posts/{post_id}/stream as a
// server-sent-events stream: an initial snapshot, then one event per
// committed mutation touching the post. Closing the request context
// unsubscribes without affecting in-flight mutations.
func StreamThread(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID := strings.TrimSpace(chi.URLParam(r, "post_id"))
		if postID == "" {
			api.BadRequest(w, "MISSING_ID", "post_id is required", httpserver.RequestIDFromContext(r.Context()), nil)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			api.Internal(w, httpserver.RequestIDFromContext(r.Context()))
			return
		}

		ch, cancel, err := svc.Subscribe(r.Context(), postID)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		defer cancel()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		// Initial snapshot so the client does not wait for the first
		// mutation.
		post, nodes, err := svc.Thread(r.Context(), postID)
		if err == nil {
			writeSSE(w, "snapshot", threadResponse{Post: post, Comments: nodes})
			flusher.Flush()
		}

		for {
			select {
			case <-r.Context().Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if ev.Kind == fanout.KindPostDeleted {
					writeSSE(w, ev.Kind, map[string]string{"post_id": ev.PostID})
					flusher.Flush()
					return
				}
				writeSSE(w, ev.Kind, threadEventBody(ev))
				flusher.Flush()
			}
		}
	}
}

func threadEventBody(ev fanout.ThreadEvent) threadResponse {
	nodes := store.BuildThread(ev.Comments)
	resp := threadResponse{Post: ev.Post, Comments: nodes}
	if pinned, ok := store.FindPinned(ev.Post, nodes); ok {
		resp.Pinned = &pinned
	}
	return resp
}

func writeSSE(w http.ResponseWriter, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
