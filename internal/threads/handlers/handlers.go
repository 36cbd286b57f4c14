// Package handlers exposes the thread service over HTTP. Routes are
// registered in cmd/threads; authenticated routes sit behind
// auth.RequireUser, which injects the verified user id into context.
package handlers

import (
	"net/http"

	"github.com/SwapCodesDev/farmingo-sub000/internal/platform/api"
	"github.com/SwapCodesDev/farmingo-sub000/internal/platform/httpserver"
	"github.com/SwapCodesDev/farmingo-sub000/internal/threads/store"
)

// writeStoreError maps the store error taxonomy onto the API envelope.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	rid := httpserver.RequestIDFromContext(r.Context())
	switch {
	case store.IsValidation(err):
		api.BadRequest(w, "INVALID_INPUT", err.Error(), rid, nil)
	case store.IsNotFound(err):
		api.NotFound(w, "NOT_FOUND", "post or comment not found", rid)
	case store.IsPermissionDenied(err):
		api.Forbidden(w, "FORBIDDEN", "caller does not own the target", rid)
	case store.IsConflict(err):
		api.Conflict(w, "CONFLICT", "could not commit, please retry", rid, nil)
	default:
		api.Internal(w, rid)
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	api.Unauthorized(w, "UNAUTHORIZED", "authentication required",
		httpserver.RequestIDFromContext(r.Context()))
}
