package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/SwapCodesDev/farmingo-sub000/internal/platform/api"
	"github.com/SwapCodesDev/farmingo-sub000/internal/platform/auth"
	"github.com/SwapCodesDev/farmingo-sub000/internal/platform/httpserver"
	"github.com/SwapCodesDev/farmingo-sub000/internal/threads/service"
)

type createCommentRequest struct {
	Text     string  `json:"text"`
	ParentID *string `json:"parent_id,omitempty"`
}

type updateCommentRequest struct {
	Text string `json:"text"`
}

// CreateComment handles POST /v1/posts/{post_id}/comments
func CreateComment(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			unauthorized(w, r)
			return
		}

		postID := strings.TrimSpace(chi.URLParam(r, "post_id"))
		if postID == "" {
			api.BadRequest(w, "MISSING_ID", "post_id is required", httpserver.RequestIDFromContext(r.Context()), nil)
			return
		}

		var req createCommentRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", httpserver.RequestIDFromContext(r.Context()), nil)
			return
		}

		c, err := svc.AddComment(r.Context(), postID, userID, req.Text, req.ParentID)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusCreated, c)
	}
}

// UpdateComment handles PUT /v1/comments/{comment_id}
func UpdateComment(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			unauthorized(w, r)
			return
		}

		commentID := strings.TrimSpace(chi.URLParam(r, "comment_id"))
		if commentID == "" {
			api.BadRequest(w, "MISSING_ID", "comment_id is required", httpserver.RequestIDFromContext(r.Context()), nil)
			return
		}

		var req updateCommentRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", httpserver.RequestIDFromContext(r.Context()), nil)
			return
		}

		c, err := svc.EditComment(r.Context(), commentID, userID, req.Text)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, c)
	}
}

// DeleteComment handles DELETE /v1/posts/{post_id}/comments/{comment_id}
func DeleteComment(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			unauthorized(w, r)
			return
		}

		postID := strings.TrimSpace(chi.URLParam(r, "post_id"))
		commentID := strings.TrimSpace(chi.URLParam(r, "comment_id"))
		if postID == "" || commentID == "" {
			api.BadRequest(w, "MISSING_ID", "post_id and comment_id are required", httpserver.RequestIDFromContext(r.Context()), nil)
			return
		}

		if err := svc.DeleteComment(r.Context(), postID, commentID, userID); err != nil {
			writeStoreError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
