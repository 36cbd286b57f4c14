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
	"github.com/SwapCodesDev/farmingo-sub000/internal/threads/store"
)

type createPostRequest struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	CommunityID string `json:"community_id,omitempty"`
}

type voteRequest struct {
	Direction string `json:"direction"`
}

type pinRequest struct {
	CommentID *string `json:"comment_id"`
}

type threadResponse struct {
	Post     store.Post         `json:"post"`
	Comments []store.ThreadNode `json:"comments"`
	Pinned   *store.ThreadNode  `json:"pinned,omitempty"`
}

// CreatePost handles POST /v1/posts
func CreatePost(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			unauthorized(w, r)
			return
		}

		var req createPostRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", httpserver.RequestIDFromContext(r.Context()), nil)
			return
		}

		post, err := svc.CreatePost(r.Context(), userID, req.Title, req.Body, req.CommunityID)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusCreated, post)
	}
}

// GetThread handles GET /v1/posts/{post_id}/thread
func GetThread(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID := strings.TrimSpace(chi.URLParam(r, "post_id"))
		if postID == "" {
			api.BadRequest(w, "MISSING_ID", "post_id is required", httpserver.RequestIDFromContext(r.Context()), nil)
			return
		}

		post, nodes, err := svc.Thread(r.Context(), postID)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}

		resp := threadResponse{Post: post, Comments: nodes}
		if pinned, ok := store.FindPinned(post, nodes); ok {
			resp.Pinned = &pinned
		}
		api.WriteJSON(w, http.StatusOK, resp)
	}
}

// DeletePost handles DELETE /v1/posts/{post_id}. Post author, or any
// moderator.
func DeletePost(svc *service.Service) http.HandlerFunc {
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

		if err := svc.DeletePost(r.Context(), postID, userID, auth.IsModerator(r.Context())); err != nil {
			writeStoreError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// VotePost handles POST /v1/posts/{post_id}/vote
func VotePost(svc *service.Service) http.HandlerFunc {
	return voteHandler(svc, store.TargetPost, "post_id")
}

// VoteComment handles POST /v1/comments/{comment_id}/vote
func VoteComment(svc *service.Service) http.HandlerFunc {
	return voteHandler(svc, store.TargetComment, "comment_id")
}

func voteHandler(svc *service.Service, kind store.TargetKind, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			unauthorized(w, r)
			return
		}

		targetID := strings.TrimSpace(chi.URLParam(r, param))
		if targetID == "" {
			api.BadRequest(w, "MISSING_ID", param+" is required", httpserver.RequestIDFromContext(r.Context()), nil)
			return
		}

		var req voteRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", httpserver.RequestIDFromContext(r.Context()), nil)
			return
		}

		tally, err := svc.CastVote(r.Context(),
			store.VoteTarget{Kind: kind, ID: targetID},
			userID, store.VoteDirection(strings.ToLower(strings.TrimSpace(req.Direction))))
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, tally)
	}
}

// PinComment handles PUT /v1/posts/{post_id}/pin
func PinComment(svc *service.Service) http.HandlerFunc {
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

		var req pinRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", httpserver.RequestIDFromContext(r.Context()), nil)
			return
		}

		if err := svc.SetPinnedComment(r.Context(), postID, userID, req.CommentID); err != nil {
			writeStoreError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
