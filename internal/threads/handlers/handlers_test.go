package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/SwapCodesDev/farmingo-sub000/internal/platform/auth"
	"github.com/SwapCodesDev/farmingo-sub000/internal/threads/fanout"
	"github.com/SwapCodesDev/farmingo-sub000/internal/threads/service"
	"github.com/SwapCodesDev/farmingo-sub000/internal/threads/store"
)

// setupReq builds a request with chi URL params and optional user_id in context.
func setupReq(method, url string, body string, params map[string]string, userID string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, url, bytes.NewBufferString(body))
	} else {
		req = httptest.NewRequest(method, url, nil)
	}
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if userID != "" {
		ctx = auth.WithUserID(ctx, userID)
	}
	return req.WithContext(ctx)
}

func newTestService(t *testing.T) *service.Service {
	t.Helper()
	hub := fanout.NewHub()
	t.Cleanup(hub.Close)
	return service.New(store.NewInMemoryStore(), hub, nil, zap.NewNop())
}

func seedPost(t *testing.T, svc *service.Service, authorID string) store.Post {
	t.Helper()
	p, err := svc.CreatePost(context.Background(), authorID, "seed post", "body", "")
	if err != nil {
		t.Fatalf("seed post: %v", err)
	}
	return p
}

func seedComment(t *testing.T, svc *service.Service, postID, authorID, text string) store.Comment {
	t.Helper()
	c, err := svc.AddComment(context.Background(), postID, authorID, text, nil)
	if err != nil {
		t.Fatalf("seed comment: %v", err)
	}
	return c
}

func TestCreatePost(t *testing.T) {
	svc := newTestService(t)
	handler := CreatePost(svc)

	req := setupReq(http.MethodPost, "/v1/posts", `{"title":"hello","body":"world"}`, nil, "user-a")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var p store.Post
	if err := json.NewDecoder(rr.Body).Decode(&p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.AuthorID != "user-a" || p.Title != "hello" {
		t.Fatalf("unexpected post %+v", p)
	}
	if p.CommentCount != 0 {
		t.Fatalf("new post must start at comment_count 0, got %d", p.CommentCount)
	}
}

func TestCreateComment(t *testing.T) {
	svc := newTestService(t)
	p := seedPost(t, svc, "user-a")
	handler := CreateComment(svc)

	req := setupReq(http.MethodPost, "/v1/posts/"+p.ID+"/comments", `{"text":"hello world"}`,
		map[string]string{"post_id": p.ID}, "user-b")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var c store.Comment
	if err := json.NewDecoder(rr.Body).Decode(&c); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.Text != "hello world" || c.AuthorID != "user-b" {
		t.Fatalf("unexpected comment %+v", c)
	}
	if c.ParentID != nil {
		t.Fatalf("top-level comment must have nil parent, got %v", *c.ParentID)
	}
}

func TestCreateComment_Unauthorized(t *testing.T) {
	svc := newTestService(t)
	p := seedPost(t, svc, "user-a")
	handler := CreateComment(svc)

	req := setupReq(http.MethodPost, "/v1/posts/"+p.ID+"/comments", `{"text":"hello"}`,
		map[string]string{"post_id": p.ID}, "")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestCreateComment_EmptyText(t *testing.T) {
	svc := newTestService(t)
	p := seedPost(t, svc, "user-a")
	handler := CreateComment(svc)

	req := setupReq(http.MethodPost, "/v1/posts/"+p.ID+"/comments", `{"text":""}`,
		map[string]string{"post_id": p.ID}, "user-b")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestCreateComment_UnknownParent(t *testing.T) {
	svc := newTestService(t)
	p := seedPost(t, svc, "user-a")
	handler := CreateComment(svc)

	req := setupReq(http.MethodPost, "/v1/posts/"+p.ID+"/comments",
		`{"text":"reply","parent_id":"ghost"}`,
		map[string]string{"post_id": p.ID}, "user-b")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestGetThread(t *testing.T) {
	svc := newTestService(t)
	p := seedPost(t, svc, "user-a")
	root := seedComment(t, svc, p.ID, "user-b", "root")
	if _, err := svc.AddComment(context.Background(), p.ID, "user-c", "reply", &root.ID); err != nil {
		t.Fatalf("seed reply: %v", err)
	}
	if err := svc.SetPinnedComment(context.Background(), p.ID, "user-a", &root.ID); err != nil {
		t.Fatalf("seed pin: %v", err)
	}

	handler := GetThread(svc)
	req := setupReq(http.MethodGet, "/v1/posts/"+p.ID+"/thread", "",
		map[string]string{"post_id": p.ID}, "")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp threadResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Comments) != 1 || len(resp.Comments[0].Replies) != 1 {
		t.Fatalf("expected 1 root with 1 reply, got %+v", resp.Comments)
	}
	if resp.Post.CommentCount != 1 {
		t.Fatalf("expected comment_count 1, got %d", resp.Post.CommentCount)
	}
	if resp.Pinned == nil || resp.Pinned.Comment.ID != root.ID {
		t.Fatal("expected pinned node resolved in response")
	}
}

func TestGetThread_NotFound(t *testing.T) {
	svc := newTestService(t)
	handler := GetThread(svc)

	req := setupReq(http.MethodGet, "/v1/posts/ghost/thread", "",
		map[string]string{"post_id": "ghost"}, "")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestVotePost(t *testing.T) {
	svc := newTestService(t)
	p := seedPost(t, svc, "user-a")
	handler := VotePost(svc)

	req := setupReq(http.MethodPost, "/v1/posts/"+p.ID+"/vote", `{"direction":"up"}`,
		map[string]string{"post_id": p.ID}, "user-b")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var tally store.Tally
	if err := json.NewDecoder(rr.Body).Decode(&tally); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tally.Score != 1 || len(tally.Upvotes) != 1 {
		t.Fatalf("unexpected tally %+v", tally)
	}
}

func TestVoteComment_InvalidDirection(t *testing.T) {
	svc := newTestService(t)
	p := seedPost(t, svc, "user-a")
	c := seedComment(t, svc, p.ID, "user-a", "voteable")
	handler := VoteComment(svc)

	req := setupReq(http.MethodPost, "/v1/comments/"+c.ID+"/vote", `{"direction":"sideways"}`,
		map[string]string{"comment_id": c.ID}, "user-b")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestVoteComment_UnknownTarget(t *testing.T) {
	svc := newTestService(t)
	handler := VoteComment(svc)

	req := setupReq(http.MethodPost, "/v1/comments/ghost/vote", `{"direction":"up"}`,
		map[string]string{"comment_id": "ghost"}, "user-b")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestUpdateComment_AuthorOnly(t *testing.T) {
	svc := newTestService(t)
	p := seedPost(t, svc, "user-a")
	c := seedComment(t, svc, p.ID, "user-a", "original")
	handler := UpdateComment(svc)

	// Non-author: forbidden
	req := setupReq(http.MethodPut, "/v1/comments/"+c.ID, `{"text":"hacked"}`,
		map[string]string{"comment_id": c.ID}, "user-b")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-author, got %d", rr.Code)
	}

	// Author: success
	req = setupReq(http.MethodPut, "/v1/comments/"+c.ID, `{"text":"updated"}`,
		map[string]string{"comment_id": c.ID}, "user-a")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for author, got %d: %s", rr.Code, rr.Body.String())
	}
	var updated store.Comment
	if err := json.NewDecoder(rr.Body).Decode(&updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if updated.Text != "updated" || updated.UpdatedAt == nil {
		t.Fatalf("expected edited comment with updated_at, got %+v", updated)
	}
}

func TestDeleteComment_AuthorOnly(t *testing.T) {
	svc := newTestService(t)
	p := seedPost(t, svc, "user-a")
	c := seedComment(t, svc, p.ID, "user-a", "will delete")
	handler := DeleteComment(svc)
	params := map[string]string{"post_id": p.ID, "comment_id": c.ID}

	// Non-author: forbidden
	req := setupReq(http.MethodDelete, "/v1/posts/"+p.ID+"/comments/"+c.ID, "", params, "user-b")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-author, got %d", rr.Code)
	}

	// Author: success
	req = setupReq(http.MethodDelete, "/v1/posts/"+p.ID+"/comments/"+c.ID, "", params, "user-a")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for author, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestDeletePost_AuthorOrModerator(t *testing.T) {
	svc := newTestService(t)
	p := seedPost(t, svc, "user-a")
	handler := DeletePost(svc)
	params := map[string]string{"post_id": p.ID}

	// Unrelated user: forbidden
	req := setupReq(http.MethodDelete, "/v1/posts/"+p.ID, "", params, "user-b")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-author, got %d", rr.Code)
	}

	// Moderator: allowed
	req = setupReq(http.MethodDelete, "/v1/posts/"+p.ID, "", params, "user-b")
	req = req.WithContext(auth.WithRole(req.Context(), auth.RoleModerator))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for moderator, got %d: %s", rr.Code, rr.Body.String())
	}

	// Gone now
	req = setupReq(http.MethodDelete, "/v1/posts/"+p.ID, "", params, "user-a")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rr.Code)
	}
}

func TestPinComment_PostAuthorOnly(t *testing.T) {
	svc := newTestService(t)
	p := seedPost(t, svc, "user-a")
	c := seedComment(t, svc, p.ID, "user-b", "pin me")
	handler := PinComment(svc)
	params := map[string]string{"post_id": p.ID}
	body := `{"comment_id":"` + c.ID + `"}`

	// Non-author: forbidden
	req := setupReq(http.MethodPut, "/v1/posts/"+p.ID+"/pin", body, params, "user-b")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-author, got %d", rr.Code)
	}

	// Post author: success
	req = setupReq(http.MethodPut, "/v1/posts/"+p.ID+"/pin", body, params, "user-a")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for author, got %d: %s", rr.Code, rr.Body.String())
	}

	// Clearing the pin is also author-only and idempotent.
	req = setupReq(http.MethodPut, "/v1/posts/"+p.ID+"/pin", `{"comment_id":null}`, params, "user-a")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 clearing pin, got %d: %s", rr.Code, rr.Body.String())
	}
}
