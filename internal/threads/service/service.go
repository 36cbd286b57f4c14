// Package service is the mutation coordinator: every structural change
// to a thread (comment add/edit/delete, vote, pin) passes through here.
// The coordinator fails fast on authentication and validation before
// any transaction is opened, retries conflicted commits within a
// bounded budget, emits a structured audit event for every denied
// write, and triggers fan-out after each commit.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SwapCodesDev/farmingo-sub000/internal/platform/events"
	"github.com/SwapCodesDev/farmingo-sub000/internal/threads/fanout"
	"github.com/SwapCodesDev/farmingo-sub000/internal/threads/store"
)

const (
	defaultRetries = 5
	defaultBackoff = 10 * time.Millisecond
)

type Service struct {
	store   store.Store
	hub     *fanout.Hub
	events  *events.Publisher
	log     *zap.Logger
	retries int
	backoff time.Duration
}

func New(st store.Store, hub *fanout.Hub, pub *events.Publisher, log *zap.Logger) *Service {
	return &Service{
		store:   st,
		hub:     hub,
		events:  pub,
		log:     log,
		retries: defaultRetries,
		backoff: defaultBackoff,
	}
}

func (s *Service) CreatePost(ctx context.Context, authorID, title, body, communityID string) (store.Post, error) {
	if err := requireUser(authorID); err != nil {
		return store.Post{}, err
	}
	title = strings.TrimSpace(title)
	if l := len(title); l < 1 || l > store.MaxTitleLen {
		return store.Post{}, fmt.Errorf("title must be 1 to %d characters: %w", store.MaxTitleLen, store.ErrValidation)
	}
	if len(body) > store.MaxBodyLen {
		return store.Post{}, fmt.Errorf("body must be at most %d characters: %w", store.MaxBodyLen, store.ErrValidation)
	}

	var post store.Post
	err := s.withRetry(ctx, func() error {
		var err error
		post, err = s.store.CreatePost(ctx, store.Post{
			AuthorID:    authorID,
			Title:       title,
			Body:        body,
			CommunityID: communityID,
		})
		return err
	})
	if err != nil {
		return store.Post{}, err
	}
	s.log.Info("post created", zap.String("post_id", post.ID), zap.String("author_id", authorID))
	return post, nil
}

// Thread returns the post and its assembled display forest. Orphaned
// subtrees (replies whose parent was deleted) are excluded by
// BuildThread.
func (s *Service) Thread(ctx context.Context, postID string) (store.Post, []store.ThreadNode, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return store.Post{}, nil, err
	}
	comments, err := s.store.ListComments(ctx, postID)
	if err != nil {
		return store.Post{}, nil, err
	}
	return post, store.BuildThread(comments), nil
}

func (s *Service) AddComment(ctx context.Context, postID, authorID, text string, parentID *string) (store.Comment, error) {
	if err := requireUser(authorID); err != nil {
		return store.Comment{}, err
	}
	if err := validateCommentText(text); err != nil {
		return store.Comment{}, err
	}

	var c store.Comment
	err := s.withRetry(ctx, func() error {
		var err error
		c, err = s.store.AddComment(ctx, store.Comment{
			PostID:   postID,
			ParentID: parentID,
			AuthorID: authorID,
			Text:     text,
		})
		return err
	})
	if err != nil {
		return store.Comment{}, err
	}
	s.notify(ctx, fanout.KindCommentAdded, postID, authorID)
	return c, nil
}

func (s *Service) EditComment(ctx context.Context, commentID, authorID, text string) (store.Comment, error) {
	if err := requireUser(authorID); err != nil {
		return store.Comment{}, err
	}
	if err := validateCommentText(text); err != nil {
		return store.Comment{}, err
	}

	var c store.Comment
	err := s.withRetry(ctx, func() error {
		var err error
		c, err = s.store.EditComment(ctx, commentID, authorID, text)
		return err
	})
	if err != nil {
		if store.IsPermissionDenied(err) {
			s.reportDenied(authorID, "edit_comment", map[string]any{
				"comment_id": commentID,
				"text":       text,
			})
		}
		return store.Comment{}, err
	}
	s.notify(ctx, fanout.KindCommentEdited, c.PostID, authorID)
	return c, nil
}

func (s *Service) DeleteComment(ctx context.Context, postID, commentID, authorID string) error {
	if err := requireUser(authorID); err != nil {
		return err
	}

	err := s.withRetry(ctx, func() error {
		return s.store.DeleteComment(ctx, postID, commentID, authorID)
	})
	if err != nil {
		if store.IsPermissionDenied(err) {
			s.reportDenied(authorID, "delete_comment", map[string]any{
				"post_id":    postID,
				"comment_id": commentID,
			})
		}
		return err
	}
	s.notify(ctx, fanout.KindCommentDeleted, postID, authorID)
	return nil
}

// DeletePost removes the post and everything hanging off it. The post
// author may always do this; moderators may remove any post.
func (s *Service) DeletePost(ctx context.Context, postID, actorID string, moderator bool) error {
	if err := requireUser(actorID); err != nil {
		return err
	}

	err := s.withRetry(ctx, func() error {
		return s.store.DeletePost(ctx, postID, actorID, moderator)
	})
	if err != nil {
		if store.IsPermissionDenied(err) {
			s.reportDenied(actorID, "delete_post", map[string]any{"post_id": postID})
		}
		return err
	}

	// The post is gone, so there is no snapshot to re-read; subscribers
	// get a bare deletion event and streams terminate on it.
	ev := fanout.ThreadEvent{Kind: fanout.KindPostDeleted, PostID: postID, OccurredAt: time.Now().UTC()}
	s.hub.Publish(ev)
	s.events.Publish(events.ThreadSubject(postID), fanout.KindPostDeleted, actorID, map[string]any{
		"post_id": postID,
	})
	s.log.Info("post deleted", zap.String("post_id", postID),
		zap.String("actor_id", actorID), zap.Bool("moderator", moderator))
	return nil
}

// CastVote applies toggle/switch semantics for userID on the target.
// A missing target is a benign race (the entity was deleted while the
// vote was in flight); it surfaces as NotFound with no side effects.
func (s *Service) CastVote(ctx context.Context, target store.VoteTarget, userID string, dir store.VoteDirection) (store.Tally, error) {
	if err := requireUser(userID); err != nil {
		return store.Tally{}, err
	}
	if dir != store.VoteUp && dir != store.VoteDown {
		return store.Tally{}, fmt.Errorf("direction must be %q or %q: %w", store.VoteUp, store.VoteDown, store.ErrValidation)
	}

	var tally store.Tally
	err := s.withRetry(ctx, func() error {
		var err error
		tally, err = s.store.CastVote(ctx, target, userID, dir)
		return err
	})
	if err != nil {
		if store.IsNotFound(err) {
			s.log.Debug("vote on missing entity",
				zap.String("kind", string(target.Kind)), zap.String("target_id", target.ID))
		}
		return store.Tally{}, err
	}

	postID := target.ID
	if target.Kind == store.TargetComment {
		c, err := s.store.GetComment(ctx, target.ID)
		if err != nil {
			// Deleted between commit and lookup; subscribers will hear
			// about the deletion instead.
			return tally, nil
		}
		postID = c.PostID
	}
	s.notify(ctx, fanout.KindVoteCast, postID, userID)
	return tally, nil
}

func (s *Service) SetPinnedComment(ctx context.Context, postID, authorID string, commentID *string) error {
	if err := requireUser(authorID); err != nil {
		return err
	}

	err := s.withRetry(ctx, func() error {
		return s.store.SetPinnedComment(ctx, postID, authorID, commentID)
	})
	if err != nil {
		if store.IsPermissionDenied(err) {
			props := map[string]any{"post_id": postID}
			if commentID != nil {
				props["comment_id"] = *commentID
			}
			s.reportDenied(authorID, "set_pinned_comment", props)
		}
		return err
	}
	s.notify(ctx, fanout.KindPinChanged, postID, authorID)
	return nil
}

// Subscribe registers interest in a post's thread. The post must exist.
func (s *Service) Subscribe(ctx context.Context, postID string) (<-chan fanout.ThreadEvent, func(), error) {
	if _, err := s.store.GetPost(ctx, postID); err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.Subscribe(postID)
	return ch, cancel, nil
}

// withRetry re-runs op on commit conflicts with exponential backoff.
// Any other error, and the exhausted budget itself, surface unchanged.
func (s *Service) withRetry(ctx context.Context, op func() error) error {
	var err error
	wait := s.backoff
	for attempt := 1; attempt <= s.retries; attempt++ {
		if err = op(); !store.IsConflict(err) {
			return err
		}
		if attempt == s.retries {
			break
		}
		s.log.Debug("commit conflict, retrying", zap.Int("attempt", attempt))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return err
}

// notify pushes the refreshed thread to local subscribers and signals
// peers over the event bus. Fan-out failures never affect the already
// committed mutation.
func (s *Service) notify(ctx context.Context, kind, postID, actorID string) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		if !store.IsNotFound(err) {
			s.log.Warn("fanout: load post", zap.String("post_id", postID), zap.Error(err))
		}
		return
	}
	comments, err := s.store.ListComments(ctx, postID)
	if err != nil {
		s.log.Warn("fanout: load comments", zap.String("post_id", postID), zap.Error(err))
		return
	}
	s.hub.Publish(fanout.ThreadEvent{
		Kind:       kind,
		PostID:     postID,
		Post:       post,
		Comments:   comments,
		OccurredAt: time.Now().UTC(),
	})
	s.events.Publish(events.ThreadSubject(postID), kind, actorID, map[string]any{
		"post_id": postID,
	})
}

// reportDenied emits the audit trail for a rejected write: who tried
// what against which target, with the attempted payload.
func (s *Service) reportDenied(userID, operation string, props map[string]any) {
	fields := []zap.Field{zap.String("operation", operation), zap.String("user_id", userID)}
	for k, v := range props {
		fields = append(fields, zap.Any(k, v))
	}
	s.log.Warn("permission denied", fields...)
	if props == nil {
		props = map[string]any{}
	}
	props["operation"] = operation
	s.events.Publish(events.SubjectPermissionDenied, "permission_denied", userID, props)
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return store.ErrUnauthenticated
	}
	return nil
}

func validateCommentText(text string) error {
	if l := len(text); l < 1 || l > store.MaxCommentLen {
		return fmt.Errorf("text must be 1 to %d characters: %w", store.MaxCommentLen, store.ErrValidation)
	}
	return nil
}
