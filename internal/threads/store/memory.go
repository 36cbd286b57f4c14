package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is the development and test backend. A single mutex
// turns every mutation into one critical section, which gives the same
// guarantee the Postgres backend gets from transactions: the record
// change and its counter adjustment are observed together or not at
// all.
type InMemoryStore struct {
	mu       sync.RWMutex
	posts    map[string]Post
	comments map[string]Comment
	// entity id -> user id -> +1/-1
	postVotes    map[string]map[string]int
	commentVotes map[string]map[string]int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		posts:        make(map[string]Post),
		comments:     make(map[string]Comment),
		postVotes:    make(map[string]map[string]int),
		commentVotes: make(map[string]map[string]int),
	}
}

func (s *InMemoryStore) CreatePost(_ context.Context, p Post) (Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = uuid.NewString()
	p.CreatedAt = time.Now().UTC()
	p.CommentCount = 0
	p.PinnedCommentID = nil
	s.posts[p.ID] = p
	return s.hydratePost(p), nil
}

func (s *InMemoryStore) GetPost(_ context.Context, postID string) (Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[postID]
	if !ok {
		return Post{}, ErrNotFound
	}
	return s.hydratePost(p), nil
}

func (s *InMemoryStore) GetComment(_ context.Context, commentID string) (Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.comments[commentID]
	if !ok {
		return Comment{}, ErrNotFound
	}
	return s.hydrateComment(c), nil
}

func (s *InMemoryStore) ListComments(_ context.Context, postID string) ([]Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.posts[postID]; !ok {
		return nil, ErrNotFound
	}
	out := make([]Comment, 0)
	for _, c := range s.comments {
		if c.PostID == postID {
			out = append(out, s.hydrateComment(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *InMemoryStore) AddComment(_ context.Context, c Comment) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[c.PostID]
	if !ok {
		return Comment{}, ErrNotFound
	}

	if c.ParentID != nil {
		parent, ok := s.comments[*c.ParentID]
		if !ok || parent.PostID != c.PostID {
			return Comment{}, ErrNotFound
		}
		parent.ReplyCount++
		s.comments[parent.ID] = parent
	} else {
		post.CommentCount++
		s.posts[post.ID] = post
	}

	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = nil
	c.ReplyCount = 0
	s.comments[c.ID] = c
	return s.hydrateComment(c), nil
}

func (s *InMemoryStore) EditComment(_ context.Context, commentID, authorID, text string) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[commentID]
	if !ok {
		return Comment{}, ErrNotFound
	}
	if c.AuthorID != authorID {
		return Comment{}, ErrPermissionDenied
	}
	c.Text = text
	now := time.Now().UTC()
	c.UpdatedAt = &now
	s.comments[commentID] = c
	return s.hydrateComment(c), nil
}

func (s *InMemoryStore) DeleteComment(_ context.Context, postID, commentID, authorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[commentID]
	if !ok || c.PostID != postID {
		return ErrNotFound
	}
	if c.AuthorID != authorID {
		return ErrPermissionDenied
	}

	if c.ParentID != nil {
		// The parent may itself already be deleted; its counter is gone
		// with it.
		if parent, ok := s.comments[*c.ParentID]; ok {
			parent.ReplyCount--
			s.comments[parent.ID] = parent
		}
	} else {
		post := s.posts[postID]
		post.CommentCount--
		s.posts[postID] = post
	}

	delete(s.comments, commentID)
	delete(s.commentVotes, commentID)
	return nil
}

func (s *InMemoryStore) DeletePost(_ context.Context, postID, actorID string, moderator bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return ErrNotFound
	}
	if p.AuthorID != actorID && !moderator {
		return ErrPermissionDenied
	}

	for id, c := range s.comments {
		if c.PostID == postID {
			delete(s.comments, id)
			delete(s.commentVotes, id)
		}
	}
	delete(s.postVotes, postID)
	delete(s.posts, postID)
	return nil
}

func (s *InMemoryStore) CastVote(_ context.Context, target VoteTarget, userID string, dir VoteDirection) (Tally, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var votes map[string]map[string]int
	switch target.Kind {
	case TargetPost:
		if _, ok := s.posts[target.ID]; !ok {
			return Tally{}, ErrNotFound
		}
		votes = s.postVotes
	case TargetComment:
		if _, ok := s.comments[target.ID]; !ok {
			return Tally{}, ErrNotFound
		}
		votes = s.commentVotes
	default:
		return Tally{}, ErrNotFound
	}

	if votes[target.ID] == nil {
		votes[target.ID] = make(map[string]int)
	}
	want := 1
	if dir == VoteDown {
		want = -1
	}
	if votes[target.ID][userID] == want {
		delete(votes[target.ID], userID) // toggle off
	} else {
		votes[target.ID][userID] = want // new vote or switch
	}
	up, down := voterSets(votes[target.ID])
	return Tally{Upvotes: up, Downvotes: down, Score: len(up) - len(down)}, nil
}

func (s *InMemoryStore) SetPinnedComment(_ context.Context, postID, authorID string, commentID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return ErrNotFound
	}
	if p.AuthorID != authorID {
		return ErrPermissionDenied
	}
	p.PinnedCommentID = commentID
	s.posts[postID] = p
	return nil
}

// hydratePost fills the vote sets; callers hold at least the read lock.
func (s *InMemoryStore) hydratePost(p Post) Post {
	p.Upvotes, p.Downvotes = voterSets(s.postVotes[p.ID])
	return p
}

func (s *InMemoryStore) hydrateComment(c Comment) Comment {
	c.Upvotes, c.Downvotes = voterSets(s.commentVotes[c.ID])
	return c
}

func voterSets(votes map[string]int) (up, down []string) {
	up, down = []string{}, []string{}
	for uid, v := range votes {
		if v > 0 {
			up = append(up, uid)
		} else {
			down = append(down, uid)
		}
	}
	sort.Strings(up)
	sort.Strings(down)
	return up, down
}
