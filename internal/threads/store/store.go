package store

import "context"

// Store defines the contract for thread persistence. Every mutating
// method is a single atomic read-modify-write unit: the record change
// and its counter adjustment either both apply or neither does, and new
// state is always computed from the snapshot read inside that unit.
// Counters therefore never drift from the record set, even under
// concurrent writers. A commit the backend cannot serialize surfaces as
// ErrConflict for the coordinator to retry.
type Store interface {
	// CreatePost inserts a new post with zero counters and empty vote
	// sets. ID and CreatedAt are assigned by the store.
	CreatePost(ctx context.Context, p Post) (Post, error)

	// GetPost retrieves a post with its vote sets hydrated.
	GetPost(ctx context.Context, postID string) (Post, error)

	// GetComment retrieves a single comment with its vote sets hydrated.
	GetComment(ctx context.Context, commentID string) (Comment, error)

	// ListComments retrieves the full flat comment set for a post, vote
	// sets hydrated, ordered by creation time. Tree assembly is the
	// caller's concern (see BuildThread).
	ListComments(ctx context.Context, postID string) ([]Comment, error)

	// AddComment inserts c and bumps exactly one counter in the same
	// atomic unit: the post's comment count for a top-level comment,
	// the parent's reply count for a reply. The parent (when set) must
	// exist and belong to c.PostID, else ErrNotFound.
	AddComment(ctx context.Context, c Comment) (Comment, error)

	// EditComment updates the text and sets UpdatedAt. Author-only;
	// never touches counters.
	EditComment(ctx context.Context, commentID, authorID, text string) (Comment, error)

	// DeleteComment removes the comment record and decrements the
	// matching counter by exactly one, atomically. Author-only.
	// Children are neither deleted nor re-parented; they become
	// orphans invisible to tree assembly.
	DeleteComment(ctx context.Context, postID, commentID, authorID string) error

	// DeletePost removes the post together with all of its comments and
	// vote records. Allowed for the post author, or anyone when
	// moderator is set.
	DeletePost(ctx context.Context, postID, actorID string, moderator bool) error

	// CastVote applies toggle/switch semantics for userID on the target
	// and returns the resulting tally. Voting an already-cast direction
	// removes the vote; voting the opposite direction moves it. The
	// user id is never left in both sets.
	CastVote(ctx context.Context, target VoteTarget, userID string, dir VoteDirection) (Tally, error)

	// SetPinnedComment sets (or, with nil, clears) the post's pinned
	// comment. Post author only. The referenced comment is not
	// validated; last write wins.
	SetPinnedComment(ctx context.Context, postID, authorID string, commentID *string) error
}
