package store

import (
	"time"
)

// Text length bounds enforced before any transaction is opened.
const (
	MaxCommentLen = 2000
	MaxTitleLen   = 200
	MaxBodyLen    = 10000
)

// VoteDirection is the direction of a cast vote.
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

// TargetKind names the kind of entity a vote is aimed at.
type TargetKind string

const (
	TargetPost    TargetKind = "post"
	TargetComment TargetKind = "comment"
)

// VoteTarget identifies a votable entity.
type VoteTarget struct {
	Kind TargetKind
	ID   string
}

// Tally is the vote state of an entity after a cast. A user id appears
// in at most one of the two sets; Score is |upvotes| - |downvotes|.
type Tally struct {
	Upvotes   []string `json:"upvotes"`
	Downvotes []string `json:"downvotes"`
	Score     int      `json:"score"`
}

// Post is a community post that owns a comment forest. CommentCount is
// a cached derived value: it always equals the number of live top-level
// comments under the post. PinnedCommentID is last-write-wins and may
// reference a comment that no longer exists; stale pins simply fail to
// resolve when the thread is assembled.
type Post struct {
	ID              string    `json:"id"`
	AuthorID        string    `json:"author_id"`
	Title           string    `json:"title"`
	Body            string    `json:"body"`
	CommunityID     string    `json:"community_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	Upvotes         []string  `json:"upvotes"`
	Downvotes       []string  `json:"downvotes"`
	CommentCount    int       `json:"comment_count"`
	PinnedCommentID *string   `json:"pinned_comment_id,omitempty"`
}

// Comment is a single row of a post's comment forest. ParentID is fixed
// at creation and never changed; nil means top-level. ReplyCount always
// equals the number of live comments whose parent is this comment.
type Comment struct {
	ID         string     `json:"id"`
	PostID     string     `json:"post_id"`
	ParentID   *string    `json:"parent_id,omitempty"`
	AuthorID   string     `json:"author_id"`
	Text       string     `json:"text"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
	ReplyCount int        `json:"reply_count"`
	Upvotes    []string   `json:"upvotes"`
	Downvotes  []string   `json:"downvotes"`
}

// Tally returns the comment's current vote state.
func (c Comment) Tally() Tally {
	return Tally{Upvotes: c.Upvotes, Downvotes: c.Downvotes, Score: len(c.Upvotes) - len(c.Downvotes)}
}

// Tally returns the post's current vote state.
func (p Post) Tally() Tally {
	return Tally{Upvotes: p.Upvotes, Downvotes: p.Downvotes, Score: len(p.Upvotes) - len(p.Downvotes)}
}

// ThreadNode is a comment with its reply subtree attached, ready for
// display.
type ThreadNode struct {
	Comment Comment      `json:"comment"`
	Replies []ThreadNode `json:"replies"`
}
