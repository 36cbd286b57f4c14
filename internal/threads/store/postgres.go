package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists threads in Postgres.
//
// Expected schema:
//
//	CREATE TABLE posts (
//	    id                UUID PRIMARY KEY DEFAULT gen_random_uuid(),
//	    author_id         TEXT NOT NULL,
//	    title             TEXT NOT NULL,
//	    body              TEXT NOT NULL,
//	    community_id      TEXT NOT NULL DEFAULT '',
//	    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    comment_count     INT NOT NULL DEFAULT 0,
//	    pinned_comment_id UUID
//	);
//	CREATE TABLE comments (
//	    id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
//	    post_id     UUID NOT NULL REFERENCES posts(id),
//	    parent_id   UUID,
//	    author_id   TEXT NOT NULL,
//	    text        TEXT NOT NULL,
//	    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    updated_at  TIMESTAMPTZ,
//	    reply_count INT NOT NULL DEFAULT 0
//	);
//	CREATE INDEX comments_post_idx ON comments(post_id);
//	CREATE TABLE post_votes (
//	    post_id UUID NOT NULL REFERENCES posts(id),
//	    user_id TEXT NOT NULL,
//	    value   SMALLINT NOT NULL CHECK (value IN (1, -1)),
//	    PRIMARY KEY (post_id, user_id)
//	);
//	CREATE TABLE comment_votes (
//	    comment_id UUID NOT NULL,
//	    user_id    TEXT NOT NULL,
//	    value      SMALLINT NOT NULL CHECK (value IN (1, -1)),
//	    PRIMARY KEY (comment_id, user_id)
//	);
//
// comments.parent_id deliberately has no foreign key: deleting a
// comment leaves its replies in place with a dangling parent reference
// (they drop out of assembled trees).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store backed by Postgres.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postCols = `id, author_id, title, body, community_id, created_at, comment_count, pinned_comment_id`
const commentCols = `id, post_id, parent_id, author_id, text, created_at, updated_at, reply_count`

func (s *PostgresStore) CreatePost(ctx context.Context, p Post) (Post, error) {
	const q = `INSERT INTO posts (author_id, title, body, community_id)
	           VALUES ($1, $2, $3, $4)
	           RETURNING ` + postCols
	row := s.pool.QueryRow(ctx, q, p.AuthorID, p.Title, p.Body, p.CommunityID)
	out, err := scanPost(row)
	if err != nil {
		return Post{}, mapPgError(err)
	}
	out.Upvotes, out.Downvotes = []string{}, []string{}
	return out, nil
}

func (s *PostgresStore) GetPost(ctx context.Context, postID string) (Post, error) {
	const q = `SELECT ` + postCols + ` FROM posts WHERE id = $1`
	p, err := scanPost(s.pool.QueryRow(ctx, q, postID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Post{}, ErrNotFound
		}
		return Post{}, mapPgError(err)
	}
	p.Upvotes, p.Downvotes, err = s.voterSets(ctx, s.pool, "post_votes", "post_id", p.ID)
	if err != nil {
		return Post{}, mapPgError(err)
	}
	return p, nil
}

func (s *PostgresStore) GetComment(ctx context.Context, commentID string) (Comment, error) {
	const q = `SELECT ` + commentCols + ` FROM comments WHERE id = $1`
	c, err := scanComment(s.pool.QueryRow(ctx, q, commentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Comment{}, ErrNotFound
		}
		return Comment{}, mapPgError(err)
	}
	c.Upvotes, c.Downvotes, err = s.voterSets(ctx, s.pool, "comment_votes", "comment_id", c.ID)
	if err != nil {
		return Comment{}, mapPgError(err)
	}
	return c, nil
}

func (s *PostgresStore) ListComments(ctx context.Context, postID string) ([]Comment, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM posts WHERE id = $1)`, postID).Scan(&exists); err != nil {
		return nil, mapPgError(err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	const q = `SELECT ` + commentCols + ` FROM comments WHERE post_id = $1 ORDER BY created_at ASC, id ASC`
	rows, err := s.pool.Query(ctx, q, postID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	out := make([]Comment, 0)
	index := make(map[string]int)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, mapPgError(err)
		}
		c.Upvotes, c.Downvotes = []string{}, []string{}
		index[c.ID] = len(out)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}

	const vq = `SELECT v.comment_id, v.user_id, v.value
	            FROM comment_votes v
	            JOIN comments c ON c.id = v.comment_id
	            WHERE c.post_id = $1
	            ORDER BY v.user_id ASC`
	vrows, err := s.pool.Query(ctx, vq, postID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer vrows.Close()
	for vrows.Next() {
		var commentID, userID string
		var value int16
		if err := vrows.Scan(&commentID, &userID, &value); err != nil {
			return nil, mapPgError(err)
		}
		i, ok := index[commentID]
		if !ok {
			continue
		}
		if value > 0 {
			out[i].Upvotes = append(out[i].Upvotes, userID)
		} else {
			out[i].Downvotes = append(out[i].Downvotes, userID)
		}
	}
	if err := vrows.Err(); err != nil {
		return nil, mapPgError(err)
	}
	return out, nil
}

func (s *PostgresStore) AddComment(ctx context.Context, c Comment) (Comment, error) {
	var out Comment
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if c.ParentID != nil {
			var parentPostID string
			err := tx.QueryRow(ctx, `SELECT post_id FROM comments WHERE id = $1 FOR UPDATE`, *c.ParentID).Scan(&parentPostID)
			if errors.Is(err, pgx.ErrNoRows) || (err == nil && parentPostID != c.PostID) {
				return ErrNotFound
			}
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `UPDATE comments SET reply_count = reply_count + 1 WHERE id = $1`, *c.ParentID); err != nil {
				return err
			}
		} else {
			tag, err := tx.Exec(ctx, `UPDATE posts SET comment_count = comment_count + 1 WHERE id = $1`, c.PostID)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return ErrNotFound
			}
		}

		const q = `INSERT INTO comments (post_id, parent_id, author_id, text)
		           VALUES ($1, $2, $3, $4)
		           RETURNING ` + commentCols
		var err error
		out, err = scanComment(tx.QueryRow(ctx, q, c.PostID, c.ParentID, c.AuthorID, c.Text))
		return err
	})
	if err != nil {
		return Comment{}, err
	}
	out.Upvotes, out.Downvotes = []string{}, []string{}
	return out, nil
}

func (s *PostgresStore) EditComment(ctx context.Context, commentID, authorID, text string) (Comment, error) {
	var out Comment
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var owner string
		err := tx.QueryRow(ctx, `SELECT author_id FROM comments WHERE id = $1 FOR UPDATE`, commentID).Scan(&owner)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if owner != authorID {
			return ErrPermissionDenied
		}
		const q = `UPDATE comments SET text = $1, updated_at = now()
		           WHERE id = $2
		           RETURNING ` + commentCols
		out, err = scanComment(tx.QueryRow(ctx, q, text, commentID))
		return err
	})
	if err != nil {
		return Comment{}, err
	}
	out.Upvotes, out.Downvotes, err = s.voterSets(ctx, s.pool, "comment_votes", "comment_id", out.ID)
	if err != nil {
		return Comment{}, mapPgError(err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteComment(ctx context.Context, postID, commentID, authorID string) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		var owner string
		var parentID *string
		err := tx.QueryRow(ctx,
			`SELECT author_id, parent_id FROM comments WHERE id = $1 AND post_id = $2 FOR UPDATE`,
			commentID, postID).Scan(&owner, &parentID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if owner != authorID {
			return ErrPermissionDenied
		}

		if _, err := tx.Exec(ctx, `DELETE FROM comment_votes WHERE comment_id = $1`, commentID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM comments WHERE id = $1`, commentID); err != nil {
			return err
		}

		if parentID != nil {
			// Zero rows is fine: the parent may already be gone.
			_, err = tx.Exec(ctx, `UPDATE comments SET reply_count = reply_count - 1 WHERE id = $1`, *parentID)
		} else {
			_, err = tx.Exec(ctx, `UPDATE posts SET comment_count = comment_count - 1 WHERE id = $1`, postID)
		}
		return err
	})
}

func (s *PostgresStore) DeletePost(ctx context.Context, postID, actorID string, moderator bool) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		var owner string
		err := tx.QueryRow(ctx, `SELECT author_id FROM posts WHERE id = $1 FOR UPDATE`, postID).Scan(&owner)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if owner != actorID && !moderator {
			return ErrPermissionDenied
		}

		const dropCommentVotes = `DELETE FROM comment_votes v USING comments c
		                          WHERE c.id = v.comment_id AND c.post_id = $1`
		if _, err := tx.Exec(ctx, dropCommentVotes, postID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM comments WHERE post_id = $1`, postID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM post_votes WHERE post_id = $1`, postID); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM posts WHERE id = $1`, postID)
		return err
	})
}

func (s *PostgresStore) CastVote(ctx context.Context, target VoteTarget, userID string, dir VoteDirection) (Tally, error) {
	table, fk := "comment_votes", "comment_id"
	entityTable := "comments"
	if target.Kind == TargetPost {
		table, fk = "post_votes", "post_id"
		entityTable = "posts"
	}
	want := int16(1)
	if dir == VoteDown {
		want = -1
	}

	var tally Tally
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx,
			fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)`, entityTable), target.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}

		var old int16
		err := tx.QueryRow(ctx,
			fmt.Sprintf(`SELECT value FROM %s WHERE %s = $1 AND user_id = $2 FOR UPDATE`, table, fk),
			target.ID, userID).Scan(&old)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			_, err = tx.Exec(ctx,
				fmt.Sprintf(`INSERT INTO %s (%s, user_id, value) VALUES ($1, $2, $3)`, table, fk),
				target.ID, userID, want)
		case err != nil:
			return err
		case old == want:
			// toggle off
			_, err = tx.Exec(ctx,
				fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND user_id = $2`, table, fk),
				target.ID, userID)
		default:
			// switch direction
			_, err = tx.Exec(ctx,
				fmt.Sprintf(`UPDATE %s SET value = $1 WHERE %s = $2 AND user_id = $3`, table, fk),
				want, target.ID, userID)
		}
		if err != nil {
			return err
		}

		up, down, err := s.voterSets(ctx, tx, table, fk, target.ID)
		if err != nil {
			return err
		}
		tally = Tally{Upvotes: up, Downvotes: down, Score: len(up) - len(down)}
		return nil
	})
	if err != nil {
		return Tally{}, err
	}
	return tally, nil
}

func (s *PostgresStore) SetPinnedComment(ctx context.Context, postID, authorID string, commentID *string) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		var owner string
		err := tx.QueryRow(ctx, `SELECT author_id FROM posts WHERE id = $1 FOR UPDATE`, postID).Scan(&owner)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if owner != authorID {
			return ErrPermissionDenied
		}
		_, err = tx.Exec(ctx, `UPDATE posts SET pinned_comment_id = $1 WHERE id = $2`, commentID, postID)
		return err
	})
}

// withTx runs fn inside a transaction, rolling back on error and
// translating backend commit failures into the store error taxonomy.
func (s *PostgresStore) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapPgError(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return mapPgError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapPgError(err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (Post, error) {
	var p Post
	err := row.Scan(&p.ID, &p.AuthorID, &p.Title, &p.Body, &p.CommunityID,
		&p.CreatedAt, &p.CommentCount, &p.PinnedCommentID)
	return p, err
}

func scanComment(row rowScanner) (Comment, error) {
	var c Comment
	err := row.Scan(&c.ID, &c.PostID, &c.ParentID, &c.AuthorID, &c.Text,
		&c.CreatedAt, &c.UpdatedAt, &c.ReplyCount)
	return c, err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *PostgresStore) voterSets(ctx context.Context, q querier, table, fk, entityID string) (up, down []string, err error) {
	rows, err := q.Query(ctx,
		fmt.Sprintf(`SELECT user_id, value FROM %s WHERE %s = $1 ORDER BY user_id ASC`, table, fk), entityID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	up, down = []string{}, []string{}
	for rows.Next() {
		var userID string
		var value int16
		if err := rows.Scan(&userID, &value); err != nil {
			return nil, nil, err
		}
		if value > 0 {
			up = append(up, userID)
		} else {
			down = append(down, userID)
		}
	}
	return up, down, rows.Err()
}

// mapPgError folds retryable backend failures into ErrConflict:
// serialization failures, deadlocks, and the unique-key race two
// first-time voters can hit on the same (entity, user) row.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "23505":
			return fmt.Errorf("%s: %w", pgErr.Code, ErrConflict)
		}
	}
	return err
}
