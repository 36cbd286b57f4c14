package store

import (
	"testing"
	"time"
)

func mkComment(id string, parentID *string, at time.Time) Comment {
	return Comment{ID: id, PostID: "post-1", ParentID: parentID, AuthorID: "user-a", Text: id, CreatedAt: at}
}

func TestBuildThread_ForestShape(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r1 := mkComment("r1", nil, t0)
	r2 := mkComment("r2", nil, t0.Add(time.Minute))
	c1 := mkComment("c1", &r1.ID, t0.Add(2*time.Minute))
	c2 := mkComment("c2", &r1.ID, t0.Add(3*time.Minute))
	g1 := mkComment("g1", &c1.ID, t0.Add(4*time.Minute))

	// Input order must not matter.
	nodes := BuildThread([]Comment{g1, c2, r2, c1, r1})
	if len(nodes) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(nodes))
	}
	if nodes[0].Comment.ID != "r1" || nodes[1].Comment.ID != "r2" {
		t.Fatalf("expected oldest-first roots, got %s, %s", nodes[0].Comment.ID, nodes[1].Comment.ID)
	}
	if len(nodes[0].Replies) != 2 {
		t.Fatalf("expected 2 replies under r1, got %d", len(nodes[0].Replies))
	}
	if nodes[0].Replies[0].Comment.ID != "c1" {
		t.Fatalf("expected c1 first, got %s", nodes[0].Replies[0].Comment.ID)
	}
	if len(nodes[0].Replies[0].Replies) != 1 || nodes[0].Replies[0].Replies[0].Comment.ID != "g1" {
		t.Fatal("expected g1 nested under c1")
	}
}

func TestBuildThread_OrphanSubtreeDropped(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r1 := mkComment("r1", nil, t0)
	gone := "deleted-parent"
	orphan := mkComment("orphan", &gone, t0.Add(time.Minute))
	orphanChild := mkComment("orphan-child", &orphan.ID, t0.Add(2*time.Minute))

	nodes := BuildThread([]Comment{r1, orphan, orphanChild})
	if len(nodes) != 1 || nodes[0].Comment.ID != "r1" {
		t.Fatalf("expected only r1 rendered, got %d roots", len(nodes))
	}
	if _, ok := findNode(nodes, "orphan"); ok {
		t.Fatal("orphan must not be reachable")
	}
	if _, ok := findNode(nodes, "orphan-child"); ok {
		t.Fatal("orphan's subtree must not be reachable")
	}
}

func TestBuildThread_Empty(t *testing.T) {
	if nodes := BuildThread(nil); len(nodes) != 0 {
		t.Fatalf("expected empty forest, got %d", len(nodes))
	}
}

func TestFindPinned(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r1 := mkComment("r1", nil, t0)
	c1 := mkComment("c1", &r1.ID, t0.Add(time.Minute))
	nodes := BuildThread([]Comment{r1, c1})

	pin := "c1"
	node, ok := FindPinned(Post{PinnedCommentID: &pin}, nodes)
	if !ok || node.Comment.ID != "c1" {
		t.Fatalf("expected to resolve nested pin, got ok=%v", ok)
	}

	stale := "gone"
	if _, ok := FindPinned(Post{PinnedCommentID: &stale}, nodes); ok {
		t.Fatal("stale pin must not resolve")
	}
	if _, ok := FindPinned(Post{}, nodes); ok {
		t.Fatal("nil pin must not resolve")
	}
}
