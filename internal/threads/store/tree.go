package store

import "sort"

// BuildThread assembles the display forest from a post's flat comment
// set. Children are grouped by parent id in a single pass and attached
// depth-first under the top-level comments, oldest first at every
// level. A comment whose parent id no longer resolves is unreachable
// from any root and is dropped along with its subtree.
func BuildThread(comments []Comment) []ThreadNode {
	byParent := make(map[string][]Comment)
	var roots []Comment
	for _, c := range comments {
		if c.ParentID == nil {
			roots = append(roots, c)
			continue
		}
		byParent[*c.ParentID] = append(byParent[*c.ParentID], c)
	}

	sortByAge(roots)
	nodes := make([]ThreadNode, len(roots))
	for i, r := range roots {
		nodes[i] = buildSubtree(r, byParent)
	}
	return nodes
}

func buildSubtree(c Comment, byParent map[string][]Comment) ThreadNode {
	children := byParent[c.ID]
	sortByAge(children)
	node := ThreadNode{Comment: c, Replies: make([]ThreadNode, len(children))}
	for i, child := range children {
		node.Replies[i] = buildSubtree(child, byParent)
	}
	return node
}

func sortByAge(cs []Comment) {
	sort.Slice(cs, func(i, j int) bool {
		if !cs[i].CreatedAt.Equal(cs[j].CreatedAt) {
			return cs[i].CreatedAt.Before(cs[j].CreatedAt)
		}
		return cs[i].ID < cs[j].ID
	})
}

// FindPinned resolves a post's pinned comment against the assembled
// forest. Returns false when nothing is pinned or the reference is
// stale (deleted or orphaned comment).
func FindPinned(post Post, nodes []ThreadNode) (ThreadNode, bool) {
	if post.PinnedCommentID == nil {
		return ThreadNode{}, false
	}
	return findNode(nodes, *post.PinnedCommentID)
}

func findNode(nodes []ThreadNode, id string) (ThreadNode, bool) {
	for _, n := range nodes {
		if n.Comment.ID == id {
			return n, true
		}
		if found, ok := findNode(n.Replies, id); ok {
			return found, true
		}
	}
	return ThreadNode{}, false
}
