package comments

import (
	"cmp"
	"slices"
	"time"

	"github.com/emilythestrangee/threadvote/backend/internal/models"
)

// Node is one comment as presented to clients, with its replies nested.
type Node struct {
	ID              int       `json:"id"`
	Content         string    `json:"content"`
	VoteCount       int       `json:"voteCount"`
	Depth           int       `json:"depth"`
	AuthorID        *int      `json:"authorId"`
	AuthorUsername  string    `json:"authorUsername"`
	AuthorAvatarURL *string   `json:"authorAvatarUrl"`
	PostID          int       `json:"postId"`
	ParentID        *int      `json:"parentId"`
	UserVote        int       `json:"userVote"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	// MoreReplies counts direct replies left out because the thread hit the
	// render depth limit.
	MoreReplies int     `json:"moreReplies,omitempty"`
	Children    []*Node `json:"children"`
}

// NewNode maps a stored comment to its outward form, masking the content
// and author of deleted comments. c.Author must be loaded.
func NewNode(c models.Comment, userVote int) *Node {
	n := &Node{
		ID:        c.ID,
		Content:   c.Content,
		VoteCount: c.Score,
		Depth:     c.Depth,
		PostID:    c.PostID,
		ParentID:  c.ParentID,
		UserVote:  userVote,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		Children:  []*Node{},
	}

	if c.IsDeleted {
		n.Content = models.DeletedMarker
		n.AuthorUsername = models.DeletedMarker
		return n
	}

	authorID := c.AuthorID
	n.AuthorID = &authorID
	n.AuthorUsername = c.Author.Username
	if c.Author.Avatar != "" {
		avatar := c.Author.Avatar
		n.AuthorAvatarURL = &avatar
	}
	return n
}

// BuildForest assembles the flat comment set of one post into root nodes
// with nested replies, newest first at every level. Deleted comments stay in
// place, masked, so their replies keep a parent. Comments not reachable from
// a root are dropped. Threads deeper than maxDepth levels are cut and the
// cut node reports how many replies it is hiding.
//
// The build is iterative so arbitrarily deep threads cannot exhaust the
// stack.
func BuildForest(flat []models.Comment, userVotes map[int]int, maxDepth int) []*Node {
	nodes := make(map[int]*Node, len(flat))
	replies := make(map[int][]*Node)
	roots := []*Node{}

	for _, c := range flat {
		n := NewNode(c, userVotes[c.ID])
		nodes[c.ID] = n
		if c.ParentID == nil {
			roots = append(roots, n)
		} else {
			replies[*c.ParentID] = append(replies[*c.ParentID], n)
		}
	}

	newestFirst := func(a, b *Node) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	}
	slices.SortFunc(roots, newestFirst)

	type frame struct {
		node  *Node
		level int
	}
	stack := make([]frame, 0, len(roots))
	for _, r := range roots {
		stack = append(stack, frame{node: r})
	}
	visited := make(map[int]bool, len(nodes))

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[f.node.ID] {
			continue
		}
		visited[f.node.ID] = true

		kids := replies[f.node.ID]
		if len(kids) == 0 {
			continue
		}
		if maxDepth > 0 && f.level+1 >= maxDepth {
			f.node.MoreReplies = len(kids)
			continue
		}

		slices.SortFunc(kids, newestFirst)
		for _, k := range kids {
			if visited[k.ID] {
				continue
			}
			f.node.Children = append(f.node.Children, k)
			stack = append(stack, frame{node: k, level: f.level + 1})
		}
	}
	return roots
}
