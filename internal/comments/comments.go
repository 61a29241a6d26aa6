// Package comments stores threaded comments on posts and assembles them into
// a forest for display.
package comments

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/emilythestrangee/threadvote/backend/internal/apperr"
	"github.com/emilythestrangee/threadvote/backend/internal/models"
	"github.com/emilythestrangee/threadvote/backend/internal/votes"
)

// Store is the persistence the comment service needs. Get returns
// apperr.ErrNotFound for unknown ids; deleted comments are returned with
// IsDeleted set.
type Store interface {
	LivePost(ctx context.Context, postID int) (bool, error)
	Get(ctx context.Context, id int) (models.Comment, error)
	// Create inserts c and recounts the post's live comments in the same
	// transaction. c.ID and timestamps are filled in; c.Author is loaded.
	Create(ctx context.Context, c *models.Comment) error
	UpdateContent(ctx context.Context, id int, content string) (models.Comment, error)
	// SoftDelete flags the comment, overwrites its content with the deletion
	// marker and recounts the post's live comments.
	SoftDelete(ctx context.Context, id int) error
	ListByPost(ctx context.Context, postID int) ([]models.Comment, error)
	ListByAuthor(ctx context.Context, authorID, offset, limit int) ([]models.Comment, int64, error)
}

// VoteReader reports a caller's standing votes.
type VoteReader interface {
	UserVotes(ctx context.Context, voterID int, kind votes.Kind, ids []int) (map[int]int, error)
}

type Service struct {
	store    Store
	votes    VoteReader
	maxDepth int
	log      *zap.Logger

	created prometheus.Counter
	deleted prometheus.Counter
}

type Option func(*Service)

// WithCounters counts created and deleted comments.
func WithCounters(created, deleted prometheus.Counter) Option {
	return func(s *Service) {
		s.created = created
		s.deleted = deleted
	}
}

// NewService returns a comment service. maxDepth bounds how many levels a
// rendered thread may have; zero means unbounded.
func NewService(store Store, reader VoteReader, maxDepth int, log *zap.Logger, opts ...Option) *Service {
	s := &Service{store: store, votes: reader, maxDepth: maxDepth, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create adds a comment to postID. A reply's depth is its parent's plus one
// and never changes afterwards.
func (s *Service) Create(ctx context.Context, actorID, postID int, req models.CreateCommentRequest) (*Node, error) {
	if actorID <= 0 {
		return nil, apperr.Unauthorized("User not authenticated")
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apperr.Invalid("Comment content is required")
	}

	live, err := s.store.LivePost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("load post %d: %w", postID, err)
	}
	if !live {
		return nil, apperr.NotFound("Post", postID)
	}

	c := models.Comment{Content: content, PostID: postID, AuthorID: actorID}
	if req.ParentID != nil {
		parent, err := s.store.Get(ctx, *req.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.IsDeleted {
			return nil, apperr.NotFound("Comment", parent.ID)
		}
		if parent.PostID != postID {
			return nil, apperr.Invalid("Parent comment %d belongs to another post", parent.ID)
		}
		parentID := parent.ID
		c.ParentID = &parentID
		c.Depth = parent.Depth + 1
	}

	if err := s.store.Create(ctx, &c); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	if s.created != nil {
		s.created.Inc()
	}
	s.log.Info("comment created",
		zap.Int("comment_id", c.ID),
		zap.Int("post_id", postID),
		zap.Int("depth", c.Depth),
	)
	return NewNode(c, 0), nil
}

// Tree returns the comment forest of postID as seen by viewerID (zero for
// anonymous viewers).
func (s *Service) Tree(ctx context.Context, viewerID, postID int) ([]*Node, error) {
	flat, err := s.store.ListByPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("list comments of post %d: %w", postID, err)
	}

	userVotes, err := s.userVotes(ctx, viewerID, flat)
	if err != nil {
		return nil, err
	}
	return BuildForest(flat, userVotes, s.maxDepth), nil
}

// Edit replaces the content of actorID's own comment.
func (s *Service) Edit(ctx context.Context, actorID, commentID int, req models.UpdateCommentRequest) (*Node, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apperr.Invalid("Comment content is required")
	}
	if _, err := s.owned(ctx, actorID, commentID, "You can only edit your own comments"); err != nil {
		return nil, err
	}

	c, err := s.store.UpdateContent(ctx, commentID, content)
	if err != nil {
		return nil, fmt.Errorf("update comment %d: %w", commentID, err)
	}

	userVotes, err := s.userVotes(ctx, actorID, []models.Comment{c})
	if err != nil {
		return nil, err
	}
	return NewNode(c, userVotes[c.ID]), nil
}

// Delete soft-deletes actorID's own comment. The row, its replies and its
// votes stay.
func (s *Service) Delete(ctx context.Context, actorID, commentID int) error {
	if _, err := s.owned(ctx, actorID, commentID, "You can only delete your own comments"); err != nil {
		return err
	}
	if err := s.store.SoftDelete(ctx, commentID); err != nil {
		return fmt.Errorf("delete comment %d: %w", commentID, err)
	}
	if s.deleted != nil {
		s.deleted.Inc()
	}
	s.log.Info("comment deleted", zap.Int("comment_id", commentID), zap.Int("actor_id", actorID))
	return nil
}

// Page is one page of a user's comments.
type Page struct {
	Items []*Node `json:"items"`
	Page  int     `json:"page"`
	Size  int     `json:"size"`
	Total int64   `json:"total"`
}

// ByAuthor pages through authorID's live comments, newest first.
func (s *Service) ByAuthor(ctx context.Context, viewerID, authorID, page, size int) (Page, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 || size > 100 {
		size = 20
	}

	list, total, err := s.store.ListByAuthor(ctx, authorID, page*size, size)
	if err != nil {
		return Page{}, fmt.Errorf("list comments of user %d: %w", authorID, err)
	}

	userVotes, err := s.userVotes(ctx, viewerID, list)
	if err != nil {
		return Page{}, err
	}

	items := make([]*Node, 0, len(list))
	for _, c := range list {
		items = append(items, NewNode(c, userVotes[c.ID]))
	}
	return Page{Items: items, Page: page, Size: size, Total: total}, nil
}

func (s *Service) owned(ctx context.Context, actorID, commentID int, denied string) (models.Comment, error) {
	if actorID <= 0 {
		return models.Comment{}, apperr.Unauthorized("User not authenticated")
	}
	c, err := s.store.Get(ctx, commentID)
	if err != nil {
		return models.Comment{}, err
	}
	if c.IsDeleted {
		return models.Comment{}, apperr.NotFound("Comment", commentID)
	}
	if c.AuthorID != actorID {
		return models.Comment{}, apperr.Forbidden(denied)
	}
	return c, nil
}

func (s *Service) userVotes(ctx context.Context, viewerID int, list []models.Comment) (map[int]int, error) {
	if viewerID <= 0 || len(list) == 0 {
		return map[int]int{}, nil
	}
	ids := make([]int, len(list))
	for i, c := range list {
		ids[i] = c.ID
	}
	out, err := s.votes.UserVotes(ctx, viewerID, votes.KindComment, ids)
	if err != nil {
		return nil, fmt.Errorf("load comment votes: %w", err)
	}
	return out, nil
}
