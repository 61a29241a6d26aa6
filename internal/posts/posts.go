// Package posts is the post collaborator the vote ledger and comment threads
// hang off: create, read, edit and soft-delete.
package posts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/emilythestrangee/threadvote/backend/internal/apperr"
	"github.com/emilythestrangee/threadvote/backend/internal/models"
	"github.com/emilythestrangee/threadvote/backend/internal/votes"
)

// View is a post as presented to clients.
type View struct {
	ID             int       `json:"id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	Image          string    `json:"image,omitempty"`
	Community      string    `json:"community,omitempty"`
	VoteCount      int       `json:"voteCount"`
	CommentCount   int       `json:"commentCount"`
	AuthorID       *int      `json:"authorId"`
	AuthorUsername string    `json:"authorUsername"`
	UserVote       int       `json:"userVote"`
	IsDeleted      bool      `json:"isDeleted"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func newView(p models.Post, userVote int) View {
	v := View{
		ID:           p.ID,
		Title:        p.Title,
		Content:      p.Content,
		Image:        p.Image,
		Community:    p.Community,
		VoteCount:    p.Score,
		CommentCount: p.CommentCount,
		UserVote:     userVote,
		IsDeleted:    p.IsDeleted,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	if p.IsDeleted {
		v.Content = models.DeletedMarker
		v.Image = ""
		v.AuthorUsername = models.DeletedMarker
		return v
	}
	authorID := p.AuthorID
	v.AuthorID = &authorID
	v.AuthorUsername = p.Author.Username
	return v
}

type VoteReader interface {
	UserVotes(ctx context.Context, voterID int, kind votes.Kind, ids []int) (map[int]int, error)
}

type Service struct {
	db    *gorm.DB
	votes VoteReader
	log   *zap.Logger
}

func NewService(db *gorm.DB, reader VoteReader, log *zap.Logger) *Service {
	return &Service{db: db, votes: reader, log: log}
}

// Create stores a new post with a zero score.
func (s *Service) Create(ctx context.Context, actorID int, req models.CreatePostRequest) (View, error) {
	if actorID <= 0 {
		return View{}, apperr.Unauthorized("User not authenticated")
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return View{}, apperr.Invalid("Title is required")
	}

	p := models.Post{
		Title:     title,
		Content:   req.Content,
		Image:     req.Image,
		Community: strings.TrimSpace(req.Community),
		AuthorID:  actorID,
	}
	if err := s.db.WithContext(ctx).Omit("Author").Create(&p).Error; err != nil {
		return View{}, fmt.Errorf("create post: %w", err)
	}
	s.log.Info("post created", zap.Int("post_id", p.ID), zap.Int("author_id", actorID))
	return s.Get(ctx, actorID, p.ID)
}

// Get returns one post, deleted posts included in masked form.
func (s *Service) Get(ctx context.Context, viewerID, postID int) (View, error) {
	p, err := s.load(ctx, postID)
	if err != nil {
		return View{}, err
	}
	userVotes, err := s.userVotes(ctx, viewerID, []models.Post{p})
	if err != nil {
		return View{}, err
	}
	return newView(p, userVotes[p.ID]), nil
}

// List returns live posts newest first, optionally filtered by community.
func (s *Service) List(ctx context.Context, viewerID int, community string, page, size int) ([]View, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 || size > 100 {
		size = 25
	}

	q := s.db.WithContext(ctx).Preload("Author").Where("is_deleted = ?", false)
	if community != "" {
		q = q.Where("community = ?", community)
	}

	var list []models.Post
	err := q.Order("created_at DESC, id DESC").Offset(page * size).Limit(size).Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	userVotes, err := s.userVotes(ctx, viewerID, list)
	if err != nil {
		return nil, err
	}
	views := make([]View, 0, len(list))
	for _, p := range list {
		views = append(views, newView(p, userVotes[p.ID]))
	}
	return views, nil
}

// Update edits title and/or content of the actor's own post.
func (s *Service) Update(ctx context.Context, actorID, postID int, req models.UpdatePostRequest) (View, error) {
	p, err := s.owned(ctx, actorID, postID, "You can only edit your own posts")
	if err != nil {
		return View{}, err
	}

	changes := map[string]any{}
	if t := strings.TrimSpace(req.Title); t != "" {
		changes["title"] = t
	}
	if req.Content != "" {
		changes["content"] = req.Content
	}
	if len(changes) == 0 {
		return View{}, apperr.Invalid("Nothing to update")
	}

	if err := s.db.WithContext(ctx).Model(&p).Updates(changes).Error; err != nil {
		return View{}, fmt.Errorf("update post %d: %w", postID, err)
	}
	return s.Get(ctx, actorID, postID)
}

// Delete soft-deletes the actor's own post. Its votes, score and comments
// stay.
func (s *Service) Delete(ctx context.Context, actorID, postID int) error {
	p, err := s.owned(ctx, actorID, postID, "You can only delete your own posts")
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Model(&p).Updates(map[string]any{
		"is_deleted": true,
		"content":    models.DeletedMarker,
	}).Error
	if err != nil {
		return fmt.Errorf("delete post %d: %w", postID, err)
	}
	s.log.Info("post deleted", zap.Int("post_id", postID), zap.Int("actor_id", actorID))
	return nil
}

func (s *Service) load(ctx context.Context, postID int) (models.Post, error) {
	var p models.Post
	err := s.db.WithContext(ctx).Preload("Author").First(&p, postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p, apperr.NotFound("Post", postID)
	}
	if err != nil {
		return p, fmt.Errorf("load post %d: %w", postID, err)
	}
	return p, nil
}

func (s *Service) owned(ctx context.Context, actorID, postID int, denied string) (models.Post, error) {
	if actorID <= 0 {
		return models.Post{}, apperr.Unauthorized("User not authenticated")
	}
	p, err := s.load(ctx, postID)
	if err != nil {
		return p, err
	}
	if p.IsDeleted {
		return p, apperr.NotFound("Post", postID)
	}
	if p.AuthorID != actorID {
		return p, apperr.Forbidden(denied)
	}
	return p, nil
}

func (s *Service) userVotes(ctx context.Context, viewerID int, list []models.Post) (map[int]int, error) {
	if viewerID <= 0 || len(list) == 0 {
		return map[int]int{}, nil
	}
	ids := make([]int, len(list))
	for i, p := range list {
		ids[i] = p.ID
	}
	out, err := s.votes.UserVotes(ctx, viewerID, votes.KindPost, ids)
	if err != nil {
		return nil, fmt.Errorf("load post votes: %w", err)
	}
	return out, nil
}
