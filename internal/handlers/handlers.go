package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/emilythestrangee/threadvote/backend/internal/apperr"
	"github.com/emilythestrangee/threadvote/backend/internal/comments"
	"github.com/emilythestrangee/threadvote/backend/internal/models"
	"github.com/emilythestrangee/threadvote/backend/internal/posts"
)

// VoteService casts votes.
type VoteService interface {
	Handle(ctx context.Context, voterID int, req models.VoteRequest) (models.VoteResponse, error)
}

// CommentService manages comment threads.
type CommentService interface {
	Create(ctx context.Context, actorID, postID int, req models.CreateCommentRequest) (*comments.Node, error)
	Tree(ctx context.Context, viewerID, postID int) ([]*comments.Node, error)
	Edit(ctx context.Context, actorID, commentID int, req models.UpdateCommentRequest) (*comments.Node, error)
	Delete(ctx context.Context, actorID, commentID int) error
	ByAuthor(ctx context.Context, viewerID, authorID, page, size int) (comments.Page, error)
}

// PostService manages posts.
type PostService interface {
	Create(ctx context.Context, actorID int, req models.CreatePostRequest) (posts.View, error)
	Get(ctx context.Context, viewerID, postID int) (posts.View, error)
	List(ctx context.Context, viewerID int, community string, page, size int) ([]posts.View, error)
	Update(ctx context.Context, actorID, postID int, req models.UpdatePostRequest) (posts.View, error)
	Delete(ctx context.Context, actorID, postID int) error
}

// Deps is everything the handlers are built from.
type Deps struct {
	DB        *gorm.DB
	Votes     VoteService
	Comments  CommentService
	Posts     PostService
	JWTSecret []byte
	JWTTTL    time.Duration
	Log       *zap.Logger
}

// Handler combines all handler types
type Handler struct {
	Auth    *AuthHandler
	Post    *PostHandler
	Comment *CommentHandler
	User    *UserHandler
	Vote    *VoteHandler
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(d Deps) *Handler {
	return &Handler{
		Auth:    NewAuthHandler(d.DB, d.JWTSecret, d.JWTTTL, d.Log),
		Post:    NewPostHandler(d.Posts),
		Comment: NewCommentHandler(d.Comments),
		User:    NewUserHandler(d.DB, d.Comments),
		Vote:    NewVoteHandler(d.Votes),
	}
}

// respondError writes err as {"error": msg} with the status its kind maps to.
func respondError(c *gin.Context, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": apperr.Message(err)})
}

func idParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

func pageQuery(c *gin.Context) (page, size int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ = strconv.Atoi(c.DefaultQuery("size", "0"))
	return page, size
}
