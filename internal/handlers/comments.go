package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/threadvote/backend/internal/middleware"
	"github.com/emilythestrangee/threadvote/backend/internal/models"
)

type CommentHandler struct {
	comments CommentService
}

func NewCommentHandler(comments CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

// GetComments returns the comment forest of a post
func (h *CommentHandler) GetComments(c *gin.Context) {
	postID, ok := idParam(c, "id")
	if !ok {
		return
	}

	tree, err := h.comments.Tree(c.Request.Context(), middleware.ActorID(c), postID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tree)
}

// CreateComment adds a comment or reply to a post
func (h *CommentHandler) CreateComment(c *gin.Context) {
	postID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var input models.CreateCommentRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Comment content is required"})
		return
	}

	node, err := h.comments.Create(c.Request.Context(), middleware.ActorID(c), postID, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, node)
}

// UpdateComment updates a comment (owner only)
func (h *CommentHandler) UpdateComment(c *gin.Context) {
	commentID, ok := idParam(c, "commentId")
	if !ok {
		return
	}

	var input models.UpdateCommentRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Comment content is required"})
		return
	}

	node, err := h.comments.Edit(c.Request.Context(), middleware.ActorID(c), commentID, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, node)
}

// DeleteComment soft-deletes a comment (owner only)
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	commentID, ok := idParam(c, "commentId")
	if !ok {
		return
	}

	if err := h.comments.Delete(c.Request.Context(), middleware.ActorID(c), commentID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}
