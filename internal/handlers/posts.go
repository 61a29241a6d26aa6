package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/threadvote/backend/internal/middleware"
	"github.com/emilythestrangee/threadvote/backend/internal/models"
)

type PostHandler struct {
	posts PostService
}

func NewPostHandler(posts PostService) *PostHandler {
	return &PostHandler{posts: posts}
}

// GetPosts returns live posts, newest first
func (h *PostHandler) GetPosts(c *gin.Context) {
	page, size := pageQuery(c)
	list, err := h.posts.List(c.Request.Context(), middleware.ActorID(c), c.Query("community"), page, size)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GetPost returns a single post by ID
func (h *PostHandler) GetPost(c *gin.Context) {
	postID, ok := idParam(c, "id")
	if !ok {
		return
	}
	post, err := h.posts.Get(c.Request.Context(), middleware.ActorID(c), postID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// CreatePost creates a new post (PROTECTED - requires authentication)
func (h *PostHandler) CreatePost(c *gin.Context) {
	var input models.CreatePostRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required"})
		return
	}

	post, err := h.posts.Create(c.Request.Context(), middleware.ActorID(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// UpdatePost updates an existing post (PROTECTED - requires ownership)
func (h *PostHandler) UpdatePost(c *gin.Context) {
	postID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var input models.UpdatePostRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post, err := h.posts.Update(c.Request.Context(), middleware.ActorID(c), postID, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// DeletePost soft-deletes a post (PROTECTED - requires ownership)
func (h *PostHandler) DeletePost(c *gin.Context) {
	postID, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := h.posts.Delete(c.Request.Context(), middleware.ActorID(c), postID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}
