package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emilythestrangee/threadvote/backend/internal/apperr"
	"github.com/emilythestrangee/threadvote/backend/internal/middleware"
	"github.com/emilythestrangee/threadvote/backend/internal/models"
)

type UserHandler struct {
	db       *gorm.DB
	comments CommentService
}

func NewUserHandler(db *gorm.DB, comments CommentService) *UserHandler {
	return &UserHandler{db: db, comments: comments}
}

// GetUserProfile returns a user's public profile, karma included
func (h *UserHandler) GetUserProfile(c *gin.Context) {
	userID, ok := idParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var user models.User
	if err := h.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = apperr.NotFound("User", userID)
		}
		respondError(c, err)
		return
	}

	var postCount, commentCount int64
	err := h.db.WithContext(ctx).Model(&models.Post{}).
		Where("author_id = ? AND is_deleted = ?", userID, false).Count(&postCount).Error
	if err != nil {
		respondError(c, err)
		return
	}
	err = h.db.WithContext(ctx).Model(&models.Comment{}).
		Where("author_id = ? AND is_deleted = ?", userID, false).Count(&commentCount).Error
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":            user.ID,
		"username":      user.Username,
		"bio":           user.Bio,
		"avatar":        user.Avatar,
		"karma":         user.Karma,
		"post_count":    postCount,
		"comment_count": commentCount,
		"created_at":    user.CreatedAt,
	})
}

// UpdateUserProfile changes the caller's own bio and avatar
func (h *UserHandler) UpdateUserProfile(c *gin.Context) {
	userID, ok := idParam(c, "id")
	if !ok {
		return
	}
	if userID != middleware.ActorID(c) {
		respondError(c, apperr.Forbidden("You can only update your own profile"))
		return
	}

	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updates := map[string]any{}
	if req.Bio != nil {
		updates["bio"] = strings.TrimSpace(*req.Bio)
	}
	if req.Avatar != nil {
		updates["avatar"] = strings.TrimSpace(*req.Avatar)
	}
	if len(updates) == 0 {
		respondError(c, apperr.Invalid("Nothing to update"))
		return
	}

	ctx := c.Request.Context()
	res := h.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(updates)
	if res.Error != nil {
		respondError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		respondError(c, apperr.NotFound("User", userID))
		return
	}

	var user models.User
	if err := h.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// GetUserComments pages through a user's live comments
func (h *UserHandler) GetUserComments(c *gin.Context) {
	userID, ok := idParam(c, "id")
	if !ok {
		return
	}

	page, size := pageQuery(c)
	result, err := h.comments.ByAuthor(c.Request.Context(), middleware.ActorID(c), userID, page, size)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
