package models

import "time"

// DeletedMarker replaces the content of a soft-deleted post or comment.
const DeletedMarker = "[deleted]"

type Comment struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	Content   string    `gorm:"not null" json:"content"`
	PostID    int       `gorm:"not null;index:idx_comments_post_parent" json:"post_id"`
	AuthorID  int       `gorm:"not null;index" json:"author_id"`
	Author    User      `gorm:"foreignKey:AuthorID" json:"-"`
	ParentID  *int      `gorm:"index:idx_comments_post_parent" json:"parent_id,omitempty"`
	Depth     int       `gorm:"not null;default:0;check:chk_comments_depth,depth >= 0" json:"depth"`
	Score     int       `gorm:"not null;default:0" json:"score"`
	IsDeleted bool      `gorm:"not null;default:false" json:"is_deleted"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateCommentRequest struct {
	Content  string `json:"content" binding:"required"`
	ParentID *int   `json:"parentId"`
}

type UpdateCommentRequest struct {
	Content string `json:"content" binding:"required"`
}
