package models

import "time"

type Post struct {
	ID           int       `gorm:"primaryKey" json:"id"`
	Title        string    `gorm:"not null" json:"title"`
	Content      string    `json:"content"`
	Image        string    `json:"image"`
	Community    string    `gorm:"index" json:"community"`
	AuthorID     int       `gorm:"not null;index" json:"author_id"`
	Author       User      `gorm:"foreignKey:AuthorID" json:"-"`
	Score        int       `gorm:"not null;default:0" json:"score"`
	CommentCount int       `gorm:"not null;default:0" json:"comment_count"`
	IsDeleted    bool      `gorm:"not null;default:false" json:"is_deleted"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type CreatePostRequest struct {
	Title     string `json:"title" binding:"required,max=300"`
	Content   string `json:"content"`
	Image     string `json:"image"`
	Community string `json:"community"`
}

type UpdatePostRequest struct {
	Title   string `json:"title" binding:"max=300"`
	Content string `json:"content"`
}
