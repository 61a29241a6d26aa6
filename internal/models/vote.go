package models

import "time"

// Vote is one user's standing vote on exactly one post or comment. No row
// means no vote; the unique indexes keep it to one row per user per target.
type Vote struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	UserID    int       `gorm:"not null;uniqueIndex:idx_votes_user_post;uniqueIndex:idx_votes_user_comment" json:"user_id"`
	PostID    *int      `gorm:"uniqueIndex:idx_votes_user_post;index;check:chk_votes_one_target,(post_id IS NULL) <> (comment_id IS NULL)" json:"post_id,omitempty"`
	CommentID *int      `gorm:"uniqueIndex:idx_votes_user_comment;index" json:"comment_id,omitempty"`
	VoteType  int16     `gorm:"not null;check:chk_votes_type,vote_type IN (-1, 1)" json:"vote_type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type VoteRequest struct {
	VoteType  int  `json:"voteType" binding:"required"`
	PostID    *int `json:"postId"`
	CommentID *int `json:"commentId"`
}

type VoteResponse struct {
	EntityID   int    `json:"entityId"`
	EntityType string `json:"entityType"`
	VoteCount  int    `json:"voteCount"`
	UserVote   int    `json:"userVote"`
}
