package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/threadvote/backend/internal/middleware"
	"github.com/emilythestrangee/threadvote/backend/internal/models"
)

type VoteHandler struct {
	votes VoteService
}

func NewVoteHandler(votes VoteService) *VoteHandler {
	return &VoteHandler{votes: votes}
}

// Vote casts, switches or withdraws the caller's vote on a post or comment
func (h *VoteHandler) Vote(c *gin.Context) {
	var input models.VoteRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Vote type must be -1 or 1"})
		return
	}

	resp, err := h.votes.Handle(c.Request.Context(), middleware.ActorID(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
