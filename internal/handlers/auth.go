package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/emilythestrangee/threadvote/backend/internal/middleware"
	"github.com/emilythestrangee/threadvote/backend/internal/models"
)

// AuthHandler is the identity collaborator: it registers users and issues the
// tokens the rest of the API reads the acting user from.
type AuthHandler struct {
	db     *gorm.DB
	secret []byte
	ttl    time.Duration
	log    *zap.Logger
}

func NewAuthHandler(db *gorm.DB, secret []byte, ttl time.Duration, log *zap.Logger) *AuthHandler {
	return &AuthHandler{db: db, secret: secret, ttl: ttl, log: log}
}

// Register handles user registration
func (h *AuthHandler) Register(c *gin.Context) {
	var input models.RegisterRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))

	var existing models.User
	err := h.db.WithContext(c.Request.Context()).
		Where("username = ? OR email = ?", input.Username, input.Email).
		First(&existing).Error
	if err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username or email already exists"})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, err)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	user := models.User{
		Username: input.Username,
		Email:    input.Email,
		Password: string(hashed),
		Avatar:   input.Avatar,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		h.log.Error("create user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	token, err := middleware.IssueToken(h.secret, user.ID, h.ttl)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	h.log.Info("user registered", zap.Int("user_id", user.ID))
	c.JSON(http.StatusCreated, models.AuthResponse{
		Token:   token,
		User:    user,
		Message: "User registered successfully",
	})
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var input models.LoginRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if err := h.db.WithContext(c.Request.Context()).Where("email = ?", email).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := middleware.IssueToken(h.secret, user.ID, h.ttl)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, models.AuthResponse{
		Token:   token,
		User:    user,
		Message: "Login successful",
	})
}

// GetMe returns the authenticated user
func (h *AuthHandler) GetMe(c *gin.Context) {
	var user models.User
	if err := h.db.WithContext(c.Request.Context()).First(&user, middleware.ActorID(c)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}
