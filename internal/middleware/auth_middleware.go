package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/emilythestrangee/threadvote/backend/internal/logger"
)

// Claims is the JWT payload issued at login.
type Claims struct {
	UserID int `json:"user_id"`
	jwt.RegisteredClaims
}

// IssueToken signs a token for userID valid for ttl.
func IssueToken(secret []byte, userID int, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken verifies raw and returns the user id it was issued for.
func ParseToken(secret []byte, raw string) (int, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return 0, err
	}
	if claims.UserID <= 0 {
		return 0, errors.New("token carries no user")
	}
	return claims.UserID, nil
}

func bearer(c *gin.Context) (string, bool) {
	h := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// AuthMiddleware rejects requests without a valid bearer token and stores the
// caller's id under "user_id".
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearer(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		userID, err := ParseToken(secret, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		c.Set(logger.UserIDKey, userID)
		c.Next()
	}
}

// OptionalAuth identifies the caller when a valid token is present and lets
// anonymous requests through otherwise.
func OptionalAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, ok := bearer(c); ok {
			if userID, err := ParseToken(secret, raw); err == nil {
				c.Set(logger.UserIDKey, userID)
			}
		}
		c.Next()
	}
}

// ActorID returns the authenticated caller, or 0 for anonymous requests.
func ActorID(c *gin.Context) int {
	if v, ok := c.Get(logger.UserIDKey); ok {
		if id, ok := v.(int); ok {
			return id
		}
	}
	return 0
}
