package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"Chatline/internal/apperror"
	"Chatline/internal/auth"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
)

const userIDKey = "userID"

// Authenticate resolves the bearer token to a user id and stores it on the
// context under userIDKey.
func Authenticate(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := getTokenFromHeader(c)
		userID, err := verifier.VerifyIdentity(c.Request.Context(), token)
		if err != nil {
			abortWith(c, http.StatusUnauthorized, apperror.PublicMessage(err))
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func getTokenFromHeader(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// RateLimit allows limit requests per second per authenticated user, falling
// back to the client address before authentication has run.
func RateLimit(limit uint) gin.HandlerFunc {
	store := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Second,
		Limit: limit,
	})
	return ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: rateLimitExceeded,
		KeyFunc:      rateLimitKey,
	})
}

func rateLimitKey(c *gin.Context) string {
	if id := c.GetString(userIDKey); id != "" {
		return id
	}
	return c.ClientIP()
}

func rateLimitExceeded(c *gin.Context, info ratelimit.Info) {
	wait := time.Until(info.ResetTime).Round(time.Millisecond)
	abortWith(c, http.StatusTooManyRequests, fmt.Sprintf("Too many requests. Try again in %s.", wait))
}

func currentUser(c *gin.Context) string {
	return c.GetString(userIDKey)
}
