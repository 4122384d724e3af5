package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Context keys set by the middleware.
const (
	ctxUserID = "auth.userId"
	ctxCaller = "auth.caller"
)

// Middleware enforces bearer authentication. On success the request gains
// the caller's user id and wallet address; every failure is a 401.
func Middleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			abortUnauthorized(c, "malformed authorization header")
			return
		}

		identity, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, ErrNoWallet):
				abortUnauthorized(c, "no wallet account linked")
			default:
				abortUnauthorized(c, "invalid or expired token")
			}
			return
		}

		c.Set(ctxUserID, identity.UserID)
		c.Set(ctxCaller, identity.Wallet)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   msg,
	})
}

// Caller returns the authenticated wallet address set by Middleware.
func Caller(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxCaller)
	if !ok {
		return "", false
	}
	addr, ok := v.(string)
	return addr, ok && addr != ""
}

// UserID returns the authenticated Privy user id set by Middleware.
func UserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
