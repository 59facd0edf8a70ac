package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Verifier is what the middleware needs from a token verifier
type Verifier interface {
	UserFromRequest(r *http.Request) (*User, error)
}

// RequireAdmin authenticates the request and rejects any token whose email
// claim is not the configured admin address. The back-office is
// single-operator; there are no roles beyond this.
func RequireAdmin(verifier Verifier, adminEmail string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := verifier.UserFromRequest(c.Request)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		if !strings.EqualFold(user.Email, adminEmail) {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Next()
	}
}
