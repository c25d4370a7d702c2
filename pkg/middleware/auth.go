package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fazilcanakbas/havacilaregitim/pkg/logger"
)

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// Verifiers tries each verifier in order and accepts the first success.
// It lets locally issued tokens and Keycloak tokens share one middleware.
type Verifiers []Verifier

func (vs Verifiers) Verify(ctx context.Context, raw string) (Token, error) {
	err := fmt.Errorf("no verifier configured")
	for _, v := range vs {
		if v == nil {
			continue
		}
		var tok Token
		if tok, err = v.Verify(ctx, raw); err == nil {
			return tok, nil
		}
	}
	return nil, err
}

// Revocations reports access tokens that were revoked before they expired.
type Revocations interface {
	Revoked(ctx context.Context, token string) (bool, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *gin.Context) (string, bool) {
	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// AuthMiddleware returns a Gin middleware that verifies Bearer tokens using
// the provided verifier. rev may be nil. A failing revocation lookup is
// logged and the token is judged by the verifier alone.
func AuthMiddleware(ver Verifier, rev Revocations) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			return
		}
		token, ok := BearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header"})
			return
		}

		if rev != nil {
			revoked, err := rev.Revoked(c.Request.Context(), token)
			if err != nil {
				logger.Warnf("revocation lookup failed: %v", err)
			}
			if revoked {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token revoked"})
				return
			}
		}

		idToken, err := ver.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "details": err.Error()})
			return
		}

		var claims map[string]interface{}
		if err := idToken.Claims(&claims); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "failed to parse claims"})
			return
		}

		c.Set("claims", claims)
		c.Set("token", token)
		c.Next()
	}
}

// Claims returns the verified claims set by AuthMiddleware.
func Claims(c *gin.Context) map[string]interface{} {
	v, ok := c.Get("claims")
	if !ok {
		return nil
	}
	cm, _ := v.(map[string]interface{})
	return cm
}

// Subject returns the authenticated subject and email, empty when the
// request carries no verified token.
func Subject(c *gin.Context) (id, email string) {
	cm := Claims(c)
	id, _ = cm["sub"].(string)
	email, _ = cm["email"].(string)
	return id, email
}
