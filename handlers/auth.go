package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fazilcanakbas/havacilaregitim/internal/config"
	"github.com/fazilcanakbas/havacilaregitim/internal/sessions"
	"github.com/fazilcanakbas/havacilaregitim/internal/tokens"
	"github.com/fazilcanakbas/havacilaregitim/internal/users"
	"github.com/fazilcanakbas/havacilaregitim/pkg/logger"
	"github.com/fazilcanakbas/havacilaregitim/pkg/middleware"
)

// LoginRequest is the admin panel sign-in form.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
	// All ends every session of the user, not just this one.
	All bool `json:"all"`
}

// AuthHandler holds dependencies
type AuthHandler struct {
	cfg         *config.Config
	usersSvc    *users.Service
	sessionsSvc *sessions.Service
	blacklist   *sessions.Blacklist
}

// NewAuthHandler builds the handler. bl may be nil, in which case logout
// only ends the refresh session.
func NewAuthHandler(cfg *config.Config, u *users.Service, s *sessions.Service, bl *sessions.Blacklist) *AuthHandler {
	return &AuthHandler{cfg: cfg, usersSvc: u, sessionsSvc: s, blacklist: bl}
}

// Register routes under /auth. limit guards login against password guessing.
func (h *AuthHandler) Register(r gin.IRouter, limit gin.HandlerFunc) {
	a := r.Group("/auth")
	a.POST("/login", limit, h.Login)
	a.POST("/refresh", h.Refresh)
	a.POST("/logout", h.Logout)
}

// RegisterMe mounts /api/v1/me behind auth.
func (h *AuthHandler) RegisterMe(r gin.IRouter, auth gin.HandlerFunc) {
	r.GET("/api/v1/me", auth, h.Me)
}

// Login checks email/password and issues an access token plus a refresh token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := h.usersSvc.Authenticate(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, users.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}
	if err != nil {
		logger.Errorf("login lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "authentication failed"})
		return
	}
	rft, err := h.sessionsSvc.CreateSession(c.Request.Context(), u.ID, c.Request.UserAgent(), h.cfg.JWT.RefreshTokenTTL)
	if err != nil {
		logger.Errorf("failed to create session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	access, err := tokens.GenerateAccessToken(h.cfg, u, h.cfg.JWT.AccessTokenTTL)
	if err != nil {
		logger.Errorf("failed to sign access token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create access token"})
		return
	}
	logger.Infof("admin %s signed in", u.Email)
	c.JSON(http.StatusOK, gin.H{
		"accessToken":  access,
		"refreshToken": rft,
		"expiresIn":    int(h.cfg.JWT.AccessTokenTTL.Seconds()),
		"user":         u,
	})
}

// Refresh rotates the refresh token and returns a fresh access token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, next, err := h.sessionsSvc.Rotate(c.Request.Context(), req.RefreshToken, h.cfg.JWT.RefreshTokenTTL)
	if err != nil {
		logger.Errorf("refresh rotation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "validation failed"})
		return
	}
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	u, err := h.usersSvc.GetByID(c.Request.Context(), sess.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user lookup failed"})
		return
	}
	if u == nil {
		_ = h.sessionsSvc.DeleteRefresh(c.Request.Context(), next)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user no longer exists"})
		return
	}
	access, err := tokens.GenerateAccessToken(h.cfg, u, h.cfg.JWT.AccessTokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create access token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accessToken":  access,
		"refreshToken": next,
		"expiresIn":    int(h.cfg.JWT.AccessTokenTTL.Seconds()),
	})
}

// Logout invalidates the refresh token and blacklists the presented access token
// for the rest of its lifetime. With "all" set every session of the user ends.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req logoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	if at, ok := middleware.BearerToken(c); ok {
		if exp, err := tokens.ExpiresAt(at); err == nil {
			if err := h.blacklist.Revoke(ctx, at, exp); err != nil {
				logger.Errorf("failed to revoke access token: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to blacklist access token"})
				return
			}
		}
	}
	if req.All {
		sess, err := h.sessionsSvc.ValidateRefresh(ctx, req.RefreshToken)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove sessions"})
			return
		}
		if sess != nil {
			if err := h.sessionsSvc.RevokeAll(ctx, sess.UserID); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove sessions"})
				return
			}
			logger.Infof("all sessions of user %s ended", sess.UserID)
		}
		c.JSON(http.StatusOK, gin.H{"message": "logged out everywhere"})
		return
	}
	if err := h.sessionsSvc.DeleteRefresh(ctx, req.RefreshToken); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the signed-in admin. Keycloak subjects are mapped to a local
// user on first sight.
func (h *AuthHandler) Me(c *gin.Context) {
	sub, _ := middleware.Subject(c)
	u, err := h.usersSvc.GetByID(c.Request.Context(), sub)
	if err == nil && u == nil {
		u, err = h.usersSvc.UpsertFromClaims(c.Request.Context(), middleware.Claims(c))
	}
	if err != nil {
		logger.Errorf("me lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user lookup failed"})
		return
	}
	if u == nil {
		c.JSON(http.StatusOK, gin.H{"claims": middleware.Claims(c)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}
