package messages

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fazilcanakbas/havacilaregitim/internal/content/form"
	"github.com/fazilcanakbas/havacilaregitim/pkg/logger"
)

// RegisterRoutes mounts the public submit endpoint behind limit and the
// admin inbox behind auth.
func RegisterRoutes(r gin.IRouter, svc *Service, auth, limit gin.HandlerFunc) {
	g := r.Group("/api/messages")
	g.POST("", limit, func(c *gin.Context) {
		var in Submission
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		m, err := svc.Submit(c.Request.Context(), in, c.ClientIP())
		if err != nil {
			internalError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": m.ID, "message": "received"})
	})

	g.GET("", auth, func(c *gin.Context) {
		q := Query{Search: c.Query("search")}
		var err error
		if q.IsRead, err = form.ParseBool(c.Query("isRead")); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": "isRead"})
			return
		}
		if q.Limit, err = atoiOrZero(c.Query("limit")); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer", "field": "limit"})
			return
		}
		if q.Skip, err = atoiOrZero(c.Query("skip")); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "skip must be an integer", "field": "skip"})
			return
		}
		page, err := svc.List(c.Request.Context(), q)
		if err != nil {
			internalError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	})

	g.GET("/:id", auth, func(c *gin.Context) {
		m, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			notFoundOr500(c, err)
			return
		}
		c.JSON(http.StatusOK, m)
	})

	g.PATCH("/:id/read", auth, func(c *gin.Context) {
		var req struct {
			IsRead *bool `json:"isRead" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		m, err := svc.MarkRead(c.Request.Context(), c.Param("id"), *req.IsRead)
		if err != nil {
			notFoundOr500(c, err)
			return
		}
		c.JSON(http.StatusOK, m)
	})

	g.DELETE("/:id", auth, func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
			notFoundOr500(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

func atoiOrZero(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func notFoundOr500(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	internalError(c, err)
}

func internalError(c *gin.Context, err error) {
	logger.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
