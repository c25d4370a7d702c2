package contactinfo

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fazilcanakbas/havacilaregitim/internal/content"
	"github.com/fazilcanakbas/havacilaregitim/internal/content/form"
	"github.com/fazilcanakbas/havacilaregitim/pkg/logger"
	"github.com/fazilcanakbas/havacilaregitim/pkg/middleware"
)

// RegisterRoutes mounts GET (public) and PUT (auth) /api/contact-info.
func RegisterRoutes(r gin.IRouter, svc *Service, auth gin.HandlerFunc) {
	r.GET("/api/contact-info", func(c *gin.Context) {
		i, err := svc.Get(c.Request.Context())
		if err != nil {
			logger.Errorf("load contact info: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, i)
	})

	r.PUT("/api/contact-info", auth, func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
			return
		}
		cmd, err := form.FromJSON(body, Descriptor)
		if err == nil {
			id, email := middleware.Subject(c)
			var i *Info
			if i, err = svc.Update(c.Request.Context(), content.Actor{ID: id, Email: email}, cmd); err == nil {
				c.JSON(http.StatusOK, i)
				return
			}
		}
		var verr *content.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
			return
		}
		logger.Errorf("update contact info: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	})
}
