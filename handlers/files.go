package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fazilcanakbas/havacilaregitim/internal/storage"
	"github.com/fazilcanakbas/havacilaregitim/pkg/logger"
)

// RegisterFiles streams stored uploads under prefix (e.g. /uploads/*key).
func RegisterFiles(r gin.IRouter, prefix string, store storage.Store) {
	prefix = "/" + strings.Trim(prefix, "/")
	r.GET(prefix+"/*key", func(c *gin.Context) {
		rc, obj, err := store.Open(c.Request.Context(), c.Param("key"))
		switch {
		case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrInvalidPath):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		case err != nil:
			logger.Errorf("open %s: %v", c.Param("key"), err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read file"})
			return
		}
		defer rc.Close()

		extra := map[string]string{
			"Cache-Control":          "public, max-age=86400",
			"X-Content-Type-Options": "nosniff",
		}
		if !obj.ModTime.IsZero() {
			extra["Last-Modified"] = obj.ModTime.UTC().Format(http.TimeFormat)
		}
		size := obj.Size
		if size <= 0 {
			size = -1
		}
		c.DataFromReader(http.StatusOK, size, obj.ContentType, rc, extra)
	})
}
