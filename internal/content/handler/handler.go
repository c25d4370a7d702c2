package handler

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fazilcanakbas/havacilaregitim/internal/content"
	"github.com/fazilcanakbas/havacilaregitim/internal/content/form"
	"github.com/fazilcanakbas/havacilaregitim/internal/content/service"
	"github.com/fazilcanakbas/havacilaregitim/pkg/logger"
	"github.com/fazilcanakbas/havacilaregitim/pkg/middleware"
)

// Uploader stores validated request files and returns their public paths.
type Uploader interface {
	SaveAll(ctx context.Context, collection string, files []*multipart.FileHeader) ([]string, error)
	Discard(ctx context.Context, paths []string)
}

// RegisterContentRoutes mounts the CRUD API for one resource kind under
// /api/<collection>. Reads are public; writes go through auth.
func RegisterContentRoutes(r gin.IRouter, svc service.Service, up Uploader, auth gin.HandlerFunc) {
	h := &contentHandler{svc: svc, up: up, desc: svc.Descriptor()}
	g := r.Group("/api/" + h.desc.Collection)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("", auth, h.create)
	g.PUT("/:id", auth, h.update)
	g.DELETE("/:id", auth, h.delete)
}

type contentHandler struct {
	svc  service.Service
	up   Uploader
	desc *content.Descriptor
}

func (h *contentHandler) list(c *gin.Context) {
	q := content.Query{
		Search:   c.Query("search"),
		Category: c.Query("category"),
		Tag:      c.Query("tag"),
	}
	active, err := form.ParseBool(c.Query("isActive"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": "isActive"})
		return
	}
	q.IsActive = active
	if q.Limit, err = queryInt(c, "limit"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": "limit"})
		return
	}
	if q.Skip, err = queryInt(c, "skip"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": "skip"})
		return
	}
	page, err := h.svc.List(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *contentHandler) get(c *gin.Context) {
	res, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *contentHandler) create(c *gin.Context) {
	cmd, uploaded, ok := h.decode(c)
	if !ok {
		return
	}
	res, err := h.svc.Create(c.Request.Context(), actor(c), cmd, uploaded)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": res.Resource, "warnings": warnings(res)})
}

func (h *contentHandler) update(c *gin.Context) {
	cmd, uploaded, ok := h.decode(c)
	if !ok {
		return
	}
	res, err := h.svc.Update(c.Request.Context(), actor(c), c.Param("id"), cmd, uploaded)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": res.Resource, "warnings": warnings(res)})
}

func (h *contentHandler) delete(c *gin.Context) {
	res, err := h.svc.Delete(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": res.Resource.ID, "deleted": true, "warnings": warnings(res)})
}

// decode turns the body into a typed command and stores any uploaded files.
// Files are only written once every text field decoded cleanly.
func (h *contentHandler) decode(c *gin.Context) (content.Command, []string, bool) {
	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		mf, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart body: " + err.Error()})
			return content.Command{}, nil, false
		}
		cmd, files, err := form.FromMultipart(mf, h.desc)
		if err != nil {
			writeError(c, err)
			return content.Command{}, nil, false
		}
		if len(files) == 0 {
			return cmd, nil, true
		}
		if h.up == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file uploads are not enabled", "field": "images"})
			return content.Command{}, nil, false
		}
		paths, err := h.up.SaveAll(c.Request.Context(), h.desc.Collection, files)
		if err != nil {
			writeError(c, err)
			return content.Command{}, nil, false
		}
		return cmd, paths, true
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return content.Command{}, nil, false
	}
	cmd, err := form.FromJSON(body, h.desc)
	if err != nil {
		writeError(c, err)
		return content.Command{}, nil, false
	}
	return cmd, nil, true
}

func actor(c *gin.Context) content.Actor {
	id, email := middleware.Subject(c)
	return content.Actor{ID: id, Email: email}
}

func warnings(res *service.Result) []string {
	if res.Warnings == nil {
		return []string{}
	}
	return res.Warnings
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(key + " must be an integer")
	}
	return n, nil
}

// writeError maps the content error taxonomy onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var verr *content.ValidationError
	var serr *content.StorageError
	switch {
	case errors.As(err, &verr):
		body := gin.H{"error": verr.Error()}
		if verr.Field != "" {
			body["field"] = verr.Field
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, content.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, content.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "slug conflict, please retry"})
	case errors.As(err, &serr):
		logger.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "file storage failed, content was not saved"})
	default:
		logger.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
