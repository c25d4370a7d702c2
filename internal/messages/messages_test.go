package messages

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func newTestService() *Service {
	svc := NewService(NewMemoryRepository(), 2, 10)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	n := 0
	svc.now = func() time.Time { n++; return base.Add(time.Duration(n) * time.Minute) }
	return svc
}

func TestService_ListNewestFirstAndFilters(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	for i, subj := range []string{"Kayıt", "PPL eğitimi", "Fiyat"} {
		_, err := svc.Submit(ctx, Submission{
			Name: fmt.Sprintf("Aday %d", i), Email: " Aday@Example.com ", Subject: subj, Message: "Merhaba",
		}, "10.0.0.1")
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, Query{})
	require.NoError(t, err)
	require.EqualValues(t, 3, page.Total)
	require.EqualValues(t, 3, page.Unread)
	require.Equal(t, 2, page.Limit)
	require.Len(t, page.Data, 2)
	require.Equal(t, "Fiyat", page.Data[0].Subject)
	require.Equal(t, "aday@example.com", page.Data[0].Email)

	read, err := svc.MarkRead(ctx, page.Data[0].ID, true)
	require.NoError(t, err)
	require.True(t, read.IsRead)
	require.NotNil(t, read.ReadAt)

	unreadOnly := false
	page, err = svc.List(ctx, Query{IsRead: &unreadOnly, Limit: 50})
	require.NoError(t, err)
	require.EqualValues(t, 2, page.Total)
	require.Equal(t, 10, page.Limit)

	page, err = svc.List(ctx, Query{Search: "ppl"})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Total)

	require.NoError(t, svc.Delete(ctx, read.ID))
	require.ErrorIs(t, svc.Delete(ctx, read.ID), ErrNotFound)
	_, err = svc.MarkRead(ctx, "missing", true)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBuildFilter(t *testing.T) {
	read := true
	f := buildFilter(Query{IsRead: &read, Search: "a.b"})
	require.Equal(t, true, f["isRead"])
	or := f["$or"].([]bson.M)
	require.Len(t, or, 4)
	require.Equal(t, `a\.b`, or[0]["name"].(bson.M)["$regex"])
}

func TestHandler(t *testing.T) {
	g := gin.New()
	auth := func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
		}
	}
	noLimit := func(c *gin.Context) {}
	RegisterRoutes(g, newTestService(), auth, noLimit)

	send := func(method, path, body string, authed bool) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if authed {
			req.Header.Set("Authorization", "Bearer t")
		}
		g.ServeHTTP(w, req)
		return w
	}

	w := send(http.MethodPost, "/api/messages", `{"name":"Ali","email":"bad","subject":"s","message":"m"}`, false)
	require.Equal(t, http.StatusBadRequest, w.Code)
	w = send(http.MethodPost, "/api/messages", `{"name":"Ali","email":"ali@example.com","subject":"s"}`, false)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = send(http.MethodPost, "/api/messages", `{"name":"Ali","email":"ali@example.com","subject":"Kayıt","message":"Bilgi almak istiyorum"}`, false)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	id := created["id"]

	require.Equal(t, http.StatusUnauthorized, send(http.MethodGet, "/api/messages", "", false).Code)

	w = send(http.MethodGet, "/api/messages?isRead=false", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	var page Page
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.EqualValues(t, 1, page.Total)

	require.Equal(t, http.StatusBadRequest, send(http.MethodPatch, "/api/messages/"+id+"/read", `{}`, true).Code)
	w = send(http.MethodPatch, "/api/messages/"+id+"/read", `{"isRead":true}`, true)
	require.Equal(t, http.StatusOK, w.Code)

	w = send(http.MethodGet, "/api/messages/"+id, "", true)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"isRead":true`)
	require.NotContains(t, w.Body.String(), `"ip"`)

	require.Equal(t, http.StatusNoContent, send(http.MethodDelete, "/api/messages/"+id, "", true).Code)
	require.Equal(t, http.StatusNotFound, send(http.MethodGet, "/api/messages/"+id, "", true).Code)
}
