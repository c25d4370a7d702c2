package contactinfo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/fazilcanakbas/havacilaregitim/internal/content"
)

func TestService_UpdateMergesLocales(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository())

	empty, err := svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, docID, empty.ID)

	cmd := content.Command{
		Primary: content.Fields{
			Text:  map[string]string{"address": "Ankara", "phone": "+90 312 000 00 00"},
			Lists: map[string][]string{"socialLinks": {"https://instagram.com/havacilik"}},
		},
		Secondary: content.Fields{Text: map[string]string{"address": "Ankara, Turkey"}},
	}
	_, err = svc.Update(ctx, content.Actor{ID: "admin-1"}, cmd)
	require.NoError(t, err)

	// only the English address changes
	got, err := svc.Update(ctx, content.Actor{ID: "admin-2"}, content.Command{
		Secondary: content.Fields{Text: map[string]string{"address": "Ankara, Türkiye"}},
	})
	require.NoError(t, err)
	require.Equal(t, "Ankara", got.Primary.Text["address"])
	require.Equal(t, "Ankara, Türkiye", got.Secondary.Text["address"])
	require.Equal(t, "+90 312 000 00 00", got.Primary.Text["phone"])
	require.Equal(t, "admin-2", got.UpdatedBy)

	_, err = svc.Update(ctx, content.Actor{}, content.Command{
		Primary: content.Fields{Text: map[string]string{"email": "not-an-email"}},
	})
	var verr *content.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "email", verr.Field)
}

func TestHandler(t *testing.T) {
	g := gin.New()
	auth := func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set("claims", map[string]interface{}{"sub": "admin-1"})
	}
	RegisterRoutes(g, NewService(NewMemoryRepository()), auth)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/contact-info", strings.NewReader(`{"address":"İstanbul"}`))
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/api/contact-info",
		strings.NewReader(`{"address":"İstanbul","addressEn":"Istanbul","socialLinks":["https://x.com/h"]}`))
	req.Header.Set("Authorization", "Bearer t")
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/contact-info", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, "İstanbul", got["address"])
	require.Equal(t, "Istanbul", got["addressEn"])
	require.Equal(t, []interface{}{"https://x.com/h"}, got["socialLinks"])
	require.Equal(t, "", got["phone"])

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/api/contact-info", strings.NewReader(`{"email":"nope"}`))
	req.Header.Set("Authorization", "Bearer t")
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
