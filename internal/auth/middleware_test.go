package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rc-portal/allocation-portal-backend/internal/users"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := NewService(nil, "test-secret", time.Hour)
	h := NewHandler(svc)

	router := gin.New()
	admin := router.Group("", h.RequireAuth(), h.RequireAdmin())
	admin.POST("/renewal-requests/:id/approve", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router, svc
}

func token(t *testing.T, svc *Service, isAdmin bool) string {
	t.Helper()
	signed, err := svc.issueToken(&users.User{
		ID:       uuid.New(),
		Username: "someone",
		IsAdmin:  isAdmin,
	})
	require.NoError(t, err)
	return signed
}

func TestTransitionRoutesRejectMissingToken(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/renewal-requests/abc/approve", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTransitionRoutesRejectNonAdmin(t *testing.T) {
	router, svc := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/renewal-requests/abc/approve", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, svc, false))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "administrator access required")
}

func TestTransitionRoutesAllowAdmin(t *testing.T) {
	router, svc := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/renewal-requests/abc/approve", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, svc, true))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
