package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"teamchat-service/internal/auth"
	"teamchat-service/internal/observability"
	"teamchat-service/internal/repositories/memory"
)

func setupRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.New()
	alice := store.AddUser("alice")
	token, err := auth.GenerateToken("key", alice.ID, time.Minute)
	require.NoError(t, err)

	authenticator := auth.NewAuthenticator(auth.NewVerifier("key"), store.Set().Users, observability.DiscardLogger())
	r := gin.New()
	r.Use(RequestID(), Principal(authenticator))
	r.GET("/whoami", func(c *gin.Context) {
		p := PrincipalFromContext(c)
		c.JSON(http.StatusOK, gin.H{"user_id": p.UserID, "request_id": RequestIDFromContext(c)})
	})
	return r, token
}

func TestPrincipalNeverAborts(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/whoami?token=bogus", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"user_id":0`)
}

func TestPrincipalFromQueryToken(t *testing.T) {
	router, token := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/whoami?token="+token, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"user_id":1`)
}

func TestRequestIDPropagated(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-Request-Id", "abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, "abc", rec.Header().Get("X-Request-Id"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
