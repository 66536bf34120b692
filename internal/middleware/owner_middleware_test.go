package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ikkim/storefront-cart/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-jwt-secret-for-middleware"

func setupOwnerRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(LoggingMiddleware())
	router.Use(NewOwnerMiddleware(testJWTSecret, false).ResolveOwner())
	router.GET("/owner", func(c *gin.Context) {
		owner, _ := GetCartOwner(c)
		c.String(http.StatusOK, owner)
	})
	return router
}

func generateTestToken(t *testing.T, userID uint, expiry time.Duration) string {
	token, err := util.GenerateToken(userID, "test@example.com", "user", testJWTSecret, expiry)
	require.NoError(t, err)
	return token
}

func TestResolveOwner_BearerToken(t *testing.T) {
	router := setupOwnerRouter()

	req := httptest.NewRequest(http.MethodGet, "/owner", nil)
	req.Header.Set("Authorization", "Bearer "+generateTestToken(t, 42, 15*time.Minute))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user:42", w.Body.String())
	assert.Empty(t, w.Header().Get(SessionHeader))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestResolveOwner_TokenQueryParameter(t *testing.T) {
	router := setupOwnerRouter()

	req := httptest.NewRequest(http.MethodGet, "/owner?token="+generateTestToken(t, 7, time.Minute), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user:7", w.Body.String())
}

func TestResolveOwner_RejectsBadTokens(t *testing.T) {
	router := setupOwnerRouter()

	tests := []struct {
		name     string
		header   string
		wantCode string
	}{
		{"Missing Bearer prefix", "invalid-token", "AUTH_TOKEN_INVALID"},
		{"Wrong prefix", "Basic token123", "AUTH_TOKEN_INVALID"},
		{"Empty token", "Bearer ", "AUTH_TOKEN_INVALID"},
		{"Garbage token", "Bearer invalid.jwt.token", "AUTH_TOKEN_INVALID"},
		{"Expired token", "Bearer " + generateTestToken(t, 1, -time.Minute), "AUTH_TOKEN_EXPIRED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/owner", nil)
			req.Header.Set("Authorization", tt.header)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantCode)
		})
	}
}

func TestResolveOwner_IssuesSessionForGuests(t *testing.T) {
	router := setupOwnerRouter()

	req := httptest.NewRequest(http.MethodGet, "/owner", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	sessionID := w.Header().Get(SessionHeader)
	_, err := uuid.Parse(sessionID)
	require.NoError(t, err)
	assert.Equal(t, "session:"+sessionID, w.Body.String())

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.Equal(t, sessionID, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestResolveOwner_ReusesSession(t *testing.T) {
	router := setupOwnerRouter()
	sessionID := uuid.NewString()

	t.Run("header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/owner", nil)
		req.Header.Set(SessionHeader, sessionID)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "session:"+sessionID, w.Body.String())
		assert.Empty(t, w.Result().Cookies())
	})

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/owner", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: sessionID})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "session:"+sessionID, w.Body.String())
	})
}

func TestResolveOwner_ReplacesUnparseableSession(t *testing.T) {
	router := setupOwnerRouter()

	req := httptest.NewRequest(http.MethodGet, "/owner", nil)
	req.Header.Set(SessionHeader, "../../etc/passwd")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	sessionID := w.Header().Get(SessionHeader)
	assert.NotEqual(t, "../../etc/passwd", sessionID)
	_, err := uuid.Parse(sessionID)
	assert.NoError(t, err)
}

func TestLoggingMiddleware_PropagatesRequestID(t *testing.T) {
	router := setupOwnerRouter()

	req := httptest.NewRequest(http.MethodGet, "/owner", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
}
