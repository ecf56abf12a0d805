package middleware_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/RIKUY-ORG/Rikuy/api/src/middleware"
	"github.com/RIKUY-ORG/Rikuy/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type errorBody struct {
	Success bool `json:"success"`
	Error   struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
		Stack   string         `json:"stack"`
	} `json:"error"`
}

func serve(t *testing.T, r *gin.Engine, req *http.Request) (*httptest.ResponseRecorder, errorBody) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body errorBody
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &body)
	}
	return w, body
}

func TestErrorHandlerRendersTaxonomy(t *testing.T) {
	r := gin.New()
	r.Use(middleware.ErrorHandler(false, nil))
	r.GET("/geo", func(c *gin.Context) { _ = c.Error(apperror.Geofence()) })
	r.GET("/ext", func(c *gin.Context) {
		_ = c.Error(apperror.ExternalService("ipfs", errors.New("dial tcp: refused")))
	})
	r.GET("/raw", func(c *gin.Context) { _ = c.Error(errors.New("boom")) })

	w, body := serve(t, r, httptest.NewRequest(http.MethodGet, "/geo", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, body.Success)
	assert.Equal(t, "GEOFENCE_ERROR", body.Error.Code)

	w, body = serve(t, r, httptest.NewRequest(http.MethodGet, "/ext", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.NotContains(t, w.Body.String(), "refused")
	assert.NotContains(t, w.Body.String(), "ipfs")
	assert.Empty(t, body.Error.Stack)

	w, body = serve(t, r, httptest.NewRequest(http.MethodGet, "/raw", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestErrorHandlerDevModeShowsStack(t *testing.T) {
	r := gin.New()
	r.Use(middleware.ErrorHandler(true, nil))
	r.GET("/raw", func(c *gin.Context) { _ = c.Error(errors.New("boom")) })

	_, body := serve(t, r, httptest.NewRequest(http.MethodGet, "/raw", nil))
	assert.Contains(t, body.Error.Stack, "boom")
}

func signToken(t *testing.T, secret []byte, role string, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewBuilder().Subject("ops").Claim("role", role).Expiration(exp).Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, secret))
	require.NoError(t, err)
	return string(signed)
}

func TestAdminAuth(t *testing.T) {
	secret := []byte("admin-secret-admin-secret-admin!!")
	r := gin.New()
	r.Use(middleware.ErrorHandler(false, nil))
	r.POST("/admin", middleware.AdminAuth(secret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"by": c.GetString("admin")})
	})

	call := func(auth string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/admin", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		w, _ := serve(t, r, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, call("").Code)
	assert.Equal(t, http.StatusUnauthorized, call("Bearer garbage").Code)
	assert.Equal(t, http.StatusUnauthorized,
		call("Bearer "+signToken(t, []byte("another-secret-another-secret-xx"), "admin", time.Now().Add(time.Hour))).Code)
	assert.Equal(t, http.StatusUnauthorized,
		call("Bearer "+signToken(t, secret, "viewer", time.Now().Add(time.Hour))).Code)
	assert.Equal(t, http.StatusUnauthorized,
		call("Bearer "+signToken(t, secret, "admin", time.Now().Add(-time.Hour))).Code)

	w := call("Bearer " + signToken(t, secret, "admin", time.Now().Add(time.Hour)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ops")
}

func TestAdminAuthWithoutSecretRejects(t *testing.T) {
	r := gin.New()
	r.Use(middleware.ErrorHandler(false, nil))
	r.POST("/admin", middleware.AdminAuth(nil), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/admin", nil)
	req.Header.Set("Authorization", "Bearer x")
	w, _ := serve(t, r, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(middleware.CORS([]string{"https://rikuy.bo"}))
	r.POST("/reports", func(c *gin.Context) { c.Status(http.StatusCreated) })

	req := httptest.NewRequest(http.MethodOptions, "/reports", nil)
	req.Header.Set("Origin", "https://rikuy.bo")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://rikuy.bo", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodPost, "/reports", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
