package report

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/RIKUY-ORG/Rikuy/api/src/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) (*gin.Engine, *fixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	h := NewHandler(f.orch, 0)

	r := gin.New()
	r.Use(middleware.ErrorHandler(false, nil))
	r.POST("/reports", h.Submit)
	r.GET("/reports/nearby", h.Nearby)
	r.GET("/reports/recent", h.Recent)
	r.GET("/reports/:id", h.Get)
	return r, f
}

func submitRequest(t *testing.T, fields map[string]string, img []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if img != nil {
		fw, err := mw.CreateFormFile("photo", "bache.png")
		require.NoError(t, err)
		_, err = fw.Write(img)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/reports", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (f *fixture) fields(nullifier int64) map[string]string {
	return map[string]string{
		"category": "3",
		"location": `{"lat":-16.4962,"long":-68.1493,"accuracy":12}`,
		"zkProof":  string(f.proof(nullifier)),
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestSubmitEndpoint(t *testing.T) {
	r, f := newRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, submitRequest(t, f.fields(1), photo(1)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["reportId"])
	assert.Equal(t, "confirmado", body["status"])
	reward := body["recompensa"].(map[string]any)
	assert.EqualValues(t, 240, reward["puntos"])
	assert.Contains(t, reward["mensaje"], "240 puntos")
	internal := body["_internal"].(map[string]any)
	assert.Equal(t, "0xabc", internal["txHash"])
	assert.NotContains(t, body, "txHash")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports/"+body["reportId"].(string), nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rep := decode(t, w)["reporte"].(map[string]any)
	assert.Equal(t, "confirmado", rep["status"])
	loc := rep["location"].(map[string]any)
	assert.Equal(t, -16.5, loc["lat"])
	assert.Equal(t, -68.15, loc["long"])
	assert.Equal(t, true, rep["verification"].(map[string]any)["verified"])
	evidence := rep["evidence"].(map[string]any)
	assert.NotContains(t, evidence, "cid")
	assert.NotContains(t, evidence, "contentHash")
	assert.NotEmpty(t, evidence["description"])
	getInternal := decode(t, w)["_internal"].(map[string]any)
	assert.NotEmpty(t, getInternal["cid"])
	assert.NotEmpty(t, getInternal["contentHash"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, submitRequest(t, f.fields(1), photo(2)))
	assert.Equal(t, http.StatusForbidden, w.Code)
	errBody := decode(t, w)["error"].(map[string]any)
	assert.Equal(t, "NULLIFIER_ALREADY_USED", errBody["code"])
}

func TestSubmitEndpointValidation(t *testing.T) {
	r, f := newRouter(t)

	tests := []struct {
		name   string
		mutate func(map[string]string)
		img    []byte
		status int
		code   string
	}{
		{"missing photo", func(map[string]string) {}, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"category out of range", func(m map[string]string) { m["category"] = "7" }, photo(1), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"location not json", func(m map[string]string) { m["location"] = "la paz" }, photo(1), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"latitude missing", func(m map[string]string) { m["location"] = `{"long":-68.1}` }, photo(1), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"outside bolivia", func(m map[string]string) { m["location"] = `{"lat":0,"long":0}` }, photo(1), http.StatusBadRequest, "GEOFENCE_ERROR"},
		{"not an image", func(map[string]string) {}, []byte("plain text, not a picture"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad proof shape", func(m map[string]string) { m["zkProof"] = `{"proof":["1"],"publicSignals":["1","2","3","4"]}` }, photo(1), http.StatusBadRequest, "INVALID_PROOF_FORMAT"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fields := f.fields(5)
			tc.mutate(fields)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, submitRequest(t, fields, tc.img))
			assert.Equal(t, tc.status, w.Code, w.Body.String())
			assert.Equal(t, tc.code, decode(t, w)["error"].(map[string]any)["code"])
		})
	}
}

func TestQueryEndpoints(t *testing.T) {
	r, f := newRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, submitRequest(t, f.fields(1), photo(1)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports/nearby?lat=-16.5&long=-68.15&radiusKm=3", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode(t, w)["data"], 1)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports/nearby?lat=-16.5&long=-68.15&radiusKm=80", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports/nearby?long=-68.15", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports/recent?limit=5", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode(t, w)["data"], 1)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports/does-not-exist", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
