package emulator

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Device, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	d := NewDevice()
	return d, NewServer(d, "hvac", nil).Routes()
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "text/plain")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestServer_GetProperty(t *testing.T) {
	_, r := newTestServer(t)

	w := do(r, http.MethodGet, "/hvac/properties/temperatureOutside", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "21.5", w.Body.String())

	w = do(r, http.MethodGet, "/hvac/properties/mode", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `"manual"`, w.Body.String())

	w = do(r, http.MethodGet, "/hvac/properties/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_PutAndAction(t *testing.T) {
	d, r := newTestServer(t)

	w := do(r, http.MethodPut, "/hvac/properties/hysteresis", "3")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 3.0, d.State().Hysteresis)

	w = do(r, http.MethodPut, "/hvac/properties/mode", "bad")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPut, "/hvac/properties/temperatureInside", "5")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPost, "/hvac/actions/openValve3", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, d.State().ValveOpenStates[2])

	w = do(r, http.MethodPost, "/hvac/actions/openValve9", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_AllProperties(t *testing.T) {
	_, r := newTestServer(t)

	w := do(r, http.MethodGet, "/hvac/all/properties", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got, 16)
	assert.Equal(t, 21.5, got["temperatureOutside"])
	assert.Equal(t, "manual", got["mode"])
}

func TestServer_FailWith(t *testing.T) {
	d, r := newTestServer(t)

	d.FailWith(http.StatusServiceUnavailable)
	w := do(r, http.MethodGet, "/hvac/properties/temperatureOutside", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = do(r, http.MethodPost, "/hvac/actions/openValve1", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.False(t, d.State().ValveOpenStates[0])

	d.FailWith(0)
	w = do(r, http.MethodGet, "/hvac/properties/temperatureOutside", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
