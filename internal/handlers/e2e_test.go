package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"hvac_gateway/internal/device"
	"hvac_gateway/internal/emulator"
	"hvac_gateway/internal/models"
	"hvac_gateway/internal/repository"
	"hvac_gateway/internal/repository/db"
	"hvac_gateway/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type gateway struct {
	router http.Handler
	dev    *emulator.Device
	cache  *service.StateCache
}

// newGateway wires the real stack against an emulated device.
func newGateway(t *testing.T, bulk bool) *gateway {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dev := emulator.NewDevice()
	remote := httptest.NewServer(emulator.NewServer(dev, "hvac", nil).Routes())
	t.Cleanup(remote.Close)

	client, err := device.NewClient(device.Options{Host: remote.URL, Name: "hvac", Bulk: bulk})
	require.NoError(t, err)

	conn, err := db.InitDB(filepath.Join(t.TempDir(), "hvac.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	repos := repository.NewRepository(conn)

	cache := service.NewStateCache(client, service.StateCacheOptions{Recorder: repos.EventRepo})
	auth, err := service.NewAuthService(service.AuthConfig{
		User:        service.Credentials{Username: "user", Password: "pass"},
		Superuser:   service.Credentials{Username: "su", Password: "supass"},
		TokenSecret: "e2e-secret",
		HashCost:    bcrypt.MinCost,
	})
	require.NoError(t, err)

	services := service.NewService(cache, auth, service.NewEventLogService(repos.EventRepo))
	return &gateway{
		router: NewHandler(services, nil, Options{}).InitRoutes(),
		dev:    dev,
		cache:  cache,
	}
}

func (g *gateway) get(t *testing.T, path string, hdr http.Header) string {
	t.Helper()
	w := doRequest(g.router, http.MethodGet, path, "", hdr)
	require.Equal(t, http.StatusOK, w.Code, "GET %s: %s", path, w.Body.String())
	return w.Body.String()
}

func (g *gateway) post(t *testing.T, path, body string, hdr http.Header) *httptest.ResponseRecorder {
	t.Helper()
	return doRequest(g.router, http.MethodPost, path, body, hdr)
}

func TestEndToEnd_FirstReadThenValveCommand(t *testing.T) {
	for _, bulk := range []bool{true, false} {
		t.Run(map[bool]string{true: "bulk", false: "per_property"}[bulk], func(t *testing.T) {
			g := newGateway(t, bulk)
			require.False(t, g.cache.Populated())

			assert.Equal(t, "21.5", g.get(t, "/temperatureOutside", userAuth()))
			assert.True(t, g.cache.Populated())

			w := g.post(t, "/valve/2", "action=open", suAuth())
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, "true", w.Body.String())
			assert.True(t, g.dev.State().ValveOpenStates[1], "remote open action not called")

			assert.Equal(t, "true", g.get(t, "/valve/2", userAuth()))
		})
	}
}

func TestEndToEnd_HysteresisTwice(t *testing.T) {
	g := newGateway(t, true)

	for i := 0; i < 2; i++ {
		w := g.post(t, "/hysteresis", `{"value":3}`, suAuth())
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "true", w.Body.String())
	}
	assert.Equal(t, "3", g.get(t, "/hysteresis", userAuth()))
	assert.Equal(t, 3.0, g.dev.State().Hysteresis)
}

func TestEndToEnd_ModeRoundTripAndAuditLog(t *testing.T) {
	g := newGateway(t, true)

	w := g.post(t, "/mode", "type=autoSummer", suAuth())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, `"autoSummer"`, g.get(t, "/mode", userAuth()))

	w = g.post(t, "/temperatureFeed", "value=52.5", userAuth())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "52.5", g.get(t, "/temperatureFeed", userAuth()))

	var out struct {
		Count  int                   `json:"count"`
		Events []models.CommandEvent `json:"events"`
	}
	require.NoError(t, json.Unmarshal([]byte(g.get(t, "/logs", suAuth())), &out))
	require.Equal(t, 2, out.Count)
	assert.Equal(t, models.OpSetMode, out.Events[0].Operation)
	assert.Equal(t, "autoSummer", out.Events[0].Value)
	assert.Equal(t, "su", out.Events[0].Actor)
	assert.Equal(t, models.OpSetTemperatureFeed, out.Events[1].Operation)
	assert.Equal(t, "user", out.Events[1].Actor)
	assert.True(t, out.Events[1].Success)
}

func TestEndToEnd_DeviceOutageKeepsSnapshot(t *testing.T) {
	g := newGateway(t, true)
	assert.Equal(t, "20", g.get(t, "/temperatureInside", userAuth()))

	g.dev.FailWith(http.StatusServiceUnavailable)
	require.Error(t, g.cache.Refresh(context.Background()))

	// Reads keep serving the last snapshot.
	assert.Equal(t, "20", g.get(t, "/temperatureInside", userAuth()))

	// Writes surface the remote failure.
	w := g.post(t, "/hysteresis", "value=4", suAuth())
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "503")

	g.dev.FailWith(0)
	w = g.post(t, "/hysteresis", "value=4", suAuth())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "4", g.get(t, "/hysteresis", userAuth()))
}

func TestEndToEnd_FirstReadFailsWhileDeviceDown(t *testing.T) {
	g := newGateway(t, true)
	g.dev.FailWith(http.StatusServiceUnavailable)

	w := doRequest(g.router, http.MethodGet, "/fullState", "", userAuth())
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, g.cache.Populated())
}

func TestEndToEnd_MD5Credentials(t *testing.T) {
	g := newGateway(t, true)

	// md5("su"), md5("supass")
	w := doRequest(g.router, http.MethodGet, "/suAccess", "",
		basicHeader("0b180078d994cb2b5ed89d7ce8e7eea2", "ebddbaa008b2a24ec15ed543d6da3c7f"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "true", w.Body.String())

	// md5("user"), md5("pass")
	w = doRequest(g.router, http.MethodGet, "/suAccess", "",
		basicHeader("ee11cbb19052e40b07aac0ca060c23ee", "1a1dc91c907325c69271ddf0c944bc72"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "false", w.Body.String())

	// hashed username with plaintext password is not an accepted form
	w = doRequest(g.router, http.MethodGet, "/suAccess", "",
		basicHeader("0b180078d994cb2b5ed89d7ce8e7eea2", "supass"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
