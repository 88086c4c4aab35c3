package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"hvac_gateway/internal/models"
	"hvac_gateway/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	// accounts maps "username:password" to the principal it authenticates as.
	accounts map[string]models.Principal
	// tokens maps bearer tokens to principals.
	tokens map[string]models.Principal

	genToken string
	genErr   error

	lastGenerated models.Principal
}

func newMockAuth() *mockAuth {
	return &mockAuth{
		accounts: map[string]models.Principal{
			"user:pass": {Username: "user", Role: models.RoleUser},
			"su:supass": {Username: "su", Role: models.RoleSuperuser},
		},
		tokens: map[string]models.Principal{
			"user-token": {Username: "user", Role: models.RoleUser},
			"su-token":   {Username: "su", Role: models.RoleSuperuser},
		},
		genToken: "issued-token",
	}
}

func (m *mockAuth) Authenticate(username, password string) (models.Principal, error) {
	if p, ok := m.accounts[username+":"+password]; ok {
		return p, nil
	}
	return models.Principal{}, service.ErrUnauthorized
}

func (m *mockAuth) GenerateToken(p models.Principal) (string, error) {
	m.lastGenerated = p
	return m.genToken, m.genErr
}

func (m *mockAuth) ParseToken(token string) (models.Principal, error) {
	if p, ok := m.tokens[token]; ok {
		return p, nil
	}
	return models.Principal{}, service.ErrInvalidToken
}

type hvacCall struct {
	op    string
	n     int
	value any
	actor string
}

type mockHVAC struct {
	mu sync.Mutex

	state    models.DeviceState
	readErr  error
	accepted bool
	writeErr error
	status   service.CacheStatus

	calls []hvacCall
}

func newMockHVAC() *mockHVAC {
	st := models.NewDeviceState()
	st.HeatExchangerTemperatures = [3]float64{40.5, 41, 39.75}
	st.OutsideTemperature = 21.5
	st.InsideTemperature = 20
	st.FeedTemperature = 45
	st.Hysteresis = 2
	st.Mode = models.ModeAutoWinter
	st.ValveOpenStates = [4]bool{false, true, false, false}
	st.ValveActivatedStates = [4]bool{true, false, false, false}
	return &mockHVAC{state: st, accepted: true}
}

func (m *mockHVAC) record(ctx context.Context, op string, n int, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, hvacCall{op: op, n: n, value: value, actor: service.ActorFrom(ctx)})
}

func (m *mockHVAC) lastCall() (hvacCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return hvacCall{}, false
	}
	return m.calls[len(m.calls)-1], true
}

func (m *mockHVAC) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockHVAC) HeatExchangerTemperature(ctx context.Context, n int) (float64, error) {
	m.record(ctx, "read_he", n, nil)
	if m.readErr != nil {
		return 0, m.readErr
	}
	return m.state.HeatExchangerTemperature(n)
}

func (m *mockHVAC) OutsideTemperature(ctx context.Context) (float64, error) {
	m.record(ctx, "read_outside", 0, nil)
	return m.state.OutsideTemperature, m.readErr
}

func (m *mockHVAC) InsideTemperature(ctx context.Context) (float64, error) {
	m.record(ctx, "read_inside", 0, nil)
	return m.state.InsideTemperature, m.readErr
}

func (m *mockHVAC) FeedTemperature(ctx context.Context) (float64, error) {
	m.record(ctx, "read_feed", 0, nil)
	return m.state.FeedTemperature, m.readErr
}

func (m *mockHVAC) Hysteresis(ctx context.Context) (float64, error) {
	m.record(ctx, "read_hysteresis", 0, nil)
	return m.state.Hysteresis, m.readErr
}

func (m *mockHVAC) Mode(ctx context.Context) (models.OperationMode, error) {
	m.record(ctx, "read_mode", 0, nil)
	return m.state.Mode, m.readErr
}

func (m *mockHVAC) ValveOpen(ctx context.Context, n int) (bool, error) {
	m.record(ctx, "read_valve", n, nil)
	if m.readErr != nil {
		return false, m.readErr
	}
	return m.state.ValveOpen(n)
}

func (m *mockHVAC) ValveActivated(ctx context.Context, n int) (bool, error) {
	m.record(ctx, "read_valve_activated", n, nil)
	if m.readErr != nil {
		return false, m.readErr
	}
	return m.state.ValveActivated(n)
}

func (m *mockHVAC) SetFeedTemperature(ctx context.Context, v float64) (bool, error) {
	m.record(ctx, "set_feed", 0, v)
	return m.accepted, m.writeErr
}

func (m *mockHVAC) SetHysteresis(ctx context.Context, v float64) (bool, error) {
	m.record(ctx, "set_hysteresis", 0, v)
	return m.accepted, m.writeErr
}

func (m *mockHVAC) SetMode(ctx context.Context, mode models.OperationMode) (bool, error) {
	m.record(ctx, "set_mode", 0, mode)
	return m.accepted, m.writeErr
}

func (m *mockHVAC) SetValveActivated(ctx context.Context, n int, v bool) (bool, error) {
	m.record(ctx, "set_valve_activated", n, v)
	return m.accepted, m.writeErr
}

func (m *mockHVAC) OpenValve(ctx context.Context, n int) (bool, error) {
	m.record(ctx, "open_valve", n, nil)
	return m.accepted, m.writeErr
}

func (m *mockHVAC) CloseValve(ctx context.Context, n int) (bool, error) {
	m.record(ctx, "close_valve", n, nil)
	return m.accepted, m.writeErr
}

func (m *mockHVAC) Snapshot(ctx context.Context) (models.DeviceState, error) {
	m.record(ctx, "snapshot", 0, nil)
	if m.readErr != nil {
		return models.DeviceState{}, m.readErr
	}
	return m.state, nil
}

func (m *mockHVAC) Status() service.CacheStatus { return m.status }

type mockEventLog struct {
	resp          []models.CommandEvent
	err           error
	lastFrom      time.Time
	lastTo        time.Time
	lastOperation string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.CommandEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastOperation = f.Operation
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestServices() (*service.Service, *mockHVAC, *mockAuth, *mockEventLog) {
	hv, auth, logs := newMockHVAC(), newMockAuth(), &mockEventLog{}
	return &service.Service{HVAC: hv, Authorization: auth, EventLog: logs}, hv, auth, logs
}

func newTestRouter(s *service.Service) *gin.Engine {
	return newTestRouterWith(s, Options{})
}

func newTestRouterWith(s *service.Service, opts Options) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewHandler(s, nil, opts).InitRoutes()
}

func basicHeader(username, password string) http.Header {
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth(username, password)
	return req.Header
}

func userAuth() http.Header { return basicHeader("user", "pass") }

func suAuth() http.Header { return basicHeader("su", "supass") }

func bearerHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
