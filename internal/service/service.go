package service

import (
	"context"
	"time"

	"hvac_gateway/internal/models"
)

// HVAC is the gateway's view of the unit. Reads come from the cached
// snapshot; writes go to the device and are followed by a refresh.
type HVAC interface {
	HeatExchangerTemperature(ctx context.Context, n int) (float64, error)
	OutsideTemperature(ctx context.Context) (float64, error)
	InsideTemperature(ctx context.Context) (float64, error)
	FeedTemperature(ctx context.Context) (float64, error)
	Hysteresis(ctx context.Context) (float64, error)
	Mode(ctx context.Context) (models.OperationMode, error)
	ValveOpen(ctx context.Context, n int) (bool, error)
	ValveActivated(ctx context.Context, n int) (bool, error)

	SetFeedTemperature(ctx context.Context, v float64) (bool, error)
	SetHysteresis(ctx context.Context, v float64) (bool, error)
	SetMode(ctx context.Context, m models.OperationMode) (bool, error)
	SetValveActivated(ctx context.Context, n int, v bool) (bool, error)
	OpenValve(ctx context.Context, n int) (bool, error)
	CloseValve(ctx context.Context, n int) (bool, error)

	Snapshot(ctx context.Context) (models.DeviceState, error)
	Status() CacheStatus
}

// Authorization authenticates callers and issues bearer tokens.
type Authorization interface {
	Authenticate(username, password string) (models.Principal, error)
	GenerateToken(p models.Principal) (string, error)
	ParseToken(accessToken string) (models.Principal, error)
}

// EventLog exposes the command audit log with filtering.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.CommandEvent, error)
}

// Refresher runs the periodic refresh loop until ctx is cancelled.
type Refresher interface {
	Start(ctx context.Context)
}

// LogFilter narrows an audit log query.
type LogFilter struct {
	From      time.Time // inclusive; zero means no lower bound
	To        time.Time // inclusive; zero means no upper bound
	Operation string
}

// Service aggregates the sub-services used by the HTTP layer.
type Service struct {
	HVAC
	EventLog
	Authorization
	Refresher
}

// NewService wires a state cache, an auth service and an event log
// together.
func NewService(cache *StateCache, auth Authorization, events EventLog) *Service {
	return &Service{
		HVAC:          cache,
		EventLog:      events,
		Authorization: auth,
		Refresher:     cache,
	}
}
