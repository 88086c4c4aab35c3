// Package telemetry forwards published device snapshots to external
// systems.
package telemetry

import (
	"context"
	"errors"

	"hvac_gateway/internal/models"
)

// ErrDisabled is returned by constructors whose sink is turned off in
// config.
var ErrDisabled = errors.New("telemetry sink disabled")

// Sink receives device snapshots.
type Sink interface {
	Publish(ctx context.Context, st models.DeviceState) error
	Close() error
}
