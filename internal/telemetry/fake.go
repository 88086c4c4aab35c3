package telemetry

import (
	"context"
	"sync"

	"hvac_gateway/internal/models"
)

// FakeSink records snapshots in memory.
type FakeSink struct {
	mu        sync.Mutex
	snapshots []models.DeviceState
	Err       error
	closed    bool
}

func (f *FakeSink) Publish(_ context.Context, st models.DeviceState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, st)
	return f.Err
}

func (f *FakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Snapshots returns a copy of everything published so far.
func (f *FakeSink) Snapshots() []models.DeviceState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.DeviceState(nil), f.snapshots...)
}

func (f *FakeSink) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
