package service

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"hvac_gateway/internal/logger"
	"hvac_gateway/internal/models"

	"golang.org/x/sync/singleflight"
)

// DefaultRefreshInterval is the background refresh period when none is
// configured.
const DefaultRefreshInterval = 30 * time.Second

// DeviceClient is the subset of the remote device API the cache needs.
type DeviceClient interface {
	FetchState(ctx context.Context) (models.DeviceState, error)
	SetFeedTemperature(ctx context.Context, v float64) (bool, error)
	SetHysteresis(ctx context.Context, v float64) (bool, error)
	SetMode(ctx context.Context, m models.OperationMode) (bool, error)
	SetValveActivated(ctx context.Context, n int, v bool) (bool, error)
	OpenValve(ctx context.Context, n int) (bool, error)
	CloseValve(ctx context.Context, n int) (bool, error)
}

// SnapshotSink receives every newly published snapshot.
type SnapshotSink interface {
	Publish(ctx context.Context, st models.DeviceState) error
}

// CommandRecorder stores audit entries for writes.
type CommandRecorder interface {
	Append(ctx context.Context, e models.CommandEvent) error
}

// CacheStatus describes the freshness of the snapshot.
type CacheStatus struct {
	Populated   bool      `json:"populated"`
	LastRefresh time.Time `json:"last_refresh,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

// StateCacheOptions configures a StateCache. Zero values get defaults.
type StateCacheOptions struct {
	Interval time.Duration
	Log      *logger.Logger
	Sinks    []SnapshotSink
	Recorder CommandRecorder
	Now      func() time.Time
}

// StateCache holds the last known DeviceState and keeps it fresh.
//
// The mutex guards only the snapshot swap; device I/O never happens under
// it. Every refresh draws a ticket when it starts and publishes only if no
// refresh with a later ticket has published first.
type StateCache struct {
	client   DeviceClient
	interval time.Duration
	log      *logger.Logger
	sinks    []SnapshotSink
	recorder CommandRecorder
	now      func() time.Time

	mu          sync.RWMutex
	state       models.DeviceState
	populated   bool
	published   uint64
	lastRefresh time.Time
	lastErr     string

	tickets   atomic.Uint64
	populate  singleflight.Group
	startOnce sync.Once

	// notifyMu orders sink delivery; notified is the last delivered ticket.
	notifyMu sync.Mutex
	notified uint64
}

// NewStateCache returns an empty cache. Nothing is fetched until the first
// read or Start.
func NewStateCache(client DeviceClient, opts StateCacheOptions) *StateCache {
	if opts.Interval <= 0 {
		opts.Interval = DefaultRefreshInterval
	}
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &StateCache{
		client:   client,
		interval: opts.Interval,
		log:      opts.Log,
		sinks:    opts.Sinks,
		recorder: opts.Recorder,
		now:      opts.Now,
		state:    models.NewDeviceState(),
	}
}

// Refresh fetches the full device state and publishes it. On failure the
// previous snapshot is kept and the error is returned.
func (c *StateCache) Refresh(ctx context.Context) error {
	ticket := c.tickets.Add(1)

	st, err := c.client.FetchState(ctx)
	if err != nil {
		c.mu.Lock()
		if ticket > c.published {
			c.lastErr = err.Error()
		}
		c.mu.Unlock()
		c.log.Warnw("refresh_failed", "ticket", ticket, "error", err)
		return err
	}

	c.mu.Lock()
	if ticket < c.published {
		c.mu.Unlock()
		c.log.Debugw("refresh_superseded", "ticket", ticket)
		return nil
	}
	c.state = st
	c.populated = true
	c.published = ticket
	c.lastRefresh = c.now()
	c.lastErr = ""
	c.mu.Unlock()

	c.notify(ctx, ticket, st)
	return nil
}

// notify hands a published snapshot to the sinks. A snapshot older than one
// already delivered is dropped so retained messages never go backwards.
func (c *StateCache) notify(ctx context.Context, ticket uint64, st models.DeviceState) {
	if len(c.sinks) == 0 {
		return
	}
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if ticket < c.notified {
		c.log.Debugw("snapshot_publish_superseded", "ticket", ticket)
		return
	}
	c.notified = ticket
	for _, s := range c.sinks {
		if err := s.Publish(ctx, st); err != nil {
			c.log.Warnw("snapshot_publish_failed", "error", err)
		}
	}
}

// Start launches the background refresh loop: one refresh right away, then
// one per interval until ctx is done. Calls after the first are no-ops.
func (c *StateCache) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		go c.run(ctx)
	})
}

func (c *StateCache) run(ctx context.Context) {
	c.log.Infow("refresh_loop_started", "interval", c.interval.String())
	_ = c.Refresh(ctx)

	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			c.log.Infow("refresh_loop_stopped")
			return
		case <-t.C:
			_ = c.Refresh(ctx)
		}
	}
}

// Populated reports whether at least one refresh has succeeded.
func (c *StateCache) Populated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.populated
}

// LastRefresh is the time of the last published snapshot.
func (c *StateCache) LastRefresh() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRefresh
}

// Status reports populated flag, last refresh time and last refresh error.
func (c *StateCache) Status() CacheStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStatus{Populated: c.populated, LastRefresh: c.lastRefresh, LastError: c.lastErr}
}

// snapshot returns a copy of the current state, populating it first if no
// refresh has succeeded yet. Concurrent first readers share one fetch; it
// runs detached from any one reader's context and is bounded by the device
// client timeout. A reader whose context ends stops waiting.
func (c *StateCache) snapshot(ctx context.Context) (models.DeviceState, error) {
	c.mu.RLock()
	st, ok := c.state, c.populated
	c.mu.RUnlock()
	if ok {
		return st, nil
	}

	ch := c.populate.DoChan("populate", func() (any, error) {
		if c.Populated() {
			return nil, nil
		}
		return nil, c.Refresh(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return models.DeviceState{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return models.DeviceState{}, res.Err
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state, nil
}

// Snapshot returns the whole state by value.
func (c *StateCache) Snapshot(ctx context.Context) (models.DeviceState, error) {
	return c.snapshot(ctx)
}

func (c *StateCache) HeatExchangerTemperature(ctx context.Context, n int) (float64, error) {
	if err := models.ValidateHeatExchanger(n); err != nil {
		return 0, err
	}
	st, err := c.snapshot(ctx)
	if err != nil {
		return 0, err
	}
	return st.HeatExchangerTemperature(n)
}

func (c *StateCache) OutsideTemperature(ctx context.Context) (float64, error) {
	st, err := c.snapshot(ctx)
	return st.OutsideTemperature, err
}

func (c *StateCache) InsideTemperature(ctx context.Context) (float64, error) {
	st, err := c.snapshot(ctx)
	return st.InsideTemperature, err
}

func (c *StateCache) FeedTemperature(ctx context.Context) (float64, error) {
	st, err := c.snapshot(ctx)
	return st.FeedTemperature, err
}

func (c *StateCache) Hysteresis(ctx context.Context) (float64, error) {
	st, err := c.snapshot(ctx)
	return st.Hysteresis, err
}

func (c *StateCache) Mode(ctx context.Context) (models.OperationMode, error) {
	st, err := c.snapshot(ctx)
	return st.Mode, err
}

func (c *StateCache) ValveOpen(ctx context.Context, n int) (bool, error) {
	if err := models.ValidateValve(n); err != nil {
		return false, err
	}
	st, err := c.snapshot(ctx)
	if err != nil {
		return false, err
	}
	return st.ValveOpen(n)
}

func (c *StateCache) ValveActivated(ctx context.Context, n int) (bool, error) {
	if err := models.ValidateValve(n); err != nil {
		return false, err
	}
	st, err := c.snapshot(ctx)
	if err != nil {
		return false, err
	}
	return st.ValveActivated(n)
}

func (c *StateCache) SetFeedTemperature(ctx context.Context, v float64) (bool, error) {
	return c.write(ctx, models.OpSetTemperatureFeed, formatFloat(v), func(ctx context.Context) (bool, error) {
		return c.client.SetFeedTemperature(ctx, v)
	})
}

func (c *StateCache) SetHysteresis(ctx context.Context, v float64) (bool, error) {
	return c.write(ctx, models.OpSetHysteresis, formatFloat(v), func(ctx context.Context) (bool, error) {
		return c.client.SetHysteresis(ctx, v)
	})
}

func (c *StateCache) SetMode(ctx context.Context, m models.OperationMode) (bool, error) {
	return c.write(ctx, models.OpSetMode, m.String(), func(ctx context.Context) (bool, error) {
		return c.client.SetMode(ctx, m)
	})
}

func (c *StateCache) SetValveActivated(ctx context.Context, n int, v bool) (bool, error) {
	if err := models.ValidateValve(n); err != nil {
		return false, err
	}
	value := strconv.Itoa(n) + "=" + strconv.FormatBool(v)
	return c.write(ctx, models.OpSetValveActivated, value, func(ctx context.Context) (bool, error) {
		return c.client.SetValveActivated(ctx, n, v)
	})
}

func (c *StateCache) OpenValve(ctx context.Context, n int) (bool, error) {
	if err := models.ValidateValve(n); err != nil {
		return false, err
	}
	return c.write(ctx, models.OpSetValve, string(models.ValveOpen)+" "+strconv.Itoa(n), func(ctx context.Context) (bool, error) {
		return c.client.OpenValve(ctx, n)
	})
}

func (c *StateCache) CloseValve(ctx context.Context, n int) (bool, error) {
	if err := models.ValidateValve(n); err != nil {
		return false, err
	}
	return c.write(ctx, models.OpSetValve, string(models.ValveClose)+" "+strconv.Itoa(n), func(ctx context.Context) (bool, error) {
		return c.client.CloseValve(ctx, n)
	})
}

// write sends one command, records it, and on success runs exactly one
// refresh. The refresh outcome never changes the result.
func (c *StateCache) write(ctx context.Context, op models.Operation, value string, send func(context.Context) (bool, error)) (bool, error) {
	ok, err := send(ctx)
	c.record(ctx, op, value, ok, err)
	if err != nil {
		c.log.Errorw("device_write_failed", "operation", op, "value", value, "error", err)
		return false, err
	}
	if !ok {
		return false, nil
	}

	// The caller may go away once the command has been accepted; the
	// follow-up refresh still runs.
	if rerr := c.Refresh(context.WithoutCancel(ctx)); rerr != nil {
		c.log.Warnw("post_write_refresh_failed", "operation", op, "error", rerr)
	}
	return true, nil
}

func (c *StateCache) record(ctx context.Context, op models.Operation, value string, ok bool, err error) {
	if c.recorder == nil {
		return
	}
	ev := models.CommandEvent{
		OccurredAt: c.now().UTC(),
		Operation:  op,
		Value:      value,
		Actor:      ActorFrom(ctx),
		Success:    ok && err == nil,
	}
	if err != nil {
		ev.Message = err.Error()
	}
	if aerr := c.recorder.Append(context.WithoutCancel(ctx), ev); aerr != nil {
		c.log.Warnw("audit_append_failed", "operation", op, "error", aerr)
	}
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
