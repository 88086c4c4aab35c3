// Package emulator is an in-memory stand-in for the HVAC unit. It serves
// the same property/action API as the real device.
package emulator

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"hvac_gateway/internal/models"
)

// ----------- Simulation constants -----------
const (
	DefaultOutsideC     = 21.5 // °C
	DefaultInsideC      = 20.0
	DefaultFeedC        = 45.0
	DefaultHysteresis   = 2.0
	HeatingRatePerSec   = 0.02 // share of the gap closed per second while heating
	CoolingRatePerSec   = 0.01 // share of the gap closed per second while idle
	ExchangerRatePerSec = 0.1
)

// Device holds the emulated unit state.
type Device struct {
	mu         sync.Mutex
	state      models.DeviceState
	failStatus int
	lastTick   time.Time
}

// NewDevice returns a unit with plausible starting values.
func NewDevice() *Device {
	st := models.NewDeviceState()
	st.OutsideTemperature = DefaultOutsideC
	st.InsideTemperature = DefaultInsideC
	st.FeedTemperature = DefaultFeedC
	st.Hysteresis = DefaultHysteresis
	for i := range st.HeatExchangerTemperatures {
		st.HeatExchangerTemperatures[i] = DefaultInsideC
	}
	return &Device{state: st}
}

// State returns a copy of the current state.
func (d *Device) State() models.DeviceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Update applies fn to the state under the lock.
func (d *Device) Update(fn func(st *models.DeviceState)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.state)
}

// FailWith makes every request answer with status until FailWith(0).
func (d *Device) FailWith(status int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failStatus = status
}

func (d *Device) failure() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.failStatus
}

// Run ticks at the given interval until ctx is canceled. A non-positive
// interval disables the simulation.
func (d *Device) Run(ctx context.Context, tick time.Duration) {
	if tick <= 0 {
		return
	}
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			d.mu.Lock()
			if !d.lastTick.IsZero() {
				step(&d.state, now.Sub(d.lastTick).Seconds())
			}
			d.lastTick = now
			d.mu.Unlock()
		}
	}
}

// heating reports whether any activated valve is open.
func heating(st *models.DeviceState) bool {
	for i := range st.ValveOpenStates {
		if st.ValveOpenStates[i] && st.ValveActivatedStates[i] {
			return true
		}
	}
	return false
}

// step advances the thermal model by elapsed seconds. Inside temperature
// approaches feed while heating and outside otherwise; exchangers follow
// feed while heating and inside otherwise.
func step(st *models.DeviceState, elapsed float64) {
	if elapsed <= 0 {
		return
	}
	target, rate := st.OutsideTemperature, CoolingRatePerSec
	exchangerTarget := st.InsideTemperature
	if heating(st) {
		target, rate = st.FeedTemperature, HeatingRatePerSec
		exchangerTarget = st.FeedTemperature
	}
	st.InsideTemperature = approach(st.InsideTemperature, target, rate*elapsed)
	for i := range st.HeatExchangerTemperatures {
		st.HeatExchangerTemperatures[i] = approach(st.HeatExchangerTemperatures[i], exchangerTarget, ExchangerRatePerSec*elapsed)
	}
}

// approach moves v toward target by share of the gap, clamped to target.
func approach(v, target, share float64) float64 {
	if share >= 1 {
		return target
	}
	next := v + (target-v)*share
	return math.Round(next*100) / 100
}

// property returns the value of a named property.
func (d *Device) property(name string) (any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := &d.state

	switch name {
	case "temperatureOutside":
		return st.OutsideTemperature, true
	case "temperatureInside":
		return st.InsideTemperature, true
	case "temperatureFeed":
		return st.FeedTemperature, true
	case "hysteresis":
		return st.Hysteresis, true
	case "mode":
		return st.Mode.String(), true
	}
	if n, ok := indexed(name, "temperatureHe", models.HeatExchangerCount); ok {
		return st.HeatExchangerTemperatures[n-1], true
	}
	if n, ok := indexed(name, "valveOpened", models.ValveCount); ok {
		return st.ValveOpenStates[n-1], true
	}
	if n, ok := indexed(name, "valveActivated", models.ValveCount); ok {
		return st.ValveActivatedStates[n-1], true
	}
	return nil, false
}

// all returns every property keyed by name.
func (d *Device) all() map[string]any {
	flat := d.State().Flat()
	return map[string]any{
		"temperatureHe1":     flat.TemperatureHe1,
		"temperatureHe2":     flat.TemperatureHe2,
		"temperatureHe3":     flat.TemperatureHe3,
		"temperatureOutside": flat.TemperatureOutside,
		"temperatureInside":  flat.TemperatureInside,
		"temperatureFeed":    flat.TemperatureFeed,
		"hysteresis":         flat.Hysteresis,
		"mode":               flat.Mode.String(),
		"valveOpened1":       flat.ValveOpened1,
		"valveOpened2":       flat.ValveOpened2,
		"valveOpened3":       flat.ValveOpened3,
		"valveOpened4":       flat.ValveOpened4,
		"valveActivated1":    flat.ValveActivated1,
		"valveActivated2":    flat.ValveActivated2,
		"valveActivated3":    flat.ValveActivated3,
		"valveActivated4":    flat.ValveActivated4,
	}
}

// errUnknown marks a property or action the device does not have.
type errUnknown string

func (e errUnknown) Error() string { return "unknown " + string(e) }

// write sets a writable property from its textual body.
func (d *Device) write(name, body string) error {
	raw := strings.Trim(strings.TrimSpace(body), `"`)

	switch name {
	case "temperatureFeed", "hysteresis":
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		d.Update(func(st *models.DeviceState) {
			if name == "hysteresis" {
				st.Hysteresis = v
			} else {
				st.FeedTemperature = v
			}
		})
		return nil
	case "mode":
		m, err := models.ParseOperationMode(raw)
		if err != nil {
			return err
		}
		d.Update(func(st *models.DeviceState) { st.Mode = m })
		return nil
	}
	if n, ok := indexed(name, "valveActivated", models.ValveCount); ok {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		d.Update(func(st *models.DeviceState) { st.ValveActivatedStates[n-1] = v })
		return nil
	}
	return errUnknown("property " + name)
}

// act runs openValveN / closeValveN.
func (d *Device) act(name string) error {
	if n, ok := indexed(name, "openValve", models.ValveCount); ok {
		d.Update(func(st *models.DeviceState) { st.ValveOpenStates[n-1] = true })
		return nil
	}
	if n, ok := indexed(name, "closeValve", models.ValveCount); ok {
		d.Update(func(st *models.DeviceState) { st.ValveOpenStates[n-1] = false })
		return nil
	}
	return errUnknown("action " + name)
}

// indexed parses "{prefix}{n}" with n in 1..max.
func indexed(name, prefix string, max int) (int, bool) {
	if !strings.HasPrefix(name, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(name[len(prefix):])
	if err != nil || n < 1 || n > max {
		return 0, false
	}
	return n, true
}
