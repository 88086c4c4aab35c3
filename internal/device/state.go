package device

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"hvac_gateway/internal/models"
)

// FetchState reads the whole device state, in one request when the client
// is in bulk mode and property by property otherwise.
func (c *Client) FetchState(ctx context.Context) (models.DeviceState, error) {
	if c.bulk {
		return c.FetchAll(ctx)
	}
	return c.FetchEach(ctx)
}

// FetchAll reads GET /all/properties. Every property must be present; a
// missing key or a bad mode token fails the whole read.
func (c *Client) FetchAll(ctx context.Context) (models.DeviceState, error) {
	const op = "read all properties"

	b, err := c.do(ctx, op, http.MethodGet, "/all/properties", "")
	if err != nil {
		return models.DeviceState{}, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return models.DeviceState{}, &RemoteError{Op: op, Err: fmt.Errorf("decode body: %w", err)}
	}

	pick := func(name string, dst any) error {
		v, ok := raw[name]
		if !ok {
			return &RemoteError{Op: op, Err: fmt.Errorf("property %s missing", name)}
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return &RemoteError{Op: op, Err: fmt.Errorf("property %s: %w", name, err)}
		}
		return nil
	}

	st := models.NewDeviceState()
	for i := 0; i < models.HeatExchangerCount; i++ {
		if err := pick(Indexed(PropTemperatureHe, i+1), &st.HeatExchangerTemperatures[i]); err != nil {
			return models.DeviceState{}, err
		}
	}
	scalars := []struct {
		name string
		dst  *float64
	}{
		{PropTemperatureOutside, &st.OutsideTemperature},
		{PropTemperatureInside, &st.InsideTemperature},
		{PropTemperatureFeed, &st.FeedTemperature},
		{PropHysteresis, &st.Hysteresis},
	}
	for _, s := range scalars {
		if err := pick(s.name, s.dst); err != nil {
			return models.DeviceState{}, err
		}
	}
	for i := 0; i < models.ValveCount; i++ {
		if err := pick(Indexed(PropValveOpened, i+1), &st.ValveOpenStates[i]); err != nil {
			return models.DeviceState{}, err
		}
		if err := pick(Indexed(PropValveActivated, i+1), &st.ValveActivatedStates[i]); err != nil {
			return models.DeviceState{}, err
		}
	}
	var token string
	if err := pick(PropMode, &token); err != nil {
		return models.DeviceState{}, err
	}
	mode, err := models.ParseOperationMode(token)
	if err != nil {
		return models.DeviceState{}, &RemoteError{Op: op, Err: err}
	}
	st.Mode = mode
	return st, nil
}

// FetchEach reads every property with its own request, in a fixed order.
// The first failure aborts the read.
func (c *Client) FetchEach(ctx context.Context) (models.DeviceState, error) {
	st := models.NewDeviceState()
	var err error

	for n := 1; n <= models.HeatExchangerCount; n++ {
		if st.HeatExchangerTemperatures[n-1], err = c.HeatExchangerTemperature(ctx, n); err != nil {
			return models.DeviceState{}, err
		}
	}
	if st.OutsideTemperature, err = c.OutsideTemperature(ctx); err != nil {
		return models.DeviceState{}, err
	}
	if st.InsideTemperature, err = c.InsideTemperature(ctx); err != nil {
		return models.DeviceState{}, err
	}
	if st.FeedTemperature, err = c.FeedTemperature(ctx); err != nil {
		return models.DeviceState{}, err
	}
	if st.Hysteresis, err = c.Hysteresis(ctx); err != nil {
		return models.DeviceState{}, err
	}
	for n := 1; n <= models.ValveCount; n++ {
		if st.ValveOpenStates[n-1], err = c.ValveOpened(ctx, n); err != nil {
			return models.DeviceState{}, err
		}
		if st.ValveActivatedStates[n-1], err = c.ValveActivated(ctx, n); err != nil {
			return models.DeviceState{}, err
		}
	}
	token, err := c.ModeToken(ctx)
	if err != nil {
		return models.DeviceState{}, err
	}
	if st.Mode, err = models.ParseOperationMode(token); err != nil {
		return models.DeviceState{}, &RemoteError{Op: "read " + PropMode, Err: err}
	}
	return st, nil
}
