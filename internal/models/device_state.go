package models

const (
	HeatExchangerCount = 3
	ValveCount         = 4
)

// DeviceState is the cached snapshot of the remote unit.
// Arrays are fixed-size so that copying the struct copies everything.
type DeviceState struct {
	HeatExchangerTemperatures [HeatExchangerCount]float64 // °C, index 1..3
	OutsideTemperature        float64                     // °C
	InsideTemperature         float64                     // °C
	FeedTemperature           float64                     // °C
	Hysteresis                float64
	ValveOpenStates           [ValveCount]bool // index 1..4
	ValveActivatedStates      [ValveCount]bool // index 1..4
	Mode                      OperationMode
}

// NewDeviceState returns the startup snapshot: zeros, closed, MANUAL.
func NewDeviceState() DeviceState {
	return DeviceState{Mode: ModeManual}
}

// ValidateHeatExchanger checks n against 1..3.
func ValidateHeatExchanger(n int) error {
	if n < 1 || n > HeatExchangerCount {
		return newValidationError("heat exchanger number", n, "must be 1-3")
	}
	return nil
}

// ValidateValve checks n against 1..4.
func ValidateValve(n int) error {
	if n < 1 || n > ValveCount {
		return newValidationError("valve number", n, "must be 1-4")
	}
	return nil
}

func (s DeviceState) HeatExchangerTemperature(n int) (float64, error) {
	if err := ValidateHeatExchanger(n); err != nil {
		return 0, err
	}
	return s.HeatExchangerTemperatures[n-1], nil
}

func (s DeviceState) ValveOpen(n int) (bool, error) {
	if err := ValidateValve(n); err != nil {
		return false, err
	}
	return s.ValveOpenStates[n-1], nil
}

func (s DeviceState) ValveActivated(n int) (bool, error) {
	if err := ValidateValve(n); err != nil {
		return false, err
	}
	return s.ValveActivatedStates[n-1], nil
}

// FlatState is the wire form of DeviceState: one key per device property,
// named exactly like the device's own properties.
type FlatState struct {
	TemperatureHe1     float64       `json:"temperatureHe1"`
	TemperatureHe2     float64       `json:"temperatureHe2"`
	TemperatureHe3     float64       `json:"temperatureHe3"`
	TemperatureOutside float64       `json:"temperatureOutside"`
	TemperatureInside  float64       `json:"temperatureInside"`
	TemperatureFeed    float64       `json:"temperatureFeed"`
	Hysteresis         float64       `json:"hysteresis"`
	Mode               OperationMode `json:"mode"`
	ValveOpened1       bool          `json:"valveOpened1"`
	ValveOpened2       bool          `json:"valveOpened2"`
	ValveOpened3       bool          `json:"valveOpened3"`
	ValveOpened4       bool          `json:"valveOpened4"`
	ValveActivated1    bool          `json:"valveActivated1"`
	ValveActivated2    bool          `json:"valveActivated2"`
	ValveActivated3    bool          `json:"valveActivated3"`
	ValveActivated4    bool          `json:"valveActivated4"`
}

// Flat converts the snapshot to its wire form.
func (s DeviceState) Flat() FlatState {
	return FlatState{
		TemperatureHe1:     s.HeatExchangerTemperatures[0],
		TemperatureHe2:     s.HeatExchangerTemperatures[1],
		TemperatureHe3:     s.HeatExchangerTemperatures[2],
		TemperatureOutside: s.OutsideTemperature,
		TemperatureInside:  s.InsideTemperature,
		TemperatureFeed:    s.FeedTemperature,
		Hysteresis:         s.Hysteresis,
		Mode:               s.Mode,
		ValveOpened1:       s.ValveOpenStates[0],
		ValveOpened2:       s.ValveOpenStates[1],
		ValveOpened3:       s.ValveOpenStates[2],
		ValveOpened4:       s.ValveOpenStates[3],
		ValveActivated1:    s.ValveActivatedStates[0],
		ValveActivated2:    s.ValveActivatedStates[1],
		ValveActivated3:    s.ValveActivatedStates[2],
		ValveActivated4:    s.ValveActivatedStates[3],
	}
}

// State converts the wire form back to a snapshot.
func (f FlatState) State() DeviceState {
	return DeviceState{
		HeatExchangerTemperatures: [HeatExchangerCount]float64{f.TemperatureHe1, f.TemperatureHe2, f.TemperatureHe3},
		OutsideTemperature:        f.TemperatureOutside,
		InsideTemperature:         f.TemperatureInside,
		FeedTemperature:           f.TemperatureFeed,
		Hysteresis:                f.Hysteresis,
		ValveOpenStates:           [ValveCount]bool{f.ValveOpened1, f.ValveOpened2, f.ValveOpened3, f.ValveOpened4},
		ValveActivatedStates:      [ValveCount]bool{f.ValveActivated1, f.ValveActivated2, f.ValveActivated3, f.ValveActivated4},
		Mode:                      f.Mode,
	}
}
