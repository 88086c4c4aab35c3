package device

import "strconv"

// Property and action names on the device API. Indexed names take the
// 1-based index as a suffix, e.g. temperatureHe2, openValve4.
const (
	PropTemperatureHe      = "temperatureHe"
	PropTemperatureOutside = "temperatureOutside"
	PropTemperatureInside  = "temperatureInside"
	PropTemperatureFeed    = "temperatureFeed"
	PropHysteresis         = "hysteresis"
	PropMode               = "mode"
	PropValveOpened        = "valveOpened"
	PropValveActivated     = "valveActivated"

	ActionOpenValve  = "openValve"
	ActionCloseValve = "closeValve"
)

// Indexed returns name followed by n.
func Indexed(name string, n int) string { return name + strconv.Itoa(n) }
