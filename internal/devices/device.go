package devices

import "strings"

// Device is the UI-ready normalized form of one remote entity. Fields are
// a superset across kinds; domain-specific pointers are nil when the
// source attribute is absent. Devices are rebuilt from scratch whenever
// the source record changes, never mutated in place.
type Device struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Domain      string         `json:"domain"`
	Kind        Kind           `json:"kind"`
	State       string         `json:"state"`
	Status      string         `json:"status"`
	DeviceClass string         `json:"deviceClass,omitempty"`
	Icon        string         `json:"icon,omitempty"`
	IconAnim    string         `json:"iconAnimation,omitempty"`
	Actions     []Action       `json:"actions"`
	Attributes  map[string]any `json:"attributes,omitempty"`

	// Light
	Brightness *int `json:"brightness,omitempty"` // 0-100 percent

	// Climate
	Temperature       *float64 `json:"temperature,omitempty"`
	TargetTemperature *float64 `json:"targetTemperature,omitempty"`
	HvacAction        string   `json:"hvacAction,omitempty"`
	HvacModes         []string `json:"hvacModes,omitempty"`
	PresetMode        string   `json:"presetMode,omitempty"`
	PresetModes       []string `json:"presetModes,omitempty"`
	CurrentHumidity   *float64 `json:"currentHumidity,omitempty"`
	TargetHumidity    *float64 `json:"targetHumidity,omitempty"`
	MinTemp           *float64 `json:"minTemp,omitempty"`
	MaxTemp           *float64 `json:"maxTemp,omitempty"`

	// Media player
	MediaTitle    string `json:"mediaTitle,omitempty"`
	MediaArtist   string `json:"mediaArtist,omitempty"`
	AppName       string `json:"appName,omitempty"`
	EntityPicture string `json:"entityPictureUrl,omitempty"`

	// Weather
	Condition string     `json:"condition,omitempty"`
	Forecast  []Forecast `json:"forecast,omitempty"`

	// Cover
	CoverPosition *float64 `json:"currentPosition,omitempty"`

	// Fan
	FanSpeed  *float64 `json:"fanSpeed,omitempty"` // percentage
	FanLevel  string   `json:"fanLevel,omitempty"` // named speed
	FanLevels []string `json:"fanLevels,omitempty"`

	// Sensors
	BatteryLevel *float64 `json:"batteryLevel,omitempty"`
}

// Customization is an optional per-entity override supplied externally.
// The mapper treats it as pure input and never persists it.
type Customization struct {
	Name     string `json:"name,omitempty"`
	Icon     string `json:"icon,omitempty"`
	IconAnim string `json:"iconAnimation,omitempty"`
	Kind     Kind   `json:"type,omitempty"`
	Hidden   bool   `json:"isHidden,omitempty"`
}

// Forecast is side-loaded weather forecast data attached to a weather
// device.
type Forecast struct {
	Datetime    string  `json:"datetime"`
	Condition   string  `json:"condition"`
	Temperature float64 `json:"temperature"`
	TempLow     float64 `json:"templow,omitempty"`
}

// StatusText derives a human status line from the raw state, per domain.
// When no domain rule applies the raw state string is used as-is.
func StatusText(entityID, state string, attrs map[string]any) string {
	switch Domain(entityID) {
	case "climate":
		switch state {
		case "heat":
			return "Heating"
		case "cool":
			return "Cooling"
		case "auto":
			return "Auto"
		case "off":
			return "Off"
		}
		return state

	case "media_player":
		switch state {
		case "playing":
			return "Playing"
		case "paused":
			return "Paused"
		case "idle":
			return "Idle"
		case "off":
			return "Off"
		}
		if title, ok := attrString(attrs, "media_title"); ok {
			return title
		}
		return state

	case "weather":
		if condition, ok := attrString(attrs, "condition"); ok {
			return condition
		}
		return state

	case "cover":
		switch state {
		case "open":
			return "Open"
		case "closed":
			return "Closed"
		case "opening":
			return "Opening"
		case "closing":
			return "Closing"
		}
		return state

	case "lock":
		switch state {
		case "locked":
			return "Locked"
		case "unlocked":
			return "Unlocked"
		}
		return state

	case "person":
		switch state {
		case "home":
			return "Home"
		case "not_home":
			return "Away"
		}
		return state

	case "vacuum":
		switch state {
		case "cleaning":
			return "Cleaning"
		case "returning":
			return "Returning"
		case "docked":
			return "Docked"
		case "idle":
			return "Idle"
		}
		return state

	case "update":
		switch state {
		case "on":
			return "Update available"
		case "off":
			return "Up to date"
		}
		return state

	case "timer":
		switch state {
		case "active":
			return "Active"
		case "idle":
			return "Idle"
		}
		return state

	case "automation", "script", "scene":
		return onOffStatus(state)

	case "binary_sensor":
		switch state {
		case "on":
			return "Detected"
		case "off":
			return "Clear"
		}
		return state

	case "sensor":
		if unit, ok := attrString(attrs, "unit_of_measurement"); ok {
			return strings.TrimSpace(state + " " + unit)
		}
		return state
	}

	return onOffStatus(state)
}

func onOffStatus(state string) string {
	switch state {
	case "on":
		return "On"
	case "off":
		return "Off"
	}
	return state
}
