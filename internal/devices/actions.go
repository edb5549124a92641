package devices

// Action is one invocable service call a dashboard card can offer for a
// device. Data always carries the entity id.
type Action struct {
	ID      string         `json:"id"`
	Label   string         `json:"label"`
	Icon    string         `json:"icon,omitempty"`
	Service string         `json:"service"`
	Data    map[string]any `json:"data"`
	Primary bool           `json:"primary,omitempty"`
}

var toggleDomains = map[string]bool{
	"light":      true,
	"switch":     true,
	"fan":        true,
	"humidifier": true,
}

// ActionsFor resolves the fixed action set for an entity's domain.
// Domains with no table entry get an empty list, never an error.
func ActionsFor(entityID string) []Action {
	domain := Domain(entityID)
	payload := map[string]any{"entity_id": entityID}

	if toggleDomains[domain] {
		return []Action{{
			ID:      "toggle",
			Label:   "Toggle",
			Icon:    "mdi:power",
			Service: domain + ".toggle",
			Data:    payload,
			Primary: true,
		}}
	}

	switch domain {
	case "climate":
		return []Action{{
			ID:      "set_temperature",
			Label:   "Temperature",
			Icon:    "mdi:thermostat",
			Service: "climate.set_temperature",
			Data:    payload,
		}}

	case "media_player":
		return []Action{{
			ID:      "play_pause",
			Label:   "Play/Pause",
			Icon:    "mdi:play-pause",
			Service: "media_player.media_play_pause",
			Data:    payload,
			Primary: true,
		}}

	case "vacuum":
		return []Action{
			{
				ID:      "start",
				Label:   "Start",
				Icon:    "mdi:play",
				Service: "vacuum.start",
				Data:    payload,
				Primary: true,
			},
			{
				ID:      "return_to_base",
				Label:   "Return to base",
				Icon:    "mdi:home-export-outline",
				Service: "vacuum.return_to_base",
				Data:    payload,
			},
		}

	case "script":
		return []Action{{
			ID:      "run",
			Label:   "Run",
			Icon:    "mdi:play",
			Service: "script.turn_on",
			Data:    payload,
			Primary: true,
		}}

	case "automation":
		return []Action{{
			ID:      "trigger",
			Label:   "Trigger",
			Icon:    "mdi:play",
			Service: "automation.trigger",
			Data:    payload,
			Primary: true,
		}}

	case "button", "input_button":
		return []Action{{
			ID:      "press",
			Label:   "Press",
			Icon:    "mdi:gesture-tap-button",
			Service: "button.press",
			Data:    payload,
			Primary: true,
		}}
	}

	return []Action{}
}
