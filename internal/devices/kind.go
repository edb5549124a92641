package devices

import "strings"

// Kind is the behavioral classification used to pick UI treatment for a
// device.
type Kind string

const (
	KindSwitch        Kind = "switch"
	KindLight         Kind = "light"
	KindDimmableLight Kind = "dimmable_light"
	KindSensor        Kind = "sensor"
	KindClimate       Kind = "climate"
	KindMedia         Kind = "media"
	KindVacuum        Kind = "vacuum"
	KindButton        Kind = "button"
	KindInfo          Kind = "info"
)

// Domain returns the category prefix of an entity id, the text before the
// first dot. An id with no separator has no domain.
func Domain(entityID string) string {
	domain, _, found := strings.Cut(entityID, ".")
	if !found {
		return ""
	}
	return domain
}

var switchLikeDomains = map[string]bool{
	"switch":     true,
	"fan":        true,
	"humidifier": true,
	"siren":      true,
	"valve":      true,
	"lock":       true,
}

var sensorLikeDomains = map[string]bool{
	"sensor":        true,
	"binary_sensor": true,
	"number":        true,
	"text":          true,
}

// Classify maps an entity id and attribute bag to a Kind. Rule order
// matters: attribute-based rules are more specific than domain tables, so
// a light with a brightness attribute is dimmable before it is a light.
func Classify(entityID string, attrs map[string]any) Kind {
	domain := Domain(entityID)

	if domain == "light" {
		if _, ok := attrs["brightness"]; ok {
			return KindDimmableLight
		}
		return KindLight
	}

	if switchLikeDomains[domain] {
		return KindSwitch
	}
	if sensorLikeDomains[domain] {
		return KindSensor
	}

	switch domain {
	case "climate":
		return KindClimate
	case "media_player":
		return KindMedia
	case "vacuum":
		return KindVacuum
	case "script", "automation", "button", "input_button":
		return KindButton
	}

	return KindInfo
}
