package devices

import (
	"math"

	"homedash/internal/ha"
)

// Map builds the Device for one raw entity record. Customization and
// forecast are optional. It returns nil only for a structurally unusable
// record; merely-missing attributes just leave their fields empty.
func Map(raw ha.State, cust *Customization, forecast []Forecast) *Device {
	domain := Domain(raw.EntityID)
	if raw.EntityID == "" || domain == "" {
		return nil
	}

	attrs := raw.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}

	kind := Classify(raw.EntityID, attrs)
	if cust != nil && cust.Kind != "" {
		kind = cust.Kind
	}

	device := &Device{
		ID:         raw.EntityID,
		Name:       displayName(raw, cust),
		Domain:     domain,
		Kind:       kind,
		State:      raw.State,
		Status:     StatusText(raw.EntityID, raw.State, attrs),
		Actions:    ActionsFor(raw.EntityID),
		Attributes: attrs,
	}
	if class, ok := attrString(attrs, "device_class"); ok {
		device.DeviceClass = class
	}

	switch domain {
	case "light":
		if brightness, ok := attrFloat(attrs, "brightness"); ok {
			// Raw brightness is 0-255; the UI wants a percentage.
			percent := int(math.Round(brightness / 2.55))
			device.Brightness = &percent
		}

	case "climate":
		device.Temperature = floatPtr(attrs, "current_temperature")
		device.TargetTemperature = floatPtr(attrs, "temperature")
		device.CurrentHumidity = floatPtr(attrs, "current_humidity")
		device.TargetHumidity = floatPtr(attrs, "target_humidity")
		device.MinTemp = floatPtr(attrs, "min_temp")
		device.MaxTemp = floatPtr(attrs, "max_temp")
		device.HvacAction, _ = attrString(attrs, "hvac_action")
		device.PresetMode, _ = attrString(attrs, "preset_mode")
		device.HvacModes, _ = attrStrings(attrs, "hvac_modes")
		device.PresetModes, _ = attrStrings(attrs, "preset_modes")

	case "media_player":
		device.MediaTitle, _ = attrString(attrs, "media_title")
		device.MediaArtist, _ = attrString(attrs, "media_artist")
		device.AppName, _ = attrString(attrs, "app_name")
		device.EntityPicture, _ = attrString(attrs, "entity_picture")

	case "weather":
		device.Condition, _ = attrString(attrs, "condition")
		device.Forecast = forecast

	case "cover":
		device.CoverPosition = floatPtr(attrs, "current_position")

	case "fan":
		if percentage, ok := attrFloat(attrs, "percentage"); ok {
			device.FanSpeed = &percentage
		} else if level, ok := attrString(attrs, "speed"); ok {
			device.FanLevel = level
		}
		device.FanLevels, _ = attrStrings(attrs, "speed_list")

	case "sensor", "binary_sensor":
		device.BatteryLevel = floatPtr(attrs, "battery_level")
	}

	if cust != nil {
		if cust.Icon != "" {
			device.Icon = cust.Icon
		}
		if cust.IconAnim != "" {
			device.IconAnim = cust.IconAnim
		}
	}

	return device
}

func displayName(raw ha.State, cust *Customization) string {
	if cust != nil && cust.Name != "" {
		return cust.Name
	}
	if name, ok := attrString(raw.Attributes, "friendly_name"); ok {
		return name
	}
	return raw.EntityID
}

func floatPtr(attrs map[string]any, key string) *float64 {
	value, ok := attrFloat(attrs, key)
	if !ok {
		return nil
	}
	return &value
}
