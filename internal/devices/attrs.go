package devices

// Attribute bags arrive as free-form JSON objects. Every accessor here
// treats a key as optionally absent and skips type mismatches instead of
// failing, so one odd attribute never poisons a device.

func attrString(attrs map[string]any, key string) (string, bool) {
	value, ok := attrs[key]
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func attrFloat(attrs map[string]any, key string) (float64, bool) {
	value, ok := attrs[key]
	if !ok {
		return 0, false
	}
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func attrStrings(attrs map[string]any, key string) ([]string, bool) {
	value, ok := attrs[key]
	if !ok {
		return nil, false
	}
	raw, ok := value.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}
