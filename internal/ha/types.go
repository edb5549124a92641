package ha

import (
	"encoding/json"
	"time"
)

// Message is the base frame exchanged with Home Assistant over the
// websocket API.
type Message struct {
	ID      int             `json:"id,omitempty"`
	Type    string          `json:"type"`
	Success *bool           `json:"success,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *APIError       `json:"error,omitempty"`
	Event   *Event          `json:"event,omitempty"`
}

// APIError is the error payload of a failed result frame.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// authMessage carries the access token during the handshake.
type authMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

// commandRequest is a request frame with no parameters beyond its type,
// e.g. get_states or the registry list commands.
type commandRequest struct {
	ID   int    `json:"id"`
	Type string `json:"type"`
}

// subscribeEventsRequest subscribes the session to a remote event type.
type subscribeEventsRequest struct {
	ID        int    `json:"id"`
	Type      string `json:"type"`
	EventType string `json:"event_type,omitempty"`
}

// callServiceRequest invokes a remote service.
type callServiceRequest struct {
	ID          int            `json:"id"`
	Type        string         `json:"type"`
	Domain      string         `json:"domain"`
	Service     string         `json:"service"`
	ServiceData map[string]any `json:"service_data,omitempty"`
}

// Event is the envelope of an inbound event frame.
type Event struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	TimeFired time.Time       `json:"time_fired"`
}

// stateChangedEvent is the payload of a state_changed event.
type stateChangedEvent struct {
	EntityID string `json:"entity_id"`
	NewState *State `json:"new_state"`
	OldState *State `json:"old_state"`
}

// State is one raw entity record as reported by the backend. The
// attribute bag is free-form; downstream extraction must treat every key
// as optionally absent.
type State struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
}

// ConnectionStatus reports the session's link state. One value exists per
// backend; updates merge by field so BackendID survives every transition.
type ConnectionStatus struct {
	Connected bool   `json:"connected"`
	BackendID string `json:"backendId"`
	Error     string `json:"error,omitempty"`
}

// Area is one entry of the backend's area registry.
type Area struct {
	AreaID string `json:"area_id"`
	Name   string `json:"name"`
}

// DeviceEntry is one entry of the backend's device registry.
type DeviceEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	AreaID string `json:"area_id"`
}

// RegistryEntry is one entry of the backend's entity registry, linking an
// entity to its owning device and area.
type RegistryEntry struct {
	EntityID string `json:"entity_id"`
	DeviceID string `json:"device_id"`
	AreaID   string `json:"area_id"`
}

// RegistryTables bundles the three cross-reference tables room grouping
// needs.
type RegistryTables struct {
	Areas    []Area
	Devices  []DeviceEntry
	Entities []RegistryEntry
}
