package devices

import "homedash/internal/ha"

// NoAreaID is the synthetic room id for devices whose registry entry and
// owning device both lack an area.
const NoAreaID = "no-area"

const noAreaName = "No Area"

// Room is a named grouping of devices, typically geographic. Rooms are
// built fresh on every grouping pass.
type Room struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Devices []*Device `json:"devices"`
}

// GroupRooms buckets entities into rooms by area. The entity registry is
// authoritative: entities without a registry entry are skipped, and an
// entry without its own area falls back to the owning device's area.
// Rooms appear in encounter order, "No Area" last; areas that end up with
// no devices produce no room at all.
func GroupRooms(
	entities []ha.State,
	tables *ha.RegistryTables,
	customizations map[string]Customization,
	showHidden bool,
	forecasts map[string][]Forecast,
) []Room {
	areaByID := make(map[string]ha.Area, len(tables.Areas))
	for _, area := range tables.Areas {
		areaByID[area.AreaID] = area
	}
	deviceByID := make(map[string]ha.DeviceEntry, len(tables.Devices))
	for _, entry := range tables.Devices {
		deviceByID[entry.ID] = entry
	}
	registryByEntity := make(map[string]ha.RegistryEntry, len(tables.Entities))
	for _, entry := range tables.Entities {
		registryByEntity[entry.EntityID] = entry
	}

	buckets := make(map[string][]*Device)
	var order []string

	for _, entity := range entities {
		var cust *Customization
		if c, ok := customizations[entity.EntityID]; ok {
			cust = &c
		}
		if !showHidden && cust != nil && cust.Hidden {
			continue
		}

		registryEntry, ok := registryByEntity[entity.EntityID]
		if !ok {
			continue
		}

		areaID := registryEntry.AreaID
		if areaID == "" && registryEntry.DeviceID != "" {
			if owner, ok := deviceByID[registryEntry.DeviceID]; ok {
				areaID = owner.AreaID
			}
		}

		device := Map(entity, cust, forecasts[entity.EntityID])
		if device == nil {
			continue
		}

		bucket := areaID
		if bucket == "" {
			bucket = NoAreaID
		}
		if _, seen := buckets[bucket]; !seen {
			order = append(order, bucket)
		}
		buckets[bucket] = append(buckets[bucket], device)
	}

	rooms := make([]Room, 0, len(order))
	for _, areaID := range order {
		if areaID == NoAreaID {
			continue
		}
		area, ok := areaByID[areaID]
		if !ok {
			continue
		}
		rooms = append(rooms, Room{
			ID:      area.AreaID,
			Name:    area.Name,
			Devices: buckets[areaID],
		})
	}

	if noArea := buckets[NoAreaID]; len(noArea) > 0 {
		rooms = append(rooms, Room{
			ID:      NoAreaID,
			Name:    noAreaName,
			Devices: noArea,
		})
	}

	return rooms
}
