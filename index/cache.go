package index

import "encoding/json"

// CacheVersion is the current on-disk schema version every save writes.
const CacheVersion = 2

// cacheFileV2 is the root on-disk shape: { version, saved_at, indexes }.
type cacheFileV2 struct {
	Version int                    `json:"version"`
	SavedAt int64                  `json:"saved_at"`
	Indexes map[string]*PluginIndex `json:"indexes"`
}

// cacheFileV1 is the legacy on-disk shape: a flat map of plugin id -> items,
// where each item's frecency fields are flattened onto the item itself with
// an underscore prefix instead of a nested "frecency" object.
type cacheFileV1 struct {
	Indexes map[string][]v1Item `json:"indexes"`
}

type v1Item struct {
	Item

	UCount     uint64            `json:"_count"`
	ULastUsed  int64             `json:"_last_used"`
	URecent    []string          `json:"_recent_search_terms"`
	UHourSlots [24]uint64        `json:"_hour_slot_counts"`
	UDayOfWeek [7]uint64         `json:"_day_of_week_counts"`
	UWorkspace map[string]uint64 `json:"_workspace_counts"`
	UMonitor   map[string]uint64 `json:"_monitor_counts"`
}

// detectVersion peeks at the "version" field to distinguish v1 from v2
// without fully unmarshalling into the wrong shape.
func detectVersion(raw []byte) int {
	var probe struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return 0
	}
	return probe.Version
}

// migrateV1 converts a legacy flat cache into the current per-plugin index
// shape, preserving every frecency subfield item-by-item.
func migrateV1(v1 cacheFileV1) map[string]*PluginIndex {
	out := make(map[string]*PluginIndex, len(v1.Indexes))
	for pluginID, items := range v1.Indexes {
		pi := &PluginIndex{}
		for _, it := range items {
			pi.Items = append(pi.Items, &IndexedItem{
				Item:          it.Item,
				IsPluginEntry: it.Item.ID == pluginEntryID,
				Frecency: FrecencyCounters{
					Count:             it.UCount,
					LastUsed:          it.ULastUsed,
					RecentSearchTerms: it.URecent,
					HourSlotCounts:    it.UHourSlots,
					DayOfWeekCounts:   it.UDayOfWeek,
					WorkspaceCounts:   it.UWorkspace,
					MonitorCounts:     it.UMonitor,
				},
			})
		}
		out[pluginID] = pi
	}
	return out
}
