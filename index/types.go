// Package index implements the persistent per-plugin item store with
// frecency statistics (component F), including legacy cache migration and
// the searchable-building step the search engine (package search) consumes.
package index

import "encoding/json"

// Item is the plugin-supplied record the daemon indexes. Extra carries any
// protocol fields beyond the ones the daemon itself reasons about (widget
// variants, badges, chips, ...), preserved verbatim for display.
type Item struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Icon        string                 `json:"icon,omitempty"`
	Keywords    []string               `json:"keywords,omitempty"`
	AppID       string                 `json:"appId,omitempty"`
	Extra       map[string]interface{} `json:"-"`
}

// itemKnownFields lists the JSON keys Item decodes onto named fields; every
// other top-level key a plugin sends is captured into Extra and re-emitted
// verbatim, the flatten-equivalent of the plugin protocol's unknown fields.
var itemKnownFields = map[string]bool{
	"id": true, "name": true, "description": true,
	"icon": true, "keywords": true, "appId": true,
}

// UnmarshalJSON decodes the known fields normally and stashes every other
// top-level key into Extra.
func (it *Item) UnmarshalJSON(data []byte) error {
	type itemAlias Item
	var alias itemAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range itemKnownFields {
		delete(raw, key)
	}

	var extra map[string]interface{}
	if len(raw) > 0 {
		extra = make(map[string]interface{}, len(raw))
		for k, v := range raw {
			var val interface{}
			if err := json.Unmarshal(v, &val); err != nil {
				continue
			}
			extra[k] = val
		}
	}

	*it = Item(alias)
	it.Extra = extra
	return nil
}

// MarshalJSON re-emits the known fields plus every key captured in Extra, so
// a plugin's unrecognized item fields round-trip through the index store and
// back out to the wire.
func (it Item) MarshalJSON() ([]byte, error) {
	type itemAlias Item
	known, err := json.Marshal(itemAlias(it))
	if err != nil {
		return nil, err
	}
	if len(it.Extra) == 0 {
		return known, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for k, v := range it.Extra {
		if itemKnownFields[k] {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		merged[k] = raw
	}
	return json.Marshal(merged)
}

// pluginEntryID is the synthetic aggregate item id used when a plugin opts
// into plugin-level (not item-level) frecency.
const pluginEntryID = "__plugin__"

// FrecencyCounters is the full per-item usage-signal bundle spec.md §3
// describes. All counts are monotonically non-decreasing.
type FrecencyCounters struct {
	Count     uint64 `json:"count"`
	LastUsed  int64  `json:"lastUsed"` // ms epoch

	RecentSearchTerms []string `json:"recentSearchTerms,omitempty"` // most-recent-first, cap 10, deduped

	HourSlotCounts   [24]uint64 `json:"hourSlotCounts"`
	DayOfWeekCounts  [7]uint64  `json:"dayOfWeekCounts"`

	WorkspaceCounts     map[string]uint64 `json:"workspaceCounts,omitempty"`
	MonitorCounts       map[string]uint64 `json:"monitorCounts,omitempty"`
	DisplayCountCounts  map[string]uint64 `json:"displayCountCounts,omitempty"`

	LaunchedAfter map[string]uint64 `json:"launchedAfter,omitempty"` // predecessor app -> count, cap top 5

	SessionDurationCounts [5]uint64 `json:"sessionDurationCounts"`

	SessionStartCount     uint64 `json:"sessionStartCount"`
	LaunchFromEmptyCount  uint64 `json:"launchFromEmptyCount"`
	ResumeFromIdleCount   uint64 `json:"resumeFromIdleCount"`

	ConsecutiveDays     uint64 `json:"consecutiveDays"`
	LastConsecutiveDate string `json:"lastConsecutiveDate,omitempty"` // ISO date, e.g. "2026-07-31"
}

// IndexedItem pairs a plugin item with its frecency counters. IsPluginEntry
// marks the synthetic __plugin__ aggregate used for plugin-level frecency.
type IndexedItem struct {
	Item          Item             `json:"item"`
	IsPluginEntry bool             `json:"isPluginEntry"`
	Frecency      FrecencyCounters `json:"frecency"`
}

// PluginIndex is one plugin's ordered item list plus when it was last
// (re)indexed.
type PluginIndex struct {
	Items       []*IndexedItem `json:"items"`
	LastIndexed int64          `json:"lastIndexed"` // ms epoch
}

func (p *PluginIndex) find(id string) (*IndexedItem, int) {
	for i, it := range p.Items {
		if it.Item.ID == id {
			return it, i
		}
	}
	return nil, -1
}

// RecordMode selects how an execution is attributed, per plugin manifest's
// frecency field.
type RecordMode int

const (
	// ModeNone disables frecency recording for the plugin entirely.
	ModeNone RecordMode = iota
	// ModeItem records against the specific item launched.
	ModeItem
	// ModePlugin records against the plugin's synthetic __plugin__ entry.
	ModePlugin
)

// ExecutionContext carries the optional situational signals recorded
// alongside a launch, consumed by both recording (§4.H) and suggestions.
type ExecutionContext struct {
	SearchTerm        string
	Workspace         string
	Monitor           string
	DisplayCount      int
	LastApp           string
	SessionDurationIdx int // 0..4, bucket index; negative = absent
	LaunchedFromEmpty bool
	SessionStart      bool
	ResumeFromIdle    bool
	RunningApps       []string
	Now               int64 // ms epoch; injected for deterministic tests
}
