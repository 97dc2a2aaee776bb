package index

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/hamr-launcher/hamrd/logger"
)

var log = logger.ComponentLogger("index")

// Store owns every plugin's item table and tracks dirtiness for the
// persistence scheduler (component L). Mutated only by the daemon's event
// loop per the single-owner concurrency model — no internal locking.
type Store struct {
	indexes     map[string]*PluginIndex
	dirty       bool
	lastDirtyAt int64 // ms epoch
}

// New creates an empty store.
func New() *Store {
	return &Store{indexes: make(map[string]*PluginIndex)}
}

// Load reads a cache file from disk. A missing file yields an empty store;
// an unparseable file yields an empty store with a warning logged. A v1
// payload is migrated item-by-item into the current shape.
func Load(path string) *Store {
	s := New()
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warnw("failed to read index cache, starting empty", "path", path, "error", err)
		}
		return s
	}

	version := detectVersion(raw)
	if version < CacheVersion {
		var v1 cacheFileV1
		if err := json.Unmarshal(raw, &v1); err != nil {
			log.Warnw("corrupt v1 index cache, starting empty", "path", path, "error", err)
			return s
		}
		s.indexes = migrateV1(v1)
		s.dirty = true // force a v2 rewrite on next save
		return s
	}

	var v2 cacheFileV2
	if err := json.Unmarshal(raw, &v2); err != nil {
		log.Warnw("corrupt index cache, starting empty", "path", path, "error", err)
		return s
	}
	if v2.Indexes != nil {
		s.indexes = v2.Indexes
	}
	return s
}

// Save writes the store to path atomically (temp file + rename), as v2.
// No-op if the store is not dirty. Clears the dirty flag on success.
func (s *Store) Save(path string) error {
	if !s.dirty {
		return nil
	}

	file := cacheFileV2{
		Version: CacheVersion,
		SavedAt: nowMS(),
		Indexes: s.indexes,
	}
	raw, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".index-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}

	s.dirty = false
	return nil
}

// ForceSave writes the store regardless of the dirty flag, for the
// persistence scheduler's unconditional save on shutdown (spec §4.L).
func (s *Store) ForceSave(path string) error {
	s.dirty = true
	return s.Save(path)
}

// IsDirty reports whether the store has unsaved mutations.
func (s *Store) IsDirty() bool { return s.dirty }

// LastDirtyAt returns the ms-epoch timestamp of the most recent mutation.
func (s *Store) LastDirtyAt() int64 { return s.lastDirtyAt }

func (s *Store) markDirty() {
	s.dirty = true
	s.lastDirtyAt = nowMS()
}

func nowMS() int64 { return time.Now().UnixMilli() }

func (s *Store) plugin(id string) *PluginIndex {
	p, ok := s.indexes[id]
	if !ok {
		p = &PluginIndex{}
		s.indexes[id] = p
	}
	return p
}

// UpdateFull replaces a plugin's entire item list. Items sharing an id with
// an existing entry preserve that entry's frecency counters.
func (s *Store) UpdateFull(pluginID string, items []Item) {
	existing := s.plugin(pluginID)
	prior := make(map[string]FrecencyCounters, len(existing.Items))
	for _, it := range existing.Items {
		prior[it.Item.ID] = it.Frecency
	}

	next := make([]*IndexedItem, 0, len(items))
	for _, it := range items {
		fc := prior[it.ID]
		next = append(next, &IndexedItem{Item: it, IsPluginEntry: it.ID == pluginEntryID, Frecency: fc})
	}

	existing.Items = next
	existing.LastIndexed = nowMS()
	s.markDirty()
}

// UpdateIncremental removes the given ids, then upserts add, preserving
// frecency on update.
func (s *Store) UpdateIncremental(pluginID string, add []Item, remove []string) {
	p := s.plugin(pluginID)

	if len(remove) > 0 {
		removeSet := make(map[string]bool, len(remove))
		for _, id := range remove {
			removeSet[id] = true
		}
		kept := p.Items[:0]
		for _, it := range p.Items {
			if !removeSet[it.Item.ID] {
				kept = append(kept, it)
			}
		}
		p.Items = kept
	}

	for _, it := range add {
		if existing, _ := p.find(it.ID); existing != nil {
			existing.Item = it
		} else {
			p.Items = append(p.Items, &IndexedItem{Item: it, IsPluginEntry: it.ID == pluginEntryID})
		}
	}

	p.LastIndexed = nowMS()
	s.markDirty()
}

// GetItem returns a plugin's item by id.
func (s *Store) GetItem(pluginID, itemID string) (*IndexedItem, bool) {
	p, ok := s.indexes[pluginID]
	if !ok {
		return nil, false
	}
	it, _ := p.find(itemID)
	return it, it != nil
}

// PluginIDs returns every known plugin id, sorted.
func (s *Store) PluginIDs() []string {
	ids := make([]string, 0, len(s.indexes))
	for id := range s.indexes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stats summarizes the store for the index_stats RPC method.
type Stats struct {
	PluginCount int            `json:"pluginCount"`
	ItemCounts  map[string]int `json:"itemCounts"`
}

// Stats computes per-plugin item counts.
func (s *Store) Stats() Stats {
	st := Stats{ItemCounts: make(map[string]int, len(s.indexes))}
	for id, p := range s.indexes {
		st.ItemCounts[id] = len(p.Items)
	}
	st.PluginCount = len(s.indexes)
	return st
}

// CalculateFrecency scores an item's counters at time now (ms epoch) per
// spec §4.F: recency-weighted count, bucketed by hours-since-last-use.
func CalculateFrecency(fc FrecencyCounters, now int64) float64 {
	if fc.Count == 0 {
		return 0
	}
	hours := float64(now-fc.LastUsed) / 3_600_000.0
	var mult float64
	switch {
	case hours < 1:
		mult = 4
	case hours < 24:
		mult = 2
	case hours < 168:
		mult = 1
	default:
		mult = 0.5
	}
	return float64(fc.Count) * mult
}

// FrecentItem pairs an indexed item with its owning plugin id and calculated
// frecency, for ItemsWithFrecency's sorted output.
type FrecentItem struct {
	PluginID string
	Item     *IndexedItem
	Score    float64
}

// ItemsWithFrecency returns every item (including __plugin__ aggregates)
// with count > 0, sorted by calculated frecency descending.
func (s *Store) ItemsWithFrecency(now int64) []FrecentItem {
	var out []FrecentItem
	for pluginID, p := range s.indexes {
		for _, it := range p.Items {
			if it.Frecency.Count == 0 {
				continue
			}
			out = append(out, FrecentItem{
				PluginID: pluginID,
				Item:     it,
				Score:    CalculateFrecency(it.Frecency, now),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Searchable is one unit the search engine matches against: either an
// item's own name/keywords, or a learned search term recorded against it.
type Searchable struct {
	PluginID     string
	Item         *IndexedItem
	Text         string // the name, or the history term
	IsHistory    bool
	IsPluginRoot bool
}

// BuildSearchables produces one searchable per non-aggregate item (its
// name) and one per recent search term recorded against that item.
func (s *Store) BuildSearchables() []Searchable {
	var out []Searchable
	for pluginID, p := range s.indexes {
		for _, it := range p.Items {
			if it.IsPluginEntry {
				continue
			}
			out = append(out, Searchable{PluginID: pluginID, Item: it, Text: it.Item.Name})
			for _, term := range it.Frecency.RecentSearchTerms {
				out = append(out, Searchable{PluginID: pluginID, Item: it, Text: term, IsHistory: true})
			}
		}
	}
	return out
}

const (
	maxRecentSearchTerms = 10
	maxLaunchedAfter     = 5
)

// RecordExecution applies the ten recording rules of spec §4.H for a single
// launch. fallback, if non-nil, is upserted when mode is item-level and the
// item is missing from the index.
func (s *Store) RecordExecution(pluginID, itemID string, ctx ExecutionContext, mode RecordMode, fallback *Item) {
	if mode == ModeNone {
		return
	}

	targetID := itemID
	if mode == ModePlugin {
		targetID = pluginEntryID
	}

	p := s.plugin(pluginID)
	it, _ := p.find(targetID)
	if it == nil {
		if mode == ModePlugin {
			it = &IndexedItem{Item: Item{ID: pluginEntryID}, IsPluginEntry: true}
			p.Items = append(p.Items, it)
		} else if fallback != nil {
			it = &IndexedItem{Item: *fallback, IsPluginEntry: fallback.ID == pluginEntryID}
			p.Items = append(p.Items, it)
		} else {
			log.Warnw("record_execution: item not found and no fallback provided",
				"plugin", pluginID, "item", itemID)
			return
		}
	}

	now := ctx.Now
	if now == 0 {
		now = nowMS()
	}
	t := time.UnixMilli(now)
	fc := &it.Frecency

	fc.Count++
	fc.LastUsed = now

	if ctx.SearchTerm != "" {
		terms := make([]string, 0, maxRecentSearchTerms+1)
		terms = append(terms, ctx.SearchTerm)
		for _, existing := range fc.RecentSearchTerms {
			if existing != ctx.SearchTerm {
				terms = append(terms, existing)
			}
		}
		if len(terms) > maxRecentSearchTerms {
			terms = terms[:maxRecentSearchTerms]
		}
		fc.RecentSearchTerms = terms
	}

	fc.HourSlotCounts[t.Hour()]++
	fc.DayOfWeekCounts[int(t.Weekday())]++

	if ctx.LaunchedFromEmpty {
		fc.LaunchFromEmptyCount++
	}
	if ctx.SessionStart {
		fc.SessionStartCount++
	}
	if ctx.ResumeFromIdle {
		fc.ResumeFromIdleCount++
	}

	if ctx.Workspace != "" {
		if fc.WorkspaceCounts == nil {
			fc.WorkspaceCounts = make(map[string]uint64)
		}
		fc.WorkspaceCounts[ctx.Workspace]++
	}
	if ctx.Monitor != "" {
		if fc.MonitorCounts == nil {
			fc.MonitorCounts = make(map[string]uint64)
		}
		fc.MonitorCounts[ctx.Monitor]++
	}
	if ctx.DisplayCount > 0 {
		if fc.DisplayCountCounts == nil {
			fc.DisplayCountCounts = make(map[string]uint64)
		}
		key := strconv.Itoa(ctx.DisplayCount)
		fc.DisplayCountCounts[key]++
	}
	if ctx.SessionDurationIdx >= 0 && ctx.SessionDurationIdx < len(fc.SessionDurationCounts) {
		fc.SessionDurationCounts[ctx.SessionDurationIdx]++
	}

	if ctx.LastApp != "" {
		if fc.LaunchedAfter == nil {
			fc.LaunchedAfter = make(map[string]uint64)
		}
		fc.LaunchedAfter[ctx.LastApp]++
		if len(fc.LaunchedAfter) > maxLaunchedAfter {
			fc.LaunchedAfter = topN(fc.LaunchedAfter, maxLaunchedAfter)
		}
	}

	today := t.Format("2006-01-02")
	if fc.LastConsecutiveDate != today {
		yesterday := t.AddDate(0, 0, -1).Format("2006-01-02")
		if fc.LastConsecutiveDate == yesterday {
			fc.ConsecutiveDays++
		} else {
			fc.ConsecutiveDays = 1
		}
		fc.LastConsecutiveDate = today
	}

	s.markDirty()
}

// topN retains the top-n entries of m by value, breaking ties by key for
// determinism.
func topN(m map[string]uint64, n int) map[string]uint64 {
	type kv struct {
		k string
		v uint64
	}
	entries := make([]kv, 0, len(m))
	for k, v := range m {
		entries = append(entries, kv{k, v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].v != entries[j].v {
			return entries[i].v > entries[j].v
		}
		return entries[i].k < entries[j].k
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	out := make(map[string]uint64, len(entries))
	for _, e := range entries {
		out[e.k] = e.v
	}
	return out
}
