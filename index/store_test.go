package index

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsEmptyStore(t *testing.T) {
	s := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	assert.Empty(t, s.PluginIDs())
	assert.False(t, s.IsDirty())
}

func TestLoadInvalidJSONYieldsEmptyStoreNoPanic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	assert.NotPanics(t, func() {
		s := Load(path)
		assert.Empty(t, s.PluginIDs())
	})
}

func TestSaveNoOpWhenNotDirty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	s := New()
	require.NoError(t, s.Save(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	s := New()
	s.UpdateFull("apps", []Item{{ID: "firefox", Name: "Firefox"}})
	require.NoError(t, s.Save(path))
	assert.False(t, s.IsDirty())

	loaded := Load(path)
	assert.Equal(t, []string{"apps"}, loaded.PluginIDs())
	item, ok := loaded.GetItem("apps", "firefox")
	require.True(t, ok)
	assert.Equal(t, "Firefox", item.Item.Name)
}

func TestUpdateFullPreservesFrecencyForMatchingID(t *testing.T) {
	s := New()
	s.UpdateFull("apps", []Item{{ID: "firefox", Name: "Firefox"}})
	item, _ := s.GetItem("apps", "firefox")
	item.Frecency.Count = 5

	s.UpdateFull("apps", []Item{{ID: "firefox", Name: "Firefox Renamed"}})
	item, ok := s.GetItem("apps", "firefox")
	require.True(t, ok)
	assert.Equal(t, uint64(5), item.Frecency.Count)
	assert.Equal(t, "Firefox Renamed", item.Item.Name)
}

func TestUpdateIncrementalAddsAndRemoves(t *testing.T) {
	s := New()
	s.UpdateFull("apps", []Item{{ID: "a"}, {ID: "b"}})
	s.UpdateIncremental("apps", []Item{{ID: "c"}}, []string{"a"})

	_, hasA := s.GetItem("apps", "a")
	_, hasB := s.GetItem("apps", "b")
	_, hasC := s.GetItem("apps", "c")
	assert.False(t, hasA)
	assert.True(t, hasB)
	assert.True(t, hasC)
}

func TestRecordExecutionModeNoneIsNoOp(t *testing.T) {
	s := New()
	s.UpdateFull("apps", []Item{{ID: "a"}})
	s.RecordExecution("apps", "a", ExecutionContext{Now: 1000}, ModeNone, nil)
	item, _ := s.GetItem("apps", "a")
	assert.Zero(t, item.Frecency.Count)
}

func TestRecordExecutionModePluginCreatesAggregate(t *testing.T) {
	s := New()
	s.RecordExecution("apps", "a", ExecutionContext{Now: 1000}, ModePlugin, nil)
	item, ok := s.GetItem("apps", "__plugin__")
	require.True(t, ok)
	assert.True(t, item.IsPluginEntry)
	assert.EqualValues(t, 1, item.Frecency.Count)
}

func TestRecordExecutionModeItemMissingWithoutFallbackIsNoOp(t *testing.T) {
	s := New()
	s.RecordExecution("apps", "missing", ExecutionContext{Now: 1000}, ModeItem, nil)
	_, ok := s.GetItem("apps", "missing")
	assert.False(t, ok)
}

func TestRecordExecutionModeItemUsesFallback(t *testing.T) {
	s := New()
	s.RecordExecution("apps", "firefox", ExecutionContext{Now: 1000}, ModeItem, &Item{ID: "firefox", Name: "Firefox"})
	item, ok := s.GetItem("apps", "firefox")
	require.True(t, ok)
	assert.EqualValues(t, 1, item.Frecency.Count)
}

func TestRecordExecutionDedupesAndCapsRecentSearchTerms(t *testing.T) {
	s := New()
	s.UpdateFull("apps", []Item{{ID: "a"}})
	terms := []string{"one", "two", "three", "four", "five", "six", "seven", "eight", "nine", "ten", "eleven"}
	for i, term := range terms {
		s.RecordExecution("apps", "a", ExecutionContext{Now: int64(1000 + i), SearchTerm: term}, ModeItem, nil)
	}
	item, _ := s.GetItem("apps", "a")
	assert.Len(t, item.Frecency.RecentSearchTerms, 10)
	assert.Equal(t, "eleven", item.Frecency.RecentSearchTerms[0])

	s.RecordExecution("apps", "a", ExecutionContext{Now: 2000, SearchTerm: "eleven"}, ModeItem, nil)
	item, _ = s.GetItem("apps", "a")
	assert.Equal(t, "eleven", item.Frecency.RecentSearchTerms[0])
	count := 0
	for _, term := range item.Frecency.RecentSearchTerms {
		if term == "eleven" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestRecordExecutionStreakIncrementsOnConsecutiveDays(t *testing.T) {
	s := New()
	s.UpdateFull("apps", []Item{{ID: "a"}})
	day1 := mustParseDate(t, "2026-07-29")
	day2 := mustParseDate(t, "2026-07-30")
	gap := mustParseDate(t, "2026-08-05")

	s.RecordExecution("apps", "a", ExecutionContext{Now: day1}, ModeItem, nil)
	item, _ := s.GetItem("apps", "a")
	assert.EqualValues(t, 1, item.Frecency.ConsecutiveDays)

	s.RecordExecution("apps", "a", ExecutionContext{Now: day2}, ModeItem, nil)
	item, _ = s.GetItem("apps", "a")
	assert.EqualValues(t, 2, item.Frecency.ConsecutiveDays)

	s.RecordExecution("apps", "a", ExecutionContext{Now: gap}, ModeItem, nil)
	item, _ = s.GetItem("apps", "a")
	assert.EqualValues(t, 1, item.Frecency.ConsecutiveDays)
}

func mustParseDate(t *testing.T, date string) int64 {
	t.Helper()
	tm, err := time.Parse("2006-01-02", date)
	require.NoError(t, err)
	return tm.UnixMilli()
}

func TestCalculateFrecencyBuckets(t *testing.T) {
	now := int64(1_000_000_000)
	assert.Equal(t, float64(40), CalculateFrecency(FrecencyCounters{Count: 10, LastUsed: now - 30*60*1000}, now))
	assert.Equal(t, float64(20), CalculateFrecency(FrecencyCounters{Count: 10, LastUsed: now - 5*60*60*1000}, now))
	assert.Equal(t, float64(10), CalculateFrecency(FrecencyCounters{Count: 10, LastUsed: now - 48*60*60*1000}, now))
	assert.Equal(t, float64(5), CalculateFrecency(FrecencyCounters{Count: 10, LastUsed: now - 200*60*60*1000}, now))
	assert.Zero(t, CalculateFrecency(FrecencyCounters{Count: 0}, now))
}

func TestItemsWithFrecencyFiltersZeroCountAndSorts(t *testing.T) {
	s := New()
	s.UpdateFull("apps", []Item{{ID: "a"}, {ID: "b"}, {ID: "c"}})
	now := int64(1_000_000_000)
	s.RecordExecution("apps", "a", ExecutionContext{Now: now}, ModeItem, nil)
	for i := 0; i < 4; i++ {
		s.RecordExecution("apps", "b", ExecutionContext{Now: now}, ModeItem, nil)
	}
	// c never executed, stays at count 0 and must be excluded.

	out := s.ItemsWithFrecency(now)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].Item.Item.ID)
	assert.Equal(t, "a", out[1].Item.Item.ID)
}

func TestBuildSearchablesExcludesPluginAggregate(t *testing.T) {
	s := New()
	s.UpdateFull("apps", []Item{{ID: "a", Name: "Alpha"}})
	s.RecordExecution("apps", "__agg__", ExecutionContext{Now: 1000}, ModePlugin, nil)
	s.RecordExecution("apps", "a", ExecutionContext{Now: 1000, SearchTerm: "alp"}, ModeItem, nil)

	searchables := s.BuildSearchables()
	require.Len(t, searchables, 2) // name + one history term, no __plugin__ entry
	for _, sv := range searchables {
		assert.NotEqual(t, pluginEntryID, sv.Item.Item.ID)
	}
}

func TestStatsCountsItemsPerPlugin(t *testing.T) {
	s := New()
	s.UpdateFull("apps", []Item{{ID: "a"}, {ID: "b"}})
	s.UpdateFull("files", []Item{{ID: "x"}})

	st := s.Stats()
	assert.Equal(t, 2, st.PluginCount)
	assert.Equal(t, 2, st.ItemCounts["apps"])
	assert.Equal(t, 1, st.ItemCounts["files"])
}
