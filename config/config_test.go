package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSearchConfig(t *testing.T) {
	cfg := DefaultSearchConfig()
	assert.Equal(t, 16, cfg.MaxDisplayedResults)
	assert.Equal(t, 20, cfg.MaxRecentItems)
	assert.Equal(t, 0, cfg.MaxResultsPerPlugin)
	assert.Equal(t, int64(150), cfg.PluginDebounceMS)
	assert.InDelta(t, 0.7, cfg.DiversityDecay, 1e-9)
	assert.Len(t, cfg.ActionBarHints, 5)
	assert.Empty(t, cfg.PluginRankingBonus)
}

func TestLoadNonexistentReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Search.MaxDisplayedResults)
}

func TestLoadPartialFileKeepsOtherDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"search": {"maxDisplayedResults": 25, "maxRecentItems": 15}}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Search.MaxDisplayedResults)
	assert.Equal(t, 15, cfg.Search.MaxRecentItems)
	assert.Equal(t, 0, cfg.Search.MaxResultsPerPlugin) // untouched default
}

func TestLoadInvalidJSONFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{invalid json}`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	cfg.Search.MaxDisplayedResults = 42
	cfg.Search.EngineBaseURL = "https://duckduckgo.com/?q="

	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 42, loaded.Search.MaxDisplayedResults)
	assert.Equal(t, "https://duckduckgo.com/?q=", loaded.Search.EngineBaseURL)
}

func TestActionBarHintsExplicitArray(t *testing.T) {
	var cfg Config
	raw := []byte(`{"search": {"actionBarHints": [{"prefix": ";", "plugin": "clipboard", "label": "Clipboard"}]}}`)
	require.NoError(t, json.Unmarshal(raw, &cfg))

	hints := cfg.ActionBarHints()
	require.Len(t, hints, 1)
	assert.Equal(t, ";", hints[0].Prefix)
	assert.Equal(t, "clipboard", hints[0].Plugin)
}

func TestActionBarHintsStringifiedJSONFallback(t *testing.T) {
	var cfg Config
	raw := []byte(`{"search": {"actionBarHintsJson": "[{\"prefix\": \"!\", \"plugin\": \"shell\"}]"}}`)
	require.NoError(t, json.Unmarshal(raw, &cfg))

	hints := cfg.ActionBarHints()
	require.Len(t, hints, 1)
	assert.Equal(t, "!", hints[0].Prefix)
	assert.Equal(t, "shell", hints[0].Plugin)
}

func TestActionBarHintsNullUsesDefaults(t *testing.T) {
	var cfg Config
	raw := []byte(`{"search": {"actionBarHints": null}}`)
	require.NoError(t, json.Unmarshal(raw, &cfg))

	assert.Len(t, cfg.ActionBarHints(), 5)
}

func TestActionBarHintsExplicitEmptyArrayStaysEmpty(t *testing.T) {
	var cfg Config
	raw := []byte(`{"search": {"actionBarHints": []}}`)
	require.NoError(t, json.Unmarshal(raw, &cfg))

	assert.Empty(t, cfg.ActionBarHints())
}

func TestMigrateLegacyPrefixesToHints(t *testing.T) {
	var cfg Config
	raw := []byte(`{"search": {"prefix": {"file": "~~", "clipboard": ";;"}}}`)
	require.NoError(t, json.Unmarshal(raw, &cfg))

	hints := cfg.ActionBarHints()
	byPrefix := map[string]string{}
	for _, h := range hints {
		byPrefix[h.Prefix] = h.Plugin
	}
	assert.Equal(t, "files", byPrefix["~~"])
	assert.Equal(t, "clipboard", byPrefix[";;"])
	// unused default slots (calculate/emoji/shell) still fall back in.
	assert.Equal(t, "calculate", byPrefix["="])
}

func TestPluginRankingBonus(t *testing.T) {
	var cfg Config
	raw := []byte(`{"search": {"pluginRankingBonus": {"apps": 200, "settings": 150.5}}}`)
	require.NoError(t, json.Unmarshal(raw, &cfg))

	assert.Equal(t, 200.0, cfg.Search.PluginRankingBonus["apps"])
	assert.Equal(t, 150.5, cfg.Search.PluginRankingBonus["settings"])
}

func TestExcludedSites(t *testing.T) {
	var cfg Config
	raw := []byte(`{"search": {"excludedSites": ["facebook.com", "twitter.com"]}}`)
	require.NoError(t, json.Unmarshal(raw, &cfg))

	assert.Len(t, cfg.Search.ExcludedSites, 2)
	assert.Contains(t, cfg.Search.ExcludedSites, "facebook.com")
}

func TestEmptyJSONUsesDefaults(t *testing.T) {
	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(`{}`), &cfg))
	assert.Equal(t, 16, cfg.Search.MaxDisplayedResults)
	assert.Len(t, cfg.Search.ActionBarHints, 5)
}

func TestSearchPrefixesDefault(t *testing.T) {
	cfg := DefaultSearchConfig()
	assert.Equal(t, "/", cfg.Prefix.Plugins)
	assert.Equal(t, "@", cfg.Prefix.App)
	assert.Equal(t, ":", cfg.Prefix.Emojis)
	assert.Equal(t, "=", cfg.Prefix.Math)
	assert.Equal(t, "!", cfg.Prefix.ShellCommand)
	assert.Equal(t, "?", cfg.Prefix.WebSearch)
}

func TestSearchPrefixesPartialOverrideKeepsDefaults(t *testing.T) {
	var cfg Config
	raw := []byte(`{"search": {"prefix": {"plugins": "//", "app": "#"}}}`)
	require.NoError(t, json.Unmarshal(raw, &cfg))

	assert.Equal(t, "//", cfg.Search.Prefix.Plugins)
	assert.Equal(t, "#", cfg.Search.Prefix.App)
	assert.Equal(t, ":", cfg.Search.Prefix.Emojis) // untouched default
}

func TestEnvOverlayAppliesWhenSet(t *testing.T) {
	t.Setenv("HAMR_SEARCH_MAX_DISPLAYED_RESULTS", "99")
	cfg := Default()
	applyEnvOverlay(&cfg)
	assert.Equal(t, 99, cfg.Search.MaxDisplayedResults)
}

func TestEnvOverlayLeavesDefaultUntouchedWhenUnset(t *testing.T) {
	cfg := Default()
	applyEnvOverlay(&cfg)
	assert.Equal(t, 16, cfg.Search.MaxDisplayedResults)
}
