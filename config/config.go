// Package config loads daemon settings the way the original launcher's
// settings module does: JSON on disk with per-field defaults, migrating a
// legacy prefix-based action-bar format into the current array shape, and
// an environment-variable overlay for the search-tuning knobs (spec §1.3).
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/hamr-launcher/hamrd/internal/util"
)

// Config is the daemon's full on-disk configuration.
type Config struct {
	Search SearchConfig `json:"search"`
	Apps   AppConfig    `json:"apps"`
}

// Default returns a Config with every field at its documented default.
func Default() Config {
	return Config{
		Search: DefaultSearchConfig(),
	}
}

// Load reads path as JSON, falling back to Default() if the file does not
// exist, then applies the HAMR_-prefixed environment overlay on top.
// Fields absent from the file keep their default value; fields absent from
// the file but present as an env var take the env var's value.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverlay(&cfg)
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyEnvOverlay(&cfg)
	return cfg, nil
}

// Save writes cfg to path as indented JSON.
func Save(cfg Config, path string) error {
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// ActionBarHints returns the resolved action-bar hints (migration already
// applied at decode time).
func (c Config) ActionBarHints() []ActionBarHint {
	return c.Search.ActionBarHints
}

// applyEnvOverlay binds each viper dotted key to its HAMR_-prefixed env var
// name and copies set values onto the Config field it overrides. Kept as an
// explicit table (rather than
// viper's automatic env + SetDefault, which makes every default look
// "set") so the overlay only fires when the operator actually set the
// variable.
func applyEnvOverlay(cfg *Config) {
	v := viper.New()

	bindings := []struct {
		key string
		env string
	}{
		{"search.maxdisplayedresults", "HAMR_SEARCH_MAX_DISPLAYED_RESULTS"},
		{"search.maxrecentitems", "HAMR_SEARCH_MAX_RECENT_ITEMS"},
		{"search.maxresultsperplugin", "HAMR_SEARCH_MAX_RESULTS_PER_PLUGIN"},
		{"search.plugindebouncems", "HAMR_SEARCH_PLUGIN_DEBOUNCE_MS"},
		{"search.diversitydecay", "HAMR_SEARCH_DIVERSITY_DECAY"},
		{"search.enginebaseurl", "HAMR_SEARCH_ENGINE_BASE_URL"},
	}
	for _, b := range bindings {
		_ = v.BindEnv(b.key, b.env)
	}

	if v.IsSet("search.maxdisplayedresults") {
		cfg.Search.MaxDisplayedResults = v.GetInt("search.maxdisplayedresults")
	}
	if v.IsSet("search.maxrecentitems") {
		cfg.Search.MaxRecentItems = v.GetInt("search.maxrecentitems")
	}
	if v.IsSet("search.maxresultsperplugin") {
		cfg.Search.MaxResultsPerPlugin = v.GetInt("search.maxresultsperplugin")
	}
	if v.IsSet("search.plugindebouncems") {
		cfg.Search.PluginDebounceMS = v.GetInt64("search.plugindebouncems")
	}
	if v.IsSet("search.diversitydecay") {
		cfg.Search.DiversityDecay = v.GetFloat64("search.diversitydecay")
	}
	if v.IsSet("search.enginebaseurl") {
		cfg.Search.EngineBaseURL = v.GetString("search.enginebaseurl")
	}
}

// SearchConfig holds every search-tuning knob. Unmarshaling applies
// per-field defaults and resolves the action-bar-hints precedence
// (explicit array > legacy stringified JSON > legacy prefix migration).
type SearchConfig struct {
	Prefix SearchPrefixes `json:"prefix"`

	MaxDisplayedResults int     `json:"maxDisplayedResults"`
	MaxRecentItems      int     `json:"maxRecentItems"`
	MaxResultsPerPlugin int     `json:"maxResultsPerPlugin"`
	PluginDebounceMS    int64   `json:"pluginDebounceMs"`
	DiversityDecay      float64 `json:"diversityDecay"`
	EngineBaseURL       string  `json:"engineBaseUrl"`

	ExcludedSites      []string           `json:"excludedSites,omitempty"`
	ActionBarHints     []ActionBarHint    `json:"actionBarHints,omitempty"`
	PluginRankingBonus map[string]float64 `json:"pluginRankingBonus,omitempty"`
}

// DefaultSearchConfig mirrors the original settings module's per-field
// defaults (max results 16, recent 20, debounce 150ms, diversity decay 0.7).
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		Prefix:              DefaultSearchPrefixes(),
		MaxDisplayedResults: 16,
		MaxRecentItems:      20,
		MaxResultsPerPlugin: 0,
		PluginDebounceMS:    150,
		DiversityDecay:      0.7,
		EngineBaseURL:       "https://www.google.com/search?q=",
		ActionBarHints:      DefaultActionBarHints(),
		PluginRankingBonus:  map[string]float64{},
	}
}

// searchConfigAlias lets UnmarshalJSON decode every plain field through the
// standard struct path (preserving per-field default retention) while
// shadowing ActionBarHints/ActionBarHintsJSON for custom precedence
// handling.
type searchConfigAlias SearchConfig

func (s *SearchConfig) UnmarshalJSON(data []byte) error {
	*s = DefaultSearchConfig()

	aux := struct {
		*searchConfigAlias
		ActionBarHints     json.RawMessage `json:"actionBarHints"`
		ActionBarHintsJSON *string         `json:"actionBarHintsJson"`
	}{searchConfigAlias: (*searchConfigAlias)(s)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	switch {
	case len(aux.ActionBarHints) > 0 && string(aux.ActionBarHints) != "null":
		var hints []ActionBarHint
		if err := json.Unmarshal(aux.ActionBarHints, &hints); err != nil {
			return fmt.Errorf("parse actionBarHints: %w", err)
		}
		s.ActionBarHints = hints
	case aux.ActionBarHintsJSON != nil:
		var hints []ActionBarHint
		if err := json.Unmarshal([]byte(*aux.ActionBarHintsJSON), &hints); err != nil {
			return fmt.Errorf("parse actionBarHintsJson: %w", err)
		}
		s.ActionBarHints = hints
	default:
		s.ActionBarHints = migrateActionBarHints(s.Prefix)
	}

	return nil
}

// MarshalJSON restores the plain field layout for Save (searchConfigAlias
// has no custom marshaling of its own).
func (s SearchConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(searchConfigAlias(s))
}

// SearchPrefixes is the legacy single-character routing-prefix table. The
// file/clipboard/shellHistory fields are the pre-action-bar-hints format;
// present only for migration.
type SearchPrefixes struct {
	Plugins      string `json:"plugins"`
	App          string `json:"app"`
	Emojis       string `json:"emojis"`
	Math         string `json:"math"`
	ShellCommand string `json:"shellCommand"`
	WebSearch    string `json:"webSearch"`

	File         *string `json:"file,omitempty"`
	Clipboard    *string `json:"clipboard,omitempty"`
	ShellHistory *string `json:"shellHistory,omitempty"`
}

// DefaultSearchPrefixes returns the built-in single-character prefixes.
func DefaultSearchPrefixes() SearchPrefixes {
	return SearchPrefixes{
		Plugins:      "/",
		App:          "@",
		Emojis:       ":",
		Math:         "=",
		ShellCommand: "!",
		WebSearch:    "?",
	}
}

// AppConfig names external helper applications the launcher may shell out
// to (terminal, file manager, browser).
type AppConfig struct {
	Terminal    *string `json:"terminal,omitempty"`
	FileManager *string `json:"fileManager,omitempty"`
	Browser     *string `json:"browser,omitempty"`
}

// ActionBarHint maps a single-character input prefix to the plugin it
// should route to, with optional display label/icon/description.
type ActionBarHint struct {
	Prefix      string  `json:"prefix"`
	Plugin      string  `json:"plugin"`
	Label       *string `json:"label,omitempty"`
	Icon        *string `json:"icon,omitempty"`
	Description *string `json:"description,omitempty"`
}

// DefaultActionBarHints is the built-in prefix -> plugin routing table.
func DefaultActionBarHints() []ActionBarHint {
	return []ActionBarHint{
		{Prefix: "~", Plugin: "files", Label: util.Ptr("Files"), Icon: util.Ptr("folder_open")},
		{Prefix: ";", Plugin: "clipboard", Label: util.Ptr("Clipboard"), Icon: util.Ptr("content_paste")},
		{Prefix: "=", Plugin: "calculate", Label: util.Ptr("Calculate"), Icon: util.Ptr("calculate")},
		{Prefix: ":", Plugin: "emoji", Label: util.Ptr("Emoji"), Icon: util.Ptr("emoji_emotions")},
		{Prefix: "!", Plugin: "shell", Label: util.Ptr("Shell"), Icon: util.Ptr("terminal")},
	}
}

// migrateActionBarHints upgrades the legacy per-field prefix overrides into
// the array format, falling back to the built-in defaults for any slot the
// legacy config left unset.
func migrateActionBarHints(p SearchPrefixes) []ActionBarHint {
	var hints []ActionBarHint
	used := map[string]bool{}

	add := func(prefix *string, plugin, label, icon string) {
		if prefix == nil {
			return
		}
		hints = append(hints, ActionBarHint{Prefix: *prefix, Plugin: plugin, Label: util.Ptr(label), Icon: util.Ptr(icon)})
		used[plugin] = true
	}
	add(p.File, "files", "Files", "folder_open")
	add(p.Clipboard, "clipboard", "Clipboard", "content_paste")
	add(p.ShellHistory, "shell", "Shell", "terminal")

	if len(hints) == 0 {
		return DefaultActionBarHints()
	}
	for _, d := range DefaultActionBarHints() {
		if !used[d.Plugin] {
			hints = append(hints, d)
		}
	}
	return hints
}
