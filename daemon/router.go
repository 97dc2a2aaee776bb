package daemon

import (
	"sort"
	"time"

	"github.com/hamr-launcher/hamrd/core"
	"github.com/hamr-launcher/hamrd/handlers"
	"github.com/hamr-launcher/hamrd/index"
	"github.com/hamr-launcher/hamrd/search"
)

// routerImpl is the concrete core.Router the daemon wires into its Core:
// RouteToPlugin forwards straight to the plugin connection, RouteGlobal runs
// the full search pipeline (component G) and broadcasts the result.
type routerImpl struct {
	d *Daemon
}

var _ core.Router = (*routerImpl)(nil)

func (r *routerImpl) RouteToPlugin(pluginID, query string) {
	r.d.core.ForwardQuery(pluginID, query)
}

// RouteGlobal runs a query through the global search pipeline: fuzzy match
// every indexed searchable, score each match with its frecency boost, apply
// per-plugin diversity decay and de-duplication, truncate to the
// configured display cap, then broadcast the ranked set to the active UI.
func (r *routerImpl) RouteGlobal(query string) {
	now := time.Now().UnixMilli()
	searchables := r.d.store.BuildSearchables()
	matches := search.Fuzzy(query, searchables)

	for i, m := range matches {
		if m.Item == nil {
			continue
		}
		frecency := index.CalculateFrecency(m.Item.Frecency, now)
		matches[i].Score = search.Composite(m, frecency)
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })

	decay := r.d.cfg.Search.DiversityDecay
	if decay <= 0 {
		decay = search.DefaultDiversityDecay
	}
	matches = search.ApplyDiversityDecay(matches, decay, r.d.cfg.Search.MaxResultsPerPlugin)
	matches = search.Dedup(matches)

	max := r.d.cfg.Search.MaxDisplayedResults
	if max > 0 && len(matches) > max {
		matches = matches[:max]
	}

	handlers.BroadcastSearchResults(r.d.hc, matches)
}
