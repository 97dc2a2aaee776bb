// Package search implements fuzzy matching over index searchables, layered
// with name-match and plugin-entry bonuses, frecency and history boosts, and
// per-plugin diversity decay (component G).
//
// No third-party fuzzy-ranking library is available in the surrounding
// dependency stack, so matching itself is built on the standard library,
// following the normalize-then-scan idiom used elsewhere in this codebase's
// lineage for lightweight string matching. See DESIGN.md for the full
// justification.
package search

import (
	"math"
	"sort"
	"strings"

	"github.com/hamr-launcher/hamrd/index"
)

// MaxResults is the hard cap on matches returned by Match, before any
// downstream diversity cap is applied.
const MaxResults = 100

const (
	exactNameBonus  = 500.0
	prefixBaseBonus = 250.0
	prefixMaxBonus  = 250.0
	pluginRootBonus = 150.0
	frecencyScale   = 10.0
	frecencyCap     = 300.0
	historyBonus    = 200.0

	// DefaultDiversityDecay is applied once per higher-ranked result sharing
	// a plugin id, as `score *= decay^k`.
	DefaultDiversityDecay = 0.7
)

// Match is one ranked search result, carrying enough of the originating
// searchable for downstream composite scoring and display.
type Match struct {
	PluginID     string
	Item         *index.IndexedItem
	Score        float64
	IsHistory    bool
	IsPluginRoot bool
}

// Fuzzy runs smart-case substring fuzzy matching across name and keywords
// for every searchable, returning up to MaxResults matches sorted by
// descending score. An empty query returns no results.
func Fuzzy(query string, searchables []index.Searchable) []Match {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	smartCase := hasUpper(query)
	queryCmp := query
	if !smartCase {
		queryCmp = strings.ToLower(query)
	}

	out := make([]Match, 0, len(searchables))
	for _, sv := range searchables {
		score, ok := fuzzyScore(queryCmp, sv.Text, smartCase)
		for _, kw := range sv.Item.Item.Keywords {
			if kwScore, kwOK := fuzzyScore(queryCmp, kw, smartCase); kwOK && (!ok || kwScore > score) {
				score, ok = kwScore, true
			}
		}
		if !ok {
			continue
		}

		score += nameMatchBonus(queryCmp, sv.Item.Item.Name, smartCase)
		if sv.IsPluginRoot {
			score += pluginRootBonus
		}

		out = append(out, Match{
			PluginID:     sv.PluginID,
			Item:         sv.Item,
			Score:        score,
			IsHistory:    sv.IsHistory,
			IsPluginRoot: sv.IsPluginRoot,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > MaxResults {
		out = out[:MaxResults]
	}
	return out
}

func hasUpper(s string) bool {
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			return true
		}
	}
	return false
}

// fuzzyScore scores text against query with a simple normalize-and-scan
// strategy: an exact substring match scores highest, contiguous matches
// beat scattered subsequence matches, and an earlier match position scores
// slightly higher than a later one. Returns ok=false on no match at all.
func fuzzyScore(query, text string, smartCase bool) (float64, bool) {
	if text == "" {
		return 0, false
	}
	cmp := text
	if !smartCase {
		cmp = strings.ToLower(text)
	}

	if idx := strings.Index(cmp, query); idx >= 0 {
		positionFactor := 1.0 - float64(idx)/float64(len(cmp)+1)
		lengthFactor := float64(len(query)) / float64(len(cmp))
		return 700 + 200*positionFactor + 100*lengthFactor, true
	}

	// Subsequence fallback: every query rune must appear in order.
	qi := 0
	qr := []rune(query)
	span := 0
	last := -1
	for i, r := range cmp {
		if qi < len(qr) && r == qr[qi] {
			if last >= 0 {
				span += i - last
			}
			last = i
			qi++
		}
	}
	if qi < len(qr) {
		return 0, false
	}
	density := float64(len(qr)) / float64(span+1)
	return math.Min(699, 300*density), true
}

// nameMatchBonus implements the spec's exact/prefix bonus against the
// item's display name specifically (independent of which text matched).
func nameMatchBonus(query, name string, smartCase bool) float64 {
	if name == "" {
		return 0
	}
	cmpName := name
	cmpQuery := query
	if !smartCase {
		cmpName = strings.ToLower(name)
	}

	if cmpName == cmpQuery {
		return exactNameBonus
	}
	if strings.HasPrefix(cmpName, cmpQuery) {
		return prefixBaseBonus + prefixMaxBonus*(float64(len(cmpQuery))/float64(len(cmpName)))
	}
	return 0
}

// Composite folds in frecency and history boosts atop a fuzzy match's score,
// per spec §4.G.
func Composite(m Match, frecency float64) float64 {
	score := m.Score + clamp(frecency*frecencyScale, 0, frecencyCap)
	if m.IsHistory {
		score += historyBonus
	}
	return score
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ApplyDiversityDecay multiplies each result's score by decay^k, where k is
// the count of higher-ranked results sharing its plugin id, then re-sorts
// descending. perPluginCap, if > 0, drops results beyond that many per
// plugin id after decay is applied. Input must already be sorted
// descending by score.
func ApplyDiversityDecay(results []Match, decay float64, perPluginCap int) []Match {
	if decay <= 0 {
		decay = DefaultDiversityDecay
	}
	counts := make(map[string]int)
	decayed := make([]Match, len(results))
	for i, m := range results {
		k := counts[m.PluginID]
		decayed[i] = m
		decayed[i].Score = m.Score * math.Pow(decay, float64(k))
		counts[m.PluginID] = k + 1
	}

	sort.SliceStable(decayed, func(i, j int) bool { return decayed[i].Score > decayed[j].Score })

	if perPluginCap > 0 {
		kept := make([]Match, 0, len(decayed))
		seen := make(map[string]int)
		for _, m := range decayed {
			if seen[m.PluginID] >= perPluginCap {
				continue
			}
			seen[m.PluginID]++
			kept = append(kept, m)
		}
		decayed = kept
	}

	return decayed
}

// Dedup keeps only the highest-scoring match per item id. Input must already
// be sorted descending by score.
func Dedup(results []Match) []Match {
	seen := make(map[string]bool, len(results))
	out := make([]Match, 0, len(results))
	for _, m := range results {
		key := m.PluginID + "\x00" + m.Item.Item.ID
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}
	return out
}
