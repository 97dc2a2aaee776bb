package search

import (
	"testing"

	"github.com/hamr-launcher/hamrd/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func searchable(pluginID, name string, pluginRoot bool) index.Searchable {
	return index.Searchable{
		PluginID:     pluginID,
		Item:         &index.IndexedItem{Item: index.Item{ID: name, Name: name}},
		Text:         name,
		IsPluginRoot: pluginRoot,
	}
}

func TestFuzzyEmptyQueryReturnsNoResults(t *testing.T) {
	out := Fuzzy("", []index.Searchable{searchable("apps", "Firefox", false)})
	assert.Empty(t, out)
}

func TestFuzzyExactNameMatchOutranksSubsequence(t *testing.T) {
	items := []index.Searchable{
		searchable("apps", "Firefox", false),
		searchable("apps", "File Explorer", false),
	}
	out := Fuzzy("firefox", items)
	require.NotEmpty(t, out)
	assert.Equal(t, "Firefox", out[0].Item.Item.Name)
}

func TestFuzzyNoMatchIsExcluded(t *testing.T) {
	items := []index.Searchable{searchable("apps", "Firefox", false)}
	out := Fuzzy("zzz", items)
	assert.Empty(t, out)
}

func TestPluginRootBonusRanksPluginEntryHigher(t *testing.T) {
	root := searchable("apps", "app", true)
	other := searchable("apps", "apple", false)
	out := Fuzzy("app", []index.Searchable{other, root})
	require.Len(t, out, 2)
	assert.True(t, out[0].IsPluginRoot)
}

func TestCompositeClampsFrecencyBoost(t *testing.T) {
	m := Match{Score: 100}
	assert.Equal(t, 100+300.0, Composite(m, 1000))
	assert.Equal(t, 100+50.0, Composite(m, 5))
}

func TestCompositeAddsHistoryBonus(t *testing.T) {
	m := Match{Score: 100, IsHistory: true}
	assert.Equal(t, 100+200.0, Composite(m, 0))
}

func TestApplyDiversityDecayPenalizesRepeatedPlugin(t *testing.T) {
	results := []Match{
		{PluginID: "apps", Item: &index.IndexedItem{Item: index.Item{ID: "a"}}, Score: 1000},
		{PluginID: "apps", Item: &index.IndexedItem{Item: index.Item{ID: "b"}}, Score: 900},
		{PluginID: "files", Item: &index.IndexedItem{Item: index.Item{ID: "c"}}, Score: 800},
	}
	out := ApplyDiversityDecay(results, DefaultDiversityDecay, 0)
	require.Len(t, out, 3)
	assert.Equal(t, "a", out[0].Item.Item.ID)
	assert.InDelta(t, 900*0.7, out[2].Score, 0.001)
}

func TestApplyDiversityDecayPerPluginCap(t *testing.T) {
	results := []Match{
		{PluginID: "apps", Item: &index.IndexedItem{Item: index.Item{ID: "a"}}, Score: 1000},
		{PluginID: "apps", Item: &index.IndexedItem{Item: index.Item{ID: "b"}}, Score: 900},
		{PluginID: "apps", Item: &index.IndexedItem{Item: index.Item{ID: "c"}}, Score: 800},
	}
	out := ApplyDiversityDecay(results, DefaultDiversityDecay, 2)
	assert.Len(t, out, 2)
}

func TestDedupKeepsHighestScoringPerItemID(t *testing.T) {
	results := []Match{
		{PluginID: "apps", Item: &index.IndexedItem{Item: index.Item{ID: "a"}}, Score: 1000},
		{PluginID: "apps", Item: &index.IndexedItem{Item: index.Item{ID: "a"}}, Score: 500},
	}
	out := Dedup(results)
	require.Len(t, out, 1)
	assert.Equal(t, 1000.0, out[0].Score)
}

func TestFuzzyCapsAtMaxResults(t *testing.T) {
	var items []index.Searchable
	for i := 0; i < MaxResults+20; i++ {
		items = append(items, searchable("apps", "appitem", false))
	}
	out := Fuzzy("app", items)
	assert.Len(t, out, MaxResults)
}
