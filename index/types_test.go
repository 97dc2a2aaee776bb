package index

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemUnmarshalCapturesUnknownFieldsIntoExtra(t *testing.T) {
	var it Item
	require.NoError(t, json.Unmarshal([]byte(`{"id":"a","name":"Alpha","widget":"toggle","count":42}`), &it))

	assert.Equal(t, "Alpha", it.Name)
	require.NotNil(t, it.Extra)
	assert.Equal(t, "toggle", it.Extra["widget"])
	assert.EqualValues(t, 42, it.Extra["count"])
}

func TestItemMarshalFlattensExtraBackOntoTopLevel(t *testing.T) {
	it := Item{ID: "a", Name: "Alpha", Extra: map[string]interface{}{"widget": "toggle"}}

	raw, err := json.Marshal(it)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "a", decoded["id"])
	assert.Equal(t, "toggle", decoded["widget"])
}

func TestItemRoundTripPreservesExtraThroughStore(t *testing.T) {
	s := New()
	s.UpdateFull("apps", []Item{{ID: "a", Name: "Alpha", Extra: map[string]interface{}{"badge": "3"}}})

	item, ok := s.GetItem("apps", "a")
	require.True(t, ok)
	assert.Equal(t, "3", item.Item.Extra["badge"])
}
