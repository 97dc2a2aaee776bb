package persist

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamr-launcher/hamrd/index"
)

func TestSchedulerShutdownForcesSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")

	store := index.New()
	store.UpdateFull("apps", []index.Item{{ID: "a", Name: "Alpha"}})

	sched := New(store, path)
	require.NoError(t, sched.Shutdown())

	assert.FileExists(t, path)
	assert.False(t, store.IsDirty())
}

func TestMaybeSaveSkipsWhenNotDirty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")

	store := index.New()
	sched := New(store, path)
	sched.maybeSave()

	assert.NoFileExists(t, path)
}

func TestMaybeSaveSkipsWithinSettleWindow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")

	store := index.New()
	store.UpdateFull("apps", []index.Item{{ID: "a", Name: "Alpha"}})

	sched := New(store, path)
	sched.maybeSave() // lastDirtyAt is "now"; settle window not yet elapsed

	assert.NoFileExists(t, path)
	assert.True(t, store.IsDirty())
}

func TestMaybeSaveWritesOncePastSettleWindow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")

	store := index.New()
	store.UpdateFull("apps", []index.Item{{ID: "a", Name: "Alpha"}})

	original := nowMillis
	nowMillis = func() int64 { return original() + settleDelay.Milliseconds() + 1 }
	defer func() { nowMillis = original }()

	sched := New(store, path)
	sched.maybeSave()

	assert.FileExists(t, path)
	assert.False(t, store.IsDirty())
}

func TestStartStopIsIdempotentAndClean(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")
	store := index.New()
	sched := New(store, path)

	sched.Start()
	sched.Start() // no-op, must not panic or double-launch
	time.Sleep(10 * time.Millisecond)
	sched.Stop()
	sched.Stop() // no-op

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
