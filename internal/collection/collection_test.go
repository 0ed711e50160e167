// ABOUTME: Tests for the Slot, Log and Cache collections
// ABOUTME: Covers caps, ordering, dedup, malformed data, failed saves and concurrency

package collection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/2389/statekeeper/internal/kvstore"
)

type entry struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

func (e entry) Key() string { return e.ID }

func binding(s kvstore.Store, namespace, slot string) Binding {
	return Binding{Store: s, Namespace: namespace, Slot: slot, Locks: NewLocks()}
}

func ids(entries []entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestSlot_AbsentBeforeFirstSet(t *testing.T) {
	slot := NewSlot[entry](binding(kvstore.NewMemoryStore(), "accessibility", "settings"))

	_, ok, err := slot.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSlot_SetOverwrites(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	slot := NewSlot[map[string]any](binding(store, "accessibility", "settings"))

	require.NoError(t, slot.Set(ctx, map[string]any{"a": 1.0, "b": 2.0}))
	require.NoError(t, slot.Set(ctx, map[string]any{"c": 3.0}))

	got, ok, err := slot.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"c": 3.0}, got, "no merge with the previous value")

	persisted, ok := store.Persisted("accessibility", "settings")
	require.True(t, ok)
	assert.JSONEq(t, `{"c":3}`, string(persisted))
}

func TestSlot_MalformedIsAbsent(t *testing.T) {
	store := kvstore.NewMemoryStore()
	store.Seed("accessibility", "settings", json.RawMessage(`"not an object"`))
	slot := NewSlot[entry](binding(store, "accessibility", "settings"))

	_, ok, err := slot.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSlot_NullAndUncheckedShapesAreAbsent(t *testing.T) {
	for _, stored := range []string{`null`, `{}`, `{"legacy_field":1}`} {
		t.Run(stored, func(t *testing.T) {
			store := kvstore.NewMemoryStore()
			store.Seed("accessibility", "settings", json.RawMessage(stored))
			b := binding(store, "accessibility", "settings")
			b.Check = requireID
			slot := NewSlot[entry](b)

			got, ok, err := slot.Get(context.Background())
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Zero(t, got)
		})
	}
}

func TestSlot_StoreAccessError(t *testing.T) {
	store := kvstore.NewMemoryStore()
	store.FailOpen(errors.New("permission denied"))
	slot := NewSlot[entry](binding(store, "accessibility", "settings"))

	_, _, err := slot.Get(context.Background())
	assert.ErrorIs(t, err, kvstore.ErrStoreAccess)

	err = slot.Set(context.Background(), entry{ID: "x"})
	assert.ErrorIs(t, err, kvstore.ErrStoreAccess)
}

func TestLog_CapKeepsMostRecentInOrder(t *testing.T) {
	ctx := context.Background()
	log := NewLog[entry](binding(kvstore.NewMemoryStore(), "voice_commands", "history"), 1000)

	for i := 1; i <= 1005; i++ {
		require.NoError(t, log.Append(ctx, entry{ID: strconv.Itoa(i)}))
	}

	n, err := log.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1000, n)

	recent, err := log.Recent(ctx, 1000)
	require.NoError(t, err)
	require.Len(t, recent, 1000)
	assert.Equal(t, "1005", recent[0].ID)
	assert.Equal(t, "6", recent[999].ID)
	for i, e := range recent {
		assert.Equal(t, strconv.Itoa(1005-i), e.ID)
	}
}

func TestLog_LengthIsMinOfAppendsAndCap(t *testing.T) {
	ctx := context.Background()

	for _, n := range []int{0, 1, 4, 5, 6, 13} {
		t.Run(strconv.Itoa(n), func(t *testing.T) {
			log := NewLog[entry](binding(kvstore.NewMemoryStore(), "voice_commands", "history"), 5)
			for i := 0; i < n; i++ {
				require.NoError(t, log.Append(ctx, entry{ID: strconv.Itoa(i)}))
			}

			got, err := log.Recent(ctx, 100)
			require.NoError(t, err)
			assert.Len(t, got, min(n, 5))

			// Retained entries are the most recent, newest first.
			for i, e := range got {
				assert.Equal(t, strconv.Itoa(n-1-i), e.ID)
			}
		})
	}
}

func TestLog_RecentLimit(t *testing.T) {
	ctx := context.Background()
	log := NewLog[entry](binding(kvstore.NewMemoryStore(), "voice_commands", "history"), 10)
	for i := 1; i <= 4; i++ {
		require.NoError(t, log.Append(ctx, entry{ID: strconv.Itoa(i)}))
	}

	got, err := log.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "3"}, ids(got))

	got, err = log.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = log.Recent(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "3", "2", "1"}, ids(got))

	// Reads are non-destructive.
	n, err := log.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestLog_SameTimestampUsesAppendOrder(t *testing.T) {
	type stamped struct {
		ID        string `json:"id"`
		Timestamp string `json:"timestamp"`
	}
	ctx := context.Background()
	log := NewLog[stamped](binding(kvstore.NewMemoryStore(), "voice_commands", "history"), 10)

	ts := "2025-01-01T00:00:00Z"
	require.NoError(t, log.Append(ctx, stamped{ID: "first", Timestamp: ts}))
	require.NoError(t, log.Append(ctx, stamped{ID: "second", Timestamp: ts}))

	got, err := log.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[0].ID)
}

func TestLog_ClearThenAppend(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	log := NewLog[entry](binding(store, "voice_commands", "history"), 3)

	for i := 0; i < 5; i++ {
		require.NoError(t, log.Append(ctx, entry{ID: strconv.Itoa(i)}))
	}
	require.NoError(t, log.Clear(ctx))

	got, err := log.Recent(ctx, 100)
	require.NoError(t, err)
	assert.Empty(t, got)

	persisted, ok := store.Persisted("voice_commands", "history")
	require.True(t, ok, "clear keeps the namespace")
	assert.Equal(t, "[]", string(persisted))

	require.NoError(t, log.Append(ctx, entry{ID: "fresh"}))
	got, err = log.Recent(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, ids(got))
}

func TestLog_MalformedIsEmpty(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	store.Seed("voice_commands", "history", json.RawMessage(`{"legacy": true}`))
	log := NewLog[entry](binding(store, "voice_commands", "history"), 3)

	got, err := log.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, log.Append(ctx, entry{ID: "a"}))
	got, err = log.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(got))
}

func TestLog_NullIsEmpty(t *testing.T) {
	store := kvstore.NewMemoryStore()
	store.Seed("voice_commands", "history", json.RawMessage(`null`))
	log := NewLog[entry](binding(store, "voice_commands", "history"), 3)

	got, err := log.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLog_UncheckedEntryEmptiesLog(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	store.Seed("voice_commands", "history", json.RawMessage(`[{"id":"1"},{"x":1}]`))
	b := binding(store, "voice_commands", "history")
	b.Check = requireID
	log := NewLog[entry](b, 10)

	got, err := log.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, log.Append(ctx, entry{ID: "2"}))
	got, err = log.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, ids(got), "next write replaces the malformed value")
}

func TestNewLog_RejectsNonPositiveCap(t *testing.T) {
	assert.Panics(t, func() {
		NewLog[entry](binding(kvstore.NewMemoryStore(), "voice_commands", "history"), 0)
	})
}

func TestCache_ReplaceMovesToNewest(t *testing.T) {
	ctx := context.Background()
	cache := NewCache[entry](binding(kvstore.NewMemoryStore(), "document_cache", "scans"), 50)

	require.NoError(t, cache.Put(ctx, entry{ID: "A", Body: "old"}))
	require.NoError(t, cache.Put(ctx, entry{ID: "B"}))
	require.NoError(t, cache.Put(ctx, entry{ID: "C"}))
	require.NoError(t, cache.Put(ctx, entry{ID: "A", Body: "new"}))

	all, err := cache.Entries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C", "A"}, ids(all))

	got, ok, err := cache.Get(ctx, "A")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new", got.Body)
}

func TestCache_UniqueAndCapped(t *testing.T) {
	ctx := context.Background()
	cache := NewCache[entry](binding(kvstore.NewMemoryStore(), "document_cache", "scans"), 50)

	for i := 0; i < 300; i++ {
		id := strconv.Itoa((i * 7) % 61)
		require.NoError(t, cache.Put(ctx, entry{ID: id, Body: strconv.Itoa(i)}))

		all, err := cache.Entries(ctx)
		require.NoError(t, err)
		require.LessOrEqual(t, len(all), 50)

		seen := make(map[string]bool, len(all))
		for _, e := range all {
			require.False(t, seen[e.ID], "duplicate id %s after put %d", e.ID, i)
			seen[e.ID] = true
		}
	}
}

func TestCache_ReplacedEntrySurvivesEviction(t *testing.T) {
	ctx := context.Background()
	cache := NewCache[entry](binding(kvstore.NewMemoryStore(), "document_cache", "scans"), 3)

	require.NoError(t, cache.Put(ctx, entry{ID: "A"}))
	require.NoError(t, cache.Put(ctx, entry{ID: "B"}))
	require.NoError(t, cache.Put(ctx, entry{ID: "C"}))
	require.NoError(t, cache.Put(ctx, entry{ID: "A", Body: "refreshed"}))
	require.NoError(t, cache.Put(ctx, entry{ID: "D"}))

	all, err := cache.Entries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "D"}, ids(all), "B is the oldest untouched entry")

	_, ok, err := cache.Get(ctx, "B")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_GetMissing(t *testing.T) {
	cache := NewCache[entry](binding(kvstore.NewMemoryStore(), "document_cache", "scans"), 5)

	_, ok, err := cache.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_LegacyDuplicatesCollapse(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	store.Seed("document_cache", "scans", json.RawMessage(`[{"id":"A","body":"1"},{"id":"B"},{"id":"A","body":"2"}]`))
	cache := NewCache[entry](binding(store, "document_cache", "scans"), 5)

	require.NoError(t, cache.Put(ctx, entry{ID: "C"}))

	all, err := cache.Entries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A", "C"}, ids(all))
}

func TestCache_Clear(t *testing.T) {
	ctx := context.Background()
	cache := NewCache[entry](binding(kvstore.NewMemoryStore(), "document_cache", "scans"), 5)

	require.NoError(t, cache.Put(ctx, entry{ID: "A"}))
	require.NoError(t, cache.Clear(ctx))

	n, err := cache.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpdate_FailedSaveRestoresPreviousValue(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	log := NewLog[entry](binding(store, "voice_commands", "history"), 10)

	require.NoError(t, log.Append(ctx, entry{ID: "kept"}))

	store.FailSave("voice_commands", errors.New("disk full"))
	err := log.Append(ctx, entry{ID: "lost"})
	assert.ErrorIs(t, err, kvstore.ErrPersistence)

	got, err := log.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, ids(got), "unsaved append must not be visible")

	store.FailSave("voice_commands", nil)
	require.NoError(t, log.Append(ctx, entry{ID: "retry"}))
	got, err = log.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"retry", "kept"}, ids(got))
}

func TestUpdate_ReadDuringFailingSaveSeesPreviousValue(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	slot := NewSlot[entry](binding(store, "accessibility", "settings"))
	require.NoError(t, slot.Set(ctx, entry{ID: "old"}))

	var seen []string
	store.BeforeSave(func(string) {
		got, ok, err := slot.Get(ctx)
		if err != nil || !ok {
			seen = append(seen, fmt.Sprintf("ok=%v err=%v", ok, err))
			return
		}
		seen = append(seen, got.ID)
	})
	store.FailSave("accessibility", errors.New("disk full"))

	require.ErrorIs(t, slot.Set(ctx, entry{ID: "new"}), kvstore.ErrPersistence)
	assert.Equal(t, []string{"old"}, seen, "interleaved read must not see the unsaved value")

	got, ok, err := slot.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "old", got.ID)
}

func TestUpdate_FailedFirstSaveLeavesSlotAbsent(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	slot := NewSlot[entry](binding(store, "accessibility", "settings"))

	store.FailSave("accessibility", errors.New("read-only filesystem"))
	require.ErrorIs(t, slot.Set(ctx, entry{ID: "x"}), kvstore.ErrPersistence)

	_, ok, err := slot.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdate_ConcurrentAppendsAreNotLost(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	locks := NewLocks()
	log := NewLog[entry](Binding{Store: store, Namespace: "voice_commands", Slot: "history", Locks: locks}, 1000)

	// Widen the window between read and save.
	store.BeforeSave(func(string) { time.Sleep(time.Millisecond) })

	var g errgroup.Group
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			return log.Append(ctx, entry{ID: fmt.Sprintf("cmd-%d", i)})
		})
	}
	require.NoError(t, g.Wait())

	n, err := log.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, n)
}

func TestUpdate_TwoConcurrentAppendsOnEmptyLog(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	log := NewLog[entry](binding(store, "voice_commands", "history"), 1000)

	start := make(chan struct{})
	var wg sync.WaitGroup
	for _, id := range []string{"one", "two"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			assert.NoError(t, log.Append(ctx, entry{ID: id}))
		}()
	}
	close(start)
	wg.Wait()

	got, err := log.Recent(ctx, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"one", "two"}, ids(got))
}

func TestUpdate_NamespacesDoNotBlockEachOther(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	locks := NewLocks()
	history := NewLog[entry](Binding{Store: store, Namespace: "voice_commands", Slot: "history", Locks: locks}, 10)
	scans := NewCache[entry](Binding{Store: store, Namespace: "document_cache", Slot: "scans", Locks: locks}, 10)

	// Hold the history lock; a cache put must still complete.
	lock := locks.For("voice_commands")
	lock.Lock()
	defer lock.Unlock()

	done := make(chan error, 1)
	go func() { done <- scans.Put(ctx, entry{ID: "A"}) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("cache put blocked on an unrelated namespace lock")
	}

	// Reads do not take the lock either.
	_, err := history.Recent(ctx, 10)
	require.NoError(t, err)
}

func TestUpdate_CanceledCallerStillCompletes(t *testing.T) {
	store := kvstore.NewMemoryStore()
	locks := NewLocks()
	log := NewLog[entry](Binding{Store: store, Namespace: "voice_commands", Slot: "history", Locks: locks}, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, log.Append(ctx, entry{ID: "after-cancel"}))

	persisted, ok := store.Persisted("voice_commands", "history")
	require.True(t, ok)
	assert.JSONEq(t, `[{"id":"after-cancel","body":""}]`, string(persisted))
}

func TestLocks_ZeroValue(t *testing.T) {
	var l Locks
	a := l.For("x")
	b := l.For("x")
	c := l.For("y")
	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}
