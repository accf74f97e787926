package main

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

// fakeNavCache answers Request from a fixed state table and records navigation
type fakeNavCache struct {
	states    map[string]EntryState
	requests  []string
	navigated []int
}

func (f *fakeNavCache) Request(path string, priority int) (EntrySnapshot, error) {
	f.requests = append(f.requests, path)
	return EntrySnapshot{Path: path, State: f.states[path]}, nil
}

func (f *fakeNavCache) OnNavigate(current int) error {
	f.navigated = append(f.navigated, current)
	return nil
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestPlayback(n int, wrap bool) (*PlaybackManager, *fakeNavCache, *fakeClock) {
	cache := &fakeNavCache{states: make(map[string]EntryState)}
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	pm := NewPlaybackManager(testIndex(n), cache, 0, PlaybackConfig{MaxWait: time.Second, Wrap: wrap})
	pm.now = clock.now
	return pm, cache, clock
}

func TestPlaybackAdvancesWhenReady(t *testing.T) {
	pm, cache, clock := newTestPlayback(5, true)
	cache.states[testPath(1)] = StateReady

	if err := pm.Start(2 * time.Second); err != nil {
		t.Fatal(err)
	}

	clock.advance(1999 * time.Millisecond)
	if got := pm.Tick(); got != TickIdle {
		t.Errorf("Tick() before interval = %s, want idle", got)
	}

	clock.advance(time.Millisecond)
	if got := pm.Tick(); got != TickAdvanced {
		t.Errorf("Tick() at interval = %s, want advanced", got)
	}
	if pm.Current() != 1 {
		t.Errorf("Current() = %d, want 1", pm.Current())
	}
	if !reflect.DeepEqual(cache.navigated, []int{1}) {
		t.Errorf("OnNavigate calls = %v, want [1]", cache.navigated)
	}

	// The interval restarts from the advance
	clock.advance(time.Second)
	if got := pm.Tick(); got != TickIdle {
		t.Errorf("Tick() after advance = %s, want idle", got)
	}
}

func TestPlaybackWaitsThenSkips(t *testing.T) {
	pm, cache, clock := newTestPlayback(5, true)
	cache.states[testPath(1)] = StateDecoding

	if err := pm.Start(2 * time.Second); err != nil {
		t.Fatal(err)
	}

	clock.advance(2 * time.Second)
	if got := pm.Tick(); got != TickWaiting {
		t.Errorf("Tick() = %s, want waiting", got)
	}
	clock.advance(999 * time.Millisecond)
	if got := pm.Tick(); got != TickWaiting {
		t.Errorf("Tick() just before max wait = %s, want waiting", got)
	}
	if pm.Current() != 0 {
		t.Errorf("Current() = %d while waiting, want 0", pm.Current())
	}

	clock.advance(time.Millisecond)
	if got := pm.Tick(); got != TickSkipped {
		t.Errorf("Tick() at max wait = %s, want skipped", got)
	}
	if pm.Current() != 1 {
		t.Errorf("Current() = %d, want 1", pm.Current())
	}

	stats := pm.GetStats()
	if stats.Skipped != 1 || stats.Advanced != 0 || stats.LastOutcome != TickSkipped {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestPlaybackAdvancesPastFailed(t *testing.T) {
	pm, cache, clock := newTestPlayback(3, true)
	cache.states[testPath(1)] = StateFailed

	if err := pm.Start(time.Second); err != nil {
		t.Fatal(err)
	}
	clock.advance(time.Second)
	if got := pm.Tick(); got != TickAdvanced {
		t.Errorf("Tick() = %s, want advanced", got)
	}
}

func TestPlaybackEndsWithoutWrap(t *testing.T) {
	pm, cache, clock := newTestPlayback(2, false)
	cache.states[testPath(1)] = StateReady

	if err := pm.Start(time.Second); err != nil {
		t.Fatal(err)
	}
	clock.advance(time.Second)
	if got := pm.Tick(); got != TickAdvanced {
		t.Fatalf("Tick() = %s, want advanced", got)
	}

	clock.advance(time.Second)
	if got := pm.Tick(); got != TickEnded {
		t.Errorf("Tick() at the end = %s, want ended", got)
	}
	if pm.IsPlaying() {
		t.Error("Playback should stop at the end without wrap")
	}
	if pm.Current() != 1 {
		t.Errorf("Current() = %d, want 1", pm.Current())
	}
	if got := pm.Tick(); got != TickIdle {
		t.Errorf("Tick() after end = %s, want idle", got)
	}
}

func TestPlaybackWrapsAround(t *testing.T) {
	pm, cache, clock := newTestPlayback(2, true)
	cache.states[testPath(0)] = StateReady
	cache.states[testPath(1)] = StateReady

	if err := pm.Start(time.Second); err != nil {
		t.Fatal(err)
	}
	for _, want := range []int{1, 0, 1} {
		clock.advance(time.Second)
		pm.Tick()
		if pm.Current() != want {
			t.Fatalf("Current() = %d, want %d", pm.Current(), want)
		}
	}
}

func TestPlaybackManualNavigationResetsInterval(t *testing.T) {
	pm, cache, clock := newTestPlayback(5, true)
	cache.states[testPath(3)] = StateReady

	if err := pm.Start(2 * time.Second); err != nil {
		t.Fatal(err)
	}

	clock.advance(1500 * time.Millisecond)
	if err := pm.Next(); err != nil {
		t.Fatal(err)
	}
	if pm.Current() != 1 {
		t.Fatalf("Current() = %d, want 1", pm.Current())
	}

	// Only 1.5s since the manual move
	clock.advance(1500 * time.Millisecond)
	if got := pm.Tick(); got != TickIdle {
		t.Errorf("Tick() = %s, want idle after manual navigation", got)
	}

	clock.advance(500 * time.Millisecond)
	if got := pm.Tick(); got != TickWaiting {
		t.Errorf("Tick() = %s, want waiting on an unloaded image", got)
	}
	if err := pm.JumpTo(2); err != nil {
		t.Fatal(err)
	}
	clock.advance(2 * time.Second)
	if got := pm.Tick(); got != TickAdvanced || pm.Current() != 3 {
		t.Errorf("Tick() = %s at %d, want advanced to 3", got, pm.Current())
	}
}

func TestPlaybackNavigation(t *testing.T) {
	pm, cache, _ := newTestPlayback(3, false)

	if err := pm.Prev(); !errors.Is(err, ErrNotFound) {
		t.Errorf("Prev() at start error = %v, want ErrNotFound", err)
	}
	if err := pm.JumpTo(2); err != nil {
		t.Fatal(err)
	}
	if err := pm.Next(); !errors.Is(err, ErrNotFound) {
		t.Errorf("Next() at end error = %v, want ErrNotFound", err)
	}
	if err := pm.JumpTo(3); !errors.Is(err, ErrNotFound) {
		t.Errorf("JumpTo(3) error = %v, want ErrNotFound", err)
	}
	if err := pm.JumpToPath(testPath(1)); err != nil {
		t.Fatal(err)
	}
	if err := pm.JumpToPath("/img/missing.png"); !errors.Is(err, ErrNotFound) {
		t.Errorf("JumpToPath() error = %v, want ErrNotFound", err)
	}

	if pm.Current() != 1 {
		t.Errorf("Current() = %d, want 1", pm.Current())
	}
	if !reflect.DeepEqual(cache.navigated, []int{2, 1}) {
		t.Errorf("OnNavigate calls = %v, want [2 1]", cache.navigated)
	}
}

func TestPlaybackStartStop(t *testing.T) {
	pm, _, _ := newTestPlayback(3, true)

	if err := pm.Start(0); err == nil {
		t.Error("Start(0) should fail")
	}
	if pm.IsPlaying() {
		t.Error("Failed start should leave playback stopped")
	}

	if err := pm.Toggle(3 * time.Second); err != nil {
		t.Fatal(err)
	}
	if !pm.IsPlaying() || pm.Interval() != 3*time.Second {
		t.Errorf("IsPlaying() = %v, Interval() = %s", pm.IsPlaying(), pm.Interval())
	}
	if err := pm.Toggle(3 * time.Second); err != nil {
		t.Fatal(err)
	}
	if pm.IsPlaying() {
		t.Error("Second toggle should stop playback")
	}
	if got := pm.Tick(); got != TickIdle {
		t.Errorf("Tick() while stopped = %s, want idle", got)
	}
}
