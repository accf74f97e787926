package main

import (
	"fmt"
	"log"
	"time"
)

// PlaybackState is either stopped or playing
type PlaybackState int

const (
	PlaybackStopped PlaybackState = iota
	PlaybackPlaying
)

// TickOutcome reports what one playback tick did
type TickOutcome int

const (
	TickIdle     TickOutcome = iota // not playing, or interval not elapsed
	TickWaiting                     // interval elapsed, next image still loading
	TickAdvanced                    // advanced to a loaded (or failed) image
	TickSkipped                     // advanced after max_wait without the image being ready
	TickEnded                       // reached the last image without wrap; playback stopped
)

func (o TickOutcome) String() string {
	switch o {
	case TickIdle:
		return "idle"
	case TickWaiting:
		return "waiting"
	case TickAdvanced:
		return "advanced"
	case TickSkipped:
		return "skipped"
	case TickEnded:
		return "ended"
	default:
		return fmt.Sprintf("TickOutcome(%d)", int(o))
	}
}

// PlaybackStats provides statistics about playback
type PlaybackStats struct {
	Advanced    uint64
	Skipped     uint64
	LastOutcome TickOutcome
}

// navigationCache is what playback needs from the image cache
type navigationCache interface {
	Request(path string, priority int) (EntrySnapshot, error)
	OnNavigate(current int) error
}

// PlaybackConfig holds the playback parameters read at startup
type PlaybackConfig struct {
	MaxWait time.Duration
	Wrap    bool
}

// PlaybackManager owns the current position. It is driven by the UI loop
// (Tick once per frame, navigation on input) and is not safe for
// concurrent use.
type PlaybackManager struct {
	index   *DirectoryIndex
	cache   navigationCache
	maxWait time.Duration
	wrap    bool
	now     func() time.Time

	state         PlaybackState
	interval      time.Duration
	current       int
	intervalStart time.Time
	stats         PlaybackStats
}

// NewPlaybackManager creates a stopped manager positioned at start
func NewPlaybackManager(index *DirectoryIndex, cache navigationCache, start int, cfg PlaybackConfig) *PlaybackManager {
	return &PlaybackManager{
		index:   index,
		cache:   cache,
		maxWait: cfg.MaxWait,
		wrap:    cfg.Wrap,
		now:     time.Now,
		current: start,
	}
}

// Start begins automatic advancing every interval
func (pm *PlaybackManager) Start(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid playback interval %s", interval)
	}
	pm.state = PlaybackPlaying
	pm.interval = interval
	pm.intervalStart = pm.now()
	debugLog("Playback started (interval %s, max wait %s)", interval, pm.maxWait)
	return nil
}

// Stop halts automatic advancing
func (pm *PlaybackManager) Stop() {
	if pm.state == PlaybackPlaying {
		debugLog("Playback stopped")
	}
	pm.state = PlaybackStopped
}

// Toggle stops a running playback or starts one with interval
func (pm *PlaybackManager) Toggle(interval time.Duration) error {
	if pm.IsPlaying() {
		pm.Stop()
		return nil
	}
	return pm.Start(interval)
}

func (pm *PlaybackManager) IsPlaying() bool {
	return pm.state == PlaybackPlaying
}

// Interval returns the interval of the running (or last) playback
func (pm *PlaybackManager) Interval() time.Duration {
	return pm.interval
}

// Current returns the current index
func (pm *PlaybackManager) Current() int {
	return pm.current
}

// Total returns the number of entries in the index
func (pm *PlaybackManager) Total() int {
	return pm.index.Len()
}

// GetStats returns current playback statistics
func (pm *PlaybackManager) GetStats() PlaybackStats {
	return pm.stats
}

// SetIndex replaces the index after a rescan without touching the cache
func (pm *PlaybackManager) SetIndex(index *DirectoryIndex, current int) {
	pm.index = index
	pm.current = current
}

// Tick evaluates the auto-advance condition once. When the interval has
// elapsed it advances if the next image is settled (Ready or Failed), and
// otherwise waits up to max_wait more before advancing anyway.
func (pm *PlaybackManager) Tick() TickOutcome {
	if pm.state != PlaybackPlaying {
		return TickIdle
	}

	now := pm.now()
	elapsed := now.Sub(pm.intervalStart)
	if elapsed < pm.interval {
		return TickIdle
	}

	target, err := pm.index.Navigate(pm.current, 1, pm.wrap)
	if err != nil {
		pm.state = PlaybackStopped
		pm.stats.LastOutcome = TickEnded
		debugLog("Playback reached the last image")
		return TickEnded
	}

	src, _ := pm.index.At(target)
	entry, err := pm.cache.Request(src.Path, 1)
	settled := err != nil || entry.State == StateReady || entry.State == StateFailed

	outcome := TickAdvanced
	if !settled {
		if elapsed < pm.interval+pm.maxWait {
			pm.stats.LastOutcome = TickWaiting
			return TickWaiting
		}
		outcome = TickSkipped
		pm.stats.Skipped++
		log.Printf("Warning: Playback skipped ahead, %s still %s after %s", src.DisplayName(), entry.State, elapsed.Round(time.Millisecond))
	} else {
		pm.stats.Advanced++
	}

	pm.current = target
	pm.intervalStart = now
	pm.stats.LastOutcome = outcome
	if err := pm.cache.OnNavigate(target); err != nil {
		log.Printf("Warning: Playback navigation to %d failed: %v", target, err)
	}
	return outcome
}

// Next moves to the following image
func (pm *PlaybackManager) Next() error {
	return pm.step(1)
}

// Prev moves to the preceding image
func (pm *PlaybackManager) Prev() error {
	return pm.step(-1)
}

// JumpTo moves to index
func (pm *PlaybackManager) JumpTo(index int) error {
	if index < 0 || index >= pm.index.Len() {
		return ErrNotFound
	}
	return pm.moveTo(index)
}

// JumpToPath moves to the entry for path
func (pm *PlaybackManager) JumpToPath(path string) error {
	index, err := pm.index.Locate(path)
	if err != nil {
		return err
	}
	return pm.moveTo(index)
}

func (pm *PlaybackManager) step(delta int) error {
	target, err := pm.index.Navigate(pm.current, delta, pm.wrap)
	if err != nil {
		return err
	}
	return pm.moveTo(target)
}

// moveTo is the single path for manual navigation: it restarts the
// playback interval so a pending tick cannot advance again right after.
func (pm *PlaybackManager) moveTo(index int) error {
	pm.current = index
	pm.intervalStart = pm.now()
	return pm.cache.OnNavigate(index)
}
