package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"

	"github.com/dustin/go-humanize"
)

// Distance given to entries whose path is no longer part of the index, so
// they are the first to go.
const outOfIndexDistance = math.MaxInt32

// EntryState is the load state of a cache entry
type EntryState int

const (
	StatePending EntryState = iota
	StateDecoding
	StateReady
	StateFailed
)

func (s EntryState) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateDecoding:
		return "Decoding"
	case StateReady:
		return "Ready"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("EntryState(%d)", int(s))
	}
}

// Scheduler is the part of the worker pool the cache depends on
type Scheduler interface {
	Submit(src ImagePath, priority int, generation uint64) LoadToken
	Cancel(token LoadToken) bool
	Reprioritize(token LoadToken, priority int) bool
}

// PrefetchWindow is the index range around the current image that stays
// resident regardless of memory pressure.
type PrefetchWindow struct {
	Current int
	Back    int
	Forward int
}

// Indices returns the window members for an index of n entries, nearest
// first with forward before backward at equal distance. With wrap the
// window continues across the ends of the index.
func (w PrefetchWindow) Indices(n int, wrap bool) []int {
	if n <= 0 || w.Current < 0 || w.Current >= n {
		return nil
	}

	seen := make(map[int]bool, w.Back+w.Forward+1)
	var out []int
	add := func(offset int) {
		idx := w.Current + offset
		if wrap {
			idx = ((idx % n) + n) % n
		} else if idx < 0 || idx >= n {
			return
		}
		if seen[idx] {
			return
		}
		seen[idx] = true
		out = append(out, idx)
	}

	add(0)
	for d := 1; d <= max(w.Back, w.Forward); d++ {
		if d <= w.Forward {
			add(d)
		}
		if d <= w.Back {
			add(-d)
		}
	}
	return out
}

// Offset returns the signed distance from the current index to idx. With
// wrap it is the shorter way around.
func (w PrefetchWindow) Offset(idx, n int, wrap bool) int {
	d := idx - w.Current
	if wrap && n > 0 {
		d = ((d % n) + n) % n
		if d > n/2 {
			d -= n
		}
	}
	return d
}

// CacheEntry is the cache's record for one path. All fields are guarded by
// the owning ImageCache's mutex.
type CacheEntry struct {
	path       string
	state      EntryState
	generation uint64
	decoded    *DecodedImage
	err        error
	lastAccess uint64
	distance   int
	inWindow   bool
	priority   int
	wanted     bool       // dispatch as soon as the path has no job in flight
	inflight   *LoadToken // job handed to the scheduler and not yet reported
}

func (e *CacheEntry) snapshot() EntrySnapshot {
	return EntrySnapshot{
		Path:       e.path,
		State:      e.state,
		Generation: e.generation,
		Image:      e.decoded,
		Err:        e.err,
		Distance:   e.distance,
		InWindow:   e.inWindow,
	}
}

// EntrySnapshot is a copy of an entry's state handed to callers outside the lock
type EntrySnapshot struct {
	Path       string
	State      EntryState
	Generation uint64
	Image      *DecodedImage
	Err        error
	Distance   int
	InWindow   bool
}

// CacheConfig holds the cache's startup parameters
type CacheConfig struct {
	Budget        int64 // bytes; <= 0 means unbounded
	RadiusBack    int
	RadiusForward int
	Wrap          bool
}

// CacheStats provides statistics about the cache
type CacheStats struct {
	Entries       int
	Ready         int
	Decoding      int
	Failed        int
	ResidentBytes int64
	Budget        int64
	Dispatches    uint64
	Cancels       uint64
	Evictions     uint64
	StaleDrops    uint64
	Failures      uint64
}

// ImageCache keeps decoded images for the paths of a DirectoryIndex within
// a memory budget. It is driven from the UI goroutine (Request, OnNavigate)
// and fed completions from the worker pool (Complete); one mutex serializes
// both, and is never held while decoding.
type ImageCache struct {
	mu          sync.Mutex
	index       *DirectoryIndex
	sched       Scheduler
	cfg         CacheConfig
	entries     map[string]*CacheEntry
	window      PrefetchWindow
	hasWindow   bool
	resident    int64
	accessClock uint64
	genClock    uint64 // generations are unique across paths and never reused
	stats       CacheStats

	changed chan struct{}
}

// NewImageCache creates a cache over index that dispatches loads to sched
func NewImageCache(index *DirectoryIndex, sched Scheduler, cfg CacheConfig) *ImageCache {
	if index == nil {
		index = newDirectoryIndex("", nil)
	}
	return &ImageCache{
		index:   index,
		sched:   sched,
		cfg:     cfg,
		entries: make(map[string]*CacheEntry),
		window:  PrefetchWindow{Current: -1, Back: cfg.RadiusBack, Forward: cfg.RadiusForward},
		changed: make(chan struct{}, 1),
	}
}

// Run applies completions from results until ctx ends or results is closed
func (c *ImageCache) Run(ctx context.Context, results <-chan DecodeResult) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case res, ok := <-results:
			if !ok {
				return nil
			}
			c.Complete(res)
		}
	}
}

// Changed is signalled when a completion lands on the current entry
func (c *ImageCache) Changed() <-chan struct{} {
	return c.changed
}

// Request returns the state of path, creating the entry and dispatching a
// load when it has none. It never blocks on I/O.
func (c *ImageCache) Request(path string, priority int) (EntrySnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requestLocked(path, priority)
}

// OnNavigate moves the prefetch window to current: loads that fell out of
// the window are cancelled, missing window members are requested nearest
// first, and entries over budget are evicted.
func (c *ImageCache) OnNavigate(current int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if current < 0 || current >= c.index.Len() {
		return ErrNotFound
	}
	c.navigateLocked(current)
	return nil
}

// Retry re-requests an entry: a Ready or Failed entry returns to Pending
// under a new generation so a late result of the old load is ignored, and a
// load in progress is abandoned the same way. The next Request or
// OnNavigate dispatches it.
func (c *ImageCache) Retry(path string) (EntrySnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[path]
	if e == nil {
		return EntrySnapshot{}, ErrNotFound
	}

	switch e.state {
	case StateReady:
		c.resident -= e.decoded.ByteSize()
		e.decoded = nil
		e.state = StatePending
		e.generation = c.nextGenerationLocked()
	case StateFailed:
		e.err = nil
		e.state = StatePending
		e.generation = c.nextGenerationLocked()
	case StateDecoding:
		c.cancelLocked(e)
	}
	return e.snapshot(), nil
}

// Complete applies a worker result. Results whose generation no longer
// matches the entry are dropped.
func (c *ImageCache) Complete(res DecodeResult) {
	c.mu.Lock()
	notify := c.completeLocked(res)
	c.mu.Unlock()

	if notify {
		select {
		case c.changed <- struct{}{}:
		default:
		}
	}
}

// SetIndex swaps in a rebuilt index and recenters on current. Entries of
// paths that disappeared are cancelled or become the first eviction
// candidates.
func (c *ImageCache) SetIndex(index *DirectoryIndex, current int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.index = index
	if current >= 0 && current < index.Len() {
		c.navigateLocked(current)
		return
	}

	c.hasWindow = false
	c.window.Current = -1
	for _, e := range c.entries {
		e.inWindow = false
		e.distance = outOfIndexDistance
		c.releaseLocked(e)
		c.pruneLocked(e)
	}
	c.evictLocked()
}

// Current returns the entry at the current index
func (c *ImageCache) Current() (EntrySnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasWindow {
		return EntrySnapshot{}, false
	}
	src, ok := c.index.At(c.window.Current)
	if !ok {
		return EntrySnapshot{}, false
	}
	e := c.entries[src.Path]
	if e == nil {
		return EntrySnapshot{Path: src.Path, State: StatePending, InWindow: true}, true
	}
	c.touchLocked(e)
	return e.snapshot(), true
}

// Lookup returns the entry for path without dispatching anything
func (c *ImageCache) Lookup(path string) (EntrySnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[path]
	if e == nil {
		return EntrySnapshot{}, false
	}
	c.touchLocked(e)
	return e.snapshot(), true
}

// Window returns the current prefetch window
func (c *ImageCache) Window() PrefetchWindow {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.window
}

// GetStats returns current cache statistics
func (c *ImageCache) GetStats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Entries = len(c.entries)
	stats.ResidentBytes = c.resident
	stats.Budget = c.cfg.Budget
	for _, e := range c.entries {
		switch e.state {
		case StateReady:
			stats.Ready++
		case StateDecoding:
			stats.Decoding++
		case StateFailed:
			stats.Failed++
		}
	}
	return stats
}

func (c *ImageCache) requestLocked(path string, priority int) (EntrySnapshot, error) {
	idx, err := c.index.Locate(path)
	if err != nil {
		return EntrySnapshot{}, ErrNotFound
	}

	e := c.entries[path]
	if e == nil {
		e = &CacheEntry{
			path:     path,
			state:    StatePending,
			distance: c.offsetLocked(idx),
			inWindow: c.inWindowLocked(idx),
		}
		c.entries[path] = e
	}
	c.touchLocked(e)
	e.priority = priority

	switch e.state {
	case StatePending:
		e.wanted = true
		c.dispatchLocked(e)
	case StateDecoding:
		if e.inflight != nil {
			c.sched.Reprioritize(*e.inflight, priority)
		}
	}
	return e.snapshot(), nil
}

func (c *ImageCache) navigateLocked(current int) {
	n := c.index.Len()
	c.window = PrefetchWindow{Current: current, Back: c.cfg.RadiusBack, Forward: c.cfg.RadiusForward}
	c.hasWindow = true

	members := c.window.Indices(n, c.cfg.Wrap)
	inWindow := make(map[int]bool, len(members))
	for _, idx := range members {
		inWindow[idx] = true
	}

	for path, e := range c.entries {
		idx, err := c.index.Locate(path)
		if err != nil {
			e.distance = outOfIndexDistance
			e.inWindow = false
		} else {
			e.distance = c.offsetLocked(idx)
			e.inWindow = inWindow[idx]
		}
		if !e.inWindow {
			c.releaseLocked(e)
			c.pruneLocked(e)
		}
	}

	for _, idx := range members {
		src, _ := c.index.At(idx)
		priority := absInt(c.window.Offset(idx, n, c.cfg.Wrap))
		if e := c.entries[src.Path]; e != nil {
			switch e.state {
			case StateReady, StateFailed:
				continue
			case StateDecoding:
				e.priority = priority
				if e.inflight != nil {
					c.sched.Reprioritize(*e.inflight, priority)
				}
				continue
			}
		}
		c.requestLocked(src.Path, priority)
	}

	c.evictLocked()

	debugLog("Navigate to [%d/%d]: window %v, resident %s / %s",
		current+1, n, members, humanize.IBytes(uint64(c.resident)), humanize.IBytes(uint64(max(c.cfg.Budget, 0))))
}

// releaseLocked stops work for an entry that left the window
func (c *ImageCache) releaseLocked(e *CacheEntry) {
	switch e.state {
	case StateDecoding:
		c.cancelLocked(e)
	case StatePending:
		e.wanted = false
	}
}

// pruneLocked forgets an idle entry outside the window so that the entry
// map does not grow with every path ever visited. Entries with a job in
// flight are kept until its result arrives.
func (c *ImageCache) pruneLocked(e *CacheEntry) {
	if e.inWindow || e.inflight != nil {
		return
	}
	switch e.state {
	case StatePending, StateFailed:
		delete(c.entries, e.path)
	}
}

func (c *ImageCache) nextGenerationLocked() uint64 {
	c.genClock++
	return c.genClock
}

func (c *ImageCache) dispatchLocked(e *CacheEntry) {
	if e.state != StatePending || e.inflight != nil {
		return
	}
	idx, err := c.index.Locate(e.path)
	if err != nil {
		return
	}
	src, _ := c.index.At(idx)

	e.generation = c.nextGenerationLocked()
	token := c.sched.Submit(src, e.priority, e.generation)
	e.inflight = &token
	e.state = StateDecoding
	e.wanted = false
	c.stats.Dispatches++
}

// cancelLocked abandons the in-flight load of e. The entry goes back to
// Pending under a new generation; if the job already runs, the path stays
// busy until its (now stale) result arrives.
func (c *ImageCache) cancelLocked(e *CacheEntry) {
	if e.state != StateDecoding {
		return
	}
	if e.inflight != nil && c.sched.Cancel(*e.inflight) {
		e.inflight = nil
	}
	e.generation = c.nextGenerationLocked()
	e.state = StatePending
	e.wanted = false
	c.stats.Cancels++
}

func (c *ImageCache) completeLocked(res DecodeResult) bool {
	e := c.entries[res.Token.Path]
	if e == nil {
		c.stats.StaleDrops++
		return false
	}
	if e.inflight != nil && *e.inflight == res.Token {
		e.inflight = nil
	}

	if res.Token.Generation != e.generation || e.state != StateDecoding || errors.Is(res.Err, errCancelled) {
		c.stats.StaleDrops++
		debugLog("Dropped stale result for %s (generation %d, current %d)", res.Token.Path, res.Token.Generation, e.generation)
		if e.state == StateDecoding && e.inflight == nil {
			// The job never ran; the entry has nothing in flight any more
			e.state = StatePending
			e.wanted = e.inWindow
		}
		if e.state == StatePending && (e.wanted || e.inWindow) {
			c.dispatchLocked(e)
		}
		c.pruneLocked(e)
		return false
	}

	if res.Err != nil || res.Image == nil {
		err := res.Err
		if err == nil {
			err = &DecodeError{Path: e.path, Reason: "no image"}
		}
		e.state = StateFailed
		e.err = err
		e.decoded = nil
		c.stats.Failures++
		log.Printf("Warning: Failed to load %s: %v", e.path, err)
	} else {
		e.state = StateReady
		e.decoded = res.Image
		e.err = nil
		c.resident += res.Image.ByteSize()
		debugLog("Loaded %s (%dx%d, %s)", e.path, res.Image.Width, res.Image.Height, humanize.IBytes(uint64(res.Image.ByteSize())))
		c.evictLocked()
	}

	return c.isCurrentLocked(e)
}

// evictLocked drops Ready entries outside the window, farthest and stalest
// first, until resident bytes fit the budget or no candidates remain.
func (c *ImageCache) evictLocked() {
	if c.cfg.Budget <= 0 || c.resident <= c.cfg.Budget {
		return
	}

	var candidates []*CacheEntry
	for _, e := range c.entries {
		if e.state == StateReady && !e.inWindow {
			candidates = append(candidates, e)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		di, dj := absInt(candidates[i].distance), absInt(candidates[j].distance)
		if di != dj {
			return di > dj
		}
		return candidates[i].lastAccess < candidates[j].lastAccess
	})

	for _, e := range candidates {
		if c.resident <= c.cfg.Budget {
			break
		}
		c.resident -= e.decoded.ByteSize()
		delete(c.entries, e.path)
		c.stats.Evictions++
		debugLog("Evicted %s (distance %d)", e.path, e.distance)
	}
}

func (c *ImageCache) touchLocked(e *CacheEntry) {
	c.accessClock++
	e.lastAccess = c.accessClock
}

func (c *ImageCache) offsetLocked(idx int) int {
	if !c.hasWindow {
		return outOfIndexDistance
	}
	return c.window.Offset(idx, c.index.Len(), c.cfg.Wrap)
}

func (c *ImageCache) inWindowLocked(idx int) bool {
	if !c.hasWindow {
		return false
	}
	for _, member := range c.window.Indices(c.index.Len(), c.cfg.Wrap) {
		if member == idx {
			return true
		}
	}
	return false
}

func (c *ImageCache) isCurrentLocked(e *CacheEntry) bool {
	if !c.hasWindow {
		return false
	}
	src, ok := c.index.At(c.window.Current)
	return ok && src.Path == e.path
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
