package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Commands posted from background goroutines wait here for the UI loop
const commandQueueSize = 16

// App is the application context: it owns every long-lived component and
// tears them down in order. Everything except Post runs on the UI goroutine.
type App struct {
	config       Config
	configStatus ConfigLoadResult
	strategy     SortStrategy

	index    *DirectoryIndex
	pool     *WorkerPool
	cache    *ImageCache
	playback *PlaybackManager
	watcher  *DirectoryWatcher
	commands chan Command

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	// UI state
	showInfo        bool
	showHelp        bool
	fullscreen      bool
	zoomMode        ZoomMode
	theme           Theme
	exitRequested   bool
	pageInputMode   bool
	pageInputBuffer string
	overlayMessage  string
	overlayTime     time.Time

	closeOnce sync.Once
	closeErr  error
}

// NewApp indexes target (a folder, an image inside one, or an archive),
// starts the worker pool and the completion collector, and positions the
// cache on the starting image.
func NewApp(ctx context.Context, target string, status ConfigLoadResult, decode DecodeFunc) (*App, error) {
	config := status.Config
	strategy := GetSortStrategy(config.SortMethod, config.CaseSensitive)

	index, start, err := BuildIndexFromTarget(target, strategy)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	pool, err := NewWorkerPool(ctx, config.Workers, decode)
	if err != nil {
		cancel()
		return nil, err
	}

	group, gctx := errgroup.WithContext(ctx)
	cache := NewImageCache(index, pool, config.cacheConfig())

	a := &App{
		config:       config,
		configStatus: status,
		strategy:     strategy,
		index:        index,
		pool:         pool,
		cache:        cache,
		playback:     NewPlaybackManager(index, cache, start, config.playbackConfig()),
		commands:     make(chan Command, commandQueueSize),
		ctx:          gctx,
		cancel:       cancel,
		group:        group,
		fullscreen:   config.Fullscreen,
		zoomMode:     config.ZoomMode,
		theme:        config.Theme,
	}

	group.Go(func() error {
		return cache.Run(gctx, pool.Results())
	})

	if config.WatchDirectory && !index.IsArchive() {
		a.startWatcher(index.Source())
	}

	if index.Len() > 0 {
		if err := cache.OnNavigate(start); err != nil {
			log.Printf("Warning: Failed to position on [%d]: %v", start+1, err)
		}
	}

	debugLog("Opened %s: %d images, starting at %d, %d workers, budget %s",
		index.Source(), index.Len(), start+1, pool.Workers(), config.MemoryBudget)
	return a, nil
}

func (a *App) startWatcher(dir string) {
	w, err := NewDirectoryWatcher(dir)
	if err != nil {
		log.Printf("Warning: Cannot watch %s: %v", dir, err)
		return
	}
	a.watcher = w

	a.group.Go(func() error {
		return w.Run(a.ctx)
	})
	a.group.Go(func() error {
		for {
			select {
			case <-a.ctx.Done():
				return nil
			case _, ok := <-w.Events():
				if !ok {
					return nil
				}
				a.Post(RescanCommand{Written: w.TakeWritten()})
			}
		}
	})
}

// Close tears the application down: watcher, playback, worker pool,
// completion collector. It is safe to call more than once.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		var errs []error
		if a.watcher != nil {
			errs = append(errs, a.watcher.Close())
		}
		a.playback.Stop()
		errs = append(errs, a.pool.Close())
		a.cancel()
		errs = append(errs, a.group.Wait())
		a.closeErr = errors.Join(errs...)
		debugLog("Application closed")
	})
	return a.closeErr
}

// Dispatch executes cmd. Navigation past either end is not worth a warning.
func (a *App) Dispatch(cmd Command) error {
	err := cmd.Execute(a)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		debugLog("%s: %v", cmd.Name(), err)
	default:
		log.Printf("Warning: %s failed: %v", cmd.Name(), err)
		a.ShowOverlayMessage(fmt.Sprintf("%s failed: %v", cmd.Name(), err))
	}
	return err
}

// Post queues cmd for the UI loop without blocking. It may be called from
// any goroutine.
func (a *App) Post(cmd Command) bool {
	select {
	case a.commands <- cmd:
		return true
	default:
		debugLog("Command queue full, dropping %s", cmd.Name())
		return false
	}
}

// DrainCommands dispatches every queued command and returns how many ran
func (a *App) DrainCommands() int {
	n := 0
	for {
		select {
		case cmd := <-a.commands:
			a.Dispatch(cmd)
			n++
		default:
			return n
		}
	}
}

// Tick advances playback once
func (a *App) Tick() TickOutcome {
	outcome := a.playback.Tick()
	if outcome == TickEnded {
		a.ShowOverlayMessage("Playback finished")
	}
	return outcome
}

// ExitRequested reports whether an exit command ran or the application
// context ended
func (a *App) ExitRequested() bool {
	return a.exitRequested || a.ctx.Err() != nil
}

// ReloadCurrent drops the current image and loads it again
func (a *App) ReloadCurrent() error {
	src, ok := a.CurrentSource()
	if !ok {
		return ErrNotFound
	}
	if _, err := a.cache.Retry(src.Path); err != nil {
		return err
	}
	_, err := a.cache.Request(src.Path, 0)
	return err
}

// Rescan rebuilds the index from disk and stays on the current image if it
// still exists. Cached images of the written paths are loaded again.
func (a *App) Rescan(written ...string) error {
	var index *DirectoryIndex
	var err error
	if a.index.IsArchive() {
		index, err = BuildArchiveIndex(a.index.Source(), a.strategy)
	} else {
		index, err = BuildDirectoryIndex(a.index.Source(), a.strategy)
	}
	if err != nil {
		return err
	}

	current := 0
	if src, ok := a.CurrentSource(); ok {
		if i, err := index.Locate(src.Path); err == nil {
			current = i
		} else {
			current = min(a.playback.Current(), index.Len()-1)
		}
	}
	if current < 0 {
		current = 0
	}

	for _, path := range written {
		if _, err := a.cache.Retry(path); err == nil {
			debugLog("Reloading rewritten %s", filepath.Base(path))
		}
	}

	a.index = index
	if index.Len() == 0 {
		a.playback.Stop()
		a.cache.SetIndex(index, -1)
	} else {
		a.cache.SetIndex(index, current)
	}
	a.playback.SetIndex(index, current)

	debugLog("Rescanned %s: %d images, current %d", index.Source(), index.Len(), current+1)
	return nil
}

// CycleSort switches to the next sort method and reorders the index
func (a *App) CycleSort() error {
	next := (a.strategy.ID() + 1) % 3
	a.strategy = GetSortStrategy(next, a.config.CaseSensitive)
	if err := a.Rescan(); err != nil {
		return err
	}
	a.ShowOverlayMessage("Sort: " + a.strategy.Name())
	return nil
}

// ShowOverlayMessage displays message for a short while
func (a *App) ShowOverlayMessage(message string) {
	a.overlayMessage = message
	a.overlayTime = time.Now()
}

// EnterPageInputMode starts collecting an image number
func (a *App) EnterPageInputMode() {
	if a.playback.Total() == 0 {
		return
	}
	a.pageInputMode = true
	a.pageInputBuffer = ""
}

func (a *App) ExitPageInputMode() {
	a.pageInputMode = false
	a.pageInputBuffer = ""
}

func (a *App) UpdatePageInputBuffer(buffer string) {
	a.pageInputBuffer = buffer
}

// ProcessPageInput jumps to the typed (one-based) image number
func (a *App) ProcessPageInput() {
	index, err := parsePageInput(a.pageInputBuffer, a.playback.Total())
	if err != nil {
		a.ShowOverlayMessage(err.Error())
		return
	}
	a.Dispatch(JumpToCommand{Index: index})
}

// parsePageInput converts a one-based number typed by the user into an index
func parsePageInput(buffer string, total int) (int, error) {
	if buffer == "" {
		return 0, errors.New("no image number entered")
	}
	page, err := strconv.Atoi(buffer)
	if err != nil {
		return 0, fmt.Errorf("invalid image number %q", buffer)
	}
	if page < 1 || page > total {
		return 0, fmt.Errorf("image number out of range: %d (1-%d)", page, total)
	}
	return page - 1, nil
}

// Title is the window title: current file, position and the trailing
// folders of the source path.
func (a *App) Title() string {
	current, total := a.Position()
	src, ok := a.CurrentSource()
	if !ok {
		return "nvplay"
	}
	return windowTitle(src, a.index.Source(), current, total, a.config.DisplayedFolders)
}

func windowTitle(src ImagePath, source string, current, total, folders int) string {
	title := fmt.Sprintf("%s [%d/%d]", src.DisplayName(), current+1, total)
	if tail := trailingFolders(source, folders); tail != "" {
		title += " - " + tail
	}
	return title + " - nvplay"
}

// trailingFolders returns the last n components of dir joined with "/"
func trailingFolders(dir string, n int) string {
	if n <= 0 || dir == "" {
		return ""
	}
	dir = filepath.ToSlash(filepath.Clean(dir))
	parts := strings.FieldsFunc(dir, func(r rune) bool { return r == '/' })
	if len(parts) > n {
		parts = parts[len(parts)-n:]
	}
	return strings.Join(parts, "/")
}

// RenderState and InputState

func (a *App) IsFullscreen() bool { return a.fullscreen }

func (a *App) GetZoomMode() ZoomMode { return a.zoomMode }

func (a *App) GetTheme() Theme { return a.theme }

func (a *App) IsPlaying() bool { return a.playback.IsPlaying() }

func (a *App) CurrentEntry() (EntrySnapshot, bool) {
	if a.playback.Total() == 0 {
		return EntrySnapshot{}, false
	}
	return a.cache.Current()
}

func (a *App) CurrentSource() (ImagePath, bool) {
	return a.index.At(a.playback.Current())
}

func (a *App) Position() (int, int) {
	return a.playback.Current(), a.playback.Total()
}

func (a *App) IsShowingHelp() bool { return a.showHelp }

func (a *App) IsShowingInfo() bool { return a.showInfo }

func (a *App) IsInPageInputMode() bool { return a.pageInputMode }

func (a *App) GetPageInputBuffer() string { return a.pageInputBuffer }

func (a *App) GetOverlayMessage() string { return a.overlayMessage }

func (a *App) GetOverlayMessageTime() time.Time { return a.overlayTime }

func (a *App) GetFontSize() float64 { return a.config.HelpFontSize }

func (a *App) GetConfigStatus() ConfigLoadResult { return a.configStatus }

func (a *App) GetKeybindings() map[string][]string { return a.config.Keybindings }

func (a *App) GetMousebindings() map[string][]string { return a.config.Mousebindings }

func (a *App) GetCommands() []ExternalCommandConfig { return a.config.Commands }

func (a *App) GetCacheStats() CacheStats { return a.cache.GetStats() }

func (a *App) GetPlaybackStats() PlaybackStats { return a.playback.GetStats() }
