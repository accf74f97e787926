package main

import "fmt"

// Command is a request from the UI or a background source, executed on the
// UI goroutine by App.Dispatch.
type Command interface {
	Name() string
	Execute(app *App) error
}

type NextCommand struct{}

func (NextCommand) Name() string { return "next" }

func (NextCommand) Execute(app *App) error {
	return app.playback.Next()
}

type PrevCommand struct{}

func (PrevCommand) Name() string { return "previous" }

func (PrevCommand) Execute(app *App) error {
	return app.playback.Prev()
}

type JumpFirstCommand struct{}

func (JumpFirstCommand) Name() string { return "jump_first" }

func (JumpFirstCommand) Execute(app *App) error {
	return app.playback.JumpTo(0)
}

type JumpLastCommand struct{}

func (JumpLastCommand) Name() string { return "jump_last" }

func (JumpLastCommand) Execute(app *App) error {
	return app.playback.JumpTo(app.playback.Total() - 1)
}

// JumpToCommand moves to a zero-based index (page input and the position slider)
type JumpToCommand struct {
	Index int
}

func (JumpToCommand) Name() string { return "jump_to" }

func (c JumpToCommand) Execute(app *App) error {
	return app.playback.JumpTo(c.Index)
}

// JumpToPathCommand moves to the entry for Path
type JumpToPathCommand struct {
	Path string
}

func (JumpToPathCommand) Name() string { return "jump_to_path" }

func (c JumpToPathCommand) Execute(app *App) error {
	return app.playback.JumpToPath(c.Path)
}

type TogglePlaybackCommand struct{}

func (TogglePlaybackCommand) Name() string { return "toggle_playback" }

func (TogglePlaybackCommand) Execute(app *App) error {
	if app.playback.Total() == 0 {
		return ErrNotFound
	}
	if err := app.playback.Toggle(app.config.PlaybackInterval.Duration); err != nil {
		return err
	}
	if app.playback.IsPlaying() {
		app.ShowOverlayMessage(fmt.Sprintf("Playback: every %s", app.playback.Interval()))
	} else {
		app.ShowOverlayMessage("Playback stopped")
	}
	return nil
}

// ReloadCommand discards the current image and loads it again
type ReloadCommand struct{}

func (ReloadCommand) Name() string { return "reload" }

func (ReloadCommand) Execute(app *App) error {
	return app.ReloadCurrent()
}

// RescanCommand rebuilds the index from disk, keeping the current image.
// Written lists files whose content changed; their decoded images are
// discarded and loaded again.
type RescanCommand struct {
	Written []string
}

func (RescanCommand) Name() string { return "rescan" }

func (c RescanCommand) Execute(app *App) error {
	return app.Rescan(c.Written...)
}

type CycleSortCommand struct{}

func (CycleSortCommand) Name() string { return "cycle_sort" }

func (CycleSortCommand) Execute(app *App) error {
	return app.CycleSort()
}

type ToggleInfoCommand struct{}

func (ToggleInfoCommand) Name() string { return "info" }

func (ToggleInfoCommand) Execute(app *App) error {
	app.showInfo = !app.showInfo
	return nil
}

type ToggleHelpCommand struct{}

func (ToggleHelpCommand) Name() string { return "help" }

func (ToggleHelpCommand) Execute(app *App) error {
	app.showHelp = !app.showHelp
	return nil
}

// PageInputCommand starts typing an image number
type PageInputCommand struct{}

func (PageInputCommand) Name() string { return "page_input" }

func (PageInputCommand) Execute(app *App) error {
	app.EnterPageInputMode()
	return nil
}

// ZoomCommand switches how images are scaled to the window
type ZoomCommand struct {
	Mode ZoomMode
}

func (c ZoomCommand) Name() string { return "zoom_" + c.Mode.String() }

func (c ZoomCommand) Execute(app *App) error {
	app.zoomMode = c.Mode
	app.ShowOverlayMessage("Zoom: " + c.Mode.Label())
	return nil
}

type ToggleThemeCommand struct{}

func (ToggleThemeCommand) Name() string { return "toggle_theme" }

func (ToggleThemeCommand) Execute(app *App) error {
	app.theme = app.theme.Toggle()
	app.ShowOverlayMessage("Theme: " + app.theme.String())
	return nil
}

type FullscreenCommand struct{}

func (FullscreenCommand) Name() string { return "fullscreen" }

func (FullscreenCommand) Execute(app *App) error {
	app.fullscreen = !app.fullscreen
	return nil
}

type ExitCommand struct{}

func (ExitCommand) Name() string { return "exit" }

func (ExitCommand) Execute(app *App) error {
	app.exitRequested = true
	return nil
}
