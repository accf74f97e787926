package main

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testConfigStatus(t *testing.T) ConfigLoadResult {
	t.Helper()
	status := loadConfigFromPath(filepath.Join(t.TempDir(), "none.json"))
	status.Config.WatchDirectory = false
	status.Config.Workers = 2
	return status
}

// newTestApp opens target with real decoding and closes it when the test ends
func newTestApp(t *testing.T, target string) *App {
	t.Helper()
	app, err := NewApp(context.Background(), target, testConfigStatus(t), loadDecodedImage)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	t.Cleanup(func() {
		if err := app.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return app
}

// waitSettled waits until the current image is Ready or Failed
func waitSettled(t *testing.T, app *App) EntrySnapshot {
	t.Helper()
	deadline := time.After(testTimeout)
	for {
		if entry, ok := app.CurrentEntry(); ok && (entry.State == StateReady || entry.State == StateFailed) {
			return entry
		}
		select {
		case <-app.cache.Changed():
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatal("Timed out waiting for the current image")
		}
	}
}

func imageFolder(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		writePNG(t, dir, name, 4, 3)
	}
	return dir
}

func currentName(t *testing.T, app *App) string {
	t.Helper()
	src, ok := app.CurrentSource()
	if !ok {
		t.Fatal("No current image")
	}
	return src.DisplayName()
}

func TestAppOpensImageInFolder(t *testing.T) {
	dir := imageFolder(t, "a.png", "b.png", "c.png")
	app := newTestApp(t, filepath.Join(dir, "b.png"))

	if current, total := app.Position(); current != 1 || total != 3 {
		t.Errorf("Position() = %d, %d, want 1, 3", current, total)
	}

	entry := waitSettled(t, app)
	if entry.State != StateReady || entry.Image.Width != 4 || entry.Image.Height != 3 {
		t.Errorf("Current entry = %+v", entry)
	}

	want := "b.png [2/3] - " + filepath.Base(dir) + " - nvplay"
	if got := app.Title(); got != want {
		t.Errorf("Title() = %q, want %q", got, want)
	}
}

func TestAppNavigationCommands(t *testing.T) {
	dir := imageFolder(t, "a.png", "b.png", "c.png")
	app := newTestApp(t, dir)

	steps := []struct {
		cmd      Command
		expected string
	}{
		{NextCommand{}, "b.png"},
		{NextCommand{}, "c.png"},
		{NextCommand{}, "a.png"}, // wraps by default
		{PrevCommand{}, "c.png"},
		{JumpFirstCommand{}, "a.png"},
		{JumpLastCommand{}, "c.png"},
		{JumpToCommand{Index: 1}, "b.png"},
		{JumpToPathCommand{Path: filepath.Join(dir, "a.png")}, "a.png"},
	}

	for _, step := range steps {
		if err := app.Dispatch(step.cmd); err != nil {
			t.Fatalf("%s: %v", step.cmd.Name(), err)
		}
		if got := currentName(t, app); got != step.expected {
			t.Errorf("After %s current = %s, want %s", step.cmd.Name(), got, step.expected)
		}
	}

	if err := app.Dispatch(JumpToCommand{Index: 10}); !errors.Is(err, ErrNotFound) {
		t.Errorf("JumpTo out of range error = %v, want ErrNotFound", err)
	}
	if app.GetOverlayMessage() != "" {
		t.Errorf("Navigation past the end should not show a message, got %q", app.GetOverlayMessage())
	}

	waitSettled(t, app)
}

func TestAppToggleCommands(t *testing.T) {
	app := newTestApp(t, imageFolder(t, "a.png"))

	for _, cmd := range []Command{ToggleInfoCommand{}, ToggleHelpCommand{}, FullscreenCommand{}, TogglePlaybackCommand{}} {
		if err := app.Dispatch(cmd); err != nil {
			t.Fatalf("%s: %v", cmd.Name(), err)
		}
	}
	if !app.IsShowingInfo() || !app.IsShowingHelp() || !app.IsFullscreen() || !app.IsPlaying() {
		t.Error("Toggle commands did not switch their flags on")
	}
	if !strings.HasPrefix(app.GetOverlayMessage(), "Playback:") {
		t.Errorf("Overlay = %q, want a playback message", app.GetOverlayMessage())
	}

	if err := app.Dispatch(TogglePlaybackCommand{}); err != nil {
		t.Fatal(err)
	}
	if app.IsPlaying() {
		t.Error("Second toggle should stop playback")
	}

	if app.ExitRequested() {
		t.Error("Exit requested before the exit command")
	}
	app.Dispatch(ExitCommand{})
	if !app.ExitRequested() {
		t.Error("Exit command did not request exit")
	}
}

func TestAppPageInput(t *testing.T) {
	app := newTestApp(t, imageFolder(t, "1.png", "2.png", "3.png"))

	app.Dispatch(PageInputCommand{})
	if !app.IsInPageInputMode() {
		t.Fatal("Page input mode not entered")
	}
	app.UpdatePageInputBuffer("3")
	app.ProcessPageInput()
	app.ExitPageInputMode()

	if current, _ := app.Position(); current != 2 {
		t.Errorf("Position() = %d, want 2", current)
	}
	if app.IsInPageInputMode() || app.GetPageInputBuffer() != "" {
		t.Error("Page input mode not left")
	}

	app.EnterPageInputMode()
	app.UpdatePageInputBuffer("9")
	app.ProcessPageInput()
	if current, _ := app.Position(); current != 2 {
		t.Errorf("Invalid page moved to %d", current)
	}
	if !strings.Contains(app.GetOverlayMessage(), "out of range") {
		t.Errorf("Overlay = %q, want an out of range message", app.GetOverlayMessage())
	}
}

func TestAppRescan(t *testing.T) {
	dir := imageFolder(t, "a.png", "b.png", "c.png")
	app := newTestApp(t, filepath.Join(dir, "b.png"))
	waitSettled(t, app)

	// A new first image shifts the current one
	writePNG(t, dir, "0.png", 2, 2)
	if err := app.Dispatch(RescanCommand{}); err != nil {
		t.Fatal(err)
	}
	if current, total := app.Position(); current != 2 || total != 4 {
		t.Errorf("Position() = %d, %d, want 2, 4", current, total)
	}
	if got := currentName(t, app); got != "b.png" {
		t.Errorf("Current = %s, want b.png", got)
	}

	// The current image disappears; the position is kept
	if err := os.Remove(filepath.Join(dir, "b.png")); err != nil {
		t.Fatal(err)
	}
	if err := app.Dispatch(RescanCommand{}); err != nil {
		t.Fatal(err)
	}
	if got := currentName(t, app); got != "c.png" {
		t.Errorf("Current = %s, want c.png", got)
	}
	waitSettled(t, app)

	// Everything disappears
	for _, name := range []string{"0.png", "a.png", "c.png"} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			t.Fatal(err)
		}
	}
	app.Dispatch(TogglePlaybackCommand{})
	if err := app.Dispatch(RescanCommand{}); err != nil {
		t.Fatal(err)
	}
	if _, total := app.Position(); total != 0 {
		t.Errorf("Total = %d, want 0", total)
	}
	if _, ok := app.CurrentEntry(); ok {
		t.Error("CurrentEntry() should report nothing for an empty folder")
	}
	if app.IsPlaying() {
		t.Error("Playback should stop when the folder empties")
	}
	if app.Title() != "nvplay" {
		t.Errorf("Title() = %q, want nvplay", app.Title())
	}
	if err := app.Dispatch(TogglePlaybackCommand{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Toggle playback on an empty folder error = %v, want ErrNotFound", err)
	}
}

func TestAppRescanReloadsWrittenImage(t *testing.T) {
	dir := imageFolder(t, "a.png", "b.png")
	app := newTestApp(t, dir)
	first := waitSettled(t, app)

	// Same name and position, new content
	path := writePNG(t, dir, "a.png", 8, 8)
	if err := app.Dispatch(RescanCommand{Written: []string{path}}); err != nil {
		t.Fatal(err)
	}
	if got := currentName(t, app); got != "a.png" {
		t.Fatalf("Current = %s, want a.png", got)
	}

	deadline := time.After(testTimeout)
	for {
		entry, _ := app.CurrentEntry()
		if entry.State == StateReady && entry.Generation > first.Generation {
			if entry.Image.Width != 8 {
				t.Errorf("Width after rescan = %d, want 8", entry.Image.Width)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("Timed out waiting for the rewritten image")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// A rescan without written paths keeps the decoded image
	settled := waitSettled(t, app)
	if err := app.Dispatch(RescanCommand{}); err != nil {
		t.Fatal(err)
	}
	if entry, _ := app.CurrentEntry(); entry.Generation != settled.Generation {
		t.Errorf("Generation = %d, want %d after a plain rescan", entry.Generation, settled.Generation)
	}
}

func TestAppZoomAndThemeCommands(t *testing.T) {
	app := newTestApp(t, imageFolder(t, "a.png"))
	if app.GetZoomMode() != ZoomFitBest || app.GetTheme() != ThemeDark {
		t.Fatalf("Initial view = %s %s, want fit_best dark", app.GetZoomMode(), app.GetTheme())
	}

	tests := []struct {
		mode    ZoomMode
		overlay string
	}{
		{ZoomOriginal, "Zoom: Original size"},
		{ZoomFitStretch, "Zoom: Fit (stretch)"},
		{ZoomFitBest, "Zoom: Fit"},
	}
	for _, tt := range tests {
		cmd, ok := commandForAction("zoom_" + tt.mode.String())
		if !ok {
			t.Fatalf("No command for zoom_%s", tt.mode)
		}
		if err := app.Dispatch(cmd); err != nil {
			t.Fatal(err)
		}
		if app.GetZoomMode() != tt.mode {
			t.Errorf("Zoom mode = %s, want %s", app.GetZoomMode(), tt.mode)
		}
		if app.GetOverlayMessage() != tt.overlay {
			t.Errorf("Overlay = %q, want %q", app.GetOverlayMessage(), tt.overlay)
		}
	}

	app.Dispatch(ToggleThemeCommand{})
	if app.GetTheme() != ThemeLight || app.GetOverlayMessage() != "Theme: light" {
		t.Errorf("After toggle: theme %s, overlay %q", app.GetTheme(), app.GetOverlayMessage())
	}
	app.Dispatch(ToggleThemeCommand{})
	if app.GetTheme() != ThemeDark {
		t.Errorf("Second toggle gave %s, want dark", app.GetTheme())
	}
}

func TestAppRunExternalCommand(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := imageFolder(t, "a.png")
	app := newTestApp(t, dir)
	out := filepath.Join(t.TempDir(), "out.txt")

	cmd := RunExternalCommand{Config: ExternalCommandConfig{
		Input:   []string{"Alt+KeyE"},
		Program: "sh",
		Args:    []string{"-c", `printf %s "$1" > "$OUT.tmp" && mv "$OUT.tmp" "$OUT"`, "sh", "${img}"},
		Envs:    []EnvVar{{Name: "OUT", Value: out}},
	}}
	if err := app.Dispatch(cmd); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if app.GetOverlayMessage() != "Started sh" {
		t.Errorf("Overlay = %q, want %q", app.GetOverlayMessage(), "Started sh")
	}

	deadline := time.Now().Add(testTimeout)
	for {
		data, err := os.ReadFile(out)
		if err == nil {
			if want := filepath.Join(dir, "a.png"); string(data) != want {
				t.Errorf("Program received %q, want %q", data, want)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for the external program")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAppRunExternalCommandFailures(t *testing.T) {
	app := newTestApp(t, imageFolder(t, "a.png"))
	missing := RunExternalCommand{Config: ExternalCommandConfig{Program: filepath.Join(t.TempDir(), "no-such-program")}}
	err := app.Dispatch(missing)
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("Dispatch() error = %v, want a start failure", err)
	}
	if !strings.HasPrefix(app.GetOverlayMessage(), "command no-such-program failed") {
		t.Errorf("Overlay = %q, want a failure message", app.GetOverlayMessage())
	}

	empty := newTestApp(t, t.TempDir())
	err = empty.Dispatch(RunExternalCommand{Config: ExternalCommandConfig{Program: "sh"}})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Dispatch() with no image error = %v, want ErrNotFound", err)
	}
}

func TestAppRescanFailure(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "album")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatal(err)
	}
	writePNG(t, dir, "a.png", 2, 2)
	app := newTestApp(t, dir)

	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	err := app.Dispatch(RescanCommand{})
	var ioErr *IoError
	if !errors.As(err, &ioErr) {
		t.Errorf("Rescan error = %v, want IoError", err)
	}
	if !strings.HasPrefix(app.GetOverlayMessage(), "rescan failed") {
		t.Errorf("Overlay = %q, want a failure message", app.GetOverlayMessage())
	}
	if _, total := app.Position(); total != 1 {
		t.Errorf("Failed rescan changed the index to %d entries", total)
	}
}

func TestAppCycleSort(t *testing.T) {
	app := newTestApp(t, imageFolder(t, "img10.png", "img9.png"))

	if got := currentName(t, app); got != "img9.png" {
		t.Errorf("Natural order starts with %s, want img9.png", got)
	}
	if err := app.Dispatch(CycleSortCommand{}); err != nil {
		t.Fatal(err)
	}
	if app.GetOverlayMessage() != "Sort: Simple" {
		t.Errorf("Overlay = %q, want Sort: Simple", app.GetOverlayMessage())
	}
	// Still on img9.png, which now sorts last
	if current, _ := app.Position(); current != 1 {
		t.Errorf("Position() = %d, want 1", current)
	}
}

func TestAppReloadCurrent(t *testing.T) {
	dir := imageFolder(t, "a.png")
	app := newTestApp(t, dir)
	first := waitSettled(t, app)

	// Replace the file with a larger image and reload it
	writePNG(t, dir, "a.png", 8, 8)
	if err := app.Dispatch(ReloadCommand{}); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(testTimeout)
	for {
		entry, _ := app.CurrentEntry()
		if entry.State == StateReady && entry.Generation > first.Generation {
			if entry.Image.Width != 8 {
				t.Errorf("Reloaded width = %d, want 8", entry.Image.Width)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("Timed out waiting for the reload")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestAppFailedImage(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.png"), []byte("nope"), 0644); err != nil {
		t.Fatal(err)
	}
	app := newTestApp(t, dir)

	entry := waitSettled(t, app)
	var decErr *DecodeError
	if entry.State != StateFailed || !errors.As(entry.Err, &decErr) {
		t.Errorf("Entry = %+v, want Failed with DecodeError", entry)
	}
}

func TestAppPostAndDrain(t *testing.T) {
	app := newTestApp(t, imageFolder(t, "a.png"))

	for i := 0; i < commandQueueSize; i++ {
		if !app.Post(ToggleInfoCommand{}) {
			t.Fatalf("Post() %d failed", i)
		}
	}
	if app.Post(ToggleInfoCommand{}) {
		t.Error("Post() to a full queue should fail")
	}

	if n := app.DrainCommands(); n != commandQueueSize {
		t.Errorf("DrainCommands() = %d, want %d", n, commandQueueSize)
	}
	if app.IsShowingInfo() {
		t.Error("An even number of toggles should leave info hidden")
	}
	if n := app.DrainCommands(); n != 0 {
		t.Errorf("DrainCommands() on an empty queue = %d", n)
	}
}

func TestAppCloseTwice(t *testing.T) {
	app, err := NewApp(context.Background(), imageFolder(t, "a.png"), testConfigStatus(t), loadDecodedImage)
	if err != nil {
		t.Fatal(err)
	}
	if err := app.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := app.Close(); err != nil {
		t.Errorf("Second Close() error = %v", err)
	}
}

func TestAppContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	app, err := NewApp(ctx, imageFolder(t, "a.png"), testConfigStatus(t), loadDecodedImage)
	if err != nil {
		t.Fatal(err)
	}
	defer app.Close()

	cancel()
	if !app.ExitRequested() {
		t.Error("A cancelled context should request exit")
	}
}

func TestNewAppMissingTarget(t *testing.T) {
	_, err := NewApp(context.Background(), filepath.Join(t.TempDir(), "gone"), testConfigStatus(t), loadDecodedImage)
	var ioErr *IoError
	if !errors.As(err, &ioErr) {
		t.Errorf("NewApp() error = %v, want IoError", err)
	}
}
