package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hajimehoshi/ebiten/v2"
)

var debugMode bool

// debugLog prints only when debug output is enabled
func debugLog(format string, args ...interface{}) {
	if debugMode {
		log.Printf("Debug: "+format, args...)
	}
}

// Game adapts the App to ebiten's game loop
type Game struct {
	app      *App
	renderer *Renderer
	input    *InputHandler
	textures *TextureCache

	needsRedraw  bool
	screenWidth  int
	screenHeight int
	fullscreen   bool
	title        string
	savedWinW    int
	savedWinH    int
}

// NewGame wires the front end to app
func NewGame(app *App) *Game {
	config := app.config
	textures := NewTextureCache(config.TextureCacheSize)
	return &Game{
		app:      app,
		renderer: NewRenderer(app, textures),
		input: NewInputHandler(app, app,
			NewKeybindingManager(config.Keybindings, config.Commands),
			NewMousebindingManager(config.Mousebindings, config.MouseSettings)),
		textures:    textures,
		needsRedraw: true,
	}
}

func (g *Game) Update() error {
	if g.input.HandleInput() {
		g.needsRedraw = true
	}
	if g.app.DrainCommands() > 0 {
		g.needsRedraw = true
	}

	switch g.app.Tick() {
	case TickAdvanced, TickSkipped, TickEnded:
		g.needsRedraw = true
	}

	// A load for the current image finished
	select {
	case <-g.app.cache.Changed():
		g.needsRedraw = true
	default:
	}

	if g.app.ExitRequested() {
		return ebiten.Termination
	}

	g.syncWindow()
	return nil
}

// syncWindow applies fullscreen and title changes made by commands
func (g *Game) syncWindow() {
	if g.app.IsFullscreen() != g.fullscreen {
		g.fullscreen = g.app.IsFullscreen()
		if g.fullscreen {
			g.savedWinW, g.savedWinH = ebiten.WindowSize()
			ebiten.SetFullscreen(true)
		} else {
			ebiten.SetFullscreen(false)
			if g.savedWinW > 0 && g.savedWinH > 0 {
				ebiten.SetWindowSize(g.savedWinW, g.savedWinH)
			}
		}
		g.needsRedraw = true
	}

	if title := g.app.Title(); title != g.title {
		g.title = title
		ebiten.SetWindowTitle(title)
	}
}

func (g *Game) Draw(screen *ebiten.Image) {
	if !g.needsRedraw && !g.renderer.Animating() {
		return
	}
	g.needsRedraw = false
	g.renderer.Draw(screen)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth != g.screenWidth || outsideHeight != g.screenHeight {
		g.screenWidth, g.screenHeight = outsideWidth, outsideHeight
		g.input.SetScreenSize(outsideWidth, outsideHeight)
		g.needsRedraw = true
	}
	return outsideWidth, outsideHeight
}

// Close shuts the application down and releases GPU textures
func (g *Game) Close() error {
	err := g.app.Close()
	g.textures.Purge()
	return err
}

func main() {
	configPath := flag.String("config", getConfigPath(), "configuration file (.json or .toml)")
	debug := flag.Bool("debug", false, "enable debug logging")
	play := flag.Bool("play", false, "start playback immediately")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <folder|image|archive>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	debugMode = *debug || os.Getenv("NVPLAY_DEBUG") == "1"

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	status := loadConfigFromPath(*configPath)
	for _, warning := range status.Warnings {
		log.Printf("Warning: %s", warning)
	}

	if err := InitGraphics(); err != nil {
		log.Printf("Warning: Failed to initialize graphics font: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, flag.Arg(0), status, loadDecodedImage)
	if err != nil {
		log.Fatal(err)
	}

	if *play {
		app.Dispatch(TogglePlaybackCommand{})
	}

	g := NewGame(app)
	config := status.Config

	ebiten.SetWindowTitle(app.Title())
	ebiten.SetWindowSize(config.WindowWidth, config.WindowHeight)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetScreenClearedEveryFrame(false)

	runErr := ebiten.RunGame(g)
	if err := g.Close(); err != nil {
		log.Printf("Error: Shutdown: %v", err)
	}
	if runErr != nil {
		log.Fatal(runErr)
	}
}
