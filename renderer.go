package main

import (
	"bytes"
	"fmt"
	"image/color"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/gofont/goregular"
)

// Common colors used in rendering
var (
	colorWhite     = color.RGBA{255, 255, 255, 255}
	colorGray      = color.RGBA{180, 180, 180, 255}
	colorLightGray = color.RGBA{192, 192, 192, 255}
	colorYellow    = color.RGBA{255, 255, 100, 255}
	colorCyan      = color.RGBA{100, 255, 255, 255}
	colorLightBlue = color.RGBA{200, 200, 255, 255}
	colorGreen     = color.RGBA{100, 255, 100, 255}
	colorOrange    = color.RGBA{255, 200, 100, 255}
	colorLightRed  = color.RGBA{255, 150, 150, 255}
	colorSlider    = color.RGBA{90, 150, 255, 220}

	// Background colors for semi-transparent overlays
	bgColorLight  = color.RGBA{0, 0, 0, 128} // Light semi-transparent
	bgColorMedium = color.RGBA{0, 0, 0, 160} // Medium semi-transparent
	bgColorDark   = color.RGBA{0, 0, 0, 200} // Dark semi-transparent
)

// Frames per loading indicator step
const spinnerFrames = 6

// helpRow is one line of the help overlay
type helpRow struct {
	action      string
	keys        string
	mouse       string
	description string
}

// Renderer handles all drawing operations
type Renderer struct {
	renderState    RenderState
	textures       *TextureCache
	helpFontSource *text.GoTextFaceSource
	frame          int
	loading        bool // last frame showed the loading indicator
}

// NewRenderer creates a new Renderer
func NewRenderer(renderState RenderState, textures *TextureCache) *Renderer {
	// Initialize font source with lightweight goregular
	s, err := text.NewGoTextFaceSource(bytes.NewReader(goregular.TTF))
	if err != nil {
		log.Fatal(err)
	}

	return &Renderer{
		renderState:    renderState,
		textures:       textures,
		helpFontSource: s,
	}
}

// Animating reports whether the screen changes without new input: the
// loading indicator spins and overlay messages expire.
func (r *Renderer) Animating() bool {
	if r.loading {
		return true
	}
	return r.renderState.GetOverlayMessage() != "" &&
		time.Since(r.renderState.GetOverlayMessageTime()) < overlayMessageDuration+time.Second
}

// Draw renders the entire screen
func (r *Renderer) Draw(screen *ebiten.Image) {
	// Clear the screen since SetScreenClearedEveryFrame(false) is enabled
	screen.Fill(r.renderState.GetTheme().Background())
	r.frame++
	r.loading = false

	entry, ok := r.renderState.CurrentEntry()
	if !ok {
		r.drawCenteredMessage(screen, "No images")
	} else if tex := r.textures.Texture(entry); tex != nil {
		r.drawImageCentered(screen, tex)
	} else {
		r.loading = true
		DrawLoadingIndicator(screen, r.frame/spinnerFrames)
	}

	// Draw info bar and position slider at bottom of screen if enabled
	if r.renderState.IsShowingInfo() {
		r.drawInfoDisplay(screen)
		current, total := r.renderState.Position()
		DrawSlider(screen, current, total)
	}

	// Draw help overlay if enabled
	if r.renderState.IsShowingHelp() {
		r.drawHelpOverlay(screen)
	}

	// Draw page input overlay if active
	if r.renderState.IsInPageInputMode() {
		r.drawPageInputOverlay(screen)
	}

	// Draw overlay message if active
	if r.renderState.GetOverlayMessage() != "" && time.Since(r.renderState.GetOverlayMessageTime()) < overlayMessageDuration {
		r.drawCenteredMessage(screen, r.renderState.GetOverlayMessage())
	}
}

// drawImageCentered draws img scaled by the zoom mode; at original size a
// larger image is cropped around its center
func (r *Renderer) drawImageCentered(screen *ebiten.Image, img *ebiten.Image) {
	iw, ih := float64(img.Bounds().Dx()), float64(img.Bounds().Dy())
	w, h := float64(screen.Bounds().Dx()), float64(screen.Bounds().Dy())
	scale := imageScale(r.renderState.GetZoomMode(), iw, ih, w, h)

	op := &ebiten.DrawImageOptions{}
	if scale != 1 {
		op.Filter = ebiten.FilterLinear
	}
	op.GeoM.Scale(scale, scale)
	op.GeoM.Translate(w/2-iw*scale/2, h/2-ih*scale/2)
	screen.DrawImage(img, op)
}

// helpRows returns one row per bound action, sorted by action name
func (r *Renderer) helpRows() []helpRow {
	keybindings := r.renderState.GetKeybindings()
	mousebindings := r.renderState.GetMousebindings()
	descriptions := GetActionDescriptions()

	actionSet := make(map[string]bool)
	for action := range keybindings {
		actionSet[action] = true
	}
	for action := range mousebindings {
		actionSet[action] = true
	}

	rows := make([]helpRow, 0, len(actionSet))
	for action := range actionSet {
		keys := keybindings[action]
		mouse := mousebindings[action]
		// Skip if no bindings at all
		if len(keys) == 0 && len(mouse) == 0 {
			continue
		}
		description := descriptions[action]
		if description == "" {
			description = "No description available"
		}
		rows = append(rows, helpRow{
			action:      action,
			keys:        strings.Join(keys, ", "),
			mouse:       strings.Join(mouse, ", "),
			description: description,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].action < rows[j].action })

	// External commands follow the built-in actions in config order
	for _, cmd := range r.renderState.GetCommands() {
		rows = append(rows, helpRow{
			action:      RunExternalCommand{Config: cmd}.Name(),
			keys:        strings.Join(cmd.Input, ", "),
			description: strings.TrimSpace("Run " + cmd.Program + " " + strings.Join(cmd.Args, " ")),
		})
	}
	return rows
}

func (row helpRow) inputText() string {
	switch {
	case row.keys != "" && row.mouse != "":
		return row.keys + " | " + row.mouse
	case row.keys != "":
		return row.keys
	default:
		return row.mouse
	}
}

// helpLayout holds measured column widths for one font size
type helpLayout struct {
	actionWidth float64
	inputWidth  float64
	descWidth   float64
}

func measureHelpLayout(rows []helpRow, font *text.GoTextFace) helpLayout {
	var l helpLayout
	for _, row := range rows {
		aw, _ := text.Measure(row.action, font, 0)
		iw, _ := text.Measure(row.inputText(), font, 0)
		dw, _ := text.Measure(row.description, font, 0)
		l.actionWidth = math.Max(l.actionWidth, aw)
		l.inputWidth = math.Max(l.inputWidth, iw)
		l.descWidth = math.Max(l.descWidth, dw)
	}
	return l
}

// systemLines are the status lines shown under the bindings
func (r *Renderer) systemLines() []string {
	configStatus := r.renderState.GetConfigStatus()
	stats := r.renderState.GetCacheStats()
	pstats := r.renderState.GetPlaybackStats()

	lines := []string{
		fmt.Sprintf("Config Status: %s", configStatus.Status),
		fmt.Sprintf("Cache: %d ready, %d loading, %d failed, %s / %s",
			stats.Ready, stats.Decoding, stats.Failed, humanize.IBytes(uint64(stats.ResidentBytes)), formatBudget(stats.Budget)),
		fmt.Sprintf("Playback: %d advanced, %d skipped", pstats.Advanced, pstats.Skipped),
	}
	return lines
}

// warningLines returns at most two shortened config warnings
func (r *Renderer) warningLines() []string {
	var lines []string
	for i, warning := range r.renderState.GetConfigStatus().Warnings {
		if i >= 2 { // Limit to first 2 warnings to avoid clutter
			break
		}
		lines = append(lines, "• "+truncateText(warning, 50))
	}
	return lines
}

func (r *Renderer) drawHelpOverlay(screen *ebiten.Image) {
	w, h := float64(screen.Bounds().Dx()), float64(screen.Bounds().Dy())

	// Calculate available space (accounting for padding)
	padding := 40.0
	availableWidth := w - padding*2
	availableHeight := h - padding*2

	rows := r.helpRows()

	// Calculate optimal font size
	optimalFontSize, canFit := r.calculateOptimalFontSize(rows, availableWidth, availableHeight)

	// If cannot fit even with minimum font size, show Fermat's joke
	if !canFit {
		r.drawMarginTooSmallMessage(screen)
		return
	}

	// Semi-transparent black background (lighter for more image transparency)
	DrawFilledRect(screen, 0, 0, w, h, bgColorLight)

	// Help text area with semi-transparent black background
	DrawFilledRect(screen, padding, padding, w-padding*2, h-padding*2, bgColorMedium)

	helpFont := &text.GoTextFace{
		Source: r.helpFontSource,
		Size:   optimalFontSize,
	}

	titleY := padding + 30
	DrawText(screen, "HELP:", helpFont, padding+20, titleY, colorWhite)

	currentY := titleY + optimalFontSize*2 // Start below title
	lineHeight := optimalFontSize * 1.5

	DrawText(screen, "Controls (Keyboard | Mouse):", helpFont, padding+20, currentY, colorWhite)
	currentY += lineHeight * 1.5

	layout := measureHelpLayout(rows, helpFont)
	actionColumnX := padding + 40
	arrowColumnX := actionColumnX + layout.actionWidth + 20 // 20px spacing
	inputColumnX := arrowColumnX + 30                       // Arrow width + spacing
	descColumnX := inputColumnX + layout.inputWidth + 20    // 20px spacing after input

	for _, row := range rows {
		DrawText(screen, row.action, helpFont, actionColumnX, currentY, colorLightBlue)
		DrawText(screen, "→", helpFont, arrowColumnX, currentY, colorWhite)

		// Keyboard bindings in yellow, mouse bindings in cyan
		x := inputColumnX
		if row.keys != "" {
			DrawText(screen, row.keys, helpFont, x, currentY, colorYellow)
			kw, _ := text.Measure(row.keys, helpFont, 0)
			x += kw
		}
		if row.keys != "" && row.mouse != "" {
			DrawText(screen, " | ", helpFont, x, currentY, colorWhite)
			sw, _ := text.Measure(" | ", helpFont, 0)
			x += sw
		}
		if row.mouse != "" {
			DrawText(screen, row.mouse, helpFont, x, currentY, colorCyan)
		}

		DrawText(screen, row.description, helpFont, descColumnX, currentY, colorGray)
		currentY += lineHeight
	}

	// Add some spacing before system status
	currentY += lineHeight
	DrawText(screen, "System:", helpFont, padding+20, currentY, colorWhite)
	currentY += lineHeight

	status := r.renderState.GetConfigStatus().Status
	for i, line := range r.systemLines() {
		lineColor := colorLightGray
		if i == 0 {
			lineColor = colorGreen
			if status == "Warning" || status == "Error" {
				lineColor = colorOrange
			}
		}
		DrawText(screen, line, helpFont, padding+40, currentY, lineColor)
		currentY += lineHeight
	}

	for _, line := range r.warningLines() {
		DrawText(screen, line, helpFont, padding+40, currentY, colorLightRed)
		currentY += lineHeight
	}
}

// calculateRequiredDimensions calculates the required width and height for help content at a given font size
func (r *Renderer) calculateRequiredDimensions(rows []helpRow, fontSize float64) (float64, float64) {
	tempFont := &text.GoTextFace{
		Source: r.helpFontSource,
		Size:   fontSize,
	}

	padding := 40.0
	lineHeight := fontSize * 1.5
	system := r.systemLines()
	warnings := r.warningLines()

	height := padding * 2      // Top and bottom padding
	height += fontSize * 2     // Title
	height += lineHeight * 1.5 // Controls title spacing
	height += float64(len(rows)) * lineHeight
	height += lineHeight * 2 // Spacing and "System:" title
	height += float64(len(system)+len(warnings)) * lineHeight

	layout := measureHelpLayout(rows, tempFont)
	// left margin + action + spacing + arrow + spacing + input + spacing + description + right margin
	maxWidth := 40 + layout.actionWidth + 20 + 30 + 20 + layout.inputWidth + 20 + layout.descWidth + padding

	for _, title := range []string{"HELP:", "Controls (Keyboard | Mouse):", "System:"} {
		tw, _ := text.Measure(title, tempFont, 0)
		maxWidth = math.Max(maxWidth, tw+padding*2+40)
	}
	for _, line := range append(system, warnings...) {
		lw, _ := text.Measure(line, tempFont, 0)
		maxWidth = math.Max(maxWidth, lw+padding*2+80) // 80 for indentation
	}

	return maxWidth, height
}

// calculateOptimalFontSize finds the largest font size that fits within the given dimensions
func (r *Renderer) calculateOptimalFontSize(rows []helpRow, availableWidth, availableHeight float64) (float64, bool) {
	maxFontSize := r.renderState.GetFontSize()
	minFontSize := 12.0

	// Quick check: can we fit with minimum font size?
	minW, minH := r.calculateRequiredDimensions(rows, minFontSize)
	if minW > availableWidth || minH > availableHeight {
		return minFontSize, false // Cannot fit even with minimum size
	}

	// Quick check: can we fit with maximum font size?
	maxW, maxH := r.calculateRequiredDimensions(rows, maxFontSize)
	if maxW <= availableWidth && maxH <= availableHeight {
		return maxFontSize, true
	}

	// Binary search for optimal font size
	low := minFontSize
	high := maxFontSize
	bestSize := minFontSize
	epsilon := 0.5 // Search precision

	for high-low > epsilon {
		mid := (low + high) / 2.0
		reqW, reqH := r.calculateRequiredDimensions(rows, mid)
		if reqW <= availableWidth && reqH <= availableHeight {
			bestSize = mid
			low = mid
		} else {
			high = mid
		}
	}

	return bestSize, true
}

// drawMarginTooSmallMessage displays Fermat's margin joke when help cannot fit
func (r *Renderer) drawMarginTooSmallMessage(screen *ebiten.Image) {
	w, h := screen.Bounds().Dx(), screen.Bounds().Dy()

	DrawFilledRect(screen, 0, 0, float64(w), float64(h), bgColorLight)

	jokeFont := &text.GoTextFace{
		Source: r.helpFontSource,
		Size:   16.0,
	}

	message := "Hanc marginis exiguitas non caperet."
	subtitle := "(This margin is too small to contain it.)"

	messageWidth, messageHeight := text.Measure(message, jokeFont, 0)
	subtitleWidth, _ := text.Measure(subtitle, jokeFont, 0)

	messageX := float64(w)/2 - messageWidth/2
	messageY := float64(h)/2 - messageHeight/2

	DrawText(screen, message, jokeFont, messageX, messageY, colorWhite)
	DrawText(screen, subtitle, jokeFont, float64(w)/2-subtitleWidth/2, messageY+messageHeight+10, colorGray)
}

func (r *Renderer) drawPageInputOverlay(screen *ebiten.Image) {
	w, h := screen.Bounds().Dx(), screen.Bounds().Dy()

	inputFont := &text.GoTextFace{
		Source: r.helpFontSource,
		Size:   r.renderState.GetFontSize(),
	}
	rangeFont := &text.GoTextFace{
		Source: r.helpFontSource,
		Size:   r.renderState.GetFontSize() * 0.8,
	}

	_, total := r.renderState.Position()
	inputText := fmt.Sprintf("Go to image: %s_", r.renderState.GetPageInputBuffer())
	rangeText := fmt.Sprintf("(1-%d)", total)

	inputWidth, inputHeight := text.Measure(inputText, inputFont, 0)
	rangeWidth, rangeHeight := text.Measure(rangeText, rangeFont, 0)

	// Calculate box dimensions (accommodate both lines)
	maxWidth := math.Max(inputWidth, rangeWidth)
	totalHeight := inputHeight + rangeHeight + 10 // 10px gap between lines

	padding := 20.0
	boxWidth := maxWidth + padding*2
	boxHeight := totalHeight + padding*2
	boxX := (float64(w) - boxWidth) / 2
	boxY := (float64(h) - boxHeight) / 2

	DrawFilledRect(screen, boxX, boxY, boxWidth, boxHeight, bgColorDark)
	DrawText(screen, inputText, inputFont, boxX+(boxWidth-inputWidth)/2, boxY+padding, colorWhite)
	DrawText(screen, rangeText, rangeFont, boxX+(boxWidth-rangeWidth)/2, boxY+padding+inputHeight+10, colorLightGray)
}

func (r *Renderer) drawInfoDisplay(screen *ebiten.Image) {
	infoFont := &text.GoTextFace{
		Source: r.helpFontSource,
		Size:   r.renderState.GetFontSize() * 0.75,
	}

	current, total := r.renderState.Position()
	name := ""
	if src, ok := r.renderState.CurrentSource(); ok {
		name = src.DisplayName()
	}
	state := StatePending
	if entry, ok := r.renderState.CurrentEntry(); ok {
		state = entry.State
	}
	infoText := formatInfo(current, total, name, state, r.renderState.IsPlaying(), r.renderState.GetCacheStats())

	textWidth, textHeight := text.Measure(infoText, infoFont, 0)

	// Position at bottom right corner, above the slider
	padding := 10.0
	textX := float64(screen.Bounds().Dx()) - textWidth - padding
	textY := float64(screen.Bounds().Dy()) - textHeight - padding - sliderHeight

	bgPadding := 5.0
	DrawFilledRect(screen, textX-bgPadding, textY-bgPadding, textWidth+bgPadding*2, textHeight+bgPadding*2, bgColorLight)
	DrawText(screen, infoText, infoFont, textX, textY, colorWhite)
}

// drawCenteredMessage draws text in a dark box in the middle of the screen
func (r *Renderer) drawCenteredMessage(screen *ebiten.Image, message string) {
	messageFont := &text.GoTextFace{
		Source: r.helpFontSource,
		Size:   r.renderState.GetFontSize(),
	}

	textWidth, textHeight := text.Measure(message, messageFont, 0)

	padding := 20.0
	boxWidth := textWidth + padding*2
	boxHeight := textHeight + padding*2
	boxX := (float64(screen.Bounds().Dx()) - boxWidth) / 2
	boxY := (float64(screen.Bounds().Dy()) - boxHeight) / 2

	DrawFilledRect(screen, boxX, boxY, boxWidth, boxHeight, bgColorDark)
	DrawText(screen, message, messageFont, boxX+padding, boxY+padding, colorWhite)
}

// formatInfo builds the info bar text
func formatInfo(current, total int, name string, state EntryState, playing bool, stats CacheStats) string {
	if total == 0 {
		return "0 / 0"
	}
	parts := []string{fmt.Sprintf("%d / %d", current+1, total)}
	if name != "" {
		parts = append(parts, name)
	}
	if state != StateReady {
		parts = append(parts, strings.ToLower(state.String()))
	}
	if playing {
		parts = append(parts, "playing")
	}
	parts = append(parts, fmt.Sprintf("%s / %s", humanize.IBytes(uint64(stats.ResidentBytes)), formatBudget(stats.Budget)))
	return strings.Join(parts, "  ")
}

func formatBudget(budget int64) string {
	if budget <= 0 {
		return "unlimited"
	}
	return humanize.IBytes(uint64(budget))
}
