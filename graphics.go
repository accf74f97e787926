package main

import (
	"bytes"
	"image/color"
	"math"
	"path/filepath"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font/gofont/goregular"
)

// Global font source for placeholder generation
var globalFontSource *text.GoTextFaceSource

// Height of the position slider at the bottom of the window
const sliderHeight = 10.0

// InitGraphics initializes the global font source for text rendering
func InitGraphics() error {
	s, err := text.NewGoTextFaceSource(bytes.NewReader(goregular.TTF))
	if err != nil {
		return err
	}
	globalFontSource = s
	return nil
}

// DrawText draws text with specified position and color
func DrawText(screen *ebiten.Image, textString string, font *text.GoTextFace, x, y float64, textColor color.RGBA) {
	op := &text.DrawOptions{}
	op.GeoM.Translate(x, y)
	op.ColorScale.ScaleWithColor(textColor)
	text.Draw(screen, textString, font, op)
}

// DrawFilledRect draws filled rectangles with float64 coordinates
func DrawFilledRect(screen *ebiten.Image, x, y, w, h float64, bgColor color.RGBA) {
	vector.DrawFilledRect(screen, float32(x), float32(y), float32(w), float32(h), bgColor, false)
}

func drawBorder(img *ebiten.Image, width, height int, c color.RGBA) {
	DrawFilledRect(img, 0, 0, float64(width), 3, c)
	DrawFilledRect(img, 0, float64(height-3), float64(width), 3, c)
	DrawFilledRect(img, 0, 0, 3, float64(height), c)
	DrawFilledRect(img, float64(width-3), 0, 3, float64(height), c)
}

// CreateErrorImage creates an error placeholder image with the error kind,
// filename and reason
func CreateErrorImage(width, height int, filename, kind, reason string) *ebiten.Image {
	// Default size if not specified
	if width <= 0 || height <= 0 {
		width, height = placeholderWidth, placeholderHeight
	}

	errorImg := ebiten.NewImage(width, height)
	errorImg.Fill(color.RGBA{120, 30, 30, 255}) // Dark red background
	drawBorder(errorImg, width, height, colorWhite)

	// Without a font source the colored frame is all we can show
	if globalFontSource == nil {
		return errorImg
	}

	errorFont := &text.GoTextFace{
		Source: globalFontSource,
		Size:   20.0,
	}

	if kind == "" {
		kind = "Error"
	}
	fileText := "File: " + filepath.Base(filename)
	reasonText := "Reason: " + reason

	// Truncate long text to fit within image bounds
	maxChars := (width - 20) / 10 // Rough estimate: 10px per character
	fileText = truncateText(fileText, maxChars)
	reasonText = truncateText(reasonText, maxChars)

	DrawText(errorImg, kind, errorFont, 10, 30, colorWhite)
	DrawText(errorImg, fileText, errorFont, 10, 60, colorWhite)
	DrawText(errorImg, reasonText, errorFont, 10, 90, colorWhite)

	return errorImg
}

// DrawLoadingIndicator draws a spinner of eight dots in the middle of the
// screen; phase advances it.
func DrawLoadingIndicator(screen *ebiten.Image, phase int) {
	w, h := float64(screen.Bounds().Dx()), float64(screen.Bounds().Dy())
	cx, cy := w/2, h/2
	const dots = 8
	const radius = 24.0

	for i := 0; i < dots; i++ {
		angle := 2 * math.Pi * float64(i) / dots
		x := cx + radius*math.Cos(angle)
		y := cy + radius*math.Sin(angle)
		alpha := uint8(60 + 195*((i+phase)%dots)/(dots-1))
		vector.DrawFilledCircle(screen, float32(x), float32(y), 4, color.RGBA{alpha, alpha, alpha, alpha}, true)
	}
}

// DrawSlider draws the position slider along the bottom edge
func DrawSlider(screen *ebiten.Image, current, total int) {
	if total <= 0 {
		return
	}
	w, h := float64(screen.Bounds().Dx()), float64(screen.Bounds().Dy())
	y := h - sliderHeight

	DrawFilledRect(screen, 0, y, w, sliderHeight, bgColorMedium)
	filled := w * float64(current+1) / float64(total)
	DrawFilledRect(screen, 0, y, filled, sliderHeight, colorSlider)
}

// sliderIndexAt maps a click at x on a slider width pixels wide to an index
func sliderIndexAt(x, width, total int) (int, bool) {
	if width <= 0 || total <= 0 || x < 0 || x >= width {
		return 0, false
	}
	idx := x * total / width
	if idx >= total {
		idx = total - 1
	}
	return idx, true
}

func truncateText(s string, maxChars int) string {
	if maxChars <= 3 || len(s) <= maxChars {
		return s
	}
	return s[:maxChars-3] + "..."
}
