package main

import (
	"fmt"
	"image/color"
	"math"
)

// ZoomMode selects how an image is scaled to the window
type ZoomMode int

const (
	ZoomFitBest    ZoomMode = iota // shrink to fit, never enlarge
	ZoomFitStretch                 // scale to fit, enlarging small images
	ZoomOriginal                   // one image pixel per screen pixel
)

var zoomModeNames = map[ZoomMode]string{
	ZoomFitBest:    "fit_best",
	ZoomFitStretch: "fit_stretch",
	ZoomOriginal:   "original",
}

func (m ZoomMode) String() string {
	if name, ok := zoomModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("ZoomMode(%d)", int(m))
}

// Label is the name shown in overlay messages
func (m ZoomMode) Label() string {
	switch m {
	case ZoomFitStretch:
		return "Fit (stretch)"
	case ZoomOriginal:
		return "Original size"
	default:
		return "Fit"
	}
}

func (m *ZoomMode) UnmarshalText(text []byte) error {
	for mode, name := range zoomModeNames {
		if name == string(text) {
			*m = mode
			return nil
		}
	}
	return fmt.Errorf("unknown zoom mode %q (want fit_best, fit_stretch or original)", text)
}

func (m ZoomMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// imageScale returns the scale for an iw x ih image in a maxW x maxH area
func imageScale(mode ZoomMode, iw, ih, maxW, maxH float64) float64 {
	if iw <= 0 || ih <= 0 {
		return 1
	}
	fit := math.Min(maxW/iw, maxH/ih)
	switch mode {
	case ZoomOriginal:
		return 1
	case ZoomFitStretch:
		return fit
	default:
		return math.Min(fit, 1)
	}
}

// Theme is the window background scheme
type Theme int

const (
	ThemeDark Theme = iota
	ThemeLight
)

func (t Theme) String() string {
	if t == ThemeLight {
		return "light"
	}
	return "dark"
}

// Toggle returns the other theme
func (t Theme) Toggle() Theme {
	if t == ThemeLight {
		return ThemeDark
	}
	return ThemeLight
}

// Background is the color behind the image
func (t Theme) Background() color.RGBA {
	if t == ThemeLight {
		return color.RGBA{230, 230, 230, 255}
	}
	return color.RGBA{0, 0, 0, 255}
}

func (t *Theme) UnmarshalText(text []byte) error {
	switch string(text) {
	case "dark":
		*t = ThemeDark
	case "light":
		*t = ThemeLight
	default:
		return fmt.Errorf("unknown theme %q (want dark or light)", text)
	}
	return nil
}

func (t Theme) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}
