package main

import (
	"time"
)

const (
	// Overlay message display duration
	overlayMessageDuration = 2 * time.Second
)

// RenderState provides read-only access to viewer state for the renderer
type RenderState interface {
	// Display modes
	IsFullscreen() bool
	IsPlaying() bool
	GetZoomMode() ZoomMode
	GetTheme() Theme

	// Rendering data
	CurrentEntry() (EntrySnapshot, bool)
	CurrentSource() (ImagePath, bool)
	Position() (current, total int)

	// UI state
	IsShowingHelp() bool
	IsShowingInfo() bool
	IsInPageInputMode() bool
	GetPageInputBuffer() string
	GetOverlayMessage() string
	GetOverlayMessageTime() time.Time

	// Display data
	GetFontSize() float64
	GetConfigStatus() ConfigLoadResult
	GetKeybindings() map[string][]string
	GetMousebindings() map[string][]string
	GetCommands() []ExternalCommandConfig
	GetCacheStats() CacheStats
	GetPlaybackStats() PlaybackStats
}

// InputActions provides action methods for the input handler
type InputActions interface {
	Dispatch(cmd Command) error

	// Page input
	ExitPageInputMode()
	ProcessPageInput()
	UpdatePageInputBuffer(buffer string)
}

// InputState provides read-only access to input-related state
type InputState interface {
	IsInPageInputMode() bool
	GetPageInputBuffer() string
	IsShowingInfo() bool
	Position() (current, total int)
}
