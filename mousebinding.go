package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// MouseSettings contains mouse-specific configuration
type MouseSettings struct {
	WheelSensitivity float64 `json:"wheel_sensitivity" toml:"wheel_sensitivity"`
	DoubleClickTime  int     `json:"double_click_time" toml:"double_click_time"` // milliseconds
	EnableMouse      bool    `json:"enable_mouse" toml:"enable_mouse"`
	WheelInverted    bool    `json:"wheel_inverted" toml:"wheel_inverted"`
}

// GetDefaultMouseSettings returns the default mouse settings
func GetDefaultMouseSettings() MouseSettings {
	return MouseSettings{
		WheelSensitivity: 1.0,
		DoubleClickTime:  300, // milliseconds
		EnableMouse:      true,
		WheelInverted:    false,
	}
}

// DoubleClickTracker tracks double-click state
type DoubleClickTracker struct {
	lastClickTime   time.Time
	lastClickButton ebiten.MouseButton
	clickCount      int
}

// MouseCombination represents a mouse action with optional modifiers
type MouseCombination struct {
	Button        ebiten.MouseButton
	IsWheel       bool
	WheelDeltaX   float64
	WheelDeltaY   float64
	IsDoubleClick bool
	Shift         bool
	Ctrl          bool
	Alt           bool
}

// MousebindingManager resolves configured mouse gestures into commands
type MousebindingManager struct {
	bindings           map[string][]MouseCombination
	settings           MouseSettings
	doubleClickTracker DoubleClickTracker
}

// NewMousebindingManager parses mousebindings once; strings that do not
// parse are ignored
func NewMousebindingManager(mousebindings map[string][]string, settings MouseSettings) *MousebindingManager {
	mouseMapping := getMouseMapping()
	bindings := make(map[string][]MouseCombination, len(mousebindings))
	for action, mouseStrings := range mousebindings {
		for _, mouseStr := range mouseStrings {
			if combination, ok := parseMouseString(mouseMapping, mouseStr); ok {
				bindings[action] = append(bindings[action], combination)
			}
		}
	}
	return &MousebindingManager{
		bindings: bindings,
		settings: settings,
	}
}

// getMouseMapping returns a mapping from string mouse actions to Ebiten mouse buttons
func getMouseMapping() map[string]ebiten.MouseButton {
	return map[string]ebiten.MouseButton{
		"LeftClick":   ebiten.MouseButtonLeft,
		"RightClick":  ebiten.MouseButtonRight,
		"MiddleClick": ebiten.MouseButtonMiddle,
		"Back":        ebiten.MouseButton3, // Back button (side button)
		"Forward":     ebiten.MouseButton4, // Forward button (side button)
	}
}

var wheelDirections = map[string][2]float64{
	"WheelUp":    {0, 1},
	"WheelDown":  {0, -1},
	"WheelLeft":  {-1, 0},
	"WheelRight": {1, 0},
}

// parseMouseString parses a mouse string like "Shift+LeftClick" or "WheelUp" into a MouseCombination
func parseMouseString(mouseMapping map[string]ebiten.MouseButton, mouseStr string) (MouseCombination, bool) {
	parts := strings.Split(mouseStr, "+")
	actionName := parts[len(parts)-1]

	var combination MouseCombination
	if dir, ok := wheelDirections[actionName]; ok {
		combination.IsWheel = true
		combination.WheelDeltaX, combination.WheelDeltaY = dir[0], dir[1]
	} else {
		name, double := strings.CutPrefix(actionName, "Double")
		button, exists := mouseMapping[name]
		if !exists {
			return MouseCombination{}, false
		}
		combination.Button = button
		combination.IsDoubleClick = double
	}

	for _, modifier := range parts[:len(parts)-1] {
		switch strings.ToLower(modifier) {
		case "shift":
			combination.Shift = true
		case "ctrl":
			combination.Ctrl = true
		case "alt":
			combination.Alt = true
		default:
			return MouseCombination{}, false
		}
	}

	return combination, true
}

func modifiersMatch(shift, ctrl, alt bool) bool {
	return shift == ebiten.IsKeyPressed(ebiten.KeyShift) &&
		ctrl == ebiten.IsKeyPressed(ebiten.KeyControl) &&
		alt == ebiten.IsKeyPressed(ebiten.KeyAlt)
}

// isMouseActionTriggered checks if a mouse combination is currently being triggered
func (mm *MousebindingManager) isMouseActionTriggered(combination MouseCombination) bool {
	if !mm.settings.EnableMouse {
		return false
	}
	if !modifiersMatch(combination.Shift, combination.Ctrl, combination.Alt) {
		return false
	}

	if combination.IsWheel {
		wheelX, wheelY := ebiten.Wheel()

		// Apply sensitivity and inversion
		if mm.settings.WheelInverted {
			wheelY = -wheelY
		}
		wheelX *= mm.settings.WheelSensitivity
		wheelY *= mm.settings.WheelSensitivity

		if combination.WheelDeltaX != 0 {
			return combination.WheelDeltaX*wheelX > 0
		}
		return combination.WheelDeltaY*wheelY > 0
	}

	if combination.IsDoubleClick {
		return mm.checkDoubleClick(combination.Button)
	}

	return inpututil.IsMouseButtonJustPressed(combination.Button)
}

// checkDoubleClick checks if a double-click occurred for the given button
func (mm *MousebindingManager) checkDoubleClick(button ebiten.MouseButton) bool {
	if !inpututil.IsMouseButtonJustPressed(button) {
		return false
	}
	return mm.doubleClickTracker.click(button, time.Now(), time.Duration(mm.settings.DoubleClickTime)*time.Millisecond)
}

// click records a press of button at now and reports whether it completes
// a double click
func (t *DoubleClickTracker) click(button ebiten.MouseButton, now time.Time, window time.Duration) bool {
	defer func() { t.lastClickTime = now }()

	if t.clickCount > 0 && t.lastClickButton == button && now.Sub(t.lastClickTime) <= window {
		t.clickCount = 0
		return true
	}
	t.clickCount = 1
	t.lastClickButton = button
	return false
}

// CheckAction checks if any mouse binding for the given action is triggered
func (mm *MousebindingManager) CheckAction(action string) bool {
	for _, combination := range mm.bindings[action] {
		if mm.isMouseActionTriggered(combination) {
			return true
		}
	}
	return false
}

// ExecuteAction dispatches the command bound to action if its mouse input fired
func (mm *MousebindingManager) ExecuteAction(action string, inputActions InputActions) bool {
	if !mm.CheckAction(action) {
		return false
	}
	cmd, ok := commandForAction(action)
	if !ok {
		return false
	}
	inputActions.Dispatch(cmd)
	return true
}

// validateMousebindings checks that every binding parses
func validateMousebindings(mousebindings map[string][]string) error {
	mouseMapping := getMouseMapping()
	for action, bindings := range mousebindings {
		for _, b := range bindings {
			if _, ok := parseMouseString(mouseMapping, b); !ok {
				return fmt.Errorf("invalid mouse binding '%s' for action '%s'", b, action)
			}
		}
	}
	return nil
}
