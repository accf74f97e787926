package main

import (
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// KeybindingManager resolves configured key strings into commands
type KeybindingManager struct {
	bindings map[string][]KeyCombination
	external []externalBinding
}

// externalBinding is an external command with its parsed input keys
type externalBinding struct {
	keys []KeyCombination
	cmd  RunExternalCommand
}

// NewKeybindingManager parses keybindings and external command inputs once;
// strings that do not parse are ignored (validation has already reported
// them)
func NewKeybindingManager(keybindings map[string][]string, commands []ExternalCommandConfig) *KeybindingManager {
	keyMapping := getKeyMapping()
	bindings := make(map[string][]KeyCombination, len(keybindings))
	for action, keyStrings := range keybindings {
		for _, keyStr := range keyStrings {
			if combination, ok := parseKeyString(keyMapping, keyStr); ok {
				bindings[action] = append(bindings[action], combination)
			}
		}
	}

	var external []externalBinding
	for _, cfg := range commands {
		binding := externalBinding{cmd: RunExternalCommand{Config: cfg}}
		for _, keyStr := range cfg.Input {
			if combination, ok := parseKeyString(keyMapping, keyStr); ok {
				binding.keys = append(binding.keys, combination)
			}
		}
		if len(binding.keys) > 0 {
			external = append(external, binding)
		}
	}
	return &KeybindingManager{bindings: bindings, external: external}
}

// getKeyMapping returns a mapping from string keys to Ebiten keys
func getKeyMapping() map[string]ebiten.Key {
	return map[string]ebiten.Key{
		// Letters
		"KeyA": ebiten.KeyA, "KeyB": ebiten.KeyB, "KeyC": ebiten.KeyC, "KeyD": ebiten.KeyD,
		"KeyE": ebiten.KeyE, "KeyF": ebiten.KeyF, "KeyG": ebiten.KeyG, "KeyH": ebiten.KeyH,
		"KeyI": ebiten.KeyI, "KeyJ": ebiten.KeyJ, "KeyK": ebiten.KeyK, "KeyL": ebiten.KeyL,
		"KeyM": ebiten.KeyM, "KeyN": ebiten.KeyN, "KeyO": ebiten.KeyO, "KeyP": ebiten.KeyP,
		"KeyQ": ebiten.KeyQ, "KeyR": ebiten.KeyR, "KeyS": ebiten.KeyS, "KeyT": ebiten.KeyT,
		"KeyU": ebiten.KeyU, "KeyV": ebiten.KeyV, "KeyW": ebiten.KeyW, "KeyX": ebiten.KeyX,
		"KeyY": ebiten.KeyY, "KeyZ": ebiten.KeyZ,

		// Numbers
		"Key0": ebiten.Key0, "Key1": ebiten.Key1, "Key2": ebiten.Key2, "Key3": ebiten.Key3,
		"Key4": ebiten.Key4, "Key5": ebiten.Key5, "Key6": ebiten.Key6, "Key7": ebiten.Key7,
		"Key8": ebiten.Key8, "Key9": ebiten.Key9,

		// Special keys
		"Space":      ebiten.KeySpace,
		"Backspace":  ebiten.KeyBackspace,
		"Enter":      ebiten.KeyEnter,
		"Escape":     ebiten.KeyEscape,
		"Tab":        ebiten.KeyTab,
		"Home":       ebiten.KeyHome,
		"End":        ebiten.KeyEnd,
		"PageUp":     ebiten.KeyPageUp,
		"PageDown":   ebiten.KeyPageDown,
		"ArrowUp":    ebiten.KeyArrowUp,
		"ArrowDown":  ebiten.KeyArrowDown,
		"ArrowLeft":  ebiten.KeyArrowLeft,
		"ArrowRight": ebiten.KeyArrowRight,
		"F1":         ebiten.KeyF1,
		"F2":         ebiten.KeyF2,
		"F5":         ebiten.KeyF5,
		"F11":        ebiten.KeyF11,

		// Punctuation
		"Comma":     ebiten.KeyComma,
		"Period":    ebiten.KeyPeriod,
		"Slash":     ebiten.KeySlash,
		"Semicolon": ebiten.KeySemicolon,
		"Quote":     ebiten.KeyQuote,
		"Minus":     ebiten.KeyMinus,
		"Equal":     ebiten.KeyEqual,

		// Numpad
		"Numpad0":     ebiten.KeyNumpad0,
		"Numpad1":     ebiten.KeyNumpad1,
		"Numpad2":     ebiten.KeyNumpad2,
		"Numpad3":     ebiten.KeyNumpad3,
		"Numpad4":     ebiten.KeyNumpad4,
		"Numpad5":     ebiten.KeyNumpad5,
		"Numpad6":     ebiten.KeyNumpad6,
		"Numpad7":     ebiten.KeyNumpad7,
		"Numpad8":     ebiten.KeyNumpad8,
		"Numpad9":     ebiten.KeyNumpad9,
		"NumpadEnter": ebiten.KeyNumpadEnter,
	}
}

// KeyCombination represents a key with optional modifiers
type KeyCombination struct {
	Key   ebiten.Key
	Shift bool
	Ctrl  bool
	Alt   bool
}

// parseKeyString parses a key string like "Shift+KeyB" into a KeyCombination
func parseKeyString(keyMapping map[string]ebiten.Key, keyStr string) (KeyCombination, bool) {
	parts := strings.Split(keyStr, "+")
	key, exists := keyMapping[parts[len(parts)-1]]
	if !exists {
		return KeyCombination{}, false
	}

	combination := KeyCombination{Key: key}
	for _, modifier := range parts[:len(parts)-1] {
		switch strings.ToLower(modifier) {
		case "shift":
			combination.Shift = true
		case "ctrl":
			combination.Ctrl = true
		case "alt":
			combination.Alt = true
		default:
			return KeyCombination{}, false
		}
	}
	return combination, true
}

// pressed reports whether the key went down this frame with exactly the
// combination's modifiers held
func (c KeyCombination) pressed() bool {
	return inpututil.IsKeyJustPressed(c.Key) && modifiersMatch(c.Shift, c.Ctrl, c.Alt)
}

// CheckAction checks if any keybinding for the given action is pressed
func (km *KeybindingManager) CheckAction(action string) bool {
	for _, combination := range km.bindings[action] {
		if combination.pressed() {
			return true
		}
	}
	return false
}

// ExecuteAction dispatches the command bound to action if one of its keys
// was just pressed
func (km *KeybindingManager) ExecuteAction(action string, inputActions InputActions) bool {
	if !km.CheckAction(action) {
		return false
	}

	cmd, ok := commandForAction(action)
	if !ok {
		return false
	}
	inputActions.Dispatch(cmd)
	return true
}

// ExecuteExternal dispatches every external command whose key was just
// pressed and reports whether any was
func (km *KeybindingManager) ExecuteExternal(inputActions InputActions) bool {
	executed := false
	for _, binding := range km.external {
		for _, combination := range binding.keys {
			if combination.pressed() {
				inputActions.Dispatch(binding.cmd)
				executed = true
				break
			}
		}
	}
	return executed
}

// Actions returns the bound action names in a stable order
func (km *KeybindingManager) Actions() []string {
	actions := make([]string, 0, len(km.bindings))
	for _, def := range actionDefinitions {
		if len(km.bindings[def.Name]) > 0 {
			actions = append(actions, def.Name)
		}
	}
	return actions
}
