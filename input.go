package main

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// InputHandler handles all keyboard and mouse input processing
type InputHandler struct {
	inputActions        InputActions
	inputState          InputState
	keybindingManager   *KeybindingManager
	mousebindingManager *MousebindingManager
	screenWidth         int
	screenHeight        int
}

// NewInputHandler creates a new InputHandler
func NewInputHandler(inputActions InputActions, inputState InputState, keybindingManager *KeybindingManager, mousebindingManager *MousebindingManager) *InputHandler {
	return &InputHandler{
		inputActions:        inputActions,
		inputState:          inputState,
		keybindingManager:   keybindingManager,
		mousebindingManager: mousebindingManager,
	}
}

// HandleInput processes all input for the current frame
// Returns true if any input was processed, false otherwise
func (h *InputHandler) HandleInput() bool {
	// Page input mode captures the keyboard until it is confirmed or cancelled
	if h.inputState.IsInPageInputMode() {
		return h.handlePageInputMode()
	}

	inputProcessed := h.handleSliderClick()
	if inputProcessed {
		return true
	}

	for _, action := range h.keybindingManager.Actions() {
		if h.keybindingManager.ExecuteAction(action, h.inputActions) {
			inputProcessed = true
		}
	}
	if h.keybindingManager.ExecuteExternal(h.inputActions) {
		inputProcessed = true
	}
	for _, def := range actionDefinitions {
		if h.mousebindingManager.ExecuteAction(def.Name, h.inputActions) {
			inputProcessed = true
		}
	}

	return inputProcessed
}

// SetScreenSize records the logical screen size from the last layout
func (h *InputHandler) SetScreenSize(width, height int) {
	h.screenWidth = width
	h.screenHeight = height
}

// handleSliderClick jumps to the clicked position when the slider is shown
func (h *InputHandler) handleSliderClick() bool {
	if !h.inputState.IsShowingInfo() || !inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		return false
	}

	x, y := ebiten.CursorPosition()
	if float64(y) < float64(h.screenHeight)-sliderHeight {
		return false
	}

	_, total := h.inputState.Position()
	index, ok := sliderIndexAt(x, h.screenWidth, total)
	if !ok {
		return false
	}
	h.inputActions.Dispatch(JumpToCommand{Index: index})
	return true
}

func (h *InputHandler) handlePageInputMode() bool {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		// Cancel page input
		h.inputActions.ExitPageInputMode()
		return true
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) || inpututil.IsKeyJustPressed(ebiten.KeyNumpadEnter) {
		// Confirm page input
		h.inputActions.ProcessPageInput()
		h.inputActions.ExitPageInputMode()
		return true
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		// Delete last character
		currentBuffer := h.inputState.GetPageInputBuffer()
		if len(currentBuffer) > 0 {
			h.inputActions.UpdatePageInputBuffer(currentBuffer[:len(currentBuffer)-1])
		}
		return true
	}

	// Handle digit input (both regular and numpad)
	var digit string
	if digit = h.checkDigitKeys(ebiten.Key0, ebiten.Key9, '0'); digit == "" {
		digit = h.checkDigitKeys(ebiten.KeyNumpad0, ebiten.KeyNumpad9, '0')
	}
	if digit != "" {
		h.inputActions.UpdatePageInputBuffer(h.inputState.GetPageInputBuffer() + digit)
		return true
	}

	return false
}

func (h *InputHandler) checkDigitKeys(startKey, endKey ebiten.Key, baseChar rune) string {
	for key := startKey; key <= endKey; key++ {
		if inpututil.IsKeyJustPressed(key) {
			return string(baseChar + rune(key-startKey))
		}
	}
	return ""
}
