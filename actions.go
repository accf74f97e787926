package main

// ActionDefinition defines an action with its default keybindings, mouse bindings, and description
type ActionDefinition struct {
	Name         string
	Keys         []string
	MouseActions []string
	Description  string
}

// actionDefinitions contains all action definitions with default keybindings, mouse bindings, and descriptions
var actionDefinitions = []ActionDefinition{
	{"exit", []string{"Escape", "KeyQ"}, []string{}, "Quit application"},
	{"help", []string{"Shift+Slash"}, []string{"Alt+RightClick"}, "Show/hide help"},
	{"info", []string{"KeyI"}, []string{}, "Show/hide info bar and position slider"},
	{"next", []string{"ArrowRight", "KeyN"}, []string{"LeftClick", "WheelDown"}, "Next image"},
	{"previous", []string{"ArrowLeft", "Backspace", "KeyP"}, []string{"RightClick", "WheelUp"}, "Previous image"},
	{"jump_first", []string{"Home", "Shift+Comma"}, []string{}, "Jump to first image"},
	{"jump_last", []string{"End", "Shift+Period"}, []string{}, "Jump to last image"},
	{"page_input", []string{"KeyG"}, []string{}, "Go to image (enter number)"},
	{"toggle_playback", []string{"Space", "KeyS"}, []string{"MiddleClick"}, "Start/stop playback"},
	{"reload", []string{"KeyR"}, []string{}, "Reload current image"},
	{"rescan", []string{"F5", "Shift+KeyR"}, []string{}, "Rescan folder"},
	{"cycle_sort", []string{"Shift+KeyS"}, []string{"Alt+MiddleClick"}, "Cycle sort method (Natural/Simple/Entry)"},
	{"fullscreen", []string{"Enter", "KeyF"}, []string{"Ctrl+LeftClick"}, "Toggle fullscreen"},
	{"zoom_fit_best", []string{"KeyW"}, []string{"Alt+LeftClick"}, "Fit image to window without enlarging"},
	{"zoom_fit_stretch", []string{"Shift+KeyW"}, []string{}, "Fit image to window, enlarging small images"},
	{"zoom_original", []string{"Key0"}, []string{"Shift+MiddleClick"}, "Show image at original size"},
	{"toggle_theme", []string{"KeyT"}, []string{}, "Switch between dark and light background"},
}

// commandForAction maps an action name to the command it triggers
func commandForAction(action string) (Command, bool) {
	switch action {
	case "exit":
		return ExitCommand{}, true
	case "help":
		return ToggleHelpCommand{}, true
	case "info":
		return ToggleInfoCommand{}, true
	case "next":
		return NextCommand{}, true
	case "previous":
		return PrevCommand{}, true
	case "jump_first":
		return JumpFirstCommand{}, true
	case "jump_last":
		return JumpLastCommand{}, true
	case "page_input":
		return PageInputCommand{}, true
	case "toggle_playback":
		return TogglePlaybackCommand{}, true
	case "reload":
		return ReloadCommand{}, true
	case "rescan":
		return RescanCommand{}, true
	case "cycle_sort":
		return CycleSortCommand{}, true
	case "fullscreen":
		return FullscreenCommand{}, true
	case "zoom_fit_best":
		return ZoomCommand{Mode: ZoomFitBest}, true
	case "zoom_fit_stretch":
		return ZoomCommand{Mode: ZoomFitStretch}, true
	case "zoom_original":
		return ZoomCommand{Mode: ZoomOriginal}, true
	case "toggle_theme":
		return ToggleThemeCommand{}, true
	default:
		return nil, false
	}
}

// GetActionDescriptions returns a map of action names to their descriptions
func GetActionDescriptions() map[string]string {
	descriptions := make(map[string]string)
	for _, action := range actionDefinitions {
		descriptions[action.Name] = action.Description
	}
	return descriptions
}

// GetDefaultKeybindings returns a map of action names to their default keybindings
func GetDefaultKeybindings() map[string][]string {
	keybindings := make(map[string][]string)
	for _, action := range actionDefinitions {
		keybindings[action.Name] = append([]string(nil), action.Keys...)
	}
	return keybindings
}

// GetDefaultMousebindings returns a map of action names to their default mouse bindings
func GetDefaultMousebindings() map[string][]string {
	mousebindings := make(map[string][]string)
	for _, action := range actionDefinitions {
		mousebindings[action.Name] = append([]string(nil), action.MouseActions...)
	}
	return mousebindings
}
