package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name            string
		configJSON      string
		expectedWidth   int
		expectedHeight  int
		expectedSort    int
		expectedBudget  int64
		expectedBack    int
		expectedForward int
		expectedStatus  string
	}{
		{
			name: "Valid config",
			configJSON: `{
				"window_width": 1000,
				"window_height": 800,
				"sort_method": 1,
				"memory_budget": "256 MiB",
				"prefetch_back": 1,
				"prefetch_forward": 3
			}`,
			expectedWidth:   1000,
			expectedHeight:  800,
			expectedSort:    SortSimple,
			expectedBudget:  256 << 20,
			expectedBack:    1,
			expectedForward: 3,
			expectedStatus:  "OK",
		},
		{
			name: "Width too small",
			configJSON: `{
				"window_width": 200,
				"window_height": 600
			}`,
			expectedWidth:   defaultWidth,
			expectedHeight:  600,
			expectedSort:    SortNatural,
			expectedBudget:  512 << 20,
			expectedBack:    defaultPrefetchBack,
			expectedForward: defaultPrefetchForward,
			expectedStatus:  "OK",
		},
		{
			name: "Invalid sort method and radius",
			configJSON: `{
				"sort_method": 7,
				"prefetch_back": -3,
				"prefetch_forward": 100
			}`,
			expectedWidth:   defaultWidth,
			expectedHeight:  defaultHeight,
			expectedSort:    SortNatural,
			expectedBudget:  512 << 20,
			expectedBack:    0,
			expectedForward: maxPrefetchRadius,
			expectedStatus:  "OK",
		},
		{
			name: "Invalid memory budget",
			configJSON: `{
				"memory_budget": "lots"
			}`,
			expectedWidth:   defaultWidth,
			expectedHeight:  defaultHeight,
			expectedSort:    SortNatural,
			expectedBudget:  512 << 20,
			expectedBack:    defaultPrefetchBack,
			expectedForward: defaultPrefetchForward,
			expectedStatus:  "Warning",
		},
		{
			name: "Tiny memory budget",
			configJSON: `{
				"memory_budget": "10 KB"
			}`,
			expectedWidth:   defaultWidth,
			expectedHeight:  defaultHeight,
			expectedSort:    SortNatural,
			expectedBudget:  minMemoryBudget,
			expectedBack:    defaultPrefetchBack,
			expectedForward: defaultPrefetchForward,
			expectedStatus:  "OK",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := loadConfigFromPath(writeConfig(t, "config.json", tt.configJSON))
			config := result.Config

			if config.WindowWidth != tt.expectedWidth {
				t.Errorf("WindowWidth = %d, want %d", config.WindowWidth, tt.expectedWidth)
			}
			if config.WindowHeight != tt.expectedHeight {
				t.Errorf("WindowHeight = %d, want %d", config.WindowHeight, tt.expectedHeight)
			}
			if config.SortMethod != tt.expectedSort {
				t.Errorf("SortMethod = %d, want %d", config.SortMethod, tt.expectedSort)
			}
			if config.MemoryBudgetBytes != tt.expectedBudget {
				t.Errorf("MemoryBudgetBytes = %d, want %d", config.MemoryBudgetBytes, tt.expectedBudget)
			}
			if config.PrefetchBack != tt.expectedBack || config.PrefetchForward != tt.expectedForward {
				t.Errorf("Prefetch radius = (%d, %d), want (%d, %d)",
					config.PrefetchBack, config.PrefetchForward, tt.expectedBack, tt.expectedForward)
			}
			if result.Status != tt.expectedStatus {
				t.Errorf("Status = %s, want %s (warnings: %v)", result.Status, tt.expectedStatus, result.Warnings)
			}
		})
	}
}

func TestConfigDurations(t *testing.T) {
	tests := []struct {
		name             string
		configJSON       string
		expectedInterval time.Duration
		expectedMaxWait  time.Duration
	}{
		{"Parsed", `{"playback_interval": "1500ms", "max_wait": "3s"}`, 1500 * time.Millisecond, 3 * time.Second},
		{"Interval too short", `{"playback_interval": "10ms"}`, defaultPlaybackInterval, defaultMaxWait},
		{"Max wait too long", `{"max_wait": "1h"}`, defaultPlaybackInterval, maxMaxWait},
		{"Zero max wait", `{"max_wait": "0s"}`, defaultPlaybackInterval, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := loadConfigFromPath(writeConfig(t, "config.json", tt.configJSON)).Config
			if config.PlaybackInterval.Duration != tt.expectedInterval {
				t.Errorf("PlaybackInterval = %s, want %s", config.PlaybackInterval.Duration, tt.expectedInterval)
			}
			if config.MaxWait.Duration != tt.expectedMaxWait {
				t.Errorf("MaxWait = %s, want %s", config.MaxWait.Duration, tt.expectedMaxWait)
			}
		})
	}
}

func TestConfigInvalidDuration(t *testing.T) {
	result := loadConfigFromPath(writeConfig(t, "config.json", `{"playback_interval": "soon"}`))
	if result.Status != "Error" || !result.HasError {
		t.Errorf("Status = %s, HasError = %v, want Error", result.Status, result.HasError)
	}
	if result.Config.PlaybackInterval.Duration != defaultPlaybackInterval {
		t.Errorf("PlaybackInterval = %s, want default", result.Config.PlaybackInterval.Duration)
	}
}

func TestConfigTOML(t *testing.T) {
	path := writeConfig(t, "nvplay.toml", `
window_width = 1280
memory_budget = "1 GiB"
playback_interval = "2s"
wrap = false
workers = 3
unknown_setting = 1

[keybindings]
exit = ["KeyX"]

[mouse_settings]
double_click_time = 400
`)

	result := loadConfigFromPath(path)
	config := result.Config

	if config.WindowWidth != 1280 {
		t.Errorf("WindowWidth = %d, want 1280", config.WindowWidth)
	}
	if config.MemoryBudgetBytes != 1<<30 {
		t.Errorf("MemoryBudgetBytes = %d, want %d", config.MemoryBudgetBytes, int64(1<<30))
	}
	if config.PlaybackInterval.Duration != 2*time.Second {
		t.Errorf("PlaybackInterval = %s, want 2s", config.PlaybackInterval.Duration)
	}
	if config.Wrap {
		t.Error("Wrap should be false")
	}
	if config.Workers != 3 {
		t.Errorf("Workers = %d, want 3", config.Workers)
	}
	if !reflect.DeepEqual(config.Keybindings["exit"], []string{"KeyX"}) {
		t.Errorf("exit keybinding = %v, want [KeyX]", config.Keybindings["exit"])
	}
	if !reflect.DeepEqual(config.Keybindings["next"], GetDefaultKeybindings()["next"]) {
		t.Errorf("Missing keybinding not filled from defaults: %v", config.Keybindings["next"])
	}
	if config.MouseSettings.DoubleClickTime != 400 {
		t.Errorf("DoubleClickTime = %d, want 400", config.MouseSettings.DoubleClickTime)
	}
	if result.Status != "Warning" || len(result.Warnings) != 1 {
		t.Errorf("Status = %s, warnings = %v, want one unknown key warning", result.Status, result.Warnings)
	}
}

func TestConfigInvalidFile(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"Broken JSON", "config.json", `{"window_width": `},
		{"Broken TOML", "config.toml", `window_width = = 3`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := loadConfigFromPath(writeConfig(t, tt.file, tt.content))
			if !result.HasError || result.Status != "Error" {
				t.Errorf("HasError = %v, Status = %s, want error", result.HasError, result.Status)
			}
			if result.Config.WindowWidth != defaultWidth {
				t.Errorf("WindowWidth = %d, want default %d", result.Config.WindowWidth, defaultWidth)
			}
		})
	}
}

func TestKeybindingConflict(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"keybindings": {
			"exit": ["KeyN"]
		}
	}`)

	result := loadConfigFromPath(path)
	if result.Status != "Warning" {
		t.Errorf("Status = %s, want Warning", result.Status)
	}
	if !reflect.DeepEqual(result.Config.Keybindings, GetDefaultKeybindings()) {
		t.Error("Conflicting keybindings should fall back to defaults")
	}
}

func TestInvalidMousebinding(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"mousebindings": {
			"next": ["TripleClick"]
		}
	}`)

	result := loadConfigFromPath(path)
	if result.Status != "Warning" {
		t.Errorf("Status = %s, want Warning", result.Status)
	}
	if !reflect.DeepEqual(result.Config.Mousebindings, GetDefaultMousebindings()) {
		t.Error("Invalid mouse bindings should fall back to defaults")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	result := loadConfigFromPath(filepath.Join(t.TempDir(), "nonexistent.json"))
	config := result.Config

	if result.Status != "Default" {
		t.Errorf("Status = %s, want Default", result.Status)
	}
	if config.WindowWidth != defaultWidth {
		t.Errorf("Expected default width %d, got %d", defaultWidth, config.WindowWidth)
	}
	if config.WindowHeight != defaultHeight {
		t.Errorf("Expected default height %d, got %d", defaultHeight, config.WindowHeight)
	}
	if config.MemoryBudgetBytes != 512<<20 {
		t.Errorf("Expected default budget %d, got %d", int64(512<<20), config.MemoryBudgetBytes)
	}
	if !config.Wrap {
		t.Error("Expected wrap to be enabled by default")
	}
	if config.PlaybackInterval.Duration != defaultPlaybackInterval {
		t.Errorf("Expected default interval %s, got %s", defaultPlaybackInterval, config.PlaybackInterval.Duration)
	}

	cc := config.cacheConfig()
	if cc.Budget != config.MemoryBudgetBytes || cc.RadiusBack != defaultPrefetchBack || cc.RadiusForward != defaultPrefetchForward || !cc.Wrap {
		t.Errorf("cacheConfig() = %+v", cc)
	}
	pc := config.playbackConfig()
	if pc.MaxWait != defaultMaxWait || !pc.Wrap {
		t.Errorf("playbackConfig() = %+v", pc)
	}
}

func TestConfigViewModes(t *testing.T) {
	tests := []struct {
		name          string
		file          string
		content       string
		expectedZoom  ZoomMode
		expectedTheme Theme
		wantErr       bool
	}{
		{"Defaults", "config.json", `{}`, ZoomFitBest, ThemeDark, false},
		{"JSON", "config.json", `{"zoom_mode": "original", "theme": "light"}`, ZoomOriginal, ThemeLight, false},
		{"TOML", "config.toml", "zoom_mode = \"fit_stretch\"\ntheme = \"dark\"\n", ZoomFitStretch, ThemeDark, false},
		{"Unknown zoom mode", "config.json", `{"zoom_mode": "huge"}`, ZoomFitBest, ThemeDark, true},
		{"Unknown theme", "config.toml", `theme = "sepia"`, ZoomFitBest, ThemeDark, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := loadConfigFromPath(writeConfig(t, tt.file, tt.content))
			if result.HasError != tt.wantErr {
				t.Errorf("HasError = %v, want %v (warnings %v)", result.HasError, tt.wantErr, result.Warnings)
			}
			if result.Config.ZoomMode != tt.expectedZoom {
				t.Errorf("ZoomMode = %s, want %s", result.Config.ZoomMode, tt.expectedZoom)
			}
			if result.Config.Theme != tt.expectedTheme {
				t.Errorf("Theme = %s, want %s", result.Config.Theme, tt.expectedTheme)
			}
		})
	}
}

func TestConfigCommands(t *testing.T) {
	path := writeConfig(t, "nvplay.toml", `
[[commands]]
input = ["Alt+KeyE"]
program = "gimp"
args = ["${img}"]

[[commands]]
input = ["KeyN"]
program = "taken"

[[commands]]
input = ["Hyper+KeyE"]
program = "badkey"

[[commands]]
input = ["Alt+KeyO"]
program = ""

[[commands]]
input = ["Alt+KeyE"]
program = "duplicate"

[[commands]]
input = ["Ctrl+KeyE"]
program = "exiftool"
envs = [{ name = "LANG", value = "C" }]
`)

	result := loadConfigFromPath(path)
	var programs []string
	for _, cmd := range result.Config.Commands {
		programs = append(programs, cmd.Program)
	}
	if !reflect.DeepEqual(programs, []string{"gimp", "exiftool"}) {
		t.Errorf("Commands = %v, want [gimp exiftool]", programs)
	}
	if result.Status != "Warning" || len(result.Warnings) != 4 {
		t.Errorf("Status = %s, warnings = %v, want four ignored commands", result.Status, result.Warnings)
	}

	gimp := result.Config.Commands[0]
	if !reflect.DeepEqual(gimp.Args, []string{"${img}"}) {
		t.Errorf("gimp args = %v", gimp.Args)
	}
	exiftool := result.Config.Commands[1]
	if !reflect.DeepEqual(exiftool.Envs, []EnvVar{{Name: "LANG", Value: "C"}}) {
		t.Errorf("exiftool envs = %v", exiftool.Envs)
	}
}
