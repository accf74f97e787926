package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
	"github.com/hajimehoshi/ebiten/v2"
)

// Window size constants
const (
	defaultWidth  = 800
	defaultHeight = 600
	minWidth      = 400
	minHeight     = 300
)

// Sort method constants
const (
	SortNatural    = 0 // Natural sort order (e.g., file1, file2, file10)
	SortSimple     = 1 // Simple string sort (lexicographical)
	SortEntryOrder = 2 // Maintain original order (no sort)
)

// Cache and playback defaults
const (
	defaultMemoryBudget     = "512 MiB"
	minMemoryBudget         = 1 << 20
	defaultPrefetchBack     = 2
	defaultPrefetchForward  = 4
	maxPrefetchRadius       = 16
	maxWorkers              = 64
	defaultPlaybackInterval = 4 * time.Second
	minPlaybackInterval     = 100 * time.Millisecond
	defaultMaxWait          = 2 * time.Second
	maxMaxWait              = time.Minute
	defaultTextureCacheSize = 8
)

// Duration is a time.Duration written as "2s" or "1m30s" in config files
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// validateKeybindings checks that every binding parses and that no key
// combination is bound to two actions
func validateKeybindings(keybindings map[string][]string) error {
	keyMapping := getKeyMapping()
	bound := make(map[KeyCombination]string)

	for action, keys := range keybindings {
		for _, keyStr := range keys {
			combination, ok := parseKeyString(keyMapping, keyStr)
			if !ok {
				return fmt.Errorf("invalid key '%s' for action '%s'", keyStr, action)
			}
			if existing, exists := bound[combination]; exists && existing != action {
				return fmt.Errorf("key conflict: '%s' is bound to both '%s' and '%s'", keyStr, existing, action)
			}
			bound[combination] = action
		}
	}

	return nil
}

// ConfigLoadResult contains the result of loading configuration
type ConfigLoadResult struct {
	Config   Config
	HasError bool
	Warnings []string
	Status   string // "OK", "Default", "Warning", "Error"
}

type Config struct {
	WindowWidth      int                 `json:"window_width" toml:"window_width"`
	WindowHeight     int                 `json:"window_height" toml:"window_height"`
	SortMethod       int                 `json:"sort_method" toml:"sort_method"`
	CaseSensitive    bool                `json:"case_sensitive" toml:"case_sensitive"`
	MemoryBudget     string              `json:"memory_budget" toml:"memory_budget"`
	PrefetchBack     int                 `json:"prefetch_back" toml:"prefetch_back"`
	PrefetchForward  int                 `json:"prefetch_forward" toml:"prefetch_forward"`
	Workers          int                 `json:"workers" toml:"workers"`
	PlaybackInterval Duration            `json:"playback_interval" toml:"playback_interval"`
	MaxWait          Duration            `json:"max_wait" toml:"max_wait"`
	Wrap             bool                `json:"wrap" toml:"wrap"`
	WatchDirectory   bool                `json:"watch_directory" toml:"watch_directory"`
	DisplayedFolders int                 `json:"displayed_folders" toml:"displayed_folders"`
	TextureCacheSize int                 `json:"texture_cache_size" toml:"texture_cache_size"`
	HelpFontSize     float64             `json:"help_font_size" toml:"help_font_size"`
	Fullscreen       bool                `json:"fullscreen" toml:"fullscreen"`
	ZoomMode         ZoomMode            `json:"zoom_mode" toml:"zoom_mode"`
	Theme            Theme               `json:"theme" toml:"theme"`
	Keybindings      map[string][]string `json:"keybindings" toml:"keybindings"`
	Mousebindings    map[string][]string `json:"mousebindings" toml:"mousebindings"`
	MouseSettings    MouseSettings       `json:"mouse_settings" toml:"mouse_settings"`

	// Commands run external programs on the current image
	Commands []ExternalCommandConfig `json:"commands" toml:"commands"`

	// MemoryBudgetBytes is MemoryBudget parsed during validation
	MemoryBudgetBytes int64 `json:"-" toml:"-"`
}

func defaultConfig() Config {
	return Config{
		WindowWidth:      defaultWidth,
		WindowHeight:     defaultHeight,
		SortMethod:       SortNatural,
		CaseSensitive:    false,
		MemoryBudget:     defaultMemoryBudget,
		PrefetchBack:     defaultPrefetchBack,
		PrefetchForward:  defaultPrefetchForward,
		Workers:          0, // one per CPU
		PlaybackInterval: Duration{defaultPlaybackInterval},
		MaxWait:          Duration{defaultMaxWait},
		Wrap:             true,
		WatchDirectory:   true,
		DisplayedFolders: 1,
		TextureCacheSize: defaultTextureCacheSize,
		HelpFontSize:     24.0,
		Fullscreen:       false,
		ZoomMode:         ZoomFitBest,
		Theme:            ThemeDark,
		Keybindings:      GetDefaultKeybindings(),
		Mousebindings:    GetDefaultMousebindings(),
		MouseSettings:    GetDefaultMouseSettings(),
	}
}

func getConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "nvplay.json"
	}
	return filepath.Join(homeDir, ".nvplay.json")
}

// loadConfigFromPath reads a JSON config, or a TOML one when the file name
// ends in .toml. A missing file yields the defaults.
func loadConfigFromPath(configPath string) ConfigLoadResult {
	config := defaultConfig()

	result := ConfigLoadResult{
		Config:   config,
		HasError: false,
		Warnings: []string{},
		Status:   "OK",
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		// Config file not found is not an error - use defaults
		result.Status = "Default"
		result.Config = validateConfig(config, &result)
		return result
	}

	if strings.EqualFold(filepath.Ext(configPath), ".toml") {
		md, err := toml.Decode(string(data), &config)
		if err != nil {
			log.Printf("Warning: Invalid config file %s, using defaults: %v", configPath, err)
			result.HasError = true
			result.Status = "Error"
			result.Warnings = append(result.Warnings, fmt.Sprintf("Invalid config file: %v", err))
			result.Config = validateConfig(defaultConfig(), &result)
			return result
		}
		for _, key := range md.Undecoded() {
			result.Warnings = append(result.Warnings, fmt.Sprintf("Unknown config key: %s", key.String()))
		}
	} else if err := json.Unmarshal(data, &config); err != nil {
		// Invalid config file - log warning and use defaults
		log.Printf("Warning: Invalid config file %s, using defaults: %v", configPath, err)
		result.HasError = true
		result.Status = "Error"
		result.Warnings = append(result.Warnings, fmt.Sprintf("Invalid config file: %v", err))
		result.Config = validateConfig(defaultConfig(), &result)
		return result
	}

	result.Config = validateConfig(config, &result)
	if len(result.Warnings) > 0 && result.Status == "OK" {
		result.Status = "Warning"
	}
	return result
}

// validateConfig clamps out-of-range values back to sane ones
func validateConfig(config Config, result *ConfigLoadResult) Config {
	// Validate minimum size
	if config.WindowWidth < minWidth {
		config.WindowWidth = defaultWidth
	}
	if config.WindowHeight < minHeight {
		config.WindowHeight = defaultHeight
	}

	// Validate sort method
	if config.SortMethod < SortNatural || config.SortMethod > SortEntryOrder {
		config.SortMethod = SortNatural
	}

	// Validate memory budget (human readable, minimum 1 MiB)
	budget, err := humanize.ParseBytes(config.MemoryBudget)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("Invalid memory budget %q: %v", config.MemoryBudget, err))
		config.MemoryBudget = defaultMemoryBudget
		budget, _ = humanize.ParseBytes(defaultMemoryBudget)
	}
	if budget < minMemoryBudget {
		budget = minMemoryBudget
	}
	config.MemoryBudgetBytes = int64(budget)

	// Validate prefetch radius (minimum 0, maximum 16)
	config.PrefetchBack = clampInt(config.PrefetchBack, 0, maxPrefetchRadius)
	config.PrefetchForward = clampInt(config.PrefetchForward, 0, maxPrefetchRadius)

	// Validate worker count (0 means one per CPU)
	config.Workers = clampInt(config.Workers, 0, maxWorkers)

	// Validate playback timing
	if config.PlaybackInterval.Duration < minPlaybackInterval {
		config.PlaybackInterval.Duration = defaultPlaybackInterval
	}
	if config.MaxWait.Duration < 0 {
		config.MaxWait.Duration = defaultMaxWait
	} else if config.MaxWait.Duration > maxMaxWait {
		config.MaxWait.Duration = maxMaxWait
	}

	config.DisplayedFolders = clampInt(config.DisplayedFolders, 0, 8)

	// Validate texture cache size (minimum 1, maximum 64)
	if config.TextureCacheSize < 1 {
		config.TextureCacheSize = defaultTextureCacheSize
	} else if config.TextureCacheSize > 64 {
		config.TextureCacheSize = 64
	}

	// Validate help font size
	if config.HelpFontSize <= 12.0 {
		config.HelpFontSize = 24.0
	}

	// Validate keybindings - ensure defaults exist for missing actions
	if config.Keybindings == nil {
		config.Keybindings = GetDefaultKeybindings()
	} else {
		// Fill in missing keybindings with defaults
		defaults := GetDefaultKeybindings()
		for action, defaultKeys := range defaults {
			if _, exists := config.Keybindings[action]; !exists {
				config.Keybindings[action] = defaultKeys
			}
		}

		// Validate keybindings and resolve conflicts
		if err := validateKeybindings(config.Keybindings); err != nil {
			log.Printf("Warning: Invalid keybindings detected, using defaults: %v", err)
			config.Keybindings = GetDefaultKeybindings()
			result.Status = "Warning"
			result.Warnings = append(result.Warnings, fmt.Sprintf("Keybinding errors: %v", err))
		}
	}

	if _, ok := zoomModeNames[config.ZoomMode]; !ok {
		config.ZoomMode = ZoomFitBest
	}
	if config.Theme != ThemeLight {
		config.Theme = ThemeDark
	}

	config.Commands = validateCommands(config, result)

	// Validate mouse settings
	if config.MouseSettings.WheelSensitivity <= 0 {
		config.MouseSettings.WheelSensitivity = 1.0
	}
	if config.MouseSettings.DoubleClickTime < 100 || config.MouseSettings.DoubleClickTime > 1000 {
		config.MouseSettings.DoubleClickTime = 300
	}

	// Validate mouse bindings the same way as keybindings
	if config.Mousebindings == nil {
		config.Mousebindings = GetDefaultMousebindings()
	} else {
		for action, defaultBindings := range GetDefaultMousebindings() {
			if _, exists := config.Mousebindings[action]; !exists {
				config.Mousebindings[action] = defaultBindings
			}
		}
		if err := validateMousebindings(config.Mousebindings); err != nil {
			log.Printf("Warning: Invalid mouse bindings detected, using defaults: %v", err)
			config.Mousebindings = GetDefaultMousebindings()
			result.Status = "Warning"
			result.Warnings = append(result.Warnings, fmt.Sprintf("Mouse binding errors: %v", err))
		}
	}

	return config
}

// validateCommands drops external commands without a program or with key
// strings that do not parse or are already bound
func validateCommands(config Config, result *ConfigLoadResult) []ExternalCommandConfig {
	if len(config.Commands) == 0 {
		return nil
	}

	keyMapping := getKeyMapping()
	bound := make(map[KeyCombination]string)
	for action, keys := range config.Keybindings {
		for _, keyStr := range keys {
			if combination, ok := parseKeyString(keyMapping, keyStr); ok {
				bound[combination] = action
			}
		}
	}

	var valid []ExternalCommandConfig
	for i, cmd := range config.Commands {
		err := checkCommand(cmd, keyMapping, bound)
		if err != nil {
			log.Printf("Warning: Ignoring command %d: %v", i+1, err)
			result.Warnings = append(result.Warnings, fmt.Sprintf("Command %d ignored: %v", i+1, err))
			continue
		}
		for _, keyStr := range cmd.Input {
			combination, _ := parseKeyString(keyMapping, keyStr)
			bound[combination] = "command " + cmd.Program
		}
		valid = append(valid, cmd)
	}
	return valid
}

func checkCommand(cmd ExternalCommandConfig, keyMapping map[string]ebiten.Key, bound map[KeyCombination]string) error {
	if strings.TrimSpace(cmd.Program) == "" {
		return fmt.Errorf("no program")
	}
	if len(cmd.Input) == 0 {
		return fmt.Errorf("%s has no input keys", cmd.Program)
	}
	for _, keyStr := range cmd.Input {
		combination, ok := parseKeyString(keyMapping, keyStr)
		if !ok {
			return fmt.Errorf("invalid key '%s' for %s", keyStr, cmd.Program)
		}
		if owner, exists := bound[combination]; exists {
			return fmt.Errorf("key '%s' for %s is already bound to %s", keyStr, cmd.Program, owner)
		}
	}
	for _, env := range cmd.Envs {
		if env.Name == "" || strings.Contains(env.Name, "=") {
			return fmt.Errorf("invalid environment variable name %q for %s", env.Name, cmd.Program)
		}
	}
	return nil
}

// cacheConfig derives the image cache parameters
func (c Config) cacheConfig() CacheConfig {
	return CacheConfig{
		Budget:        c.MemoryBudgetBytes,
		RadiusBack:    c.PrefetchBack,
		RadiusForward: c.PrefetchForward,
		Wrap:          c.Wrap,
	}
}

// playbackConfig derives the playback parameters
func (c Config) playbackConfig() PlaybackConfig {
	return PlaybackConfig{
		MaxWait: c.MaxWait.Duration,
		Wrap:    c.Wrap,
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
