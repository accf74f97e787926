package main

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// EnvVar is one environment variable added to an external command
type EnvVar struct {
	Name  string `json:"name" toml:"name"`
	Value string `json:"value" toml:"value"`
}

// ExternalCommandConfig binds keys to a program run on the current image.
// In Args, ${img} expands to the image file (the archive for archive
// entries) and ${folder} to the folder containing it.
type ExternalCommandConfig struct {
	Input   []string `json:"input" toml:"input"`
	Program string   `json:"program" toml:"program"`
	Args    []string `json:"args" toml:"args"`
	Envs    []EnvVar `json:"envs" toml:"envs"`
}

// expandCommandArgs substitutes the image placeholders in args
func expandCommandArgs(args []string, src ImagePath) []string {
	img := src.Path
	if src.ArchivePath != "" {
		img = src.ArchivePath
	}
	replacer := strings.NewReplacer("${img}", img, "${folder}", filepath.Dir(img))

	expanded := make([]string, len(args))
	for i, arg := range args {
		expanded[i] = replacer.Replace(arg)
	}
	return expanded
}

// buildExternalCmd prepares cfg for src. The program inherits the
// environment plus cfg.Envs.
func buildExternalCmd(cfg ExternalCommandConfig, src ImagePath) *exec.Cmd {
	cmd := exec.Command(cfg.Program, expandCommandArgs(cfg.Args, src)...)
	if len(cfg.Envs) > 0 {
		cmd.Env = os.Environ()
		for _, env := range cfg.Envs {
			cmd.Env = append(cmd.Env, env.Name+"="+env.Value)
		}
	}
	return cmd
}

// RunExternalCommand starts a configured program on the current image and
// does not wait for it
type RunExternalCommand struct {
	Config ExternalCommandConfig
}

func (c RunExternalCommand) Name() string {
	return "command " + filepath.Base(c.Config.Program)
}

func (c RunExternalCommand) Execute(app *App) error {
	src, ok := app.CurrentSource()
	if !ok {
		return ErrNotFound
	}

	cmd := buildExternalCmd(c.Config, src)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", c.Config.Program, err)
	}
	debugLog("Started %s (pid %d) for %s", c.Config.Program, cmd.Process.Pid, src.Path)
	app.ShowOverlayMessage("Started " + filepath.Base(c.Config.Program))

	go func() {
		if err := cmd.Wait(); err != nil {
			log.Printf("Warning: %s: %v", c.Config.Program, err)
		}
	}()
	return nil
}
