package main

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/shelf/pkg/shelf/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage shelf configuration settings.

Configuration is loaded from:
  1. $XDG_CONFIG_HOME/shelf/config.yaml (if set)
  2. ~/.config/shelf/config.yaml

Environment variables can override config file settings using the SHELF_ prefix:
  SHELF_OPLOG_BACKEND=sqlite
  SHELF_ORGANIZE_PARALLEL=4
  SHELF_TRASH_DIR=/tmp/shelf-trash`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after defaults, file and environment.`,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long: `Open the configuration file in your default editor.

The editor is determined by:
  1. $VISUAL environment variable
  2. $EDITOR environment variable
  3. Falls back to 'vi'

If the config file doesn't exist, a default one will be created first.`,
	RunE: runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// effectiveConfig is the shape printed by config show.
type effectiveConfig struct {
	Destinations map[string]string `yaml:"destinations"`
	Organize     struct {
		Mode          string  `yaml:"mode"`
		MinConfidence float64 `yaml:"min_confidence"`
		Trash         bool    `yaml:"trash"`
		Parallel      int     `yaml:"parallel"`
		StopOnError   bool    `yaml:"stop_on_error"`
		Recursive     bool    `yaml:"recursive"`
	} `yaml:"organize"`
	Oplog struct {
		Backend string `yaml:"backend"`
		Path    string `yaml:"path"`
	} `yaml:"oplog"`
	TrashDir string   `yaml:"trash_dir"`
	Exclude  []string `yaml:"exclude"`
	Rules    []string `yaml:"rules"`
}

func newEffectiveConfig(cfg *config.Config) (effectiveConfig, error) {
	var out effectiveConfig
	out.Destinations = cfg.Aliases()
	out.Organize.Mode = cfg.Organize.Mode
	out.Organize.MinConfidence = cfg.Organize.MinConfidence
	out.Organize.Trash = cfg.Organize.Trash
	out.Organize.Parallel = cfg.Organize.Parallel
	out.Organize.StopOnError = cfg.Organize.StopOnError
	out.Organize.Recursive = cfg.Organize.Recursive

	opts := cfg.OplogOptions()
	out.Oplog.Backend = string(opts.Backend)
	out.Oplog.Path = opts.Path
	out.TrashDir = cfg.TrashDir()
	out.Exclude = cfg.Exclude

	set, err := cfg.RuleSet()
	if err != nil {
		return out, err
	}
	for _, r := range set.Rules() {
		out.Rules = append(out.Rules, fmt.Sprintf("%s (priority %d)", r.Name, r.Priority))
	}
	return out, nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	eff, err := newEffectiveConfig(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	path := cfgFile
	if path == "" {
		path, _ = config.ConfigPath()
	}
	fmt.Fprintf(out, "# Config file: %s\n", path)

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(eff); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}

	var overrides []string
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "SHELF_") {
			overrides = append(overrides, kv)
		}
	}
	sort.Strings(overrides)
	fmt.Fprintln(out, "\n# Environment overrides:")
	if len(overrides) == 0 {
		fmt.Fprintln(out, "#   (none)")
	}
	for _, kv := range overrides {
		fmt.Fprintf(out, "#   %s\n", kv)
	}
	return nil
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	configPath, err := config.WriteDefault()
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}

	printVerbose("Opening %s with %s", configPath, editor)

	editorCmd := exec.Command(editor, configPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor command failed: %w", err)
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(configPath); err == nil {
		printInfo(cmd, "Config file already exists: %s", configPath)
		printInfo(cmd, "Use 'shelf config edit' to modify it.")
		return nil
	}

	if _, err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	printInfo(cmd, "Created default config file: %s", configPath)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	if cfgFile != "" {
		fmt.Fprintln(cmd.OutOrStdout(), cfgFile)
		return nil
	}
	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), configPath)
	return nil
}
