package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/jamesainslie/shelf/pkg/shelf/destination"
	"github.com/jamesainslie/shelf/pkg/shelf/logging"
	"github.com/jamesainslie/shelf/pkg/shelf/oplog"
	"github.com/jamesainslie/shelf/pkg/shelf/rules"
	"github.com/jamesainslie/shelf/pkg/shelf/trash"
	"github.com/jamesainslie/shelf/pkg/shelf/types"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// OrganizeConfig holds the defaults of the organize command.
type OrganizeConfig struct {
	// Mode is "global" or "local".
	Mode          string  `mapstructure:"mode"`
	MinConfidence float64 `mapstructure:"min_confidence"`

	// Trash sends deletes to the trash instead of removing them.
	Trash       bool `mapstructure:"trash"`
	Parallel    int  `mapstructure:"parallel"`
	StopOnError bool `mapstructure:"stop_on_error"`
	Recursive   bool `mapstructure:"recursive"`
}

// OplogConfig selects the operation log backend.
type OplogConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// TrashConfig locates the trash.
type TrashConfig struct {
	Dir string `mapstructure:"dir"`
}

// Config represents the application configuration.
type Config struct {
	// Rules are merged over the built-in rules by name.
	Rules []rules.Rule `mapstructure:"rules"`

	// Destinations maps alias names to directories.
	Destinations map[string]string `mapstructure:"destinations"`

	Organize OrganizeConfig `mapstructure:"organize"`
	Oplog    OplogConfig    `mapstructure:"oplog"`
	Trash    TrashConfig    `mapstructure:"trash"`
	Exclude  []string       `mapstructure:"exclude"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// Load loads configuration from the default file and environment variables.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/shelf/config.yaml
//   - $HOME/.config/shelf/config.yaml
//
// Environment variables are prefixed with SHELF_ (e.g., SHELF_OPLOG_BACKEND).
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads configuration from path, or from the default locations
// when path is empty.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, "shelf"))
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		v.AddConfigPath(filepath.Join(homeDir, ".config", "shelf"))
	}

	v.SetEnvPrefix("SHELF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, p := range []*string{&cfg.Oplog.Path, &cfg.Trash.Dir, &cfg.Logging.Path} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("destinations", map[string]string{})
	v.SetDefault("organize.mode", DefaultMode)
	v.SetDefault("organize.min_confidence", DefaultMinConfidence)
	v.SetDefault("organize.trash", true)
	v.SetDefault("organize.parallel", DefaultParallel)
	v.SetDefault("organize.stop_on_error", false)
	v.SetDefault("organize.recursive", false)
	v.SetDefault("oplog.backend", DefaultBackend)
	v.SetDefault("oplog.path", "") // Empty means use the backend's default path
	v.SetDefault("trash.dir", "")  // Empty means use the platform trash
	v.SetDefault("exclude", DefaultExclusions)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", map[string]string{
		"rules":    "info",
		"executor": "info",
		"undo":     "info",
		"oplog":    "warn",
		"scanner":  "info",
		"cli":      "info",
	})
}

// Validate checks the configuration. Errors wrap types.ErrValidation.
func (c *Config) Validate() error {
	var errs []error
	for i := range c.Rules {
		if err := c.Rules[i].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("rule %d (%q): %w", i, c.Rules[i].Name, err))
		}
	}

	switch strings.ToLower(c.Organize.Mode) {
	case "", "global", "local":
	default:
		errs = append(errs, fmt.Errorf("%w: organize.mode must be global or local, got %q",
			types.ErrValidation, c.Organize.Mode))
	}
	if c.Organize.MinConfidence < 0 || c.Organize.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("%w: organize.min_confidence must be between 0 and 1",
			types.ErrValidation))
	}
	if c.Organize.Parallel < 0 {
		errs = append(errs, fmt.Errorf("%w: organize.parallel cannot be negative", types.ErrValidation))
	}

	switch oplog.Backend(strings.ToLower(c.Oplog.Backend)) {
	case "", oplog.BackendBadger, oplog.BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("%w: unknown oplog.backend %q", types.ErrValidation, c.Oplog.Backend))
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("%w: logging.level: %w", types.ErrValidation, err))
	}
	if _, err := logging.ParseMaxSize(c.Logging.Rotation.MaxSize); err != nil {
		errs = append(errs, fmt.Errorf("%w: logging.rotation.max_size: %w", types.ErrValidation, err))
	}
	return errors.Join(errs...)
}

// RuleSet builds the rule set from the built-in rules and the configured ones.
func (c *Config) RuleSet() (*rules.RuleSet, error) {
	return rules.NewRuleSet(rules.MergeRules(rules.DefaultRules(), c.Rules)...)
}

// Aliases returns the destination aliases with configured ones overriding
// the defaults.
func (c *Config) Aliases() map[string]string {
	return destination.MergeAliases(destination.DefaultAliases(), c.Destinations)
}

// Mode returns the configured destination mode rooted at root. Relative
// global templates resolve below root as well.
func (c *Config) Mode(root string) destination.Mode {
	if strings.EqualFold(c.Organize.Mode, "local") {
		return destination.LocalMode(root)
	}
	return destination.GlobalModeAt(root)
}

// OplogOptions returns the store options for the configured backend.
func (c *Config) OplogOptions() oplog.Options {
	backend := oplog.Backend(strings.ToLower(c.Oplog.Backend))
	if backend == "" {
		backend = oplog.BackendBadger
	}
	return oplog.Options{Backend: backend, Path: c.Oplog.Path}
}

// TrashDir returns the configured trash directory or the platform default.
func (c *Config) TrashDir() string {
	if c.Trash.Dir != "" {
		return c.Trash.Dir
	}
	return trash.DefaultDir()
}

// LoggingSettings converts the logging section for logging.Init.
func (c *Config) LoggingSettings() (logging.Config, error) {
	maxSize, err := logging.ParseMaxSize(c.Logging.Rotation.MaxSize)
	if err != nil {
		return logging.Config{}, err
	}
	path := c.Logging.Path
	if path == "" {
		path = logging.DefaultLogPath()
	}
	return logging.Config{
		Level: c.Logging.Level,
		Path:  path,
		Rotation: logging.RotationConfig{
			MaxSize:    maxSize,
			MaxAge:     c.Logging.Rotation.MaxAge,
			MaxBackups: c.Logging.Rotation.MaxBackups,
			Daily:      c.Logging.Rotation.Daily,
		},
		Components: c.Logging.Components,
	}, nil
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "shelf"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "shelf"), nil
}

// ConfigPath returns the default config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// WriteDefault writes a default config file if none exists and returns its
// path. An existing file is left untouched.
func WriteDefault() (string, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(defaultTemplate), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}
	return configPath, nil
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/shelf/ for the operation log.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "shelf")
}

// StateDir returns $XDG_STATE_HOME/shelf/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "shelf")
}

const defaultTemplate = `# Shelf File Organizer Configuration

# Destination aliases usable in rule templates as {name}
destinations:
  # archive: ~/Archive
  # projects: ~/Projects

# Custom rules. A rule with the name of a built-in rule replaces it.
rules:
  # - name: Invoices
  #   priority: 120
  #   match:
  #     extension: [pdf]
  #     filename: ["*invoice*"]
  #   action:
  #     move_to: "{documents}/Invoices/{year}"

organize:
  # global places files under your home folders, local organizes in place
  mode: global
  # Hide suggestions below this confidence (0-1)
  min_confidence: 0
  # Send deletes to the trash so they can be undone
  trash: true
  # Number of operations run at once, 0 sizes it to the machine
  parallel: 1
  stop_on_error: false
  recursive: false

# Operation log used by history and undo
oplog:
  # badger or sqlite
  backend: badger
  # Empty means use default: $XDG_DATA_HOME/shelf/oplog
  path: ""

trash:
  # Empty means use the platform trash
  dir: ""

# Names and paths skipped when scanning
exclude:
  - .git
  - node_modules
  - .DS_Store
  - "*.part"
  - "*.crdownload"
  - "*.tmp"

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: info
  # Log file path (empty means use default: $XDG_STATE_HOME/shelf/shelf.log)
  path: ""
  rotation:
    max_size: 10MB
    max_age: 30       # days
    max_backups: 5
    daily: true
  # Per-component log levels
  components:
    rules: info
    executor: info
    undo: info
    oplog: warn
    scanner: info
    cli: info
`
