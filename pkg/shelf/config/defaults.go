// Package config provides configuration management for shelf.
package config

// Default configuration values for shelf.
const (
	// DefaultMode places files under the global destination tree.
	DefaultMode = "global"

	// DefaultMinConfidence hides nothing.
	DefaultMinConfidence = 0.0

	// DefaultParallel runs one operation at a time.
	DefaultParallel = 1

	// DefaultBackend is the operation log backend.
	DefaultBackend = "badger"

	// ConfigFileName is the name of the config file inside ConfigDir.
	ConfigFileName = "config.yaml"
)

// DefaultExclusions contains names skipped when scanning.
var DefaultExclusions = []string{
	".git",
	"node_modules",
	".DS_Store",
	"*.part",
	"*.crdownload",
	"*.tmp",
}
