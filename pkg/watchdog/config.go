package watchdog

import (
	"flag"
)

// Config defines the watchdog options.
type Config struct {
	Enabled bool
	Path    string
}

var defaultConfig = Config{
	Path: "/dev/watchdog",
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.BoolVar(&defaultConfig.Enabled, "watchdog", defaultConfig.Enabled, "Arm the host watchdog.")
	flag.StringVar(&defaultConfig.Path, "watchdog-path", defaultConfig.Path, "Watchdog device.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}
