package console

import (
	"flag"
	"os"

	"github.com/robotalks/hostmcu/pkg/ringbuf"
)

// Config defines the console options.
type Config struct {
	// Path is where the pty slave is exposed.
	Path string
	// Capacity is the size of each ring buffer.
	Capacity int
}

var defaultConfig = Config{
	Path:     "/tmp/klipper_host_mcu",
	Capacity: ringbuf.DefaultCapacity,
}

func init() {
	if val := os.Getenv("HOSTMCU_PATH"); val != "" {
		defaultConfig.Path = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Path, "path", defaultConfig.Path, "Path of the console pty symlink.")
	flag.IntVar(&defaultConfig.Capacity, "console-buffer", defaultConfig.Capacity, "Size of the console ring buffers.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}
