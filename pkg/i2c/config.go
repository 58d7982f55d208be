package i2c

import (
	"flag"
)

// Config defines the I2C engine options.
type Config struct {
	BlockingJoin bool
	Synchronous  bool
}

var defaultConfig Config

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.BoolVar(&defaultConfig.BlockingJoin, "i2c-blocking-join", defaultConfig.BlockingJoin,
		"Wait for the transfer inside the completion timer instead of polling.")
	flag.BoolVar(&defaultConfig.Synchronous, "i2c-sync", defaultConfig.Synchronous,
		"Run i2c commands as blocking transfers on the scheduler goroutine.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// JoinMode returns the join mode selected by the config.
func (c *Config) JoinMode() JoinMode {
	if c.BlockingJoin {
		return JoinBlock
	}
	return JoinPoll
}
