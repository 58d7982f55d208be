package mcu

import (
	"github.com/robotalks/hostmcu/pkg/clock"
	"github.com/robotalks/hostmcu/pkg/console"
	"github.com/robotalks/hostmcu/pkg/i2c"
	"github.com/robotalks/hostmcu/pkg/watchdog"
)

// Config collects the options of all runtime parts.
type Config struct {
	Console  *console.Config
	I2C      *i2c.Config
	Watchdog *watchdog.Config
	// Source overrides the monotonic clock source.
	Source clock.Source
}

// SetupFlags sets command line flags of all runtime parts.
func SetupFlags() {
	console.SetupFlags()
	i2c.SetupFlags()
	watchdog.SetupFlags()
}

// DefaultConfig returns the config built from command line flags.
func DefaultConfig() Config {
	return Config{
		Console:  console.Default(),
		I2C:      i2c.Default(),
		Watchdog: watchdog.Default(),
	}
}
