package status

import (
	"flag"
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// Config defines the status reporter options.
type Config struct {
	// MQTTBrokerURL specifies the MQTT broker, empty disables reporting.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string
	// ID identifies this MCU in topics.
	ID string
}

var defaultConfig Config

func init() {
	if val := os.Getenv("HOSTMCU_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	defaultConfig.ID = MachineID()
}

// MachineID retrieves the unique ID identifying the machine, or
// "hostmcu" if it's not available.
func MachineID() string {
	id, err := machineid.ID()
	if err != nil {
		glog.V(1).Infof("machine id: %v", err)
		return "hostmcu"
	}
	return id
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL for status reports")
	flag.StringVar(&defaultConfig.ID, "id", defaultConfig.ID, "MCU ID used in status topics")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewReporter creates the reporter, nil when reporting is disabled.
func (c *Config) NewReporter() (*Reporter, error) {
	if c.MQTTBrokerURL == "" {
		return nil, nil
	}
	return NewReporterFromURL(c.MQTTBrokerURL, c.ID)
}
