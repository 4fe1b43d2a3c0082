package ppsgen

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"gitlab.com/ppsgen/ppsgen/timing"
)

type Config struct {
	// Line is the name of the GPIO output to pulse, as known to the
	// host's GPIO registry (e.g.: "GPIO18").
	Line string `yaml:"line"`
	// Delay is the time between the assert and deassert edges, in
	// nanoseconds. At most timing.MaxDelay.
	Delay      int64 `yaml:"delay"`
	DBusServer bool  `yaml:"dbusserver"`
	// RTPriority is the SCHED_FIFO priority used while emitting a pulse.
	// Zero disables the elevation.
	RTPriority int `yaml:"rtpriority"`
}

func DefaultConfig() *Config {
	return &Config{
		Line:       "GPIO18",
		Delay:      timing.DefaultDelay,
		DBusServer: true,
		RTPriority: 50,
	}
}

// Load configuration from a YAML file. Only keys present in the file
// overwrite previous values.
func (config *Config) LoadFromYamlFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading configuration file: %v", err)
	}

	if err = yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("error parsing configuration file: %v", err)
	}

	return nil
}

// Load configuration from environment variables (e.g.: PPSGEN_LINE).
// Unset variables leave previous values untouched.
func (config *Config) LoadFromEnv() error {
	if line, ok := os.LookupEnv("PPSGEN_LINE"); ok {
		config.Line = line
	}
	if delay, ok := os.LookupEnv("PPSGEN_DELAY"); ok {
		value, err := strconv.ParseInt(delay, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid PPSGEN_DELAY: %v", err)
		}
		config.Delay = value
	}
	if prio, ok := os.LookupEnv("PPSGEN_RTPRIORITY"); ok {
		value, err := strconv.Atoi(prio)
		if err != nil {
			return fmt.Errorf("invalid PPSGEN_RTPRIORITY: %v", err)
		}
		config.RTPriority = value
	}
	return nil
}

// Validate checks the configuration before any hardware is touched.
func (config *Config) Validate() error {
	if config.Line == "" {
		return fmt.Errorf("no GPIO line configured")
	}
	if config.Delay < 0 || config.Delay > timing.MaxDelay {
		return fmt.Errorf("delay value should be not greater than %d", timing.MaxDelay)
	}
	return nil
}

// ReadConfig builds the configuration from defaults, the XDG config file
// (if present), and the environment, in that order.
func ReadConfig() (*Config, error) {
	config := DefaultConfig()

	filePath, err := xdg.ConfigFile("ppsgen/config.yaml")
	if err != nil {
		return nil, fmt.Errorf("error determining config file path: %v", err)
	}

	if _, err := os.Stat(filePath); err == nil {
		log.Println("Using config file:", filePath)
		if err := config.LoadFromYamlFile(filePath); err != nil {
			return nil, err
		}
	} else {
		log.Println("No config file found, using defaults.")
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, err
	}

	return config, nil
}
