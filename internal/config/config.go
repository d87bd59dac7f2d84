// Package config defines the daemon's configuration file and its defaults.
package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/msageha/ookd/internal/driver"
	"github.com/msageha/ookd/internal/yaml"
)

// Supported driver kinds.
const (
	DriverSim  = "sim"
	DriverGPIO = "gpio"
	DriverNano = "nano"
)

type Config struct {
	Listen  ListenConfig  `yaml:"listen" json:"listen"`
	TX      TXConfig      `yaml:"tx" json:"tx"`
	Driver  DriverConfig  `yaml:"driver" json:"driver"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Daemon  DaemonConfig  `yaml:"daemon" json:"daemon"`
}

type ListenConfig struct {
	// Addr is the TCP listen address; empty disables TCP.
	Addr string `yaml:"addr" json:"addr"`
	// Socket is the unix socket path the CLI talks to; empty disables it.
	Socket string `yaml:"socket" json:"socket"`
}

type TXConfig struct {
	// Channel is the BCM GPIO number the transmitter data pin hangs off.
	Channel int `yaml:"channel" json:"channel"`
	// Isolate pins the process to an isolated CPU when the kernel
	// provides one (isolcpus boot parameter).
	Isolate bool `yaml:"isolate" json:"isolate"`
}

type DriverConfig struct {
	Kind string `yaml:"kind" json:"kind"`
	// Device and Baud configure the nano serial link.
	Device string `yaml:"device" json:"device"`
	Baud   int    `yaml:"baud" json:"baud"`
}

type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	Dir   string `yaml:"dir" json:"dir"`
}

type DaemonConfig struct {
	LockFile           string `yaml:"lock_file" json:"lock_file"`
	ShutdownTimeoutSec int    `yaml:"shutdown_timeout_sec" json:"shutdown_timeout_sec"`
}

func Default() Config {
	return Config{
		Listen: ListenConfig{
			Addr:   ":8087",
			Socket: "/tmp/ookd.sock",
		},
		TX: TXConfig{
			Channel: 18,
			Isolate: true,
		},
		Driver: DriverConfig{
			Kind:   DriverSim,
			Device: "/dev/ttyUSB0",
			Baud:   57600,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "logs",
		},
		Daemon: DaemonConfig{
			LockFile:           "/tmp/ookd.lock",
			ShutdownTimeoutSec: 10,
		},
	}
}

// Load reads path over the defaults, so a partial file only has to name
// what it changes.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yamlv3.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Listen.Addr == "" && c.Listen.Socket == "" {
		return fmt.Errorf("config: no listeners: set listen.addr or listen.socket")
	}
	if c.TX.Channel < driver.MinChannel || c.TX.Channel > driver.MaxChannel {
		return fmt.Errorf("config: tx.channel %d not in [%d,%d]", c.TX.Channel, driver.MinChannel, driver.MaxChannel)
	}
	switch c.Driver.Kind {
	case DriverSim, DriverGPIO:
	case DriverNano:
		if c.Driver.Device == "" {
			return fmt.Errorf("config: driver.device required for the nano driver")
		}
		if c.Driver.Baud <= 0 {
			return fmt.Errorf("config: driver.baud must be positive, got %d", c.Driver.Baud)
		}
	default:
		return fmt.Errorf("config: unknown driver.kind %q", c.Driver.Kind)
	}
	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("config: logging.level: %w", err)
	}
	if c.Logging.Dir == "" {
		return fmt.Errorf("config: logging.dir must be set")
	}
	if c.Daemon.ShutdownTimeoutSec <= 0 {
		return fmt.Errorf("config: daemon.shutdown_timeout_sec must be positive")
	}
	return nil
}

// WriteFile persists the config atomically, keeping a .bak of the previous
// version.
func (c Config) WriteFile(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return yaml.AtomicWrite(path, c)
}
