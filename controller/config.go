package controller

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"go.bug.st/serial/enumerator"
)

const (
	// SerialPortAuto selects the first USB serial port
	SerialPortAuto = "auto"
	// SerialPortNone runs against the in-memory board
	SerialPortNone = "None"

	envPrefix = "MOTIONDRIVER_"
)

var ErrNoUSBSerial = errors.New("no USB serial port found")

// Config is read from MOTIONDRIVER_* environment variables
type Config struct {
	SerialPort  string        `env:"SERIAL_PORT" envDefault:"auto"`
	BaudRate    string        `env:"SERIAL_BAUDRATE" envDefault:"115200"`
	Timeout     time.Duration `env:"SERIAL_TIMEOUT" envDefault:"1s"`
	DryRun      bool          `env:"DRY_RUN"`
	LogTraffic  bool          `env:"LOG_TRAFFIC" envDefault:"true"`
	ProfileFile string        `env:"PROFILE"`
}

// ConfigFromEnv parses Config from the environment, applying defaults for unset variables
func ConfigFromEnv() (Config, error) {
	var cfg Config
	err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix})
	if err != nil {
		return Config{}, fmt.Errorf("error parsing config from env: %w", err)
	}
	return cfg, nil
}

// Baud parses the configured baud rate
func (cfg Config) Baud() (int, error) {
	baud, err := strconv.Atoi(cfg.BaudRate)
	if err != nil || baud <= 0 {
		return 0, fmt.Errorf("invalid baud rate %q", cfg.BaudRate)
	}
	return baud, nil
}

// Simulated is true when no real board is used
func (cfg Config) Simulated() bool {
	return cfg.DryRun || cfg.SerialPort == SerialPortNone
}

// EffectivePort resolves SerialPortAuto to the first USB serial port
func (cfg Config) EffectivePort() (string, error) {
	if cfg.SerialPort != "" && cfg.SerialPort != SerialPortAuto {
		return cfg.SerialPort, nil
	}

	ports, err := GetSerialPorts()
	if err != nil {
		return "", err
	}
	return ports[0], nil
}

// GetSerialPorts lists the USB serial ports
func GetSerialPorts() ([]string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("error listing serial ports: %w", err)
	}

	var result []string
	for _, port := range ports {
		if port.IsUSB {
			result = append(result, port.Name)
		}
	}
	if len(result) == 0 {
		return nil, ErrNoUSBSerial
	}
	return result, nil
}
