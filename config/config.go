package config

import (
	"fmt"
	"time"
)

var Version = "0.3.0"

const (
	TransportWebsocket = "websocket"
	TransportWebRTC    = "webrtc"
)

const (
	DefaultPort      = 2759
	DefaultFrameRate = 60
	maxCapacity      = 255
)

// Config is everything kartlobby reads from files, the environment and
// flags. Later sources override earlier ones: defaults, TOML file,
// environment, flags.
type Config struct {
	Role      string `toml:"role"`
	Name      string `toml:"name"`
	Address   string `toml:"address"`
	Port      int    `toml:"port"`
	Transport string `toml:"transport"`

	Capacity          int  `toml:"capacity"`
	FrameRate         int  `toml:"frame_rate"`
	ConnectTimeoutSec int  `toml:"connect_timeout_sec"`
	AutoStart         bool `toml:"auto_start"`

	Kart     string `toml:"kart"`
	KartName string `toml:"kart_name"`
	KartsDir string `toml:"karts_dir"`
	Track    string `toml:"track"`
	Laps     int    `toml:"laps"`

	ControlAddr string `toml:"control_addr"`
	Metrics     bool   `toml:"metrics"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogFile   string `toml:"log_file"`

	ICEServers []string `toml:"ice_servers"`
}

func Default() Config {
	return Config{
		Role:              "server",
		Name:              "player",
		Address:           "127.0.0.1",
		Port:              DefaultPort,
		Transport:         TransportWebsocket,
		Capacity:          4,
		FrameRate:         DefaultFrameRate,
		ConnectTimeoutSec: 10,
		Track:             "lighthouse",
		Laps:              3,
		ControlAddr:       "127.0.0.1:8080",
		Metrics:           true,
		LogLevel:          "info",
		LogFormat:         "console",
		ICEServers:        []string{"stun:stun.l.google.com:19302"},
	}
}

func (c Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSec) * time.Second
}

// ConfigError reports one invalid setting.
type ConfigError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: %s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	return msg + ": " + e.Message
}

// Validate checks the settings both modes rely on.
func (c Config) Validate() error {
	switch c.Role {
	case "server", "client":
	default:
		return &ConfigError{Field: "role", Value: c.Role, Message: "must be server or client"}
	}
	if c.Port < 1 || c.Port > 65535 {
		return &ConfigError{Field: "port", Value: c.Port, Message: "out of range 1-65535"}
	}
	switch c.Transport {
	case TransportWebsocket, TransportWebRTC:
	default:
		return &ConfigError{Field: "transport", Value: c.Transport, Message: "must be websocket or webrtc"}
	}
	if c.FrameRate < 1 || c.FrameRate > 1000 {
		return &ConfigError{Field: "frame_rate", Value: c.FrameRate, Message: "out of range 1-1000"}
	}
	if c.ConnectTimeoutSec < 0 {
		return &ConfigError{Field: "connect_timeout_sec", Value: c.ConnectTimeoutSec, Message: "must not be negative"}
	}
	if len(c.Name) > 255 {
		return &ConfigError{Field: "name", Value: c.Name, Message: "longer than 255 bytes"}
	}

	if c.Role == "server" {
		if c.Capacity < 1 || c.Capacity > maxCapacity-1 {
			return &ConfigError{Field: "capacity", Value: c.Capacity, Message: fmt.Sprintf("out of range 1-%d", maxCapacity-1)}
		}
		if c.Laps < 1 || c.Laps > 255 {
			return &ConfigError{Field: "laps", Value: c.Laps, Message: "out of range 1-255"}
		}
	} else if c.Address == "" {
		return &ConfigError{Field: "address", Message: "required for client"}
	}

	if c.Transport == TransportWebRTC && len(c.ICEServers) == 0 {
		return &ConfigError{Field: "ice_servers", Message: "webrtc needs at least one ICE server"}
	}
	return nil
}
