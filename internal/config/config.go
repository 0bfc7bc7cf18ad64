// Package config loads the process's static configuration: built-in
// defaults, optionally overlaid with a YAML settings file via
// gopkg.in/yaml.v3.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable the server reads at startup.
type Config struct {
	Port              int           `yaml:"port"`
	HZ                int           `yaml:"hz"`
	IdleTimeout       time.Duration `yaml:"idleTimeout"`
	TCPKeepAlive      time.Duration `yaml:"tcpKeepAlive"`
	MaxClients        int           `yaml:"maxClients"`
	ThreadCount       int           `yaml:"threadCount"`
	MaxQueuedTasks    int           `yaml:"maxQueuedTasks"`
	InlineBufferBytes int           `yaml:"inlineBufferBytes"`
	FDSetIncrement    int           `yaml:"fdSetIncrement"`
}

// Defaults returns the built-in defaults: port 9528, hz 10, 30s idle
// timeout, 300s keepalive, 10000 max clients, 10 worker threads, 100 max
// queued tasks, a 16KiB inline reply buffer, and an fd-set increment of 128
// (32 reserved fds + 96 headroom).
func Defaults() Config {
	return Config{
		Port:              9528,
		HZ:                10,
		IdleTimeout:       30 * time.Second,
		TCPKeepAlive:      300 * time.Second,
		MaxClients:        10000,
		ThreadCount:       10,
		MaxQueuedTasks:    100,
		InlineBufferBytes: 16 * 1024,
		FDSetIncrement:    32 + 96,
	}
}

// Load reads path (if non-empty) and overlays it onto Defaults(); an empty
// path just returns the defaults, and a file that cannot be read or parsed
// is an error. This matches the no-CLI-parsing
// Non-goal — this is a convenience loader, not a redis.conf-compatible
// parser.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetSize is the reactor's fd-table capacity derived from MaxClients and
// FDSetIncrement, matching CONFIG_FDSET_INCR's role in initServer.
func (c Config) SetSize() int {
	return c.MaxClients + c.FDSetIncrement
}
