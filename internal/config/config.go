package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Server holds all configuration for the lobby server.
type Server struct {
	// Network
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`

	// Connection timeouts
	LoginTimeout time.Duration `yaml:"login_timeout"` // first frame deadline (default: 3s)
	IdleTimeout  time.Duration `yaml:"idle_timeout"`  // authenticated idle disconnect (default: 10m)
	WriteTimeout time.Duration `yaml:"write_timeout"` // per-write deadline (default: 5s)

	// Outbound queue
	MailboxCapacity int `yaml:"mailbox_capacity"` // per-client outbox capacity (default: 100)
	WriteBatch      int `yaml:"write_batch"`      // frames per writev call (default: 50)

	// Flood protection
	FramesPerSecond  int           `yaml:"frames_per_second"`  // inbound allowance per second
	RateLimitStrikes int           `yaml:"rate_limit_strikes"` // consecutive over-limit seconds before disconnect
	AcceptInterval   time.Duration `yaml:"accept_interval"`    // min delay between connections from one IP (0 = off)
}

// DefaultServer returns Server config with sensible defaults.
func DefaultServer() Server {
	return Server{
		BindAddress:      "0.0.0.0",
		Port:             17000,
		LoginTimeout:     3 * time.Second,
		IdleTimeout:      10 * time.Minute,
		WriteTimeout:     5 * time.Second,
		MailboxCapacity:  100,
		WriteBatch:       50,
		FramesPerSecond:  5,
		RateLimitStrikes: 10,
		AcceptInterval:   time.Second,
	}
}

// LoadServer loads lobby server config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadServer(path string) (Server, error) {
	cfg := DefaultServer()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
