package server

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/momentics/hioload-net/api"
)

// Config holds the listening and sizing parameters of a NetworkService.
type Config struct {
	Host           string        `yaml:"host"`            // "0.0.0.0" or a literal IPv4 address
	Port           int           `yaml:"port"`            // 0 picks an ephemeral port
	Backlog        int           `yaml:"backlog"`         // listen(2) queue depth
	MaxConnections int           `yaml:"max_connections"` // concurrently serviced connections
	SegmentSize    int           `yaml:"segment_size"`    // bytes per receive/send segment
	AcceptCPU      int           `yaml:"accept_cpu"`      // pin the accept loop (-1 = off)
	Statsd         string        `yaml:"statsd"`          // statsd host:port, empty disables
	ReportInterval time.Duration `yaml:"report_interval"` // stats reporter period
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:           "0.0.0.0",
		Port:           7979,
		Backlog:        100,
		MaxConnections: 1000,
		SegmentSize:    1024,
		AcceptCPU:      -1,
		ReportInterval: 10 * time.Second,
	}
}

// LoadConfig reads a YAML file over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err = yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err = cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks ranges. It does not resolve the host.
func (c *Config) Validate() error {
	switch {
	case c.Port < 0 || c.Port > 0xffff:
		return invalid("port", c.Port)
	case c.Backlog < 0:
		return invalid("backlog", c.Backlog)
	case c.MaxConnections <= 0:
		return invalid("max_connections", c.MaxConnections)
	case c.SegmentSize <= 0:
		return invalid("segment_size", c.SegmentSize)
	case c.ReportInterval < 0:
		return invalid("report_interval", c.ReportInterval)
	}
	return nil
}

func invalid(key string, v any) error {
	return api.NewError(api.ErrCodeInvalidArgument, "invalid "+key).WithContext(key, v)
}
