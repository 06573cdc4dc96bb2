package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// GrpcServerConfig configures the catalog gRPC listener.
type GrpcServerConfig struct {
	Port              string `koanf:"port"`
	ReflectionEnabled bool   `koanf:"reflection"`
}

func (c *GrpcServerConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- gRPC Server ---\n")
	fmt.Fprintf(&b, "  port: %s\n", c.Port)
	fmt.Fprintf(&b, "  reflection: %t\n", c.ReflectionEnabled)
	return b.String()
}

func (c *GrpcServerConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("grpc.port is not configured")
	}
	if p, err := strconv.Atoi(c.Port); err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("invalid grpc.port: %q", c.Port)
	}
	return nil
}

// GrpcClientConfig is used by clients of the catalog gRPC API.
// Timeout applies to each call, zero means no deadline.
type GrpcClientConfig struct {
	Addr    string        `koanf:"addr"`
	Timeout time.Duration `koanf:"timeout"`
}

func (c *GrpcClientConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- gRPC Client ---\n")
	fmt.Fprintf(&b, "  addr: %s\n", c.Addr)
	fmt.Fprintf(&b, "  timeout: %s\n", c.Timeout)
	return b.String()
}

func (c *GrpcClientConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("grpc client addr is not configured")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("grpc client timeout must not be negative")
	}
	return nil
}
