package config

import (
	"fmt"
	"log"
	"strings"
	"time"
)

// ShutdownConfig bounds how long servers may drain on exit.
type ShutdownConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

func (c *ShutdownConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Shutdown ---\n")
	fmt.Fprintf(&b, "  timeout: %s\n", c.Timeout)
	return b.String()
}

func (c *ShutdownConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("shutdown.timeout must be greater than 0")
	}
	return nil
}

// PProfConfig exposes net/http/pprof on a separate listener.
type PProfConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

func (c *PProfConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- PProf ---\n")
	if !c.Enabled {
		b.WriteString("  <disabled>\n")
		return b.String()
	}
	fmt.Fprintf(&b, "  addr: %s\n", c.Addr)
	return b.String()
}

func (c *PProfConfig) Validate() error {
	if c.Enabled && c.Addr == "" {
		return fmt.Errorf("pprof.addr is required when pprof is enabled")
	}
	return nil
}

// ProbesConfig names the files watched by exec based orchestrator probes.
type ProbesConfig struct {
	ReadinessFileName string        `koanf:"readinessfilename"`
	LivenessFileName  string        `koanf:"livenessfilename"`
	LivenessInterval  time.Duration `koanf:"livenessinterval"`
}

const (
	defaultReadinessFileName = "/tmp/catalog-ready"
	defaultLivenessFileName  = "/tmp/catalog-live"
	defaultLivenessInterval  = 20 * time.Second
)

func (c *ProbesConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Probes ---\n")
	fmt.Fprintf(&b, "  readinessfilename: %s\n", c.ReadinessFileName)
	fmt.Fprintf(&b, "  livenessfilename: %s\n", c.LivenessFileName)
	fmt.Fprintf(&b, "  livenessinterval: %s\n", c.LivenessInterval)
	return b.String()
}

// Validate fills unset fields with defaults, it never fails.
func (c *ProbesConfig) Validate() error {
	if c.ReadinessFileName == "" {
		c.ReadinessFileName = defaultReadinessFileName
		log.Printf("probes.readinessfilename not set, using %s", c.ReadinessFileName)
	}
	if c.LivenessFileName == "" {
		c.LivenessFileName = defaultLivenessFileName
		log.Printf("probes.livenessfilename not set, using %s", c.LivenessFileName)
	}
	if c.LivenessInterval <= 0 {
		c.LivenessInterval = defaultLivenessInterval
		log.Printf("probes.livenessinterval not set, using %s", c.LivenessInterval)
	}
	return nil
}
