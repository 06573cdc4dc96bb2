package config

import (
	"fmt"
	"strings"
	"time"
)

type NATSConfig struct {
	Url     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
	// Name identifies the connection on the server.
	Name string `koanf:"name"`
}

// Enabled reports whether a NATS server is configured.
func (c *NATSConfig) Enabled() bool {
	return c.Url != ""
}

// String returns a string representation of the NATS configuration.
func (c *NATSConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- NATS ---\n")
	if !c.Enabled() {
		b.WriteString("  <disabled>\n")
		return b.String()
	}
	b.WriteString(fmt.Sprintf("  url: %s\n", MaskURL(c.Url)))
	b.WriteString(fmt.Sprintf("  timeout: %s\n", c.Timeout))
	b.WriteString(fmt.Sprintf("  name: %s\n", c.Name))
	return b.String()
}

func (c *NATSConfig) Validate() error {
	if c.Url == "" {
		return fmt.Errorf("NATS URL is not configured")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("nats dial timeout is not configured")
	}
	return nil
}

// SubscriberConfig describes the durable JetStream consumer that listens for
// products changed notifications.
type SubscriberConfig struct {
	Stream   string `koanf:"stream"`
	Subject  string `koanf:"subject"`
	Consumer string `koanf:"consumer"`
	// Batch is the number of messages a worker fetches at once.
	Batch int `koanf:"batch"`
	// Timeout is the longest a fetch waits for messages.
	Timeout time.Duration `koanf:"timeout"`
	// Interval is the pause after a failed fetch.
	Interval time.Duration `koanf:"interval"`
	Workers  int           `koanf:"workers"`
	// CreateStream creates the stream on startup when it is missing.
	CreateStream bool `koanf:"createstream"`
}

func (c *SubscriberConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- NATS Subscriber ---\n")
	fmt.Fprintf(&b, "  stream: %s\n", c.Stream)
	fmt.Fprintf(&b, "  subject: %s\n", c.Subject)
	fmt.Fprintf(&b, "  consumer: %s\n", c.Consumer)
	fmt.Fprintf(&b, "  batch: %d, workers: %d\n", c.Batch, c.Workers)
	fmt.Fprintf(&b, "  timeout: %s, interval: %s\n", c.Timeout, c.Interval)
	fmt.Fprintf(&b, "  createstream: %t\n", c.CreateStream)
	return b.String()
}

func (c *SubscriberConfig) Validate() error {
	var missing []string
	if c.Stream == "" {
		missing = append(missing, "stream")
	}
	if c.Subject == "" {
		missing = append(missing, "subject")
	}
	if c.Consumer == "" {
		missing = append(missing, "consumer")
	}
	if len(missing) > 0 {
		return fmt.Errorf("subscriber: %s not configured", strings.Join(missing, ", "))
	}
	if c.Batch <= 0 || c.Workers <= 0 {
		return fmt.Errorf("subscriber: batch and workers must be greater than 0")
	}
	if c.Timeout <= 0 || c.Interval <= 0 {
		return fmt.Errorf("subscriber: timeout and interval must be greater than 0")
	}
	return nil
}
