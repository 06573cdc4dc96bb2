package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/abgdnv/catalog/internal/source"
	"github.com/abgdnv/catalog/pkg/config"
	"github.com/abgdnv/catalog/pkg/config/configloader"
)

var _ configloader.Validator = (*Config)(nil)

type Config struct {
	HTTPServer config.HTTPConfig       `koanf:"server"`
	GRPC       config.GrpcServerConfig `koanf:"grpc"`
	Database   config.DatabaseConfig   `koanf:"database"`
	Catalog    CatalogConfig           `koanf:"catalog"`
	Filter     FilterConfig            `koanf:"filter"`
	Log        config.LogConfig        `koanf:"log"`
	PProf      config.PProfConfig      `koanf:"pprof"`
	Shutdown   config.ShutdownConfig   `koanf:"shutdown"`
	Nats       config.NATSConfig       `koanf:"nats"`
	Subscriber config.SubscriberConfig `koanf:"subscriber"`
	Telemetry  config.TelemetryConfig  `koanf:"telemetry"`
	IdP        config.IdP              `koanf:"idp"`
	Resilience config.ResilienceConfig `koanf:"resilience"`
	Probes     config.ProbesConfig     `koanf:"probes"`
}

// CatalogConfig selects where the product collection comes from.
type CatalogConfig struct {
	Source       string        `koanf:"source"`
	URL          string        `koanf:"url"`
	Path         string        `koanf:"path"`
	FetchTimeout time.Duration `koanf:"fetchtimeout"`
	// ReloadInterval refreshes the collection periodically, 0 disables it.
	ReloadInterval time.Duration `koanf:"reloadinterval"`
}

type FilterConfig struct {
	DebounceWindow time.Duration `koanf:"debouncewindow"`
	SessionTTL     time.Duration `koanf:"sessionttl"`
	MaxSessions    int           `koanf:"maxsessions"`
	MemoSize       int           `koanf:"memosize"`
}

func (c *CatalogConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Catalog ---\n")
	b.WriteString(fmt.Sprintf("  source: %s\n", c.Source))
	switch c.Source {
	case source.KindHTTP:
		b.WriteString(fmt.Sprintf("  url: %s\n", config.MaskURL(c.URL)))
	case source.KindFile:
		b.WriteString(fmt.Sprintf("  path: %s\n", c.Path))
	}
	b.WriteString(fmt.Sprintf("  fetchtimeout: %s\n", c.FetchTimeout))
	b.WriteString(fmt.Sprintf("  reloadinterval: %s\n", c.ReloadInterval))
	return b.String()
}

func (c *CatalogConfig) Validate() error {
	switch c.Source {
	case source.KindPostgres:
	case source.KindHTTP:
		if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
			return fmt.Errorf("catalog url must be an http(s) URL: %q", c.URL)
		}
	case source.KindFile:
		if c.Path == "" {
			return fmt.Errorf("catalog path is not configured")
		}
	default:
		return fmt.Errorf("unknown catalog source %q", c.Source)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("catalog fetch timeout must be greater than 0")
	}
	if c.ReloadInterval < 0 {
		return fmt.Errorf("catalog reload interval must not be negative")
	}
	return nil
}

func (c *FilterConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Filter ---\n")
	b.WriteString(fmt.Sprintf("  debouncewindow: %s\n", c.DebounceWindow))
	b.WriteString(fmt.Sprintf("  sessionttl: %s\n", c.SessionTTL))
	b.WriteString(fmt.Sprintf("  maxsessions: %d\n", c.MaxSessions))
	b.WriteString(fmt.Sprintf("  memosize: %d\n", c.MemoSize))
	return b.String()
}

func (c *FilterConfig) Validate() error {
	if c.DebounceWindow < 0 {
		return fmt.Errorf("filter debounce window must not be negative")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("filter session ttl must be greater than 0")
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("filter maxsessions must not be negative")
	}
	if c.MemoSize < 0 {
		return fmt.Errorf("filter memosize must not be negative")
	}
	return nil
}

func (c *Config) String() string {
	var b strings.Builder
	b.WriteString(c.HTTPServer.String())
	b.WriteString(c.GRPC.String())
	if c.Catalog.Source == source.KindPostgres {
		b.WriteString(c.Database.String())
	}
	b.WriteString(c.Catalog.String())
	b.WriteString(c.Filter.String())
	b.WriteString(c.Log.String())
	b.WriteString(c.PProf.String())
	b.WriteString(c.Shutdown.String())
	b.WriteString(c.Nats.String())
	if c.Nats.Enabled() {
		b.WriteString(c.Subscriber.String())
	}
	b.WriteString(c.Telemetry.String())
	b.WriteString(c.IdP.String())
	if c.Catalog.Source == source.KindHTTP {
		b.WriteString(c.Resilience.String())
	}
	b.WriteString(c.Probes.String())
	return b.String()
}

// Validate checks every section. Optional sections are validated only when enabled.
func (c *Config) Validate() error {
	validators := []configloader.Validator{
		&c.HTTPServer,
		&c.GRPC,
		&c.Catalog,
		&c.Filter,
		&c.Log,
		&c.PProf,
		&c.Shutdown,
		&c.Telemetry,
		&c.Probes,
	}
	if c.IdP.Enabled() {
		validators = append(validators, &c.IdP)
	}
	if c.Catalog.Source == source.KindPostgres {
		validators = append(validators, &c.Database)
	}
	if c.Catalog.Source == source.KindHTTP {
		validators = append(validators, &c.Resilience)
	}
	if c.Nats.Enabled() {
		validators = append(validators, &c.Nats, &c.Subscriber)
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
