// Package probes implements file based readiness and liveness probes
// for orchestrators that check the presence or freshness of a file.
package probes

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/abgdnv/catalog/pkg/config"
)

type Probes struct {
	cfg    config.ProbesConfig
	logger *slog.Logger
}

func New(cfg config.ProbesConfig, logger *slog.Logger) *Probes {
	return &Probes{cfg: cfg, logger: logger}
}

// MarkReady creates the readiness file.
func (p *Probes) MarkReady() error {
	if err := touch(p.cfg.ReadinessFileName); err != nil {
		return fmt.Errorf("failed to mark ready: %w", err)
	}
	return nil
}

// MarkNotReady removes the readiness file. A missing file is not an error.
func (p *Probes) MarkNotReady() error {
	if err := os.Remove(p.cfg.ReadinessFileName); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to mark not ready: %w", err)
	}
	return nil
}

// RunLiveness touches the liveness file every LivenessInterval until ctx is done,
// then removes both probe files.
func (p *Probes) RunLiveness(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.LivenessInterval)
	defer ticker.Stop()

	if err := touch(p.cfg.LivenessFileName); err != nil {
		return fmt.Errorf("failed to touch liveness file: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			_ = p.MarkNotReady()
			if err := os.Remove(p.cfg.LivenessFileName); err != nil && !os.IsNotExist(err) {
				p.logger.Warn("failed to remove liveness file", "error", err)
			}
			return nil
		case <-ticker.C:
			if err := touch(p.cfg.LivenessFileName); err != nil {
				p.logger.Error("failed to touch liveness file", "error", err)
			}
		}
	}
}

func touch(name string) error {
	now := time.Now()
	if err := os.Chtimes(name, now, now); err == nil {
		return nil
	}
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	return f.Close()
}
