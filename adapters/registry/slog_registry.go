// Package registry provides RegistryLogger implementations: a structured-log
// sink for development and an append-only JSONL audit store with
// query-by-target and amount verification.
package registry

import (
	"context"
	"log/slog"

	"github.com/liquidityos/custody-engine-go/custody"
)

// SlogRegistry writes registry events to a structured logger. It is the
// stand-in sink for wiring that has no durable audit requirement.
type SlogRegistry struct {
	log *slog.Logger
}

// NewSlogRegistry builds a log-backed registry; log may be nil to use the
// default logger.
func NewSlogRegistry(log *slog.Logger) *SlogRegistry {
	if log == nil {
		log = slog.Default()
	}
	return &SlogRegistry{log: log}
}

func (r *SlogRegistry) Record(ctx context.Context, ev custody.RegistryEvent) error {
	if err := validateEvent(ev); err != nil {
		return err
	}
	r.log.Info("registry event",
		"id", ev.ID,
		"kind", ev.Kind,
		"amount", ev.Amount,
		"initiator", ev.Initiator,
		"target", ev.Target,
		"description", ev.Description,
		"timestamp", ev.Timestamp,
	)
	return nil
}
