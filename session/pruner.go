package session

import (
	"context"
	"time"

	"hark/log"
)

const (
	DefaultPruneInterval   = 10 * time.Second
	DefaultLivenessTimeout = 10 * time.Second
)

// Pruner periodically drops sessions that stopped sending keepalives.
type Pruner struct {
	Registry *Registry
	Interval time.Duration
	Timeout  time.Duration
}

func (p *Pruner) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPruneInterval
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultLivenessTimeout
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range p.Registry.Prune(timeout) {
				log.SessionEvent("session_pruned", id, p.Registry.Len())
			}
		}
	}
}
