package approval

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner runs a recurring robfig/cron/v3 job that drops pending approval
// requests past a TTL, so a crashed or disconnected operator UI cannot pin
// memory forever. Requests themselves have no deadline in RequestApproval
// (Design Note a); the TTL here only bounds bookkeeping, not the caller's
// wait — a timed-out request's resultCh is simply abandoned.
type Pruner struct {
	manager *Manager
	ttl     time.Duration
	started map[string]time.Time
	cron    *cron.Cron
	logger  *slog.Logger
}

// NewPruner builds a Pruner over manager with the given entry TTL.
func NewPruner(manager *Manager, ttl time.Duration) *Pruner {
	return &Pruner{
		manager: manager,
		ttl:     ttl,
		started: make(map[string]time.Time),
		logger:  slog.Default(),
	}
}

// Start schedules the prune job on the given cron spec (e.g. "@every 1m")
// and returns the running cron.Cron so the caller can Stop it.
func (p *Pruner) Start(spec string) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, p.prune); err != nil {
		return nil, err
	}
	c.Start()
	p.cron = c
	return c, nil
}

// Stop halts the scheduled pruning.
func (p *Pruner) Stop() {
	if p.cron != nil {
		p.cron.Stop()
	}
}

func (p *Pruner) prune() {
	now := time.Now()
	p.manager.mu.Lock()
	for id, req := range p.manager.pending {
		started, ok := p.started[id]
		if !ok {
			p.started[id] = now
			continue
		}
		if now.Sub(started) > p.ttl {
			delete(p.manager.pending, id)
			delete(p.started, id)
			p.logger.Warn("pruned expired pending approval request", "request_id", id, "tool", req.call.Tool)
		}
	}
	for id := range p.started {
		if _, stillPending := p.manager.pending[id]; !stillPending {
			delete(p.started, id)
		}
	}
	p.manager.mu.Unlock()
}
