// Package persist restores rooms at startup and keeps the store and the
// registry in step while the server runs: periodic snapshots and TTL sweeps.
package persist

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/greenwinther/guess-the-song2/internal/hub"
	"github.com/greenwinther/guess-the-song2/internal/snapshot"
	"github.com/greenwinther/guess-the-song2/internal/store"
)

const flushTimeout = 10 * time.Second

// ErrNotLoaded is returned by Flush until a Load has succeeded.
var ErrNotLoaded = errors.New("persist: stored rooms not loaded yet")

type Options struct {
	SaveInterval time.Duration
	GCInterval   time.Duration
	Now          func() time.Time
	Logger       *zap.Logger
}

type Persister struct {
	hub   *hub.Hub
	store store.Store
	opts  Options
	log   *zap.Logger

	loaded atomic.Bool
}

// LoadStats counts what happened to each stored room at startup.
type LoadStats struct {
	Loaded  int
	Expired int
	Invalid int
}

func New(h *hub.Hub, s store.Store, opts Options) *Persister {
	if opts.SaveInterval <= 0 {
		opts.SaveInterval = 30 * time.Second
	}
	if opts.GCInterval <= 0 {
		opts.GCInterval = time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Persister{hub: h, store: s, opts: opts, log: opts.Logger}
}

// Load revives every stored room into the hub. Unreadable and expired rooms are
// skipped and counted; only a failing store is an error.
func (p *Persister) Load(ctx context.Context) (LoadStats, error) {
	var stats LoadStats
	records, err := p.store.Load(ctx)
	if err != nil {
		return stats, fmt.Errorf("load snapshots: %w", err)
	}

	now := p.opts.Now().UnixMilli()
	for _, rec := range records {
		room := snapshot.Revive(rec.Payload, now)
		if room == nil {
			stats.Invalid++
			p.log.Warn("skipping unreadable room", zap.String("code", rec.Code))
			continue
		}
		if room.Expired(now) {
			stats.Expired++
			continue
		}
		// no connection survives a restart
		room.ResetPresence()
		if err := p.hub.Revive(ctx, room); err != nil {
			stats.Invalid++
			p.log.Warn("skipping room", zap.String("code", room.Code), zap.Error(err))
			continue
		}
		stats.Loaded++
	}
	p.loaded.Store(true)

	p.log.Info("rooms restored",
		zap.Int("loaded", stats.Loaded),
		zap.Int("expired", stats.Expired),
		zap.Int("invalid", stats.Invalid),
	)
	return stats, nil
}

// Loaded reports whether the stored rooms have been read back.
func (p *Persister) Loaded() bool { return p.loaded.Load() }

// Flush writes the current set of live rooms to the store.
func (p *Persister) Flush(ctx context.Context) error {
	if !p.loaded.Load() {
		return ErrNotLoaded
	}
	records, err := p.hub.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot rooms: %w", err)
	}
	if err := p.store.Save(ctx, records); err != nil {
		return fmt.Errorf("save snapshots: %w", err)
	}
	p.log.Debug("rooms saved", zap.Int("rooms", len(records)))
	return nil
}

// Sweep runs one GC pass over the hub.
func (p *Persister) Sweep(ctx context.Context) (int, error) {
	return p.hub.GC(ctx, p.opts.Now())
}

// Run sweeps and saves on their intervals until ctx ends, then flushes once
// more. Failures are logged and retried on the next tick. While the startup
// load has not succeeded, each save tick retries the load instead.
func (p *Persister) Run(ctx context.Context) error {
	save := time.NewTicker(p.opts.SaveInterval)
	defer save.Stop()
	gc := time.NewTicker(p.opts.GCInterval)
	defer gc.Stop()

	for {
		select {
		case <-ctx.Done():
			if !p.loaded.Load() {
				p.log.Warn("skipping final save, stored rooms were never loaded")
				return nil
			}
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
			defer cancel()
			if err := p.Flush(flushCtx); err != nil {
				p.log.Error("final save failed", zap.Error(err))
			}
			return nil

		case <-gc.C:
			if _, err := p.Sweep(ctx); err != nil && ctx.Err() == nil {
				p.log.Error("gc failed", zap.Error(err))
			}

		case <-save.C:
			if !p.loaded.Load() {
				if _, err := p.Load(ctx); err != nil && ctx.Err() == nil {
					p.log.Error("load retry failed", zap.Error(err))
				}
				continue
			}
			if err := p.Flush(ctx); err != nil && ctx.Err() == nil {
				p.log.Error("save failed", zap.Error(err))
			}
		}
	}
}
