// Package tracker runs the snapshot cycle: query live balances in bounded
// batches, persist one snapshot per success at a single cycle timestamp,
// recompute every cached burn figure, then prune history past retention.
package tracker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/AlexandriaDAO/cyclescan/pkg/balance"
	"github.com/AlexandriaDAO/cyclescan/pkg/burn"
	"github.com/AlexandriaDAO/cyclescan/pkg/db"
)

const (
	// DefaultBatchSize bounds concurrent in-flight balance queries.
	DefaultBatchSize = 50
	// DefaultRetention is how much history survives pruning.
	DefaultRetention = 30 * 24 * time.Hour
)

// Config tunes a Tracker. Zero values take the defaults above.
type Config struct {
	BatchSize int
	Retention time.Duration
}

// Tracker owns the snapshot cycle. One cycle runs at a time; scheduler
// ticks and on-demand triggers share the same Run path.
type Tracker struct {
	store     *db.Client
	source    balance.Source
	logger    *zap.Logger
	batchSize int
	retention time.Duration

	runMu sync.Mutex
	pool  pond.Pool
}

// Result is the summary of one cycle.
type Result struct {
	Considered uint64 `json:"considered"`
	Success    uint64 `json:"success"`
	Failed     uint64 `json:"failed"`
	Pruned     uint64 `json:"pruned"`
	Timestamp  int64  `json:"timestamp"`
}

// New creates a Tracker over the given store and balance source.
func New(store *db.Client, source balance.Source, logger *zap.Logger, cfg Config) *Tracker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	return &Tracker{
		store:     store,
		source:    source,
		logger:    logger,
		batchSize: cfg.BatchSize,
		retention: cfg.Retention,
		pool:      pond.NewPool(cfg.BatchSize),
	}
}

type target struct {
	id   string
	meta db.CanisterMeta
}

// Run executes one full cycle and returns its summary. Remote failures are
// counted, never propagated: recomputation and pruning always run. The
// returned error covers store access only.
func (t *Tracker) Run(ctx context.Context) (Result, error) {
	t.runMu.Lock()
	defer t.runMu.Unlock()

	// Once a cycle starts it runs every phase to completion. Only the
	// remote queries honor the caller's context; store access must survive
	// a disconnecting admin client or a stopping scheduler.
	sctx := context.WithoutCancel(ctx)

	now := time.Now()
	start := now

	// Grouping: partition by proxy type, SNS members bucketed per root.
	var (
		registered []target
		direct     []target
		groups     = map[string][]string{}
	)
	err := t.store.EachCanister(sctx, func(id string, meta db.CanisterMeta) error {
		registered = append(registered, target{id: id, meta: meta})
		switch meta.ProxyType {
		case db.ProxySNSRoot:
			groups[meta.ProxyID] = append(groups[meta.ProxyID], id)
		case db.ProxyBlackhole:
			direct = append(direct, target{id: id, meta: meta})
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	res := Result{Considered: uint64(len(registered)), Timestamp: now.UnixNano()}

	// Querying: bounded fan-out with a barrier between batches.
	var (
		resMu    sync.Mutex
		balances = map[string]uint64{}
	)
	record := func(id string, cycles uint64) {
		resMu.Lock()
		balances[id] = cycles
		resMu.Unlock()
	}

	for begin := 0; begin < len(direct); begin += t.batchSize {
		group := t.pool.NewGroupContext(ctx)
		for _, tgt := range direct[begin:min(begin+t.batchSize, len(direct))] {
			tgt := tgt
			group.Submit(func() {
				cycles, qerr := t.source.CanisterStatus(ctx, tgt.meta.ProxyID, tgt.id)
				if qerr != nil {
					t.logger.Debug("canister status query failed",
						zap.String("canister", tgt.id), zap.Error(qerr))
					return
				}
				record(tgt.id, cycles)
			})
		}
		_ = group.Wait()
	}

	roots := make([]string, 0, len(groups))
	for root := range groups {
		roots = append(roots, root)
	}
	sort.Strings(roots)

	for begin := 0; begin < len(roots); begin += t.batchSize {
		group := t.pool.NewGroupContext(ctx)
		for _, root := range roots[begin:min(begin+t.batchSize, len(roots))] {
			root := root
			members := groups[root]
			group.Submit(func() {
				summary, qerr := t.source.SNSCanisters(ctx, root)
				if qerr != nil {
					t.logger.Debug("sns summary query failed",
						zap.String("root", root), zap.Error(qerr))
					return
				}
				// Only registered members present in the response count;
				// the rest stay failed.
				for _, id := range members {
					if cycles, ok := summary[id]; ok {
						record(id, cycles)
					}
				}
			})
		}
		_ = group.Wait()
	}

	// Merging: all successes land at the one cycle timestamp. Rerunning at
	// the same timestamp upserts. Everything not recorded counts as failed,
	// including queries a cancelled context kept from ever starting. The
	// copy pins the batch against stragglers still finishing a query.
	resMu.Lock()
	merged := make(map[string]uint64, len(balances))
	for id, cycles := range balances {
		merged[id] = cycles
	}
	resMu.Unlock()
	res.Success = uint64(len(merged))
	res.Failed = res.Considered - res.Success

	if err := t.store.AppendSnapshots(sctx, now.UnixNano(), merged); err != nil {
		return res, err
	}

	// Recomputing: every registered canister, refreshed or not, since burn
	// depends on the passage of time.
	agg := map[string]db.ProjectAggregate{}
	for _, tgt := range registered {
		snaps, err := t.store.Snapshots(sctx, tgt.id)
		if err != nil {
			return res, err
		}
		stats := db.CanisterStats{}
		if len(snaps) > 0 {
			stats.Balance = snaps[len(snaps)-1].Cycles
		}
		if v, ok := burn.Calculate(snaps, burn.Window1h, now); ok {
			stats.Burn1h = &v
		}
		if v, ok := burn.Calculate(snaps, burn.Window24h, now); ok {
			stats.Burn24h = &v
		}
		if v, ok := burn.Calculate(snaps, burn.Window7d, now); ok {
			stats.Burn7d = &v
		}
		if err := t.store.PutCanisterStats(sctx, tgt.id, stats); err != nil {
			return res, err
		}

		if tgt.meta.Project == "" || !tgt.meta.Valid {
			continue
		}
		a := agg[tgt.meta.Project]
		a.Stats.CanisterCount++
		a.Stats.TotalBalance += stats.Balance
		addBurn(&a.Stats.TotalBurn1h, stats.Burn1h)
		addBurn(&a.Stats.TotalBurn24h, stats.Burn24h)
		addBurn(&a.Stats.TotalBurn7d, stats.Burn7d)
		if a.MemberWebsite == "" {
			a.MemberWebsite = tgt.meta.Website
		}
		agg[tgt.meta.Project] = a
	}

	if err := t.store.ApplyProjectAggregates(sctx, agg); err != nil {
		return res, err
	}

	// Pruning.
	cutoff := now.Add(-t.retention).UnixNano()
	pruned, err := t.store.PruneSnapshots(sctx, cutoff)
	if err != nil {
		return res, err
	}
	res.Pruned = uint64(pruned)

	t.logger.Info("snapshot cycle complete",
		zap.Uint64("considered", res.Considered),
		zap.Uint64("success", res.Success),
		zap.Uint64("failed", res.Failed),
		zap.Uint64("pruned", res.Pruned),
		zap.Duration("took", time.Since(start)),
	)
	return res, nil
}

// addBurn accumulates an optional per-canister burn into an optional total.
// A known zero still marks the total as known.
func addBurn(total **uint64, v *uint64) {
	if v == nil {
		return
	}
	if *total == nil {
		n := *v
		*total = &n
		return
	}
	**total += *v
}
