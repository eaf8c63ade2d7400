package engine

import (
	"context"
	"errors"
	"time"

	"github.com/stridehq/stride/internal/remote"
	"github.com/stridehq/stride/internal/store"
	"github.com/stridehq/stride/internal/types"
)

// RunPullCycle fetches current remote state per domain and applies
// last-write-wins updates locally. The pull worker never creates local
// rows: untracked remote records are skipped, since only the push worker
// originates new-record linkage.
func (e *Engine) RunPullCycle(ctx context.Context) CycleSummary {
	summary := CycleSummary{Kind: "pull"}

	if !e.pullBusy.CompareAndSwap(false, true) {
		e.config.Logger.Println("Pull cycle still in progress, skipping tick")
		return summary
	}
	defer e.pullBusy.Store(false)

	defer func() {
		if r := recover(); r != nil {
			e.config.Logger.Printf("Pull cycle panic recovered: %v", r)
		}
	}()

	start := time.Now()
	delay := time.Duration(e.interCallDelay.Load())

	for _, domain := range types.AllDomains {
		if ctx.Err() != nil {
			break
		}

		var records []remote.Record
		err := e.registry.Call(ctx, DepRemoteAPI, e.config.RetryPolicy, func() error {
			recs, err := e.client.Query(ctx, domain, remote.Filter{})
			if err != nil {
				return err
			}
			records = recs
			return nil
		})
		if err != nil {
			// Pull failures are logged and skipped; there is no outbox
			// entry to record them on.
			e.config.Logger.Printf("Failed to fetch remote %ss: %v", domain, err)
			summary.Errors++
			e.sleep(ctx, delay)
			continue
		}

		applied, err := e.applyRemoteRecords(ctx, domain, records)
		if err != nil {
			e.config.Logger.Printf("Failed to apply remote %ss: %v", domain, err)
			summary.Errors++
		}
		summary.Fetched += len(records)
		summary.Applied += applied

		// Same pacing between remote fetches as the push worker.
		e.sleep(ctx, delay)
	}

	summary.Duration = time.Since(start)
	e.config.Logger.Printf("Pull cycle complete: fetched=%d applied=%d errors=%d in %s",
		summary.Fetched, summary.Applied, summary.Errors, summary.Duration)
	e.emit(summary)
	return summary
}

// applyRemoteRecords runs the last-write-wins comparison for each remote
// record against its tracked local counterpart.
func (e *Engine) applyRemoteRecords(ctx context.Context, domain types.Domain, records []remote.Record) (int, error) {
	applied := 0
	for _, rec := range records {
		ref, err := e.store.FindByRemoteID(ctx, domain, rec.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// Untracked remote record; import is a separate concern.
				continue
			}
			return applied, err
		}

		// Overwrite iff the remote edit is strictly newer than the last
		// sync point. A record never synced locally counts as stale.
		if ref.SyncedAt != nil && !rec.LastEditedAt.After(*ref.SyncedAt) {
			continue
		}

		now := time.Now()
		if err := e.store.ApplyRemote(ctx, domain, ref.LocalID, rec.Fields, now); err != nil {
			e.config.Logger.Printf("Failed to apply remote %s %s: %v", domain, rec.ID, err)
			continue
		}

		// Audit entry: the ledger records incoming overwrites too.
		remoteID := rec.ID
		localID := ref.LocalID
		if err := e.store.AppendOutbox(ctx, store.NewOutboxEntry{
			Domain:    domain,
			Direction: types.DirectionRemoteToLocal,
			LocalID:   &localID,
			RemoteID:  &remoteID,
			Action:    types.ActionUpdate,
			Status:    types.StatusSynced,
			SyncedAt:  &now,
		}); err != nil {
			e.config.Logger.Printf("Failed to append audit entry for %s %s: %v", domain, rec.ID, err)
		}
		applied++
	}
	return applied, nil
}
