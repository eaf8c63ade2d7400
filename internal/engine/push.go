package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stridehq/stride/internal/store"
	"github.com/stridehq/stride/internal/types"
)

// RunPushCycle drains one batch of pending outbox entries to the remote
// system. Entries are processed sequentially, oldest first, with the fixed
// inter-call delay after each one to respect the remote rate ceiling. A
// failure marks that entry failed and moves on; nothing aborts the cycle.
//
// Safe to call from the CLI while the timer loop runs: the overlap guard
// makes concurrent invocations skip instead of interleave.
func (e *Engine) RunPushCycle(ctx context.Context) CycleSummary {
	summary := CycleSummary{Kind: "push"}

	if !e.pushBusy.CompareAndSwap(false, true) {
		e.config.Logger.Println("Push cycle still in progress, skipping tick")
		return summary
	}
	defer e.pushBusy.Store(false)

	// A worker-level panic is caught and logged; the next tick proceeds
	// independently.
	defer func() {
		if r := recover(); r != nil {
			e.config.Logger.Printf("Push cycle panic recovered: %v", r)
		}
	}()

	start := time.Now()
	delay := time.Duration(e.interCallDelay.Load())

	// Push-disabled domains are excluded at dequeue time: their pending
	// entries stay in the ledger but never occupy batch slots, so a habit
	// backlog cannot starve the drainable domains.
	entries, err := e.store.DequeuePending(ctx, int(e.batchSize.Load()), pushExcludedDomains()...)
	if err != nil {
		e.config.Logger.Printf("Failed to dequeue outbox entries: %v", err)
		summary.Errors++
		return summary
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}

		if err := e.pushEntry(ctx, entry); err != nil {
			e.config.Logger.Printf("Failed to push outbox entry %d (%s %s): %v",
				entry.ID, entry.Domain, entry.Action, err)
			if markErr := e.store.MarkFailed(ctx, entry.ID, err.Error()); markErr != nil {
				e.config.Logger.Printf("Failed to mark entry %d failed: %v", entry.ID, markErr)
			}
			summary.Errors++
		} else {
			summary.Processed++
		}

		// Fixed pacing after every remote call, success or failure.
		e.sleep(ctx, delay)
	}

	summary.Duration = time.Since(start)
	if summary.Processed > 0 || summary.Errors > 0 {
		e.config.Logger.Printf("Push cycle complete: processed=%d errors=%d in %s",
			summary.Processed, summary.Errors, summary.Duration)
	}
	e.emit(summary)
	return summary
}

// pushEntry translates one outbox entry into a remote create or update and
// records the outcome on both the entity and the entry.
func (e *Engine) pushEntry(ctx context.Context, entry *types.OutboxEntry) error {
	if entry.Action == types.ActionDelete {
		return fmt.Errorf("delete reconciliation is not supported")
	}
	if entry.LocalID == nil {
		return fmt.Errorf("outbox entry has no local id")
	}
	localID := *entry.LocalID

	// Re-read the entity at drain time: the payload reflects the current
	// row, and a linkage persisted by an earlier attempt downgrades a
	// create to an update so the remote record is never minted twice.
	snap, err := e.store.SnapshotForPush(ctx, entry.Domain, localID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("local record no longer exists")
		}
		return err
	}

	now := time.Now
	if snap.RemoteID == nil {
		var remoteID string
		err := e.registry.Call(ctx, DepRemoteAPI, e.config.RetryPolicy, func() error {
			id, err := e.client.Create(ctx, entry.Domain, snap.Fields)
			if err != nil {
				return err
			}
			remoteID = id
			return nil
		})
		if err != nil {
			return err
		}

		if err := e.store.SetRemoteLinkage(ctx, entry.Domain, localID, remoteID, now()); err != nil {
			return fmt.Errorf("remote record %s created but linkage failed: %w", remoteID, err)
		}
	} else {
		remoteID := *snap.RemoteID
		err := e.registry.Call(ctx, DepRemoteAPI, e.config.RetryPolicy, func() error {
			return e.client.Update(ctx, remoteID, snap.Fields)
		})
		if err != nil {
			return err
		}

		if err := e.store.StampSynced(ctx, entry.Domain, localID, now()); err != nil {
			return err
		}
	}

	return e.store.MarkSynced(ctx, entry.ID, now())
}
