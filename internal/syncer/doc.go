// Package syncer reconciles local planner state with the remote authority.
//
// Poll cycle
//
// One cycle runs at a time:
//
//	1. Beacon: fetch the global watermark; equal to the last applied one ends the cycle.
//	2. Versions: fetch the manifest of remote updatedAt values.
//	3. Pull: fetch only entities strictly newer than their local watermark and
//	   hand them to the Applier, which merges before it writes.
//	4. Commit: record the beacon and persist the watermark map.
//
// A transport failure on one pull skips that entity and the cycle still
// commits, so an update can be missed until the authority changes again.
// Any other pull failure is handled by the FailurePolicy.
//
// Push
//
// PushSchedule and PushOverride send a freshly stamped entity. An applied
// write advances that entity's watermark and the beacon; a stale one changes
// nothing locally.
//
// Cancellation
//
// Cancel stops future cycles. Results of calls already in flight are
// discarded.
package syncer
