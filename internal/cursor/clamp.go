// Package cursor implements the pure cursor-advance and speed-adjustment
// rules shared by every indexing worker, independent of the adapter that
// produced the scan results or the repository that persists them.
package cursor

import (
	"sort"

	"governance-indexer/internal/models"
)

// SnapshotProposalsVariant is the one variant for which a Pending proposal
// also triggers the clamp below, alongside Active for every variant. This
// asymmetry is preserved exactly as specified: on most on-chain sources
// there is no meaningful "pending" state before a proposal starts accruing
// votes, so only the Snapshot family needs the extra trigger. See
// SPEC_FULL.md §9 for the (unresolved, deliberately not guessed) rationale.
const SnapshotProposalsVariant = "SnapshotProposals"

// Clamp computes the new cursor for a Proposals-kind scan given the
// tentative "to" (window upper bound) and the proposals discovered in that
// window. An Active proposal (or a Pending proposal on the SnapshotProposals
// variant) whose IndexCreated precedes the tentative cursor clamps the
// cursor back to that proposal's IndexCreated, so the paired Votes indexer
// never skips the window in which the proposal's state transitions occur.
func Clamp(to int64, variant string, proposals []models.Proposal) int64 {
	sorted := make([]models.Proposal, len(proposals))
	copy(sorted, proposals)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].IndexCreated < sorted[j].IndexCreated
	})

	tentative := to
	for _, p := range sorted {
		if isClampTrigger(p, variant) {
			if p.IndexCreated < tentative {
				tentative = p.IndexCreated
			}
			break
		}
	}
	return tentative
}

func isClampTrigger(p models.Proposal, variant string) bool {
	if p.State == models.StateActive {
		return true
	}
	if p.State == models.StatePending && variant == SnapshotProposalsVariant {
		return true
	}
	return false
}

// ClampForBacktrack applies Clamp and then enforces that a backtrack job
// (whose "from" may be well below the persisted cursor) never regresses it:
// the worker always takes max(persistedCursor, clamped).
func ClampForBacktrack(persistedCursor, to int64, variant string, proposals []models.Proposal) int64 {
	clamped := Clamp(to, variant, proposals)
	if clamped < persistedCursor {
		return persistedCursor
	}
	return clamped
}
