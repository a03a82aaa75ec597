// Package store owns all chat-session state: the ordered session mapping,
// the active-session reference, and the busy flags guarding duplicate
// same-kind requests.
//
// Every operation follows the same shape: validate preconditions locally,
// apply an optimistic mutation where the design calls for one, issue the
// remote request outside the lock, then reconcile the authoritative response
// by full replacement. The server is the source of truth; reconciliation is
// last-write-wins, never a merge.
//
// An identity epoch counter makes logout safe against in-flight requests:
// each operation captures the epoch before its round trip, and a response
// arriving after the epoch moved is discarded instead of repopulating
// cleared state.
package store
