// Package campaignledger implements the TrueVote campaign ledger inside the
// election-ledger context.
//
// The registry hands out dense campaign ids and owns one record per election.
// Each record serializes its own votes: the admission gate and the tally
// increment run under the record's write lock, with the journal append as a
// commit hook, and events are published after the lock is released.
package campaignledger
