package errors

import "errors"

// Every ledger rejection is permanent for the given input; none of them is
// retryable and none leaves partially applied state behind.
var (
	ErrInvalidInput      = errors.New("invalid campaign input")
	ErrNotFound          = errors.New("campaign not found")
	ErrOutOfRange        = errors.New("candidate index out of range")
	ErrForbidden         = errors.New("only the campaign owner can perform this action")
	ErrUnauthenticated   = errors.New("identity is required")
	ErrVotingNotOpen     = errors.New("voting is not open")
	ErrNotEligible       = errors.New("identity is not eligible to vote in this campaign")
	ErrAlreadyVoted      = errors.New("identity has already voted")
	ErrInvalidCandidate  = errors.New("invalid candidate index")
	ErrAdmissionRequired = errors.New("admission grant is required")
	ErrAdmissionDenied   = errors.New("admission grant was rejected")
	ErrLedgerNotEmpty    = errors.New("ledger already holds campaigns")
	ErrEventConflict     = errors.New("event id reused with a different payload")
	ErrOutboxNotFound    = errors.New("outbox row not found")
	ErrStreamUnavailable = errors.New("vote stream is not configured")
)
