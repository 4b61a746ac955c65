package model

import (
	"errors"
	"fmt"

	"github.com/kengeo/libra/model/libra"
)

var (
	// ErrInvalidSignature indicates a signature that does not verify against
	// its claimed author.
	ErrInvalidSignature = errors.New("invalid signature")
)

// NoVoteError indicates that voting for the proposal would break chain
// safety: the block does not extend a branch at least as preferred as the
// one the replica is already committed to. This is a sentinel error and
// expected during normal operation.
type NoVoteError struct {
	Msg string
}

func (e NoVoteError) Error() string { return e.Msg }

// IsNoVoteError returns whether an error is NoVoteError
func IsNoVoteError(err error) bool {
	var e NoVoteError
	return errors.As(err, &e)
}

// StaleProposalError indicates a sign attempt for a round the replica has
// already voted or timed out in. Expected during normal operation whenever
// proposals race with round progression.
type StaleProposalError struct {
	Round            uint64
	HighestVoteRound uint64
}

func (e StaleProposalError) Error() string {
	return fmt.Sprintf("proposal round %d is not above highest vote round %d", e.Round, e.HighestVoteRound)
}

// IsStaleProposalError returns whether an error is StaleProposalError
func IsStaleProposalError(err error) bool {
	var e StaleProposalError
	return errors.As(err, &e)
}

// StaleMessageError indicates a message for a lower epoch or an already
// superseded round. Such messages are silently dropped.
type StaleMessageError struct {
	Msg string
}

func (e StaleMessageError) Error() string { return e.Msg }

func NewStaleMessageErrorf(msg string, args ...interface{}) error {
	return StaleMessageError{Msg: fmt.Sprintf(msg, args...)}
}

// IsStaleMessageError returns whether an error is StaleMessageError
func IsStaleMessageError(err error) bool {
	var e StaleMessageError
	return errors.As(err, &e)
}

// OrphanBlockError indicates that a block (or certificate) references a
// parent that is not in the tree. Non-fatal: the caller triggers retrieval
// and retries once the parent arrives.
type OrphanBlockError struct {
	BlockID  libra.Identifier
	ParentID libra.Identifier
}

func (e OrphanBlockError) Error() string {
	return fmt.Sprintf("block %v references missing parent %v", e.BlockID, e.ParentID)
}

// IsOrphanBlockError returns whether an error is OrphanBlockError
func IsOrphanBlockError(err error) bool {
	var e OrphanBlockError
	return errors.As(err, &e)
}

// MissingBlockError indicates that no block with identifier `BlockID` is known.
type MissingBlockError struct {
	BlockID libra.Identifier
}

func (e MissingBlockError) Error() string {
	return fmt.Sprintf("missing block with ID %v", e.BlockID)
}

// IsMissingBlockError returns whether an error is MissingBlockError
func IsMissingBlockError(err error) bool {
	var e MissingBlockError
	return errors.As(err, &e)
}

// InvalidBlockError indicates that the block with identifier `BlockID` is invalid
type InvalidBlockError struct {
	BlockID libra.Identifier
	Round   uint64
	Err     error
}

func (e InvalidBlockError) Error() string {
	return fmt.Sprintf("invalid block %v at round %d: %s", e.BlockID, e.Round, e.Err.Error())
}

func (e InvalidBlockError) Unwrap() error {
	return e.Err
}

// IsInvalidBlockError returns whether an error is InvalidBlockError
func IsInvalidBlockError(err error) bool {
	var e InvalidBlockError
	return errors.As(err, &e)
}

// InvalidVoteError indicates that the vote with identifier `VoteID` is invalid
type InvalidVoteError struct {
	VoteID libra.Identifier
	Round  uint64
	Err    error
}

func NewInvalidVoteErrorf(vote *libra.Vote, msg string, args ...interface{}) error {
	return InvalidVoteError{
		VoteID: vote.ID(),
		Round:  vote.Round(),
		Err:    fmt.Errorf(msg, args...),
	}
}

func (e InvalidVoteError) Error() string {
	return fmt.Sprintf("invalid vote %v for round %d: %s", e.VoteID, e.Round, e.Err.Error())
}

func (e InvalidVoteError) Unwrap() error {
	return e.Err
}

// IsInvalidVoteError returns whether an error is InvalidVoteError
func IsInvalidVoteError(err error) bool {
	var e InvalidVoteError
	return errors.As(err, &e)
}

// InvalidTimeoutError indicates invalid timeout evidence.
type InvalidTimeoutError struct {
	Author libra.Identifier
	Round  uint64
	Err    error
}

func NewInvalidTimeoutErrorf(timeout *TimeoutObject, msg string, args ...interface{}) error {
	return InvalidTimeoutError{
		Author: timeout.Author,
		Round:  timeout.Round,
		Err:    fmt.Errorf(msg, args...),
	}
}

func (e InvalidTimeoutError) Error() string {
	return fmt.Sprintf("invalid timeout by %v for round %d: %s", e.Author, e.Round, e.Err.Error())
}

func (e InvalidTimeoutError) Unwrap() error {
	return e.Err
}

// IsInvalidTimeoutError returns whether an error is InvalidTimeoutError
func IsInvalidTimeoutError(err error) bool {
	var e InvalidTimeoutError
	return errors.As(err, &e)
}

// InvalidSignerError indicates that the signer is not authorized or unknown
type InvalidSignerError struct {
	err error
}

func NewInvalidSignerError(err error) error {
	return InvalidSignerError{err}
}

func NewInvalidSignerErrorf(msg string, args ...interface{}) error {
	return InvalidSignerError{err: fmt.Errorf(msg, args...)}
}

func (e InvalidSignerError) Error() string { return e.err.Error() }
func (e InvalidSignerError) Unwrap() error { return e.err }

// IsInvalidSignerError returns whether err is an InvalidSignerError
func IsInvalidSignerError(err error) bool {
	var e InvalidSignerError
	return errors.As(err, &e)
}

// DoubleVoteError indicates that a validator has voted for two different
// blocks in the same round. Both votes are carried so the caller can hand
// them to accountability machinery.
type DoubleVoteError struct {
	FirstVote       *libra.Vote
	ConflictingVote *libra.Vote
	err             error
}

func (e DoubleVoteError) Error() string {
	return e.err.Error()
}

func (e DoubleVoteError) Unwrap() error {
	return e.err
}

func NewDoubleVoteErrorf(firstVote, conflictingVote *libra.Vote, msg string, args ...interface{}) error {
	return DoubleVoteError{
		FirstVote:       firstVote,
		ConflictingVote: conflictingVote,
		err:             fmt.Errorf(msg, args...),
	}
}

// IsDoubleVoteError returns whether an error is DoubleVoteError
func IsDoubleVoteError(err error) bool {
	var e DoubleVoteError
	return errors.As(err, &e)
}

// AsDoubleVoteError determines whether the given error is a DoubleVoteError
// (potentially wrapped). It follows the same semantics as a checked type cast.
func AsDoubleVoteError(err error) (*DoubleVoteError, bool) {
	var e DoubleVoteError
	ok := errors.As(err, &e)
	if ok {
		return &e, true
	}
	return nil, false
}

// DuplicatedSignerError indicates that a certificate lists a signature from
// the same node ID more than once.
type DuplicatedSignerError struct {
	err error
}

func NewDuplicatedSignerErrorf(msg string, args ...interface{}) error {
	return DuplicatedSignerError{err: fmt.Errorf(msg, args...)}
}

func (e DuplicatedSignerError) Error() string { return e.err.Error() }
func (e DuplicatedSignerError) Unwrap() error { return e.err }

// IsDuplicatedSignerError returns whether err is a DuplicatedSignerError
func IsDuplicatedSignerError(err error) bool {
	var e DuplicatedSignerError
	return errors.As(err, &e)
}

// InsufficientSignaturesError indicates that a certificate carries less
// voting power than the quorum threshold.
type InsufficientSignaturesError struct {
	err error
}

func NewInsufficientSignaturesErrorf(msg string, args ...interface{}) error {
	return InsufficientSignaturesError{err: fmt.Errorf(msg, args...)}
}

func (e InsufficientSignaturesError) Error() string { return e.err.Error() }
func (e InsufficientSignaturesError) Unwrap() error { return e.err }

// IsInsufficientSignaturesError returns whether err is an InsufficientSignaturesError
func IsInsufficientSignaturesError(err error) bool {
	var e InsufficientSignaturesError
	return errors.As(err, &e)
}

// SyncStallError indicates that block retrieval exhausted its retry budget
// without repairing the gap. Recoverable: the engine stays live and retries
// on the next summary exchange.
type SyncStallError struct {
	BlockID  libra.Identifier
	Attempts uint
}

func (e SyncStallError) Error() string {
	return fmt.Sprintf("block retrieval for %v stalled after %d attempts", e.BlockID, e.Attempts)
}

// IsSyncStallError returns whether an error is SyncStallError
func IsSyncStallError(err error) bool {
	var e SyncStallError
	return errors.As(err, &e)
}
