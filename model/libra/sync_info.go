package libra

// SyncInfo summarizes a replica's certified state: the highest quorum
// certificate it knows, the quorum certificate carrying the highest
// committed ledger info, and optionally the highest timeout certificate.
// Replicas exchange these summaries to detect when a peer has fallen behind.
type SyncInfo struct {
	HighestQuorumCert  *QuorumCert         `cbor:"1,keyasint"`
	HighestCommitCert  *QuorumCert         `cbor:"2,keyasint"`
	HighestTimeoutCert *TimeoutCertificate `cbor:"3,keyasint,omitempty"`
}

// Epoch returns the epoch the summary refers to.
func (s *SyncInfo) Epoch() uint64 {
	if s.HighestQuorumCert == nil {
		return 0
	}
	return s.HighestQuorumCert.Epoch()
}

// HighestCertifiedRound returns the round of the highest quorum certificate.
func (s *SyncInfo) HighestCertifiedRound() uint64 {
	if s.HighestQuorumCert == nil {
		return 0
	}
	return s.HighestQuorumCert.Round()
}

// HighestCommittedRound returns the round of the highest committed block.
func (s *SyncInfo) HighestCommittedRound() uint64 {
	if s.HighestCommitCert == nil {
		return 0
	}
	return s.HighestCommitCert.SignedLedgerInfo.LedgerInfo.CommitInfo.Round
}

// HighestTimeoutRound returns the round of the highest timeout certificate,
// or zero if the summary carries none.
func (s *SyncInfo) HighestTimeoutRound() uint64 {
	if s.HighestTimeoutCert == nil {
		return 0
	}
	return s.HighestTimeoutCert.Round
}

// HighestRound is the ordering key for summaries within an epoch: the
// maximum over the certified, committed and timed-out rounds.
func (s *SyncInfo) HighestRound() uint64 {
	highest := s.HighestCertifiedRound()
	if r := s.HighestCommittedRound(); r > highest {
		highest = r
	}
	if r := s.HighestTimeoutRound(); r > highest {
		highest = r
	}
	return highest
}

// IsNewerThan returns whether this summary is strictly newer than the other,
// ordered by epoch first and the highest round second.
func (s *SyncInfo) IsNewerThan(other *SyncInfo) bool {
	if s.Epoch() != other.Epoch() {
		return s.Epoch() > other.Epoch()
	}
	return s.HighestRound() > other.HighestRound()
}
