package codec

import (
	"github.com/kengeo/libra/model/messages"
)

// Message codes discriminate the payload kind on the wire. Codes are part of
// the wire contract: a code is never reassigned once released, so removed
// message kinds leave a permanent gap in the code space.
const (
	CodeProposal uint8 = 1
	CodeVote     uint8 = 2

	// code 3 is reserved. It was never released with a payload and must stay
	// unassigned to remain compatible with peers that reject it.
	codeReserved uint8 = 3

	CodeRequestBlock uint8 = 4
	CodeRespondBlock uint8 = 5
	CodeSyncInfo     uint8 = 6
)

// MessageCodeFromInterface returns the correct code based on the underlying
// type of message v.
func MessageCodeFromInterface(v interface{}) (uint8, string, error) {
	switch v.(type) {
	case *messages.Proposal:
		return CodeProposal, "messages.Proposal", nil
	case *messages.Vote:
		return CodeVote, "messages.Vote", nil
	case *messages.RequestBlock:
		return CodeRequestBlock, "messages.RequestBlock", nil
	case *messages.RespondBlock:
		return CodeRespondBlock, "messages.RespondBlock", nil
	case *messages.SyncInfo:
		return CodeSyncInfo, "messages.SyncInfo", nil
	default:
		return 0, "", NewUnknownMsgTypeErr(v)
	}
}

// InterfaceFromMessageCode returns an empty message of the type matching the
// given code, ready to be decoded into.
func InterfaceFromMessageCode(code uint8) (interface{}, string, error) {
	switch code {
	case CodeProposal:
		return &messages.Proposal{}, "messages.Proposal", nil
	case CodeVote:
		return &messages.Vote{}, "messages.Vote", nil
	case CodeRequestBlock:
		return &messages.RequestBlock{}, "messages.RequestBlock", nil
	case CodeRespondBlock:
		return &messages.RespondBlock{}, "messages.RespondBlock", nil
	case CodeSyncInfo:
		return &messages.SyncInfo{}, "messages.SyncInfo", nil
	default:
		// the reserved code deliberately falls through here as well
		return nil, "", NewUnknownMsgCodeErr(code)
	}
}
