package ledger

import "time"

// Transfer moves Amount from DebitAccount to CreditAccount, optionally in
// two phases (pending then post/void).
type Transfer struct {
	ID            TransferID
	DebitAccount  AccountID
	CreditAccount AccountID
	Amount        Amount
	Ledger        uint32
	Code          uint16
	Flags         TransferFlags
	PendingID     TransferID // zero, or the prior pending transfer this posts/voids
	Timeout       time.Duration
	Timestamp     time.Time // server-stamped on acceptance
	UserData      [16]byte  // carries the batch/linked-group id
	Memo          [32]byte

	memoLen int
}

// SetMemo truncates text to 32 bytes, matching the wire limit.
func (t *Transfer) SetMemo(text string) {
	n := copy(t.Memo[:], text)
	t.memoLen = n
}

func (t *Transfer) MemoString() string { return string(t.Memo[:t.memoLen]) }

// State is the transfer's lifecycle state as observed by a caller.
type State uint8

const (
	StatePosted State = iota
	StatePending
	StateVoided
	StateExpired
)

func (s State) String() string {
	switch s {
	case StatePosted:
		return "posted"
	case StatePending:
		return "pending"
	case StateVoided:
		return "voided"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}
