package ledger

import (
	"strings"

	"github.com/google/uuid"
)

// accountNamespace is the fixed UUIDv5 namespace every account id is derived
// under, per spec: 6ba7b810-9dad-11d1-80b4-00c04fd430c8 (the DNS namespace
// from RFC 4122, reused here as the ledger's namespace constant).
var accountNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// AccountID is a 128-bit id deterministically derived from an
// (exchange, asset[, user]) tuple. It is one-way: there is no Decode.
type AccountID uuid.UUID

// Zero reports whether id is the zero value (never a valid account).
func (id AccountID) Zero() bool { return id == AccountID{} }

func (id AccountID) String() string { return uuid.UUID(id).String() }

// NewAccountID computes uuid_v5(ns, lower("[user:]exchange:asset")).
// Inputs are case-insensitive: lowercasing them yields identical ids.
func NewAccountID(exchange, asset string, user ...string) AccountID {
	key := strings.ToLower(exchange) + ":" + strings.ToLower(asset)
	if len(user) > 0 && user[0] != "" {
		key = strings.ToLower(user[0]) + ":" + key
	}
	return AccountID(uuid.NewSHA1(accountNamespace, []byte(key)))
}

// TransferID is a caller-supplied 128-bit transfer identifier. Transfers are
// never auto-assigned an id: the caller supplies one so retries of the same
// logical transfer are detectable as duplicates.
type TransferID uuid.UUID

func (id TransferID) Zero() bool { return id == TransferID{} }

func (id TransferID) String() string { return uuid.UUID(id).String() }

// ParseTransferID parses a textual UUID into a TransferID.
func ParseTransferID(s string) (TransferID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return TransferID{}, err
	}
	return TransferID(u), nil
}

// NewTransferID generates a random (v4) transfer id for callers that don't
// already have an external idempotency key to derive one from.
func NewTransferID() TransferID {
	return TransferID(uuid.New())
}
