package ledger

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain uses goleak to verify tests in this package do not leak the
// Store actor goroutine or the expiry scheduler goroutine.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
