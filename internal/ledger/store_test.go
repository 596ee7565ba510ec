package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	scales := NewScaleRegistry()
	require.NoError(t, scales.Set("usd", 2, false))
	require.NoError(t, scales.Set("btc", 8, false))
	s := NewStore(scales, nil)
	s.Start(context.Background())
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func mustAccount(flags AccountFlags, asset string) Account {
	return Account{ID: NewAccountID("kraken", asset, "alice"), Asset: asset, Flags: flags}
}

func TestCreateTransfersConservesValue(t *testing.T) {
	s := newTestStore(t)

	exchange := mustAccount(0, "usd")
	exchange.ID = NewAccountID("kraken", "usd")
	user := mustAccount(FlagDebitsMustNotExceedCredits, "usd")
	user.CreditsAccepted = NewAmount(10_000)

	errs := s.CreateAccounts([]Account{exchange, user})
	for _, e := range errs {
		require.NoError(t, e)
	}

	transfer := Transfer{
		ID:            NewTransferID(),
		DebitAccount:  user.ID,
		CreditAccount: exchange.ID,
		Amount:        NewAmount(2_500),
	}
	results, batchErr := s.CreateTransfers([]Transfer{transfer})
	require.NoError(t, batchErr)
	require.NoError(t, results[0])

	accts := s.LookupAccounts([]AccountID{user.ID, exchange.ID})
	require.False(t, accts[0].Balance().Negative)
	require.Equal(t, "7500", accts[0].Balance().Magnitude.String())
	require.Equal(t, "2500", accts[1].Balance().Magnitude.String())
}

func TestCreateTransfersLinkedGroupRollsBackAtomically(t *testing.T) {
	s := newTestStore(t)

	exchange := mustAccount(0, "usd")
	exchange.ID = NewAccountID("kraken", "usd")
	poor := mustAccount(FlagDebitsMustNotExceedCredits, "usd")
	poor.CreditsAccepted = NewAmount(100)
	fee := mustAccount(0, "usd")
	fee.ID = NewAccountID("kraken", "usd", "fee")

	errs := s.CreateAccounts([]Account{exchange, poor, fee})
	for _, e := range errs {
		require.NoError(t, e)
	}

	first := Transfer{
		ID:            NewTransferID(),
		DebitAccount:  poor.ID,
		CreditAccount: exchange.ID,
		Amount:        NewAmount(50),
		Flags:         FlagTransferLinked,
	}
	second := Transfer{
		ID:            NewTransferID(),
		DebitAccount:  poor.ID,
		CreditAccount: fee.ID,
		Amount:        NewAmount(500), // exceeds available balance
	}

	results, batchErr := s.CreateTransfers([]Transfer{first, second})
	require.NoError(t, batchErr)
	require.ErrorIs(t, results[0], ErrLinkedEventFailed)
	require.ErrorIs(t, results[1], ErrInsufficientFunds)

	accts := s.LookupAccounts([]AccountID{poor.ID, exchange.ID, fee.ID})
	require.Equal(t, "100", accts[0].Balance().Magnitude.String())
	require.False(t, accts[0].Balance().Negative)
	require.True(t, accts[1].Balance().Magnitude.IsZero())
	require.True(t, accts[2].Balance().Magnitude.IsZero())
}

func TestCreateTransfersDuplicateRejected(t *testing.T) {
	s := newTestStore(t)
	a := mustAccount(0, "usd")
	b := mustAccount(0, "usd")
	b.ID = NewAccountID("kraken", "usd", "bob")
	require.NoError(t, errFirst(s.CreateAccounts([]Account{a, b})))

	transfer := Transfer{ID: NewTransferID(), DebitAccount: a.ID, CreditAccount: b.ID, Amount: NewAmount(1)}
	results, _ := s.CreateTransfers([]Transfer{transfer})
	require.NoError(t, results[0])

	results, _ = s.CreateTransfers([]Transfer{transfer})
	require.ErrorIs(t, results[0], ErrDuplicateTransfer)
}

func TestPendingTransferPostThenVoidRejected(t *testing.T) {
	s := newTestStore(t)
	a := mustAccount(0, "usd")
	b := mustAccount(0, "usd")
	b.ID = NewAccountID("kraken", "usd", "bob")
	require.NoError(t, errFirst(s.CreateAccounts([]Account{a, b})))

	pendingID := NewTransferID()
	pending := Transfer{ID: pendingID, DebitAccount: a.ID, CreditAccount: b.ID, Amount: NewAmount(1_000), Flags: FlagPending}
	results, _ := s.CreateTransfers([]Transfer{pending})
	require.NoError(t, results[0])

	post := Transfer{
		ID: NewTransferID(), DebitAccount: a.ID, CreditAccount: b.ID,
		Amount: NewAmount(1_000), Flags: FlagPostPending, PendingID: pendingID,
	}
	results, _ = s.CreateTransfers([]Transfer{post})
	require.NoError(t, results[0])

	void := Transfer{
		ID: NewTransferID(), DebitAccount: a.ID, CreditAccount: b.ID,
		Amount: NewAmount(1_000), Flags: FlagVoidPending, PendingID: pendingID,
	}
	results, _ = s.CreateTransfers([]Transfer{void})
	require.ErrorIs(t, results[0], ErrInvalidTransfer)
}

func TestPendingTransferExpires(t *testing.T) {
	s := newTestStore(t)
	a := mustAccount(0, "usd")
	b := mustAccount(0, "usd")
	b.ID = NewAccountID("kraken", "usd", "bob")
	require.NoError(t, errFirst(s.CreateAccounts([]Account{a, b})))

	pendingID := NewTransferID()
	pending := Transfer{
		ID: pendingID, DebitAccount: a.ID, CreditAccount: b.ID,
		Amount: NewAmount(1_000), Flags: FlagPending, Timeout: 20 * time.Millisecond,
	}
	results, _ := s.CreateTransfers([]Transfer{pending})
	require.NoError(t, results[0])

	require.Eventually(t, func() bool {
		transfers := s.LookupTransfers([]TransferID{pendingID})
		accts := s.LookupAccounts([]AccountID{a.ID})
		return accts[0].DebitsReserved.IsZero() && transfers[0] != nil
	}, time.Second, 5*time.Millisecond)
}

func errFirst(errs []error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}
