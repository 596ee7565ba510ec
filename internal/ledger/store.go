package ledger

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	xlog "github.com/luxfi/smartvestor/log"
)

// storedTransfer is a committed Transfer plus its lifecycle state.
type storedTransfer struct {
	Transfer
	state State
}

// Store is the in-memory double-entry ledger. It is an
// isolated single-writer actor: every public method enqueues a closure onto
// an inbox processed by one goroutine in submission order, so callers never
// observe a partially-applied batch.
type Store struct {
	log    xlog.Logger
	scales *ScaleRegistry

	inbox  chan func()
	done   chan struct{}
	grp    *errgroup.Group
	cancel context.CancelFunc

	accounts     map[AccountID]*Account
	transfers    map[TransferID]*storedTransfer
	pendingIndex map[TransferID]*storedTransfer

	breaker  *CircuitBreaker
	throttle *BackpressureThrottle
	expiry   *expiryScheduler
}

// NewStore constructs a Store bound to the given frozen-or-not scale
// registry. Call Start to launch the actor goroutine.
func NewStore(scales *ScaleRegistry, logger xlog.Logger) *Store {
	if logger == nil {
		logger = xlog.Root()
	}
	s := &Store{
		log:          logger,
		scales:       scales,
		inbox:        make(chan func(), 64),
		done:         make(chan struct{}),
		accounts:     make(map[AccountID]*Account),
		transfers:    make(map[TransferID]*storedTransfer),
		pendingIndex: make(map[TransferID]*storedTransfer),
	}
	s.expiry = newExpiryScheduler(s)
	return s
}

// SetBreaker wires the circuit breaker; writes are gated by
// breaker.Allow() before any CreateTransfers call is processed.
func (s *Store) SetBreaker(b *CircuitBreaker) { s.breaker = b }

// SetThrottle wires the backpressure throttle consulted before ingest.
func (s *Store) SetThrottle(t *BackpressureThrottle) { s.throttle = t }

// Start launches the actor loop and the pending-transfer expiry scheduler.
func (s *Store) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	g, gctx := errgroup.WithContext(ctx)
	s.grp = g
	g.Go(func() error {
		s.run(gctx)
		return nil
	})
	s.expiry.start(gctx, g)
}

// Close stops the actor loop and waits for in-flight work to settle.
func (s *Store) Close() error {
	close(s.done)
	if s.cancel != nil {
		s.cancel()
	}
	if s.grp != nil {
		return s.grp.Wait()
	}
	return nil
}

func (s *Store) run(ctx context.Context) {
	for {
		select {
		case job := <-s.inbox:
			job()
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// do submits fn to the actor and blocks until it has run, preserving
// submission order across all public Store methods.
func (s *Store) do(fn func()) {
	reply := make(chan struct{})
	s.inbox <- func() {
		fn()
		close(reply)
	}
	<-reply
}

// CreateAccounts creates each account once; duplicates fail account_exists.
// The returned []error is positional: nil at index i means accts[i] succeeded.
func (s *Store) CreateAccounts(accts []Account) []error {
	results := make([]error, len(accts))
	s.do(func() {
		for i := range accts {
			a := accts[i]
			if a.ID.Zero() {
				results[i] = ErrInvalidTransfer
				continue
			}
			if _, exists := s.accounts[a.ID]; exists {
				results[i] = ErrAccountExists
				continue
			}
			stored := a
			s.accounts[a.ID] = &stored
		}
	})
	return results
}

// LookupAccounts returns the current account state for each id, or nil for
// ids that don't exist.
func (s *Store) LookupAccounts(ids []AccountID) []*Account {
	out := make([]*Account, len(ids))
	s.do(func() {
		for i, id := range ids {
			if a, ok := s.accounts[id]; ok {
				cp := *a
				out[i] = &cp
			}
		}
	})
	return out
}

// LookupTransfers returns a copy of the stored transfer for each id, or nil
// for unknown ids. The lifecycle state (pending/posted/voided/expired) is
// not part of the returned Transfer.
func (s *Store) LookupTransfers(ids []TransferID) []*Transfer {
	out := make([]*Transfer, len(ids))
	s.do(func() {
		for i, id := range ids {
			if t, ok := s.transfers[id]; ok {
				cp := t.Transfer
				out[i] = &cp
			}
		}
	})
	return out
}

// CreateTransfers applies batch atomically within each linked group.
// The returned []error is positional (nil = success); the returned error
// is a batch-level gate failure (ErrBreakerOpen/ErrBackpressure) raised
// before any element is touched.
func (s *Store) CreateTransfers(batch []Transfer) ([]error, error) {
	if s.throttle != nil && s.throttle.Throttled() {
		return nil, ErrBackpressure
	}
	if s.breaker != nil && !s.breaker.Allow() {
		return nil, ErrBreakerOpen
	}

	results := make([]error, len(batch))
	s.do(func() {
		s.applyBatch(batch, results)
	})
	if s.breaker != nil {
		s.breaker.RecordResult(batchSucceeded(results))
	}
	return results, nil
}

func batchSucceeded(results []error) bool {
	for _, e := range results {
		if e != nil && e != ErrLinkedEventFailed {
			return false
		}
	}
	return true
}

// undoEntry reverses one account mutation applied during the current
// linked group, so a later failure in the group can roll the prefix back.
type undoEntry func()

func (s *Store) applyBatch(batch []Transfer, results []error) {
	seenInBatch := make(map[TransferID]bool, len(batch))

	groupStart := 0
	var undo []undoEntry

	rollbackGroup := func(from, to int) {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		undo = undo[:0]
		for i := from; i <= to; i++ {
			if results[i] == nil {
				results[i] = ErrLinkedEventFailed
			}
			delete(seenInBatch, batch[i].ID)
			delete(s.transfers, batch[i].ID)
			delete(s.pendingIndex, batch[i].ID)
		}
	}

	for i := range batch {
		t := batch[i]
		err := s.validateAndApply(t, seenInBatch, &undo)
		results[i] = err
		seenInBatch[t.ID] = true

		linked := t.Flags.Has(FlagTransferLinked)
		if !linked {
			if groupFailedInRange(results, groupStart, i) {
				rollbackGroup(groupStart, i)
			} else {
				undo = undo[:0] // group committed; its mutations are now permanent
			}
			groupStart = i + 1
		}
	}
	// a trailing run of LINKED transfers with no terminator never commits.
	if groupStart < len(batch) {
		rollbackGroup(groupStart, len(batch)-1)
	}
}

func groupFailedInRange(results []error, from, to int) bool {
	for i := from; i <= to; i++ {
		if results[i] != nil {
			return true
		}
	}
	return false
}

func (s *Store) validateAndApply(t Transfer, seenInBatch map[TransferID]bool, undo *[]undoEntry) error {
	if t.ID.Zero() || t.DebitAccount.Zero() || t.CreditAccount.Zero() {
		return ErrInvalidTransfer
	}
	if t.DebitAccount == t.CreditAccount {
		return ErrInvalidTransfer
	}
	if _, exists := s.transfers[t.ID]; exists || seenInBatch[t.ID] {
		return ErrDuplicateTransfer
	}

	debit, ok := s.accounts[t.DebitAccount]
	if !ok {
		return ErrAccountNotFound
	}
	credit, ok := s.accounts[t.CreditAccount]
	if !ok {
		return ErrAccountNotFound
	}
	if t.Amount.IsZero() {
		return ErrInvalidAmount
	}
	if s.scales != nil {
		ds, dok := s.scales.Scale(debit.Asset)
		cs, cok := s.scales.Scale(credit.Asset)
		if dok && cok && ds != cs {
			return ErrInvalidAmount
		}
	}

	switch {
	case t.Flags.Has(FlagPostPending):
		return s.applyPostPending(t, debit, credit, undo)
	case t.Flags.Has(FlagVoidPending):
		return s.applyVoidPending(t, debit, credit, undo)
	case t.Flags.Has(FlagPending):
		return s.applyPending(t, debit, credit, undo)
	default:
		return s.applyPosted(t, debit, credit, undo)
	}
}

func (s *Store) applyPosted(t Transfer, debit, credit *Account, undo *[]undoEntry) error {
	if err := checkConstraints(debit, credit, t.Amount, Zero); err != nil {
		return err
	}
	debit.DebitsAccepted = debit.DebitsAccepted.Add(t.Amount)
	credit.CreditsAccepted = credit.CreditsAccepted.Add(t.Amount)
	*undo = append(*undo, func() {
		debit.DebitsAccepted = debit.DebitsAccepted.Sub(t.Amount)
		credit.CreditsAccepted = credit.CreditsAccepted.Sub(t.Amount)
	})
	s.commit(t, StatePosted)
	return nil
}

func (s *Store) applyPending(t Transfer, debit, credit *Account, undo *[]undoEntry) error {
	if err := checkConstraints(debit, credit, Zero, t.Amount); err != nil {
		return err
	}
	debit.DebitsReserved = debit.DebitsReserved.Add(t.Amount)
	credit.CreditsReserved = credit.CreditsReserved.Add(t.Amount)
	*undo = append(*undo, func() {
		debit.DebitsReserved = debit.DebitsReserved.Sub(t.Amount)
		credit.CreditsReserved = credit.CreditsReserved.Sub(t.Amount)
	})
	stored := s.commit(t, StatePending)
	s.pendingIndex[t.ID] = stored
	if t.Timeout > 0 {
		s.expiry.schedule(t.ID, stored.Timestamp.Add(t.Timeout))
	}
	*undo = append(*undo, func() {
		delete(s.pendingIndex, t.ID)
		s.expiry.cancel(t.ID)
	})
	return nil
}

func (s *Store) applyPostPending(t Transfer, debit, credit *Account, undo *[]undoEntry) error {
	pending, ok := s.pendingIndex[t.PendingID]
	if !ok || pending.state != StatePending {
		return ErrInvalidTransfer
	}
	if pending.DebitAccount != t.DebitAccount || pending.CreditAccount != t.CreditAccount {
		return ErrInvalidTransfer
	}
	if t.Amount.GreaterThan(pending.Amount) {
		return ErrInvalidTransfer
	}
	reserved := pending.Amount
	debit.DebitsReserved = debit.DebitsReserved.Sub(reserved)
	credit.CreditsReserved = credit.CreditsReserved.Sub(reserved)
	if err := checkConstraints(debit, credit, t.Amount, Zero); err != nil {
		debit.DebitsReserved = debit.DebitsReserved.Add(reserved)
		credit.CreditsReserved = credit.CreditsReserved.Add(reserved)
		return err
	}
	debit.DebitsAccepted = debit.DebitsAccepted.Add(t.Amount)
	credit.CreditsAccepted = credit.CreditsAccepted.Add(t.Amount)
	*undo = append(*undo, func() {
		debit.DebitsReserved = debit.DebitsReserved.Add(reserved)
		credit.CreditsReserved = credit.CreditsReserved.Add(reserved)
		debit.DebitsAccepted = debit.DebitsAccepted.Sub(t.Amount)
		credit.CreditsAccepted = credit.CreditsAccepted.Sub(t.Amount)
	})
	pending.state = StatePosted
	delete(s.pendingIndex, t.PendingID)
	s.expiry.cancel(t.PendingID)
	*undo = append(*undo, func() {
		pending.state = StatePending
		s.pendingIndex[t.PendingID] = pending
	})
	s.commit(t, StatePosted)
	return nil
}

func (s *Store) applyVoidPending(t Transfer, debit, credit *Account, undo *[]undoEntry) error {
	pending, ok := s.pendingIndex[t.PendingID]
	if !ok || pending.state != StatePending {
		return ErrInvalidTransfer
	}
	if pending.DebitAccount != t.DebitAccount || pending.CreditAccount != t.CreditAccount {
		return ErrInvalidTransfer
	}
	reserved := pending.Amount
	debit.DebitsReserved = debit.DebitsReserved.Sub(reserved)
	credit.CreditsReserved = credit.CreditsReserved.Sub(reserved)
	*undo = append(*undo, func() {
		debit.DebitsReserved = debit.DebitsReserved.Add(reserved)
		credit.CreditsReserved = credit.CreditsReserved.Add(reserved)
	})
	pending.state = StateVoided
	delete(s.pendingIndex, t.PendingID)
	s.expiry.cancel(t.PendingID)
	*undo = append(*undo, func() {
		pending.state = StatePending
		s.pendingIndex[t.PendingID] = pending
	})
	s.commit(t, StateVoided)
	return nil
}

func (s *Store) commit(t Transfer, state State) *storedTransfer {
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}
	stored := &storedTransfer{Transfer: t, state: state}
	s.transfers[t.ID] = stored
	return stored
}

// checkConstraints enforces the DEBITS_MUST_NOT_EXCEED_CREDITS /
// CREDITS_MUST_NOT_EXCEED_DEBITS flags before any side effect, keeping
// available balance from going negative.
func checkConstraints(debit, credit *Account, acceptedAmount, reservedAmount Amount) error {
	if debit.Flags.Has(FlagDebitsMustNotExceedCredits) {
		wouldDebitAccepted := debit.DebitsAccepted.Add(acceptedAmount)
		wouldDebitReserved := debit.DebitsReserved.Add(reservedAmount)
		total := wouldDebitAccepted.Add(wouldDebitReserved)
		if total.GreaterThan(debit.CreditsAccepted) {
			if !acceptedAmount.IsZero() {
				return ErrInsufficientFunds
			}
			return ErrExceedsCredits
		}
	}
	if credit.Flags.Has(FlagCreditsMustNotExceedDebits) {
		wouldCreditAccepted := credit.CreditsAccepted.Add(acceptedAmount)
		wouldCreditReserved := credit.CreditsReserved.Add(reservedAmount)
		total := wouldCreditAccepted.Add(wouldCreditReserved)
		if total.GreaterThan(credit.DebitsAccepted) {
			if !acceptedAmount.IsZero() {
				return ErrInsufficientFunds
			}
			return ErrExceedsDebits
		}
	}
	return nil
}

// expirePending is invoked on the actor by the expiry scheduler when a
// pending transfer's timeout elapses without a post/void; reserved amounts
// are released without an explicit void.
func (s *Store) expirePending(id TransferID) {
	s.do(func() {
		pending, ok := s.pendingIndex[id]
		if !ok || pending.state != StatePending {
			return
		}
		debit := s.accounts[pending.DebitAccount]
		credit := s.accounts[pending.CreditAccount]
		if debit != nil {
			debit.DebitsReserved = debit.DebitsReserved.Sub(pending.Amount)
		}
		if credit != nil {
			credit.CreditsReserved = credit.CreditsReserved.Sub(pending.Amount)
		}
		pending.state = StateExpired
		delete(s.pendingIndex, id)
		s.log.Debug("pending transfer expired", "id", id.String())
	})
}
