package game

import (
	"context"
	"fmt"
	"time"
)

// Ledger validates and applies bet and cashout commands against a round and
// the account store. It has no locking of its own: the scheduler invokes it
// from the single goroutine that owns the round, which is what makes the
// check-then-flip on a bet's CashedOut flag atomic.
type Ledger struct {
	accounts AccountStore
}

func NewLedger(accounts AccountStore) *Ledger {
	return &Ledger{accounts: accounts}
}

// PlaceBet debits the account and appends a bet to the round. Preconditions
// run in a fixed order; the first failure wins and nothing is applied.
// Bets are open in every phase except RUNNING.
func (l *Ledger) PlaceBet(ctx context.Context, round *Round, userID string, amount Cents, currency Currency) (BetReceipt, error) {
	if round.Phase == PhaseRunning {
		return BetReceipt{}, ErrBettingClosed
	}

	// The balance invariant lives here, not in the transport: a non-positive
	// amount would turn the debit into a credit.
	if amount <= 0 {
		return BetReceipt{}, ErrInvalidAmount
	}

	if !currency.Supported() {
		return BetReceipt{}, ErrUnsupportedCurrency
	}

	account, err := l.accounts.Find(ctx, userID)
	if err != nil {
		return BetReceipt{}, fmt.Errorf("find account: %w", err)
	}

	existing := round.Bets[userID]
	if existing != nil && existing.CashedOut {
		return BetReceipt{}, ErrAlreadyCashedOutThisRound
	}

	if account.Balances[currency] < amount {
		return BetReceipt{}, ErrInsufficientBalance
	}

	if existing != nil {
		return BetReceipt{}, ErrDuplicateBet
	}

	balance, err := l.accounts.Debit(ctx, userID, currency, amount)
	if err != nil {
		return BetReceipt{}, fmt.Errorf("debit account: %w", err)
	}

	// A bet placed after the crash belongs to the next round; the scheduler
	// carries it over when the round turns.
	round.Bets[userID] = &Bet{
		UserID:    userID,
		Amount:    amount,
		Currency:  currency,
		NextRound: round.Phase == PhaseCrashed,
		PlacedAt:  time.Now(),
	}

	return BetReceipt{Currency: currency, Amount: amount, Balance: balance}, nil
}

// Cashout locks in winnings at the round's current multiplier and flips the
// bet's CashedOut flag. The flag only flips after the credit succeeds, so a
// failed credit leaves the bet intact instead of half-applied.
func (l *Ledger) Cashout(ctx context.Context, round *Round, userID string) (CashoutReceipt, error) {
	if round.Phase != PhaseRunning {
		return CashoutReceipt{}, ErrNotRunning
	}

	bet := round.Bets[userID]
	if bet == nil {
		return CashoutReceipt{}, ErrNoActiveBet
	}

	if bet.CashedOut {
		return CashoutReceipt{}, ErrAlreadyCashedOut
	}

	winnings := WinningsAt(bet.Amount, round.CurrentBps)

	balance, err := l.accounts.Credit(ctx, userID, bet.Currency, winnings)
	if err != nil {
		return CashoutReceipt{}, fmt.Errorf("credit account: %w", err)
	}

	bet.CashedOut = true

	return CashoutReceipt{
		Currency:   bet.Currency,
		Winnings:   winnings,
		Balance:    balance,
		Multiplier: float64(round.CurrentBps) / 100,
	}, nil
}
