package game_test

import (
	"context"
	"errors"
	"testing"

	"chippy/internal/game"
	"chippy/internal/store"
)

func newLedger(t *testing.T) (*game.Ledger, *store.Memory, *game.Account) {
	t.Helper()

	mem := store.NewMemory()
	account, err := mem.Create(context.Background(), "alice")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	return game.NewLedger(mem), mem, account
}

func TestPlaceBet_DebitsAndAppends(t *testing.T) {
	ledger, mem, account := newLedger(t)
	round := game.NewRound("R1")

	receipt, err := ledger.PlaceBet(context.Background(), round, account.ID, 10000, game.CurrencySOL)
	if err != nil {
		t.Fatalf("PlaceBet() error = %v", err)
	}

	if receipt.Balance != 90000 {
		t.Errorf("balance after bet = %v, want 90000", receipt.Balance)
	}
	if receipt.Amount != 10000 || receipt.Currency != game.CurrencySOL {
		t.Errorf("receipt = %+v, want amount 10000 SOL", receipt)
	}

	if len(round.Bets) != 1 {
		t.Fatalf("round has %d bets, want 1", len(round.Bets))
	}
	bet := round.Bets[account.ID]
	if bet == nil || bet.Amount != 10000 || bet.CashedOut {
		t.Errorf("bet = %+v, want active 10000 bet", bet)
	}

	stored, err := mem.Find(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("find account: %v", err)
	}
	if stored.Balances[game.CurrencySOL] != 90000 {
		t.Errorf("stored balance = %v, want 90000", stored.Balances[game.CurrencySOL])
	}
}

func TestPlaceBet_PreconditionOrder(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		prepare func(t *testing.T, ledger *game.Ledger, round *game.Round, account *game.Account)
		userID  func(account *game.Account) string
		amount  game.Cents
		cur     game.Currency
		wantErr error
	}{
		{
			name: "running round rejects bets",
			prepare: func(t *testing.T, ledger *game.Ledger, round *game.Round, account *game.Account) {
				round.Phase = game.PhaseRunning
			},
			userID:  func(a *game.Account) string { return a.ID },
			amount:  10000,
			cur:     game.CurrencySOL,
			wantErr: game.ErrBettingClosed,
		},
		{
			name:    "unsupported currency",
			prepare: func(t *testing.T, ledger *game.Ledger, round *game.Round, account *game.Account) {},
			userID:  func(a *game.Account) string { return a.ID },
			amount:  10000,
			cur:     game.Currency("BTC"),
			wantErr: game.ErrUnsupportedCurrency,
		},
		{
			name:    "unknown user",
			prepare: func(t *testing.T, ledger *game.Ledger, round *game.Round, account *game.Account) {},
			userID:  func(a *game.Account) string { return "nobody" },
			amount:  10000,
			cur:     game.CurrencySOL,
			wantErr: game.ErrUserNotFound,
		},
		{
			name: "rebet after cashout",
			prepare: func(t *testing.T, ledger *game.Ledger, round *game.Round, account *game.Account) {
				placeAndCashout(t, ledger, round, account.ID)
			},
			userID:  func(a *game.Account) string { return a.ID },
			amount:  10000,
			cur:     game.CurrencySOL,
			wantErr: game.ErrAlreadyCashedOutThisRound,
		},
		{
			name:    "insufficient balance",
			prepare: func(t *testing.T, ledger *game.Ledger, round *game.Round, account *game.Account) {},
			userID:  func(a *game.Account) string { return a.ID },
			amount:  200000,
			cur:     game.CurrencySOL,
			wantErr: game.ErrInsufficientBalance,
		},
		{
			name: "insufficient balance wins over duplicate bet",
			prepare: func(t *testing.T, ledger *game.Ledger, round *game.Round, account *game.Account) {
				if _, err := ledger.PlaceBet(context.Background(), round, account.ID, 10000, game.CurrencySOL); err != nil {
					t.Fatalf("setup bet: %v", err)
				}
			},
			userID:  func(a *game.Account) string { return a.ID },
			amount:  200000,
			cur:     game.CurrencySOL,
			wantErr: game.ErrInsufficientBalance,
		},
		{
			name: "duplicate bet",
			prepare: func(t *testing.T, ledger *game.Ledger, round *game.Round, account *game.Account) {
				if _, err := ledger.PlaceBet(context.Background(), round, account.ID, 10000, game.CurrencySOL); err != nil {
					t.Fatalf("setup bet: %v", err)
				}
			},
			userID:  func(a *game.Account) string { return a.ID },
			amount:  5000,
			cur:     game.CurrencySOL,
			wantErr: game.ErrDuplicateBet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger, _, account := newLedger(t)
			round := game.NewRound("R1")
			tt.prepare(t, ledger, round, account)

			_, err := ledger.PlaceBet(ctx, round, tt.userID(account), tt.amount, tt.cur)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("PlaceBet() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPlaceBet_AllowedOutsideRunning(t *testing.T) {
	for _, phase := range []game.Phase{game.PhaseWaiting, game.PhaseCountdown, game.PhaseCrashed} {
		t.Run(string(phase), func(t *testing.T) {
			ledger, _, account := newLedger(t)
			round := game.NewRound("R1")
			round.Phase = phase

			if _, err := ledger.PlaceBet(context.Background(), round, account.ID, 10000, game.CurrencySOL); err != nil {
				t.Errorf("PlaceBet() in %s error = %v", phase, err)
			}

			// Only post-crash bets are tagged for the next round.
			bet := round.Bets[account.ID]
			if got, want := bet.NextRound, phase == game.PhaseCrashed; got != want {
				t.Errorf("NextRound = %v in %s, want %v", got, phase, want)
			}
		})
	}
}

// A non-positive amount must be rejected by the ledger itself: handed to a
// store, it would apply as a credit.
func TestPlaceBet_RejectsNonPositiveAmount(t *testing.T) {
	ledger, mem, account := newLedger(t)
	round := game.NewRound("R1")

	for _, amount := range []game.Cents{0, -10000} {
		if _, err := ledger.PlaceBet(context.Background(), round, account.ID, amount, game.CurrencySOL); !errors.Is(err, game.ErrInvalidAmount) {
			t.Errorf("PlaceBet(%v) error = %v, want %v", amount, err, game.ErrInvalidAmount)
		}
	}

	stored, _ := mem.Find(context.Background(), account.ID)
	if stored.Balances[game.CurrencySOL] != store.DefaultBalance {
		t.Errorf("balance = %v, want untouched %v", stored.Balances[game.CurrencySOL], store.DefaultBalance)
	}
	if len(round.Bets) != 0 {
		t.Errorf("round has %d bets, want 0", len(round.Bets))
	}
}

func TestPlaceBet_FailureLeavesBalanceUntouched(t *testing.T) {
	ledger, mem, account := newLedger(t)
	round := game.NewRound("R1")
	round.Phase = game.PhaseRunning

	_, err := ledger.PlaceBet(context.Background(), round, account.ID, 10000, game.CurrencySOL)
	if !errors.Is(err, game.ErrBettingClosed) {
		t.Fatalf("PlaceBet() error = %v, want %v", err, game.ErrBettingClosed)
	}

	stored, _ := mem.Find(context.Background(), account.ID)
	if stored.Balances[game.CurrencySOL] != store.DefaultBalance {
		t.Errorf("balance = %v, want untouched %v", stored.Balances[game.CurrencySOL], store.DefaultBalance)
	}
	if len(round.Bets) != 0 {
		t.Errorf("round has %d bets, want 0", len(round.Bets))
	}
}

// Scenario: 1000 SOL balance, bet 100, round reaches 2.50, cashout pays
// exactly 250.00 for a final balance of 1150.00.
func TestCashout_PaysAtCurrentMultiplier(t *testing.T) {
	ledger, _, account := newLedger(t)
	round := game.NewRound("R1")

	if _, err := ledger.PlaceBet(context.Background(), round, account.ID, 10000, game.CurrencySOL); err != nil {
		t.Fatalf("PlaceBet() error = %v", err)
	}

	round.Phase = game.PhaseRunning
	round.CurrentBps = 250

	receipt, err := ledger.Cashout(context.Background(), round, account.ID)
	if err != nil {
		t.Fatalf("Cashout() error = %v", err)
	}

	if receipt.Winnings != 25000 {
		t.Errorf("winnings = %v, want 25000", receipt.Winnings)
	}
	if receipt.Balance != 115000 {
		t.Errorf("balance = %v, want 115000", receipt.Balance)
	}
	if receipt.Multiplier != 2.5 {
		t.Errorf("multiplier = %v, want 2.5", receipt.Multiplier)
	}
	if !round.Bets[account.ID].CashedOut {
		t.Error("bet not marked cashed out")
	}
}

func TestCashout_Preconditions(t *testing.T) {
	t.Run("not running", func(t *testing.T) {
		ledger, _, account := newLedger(t)
		round := game.NewRound("R1")

		if _, err := ledger.PlaceBet(context.Background(), round, account.ID, 10000, game.CurrencySOL); err != nil {
			t.Fatalf("PlaceBet() error = %v", err)
		}

		_, err := ledger.Cashout(context.Background(), round, account.ID)
		if !errors.Is(err, game.ErrNotRunning) {
			t.Errorf("Cashout() error = %v, want %v", err, game.ErrNotRunning)
		}
	})

	t.Run("no active bet", func(t *testing.T) {
		ledger, _, account := newLedger(t)
		round := game.NewRound("R1")
		round.Phase = game.PhaseRunning

		_, err := ledger.Cashout(context.Background(), round, account.ID)
		if !errors.Is(err, game.ErrNoActiveBet) {
			t.Errorf("Cashout() error = %v, want %v", err, game.ErrNoActiveBet)
		}
	})

	t.Run("already cashed out", func(t *testing.T) {
		ledger, _, account := newLedger(t)
		round := game.NewRound("R1")
		placeAndCashout(t, ledger, round, account.ID)
		round.Phase = game.PhaseRunning

		_, err := ledger.Cashout(context.Background(), round, account.ID)
		if !errors.Is(err, game.ErrAlreadyCashedOut) {
			t.Errorf("Cashout() error = %v, want %v", err, game.ErrAlreadyCashedOut)
		}
	})
}

// Scenario: the round crashes at 1.37 before the user cashes out. The bet
// stays un-cashed-out and no credit is issued.
func TestCashout_CrashBeforeCashout(t *testing.T) {
	ledger, mem, account := newLedger(t)
	round := game.NewRound("R1")

	if _, err := ledger.PlaceBet(context.Background(), round, account.ID, 10000, game.CurrencySOL); err != nil {
		t.Fatalf("PlaceBet() error = %v", err)
	}

	round.Phase = game.PhaseCrashed
	round.CurrentBps = 137
	round.FinalBps = 137

	_, err := ledger.Cashout(context.Background(), round, account.ID)
	if !errors.Is(err, game.ErrNotRunning) {
		t.Fatalf("Cashout() error = %v, want %v", err, game.ErrNotRunning)
	}

	if round.Bets[account.ID].CashedOut {
		t.Error("bet marked cashed out after crash")
	}

	stored, _ := mem.Find(context.Background(), account.ID)
	if stored.Balances[game.CurrencySOL] != 90000 {
		t.Errorf("balance = %v, want post-debit 90000", stored.Balances[game.CurrencySOL])
	}
}

func placeAndCashout(t *testing.T, ledger *game.Ledger, round *game.Round, userID string) {
	t.Helper()

	savedPhase := round.Phase
	round.Phase = game.PhaseWaiting
	if _, err := ledger.PlaceBet(context.Background(), round, userID, 10000, game.CurrencySOL); err != nil {
		t.Fatalf("setup bet: %v", err)
	}

	round.Phase = game.PhaseRunning
	round.CurrentBps = 150
	if _, err := ledger.Cashout(context.Background(), round, userID); err != nil {
		t.Fatalf("setup cashout: %v", err)
	}
	round.Phase = savedPhase
}
