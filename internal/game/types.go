package game

import (
	"context"
	"time"
)

// Phase is the scheduler-owned lifecycle state of a round. The cycle is
// WAITING -> COUNTDOWN -> RUNNING -> CRASHED, then a fresh round in WAITING.
type Phase string

const (
	PhaseWaiting   Phase = "WAITING"
	PhaseCountdown Phase = "COUNTDOWN"
	PhaseRunning   Phase = "RUNNING"
	PhaseCrashed   Phase = "CRASHED"
)

type Currency string

const (
	CurrencySOL    Currency = "SOL"
	CurrencyCHIPPY Currency = "CHIPPY"
	CurrencyDEMO   Currency = "DEMO"
)

var SupportedCurrencies = []Currency{CurrencySOL, CurrencyCHIPPY, CurrencyDEMO}

func (c Currency) Supported() bool {
	for _, s := range SupportedCurrencies {
		if c == s {
			return true
		}
	}
	return false
}

// Bet is one wager inside a round. A user holds at most one bet per round,
// and CashedOut flips false -> true exactly once.
type Bet struct {
	UserID    string
	Amount    Cents
	Currency  Currency
	CashedOut bool
	NextRound bool // placed after the crash; carried into the following round
	PlacedAt  time.Time
}

// Round is the shared, time-driven state the scheduler owns. Only the
// scheduler goroutine mutates it; everyone else reads through Snapshot.
//
// Multipliers are kept in basis points (1.00 = 100) so the climb and the
// crash comparison are exact integer arithmetic.
type Round struct {
	ID         string
	StartTime  time.Time
	Phase      Phase
	CurrentBps int64
	CrashBps   int64 // hidden from clients until crash
	FinalBps   int64 // set when the round crashes
	Bets       map[string]*Bet

	// Seed material behind CrashBps. Commitment is public from round open;
	// the seeds stay hidden until the crash reveals them.
	ServerSeed string
	ClientSeed string
	Nonce      int
	Commitment string
}

func NewRound(id string) *Round {
	return &Round{
		ID:         id,
		StartTime:  time.Now(),
		Phase:      PhaseWaiting,
		CurrentBps: 100,
		Bets:       make(map[string]*Bet),
	}
}

// Record returns an archival copy of the round, detached from the live bet
// map so persistence can run off the scheduler goroutine.
func (r *Round) Record() RoundRecord {
	rec := RoundRecord{
		ID:         r.ID,
		StartTime:  r.StartTime,
		CrashedAt:  time.Now(),
		CrashPoint: float64(r.FinalBps) / 100,
		ServerSeed: r.ServerSeed,
		ClientSeed: r.ClientSeed,
		Nonce:      r.Nonce,
		Commitment: r.Commitment,
		Bets:       make([]BetRecord, 0, len(r.Bets)),
	}
	for _, b := range r.Bets {
		rec.Bets = append(rec.Bets, BetRecord{
			UserID:    b.UserID,
			Amount:    b.Amount,
			Currency:  b.Currency,
			CashedOut: b.CashedOut,
			PlacedAt:  b.PlacedAt,
		})
	}
	return rec
}

// RoundRecord is the persisted outcome of a finished round, seeds included
// so any archived round stays verifiable.
type RoundRecord struct {
	ID         string
	StartTime  time.Time
	CrashedAt  time.Time
	CrashPoint float64
	ServerSeed string
	ClientSeed string
	Nonce      int
	Commitment string
	Bets       []BetRecord
}

type BetRecord struct {
	UserID    string
	Amount    Cents
	Currency  Currency
	CashedOut bool
	PlacedAt  time.Time
}

// RoundSummary is the client-facing history entry. The revealed seeds let
// anyone replay the round through the verify endpoint.
type RoundSummary struct {
	RoundID    string    `json:"round_id"`
	CrashPoint float64   `json:"crash_point"`
	CrashedAt  time.Time `json:"crashed_at"`
	ServerSeed string    `json:"server_seed"`
	ClientSeed string    `json:"client_seed"`
	Nonce      int       `json:"nonce"`
}

// Account holds per-currency balances for one user. Balances for unset
// currencies default to zero.
type Account struct {
	ID       string
	Username string
	Balances map[Currency]Cents
}

// AccountStore is the external balance authority. Debit and Credit must be
// atomic: a torn read-modify-write on a balance is never acceptable, even
// when the store is hit outside the scheduler goroutine.
type AccountStore interface {
	Find(ctx context.Context, userID string) (*Account, error)
	Create(ctx context.Context, username string) (*Account, error)
	Debit(ctx context.Context, userID string, currency Currency, amount Cents) (Cents, error)
	Credit(ctx context.Context, userID string, currency Currency, amount Cents) (Cents, error)
}

// RoundStore archives finished rounds. Save failures must never block the
// round cycle; the scheduler logs and moves on.
type RoundStore interface {
	Save(ctx context.Context, rec RoundRecord) error
}

// CrashDraw is one crash point together with the seed material that
// produced it.
type CrashDraw struct {
	Crash      float64
	ServerSeed string
	ClientSeed string
	Nonce      int
}

// CrashSource draws the crash point for a round. The contract is a crash
// value >= 1; anything below is rejected by the scheduler and redrawn.
type CrashSource interface {
	Draw() CrashDraw
}

// BetReceipt acknowledges a successful PlaceBet.
type BetReceipt struct {
	Currency Currency
	Amount   Cents
	Balance  Cents
}

// CashoutReceipt acknowledges a successful Cashout. Multiplier is the value
// the winnings were locked at.
type CashoutReceipt struct {
	Currency   Currency
	Winnings   Cents
	Balance    Cents
	Multiplier float64
}

// Snapshot is a consistent read of the current round for clients. Commitment
// is the published hash of the still-hidden server seed.
type Snapshot struct {
	RoundID    string    `json:"round_id"`
	Phase      Phase     `json:"phase"`
	Multiplier float64   `json:"multiplier"`
	StartTime  time.Time `json:"start_time"`
	Bets       int       `json:"bets"`
	Commitment string    `json:"commitment"`
}
