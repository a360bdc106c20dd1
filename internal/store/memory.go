package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"

	"chippy/internal/game"
)

// DefaultBalance is credited per currency when an account is created.
const DefaultBalance = game.Cents(100000) // 1000.00

// Memory is an in-process AccountStore and RoundStore. It backs tests and
// standalone mode when postgres is unreachable. One mutex guards everything,
// so debit and credit are atomic read-modify-writes.
type Memory struct {
	mu       sync.Mutex
	accounts map[string]*game.Account
	byName   map[string]string
	rounds   []game.RoundRecord
}

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]*game.Account),
		byName:   make(map[string]string),
	}
}

func (m *Memory) Find(ctx context.Context, userID string) (*game.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[userID]
	if !ok {
		return nil, game.ErrUserNotFound
	}
	return copyAccount(account), nil
}

func (m *Memory) Create(ctx context.Context, username string) (*game.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.byName[username]; taken {
		return nil, game.ErrUsernameTaken
	}

	account := &game.Account{
		ID:       newID(),
		Username: username,
		Balances: make(map[game.Currency]game.Cents, len(game.SupportedCurrencies)),
	}
	for _, c := range game.SupportedCurrencies {
		account.Balances[c] = DefaultBalance
	}

	m.accounts[account.ID] = account
	m.byName[username] = account.ID

	return copyAccount(account), nil
}

func (m *Memory) Debit(ctx context.Context, userID string, currency game.Currency, amount game.Cents) (game.Cents, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[userID]
	if !ok {
		return 0, game.ErrUserNotFound
	}
	if account.Balances[currency] < amount {
		return account.Balances[currency], game.ErrInsufficientBalance
	}

	account.Balances[currency] -= amount
	return account.Balances[currency], nil
}

func (m *Memory) Credit(ctx context.Context, userID string, currency game.Currency, amount game.Cents) (game.Cents, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[userID]
	if !ok {
		return 0, game.ErrUserNotFound
	}

	account.Balances[currency] += amount
	return account.Balances[currency], nil
}

func (m *Memory) Save(ctx context.Context, rec game.RoundRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rounds = append(m.rounds, rec)
	return nil
}

func (m *Memory) RecentRounds(ctx context.Context, limit int) ([]game.RoundSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit > len(m.rounds) {
		limit = len(m.rounds)
	}

	out := make([]game.RoundSummary, 0, limit)
	for i := len(m.rounds) - 1; i >= len(m.rounds)-limit; i-- {
		out = append(out, game.RoundSummary{
			RoundID:    m.rounds[i].ID,
			CrashPoint: m.rounds[i].CrashPoint,
			CrashedAt:  m.rounds[i].CrashedAt,
			ServerSeed: m.rounds[i].ServerSeed,
			ClientSeed: m.rounds[i].ClientSeed,
			Nonce:      m.rounds[i].Nonce,
		})
	}
	return out, nil
}

func copyAccount(a *game.Account) *game.Account {
	out := &game.Account{
		ID:       a.ID,
		Username: a.Username,
		Balances: make(map[game.Currency]game.Cents, len(a.Balances)),
	}
	for c, v := range a.Balances {
		out.Balances[c] = v
	}
	return out
}

func newID() string {
	b := make([]byte, 12)
	rand.Read(b)
	return hex.EncodeToString(b)
}
