package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chippy/internal/game"
)

// Postgres implements AccountStore and RoundStore over pgx. Debit and Credit
// are single conditional statements, so concurrent balance mutations can
// never interleave into a torn read-modify-write.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Find(ctx context.Context, userID string) (*game.Account, error) {
	account := &game.Account{
		ID:       userID,
		Balances: make(map[game.Currency]game.Cents),
	}

	err := p.pool.QueryRow(ctx, `
		SELECT username
		FROM users
		WHERE id = $1
	`, userID).Scan(&account.Username)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, game.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	rows, err := p.pool.Query(ctx, `
		SELECT currency, balance_cents
		FROM balances
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query balances: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var currency string
		var cents int64
		if err := rows.Scan(&currency, &cents); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		account.Balances[game.Currency(currency)] = game.Cents(cents)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read balances: %w", err)
	}

	return account, nil
}

func (p *Postgres) Create(ctx context.Context, username string) (*game.Account, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var taken bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)
	`, username).Scan(&taken)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return nil, game.ErrUsernameTaken
	}

	account := &game.Account{
		ID:       newID(),
		Username: username,
		Balances: make(map[game.Currency]game.Cents, len(game.SupportedCurrencies)),
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO users (id, username)
		VALUES ($1, $2)
	`, account.ID, username)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	for _, c := range game.SupportedCurrencies {
		_, err = tx.Exec(ctx, `
			INSERT INTO balances (user_id, currency, balance_cents)
			VALUES ($1, $2, $3)
		`, account.ID, string(c), int64(DefaultBalance))
		if err != nil {
			return nil, fmt.Errorf("insert balance: %w", err)
		}
		account.Balances[c] = DefaultBalance
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return account, nil
}

func (p *Postgres) Debit(ctx context.Context, userID string, currency game.Currency, amount game.Cents) (game.Cents, error) {
	var balance int64
	err := p.pool.QueryRow(ctx, `
		UPDATE balances
		SET balance_cents = balance_cents - $3
		WHERE user_id = $1
		  AND currency = $2
		  AND balance_cents >= $3
		RETURNING balance_cents
	`, userID, string(currency), int64(amount)).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the user is missing or the balance was too low.
		var exists bool
		if err := p.pool.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)
		`, userID).Scan(&exists); err != nil {
			return 0, fmt.Errorf("check user: %w", err)
		}
		if !exists {
			return 0, game.ErrUserNotFound
		}
		return 0, game.ErrInsufficientBalance
	}
	if err != nil {
		return 0, fmt.Errorf("debit balance: %w", err)
	}

	return game.Cents(balance), nil
}

func (p *Postgres) Credit(ctx context.Context, userID string, currency game.Currency, amount game.Cents) (game.Cents, error) {
	var balance int64
	err := p.pool.QueryRow(ctx, `
		INSERT INTO balances (user_id, currency, balance_cents)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, currency)
		DO UPDATE SET balance_cents = balances.balance_cents + $3
		RETURNING balance_cents
	`, userID, string(currency), int64(amount)).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("credit balance: %w", err)
	}

	return game.Cents(balance), nil
}

func (p *Postgres) Save(ctx context.Context, rec game.RoundRecord) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO rounds (id, start_time, crashed_at, crash_point, server_seed, client_seed, nonce, commitment)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.ID, rec.StartTime, rec.CrashedAt, rec.CrashPoint, rec.ServerSeed, rec.ClientSeed, rec.Nonce, rec.Commitment)
	if err != nil {
		return fmt.Errorf("insert round: %w", err)
	}

	for _, bet := range rec.Bets {
		_, err = tx.Exec(ctx, `
			INSERT INTO bets (round_id, user_id, amount_cents, currency, cashed_out, placed_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, rec.ID, bet.UserID, int64(bet.Amount), string(bet.Currency), bet.CashedOut, bet.PlacedAt)
		if err != nil {
			return fmt.Errorf("insert bet: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

func (p *Postgres) RecentRounds(ctx context.Context, limit int) ([]game.RoundSummary, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, crash_point, crashed_at, server_seed, client_seed, nonce
		FROM rounds
		ORDER BY crashed_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query rounds: %w", err)
	}
	defer rows.Close()

	var out []game.RoundSummary
	for rows.Next() {
		var s game.RoundSummary
		if err := rows.Scan(&s.RoundID, &s.CrashPoint, &s.CrashedAt, &s.ServerSeed, &s.ClientSeed, &s.Nonce); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read rounds: %w", err)
	}

	return out, nil
}
