package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math"
	"time"

	"github.com/gofiber/contrib/websocket"

	"chippy/internal/game"
)

const commandTimeout = 5 * time.Second

// clientEnvelope is the inbound ws command format; "type" selects the handler.
type clientEnvelope struct {
	Type     string  `json:"type"`
	UserID   string  `json:"userId"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Username string  `json:"username"`
}

// gameWebSocketHandler attaches a connection to the hub and routes its
// commands into the scheduler. Direct acks and errors go back on this
// connection only; round events arrive via the hub broadcast.
func (s *FiberServer) gameWebSocketHandler(conn *websocket.Conn) {
	client := s.hub.RegisterClient(conn, conn.Query("user_id", "anonymous"))
	defer s.hub.UnregisterClient(client)

	if snapshot := s.scheduler.Snapshot(); snapshot != nil {
		client.Send(map[string]interface{}{
			"action": "GAME_STATE",
			"data":   snapshot,
		})
	}

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var envelope clientEnvelope
		if err := json.Unmarshal(message, &envelope); err != nil {
			client.Send(game.NewErrorEvent("Invalid message."))
			continue
		}

		switch envelope.Type {
		case "PLACE_BET":
			s.handlePlaceBet(client, envelope)
		case "FINISH_BET":
			s.handleCashout(client, envelope)
		case "CREATE_USER":
			s.handleCreateUser(client, envelope)
		default:
			client.Send(game.NewErrorEvent("Unsupported action."))
		}
	}
}

func (s *FiberServer) handlePlaceBet(client *game.Client, envelope clientEnvelope) {
	if envelope.Amount <= 0 || math.IsNaN(envelope.Amount) || math.IsInf(envelope.Amount, 0) {
		client.Send(game.NewErrorEvent("Invalid bet amount."))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	receipt, err := s.scheduler.PlaceBet(ctx, envelope.UserID, game.CentsFromFloat(envelope.Amount), game.Currency(envelope.Currency))
	if err != nil {
		client.Send(game.NewErrorEvent(wireMessage(err)))
		return
	}

	client.Send(game.BetPlacedEvent{
		Action:   game.ActionBetPlaced,
		Currency: receipt.Currency,
		Amount:   receipt.Amount,
		Balance:  receipt.Balance,
	})
}

func (s *FiberServer) handleCashout(client *game.Client, envelope clientEnvelope) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	receipt, err := s.scheduler.Cashout(ctx, envelope.UserID)
	if err != nil {
		client.Send(game.NewErrorEvent(wireMessage(err)))
		return
	}

	client.Send(game.CashoutSuccessEvent{
		Action:     game.ActionCashoutSuccess,
		Currency:   receipt.Currency,
		Winnings:   receipt.Winnings,
		Balance:    receipt.Balance,
		CrashPoint: receipt.Multiplier,
	})
}

// handleCreateUser delegates to the account store; user creation never goes
// through the scheduler.
func (s *FiberServer) handleCreateUser(client *game.Client, envelope clientEnvelope) {
	if envelope.Username == "" {
		client.Send(game.NewErrorEvent("Username is required."))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	account, err := s.accounts.Create(ctx, envelope.Username)
	if errors.Is(err, game.ErrUsernameTaken) {
		client.Send(game.NewErrorEvent("Username already exists."))
		return
	}
	if err != nil {
		log.Printf("[WS] Create user failed: %v", err)
		client.Send(game.NewErrorEvent("Failed to create user."))
		return
	}

	client.Send(game.UserCreatedEvent{
		Action:   game.ActionUserCreated,
		UserID:   account.ID,
		Username: account.Username,
		Balances: account.Balances,
	})
}

// wireMessage maps ledger failures to the messages clients already key on.
func wireMessage(err error) string {
	switch {
	case errors.Is(err, game.ErrBettingClosed):
		return "Bets can only be placed when the game is waiting or has ended."
	case errors.Is(err, game.ErrInvalidAmount):
		return "Invalid bet amount."
	case errors.Is(err, game.ErrUnsupportedCurrency):
		return "Unsupported currency."
	case errors.Is(err, game.ErrUserNotFound):
		return "User not found."
	case errors.Is(err, game.ErrAlreadyCashedOutThisRound):
		return "You cannot place a new bet after cashing out."
	case errors.Is(err, game.ErrInsufficientBalance):
		return "Insufficient balance."
	case errors.Is(err, game.ErrDuplicateBet):
		return "You already have an active bet in this round."
	case errors.Is(err, game.ErrNotRunning):
		return "Cannot cashout when game is not running."
	case errors.Is(err, game.ErrNoActiveBet):
		return "No active bet found."
	case errors.Is(err, game.ErrAlreadyCashedOut):
		return "You can only cash out once per game."
	case errors.Is(err, game.ErrQueueFull):
		return "Server is busy. Please try again."
	default:
		return "Failed to process request."
	}
}
