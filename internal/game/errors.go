package game

import "errors"

// Ledger validation failures. Each one is terminal for the command that
// triggered it and is reported only to the originating connection.
var (
	ErrBettingClosed             = errors.New("betting closed while round is running")
	ErrInvalidAmount             = errors.New("bet amount must be positive")
	ErrUnsupportedCurrency       = errors.New("unsupported currency")
	ErrUserNotFound              = errors.New("user not found")
	ErrAlreadyCashedOutThisRound = errors.New("cannot bet again after cashing out this round")
	ErrInsufficientBalance       = errors.New("insufficient balance")
	ErrDuplicateBet              = errors.New("active bet already exists in this round")
	ErrNotRunning                = errors.New("round is not running")
	ErrNoActiveBet               = errors.New("no active bet")
	ErrAlreadyCashedOut          = errors.New("bet already cashed out")
)

// Account store failures outside the ledger path.
var ErrUsernameTaken = errors.New("username already exists")

// Scheduler command submission failures.
var (
	ErrSchedulerStopped = errors.New("scheduler stopped")
	ErrQueueFull        = errors.New("command queue full")
)
