package game

// Wire action names. Broadcast actions go to every listener; the rest are
// direct replies to the originating connection.
const (
	ActionGameWaiting       = "GAME_WAITING"
	ActionCountdown         = "COUNTDOWN"
	ActionSecondBeforeStart = "SECOND_BEFORE_START"
	ActionRoundStarted      = "ROUND_STARTED"
	ActionMultiplier        = "CNT_MULTIPLY"
	ActionRoundCrashed      = "ROUND_CRASHED"
	ActionBetPlaced         = "BET_PLACED"
	ActionCashoutSuccess    = "CASHOUT_SUCCESS"
	ActionUserCreated       = "USER_CREATED"
	ActionError             = "ERROR"
)

// GameWaitingEvent opens a round and publishes the commitment to the server
// seed that will decide it.
type GameWaitingEvent struct {
	Action     string `json:"action"`
	Message    string `json:"message"`
	Commitment string `json:"commitment"`
}

// CountdownEvent repeats the remaining seconds under three keys; older
// clients read "time", newer ones "data" or "seconds".
type CountdownEvent struct {
	Action  string `json:"action"`
	Time    int    `json:"time"`
	Data    int    `json:"data"`
	Seconds int    `json:"seconds"`
}

type SecondBeforeStartEvent struct {
	Action string `json:"action"`
	Data   int    `json:"data"`
}

type RoundStartedEvent struct {
	Action  string `json:"action"`
	Message string `json:"message"`
}

// MultiplierEvent carries the 2-decimal multiplier as a string, both as
// "data" and "multiplier".
type MultiplierEvent struct {
	Action     string `json:"action"`
	Data       string `json:"data"`
	Multiplier string `json:"multiplier"`
}

// RoundCrashedEvent reveals the seeds behind the round's commitment so any
// client can replay the crash point through the verify endpoint.
type RoundCrashedEvent struct {
	Action     string `json:"action"`
	Data       string `json:"data"`
	Multiplier string `json:"multiplier"`
	ServerSeed string `json:"server_seed"`
	ClientSeed string `json:"client_seed"`
	Nonce      int    `json:"nonce"`
	Commitment string `json:"commitment"`
}

type BetPlacedEvent struct {
	Action   string   `json:"action"`
	Currency Currency `json:"currency"`
	Amount   Cents    `json:"amount"`
	Balance  Cents    `json:"balance"`
}

type CashoutSuccessEvent struct {
	Action     string   `json:"action"`
	Currency   Currency `json:"currency"`
	Winnings   Cents    `json:"winnings"`
	Balance    Cents    `json:"balance"`
	CrashPoint float64  `json:"crashPoint"`
}

type UserCreatedEvent struct {
	Action   string             `json:"action"`
	UserID   string             `json:"userId"`
	Username string             `json:"username"`
	Balances map[Currency]Cents `json:"balances"`
}

type ErrorEvent struct {
	Action  string `json:"action"`
	Message string `json:"message"`
}

func NewErrorEvent(message string) ErrorEvent {
	return ErrorEvent{Action: ActionError, Message: message}
}
