package game

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"
)

// Config holds the fixed timings of the round cycle. The defaults are the
// production values; tests compress them.
type Config struct {
	CountdownSeconds  int           // visible countdown ticks before a round
	CountdownInterval time.Duration // period of one countdown tick
	TickInterval      time.Duration // period of one multiplier tick
	TickStep          int64         // basis points added per tick
	RestartDelay      time.Duration // pause after a crash before the next round
	CommandBuffer     int
}

// DefaultConfig gives a 10 second pre-round window (1s waiting + 9 countdown
// ticks), a 0.01 step every 50ms while running, and 5 seconds between rounds.
func DefaultConfig() Config {
	return Config{
		CountdownSeconds:  9,
		CountdownInterval: time.Second,
		TickInterval:      50 * time.Millisecond,
		TickStep:          1,
		RestartDelay:      5 * time.Second,
		CommandBuffer:     1024,
	}
}

// Broadcaster receives every round event. Satisfied by *Hub.
type Broadcaster interface {
	Broadcast(message interface{})
}

// Scheduler is the authoritative round state machine and the sole writer of
// phase, multiplier and the bet list. Bet and cashout commands from any
// number of connections are funneled through one channel and processed
// strictly in arrival order, interleaved with the countdown and multiplier
// timers on the same goroutine. That serialization is the concurrency model;
// the mutex exists only so Snapshot readers see consistent values.
type Scheduler struct {
	cfg      Config
	ledger   *Ledger
	rounds   RoundStore
	crash    CrashSource
	hub      Broadcaster
	ctx      context.Context
	commands chan command
	stop     chan struct{}
	stopOnce sync.Once

	mu      sync.RWMutex
	current *Round
	seq     int
}

type commandKind int

const (
	cmdPlaceBet commandKind = iota
	cmdCashout
)

type command struct {
	kind     commandKind
	userID   string
	amount   Cents
	currency Currency
	reply    chan commandReply
}

type commandReply struct {
	bet     BetReceipt
	cashout CashoutReceipt
	err     error
}

func NewScheduler(cfg Config, ledger *Ledger, rounds RoundStore, crash CrashSource, hub Broadcaster) *Scheduler {
	if cfg.CommandBuffer <= 0 {
		cfg.CommandBuffer = DefaultConfig().CommandBuffer
	}
	return &Scheduler{
		cfg:      cfg,
		ledger:   ledger,
		rounds:   rounds,
		crash:    crash,
		hub:      hub,
		ctx:      context.Background(),
		commands: make(chan command, cfg.CommandBuffer),
		stop:     make(chan struct{}),
	}
}

// Run drives round cycles until Stop. Blocking; start with `go s.Run()`.
func (s *Scheduler) Run() {
	for {
		select {
		case <-s.stop:
			log.Println("[GAME] Scheduler stopped")
			return
		default:
			s.playRound()
		}
	}
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// PlaceBet submits a bet command and waits for the scheduler to process it.
func (s *Scheduler) PlaceBet(ctx context.Context, userID string, amount Cents, currency Currency) (BetReceipt, error) {
	reply, err := s.submit(ctx, command{
		kind:     cmdPlaceBet,
		userID:   userID,
		amount:   amount,
		currency: currency,
	})
	if err != nil {
		return BetReceipt{}, err
	}
	return reply.bet, reply.err
}

// Cashout submits a cashout command and waits for the scheduler to process it.
func (s *Scheduler) Cashout(ctx context.Context, userID string) (CashoutReceipt, error) {
	reply, err := s.submit(ctx, command{
		kind:   cmdCashout,
		userID: userID,
	})
	if err != nil {
		return CashoutReceipt{}, err
	}
	return reply.cashout, reply.err
}

func (s *Scheduler) submit(ctx context.Context, cmd command) (commandReply, error) {
	cmd.reply = make(chan commandReply, 1)

	select {
	case s.commands <- cmd:
	case <-s.stop:
		return commandReply{}, ErrSchedulerStopped
	default:
		return commandReply{}, ErrQueueFull
	}

	select {
	case reply := <-cmd.reply:
		return reply, nil
	case <-ctx.Done():
		return commandReply{}, ctx.Err()
	case <-s.stop:
		return commandReply{}, ErrSchedulerStopped
	}
}

// Snapshot returns a consistent view of the current round, never a value
// mid-update.
func (s *Scheduler) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	return &Snapshot{
		RoundID:    s.current.ID,
		Phase:      s.current.Phase,
		Multiplier: float64(s.current.CurrentBps) / 100,
		StartTime:  s.current.StartTime,
		Bets:       len(s.current.Bets),
		Commitment: s.current.Commitment,
	}
}

// playRound runs one full WAITING -> COUNTDOWN -> RUNNING -> CRASHED cycle.
func (s *Scheduler) playRound() {
	round, ok := s.openRound()
	if !ok {
		return
	}

	s.hub.Broadcast(GameWaitingEvent{
		Action:     ActionGameWaiting,
		Message:    "The game is waiting for the next round. Please place your bets!",
		Commitment: round.Commitment,
	})

	if !s.runCountdown(round) {
		return
	}

	s.mu.Lock()
	round.Phase = PhaseRunning
	s.mu.Unlock()

	s.hub.Broadcast(RoundStartedEvent{
		Action:  ActionRoundStarted,
		Message: "The round has started! Place your bets!",
	})

	if !s.runTicks(round) {
		return
	}

	s.archive(round)

	// The crash reveals the seeds behind the published commitment.
	s.hub.Broadcast(RoundCrashedEvent{
		Action:     ActionRoundCrashed,
		Data:       FormatBps(round.FinalBps),
		Multiplier: FormatBps(round.FinalBps),
		ServerSeed: round.ServerSeed,
		ClientSeed: round.ClientSeed,
		Nonce:      round.Nonce,
		Commitment: round.Commitment,
	})

	log.Printf("[GAME] Round %s crashed at %s", round.ID, FormatBps(round.FinalBps))

	// Post-crash window. Commands keep flowing: cashouts now fail with
	// NotRunning, while new bets are accepted and tagged for the next
	// round, which openRound carries them into.
	s.idle(s.cfg.RestartDelay)
}

// openRound pre-draws the crash point for a fresh round and carries over any
// bets placed during the previous post-crash window: those were debited for
// the upcoming round and must stay cashable, never vanish with the old
// round handle. Returns false when the scheduler is stopping.
func (s *Scheduler) openRound() (*Round, bool) {
	draw, ok := s.drawCrashPoint()
	if !ok {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	round := NewRound(fmt.Sprintf("R%d-%d", time.Now().Unix(), s.seq))
	round.CrashBps = int64(math.Ceil(draw.Crash*100 - 1e-9))
	round.ServerSeed = draw.ServerSeed
	round.ClientSeed = draw.ClientSeed
	round.Nonce = draw.Nonce
	round.Commitment = SeedCommitment(draw.ServerSeed)

	if prev := s.current; prev != nil {
		for userID, bet := range prev.Bets {
			if bet.NextRound && !bet.CashedOut {
				bet.NextRound = false
				round.Bets[userID] = bet
			}
		}
	}

	s.current = round
	return round, true
}

// runCountdown covers the fixed pre-round window: one silent waiting second,
// then CountdownSeconds visible ticks, then one more interval before the
// round starts. Returns false when the scheduler is stopping.
func (s *Scheduler) runCountdown(round *Round) bool {
	ticker := time.NewTicker(s.cfg.CountdownInterval)
	defer ticker.Stop()

	remaining := s.cfg.CountdownSeconds
	for {
		select {
		case <-ticker.C:
			if remaining < 1 {
				return true
			}
			s.mu.Lock()
			round.Phase = PhaseCountdown
			s.mu.Unlock()
			s.hub.Broadcast(CountdownEvent{
				Action:  ActionCountdown,
				Time:    remaining,
				Data:    remaining,
				Seconds: remaining,
			})
			s.hub.Broadcast(SecondBeforeStartEvent{
				Action: ActionSecondBeforeStart,
				Data:   remaining,
			})
			remaining--

		case cmd := <-s.commands:
			s.handleCommand(cmd)

		case <-s.stop:
			return false
		}
	}
}

// runTicks drives the multiplier until it reaches the crash point. Returns
// false when the scheduler is stopping.
func (s *Scheduler) runTicks(round *Round) bool {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			round.CurrentBps += s.cfg.TickStep
			current := round.CurrentBps
			crashed := current >= round.CrashBps
			if crashed {
				round.Phase = PhaseCrashed
				round.FinalBps = current
			}
			s.mu.Unlock()

			// The crash tick's value goes out as a regular update too;
			// ROUND_CRASHED follows right behind it.
			s.hub.Broadcast(MultiplierEvent{
				Action:     ActionMultiplier,
				Data:       FormatBps(current),
				Multiplier: FormatBps(current),
			})

			if crashed {
				return true
			}

		case cmd := <-s.commands:
			s.handleCommand(cmd)

		case <-s.stop:
			return false
		}
	}
}

// idle keeps serving commands for the given duration.
func (s *Scheduler) idle(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			return
		case cmd := <-s.commands:
			s.handleCommand(cmd)
		case <-s.stop:
			return
		}
	}
}

func (s *Scheduler) handleCommand(cmd command) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reply commandReply
	switch cmd.kind {
	case cmdPlaceBet:
		reply.bet, reply.err = s.ledger.PlaceBet(s.ctx, s.current, cmd.userID, cmd.amount, cmd.currency)
	case cmdCashout:
		reply.cashout, reply.err = s.ledger.Cashout(s.ctx, s.current, cmd.userID)
	}
	cmd.reply <- reply
}

// drawCrashPoint asks the crash source for a draw and rejects crash values
// below 1. After repeated invalid draws the round instant-crashes rather
// than stalling the cycle.
func (s *Scheduler) drawCrashPoint() (CrashDraw, bool) {
	for attempt := 0; attempt < 3; attempt++ {
		select {
		case <-s.stop:
			return CrashDraw{}, false
		default:
		}

		draw := s.crash.Draw()
		if draw.Crash >= 1 {
			return draw, true
		}
		log.Printf("[GAME] Crash source returned invalid value %f, redrawing", draw.Crash)
	}
	return CrashDraw{Crash: 1}, true
}

// archive persists the crashed round off the hot path. A failed save is
// logged and never blocks phase advancement.
func (s *Scheduler) archive(round *Round) {
	rec := round.Record()
	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
		defer cancel()
		if err := s.rounds.Save(ctx, rec); err != nil {
			log.Printf("[GAME] Failed to persist round %s: %v", rec.ID, err)
		}
	}()
}
