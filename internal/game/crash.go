package game

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"math/big"
	"sync"
)

const (
	MinMultiplier = 1.00
	MaxMultiplier = 1000000.00
	houseEdge     = 0.01
)

// CrashPointFromSeeds maps a server seed, client seed and nonce to a crash
// multiplier via HMAC-SHA256 with an exponential distribution: higher
// multipliers are rarer, and a slice of the space instant-crashes at 1.00.
func CrashPointFromSeeds(serverSeed, clientSeed string, nonce int) float64 {
	data := fmt.Sprintf("%s:%d", clientSeed, nonce)
	h := hmac.New(sha256.New, []byte(serverSeed))
	h.Write([]byte(data))
	hashHex := hex.EncodeToString(h.Sum(nil))

	// First 16 hex characters: 64 bits of the digest.
	i := new(big.Int)
	i.SetString(hashHex[:16], 16)

	const maxUint64F = 18446744073709551616.0
	r := float64(i.Uint64()) / maxUint64F

	if r < houseEdge {
		return MinMultiplier
	}

	crash := (100.0 - houseEdge*100) / (100.0 - r*100.0)
	crash = float64(int(crash*100)) / 100.0

	if crash < MinMultiplier {
		return MinMultiplier
	}
	if crash > MaxMultiplier {
		return MaxMultiplier
	}
	return crash
}

// NewSeed creates a cryptographically secure random seed.
func NewSeed() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// SeedCommitment is the SHA256 commitment published before a seed is used.
func SeedCommitment(seed string) string {
	h := sha256.New()
	h.Write([]byte(seed))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyCrashPoint lets players check that a revealed seed pair really
// produced the claimed multiplier.
func VerifyCrashPoint(serverSeed, clientSeed string, nonce int, claimed float64) bool {
	diff := CrashPointFromSeeds(serverSeed, clientSeed, nonce) - claimed
	if diff < 0 {
		diff = -diff
	}
	return diff < 0.01
}

// FairSource is the production CrashSource. Each draw uses a fresh server
// seed and an increasing nonce. The seeds travel with the draw so the
// scheduler can publish the commitment up front and reveal the seed at
// crash; only the commitment is logged here, the seed stays secret until
// the round ends.
type FairSource struct {
	mu         sync.Mutex
	clientSeed string
	nonce      int
}

func NewFairSource() *FairSource {
	return &FairSource{clientSeed: NewSeed()}
}

func (f *FairSource) Draw() CrashDraw {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nonce++
	serverSeed := NewSeed()
	crash := CrashPointFromSeeds(serverSeed, f.clientSeed, f.nonce)

	log.Printf("[FAIR] nonce=%d commitment=%s", f.nonce, SeedCommitment(serverSeed)[:16]+"...")

	return CrashDraw{
		Crash:      crash,
		ServerSeed: serverSeed,
		ClientSeed: f.clientSeed,
		Nonce:      f.nonce,
	}
}
