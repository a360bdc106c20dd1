package store

import (
	"context"
	"log"

	"chippy/internal/game"
)

// FanoutRounds writes finished rounds to several stores, e.g. postgres for
// the audit trail and redis for the recent-history cache. Individual
// failures are logged; the first one is returned after all stores have been
// tried.
type FanoutRounds []game.RoundStore

func (f FanoutRounds) Save(ctx context.Context, rec game.RoundRecord) error {
	var first error
	for _, s := range f {
		if err := s.Save(ctx, rec); err != nil {
			log.Printf("[STORE] Round save failed: %v", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}
