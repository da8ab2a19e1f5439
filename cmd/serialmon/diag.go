package main

import (
	"context"
	"time"

	"github.com/luhtfiimanal/serialmon"
)

// sendTestSequence gives the target a moment after connect, then sends the
// canned diagnostic messages.
func sendTestSequence(ctx context.Context, sess *serialmon.Session, cfg settings) error {
	if cfg.TestWarmup > 0 {
		t := time.NewTimer(cfg.TestWarmup)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return sess.SendSequence(ctx, cfg.TestMessages, cfg.TestDelay)
}
