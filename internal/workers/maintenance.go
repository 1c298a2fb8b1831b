package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SessionRefresher renews backend sessions close to expiry
type SessionRefresher interface {
	RefreshExpiring(ctx context.Context, window time.Duration) (int, error)
}

// GateSweeper unmounts gates nobody used recently
type GateSweeper interface {
	Sweep(idle time.Duration) int
}

// RefreshSessions returns a job renewing every backend session that expires
// within window
func RefreshSessions(auth SessionRefresher, window time.Duration, logger zerolog.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		n, err := auth.RefreshExpiring(ctx, window)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info().Int("refreshed", n).Msg("Refreshed expiring sessions")
		}
		return nil
	}
}

// SweepGates returns a job unmounting gates idle for longer than idle
func SweepGates(gates GateSweeper, idle time.Duration, logger zerolog.Logger) func(context.Context) error {
	return func(context.Context) error {
		if n := gates.Sweep(idle); n > 0 {
			logger.Info().Int("closed", n).Msg("Unmounted idle gates")
		}
		return nil
	}
}
