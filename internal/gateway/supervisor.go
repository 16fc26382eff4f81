package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/ibwire/internal/observability"
	"github.com/danmuck/ibwire/internal/protocol/session"
)

// Target names the gateway endpoint and API client id.
type Target struct {
	Host     string
	Port     int
	ClientID int
}

// Supervisor keeps a Conn connected, backing off between attempts.
type Supervisor struct {
	conn    *Conn
	target  Target
	backoff session.BackoffConfig
	log     zerolog.Logger
}

func NewSupervisor(conn *Conn, target Target, cfg session.BackoffConfig, log zerolog.Logger) *Supervisor {
	return &Supervisor{conn: conn, target: target, backoff: cfg, log: log}
}

// Run connects and reconnects until ctx ends, a version mismatch shows that
// retrying is pointless, or Backoff.MaxAttempts consecutive attempts fail.
// The connection is disconnected before Run returns.
func (s *Supervisor) Run(ctx context.Context) error {
	b := s.backoff.NewBackOff()
	failures := 0
	for {
		err := s.conn.Connect(ctx, s.target.Host, s.target.Port, s.target.ClientID)
		observability.RecordConnectAttempt(err == nil)
		if err == nil {
			b.Reset()
			failures = 0
			select {
			case <-ctx.Done():
				_ = s.conn.Disconnect()
				return ctx.Err()
			case <-s.conn.Done():
			}
			s.log.Warn().Str("session_id", s.conn.SessionID()).Msg("gateway.Supervisor connection lost")
		} else {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var mismatch *session.VersionMismatchError
			if errors.As(err, &mismatch) {
				s.log.Error().Err(err).Msg("gateway.Supervisor giving up")
				return err
			}
			failures++
			if s.backoff.MaxAttempts > 0 && failures >= s.backoff.MaxAttempts {
				s.log.Error().Err(err).Int("attempts", failures).Msg("gateway.Supervisor giving up")
				return err
			}
		}

		delay := b.NextBackOff()
		s.log.Info().Dur("delay", delay).Int("failures", failures).Msg("gateway.Supervisor reconnect scheduled")
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
