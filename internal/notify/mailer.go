// Package notify delivers account recovery codes to users.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/security"
)

// LogMailer writes recovery codes to the log instead of sending email. The code itself is
// only logged when RevealCode is set, which must stay off in production.
type LogMailer struct {
	Logger     zerolog.Logger
	RevealCode bool
}

// NewLogMailer returns a LogMailer writing to logger.
func NewLogMailer(logger zerolog.Logger, revealCode bool) *LogMailer {
	return &LogMailer{Logger: logger, RevealCode: revealCode}
}

// SendRecoveryCode records a recovery code for to, valid for ttl.
func (m *LogMailer) SendRecoveryCode(ctx context.Context, to, code string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if to == "" || code == "" {
		return errors.New("notify: recipient and code are required")
	}
	ev := m.Logger.Info().
		Str("to", to).
		Dur("valid_for", ttl)
	if m.RevealCode {
		ev = ev.Str("code", code).Str("mode", "DEV MODE ONLY")
	} else {
		ev = ev.Str("code_hash", security.HashPrefix(code))
	}
	ev.Msg("notify: recovery code issued")
	return nil
}
