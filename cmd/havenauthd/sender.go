package main

import (
	"context"
	"log/slog"

	"github.com/MrEthical07/havenAuth/otp"
)

// logSender writes one-time codes to the debug log. Development only.
type logSender struct {
	logger *slog.Logger
}

func (s logSender) SendCode(ctx context.Context, userID string, t otp.Type, code string) error {
	s.logger.DebugContext(ctx, "otp code issued",
		"operation", "otp_send",
		"outcome", "logged",
		"user_id", userID,
		"type", string(t),
		"code", code,
	)
	return nil
}
