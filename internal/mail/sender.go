package mail

import (
	"context"
	"github.com/RezaEskandarii/userfire/pkg/logger"
	"log/slog"
)

// Sender delivers a single email.
type Sender interface {
	Send(ctx context.Context, opts SendOptions) (*SendResult, error)
}

type SendOptions struct {
	To      string
	ToName  string
	Subject string
	HTML    string
	Text    string
}

// SendResult.Error is set when the provider rejected the message.
type SendResult struct {
	Success   bool
	MessageID string
	Error     string
}

// LogSender only logs the message. It is used when no provider is configured.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log.With(logger.Scope("mail.log"))}
}

func (s *LogSender) Send(ctx context.Context, opts SendOptions) (*SendResult, error) {
	s.log.Info("email not sent, no provider configured",
		slog.String("to", opts.To),
		slog.String("subject", opts.Subject))
	return &SendResult{Success: true, MessageID: "log"}, nil
}
