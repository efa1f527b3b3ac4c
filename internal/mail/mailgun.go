package mail

import (
	"context"
	"fmt"
	"github.com/RezaEskandarii/userfire/config"
	"github.com/RezaEskandarii/userfire/pkg/logger"
	"github.com/mailgun/mailgun-go/v4"
	"log/slog"
	"time"
)

// MailgunSender sends emails via the Mailgun API.
type MailgunSender struct {
	cfg    config.EmailConfig
	log    *slog.Logger
	client *mailgun.MailgunImpl
}

// NewMailgunSender returns nil if Mailgun is not configured.
func NewMailgunSender(cfg config.EmailConfig, log *slog.Logger) *MailgunSender {
	if !cfg.Configured() {
		return nil
	}
	return &MailgunSender{
		cfg:    cfg,
		log:    log.With(logger.Scope("mail.mailgun")),
		client: mailgun.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey),
	}
}

func (s *MailgunSender) Send(ctx context.Context, opts SendOptions) (*SendResult, error) {
	if !s.cfg.Enabled {
		return &SendResult{Success: false, Error: "email sending is disabled"}, nil
	}

	to := opts.To
	if opts.ToName != "" {
		to = fmt.Sprintf("%s <%s>", opts.ToName, opts.To)
	}
	from := fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.FromAddress)

	message := s.client.NewMessage(from, opts.Subject, opts.Text, to)
	if opts.HTML != "" {
		message.SetHtml(opts.HTML)
	}

	sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, messageID, err := s.client.Send(sendCtx, message)
	if err != nil {
		s.log.Error("failed to send email",
			slog.String("to", opts.To),
			logger.Error(err))
		return &SendResult{Success: false, Error: err.Error()}, nil
	}

	s.log.Info("email sent",
		slog.String("to", opts.To),
		slog.String("message_id", messageID))
	return &SendResult{Success: true, MessageID: messageID}, nil
}
