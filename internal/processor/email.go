package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/RezaEskandarii/userfire/custom_errors"
	"github.com/RezaEskandarii/userfire/internal/mail"
	"github.com/RezaEskandarii/userfire/pkg/logger"
	"github.com/RezaEskandarii/userfire/types"
	"log/slog"
)

type EmailProcessor struct {
	sender    mail.Sender
	templates *mail.Templates
	log       *slog.Logger
}

func NewEmailProcessor(sender mail.Sender, templates *mail.Templates, log *slog.Logger) *EmailProcessor {
	return &EmailProcessor{
		sender:    sender,
		templates: templates,
		log:       log.With(logger.Scope("processor.email")),
	}
}

// Process dispatches on the payload type, falling back to the job name.
// Types other than welcome are acknowledged without sending anything.
func (p *EmailProcessor) Process(ctx context.Context, name string, payload json.RawMessage) error {
	var msg types.WelcomeEmailPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return custom_errors.NewProcessor("invalid email payload", err)
	}
	kind := msg.Type
	if kind == "" {
		kind = name
	}
	if kind != types.JobWelcomeEmail {
		p.log.Debug("ignoring email job", slog.String("type", kind))
		return nil
	}
	return p.sendWelcome(ctx, msg)
}

func (p *EmailProcessor) sendWelcome(ctx context.Context, msg types.WelcomeEmailPayload) error {
	if msg.Email == "" {
		return custom_errors.NewProcessor("welcome email has no recipient", nil)
	}
	p.log.Info(fmt.Sprintf("Sending welcome email to %s <%s>", msg.Name, msg.Email))

	body, err := p.templates.Render("welcome", map[string]any{"name": msg.Name, "email": msg.Email})
	if err != nil {
		return custom_errors.NewProcessor("render welcome email", err)
	}
	res, err := p.sender.Send(ctx, mail.SendOptions{
		To:      msg.Email,
		ToName:  msg.Name,
		Subject: body.Subject,
		HTML:    body.HTML,
		Text:    body.Text,
	})
	if err != nil {
		return custom_errors.NewProcessor("send welcome email", err)
	}
	if !res.Success {
		return custom_errors.NewProcessor("send welcome email: "+res.Error, nil)
	}
	return nil
}
