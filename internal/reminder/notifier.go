package reminder

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"go.uber.org/zap"

	"github.com/iurnickita/giftcards/internal/model"
	"github.com/iurnickita/giftcards/internal/reminder/config"
)

type Notifier interface {
	Notify(ctx context.Context, cards []model.Card) error
}

// NewNotifier: почта, если настроен SMTP, иначе лог.
func NewNotifier(cfg config.Config, zaplog *zap.Logger) Notifier {
	if cfg.SMTPHost == "" || cfg.Recipient == "" {
		return &LogNotifier{zaplog: zaplog}
	}
	return &EmailNotifier{cfg: cfg, zaplog: zaplog, send: sendSMTP}
}

type LogNotifier struct {
	zaplog *zap.Logger
}

func (n *LogNotifier) Notify(_ context.Context, cards []model.Card) error {
	for _, card := range cards {
		n.zaplog.Info("gift card expires soon",
			zap.String("card", maskNumber(card.Data.Number)),
			zap.String("balance", card.Data.Balance.String()),
			zap.String("expiry", card.Data.ExpiryDate),
		)
	}
	return nil
}

type EmailNotifier struct {
	cfg    config.Config
	zaplog *zap.Logger
	send   func(e *email.Email, cfg config.Config) error
}

func (n *EmailNotifier) Notify(_ context.Context, cards []model.Card) error {
	e := email.NewEmail()
	e.From = n.cfg.SenderEmail
	if e.From == "" {
		e.From = n.cfg.SMTPUsername
	}
	e.To = []string{n.cfg.Recipient}
	e.Subject = fmt.Sprintf("%d gift card(s) expire soon", len(cards))
	e.Text = []byte(reminderText(cards))

	if err := n.send(e, n.cfg); err != nil {
		return fmt.Errorf("failed to send reminder: %w", err)
	}
	n.zaplog.Info("expiry reminder sent", zap.Int("cards", len(cards)))
	return nil
}

func sendSMTP(e *email.Email, cfg config.Config) error {
	addr := fmt.Sprintf("%s:%s", cfg.SMTPHost, cfg.SMTPPort)
	var auth smtp.Auth
	if cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return e.Send(addr, auth)
}

// PIN в письмо не попадает
func reminderText(cards []model.Card) string {
	var b strings.Builder
	b.WriteString("These gift cards expire soon:\n\n")
	for _, card := range cards {
		fmt.Fprintf(&b, "  %s  balance %s  expires %s\n",
			maskNumber(card.Data.Number), card.Data.Balance.StringFixed(2), card.Data.ExpiryDate)
	}
	return b.String()
}

func maskNumber(number string) string {
	runes := []rune(number)
	if len(runes) <= 4 {
		return number
	}
	return strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-4:])
}
