package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/domodwyer/mailyak/v3"

	"github.com/bolidosrifas/raffle/config"
	"github.com/bolidosrifas/raffle/internal/kafka"
)

// Sender delivers buyer notifications over SMTP. Delivery failures are
// returned to the caller for logging only; by the time a notification is
// sent the allocation has already committed.
type Sender struct {
	cfg config.SMTPConfig
}

func NewSender(cfg config.SMTPConfig) *Sender {
	return &Sender{cfg: cfg}
}

func (s *Sender) Send(ctx context.Context, event kafka.PurchaseEvent) error {
	if event.Email == "" {
		return nil
	}

	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	}

	mail := mailyak.New(s.cfg.Addr(), auth)
	mail.From(s.cfg.From)
	mail.To(event.Email)
	mail.Subject("Confirmación de compra - Números asignados")

	numbers := strings.Join(event.MaskedNumbers, ", ")
	method := event.Method
	if method == "" {
		method = "transferencia"
	}
	mail.HTML().Set(fmt.Sprintf(
		`<p>¡Hola %s!</p>
<p>Aprobamos tu compra (%s) por $%.2f.</p>
<p>Tus números asignados: <strong>%s</strong></p>`,
		event.FullName, method, float64(event.PriceCents)/100, numbers))
	mail.Plain().Set(fmt.Sprintf("Aprobamos tu compra. Tus números asignados: %s", numbers))

	if err := mail.Send(); err != nil {
		return fmt.Errorf("failed to deliver notification to %s: %w", event.Email, err)
	}
	return nil
}
