package orderstate

import (
	"context"
	"fmt"
	"net/smtp"

	"ms-payments/internal/config"
	"ms-payments/internal/logger"
	"ms-payments/internal/models"
)

// SMTPMailer sends payment confirmation notices over plain SMTP.
type SMTPMailer struct {
	cfg config.EmailConfig
	log *logger.Logger
}

func NewSMTPMailer(cfg config.EmailConfig, log *logger.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, log: log}
}

func (m *SMTPMailer) SendPaymentConfirmation(ctx context.Context, order *models.Order) error {
	if order.UserEmail == "" {
		m.log.Warn("EMAIL", fmt.Sprintf("Order %s has no email address, skipping confirmation", order.OrderID))
		return nil
	}

	subject := fmt.Sprintf("Payment confirmation for order %s", order.OrderID)
	body := fmt.Sprintf(
		"Your payment of %s for order %s has been received.\r\nThank you for your purchase!\r\n",
		order.Total, order.OrderID,
	)
	msg := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.cfg.SMTPUsername, order.UserEmail, subject, body,
	))

	addr := m.cfg.SMTPHost + ":" + m.cfg.SMTPPort
	auth := smtp.PlainAuth("", m.cfg.SMTPUsername, m.cfg.SMTPPassword, m.cfg.SMTPHost)
	if err := smtp.SendMail(addr, auth, m.cfg.SMTPUsername, []string{order.UserEmail}, msg); err != nil {
		m.log.Error("EMAIL", fmt.Sprintf("Failed to send confirmation for order %s: %v", order.OrderID, err))
		return fmt.Errorf("orderstate: send confirmation mail: %w", err)
	}

	m.log.Info("EMAIL", fmt.Sprintf("Confirmation mail sent for order %s to %s", order.OrderID, order.UserEmail))
	return nil
}
