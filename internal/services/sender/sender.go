// Package services содержит сервис почтовых уведомлений: читает события
// жизненного цикла подписок из очередей RabbitMQ и отправляет письма
// владельцам магазинов.
package services

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zoomarket/shop-subscriptions/internal/lib/sl"
	"github.com/zoomarket/shop-subscriptions/internal/lib/smtp"
	"github.com/zoomarket/shop-subscriptions/internal/models"
)

// SenderService отправляет уведомления владельцам магазинов по SMTP.
type SenderService struct {
	transport smtp.TransportInterface
	log       *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(transport smtp.TransportInterface, log *slog.Logger) *SenderService {
	return &SenderService{
		transport: transport,
		log:       log,
	}
}

// planTitle человекочитаемое название тарифа для текста письма.
func planTitle(plan models.Plan) string {
	if plan == models.PlanWholesaler {
		return "Оптовый"
	}
	return "Розничный"
}

// SendShopHiddenNotice уведомляет владельца, что подписка истекла
// и магазин скрыт из маркетплейса.
func (s *SenderService) SendShopHiddenNotice(body []byte) error {
	var event models.LifecycleEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	to := []string{event.OwnerEmail}
	subject := "Подписка истекла: магазин скрыт из маркетплейса"
	bodyText := fmt.Sprintf("Здравствуйте!\n\nСрок подписки магазина «%s» (тариф: %s) истёк, магазин скрыт из поиска и с карты.\n\nЧтобы вернуть магазин покупателям, оформите подписку заново в личном кабинете.",
		event.ShopName, planTitle(event.Plan))

	return s.sendEmail(to, subject, bodyText)
}

// SendRenewalNotice уведомляет владельца о начатом продлении
// и присылает ссылку на страницу оплаты.
func (s *SenderService) SendRenewalNotice(body []byte) error {
	var event models.LifecycleEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	to := []string{event.OwnerEmail}
	subject := "Продление подписки: требуется оплата"
	bodyText := fmt.Sprintf("Здравствуйте!\n\nСрок подписки магазина «%s» (тариф: %s) подошёл к концу, мы начали продление.\n\nДо подтверждения оплаты магазин скрыт из маркетплейса. Оплатить продление можно по ссылке: %s",
		event.ShopName, planTitle(event.Plan), event.InitPoint)

	return s.sendEmail(to, subject, bodyText)
}

func (s *SenderService) sendEmail(to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.GetSMTPUser(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer client.Close()

	if err := client.Mail(s.transport.GetSMTPUser()); err != nil {
		s.log.Error("failed to set MAIL FROM", "from", s.transport.GetSMTPUser(), sl.Err(err))
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", "recipient", addr, sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get Data writer", sl.Err(err))
		return err
	}

	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}

	if err = wc.Close(); err != nil {
		s.log.Error("failed to close Data writer", sl.Err(err))
		return err
	}

	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully", "to", to)
	return nil
}
