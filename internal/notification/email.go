package notification

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"
)

// Mailer は1通のHTMLメールを送る。
type Mailer interface {
	Send(to, subject, htmlBody string) error
}

type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (m *SMTPMailer) Send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)
	return m.dialer.DialAndSend(msg)
}

// EmailNotifier は直接配信経路。買い手宛てに送り、
// 有効なら管理者宛てのコピーも送る。
type EmailNotifier struct {
	mailer       Mailer
	adminEmail   string
	adminEnabled bool
}

func NewEmailNotifier(mailer Mailer, adminEmail string, adminEnabled bool) *EmailNotifier {
	return &EmailNotifier{mailer: mailer, adminEmail: adminEmail, adminEnabled: adminEnabled}
}

func (n *EmailNotifier) Name() string { return "email" }

func (n *EmailNotifier) Notify(ctx context.Context, ev OrderEvent) error {
	subject, ok := buildSubject(ev, false)
	if !ok {
		//知らないイベント種別は送らない
		return nil
	}

	var errs []error

	if ev.UserEmail == "" {
		errs = append(errs, fmt.Errorf("order %d: no recipient address", ev.OrderID))
	} else if err := n.mailer.Send(ev.UserEmail, subject, renderOrderEmailHTML(ev, false)); err != nil {
		errs = append(errs, fmt.Errorf("send to user %s: %w", ev.UserEmail, err))
	}

	//管理者コピー（買い手宛ての失敗とは独立に試す）
	if n.adminEnabled && n.adminEmail != "" {
		adminSubject, _ := buildSubject(ev, true)
		if err := n.mailer.Send(n.adminEmail, adminSubject, renderOrderEmailHTML(ev, true)); err != nil {
			errs = append(errs, fmt.Errorf("send to admin: %w", err))
		}
	}

	return errors.Join(errs...)
}
