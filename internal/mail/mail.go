package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Sender delivers a notification message.
type Sender interface {
	Send(ctx context.Context, to, from, subject, body string) error
}

// Message is one sent mail.
type Message struct {
	To      string
	From    string
	Subject string
	Body    string
}

var (
	_ Sender = (*LogSender)(nil)
	_ Sender = (*SMTPSender)(nil)
	_ Sender = (*Recorder)(nil)
)

// LogSender only logs messages, used in development.
type LogSender struct{}

func NewLogSender() *LogSender {
	return &LogSender{}
}

func (l *LogSender) Send(_ context.Context, to, from, subject, _ string) error {
	logrus.WithFields(logrus.Fields{"to": to, "from": from}).Infof("mail: %s", subject)
	return nil
}

// SMTPSender sends plain text mail through an SMTP relay.
type SMTPSender struct {
	addr string
	auth smtp.Auth
}

// NewSMTPSender creates a sender for addr (host:port). Auth is skipped without a username.
func NewSMTPSender(addr, username, password string) *SMTPSender {
	s := &SMTPSender{addr: addr}
	if username != "" {
		host := addr
		if i := strings.LastIndex(addr, ":"); i >= 0 {
			host = addr[:i]
		}
		s.auth = smtp.PlainAuth("", username, password, host)
	}

	return s
}

func (s *SMTPSender) Send(ctx context.Context, to, from, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		from, to, subject, body)

	return smtp.SendMail(s.addr, s.auth, from, []string{to}, []byte(msg))
}

// Recorder keeps sent messages in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	// Err is returned by Send when set, nothing is recorded then.
	Err error
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Send(_ context.Context, to, from, subject, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return r.Err
	}
	r.messages = append(r.messages, Message{To: to, From: from, Subject: subject, Body: body})

	return nil
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Message(nil), r.messages...)
}

func (r *Recorder) SetErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Err = err
}
