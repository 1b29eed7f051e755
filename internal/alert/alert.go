// Package alert sends the operational emails: daily statistics reports and
// latched raise/clear alarms.
package alert

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Alerter sends email through a plain relay. With no SMTPServer configured
// every send becomes a log line, which keeps test and development hosts
// quiet.
type Alerter struct {
	SMTPServer string // host:port
	From       string
	To         string
	Prog       string // subject prefix
	Build      string
	Logger     *log.Logger

	mu     sync.Mutex
	raised map[string]bool
}

// Send emails one message. Failures are logged, never propagated: alerting
// must not take an ingester down.
func (a *Alerter) Send(subject, body string) {
	subject = fmt.Sprintf("%s %s: %s", a.Prog, a.Build, subject)
	if a.SMTPServer == "" || a.To == "" {
		a.Logger.Printf("alert (not mailed): %s", subject)
		return
	}

	id := uuid.NewString()
	msg := strings.Join([]string{
		"From: " + a.From,
		"To: " + a.To,
		"Subject: " + subject,
		"Message-ID: <" + id + "@" + a.Prog + ">",
		"Date: " + time.Now().Format(time.RFC1123Z),
		"",
		body,
	}, "\r\n")

	err := smtp.SendMail(a.SMTPServer, nil, a.From, []string{a.To}, []byte(msg))
	if err != nil {
		a.Logger.Printf("MINOR alert mail failed: %v", err)
		return
	}
	a.Logger.Printf("alert sent: %s", subject)
}

// Raise sends an alarm once per excursion; repeated raises for the same key
// are suppressed until Clear.
func (a *Alerter) Raise(key, body string) {
	a.mu.Lock()
	if a.raised == nil {
		a.raised = make(map[string]bool)
	}
	already := a.raised[key]
	a.raised[key] = true
	a.mu.Unlock()
	if already {
		return
	}
	a.Send("ALARM "+key, body)
}

// Clear sends the recovery mail if the alarm was raised.
func (a *Alerter) Clear(key, body string) {
	a.mu.Lock()
	wasRaised := a.raised[key]
	delete(a.raised, key)
	a.mu.Unlock()
	if !wasRaised {
		return
	}
	a.Send("CLEAR "+key, body)
}
