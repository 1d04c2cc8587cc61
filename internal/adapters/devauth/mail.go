package devauth

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// MailKind identifies a captured outgoing mail.
type MailKind string

const (
	MailVerifyEmail   MailKind = "verify_email"
	MailResetPassword MailKind = "reset_password"
)

const codeTTL = 24 * time.Hour

// Mail is an email the dev provider would have sent.
type Mail struct {
	Kind   MailKind
	To     string
	Code   string
	SentAt time.Time
}

type pendingCode struct {
	kind    MailKind
	email   string
	expires time.Time
}

// Outbox returns a copy of every captured mail, oldest first.
func (p *Provider) Outbox() []Mail {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Mail(nil), p.outbox...)
}

// LastMail returns the most recent mail of kind sent to email.
func (p *Provider) LastMail(kind MailKind, email string) (Mail, bool) {
	email = normalizeEmail(email)
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.outbox) - 1; i >= 0; i-- {
		if m := p.outbox[i]; m.Kind == kind && m.To == email {
			return m, true
		}
	}
	return Mail{}, false
}

func (p *Provider) queueMailLocked(kind MailKind, email string) Mail {
	now := p.minter.now()
	m := Mail{Kind: kind, To: email, Code: newCode(), SentAt: now}
	p.outbox = append(p.outbox, m)
	p.codes[m.Code] = pendingCode{kind: kind, email: email, expires: now.Add(codeTTL)}
	p.logger.Info("captured outgoing mail", "kind", string(kind), "to", email)
	return m
}

// takeCodeLocked consumes code if it is live and of the expected kind.
func (p *Provider) takeCodeLocked(code string, kind MailKind) (pendingCode, bool) {
	pending, ok := p.codes[code]
	if !ok || pending.kind != kind {
		return pendingCode{}, false
	}
	delete(p.codes, code)
	if p.minter.now().After(pending.expires) {
		return pendingCode{}, false
	}
	return pending, true
}

func newCode() string {
	buf := make([]byte, verificationCodeSize)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand does not fail on supported platforms.
		panic(err) //nolint:forbidigo // unrecoverable entropy failure
	}
	return hex.EncodeToString(buf)
}
