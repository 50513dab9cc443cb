package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"notify-dispatch/internal/config"
	"notify-dispatch/internal/domain/entity"
	"notify-dispatch/internal/resilience/circuitbreaker"
	"notify-dispatch/internal/usecase/dispatch"
)

// maxSubjectRunes caps the subject derived from the body's first line.
const maxSubjectRunes = 120

// sendMailFunc matches smtp.SendMail; injectable so tests can capture the
// wire message without a relay.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailProvider delivers mail through an SMTP relay.
//
// Envelopes carry no subject field, so the subject is derived from the
// first line of the body. Bodies that look like HTML are sent as
// multipart/alternative with a plain-text rendering alongside.
type EmailProvider struct {
	addr     string
	host     string
	username string
	password string
	breaker  *circuitbreaker.CircuitBreaker
	sendMail sendMailFunc
}

// NewEmailProvider builds the email adapter from channel provider settings.
// SMTP credentials come from the environment variables named in cfg; when
// both are absent the relay is used unauthenticated.
func NewEmailProvider(cfg config.ProviderConfig) (*EmailProvider, error) {
	if cfg.SMTPHost == "" {
		return nil, errors.New("smtp host not set")
	}
	port := cfg.SMTPPort
	if port == 0 {
		port = 587
	}
	return &EmailProvider{
		addr:     net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(port)),
		host:     cfg.SMTPHost,
		username: os.Getenv(cfg.UsernameEnv),
		password: os.Getenv(cfg.PasswordEnv),
		breaker:  circuitbreaker.New(circuitbreaker.ProviderConfig("email")),
		sendMail: smtp.SendMail,
	}, nil
}

// Channel implements dispatch.ChannelAdapter.
func (p *EmailProvider) Channel() entity.Channel {
	return entity.ChannelEmail
}

// Ready implements dispatch.ChannelAdapter.
func (p *EmailProvider) Ready() bool {
	return !p.breaker.IsOpen()
}

// Send implements dispatch.ChannelAdapter. The generated Message-ID serves
// as the provider message id since SMTP relays return none.
func (p *EmailProvider) Send(ctx context.Context, env entity.Envelope) (dispatch.SendResult, error) {
	messageID := fmt.Sprintf("%s@%s", uuid.NewString(), p.host)
	msg, err := buildMessage(env, messageID, time.Now().UTC())
	if err != nil {
		return dispatch.SendResult{}, dispatch.Permanent(fmt.Errorf("build message: %w", err))
	}

	if _, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.deliver(ctx, env.Sender, env.Recipient, msg)
	}); err != nil {
		return dispatch.SendResult{}, classifySMTPError(err)
	}
	return dispatch.SendResult{ProviderMessageID: messageID}, nil
}

// deliver runs the blocking smtp.SendMail under the caller's context.
// net/smtp has no context support, so cancellation abandons the attempt;
// the connection is torn down by the client timeout on the relay side.
func (p *EmailProvider) deliver(ctx context.Context, from, to string, msg []byte) error {
	done := make(chan error, 1)
	go func() {
		done <- p.sendMail(p.addr, p.auth(), from, []string{to}, msg)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *EmailProvider) auth() smtp.Auth {
	if p.username == "" && p.password == "" {
		return nil
	}
	return smtp.PlainAuth("", p.username, p.password, p.host)
}

// buildMessage assembles the full RFC 5322 message. HTML bodies become
// multipart/alternative with a goquery-extracted text part first, per the
// convention that parts are ordered plainest to richest.
func buildMessage(env entity.Envelope, messageID string, now time.Time) ([]byte, error) {
	plain := env.Body
	html := ""
	if looksLikeHTML(env.Body) {
		html = env.Body
		plain = htmlToText(env.Body)
	}

	headers := []string{
		fmt.Sprintf("From: %s", env.Sender),
		fmt.Sprintf("To: %s", env.Recipient),
		fmt.Sprintf("Subject: %s", mime.QEncoding.Encode("UTF-8", subjectLine(plain))),
		fmt.Sprintf("Message-ID: <%s>", messageID),
		fmt.Sprintf("Date: %s", now.Format(time.RFC1123Z)),
		"MIME-Version: 1.0",
	}

	if html == "" {
		headers = append(headers, "Content-Type: text/plain; charset=UTF-8")
		data := strings.Join(headers, "\r\n") + "\r\n\r\n" + plain
		return []byte(data), nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	headers = append(headers, fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q", mw.Boundary()))

	textPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=UTF-8"}})
	if err != nil {
		return nil, fmt.Errorf("create text part: %w", err)
	}
	if _, err := textPart.Write([]byte(plain)); err != nil {
		return nil, fmt.Errorf("write text part: %w", err)
	}

	htmlPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/html; charset=UTF-8"}})
	if err != nil {
		return nil, fmt.Errorf("create html part: %w", err)
	}
	if _, err := htmlPart.Write([]byte(html)); err != nil {
		return nil, fmt.Errorf("write html part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	data := strings.Join(headers, "\r\n") + "\r\n\r\n" + buf.String()
	return []byte(data), nil
}

// subjectLine derives the subject from the first non-empty line of the
// plain body, truncated to a sane header length.
func subjectLine(plain string) string {
	for _, line := range strings.Split(plain, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		runes := []rune(line)
		if len(runes) > maxSubjectRunes {
			return string(runes[:maxSubjectRunes]) + "..."
		}
		return line
	}
	return "Notification"
}

// looksLikeHTML reports whether the body is markup rather than prose: it
// must start with a tag and contain a closing one.
func looksLikeHTML(body string) bool {
	trimmed := strings.TrimSpace(body)
	if !strings.HasPrefix(trimmed, "<") {
		return false
	}
	return strings.Contains(trimmed, "</") || strings.Contains(trimmed, "/>")
}

// htmlToText renders markup down to plain text for the alternative part.
func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script, style").Remove()

	var lines []string
	for _, raw := range strings.Split(doc.Text(), "\n") {
		if line := strings.TrimSpace(raw); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// classifySMTPError maps relay failures onto the error taxonomy using the
// reply code when one is present: 4yz replies are transient by definition,
// 5yz are permanent. Connection-level failures are transient.
func classifySMTPError(err error) error {
	if dispatch.IsBreakerRejection(err) {
		return err
	}

	var reply *textproto.Error
	if errors.As(err, &reply) {
		detail := fmt.Errorf("smtp reply %d: %s", reply.Code, reply.Msg)
		if reply.Code >= 500 {
			return dispatch.Permanent(detail)
		}
		return dispatch.Transient(detail)
	}

	return dispatch.Transient(fmt.Errorf("smtp relay: %w", err))
}
