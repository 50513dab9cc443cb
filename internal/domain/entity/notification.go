package entity

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
)

// Channel identifies a delivery medium with its own adapter, rate limit,
// and sender identity.
type Channel string

// Supported delivery channels.
const (
	ChannelSMS      Channel = "sms"
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

// Channels lists every supported channel in a stable order.
// Used for configuration iteration and metric label pre-registration.
func Channels() []Channel {
	return []Channel{ChannelSMS, ChannelEmail, ChannelWhatsApp}
}

// Valid reports whether the channel is one of the supported values.
func (c Channel) Valid() bool {
	switch c {
	case ChannelSMS, ChannelEmail, ChannelWhatsApp:
		return true
	}
	return false
}

// String returns the wire representation of the channel.
func (c Channel) String() string {
	return string(c)
}

// ParseChannel converts caller input into a Channel.
// Input is matched case-insensitively; unknown values return a ValidationError.
func ParseChannel(s string) (Channel, error) {
	c := Channel(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", &ValidationError{
			Field:   "channel",
			Message: fmt.Sprintf("unknown channel %q (must be sms, email, or whatsapp)", s),
		}
	}
	return c, nil
}

// Maximum body sizes per channel. SMS follows the common vendor cap of
// 1600 characters (10 concatenated segments); WhatsApp caps message text
// at 4096 characters; email bodies are bounded only to keep requests sane.
const (
	maxSMSBodyChars      = 1600
	maxWhatsAppBodyChars = 4096
	maxEmailBodyBytes    = 10 << 20

	maxIdempotencyKeyLength = 255
	maxEmailAddressLength   = 254
)

// e164Pattern matches E.164 numbers: a plus sign followed by 8 to 15 digits
// with a non-zero leading digit.
var e164Pattern = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)

// whatsAppPrefix is the vendor addressing prefix for WhatsApp recipients.
const whatsAppPrefix = "whatsapp:"

// NotificationRequest is a caller-submitted send request. It is immutable
// once accepted; the dispatcher derives an Envelope from it and never
// mutates the original.
type NotificationRequest struct {
	Channel        Channel
	Recipient      string
	Body           string
	TemplateID     string        // optional template reference, passed through to the adapter
	IdempotencyKey string        // caller-supplied, unique per logical send
	Timeout        time.Duration // optional per-request adapter timeout; 0 means channel default
	CreatedAt      time.Time
}

// Validate checks the request before any delivery state is created.
// Malformed input is rejected here and never retried.
func (r *NotificationRequest) Validate() error {
	if !r.Channel.Valid() {
		return &ValidationError{
			Field:   "channel",
			Message: fmt.Sprintf("unknown channel %q (must be sms, email, or whatsapp)", string(r.Channel)),
		}
	}

	if r.IdempotencyKey == "" {
		return &ValidationError{Field: "idempotency_key", Message: "idempotency key is required"}
	}
	if len(r.IdempotencyKey) > maxIdempotencyKeyLength {
		return &ValidationError{
			Field:   "idempotency_key",
			Message: fmt.Sprintf("idempotency key must not exceed %d characters", maxIdempotencyKeyLength),
		}
	}

	if r.Body == "" && r.TemplateID == "" {
		return &ValidationError{Field: "body", Message: "body is required when no template is given"}
	}

	if r.Timeout < 0 {
		return &ValidationError{Field: "timeout_ms", Message: "timeout must not be negative"}
	}

	if err := validateRecipient(r.Channel, r.Recipient); err != nil {
		return err
	}

	return validateBodySize(r.Channel, r.Body)
}

// validateRecipient enforces the channel-specific recipient format.
func validateRecipient(channel Channel, recipient string) error {
	if recipient == "" {
		return &ValidationError{Field: "recipient", Message: "recipient is required"}
	}

	switch channel {
	case ChannelSMS:
		if !e164Pattern.MatchString(recipient) {
			return &ValidationError{
				Field:   "recipient",
				Message: "sms recipient must be an E.164 number (e.g. +15551234567)",
			}
		}
	case ChannelWhatsApp:
		// whatsapp: プレフィックス付きとE.164の両方を受け付ける
		number := strings.TrimPrefix(recipient, whatsAppPrefix)
		if !e164Pattern.MatchString(number) {
			return &ValidationError{
				Field:   "recipient",
				Message: "whatsapp recipient must be an E.164 number, optionally prefixed with whatsapp:",
			}
		}
	case ChannelEmail:
		if len(recipient) > maxEmailAddressLength {
			return &ValidationError{
				Field:   "recipient",
				Message: fmt.Sprintf("email address must not exceed %d characters", maxEmailAddressLength),
			}
		}
		addr, err := mail.ParseAddress(recipient)
		if err != nil || addr.Address != recipient {
			return &ValidationError{
				Field:   "recipient",
				Message: "email recipient must be a bare RFC 5322 address",
			}
		}
	}

	return nil
}

// validateBodySize enforces the per-channel body cap.
func validateBodySize(channel Channel, body string) error {
	switch channel {
	case ChannelSMS:
		if n := len([]rune(body)); n > maxSMSBodyChars {
			return &ValidationError{
				Field:   "body",
				Message: fmt.Sprintf("sms body must not exceed %d characters (got %d)", maxSMSBodyChars, n),
			}
		}
	case ChannelWhatsApp:
		if n := len([]rune(body)); n > maxWhatsAppBodyChars {
			return &ValidationError{
				Field:   "body",
				Message: fmt.Sprintf("whatsapp body must not exceed %d characters (got %d)", maxWhatsAppBodyChars, n),
			}
		}
	case ChannelEmail:
		if len(body) > maxEmailBodyBytes {
			return &ValidationError{
				Field:   "body",
				Message: fmt.Sprintf("email body must not exceed %d bytes", maxEmailBodyBytes),
			}
		}
	}
	return nil
}

// Envelope is the adapter input: the accepted request plus the resolved
// sender identity and a normalized recipient. Immutable.
type Envelope struct {
	Channel        Channel
	IdempotencyKey string
	Recipient      string // normalized per channel, see NormalizeRecipient
	Sender         string // resolved sender identity from channel configuration
	Body           string
	TemplateID     string
	Timeout        time.Duration // effective adapter timeout, already defaulted
}

// NewEnvelope derives the adapter input from a validated request.
// sender is the configured per-channel sender identity; timeout is the
// effective adapter timeout after per-channel defaulting.
func NewEnvelope(req *NotificationRequest, sender string, timeout time.Duration) Envelope {
	return Envelope{
		Channel:        req.Channel,
		IdempotencyKey: req.IdempotencyKey,
		Recipient:      NormalizeRecipient(req.Channel, req.Recipient),
		Sender:         sender,
		Body:           req.Body,
		TemplateID:     req.TemplateID,
		Timeout:        timeout,
	}
}

// NormalizeRecipient canonicalizes a validated recipient address:
// E.164 numbers are kept as-is, WhatsApp numbers gain the vendor
// whatsapp: prefix, and email domains are lowercased.
func NormalizeRecipient(channel Channel, recipient string) string {
	switch channel {
	case ChannelWhatsApp:
		if strings.HasPrefix(recipient, whatsAppPrefix) {
			return recipient
		}
		return whatsAppPrefix + recipient
	case ChannelEmail:
		at := strings.LastIndex(recipient, "@")
		if at < 0 {
			return recipient
		}
		return recipient[:at+1] + strings.ToLower(recipient[at+1:])
	default:
		return recipient
	}
}
