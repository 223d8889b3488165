package alert

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultTwilioBaseURL = "https://api.twilio.com"

// TwilioConfig configures the Twilio WhatsApp transport.
type TwilioConfig struct {
	AccountSID  string
	AuthToken   string
	From        string // e.g. whatsapp:+14155238886
	BaseURL     string
	CountryCode string
	Timeout     time.Duration
	Formatter   Formatter
}

// TwilioTransport sends WhatsApp messages through the Twilio Messages API.
type TwilioTransport struct {
	client      *resty.Client
	accountSID  string
	from        string
	countryCode string
	formatter   Formatter
}

type twilioMessage struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    *int   `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

type twilioError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

// NewTwilioTransport creates a new Twilio transport.
func NewTwilioTransport(cfg TwilioConfig) *TwilioTransport {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultTwilioBaseURL
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetBasicAuth(cfg.AccountSID, cfg.AuthToken).
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	return &TwilioTransport{
		client:      client,
		accountSID:  cfg.AccountSID,
		from:        cfg.From,
		countryCode: cfg.CountryCode,
		formatter:   cfg.Formatter,
	}
}

// Client exposes the underlying resty client, mainly for tests.
func (t *TwilioTransport) Client() *resty.Client {
	return t.client
}

// SendAlert posts one WhatsApp message.
func (t *TwilioTransport) SendAlert(ctx context.Context, a Alert) (Receipt, error) {
	to, err := NormalizePhone(a.Phone, t.countryCode)
	if err != nil {
		return Receipt{}, err
	}

	var (
		msg     twilioMessage
		failure twilioError
	)
	resp, err := t.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"From": t.from,
			"To":   to,
			"Body": t.formatter.Format(a),
		}).
		SetResult(&msg).
		SetError(&failure).
		Post("/2010-04-01/Accounts/" + url.PathEscape(t.accountSID) + "/Messages.json")
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: twilio request: %w", ErrTransport, err)
	}

	if resp.IsError() {
		if failure.Message != "" {
			return Receipt{}, fmt.Errorf("%w: twilio error %d: %s", ErrTransport, failure.Code, failure.Message)
		}
		return Receipt{}, fmt.Errorf("%w: twilio status %d", ErrTransport, resp.StatusCode())
	}
	if msg.ErrorCode != nil {
		return Receipt{}, fmt.Errorf("%w: twilio error %d: %s", ErrTransport, *msg.ErrorCode, msg.ErrorMessage)
	}

	return Receipt{Transport: "twilio", ID: msg.SID, Status: msg.Status}, nil
}
