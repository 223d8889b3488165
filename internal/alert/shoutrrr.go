package alert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
)

// ShoutrrrTransport mirrors alerts to operator channels (Slack, Telegram,
// e-mail, ...) configured as shoutrrr service URLs.
type ShoutrrrTransport struct {
	sender    *router.ServiceRouter
	formatter Formatter
}

// NewShoutrrrTransport validates the URLs and builds one sender for all of them.
func NewShoutrrrTransport(urls []string, timeout time.Duration, formatter Formatter) (*ShoutrrrTransport, error) {
	if len(urls) == 0 {
		return nil, errors.New("at least one shoutrrr URL is required")
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, fmt.Errorf("create shoutrrr sender: %w", err)
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return &ShoutrrrTransport{sender: sender, formatter: formatter}, nil
}

// SendAlert sends the formatted alert to every configured service.
// The router applies its own timeout; ctx is only checked before sending.
func (s *ShoutrrrTransport) SendAlert(ctx context.Context, a Alert) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	params := stypes.Params{}
	if a.Kind == KindMatch {
		params.SetTitle(fmt.Sprintf("Missing person sighting: %s", a.Name))
	} else {
		params.SetTitle(fmt.Sprintf("New report: %s", a.Name))
	}
	body := s.formatter.Format(a) + "\nContact: " + maskPhone(a.Phone)

	var sendErrs []error
	for _, err := range s.sender.Send(body, &params) {
		if err != nil {
			sendErrs = append(sendErrs, err)
		}
	}
	if len(sendErrs) > 0 {
		return Receipt{}, fmt.Errorf("%w: shoutrrr: %w", ErrTransport, errors.Join(sendErrs...))
	}
	return Receipt{Transport: "shoutrrr", Status: "sent"}, nil
}

// maskPhone keeps only the last four digits for operator channels.
func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return "****" + phone[len(phone)-4:]
}
