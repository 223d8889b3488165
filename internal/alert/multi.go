package alert

import (
	"context"
	"errors"
	"fmt"
)

// MultiTransport sends every alert through several transports. The first
// successful receipt is returned; it fails only when every transport fails.
type MultiTransport struct {
	transports []Transport
}

// NewMultiTransport combines transports in priority order.
func NewMultiTransport(transports ...Transport) *MultiTransport {
	return &MultiTransport{transports: transports}
}

// SendAlert implements Transport.
func (m *MultiTransport) SendAlert(ctx context.Context, a Alert) (Receipt, error) {
	if len(m.transports) == 0 {
		return Receipt{}, fmt.Errorf("%w: no transport configured", ErrTransport)
	}

	var (
		first Receipt
		ok    bool
		errs  []error
	)
	for _, t := range m.transports {
		r, err := t.SendAlert(ctx, a)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			first, ok = r, true
		}
	}
	if ok {
		return first, nil
	}
	return Receipt{}, errors.Join(errs...)
}

// NopTransport accepts every alert without delivering it. Used when no
// transport is configured so the pipeline still runs end to end.
type NopTransport struct{}

// SendAlert implements Transport.
func (NopTransport) SendAlert(ctx context.Context, a Alert) (Receipt, error) {
	return Receipt{Transport: "nop", Status: "skipped"}, nil
}
