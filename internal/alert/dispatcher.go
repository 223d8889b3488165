package alert

import (
	"context"
	"sync"
	"time"

	"github.com/kozaktomas/facewatch/internal/logger"
	"github.com/kozaktomas/facewatch/internal/metrics"
	"github.com/sirupsen/logrus"
)

const defaultDispatchTimeout = 10 * time.Second

// Dispatcher sends alerts detached from the caller. Outcomes are only logged
// and counted; the caller never waits for delivery.
type Dispatcher struct {
	transport Transport
	timeout   time.Duration
	log       *logrus.Entry
	metrics   *metrics.Metrics

	wg sync.WaitGroup
}

// NewDispatcher creates a dispatcher bounding each delivery by timeout.
func NewDispatcher(transport Transport, timeout time.Duration, log *logrus.Entry, m *metrics.Metrics) *Dispatcher {
	if transport == nil {
		transport = NopTransport{}
	}
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Dispatcher{
		transport: transport,
		timeout:   timeout,
		log:       logger.Component(log, "alert"),
		metrics:   m,
	}
}

// Dispatch starts delivery in the background and returns immediately.
func (d *Dispatcher) Dispatch(a Alert) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.send(a)
	}()
}

func (d *Dispatcher) send(a Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	entry := d.log.WithFields(logrus.Fields{
		logger.FieldCaseID: a.CaseID,
		"kind":             a.Kind,
	})

	start := time.Now()
	receipt, err := d.transport.SendAlert(ctx, a)
	entry = entry.WithField(logger.FieldDurationMs, time.Since(start).Milliseconds())
	if err != nil {
		d.metrics.IncAlert(string(a.Kind), "error")
		entry.WithError(err).Error("Alert delivery failed")
		return
	}

	d.metrics.IncAlert(string(a.Kind), "ok")
	entry.WithFields(logrus.Fields{
		"transport": receipt.Transport,
		"receipt":   receipt.ID,
		"status":    receipt.Status,
	}).Info("Alert delivered")
}

// Wait blocks until in-flight deliveries finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
