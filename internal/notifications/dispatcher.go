package notifications

import (
	"context"
	"log"
	"sync"
	"time"
)

// Dispatcher sends notifications asynchronously after the primary state
// change has committed. A slow or failing channel can never delay or fail the
// approval or disapproval that triggered it; outcomes are only logged.
type Dispatcher struct {
	email  EmailProvider
	sms    SMSProvider
	logger *log.Logger

	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher over the given providers.
func NewDispatcher(email EmailProvider, sms SMSProvider) *Dispatcher {
	return &Dispatcher{
		email:   email,
		sms:     sms,
		logger:  log.New(log.Writer(), "[NOTIFY] ", log.LstdFlags),
		timeout: 30 * time.Second,
	}
}

// DispatchEmail sends msg in the background. A nil provider (channel
// disabled in config) drops the message with a log line.
func (d *Dispatcher) DispatchEmail(msg EmailMessage) {
	if d.email == nil {
		d.logger.Printf("email disabled, dropping message to %v", msg.To)
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.email.Send(ctx, msg); err != nil {
			d.logger.Printf("email to %v failed: %v", msg.To, err)
		}
	}()
}

// DispatchSMS sends msg in the background. A nil provider drops the message
// with a log line.
func (d *Dispatcher) DispatchSMS(msg SMSMessage) {
	if d.sms == nil {
		d.logger.Printf("sms disabled, dropping message to %s", msg.To)
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.sms.Send(ctx, msg); err != nil {
			d.logger.Printf("sms to %s failed: %v", msg.To, err)
		}
	}()
}

// Wait blocks until all in-flight deliveries have finished. Used by tests and
// graceful shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
