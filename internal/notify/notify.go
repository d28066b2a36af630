// Package notify forwards submission receipts to the back office.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ironsheep/inverif/internal/intake"
	"github.com/ironsheep/inverif/internal/logger"
)

// SubmissionSubject is the NATS subject receipts are published on.
const SubmissionSubject = "inverif.submissions"

const flushTimeout = 5 * time.Second

// LogNotifier writes receipts to the log.
type LogNotifier struct {
	log logger.Logger
}

func NewLogNotifier(log logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, r *intake.Receipt) error {
	docs := make([]string, 0, len(r.Documents))
	for _, d := range r.Documents {
		docs = append(docs, d.ID+"="+d.FileName)
	}
	n.log.Info("notify", "submission received", map[string]interface{}{
		"receipt":   r.ID,
		"form":      r.FormID,
		"poNumber":  r.PONumber,
		"supplier":  string(r.SupplierType),
		"documents": docs,
	})
	return nil
}

// Publisher is the part of a NATS connection the notifier needs.
type Publisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// NATSNotifier publishes receipts as JSON.
type NATSNotifier struct {
	conn    Publisher
	nc      *nats.Conn
	subject string
}

// NewNATSNotifier connects to url.
func NewNATSNotifier(url string) (*NATSNotifier, error) {
	nc, err := nats.Connect(url,
		nats.Name("inverif"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSNotifier{conn: nc, nc: nc, subject: SubmissionSubject}, nil
}

// NewNATSNotifierWith wraps an existing publisher.
func NewNATSNotifierWith(p Publisher, subject string) *NATSNotifier {
	if subject == "" {
		subject = SubmissionSubject
	}
	return &NATSNotifier{conn: p, subject: subject}
}

func (n *NATSNotifier) Notify(ctx context.Context, r *intake.Receipt) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal receipt: %w", err)
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("failed to publish receipt to subject %s: %w", n.subject, err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flushTimeout)
		defer cancel()
	}
	return n.conn.FlushWithContext(ctx)
}

func (n *NATSNotifier) Close() {
	if n.nc != nil {
		n.nc.Close()
	}
}

// Multi notifies every wrapped notifier and joins their errors.
type Multi []intake.Notifier

func (m Multi) Notify(ctx context.Context, r *intake.Receipt) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
