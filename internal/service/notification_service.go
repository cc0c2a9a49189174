package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/ppdb-admissions-api/pkg/jobs"
)

const notificationJobType = "guardian_whatsapp"

// Notifier delivers a text message to a phone number. It reports whether the
// message was accepted for delivery and never returns an error; callers treat
// delivery as best effort.
type Notifier interface {
	Send(ctx context.Context, phone, text string) bool
}

// TextSender is the transport behind a notifier (the WAHA client in production).
type TextSender interface {
	SendText(ctx context.Context, phone, text string) error
}

// GuardianMessage is the payload queued for background delivery.
type GuardianMessage struct {
	Phone string
	Text  string
}

// DirectNotifier sends synchronously through the transport.
type DirectNotifier struct {
	sender  TextSender
	metrics *MetricsService
	logger  *zap.Logger
}

// NewDirectNotifier constructs a synchronous notifier.
func NewDirectNotifier(sender TextSender, metrics *MetricsService, logger *zap.Logger) *DirectNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectNotifier{sender: sender, metrics: metrics, logger: logger}
}

// Send implements Notifier.
func (n *DirectNotifier) Send(ctx context.Context, phone, text string) bool {
	if err := n.Deliver(ctx, GuardianMessage{Phone: phone, Text: text}); err != nil {
		n.logger.Warn("guardian notification failed", zap.Error(err))
		return false
	}
	return true
}

// Deliver sends one message and records the outcome.
func (n *DirectNotifier) Deliver(ctx context.Context, msg GuardianMessage) error {
	if n.sender == nil {
		n.metrics.RecordNotification(OutcomeSkipped)
		return errors.New("notification transport not configured")
	}
	if err := n.sender.SendText(ctx, msg.Phone, msg.Text); err != nil {
		n.metrics.RecordNotification(OutcomeError)
		return err
	}
	n.metrics.RecordNotification(OutcomeSuccess)
	return nil
}

// HandleJob adapts Deliver to the background queue.
func (n *DirectNotifier) HandleJob(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(GuardianMessage)
	if !ok {
		n.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	return n.Deliver(ctx, msg)
}

type jobEnqueuer interface {
	TryEnqueue(job jobs.Job) error
}

// QueuedNotifier hands messages to a worker queue so request handling never
// waits on the gateway. Retries are handled by the queue.
type QueuedNotifier struct {
	queue   jobEnqueuer
	metrics *MetricsService
	logger  *zap.Logger
}

// NewQueuedNotifier constructs a notifier backed by queue.
func NewQueuedNotifier(queue jobEnqueuer, metrics *MetricsService, logger *zap.Logger) *QueuedNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueuedNotifier{queue: queue, metrics: metrics, logger: logger}
}

// Send implements Notifier.
func (n *QueuedNotifier) Send(ctx context.Context, phone, text string) bool {
	if n.queue == nil {
		n.metrics.RecordNotification(OutcomeSkipped)
		return false
	}
	err := n.queue.TryEnqueue(jobs.Job{Type: notificationJobType, Payload: GuardianMessage{Phone: phone, Text: text}})
	if err != nil {
		n.metrics.RecordNotification(OutcomeRejected)
		n.logger.Warn("guardian notification not queued", zap.Error(err))
		return false
	}
	return true
}

// acceptanceMessage renders the WhatsApp text sent when a waitlisted
// candidate takes over a vacated slot.
func acceptanceMessage(pathName, parentName, childName string) string {
	return fmt.Sprintf(`*Selamat! Slot Tersedia (PPDB %s)*

Halo Bapak/Ibu %s,

Kabar gembira! Karena adanya pengunduran diri, ananda *%s* yang sebelumnya berada di Daftar Tunggu, kini telah mendapatkan slot dan dinyatakan *DITERIMA*.

Silakan segera login ke dashboard untuk melakukan daftar ulang dan pembayaran.

Terima kasih.`, pathName, parentName, childName)
}
