package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/ppdb-admissions-api/pkg/jobs"
)

type textSenderStub struct {
	sent []GuardianMessage
	err  error
}

func (s *textSenderStub) SendText(ctx context.Context, phone, text string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, GuardianMessage{Phone: phone, Text: text})
	return nil
}

type enqueuerStub struct {
	jobs []jobs.Job
	err  error
}

func (e *enqueuerStub) TryEnqueue(job jobs.Job) error {
	if e.err != nil {
		return e.err
	}
	e.jobs = append(e.jobs, job)
	return nil
}

func TestDirectNotifierRecordsOutcome(t *testing.T) {
	metrics := NewMetricsService()
	sender := &textSenderStub{}
	n := NewDirectNotifier(sender, metrics, nil)

	assert.True(t, n.Send(context.Background(), "0812", "hi"))
	sender.err = errors.New("gateway down")
	assert.False(t, n.Send(context.Background(), "0812", "hi"))

	assert.Len(t, sender.sent, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.notifyTotal.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.notifyTotal.WithLabelValues(OutcomeError)))
}

func TestDirectNotifierHandleJob(t *testing.T) {
	sender := &textSenderStub{}
	n := NewDirectNotifier(sender, nil, nil)

	err := n.HandleJob(context.Background(), jobs.Job{Payload: GuardianMessage{Phone: "0812", Text: "hi"}})
	assert.NoError(t, err)
	assert.Equal(t, []GuardianMessage{{Phone: "0812", Text: "hi"}}, sender.sent)

	assert.NoError(t, n.HandleJob(context.Background(), jobs.Job{Payload: "garbage"}))
}

func TestQueuedNotifierEnqueues(t *testing.T) {
	q := &enqueuerStub{}
	n := NewQueuedNotifier(q, nil, nil)

	assert.True(t, n.Send(context.Background(), "0812", "hi"))
	assert.Len(t, q.jobs, 1)
	assert.Equal(t, notificationJobType, q.jobs[0].Type)

	q.err = jobs.ErrQueueFull
	assert.False(t, n.Send(context.Background(), "0812", "hi"))
}

func TestAcceptanceMessage(t *testing.T) {
	msg := acceptanceMessage("Zonasi", "Siti", "Budi")
	assert.Contains(t, msg, "PPDB Zonasi")
	assert.Contains(t, msg, "Bapak/Ibu Siti")
	assert.Contains(t, msg, "*Budi*")
	assert.Contains(t, msg, "*DITERIMA*")
}
