package queue

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/streadway/amqp"
)

type fakeAcknowledger struct {
	acks     int
	nacks    int
	requeued bool
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error { a.acks++; return nil }
func (a *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.nacks++
	a.requeued = requeue
	return nil
}
func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error { return nil }

type publishedJob struct {
	body    []byte
	headers amqp.Table
}

func newCapturingQueue() (*AMQPQueue, *[]publishedJob) {
	published := &[]publishedJob{}
	q := &AMQPQueue{}
	q.publish = func(body []byte, headers amqp.Table) error {
		*published = append(*published, publishedJob{body: body, headers: headers})
		return nil
	}
	return q, published
}

func jobBody(t *testing.T, campaignID int) []byte {
	t.Helper()
	body, err := json.Marshal(SendJob{CampaignID: campaignID})
	if err != nil {
		t.Fatalf("marshal job: %v", err)
	}
	return body
}

func TestAttemptNumber(t *testing.T) {
	if got := attemptNumber(nil); got != 1 {
		t.Errorf("fresh delivery: expected attempt 1, got %d", got)
	}
	if got := attemptNumber(amqp.Table{"x-retry-count": int32(2)}); got != 3 {
		t.Errorf("two retries burned: expected attempt 3, got %d", got)
	}
	// A header of the wrong type counts as a fresh job.
	if got := attemptNumber(amqp.Table{"x-retry-count": "2"}); got != 1 {
		t.Errorf("malformed header: expected attempt 1, got %d", got)
	}
}

func TestProcessAcksSuccessfulJob(t *testing.T) {
	q, published := newCapturingQueue()
	ack := &fakeAcknowledger{}

	q.process(amqp.Delivery{Acknowledger: ack, Body: jobBody(t, 7)}, func(j SendJob) error {
		if j.CampaignID != 7 {
			t.Errorf("expected campaign 7, got %d", j.CampaignID)
		}
		return nil
	})

	if ack.acks != 1 || ack.nacks != 0 {
		t.Errorf("expected 1 ack / 0 nacks, got %d / %d", ack.acks, ack.nacks)
	}
	if len(*published) != 0 {
		t.Errorf("successful job must not be republished, got %d", len(*published))
	}
}

func TestProcessRepublishesFailedJobWithRetryCount(t *testing.T) {
	q, published := newCapturingQueue()
	ack := &fakeAcknowledger{}
	fail := func(SendJob) error { return errors.New("send exploded") }

	// First attempt carries no header.
	q.process(amqp.Delivery{Acknowledger: ack, Body: jobBody(t, 7)}, fail)

	if len(*published) != 1 {
		t.Fatalf("expected 1 republished job, got %d", len(*published))
	}
	if got := (*published)[0].headers["x-retry-count"]; got != int32(1) {
		t.Errorf("expected x-retry-count 1 on republish, got %v", got)
	}
	if ack.acks != 1 {
		t.Errorf("original delivery must be acked after republish, got %d acks", ack.acks)
	}
	if ack.nacks != 0 {
		t.Errorf("republish path must not nack, got %d", ack.nacks)
	}

	// Second failure increments again.
	q.process(amqp.Delivery{
		Acknowledger: ack,
		Body:         jobBody(t, 7),
		Headers:      amqp.Table{"x-retry-count": int32(1)},
	}, fail)

	if len(*published) != 2 {
		t.Fatalf("expected 2 republished jobs, got %d", len(*published))
	}
	if got := (*published)[1].headers["x-retry-count"]; got != int32(2) {
		t.Errorf("expected x-retry-count 2 on second republish, got %v", got)
	}
}

func TestProcessDropsJobAfterMaxAttempts(t *testing.T) {
	q, published := newCapturingQueue()
	ack := &fakeAcknowledger{}

	q.process(amqp.Delivery{
		Acknowledger: ack,
		Body:         jobBody(t, 7),
		Headers:      amqp.Table{"x-retry-count": int32(2)},
	}, func(SendJob) error { return errors.New("still failing") })

	if len(*published) != 0 {
		t.Errorf("exhausted job must not be republished, got %d", len(*published))
	}
	if ack.acks != 1 || ack.nacks != 0 {
		t.Errorf("exhausted job must be acked and dropped, got %d acks / %d nacks", ack.acks, ack.nacks)
	}
}

func TestProcessRequeuesWhenRepublishFails(t *testing.T) {
	q := &AMQPQueue{}
	q.publish = func([]byte, amqp.Table) error { return errors.New("broker gone") }
	ack := &fakeAcknowledger{}

	q.process(amqp.Delivery{Acknowledger: ack, Body: jobBody(t, 7)},
		func(SendJob) error { return errors.New("send exploded") })

	if ack.nacks != 1 || !ack.requeued {
		t.Errorf("expected nack-requeue fallback, got %d nacks (requeued=%v)", ack.nacks, ack.requeued)
	}
	if ack.acks != 0 {
		t.Errorf("delivery must not be acked when republish fails, got %d acks", ack.acks)
	}
}

func TestProcessAcksMalformedPayload(t *testing.T) {
	q, published := newCapturingQueue()
	ack := &fakeAcknowledger{}

	q.process(amqp.Delivery{Acknowledger: ack, Body: []byte("not json")},
		func(SendJob) error { t.Fatal("handler must not run"); return nil })

	if ack.acks != 1 || ack.nacks != 0 {
		t.Errorf("malformed payload must be acked away, got %d acks / %d nacks", ack.acks, ack.nacks)
	}
	if len(*published) != 0 {
		t.Errorf("malformed payload must not be republished, got %d", len(*published))
	}
}
