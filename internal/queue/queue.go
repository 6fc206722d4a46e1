package queue

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/streadway/amqp"

	"github.com/flmlnk/flmlnk-backend/internal/config"
)

// SendJob asks the worker to execute one campaign send.
type SendJob struct {
	CampaignID int `json:"campaign_id"`
}

// Publisher enqueues campaign send jobs.
type Publisher interface {
	PublishSendJob(campaignID int) error
}

// maxAttempts bounds how many times one job runs before it is dropped.
const maxAttempts = 3

// AMQPQueue wraps one connection/channel pair on a durable queue.
type AMQPQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue amqp.Queue

	// publish is the channel publish bound in Dial; tests swap it out.
	publish func(body []byte, headers amqp.Table) error
}

// Dial connects to the broker and declares the send queue.
func Dial(cfg *config.QueueConfig) (*AMQPQueue, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	qd, err := ch.QueueDeclare(
		cfg.QueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	q := &AMQPQueue{conn: conn, ch: ch, queue: qd}
	q.publish = func(body []byte, headers amqp.Table) error {
		return ch.Publish(
			"",
			qd.Name,
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Headers:      headers,
				Body:         body,
			},
		)
	}
	return q, nil
}

func (q *AMQPQueue) PublishSendJob(campaignID int) error {
	body, err := json.Marshal(SendJob{CampaignID: campaignID})
	if err != nil {
		return err
	}
	return q.publish(body, nil)
}

// attemptNumber reads how many attempts a delivery has already burned
// and reports this one, counting from 1 for a fresh job.
func attemptNumber(headers amqp.Table) int {
	if v, ok := headers["x-retry-count"].(int32); ok {
		return int(v) + 1
	}
	return 1
}

// Consume processes send jobs until the channel closes.
func (q *AMQPQueue) Consume(handler func(SendJob) error) error {
	msgs, err := q.ch.Consume(
		q.queue.Name,
		"",
		false, // manual ack for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	for d := range msgs {
		q.process(d, handler)
	}
	return nil
}

// process runs one delivery through the handler. A failed job is
// republished with an incremented x-retry-count header and the
// original acked; a plain Nack-requeue would redeliver the message
// with its headers unchanged and the attempt count stuck at zero.
// After maxAttempts the job is acked and dropped, since the campaign
// is already marked failed in the DB.
func (q *AMQPQueue) process(d amqp.Delivery, handler func(SendJob) error) {
	var job SendJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		log.Println("⚠️ invalid job payload:", err)
		d.Ack(false)
		return
	}

	if err := handler(job); err != nil {
		attempt := attemptNumber(d.Headers)
		log.Printf("⚠️ send job for campaign %d failed (attempt %d): %v", job.CampaignID, attempt, err)

		if attempt < maxAttempts {
			headers := amqp.Table{"x-retry-count": int32(attempt)}
			if pubErr := q.publish(d.Body, headers); pubErr != nil {
				log.Printf("⚠️ failed to republish job for campaign %d: %v", job.CampaignID, pubErr)
				d.Nack(false, true)
				return
			}
		} else {
			log.Printf("job for campaign %d permanently failed after %d attempts", job.CampaignID, maxAttempts)
		}
	}
	d.Ack(false)
}

func (q *AMQPQueue) Close() error {
	if q.ch != nil {
		q.ch.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

var _ Publisher = (*AMQPQueue)(nil)
