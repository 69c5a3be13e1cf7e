package rabbitmq

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apex/log"
	"github.com/streadway/amqp"

	"github.com/cljackson1279/SiteRecap/metrics"
)

// Message represents a received RabbitMQ message.
type Message struct {
	Body        []byte
	RoutingKey  string
	Exchange    string
	ContentType string
	Timestamp   time.Time
	DeliveryTag uint64
}

// CallbackFunc processes a message. Return:
// - nil on success (will Ack)
// - Permanent(err) for permanent failure (will Nack requeue=false)
// - any other error for transient failure (will Nack requeue=true)
type CallbackFunc func(msg *Message) error

// PermanentError marks a message processing failure as non-retriable.
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string {
	if e == nil || e.Err == nil {
		return "permanent error"
	}
	return e.Err.Error()
}
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a PermanentError (non-retriable).
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func isPermanent(err error) bool {
	var perr *PermanentError
	return errors.As(err, &perr)
}

// Subscriber consumes report-generation requests from a RabbitMQ queue.
// The pipeline absorbs model failures as degraded data, so a delivery only
// comes back transient when the service itself could not run it.
type Subscriber struct {
	amqpURL  string
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	queue    string
	workers  int

	// opMu serializes amqp operations on s.channel since amqp.Channel is not safe for concurrent use.
	opMu sync.Mutex

	startOnce sync.Once
	done      chan struct{}

	connected     atomic.Bool
	lastConnectNs atomic.Int64
}

// NewSubscriber creates a subscriber and establishes the initial connection,
// so callers fail fast if RabbitMQ is unreachable.
func NewSubscriber(amqpURL, exchangeName, queueName string, workers int) (*Subscriber, error) {
	if workers < 1 {
		workers = 1
	}
	s := &Subscriber{
		amqpURL:  amqpURL,
		exchange: exchangeName,
		queue:    queueName,
		workers:  workers,
		done:     make(chan struct{}),
	}

	s.opMu.Lock()
	err := s.reconnectLocked()
	s.opMu.Unlock()
	if err != nil {
		return nil, err
	}

	return s, nil
}

// reconnectLocked tears down any existing channel/connection and recreates them.
// Caller must hold s.opMu.
func (s *Subscriber) reconnectLocked() error {
	if s.channel != nil {
		_ = s.channel.Close()
		s.channel = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}

	conn, err := amqp.Dial(s.amqpURL)
	if err != nil {
		s.connected.Store(false)
		metrics.RabbitMQConnected.Set(0)
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		s.connected.Store(false)
		metrics.RabbitMQConnected.Set(0)
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(s.exchange, "direct", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		s.connected.Store(false)
		metrics.RabbitMQConnected.Set(0)
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(s.queue, true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		s.connected.Store(false)
		metrics.RabbitMQConnected.Set(0)
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	s.queue = q.Name

	s.conn = conn
	s.channel = ch
	s.connected.Store(true)
	metrics.RabbitMQConnected.Set(1)

	now := time.Now()
	s.lastConnectNs.Store(now.UnixNano())
	metrics.RabbitMQLastConnectSeconds.Set(float64(now.Unix()))

	return nil
}

// Start begins consuming messages and dispatching them to the routing key callbacks.
func (s *Subscriber) Start(routingKeyCallbacks map[string]CallbackFunc) error {
	s.startOnce.Do(func() {
		jobs := make(chan amqp.Delivery, s.workers)

		// Worker pool: bounded concurrency, ack/nack is done after processing completes.
		for i := 0; i < s.workers; i++ {
			workerID := i + 1
			go func() {
				for delivery := range jobs {
					s.process(workerID, delivery, routingKeyCallbacks)
				}
			}()
		}

		// Consume loop: if the broker restarts, the consumer channel closes; we reconnect and resume.
		go s.consumeLoop(jobs, routingKeyCallbacks)
	})
	return nil
}

func (s *Subscriber) process(workerID int, delivery amqp.Delivery, callbacks map[string]CallbackFunc) {
	startedAt := time.Now()
	metrics.WorkerInFlight.Inc()
	defer metrics.WorkerInFlight.Dec()

	logger := log.WithField("worker_id", workerID).
		WithField("routing_key", delivery.RoutingKey).
		WithField("delivery_tag", delivery.DeliveryTag)

	callback, exists := callbacks[delivery.RoutingKey]
	if !exists {
		s.opMu.Lock()
		_ = delivery.Nack(false, false)
		s.opMu.Unlock()
		metrics.ProcessedTotal.WithLabelValues("permanent_error").Inc()
		logger.Warn("no callback for routing key, dropping delivery")
		return
	}

	msg := &Message{
		Body:        delivery.Body,
		RoutingKey:  delivery.RoutingKey,
		Exchange:    delivery.Exchange,
		ContentType: delivery.ContentType,
		Timestamp:   delivery.Timestamp,
		DeliveryTag: delivery.DeliveryTag,
	}

	err := callback(msg)

	s.opMu.Lock()
	switch {
	case err == nil:
		_ = delivery.Ack(false)
		metrics.ProcessedTotal.WithLabelValues("success").Inc()
	case isPermanent(err):
		_ = delivery.Nack(false, false)
		metrics.ProcessedTotal.WithLabelValues("permanent_error").Inc()
	default:
		// Transient: requeue, but not if this is already a redelivery, to
		// avoid a tight poison loop.
		_ = delivery.Nack(false, !delivery.Redelivered)
		metrics.ProcessedTotal.WithLabelValues("transient_error").Inc()
	}
	s.opMu.Unlock()

	if err != nil {
		logger.WithError(err).WithField("duration_ms", time.Since(startedAt).Milliseconds()).
			Warn("delivery processing failed")
		return
	}
	logger.WithField("duration_ms", time.Since(startedAt).Milliseconds()).
		Info("delivery processed")
}

func (s *Subscriber) consumeLoop(jobs chan<- amqp.Delivery, callbacks map[string]CallbackFunc) {
	backoff := 1 * time.Second
	for {
		select {
		case <-s.done:
			close(jobs)
			return
		default:
		}

		s.opMu.Lock()
		if s.conn == nil || s.conn.IsClosed() || s.channel == nil {
			if err := s.reconnectLocked(); err != nil {
				s.opMu.Unlock()
				log.WithError(err).Warnf("rabbitmq reconnect failed, retrying in %v", backoff)
				backoff = s.sleep(backoff)
				continue
			}
		}

		if err := s.channel.Qos(s.workers, 0, false); err != nil {
			s.dropConnectionLocked()
			s.opMu.Unlock()
			log.WithError(err).Warn("rabbitmq qos failed")
			backoff = s.sleep(backoff)
			continue
		}

		bindErr := error(nil)
		for routingKey := range callbacks {
			if err := s.channel.QueueBind(s.queue, routingKey, s.exchange, false, nil); err != nil {
				bindErr = err
				break
			}
		}
		if bindErr != nil {
			s.dropConnectionLocked()
			s.opMu.Unlock()
			log.WithError(bindErr).Warn("rabbitmq bind failed")
			backoff = s.sleep(backoff)
			continue
		}

		msgs, err := s.channel.Consume(s.queue, "", false, false, false, false, nil)
		s.opMu.Unlock()
		if err != nil {
			log.WithError(err).Warn("rabbitmq consume failed")
			backoff = s.sleep(backoff)
			continue
		}

		log.Infof("rabbitmq consuming exchange=%s queue=%s workers=%d", s.exchange, s.queue, s.workers)
		backoff = 1 * time.Second

		for {
			select {
			case <-s.done:
				close(jobs)
				return
			case delivery, ok := <-msgs:
				if !ok {
					s.connected.Store(false)
					metrics.RabbitMQConnected.Set(0)
					log.Warn("rabbitmq delivery channel closed, reconnecting")
					goto Reconnect
				}
				jobs <- delivery
			}
		}

	Reconnect:
		backoff = s.sleep(backoff)
	}
}

// dropConnectionLocked marks the connection bad so the loop reconnects.
// Caller must hold s.opMu.
func (s *Subscriber) dropConnectionLocked() {
	s.connected.Store(false)
	metrics.RabbitMQConnected.Set(0)
	if s.channel != nil {
		_ = s.channel.Close()
		s.channel = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

func (s *Subscriber) sleep(backoff time.Duration) time.Duration {
	select {
	case <-s.done:
		return backoff
	case <-time.After(backoff):
	}
	if backoff < 30*time.Second {
		backoff *= 2
	}
	return backoff
}

// UnmarshalTo unmarshals the message body into the provided interface.
func (m *Message) UnmarshalTo(v any) error {
	return json.Unmarshal(m.Body, v)
}

// Close closes the subscriber connection and channel.
func (s *Subscriber) Close() error {
	select {
	case <-s.done:
		// already closed
	default:
		close(s.done)
	}

	var err error
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.channel != nil {
		if channelErr := s.channel.Close(); channelErr != nil {
			log.WithError(channelErr).Warn("failed to close channel")
			err = channelErr
		}
		s.channel = nil
	}

	if s.conn != nil {
		if connErr := s.conn.Close(); connErr != nil {
			log.WithError(connErr).Warn("failed to close connection")
			if err == nil {
				err = connErr
			}
		}
		s.conn = nil
	}

	s.connected.Store(false)
	metrics.RabbitMQConnected.Set(0)
	return err
}

// IsConnected indicates if the subscriber is currently connected (best-effort).
func (s *Subscriber) IsConnected() bool {
	if s.conn == nil || s.channel == nil {
		return false
	}
	if s.conn.IsClosed() {
		return false
	}
	return s.connected.Load()
}

// LastConnectAt returns the last time we successfully (re)connected.
func (s *Subscriber) LastConnectAt() time.Time {
	ns := s.lastConnectNs.Load()
	if ns <= 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
