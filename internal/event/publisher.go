package event

import (
    "context"
    "encoding/json"
    "fmt"
    "log"
    "sync"

    amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher is the outbound half of the event router.  Publish failures are
// logged and returned; the orchestrator treats them as non-fatal because the
// authoritative state already lives in the database.
type Publisher interface {
    Publish(ctx context.Context, env Envelope) error
}

// NopPublisher discards events.  Used when no broker is configured (tests,
// local development without RabbitMQ).
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Envelope) error { return nil }

// AMQPPublisher publishes envelopes to RabbitMQ, one durable queue per event
// kind, with persistent deliveries.  The connection is long-lived and
// redialed lazily after a failure instead of dialing per publish.
type AMQPPublisher struct {
    url string

    mu       sync.Mutex
    conn     *amqp.Connection
    ch       *amqp.Channel
    declared map[string]bool
}

// NewAMQPPublisher returns a publisher for the given broker URL.  No
// connection is made until the first Publish.
func NewAMQPPublisher(url string) *AMQPPublisher {
    return &AMQPPublisher{url: url, declared: make(map[string]bool)}
}

// Publish sends the envelope to the queue named after its kind.
func (p *AMQPPublisher) Publish(ctx context.Context, env Envelope) error {
    body, err := json.Marshal(env)
    if err != nil {
        return fmt.Errorf("marshal %s event: %w", env.Kind, err)
    }

    p.mu.Lock()
    defer p.mu.Unlock()

    if err := p.ensureChannel(env.Kind); err != nil {
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        Timestamp:    env.OccurredAt,
        Body:         body,
    }
    if err := p.ch.PublishWithContext(ctx,
        "",       // default exchange
        env.Kind, // routing key = queue name
        false,    // mandatory
        false,    // immediate
        pub,
    ); err != nil {
        // Drop the channel so the next publish redials.
        p.reset()
        log.Printf("event-publisher: publish %s failed: %v", env.Kind, err)
        return fmt.Errorf("publish %s: %w", env.Kind, err)
    }
    return nil
}

// Close tears down the broker connection.
func (p *AMQPPublisher) Close() {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.reset()
}

// ensureChannel dials and declares the target queue as needed.  Caller holds
// the mutex.
func (p *AMQPPublisher) ensureChannel(kind string) error {
    if p.conn == nil || p.conn.IsClosed() {
        p.reset()
        conn, err := amqp.Dial(p.url)
        if err != nil {
            return fmt.Errorf("dial broker: %w", err)
        }
        ch, err := conn.Channel()
        if err != nil {
            _ = conn.Close()
            return fmt.Errorf("open channel: %w", err)
        }
        p.conn, p.ch = conn, ch
        p.declared = make(map[string]bool)
    }
    if !p.declared[kind] {
        if _, err := p.ch.QueueDeclare(
            kind,  // name
            true,  // durable
            false, // autoDelete
            false, // exclusive
            false, // noWait
            nil,   // args
        ); err != nil {
            p.reset()
            return fmt.Errorf("declare queue %s: %w", kind, err)
        }
        p.declared[kind] = true
    }
    return nil
}

func (p *AMQPPublisher) reset() {
    if p.ch != nil {
        _ = p.ch.Close()
        p.ch = nil
    }
    if p.conn != nil {
        _ = p.conn.Close()
        p.conn = nil
    }
}
