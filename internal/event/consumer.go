package event

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// StartPaymentConsumer connects to RabbitMQ, declares the payment result
// queues (durable) and feeds deliveries through the router.  The function
// runs a reconnect loop with capped backoff and returns only when ctx is
// cancelled.  Messages the router settles are acked; transient failures are
// nacked with requeue so the broker retries them; undecodable payloads are
// rejected without requeue to avoid a poison loop.
func StartPaymentConsumer(ctx context.Context, url string, router *Router) error {
    backoff := time.Second
    for {
        if err := ctx.Err(); err != nil {
            return err
        }
        conn, err := amqp.Dial(url)
        if err != nil {
            log.Printf("payment-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            select {
            case <-ctx.Done():
                return ctx.Err()
            case <-time.After(backoff):
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        if err := consumeLoop(ctx, conn, router); err != nil {
            _ = conn.Close()
            if ctx.Err() != nil {
                return ctx.Err()
            }
            log.Printf("payment-consumer: consume loop ended: %v; reconnecting", err)
            time.Sleep(2 * time.Second)
        }
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, router *Router) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Printf("payment-consumer: set QoS failed: %v", err)
    }

    merged := make(chan amqp.Delivery)
    done := make(chan struct{})
    defer close(done) // unblocks the forwarders once nobody reads merged
    for _, queue := range []string{KindPaymentCompleted, KindPaymentFailed} {
        if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
            return fmt.Errorf("queue declare %s: %w", queue, err)
        }
        msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
        if err != nil {
            return fmt.Errorf("queue consume %s: %w", queue, err)
        }
        go forward(done, msgs, merged)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-merged:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            handleDelivery(ctx, router, d)
        }
    }
}

// forward fans one queue's deliveries into merged until the source channel
// closes or done is closed.  Without the done arm a forwarder blocked on
// merged would outlive its consume loop until the connection teardown
// drained msgs.
func forward(done <-chan struct{}, msgs <-chan amqp.Delivery, merged chan<- amqp.Delivery) {
    for d := range msgs {
        select {
        case merged <- d:
        case <-done:
            return
        }
    }
}

func handleDelivery(ctx context.Context, router *Router, d amqp.Delivery) {
    var env Envelope
    if err := json.Unmarshal(d.Body, &env); err != nil {
        log.Printf("payment-consumer: unmarshal failed: %v", err)
        _ = d.Nack(false, false) // malformed, do not requeue
        return
    }
    if err := router.HandleInbound(ctx, env); err != nil {
        log.Printf("payment-consumer: handle %s for %s failed: %v", env.Kind, env.BookingID, err)
        _ = d.Nack(false, true) // transient, let the broker retry
        return
    }
    _ = d.Ack(false)
}
