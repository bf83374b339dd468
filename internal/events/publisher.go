// Package events publishes completed-order events to Kafka for downstream
// consumers (analytics, fulfillment, email). Publishing is best-effort and
// asynchronous: a broker outage never blocks or fails a checkout.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/xenking/localshop/internal/domain/checkout"
)

// DefaultTopic is the Kafka topic completed orders are published to.
const DefaultTopic = "orders.completed"

// orderCompletedMessage is the wire shape of one completed-order event.
type orderCompletedMessage struct {
	OrderID     string            `json:"order_id"`
	InvoiceID   string            `json:"invoice_id"`
	CustomerID  string            `json:"customer_id,omitempty"`
	Total       string            `json:"total"`
	Items       []orderItemRecord `json:"items"`
	CompletedAt time.Time         `json:"completed_at"`
}

type orderItemRecord struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Publisher writes completed-order events to Kafka through a buffered inbox.
// A single goroutine drains the inbox so the checkout pipeline never waits on
// the broker.
type Publisher struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	lg      *zap.Logger
	closeCh chan struct{}
}

// NewPublisher creates a publisher for the given brokers and topic. Start
// must be called before events are drained.
func NewPublisher(brokers []string, topic string, buf int, lg *zap.Logger) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Publisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		inbox:   make(chan kafka.Message, buf),
		lg:      lg,
		closeCh: make(chan struct{}),
	}
}

// Start drains the inbox until ctx is cancelled, then flushes what remains
// and closes the writer.
func (p *Publisher) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				p.flush()
				return
			case m := <-p.inbox:
				p.write(m)
			}
		}
	}()
}

func (p *Publisher) flush() {
	for {
		select {
		case m := <-p.inbox:
			p.write(m)
		default:
			if err := p.w.Close(); err != nil {
				p.lg.Warn("closing kafka writer", zap.Error(err))
			}
			return
		}
	}
}

func (p *Publisher) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		p.lg.Warn("publishing order event",
			zap.String("key", string(m.Key)),
			zap.Error(err),
		)
	}
}

// WaitClosed blocks until the drain goroutine has exited.
func (p *Publisher) WaitClosed() { <-p.closeCh }

// OrderCompleted is a checkout.Subscriber that enqueues the event for
// publishing. When the inbox is full the event is dropped with a warning:
// delivery is best-effort by contract.
func (p *Publisher) OrderCompleted(event checkout.OrderCompleted) {
	msg := orderCompletedMessage{
		OrderID:     event.Order.ID,
		InvoiceID:   event.Invoice.ID,
		Total:       event.Order.Total.StringFixed(2),
		Items:       make([]orderItemRecord, len(event.Order.Items)),
		CompletedAt: event.CompletedAt,
	}
	if event.Order.Customer != nil {
		msg.CustomerID = event.Order.Customer.ID
	}
	for i, item := range event.Order.Items {
		msg.Items[i] = orderItemRecord{
			ProductID: item.Product.ID,
			Quantity:  item.Quantity,
		}
	}

	value, err := json.Marshal(msg)
	if err != nil {
		p.lg.Warn("marshaling order event", zap.Error(err))
		return
	}

	select {
	case p.inbox <- kafka.Message{
		Key:   []byte(event.Order.ID),
		Value: value,
		Time:  event.CompletedAt,
	}:
	default:
		p.lg.Warn("order event dropped, inbox full",
			zap.String("order_id", event.Order.ID),
		)
	}
}
