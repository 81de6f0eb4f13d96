package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/amankumarsingh77/clip-splitter/internal/models"
	"github.com/nats-io/nats.go"
)

type Client struct{ nc *nats.Conn }

func Connect(url string) (*Client, error) {
	nc, err := nats.Connect(url,
		nats.Name("clip-splitter"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &Client{nc: nc}, nil
}

func (c *Client) Close() {
	if c != nil && c.nc != nil {
		_ = c.nc.Drain()
	}
}

func (c *Client) PublishJSON(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.nc.Publish(subject, b)
}

func (c *Client) SubscribeJSON(subject string, handler func(ctx context.Context, data []byte)) (*nats.Subscription, error) {
	return c.nc.Subscribe(subject, func(msg *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		handler(ctx, msg.Data)
	})
}

// EventPublisher sends task lifecycle events to a single subject.
type EventPublisher struct {
	client  *Client
	subject string
}

func NewEventPublisher(client *Client, subject string) *EventPublisher {
	return &EventPublisher{client: client, subject: subject}
}

func (p *EventPublisher) Publish(_ context.Context, ev models.TaskEvent) error {
	return p.client.PublishJSON(p.subject, ev)
}

// NopPublisher drops every event. Used when no NATS url is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.TaskEvent) error { return nil }

func DecodeEvent(data []byte) (models.TaskEvent, bool) {
	var ev models.TaskEvent
	if err := json.Unmarshal(data, &ev); err != nil || ev.TaskID == "" {
		return models.TaskEvent{}, false
	}
	return ev, true
}
