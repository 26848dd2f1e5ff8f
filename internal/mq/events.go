package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shelfkeeper/apiserver/internal/metrics"
	"github.com/shelfkeeper/apiserver/types"
)

// Attribute keys set on every book event message.
const (
	AttrEventType = "event_type"
	AttrBookID    = "book_id"
)

// BookEvents publishes catalog changes as JSON messages on one channel.
type BookEvents struct {
	mq      *MQ
	channel string
}

func NewBookEvents(mq *MQ, channel string) *BookEvents {
	return &BookEvents{mq: mq, channel: channel}
}

// PublishBookEvent encodes event and hands it to the broker.
func (e *BookEvents) PublishBookEvent(ctx context.Context, event types.BookEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode book event: %w", err)
	}

	_, err = e.mq.Publish(ctx, e.channel, data, map[string]string{
		AttrEventType: string(event.Type),
		AttrBookID:    event.BookID,
	})
	metrics.RecordEventPublish(string(event.Type), err)
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Watch decodes book events from the channel and passes them to fn until
// ctx is cancelled. Messages that do not decode are acknowledged and
// dropped.
func (e *BookEvents) Watch(ctx context.Context, fn func(context.Context, types.BookEvent) error) error {
	return e.mq.Subscribe(ctx, e.channel, func(ctx context.Context, msg Message) error {
		var event types.BookEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return nil
		}
		return fn(ctx, event)
	})
}
