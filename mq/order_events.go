package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"scatch/models"

	"github.com/redis/go-redis/v9"
)

const OrderEventsChannel = "order-events"

// Emitter publishes paid-order events to Redis so every instance's feed hub sees them.
type Emitter struct {
	c *redis.Client
}

func NewEmitter(c *redis.Client) *Emitter {
	return &Emitter{c: c}
}

func (e *Emitter) Publish(ctx context.Context, ev models.OrderEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	if err := e.c.Publish(ctx, OrderEventsChannel, data).Err(); err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

// StartOrderEventWorker delivers every event on the channel until ctx ends.
func StartOrderEventWorker(ctx context.Context, c *redis.Client, deliver func(models.OrderEvent)) {
	sub := c.Subscribe(ctx, OrderEventsChannel)
	defer sub.Close()
	ch := sub.Channel()

	log.Println("[OrderEventWorker] Listening for order events...")

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			ev, err := decodeEvent(msg.Payload)
			if err != nil {
				log.Printf("[OrderEventWorker] Failed to parse event: %v", err)
				continue
			}
			deliver(ev)
		}
	}
}

func decodeEvent(payload string) (models.OrderEvent, error) {
	var ev models.OrderEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return ev, err
	}
	if ev.OwnerID == "" {
		return ev, fmt.Errorf("order event without owner")
	}
	return ev, nil
}
