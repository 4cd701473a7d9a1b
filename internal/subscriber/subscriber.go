// Package subscriber consumes the realtime activities channel on behalf of
// a client context: it filters cross-tenant messages, keeps the last
// received activity for UI consumption, and raises local notifications.
package subscriber

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"example.com/commsledger/internal/broadcast"
)

// Notifier receives events that passed the tenant filter. Call events carry
// the activity id as the notification key so redeliveries about the same
// call replace the earlier notification instead of stacking.
type Notifier interface {
	Notify(key string, event broadcast.ActivityEvent)
}

// Subscriber is the client-side consumer of the activities channel.
// organizationID scopes what it accepts; an empty value accepts every
// tenant (used by the fan-out daemon, which re-scopes per connection).
type Subscriber struct {
	rdb            *redis.Client
	organizationID string
	notifier       Notifier
	logger         *zap.Logger

	pubsub *redis.PubSub

	mu   sync.RWMutex
	last *broadcast.ActivityEvent
}

// New constructs a Subscriber.
func New(rdb *redis.Client, organizationID string, notifier Notifier, logger *zap.Logger) *Subscriber {
	return &Subscriber{
		rdb:            rdb,
		organizationID: organizationID,
		notifier:       notifier,
		logger:         logger,
	}
}

// Start subscribes to the activities channel and begins processing until
// the context is cancelled.
func (s *Subscriber) Start(ctx context.Context) error {
	s.pubsub = s.rdb.Subscribe(ctx, broadcast.ChannelActivities)

	// Wait for confirmation that the subscription is created.
	if _, err := s.pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", broadcast.ChannelActivities, err)
	}

	s.logger.Info("subscribed to realtime channel",
		zap.String("channel", broadcast.ChannelActivities),
		zap.String("organization_id", s.organizationID))

	go s.listen(ctx)
	return nil
}

func (s *Subscriber) listen(ctx context.Context) {
	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			if err := s.pubsub.Close(); err != nil {
				s.logger.Warn("closing subscription failed", zap.Error(err))
			}
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if msg == nil {
				continue
			}
			s.process([]byte(msg.Payload))
		}
	}
}

// process applies the tenant filter and dispatches one message.
func (s *Subscriber) process(payload []byte) {
	var event broadcast.ActivityEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn("discarding unparseable activity event", zap.Error(err))
		return
	}

	if s.organizationID != "" && event.OrganizationID != s.organizationID {
		s.logger.Debug("discarding cross-tenant activity event",
			zap.String("organization_id", event.OrganizationID))
		return
	}

	s.mu.Lock()
	s.last = &event
	s.mu.Unlock()

	if s.notifier != nil {
		key := event.ActivityID
		s.notifier.Notify(key, event)
	}
}

// Last returns the most recent accepted event, or nil.
func (s *Subscriber) Last() *broadcast.ActivityEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil
	}
	event := *s.last
	return &event
}

// Stop unsubscribes. Safe to call before Start.
func (s *Subscriber) Stop() error {
	if s.pubsub != nil {
		return s.pubsub.Close()
	}
	return nil
}
