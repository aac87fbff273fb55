// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package push delivers web-push notifications for panic alerts. Raising
// a panic publishes an event onto an in-process queue; a worker drains
// the queue and fans out to every group member's push subscription.
// Delivery is strictly fire and forget: a slow or failing push endpoint
// never delays the socket broadcast.
package push

import (
	"context"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/kafilah/kafilah/internal/config"
	"github.com/kafilah/kafilah/internal/database"
	"github.com/kafilah/kafilah/internal/logging"
	"github.com/kafilah/kafilah/internal/metrics"
	"github.com/kafilah/kafilah/internal/models"
)

const panicTopic = "panic.alerts"

// SubscriptionStore is the subset of the database the worker needs.
type SubscriptionStore interface {
	ListGroupSubscriptions(ctx context.Context, groupID, excludeUserID string) ([]database.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, userID string) error
}

// panicEvent is the queue payload connecting the raise path to the
// delivery worker.
type panicEvent struct {
	GroupID string             `json:"groupId"`
	Alert   *models.PanicAlert `json:"alert"`
}

// notification is what subscribed browsers receive.
type notification struct {
	Title string             `json:"title"`
	Body  string             `json:"body"`
	Data  *models.PanicAlert `json:"data"`
}

// sendFunc matches webpush.SendNotificationWithContext; swapped in tests.
type sendFunc func(ctx context.Context, payload []byte, s *webpush.Subscription, opts *webpush.Options) (*http.Response, error)

// Service queues panic events and delivers them over web push.
type Service struct {
	pubSub *gochannel.GoChannel
	store  SubscriptionStore
	cfg    *config.PushConfig
	send   sendFunc
}

// NewService creates the push service. The gochannel Pub/Sub keeps
// publish non-blocking up to its buffer; beyond that events are dropped
// by the publisher rather than stalling a panic raise.
func NewService(cfg *config.PushConfig, store SubscriptionStore) *Service {
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, watermill.NewStdLogger(false, false))

	return &Service{
		pubSub: pubSub,
		store:  store,
		cfg:    cfg,
		send:   webpush.SendNotificationWithContext,
	}
}

// PublishPanic queues a panic alert for push fan-out. Errors are logged
// and swallowed; the caller has already persisted and broadcast the
// alert and must not fail because push is unavailable.
func (s *Service) PublishPanic(groupID string, alert *models.PanicAlert) {
	data, err := json.Marshal(panicEvent{GroupID: groupID, Alert: alert})
	if err != nil {
		logging.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to encode panic event")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	if err := s.pubSub.Publish(panicTopic, msg); err != nil {
		logging.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to queue panic push")
	}
}

// Serve drains the queue until the context is canceled. It satisfies
// suture.Service so the supervisor restarts the worker on failure.
func (s *Service) Serve(ctx context.Context) error {
	messages, err := s.pubSub.Subscribe(ctx, panicTopic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", panicTopic, err)
	}

	logging.Info().Str("component", "push-worker").Msg("push worker started")
	for {
		select {
		case <-ctx.Done():
			logging.Info().Str("component", "push-worker").Msg("push worker stopped")
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("push subscription channel closed")
			}
			s.handleMessage(ctx, msg)
			msg.Ack()
		}
	}
}

// Close shuts down the underlying Pub/Sub.
func (s *Service) Close() error {
	return s.pubSub.Close()
}

func (s *Service) handleMessage(ctx context.Context, msg *message.Message) {
	var ev panicEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		logging.Error().Err(err).Str("message_uuid", msg.UUID).Msg("malformed panic event")
		return
	}

	// The raiser sees the alert on their own screen already.
	subs, err := s.store.ListGroupSubscriptions(ctx, ev.GroupID, ev.Alert.UserID)
	if err != nil {
		logging.Error().Err(err).Str("group_id", ev.GroupID).Msg("failed to list push subscriptions")
		return
	}

	payload, err := json.Marshal(notification{
		Title: "DARURAT!",
		Body:  fmt.Sprintf("%s: %s", ev.Alert.UserName, ev.Alert.Message),
		Data:  ev.Alert,
	})
	if err != nil {
		logging.Error().Err(err).Msg("failed to encode push payload")
		return
	}

	for _, sub := range subs {
		s.deliver(ctx, sub, payload)
	}
}

func (s *Service) deliver(ctx context.Context, sub database.PushSubscription, payload []byte) {
	var target webpush.Subscription
	if err := json.Unmarshal([]byte(sub.Payload), &target); err != nil {
		logging.Warn().Err(err).Str("user_id", sub.UserID).Msg("dropping corrupt push subscription")
		metrics.PushDeliveries.WithLabelValues("error").Inc()
		return
	}

	resp, err := s.send(ctx, payload, &target, &webpush.Options{
		Subscriber:      s.cfg.Subscriber,
		VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
		TTL:             60,
	})
	if err != nil {
		logging.Warn().Err(err).Str("user_id", sub.UserID).Msg("push delivery failed")
		metrics.PushDeliveries.WithLabelValues("error").Inc()
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		// The endpoint told us the subscription is dead; forget it.
		if err := s.store.DeletePushSubscription(ctx, sub.UserID); err != nil {
			logging.Warn().Err(err).Str("user_id", sub.UserID).Msg("failed to prune dead subscription")
		}
		metrics.PushDeliveries.WithLabelValues("gone").Inc()
	case resp.StatusCode >= 400:
		logging.Warn().
			Int("status", resp.StatusCode).
			Str("user_id", sub.UserID).
			Msg("push endpoint rejected notification")
		metrics.PushDeliveries.WithLabelValues("error").Inc()
	default:
		metrics.PushDeliveries.WithLabelValues("ok").Inc()
	}
}
