// Package events publishes meeting lifecycle events to Google Pub/Sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

const (
	TypeBotDispatched    = "bot.dispatched"
	TypeMeetingProcessed = "meeting.processed"
)

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
}

func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Source:    "meeting-bot",
		Version:   "1.0",
	}
}

// BotDispatchedEvent is published after the bot service accepted a dispatch.
type BotDispatchedEvent struct {
	BaseEvent
	MeetingID string `json:"meeting_id"`
	UserID    string `json:"user_id"`
	BotID     string `json:"bot_id"`
	Trigger   string `json:"trigger"`
}

// MeetingProcessedEvent is published once a meeting has been finalized.
type MeetingProcessedEvent struct {
	BaseEvent
	MeetingID        string `json:"meeting_id"`
	UserID           string `json:"user_id"`
	ProcessingFailed bool   `json:"processing_failed"`
	EmailSent        bool   `json:"email_sent"`
	RAGProcessed     bool   `json:"rag_processed"`
	ActionItemCount  int    `json:"action_item_count"`
}

// Publisher is implemented by PubSubPublisher and NopPublisher.
type Publisher interface {
	PublishBotDispatched(ctx context.Context, evt BotDispatchedEvent) error
	PublishMeetingProcessed(ctx context.Context, evt MeetingProcessedEvent) error
	Close() error
}

type PubSubPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	log    zerolog.Logger
}

func NewPubSubPublisher(ctx context.Context, projectID, topicName, credentialsFile string, log zerolog.Logger) (*PubSubPublisher, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	topic := client.Topic(topicName)
	exists, err := topic.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to check topic %s: %w", topicName, err)
	}
	if !exists {
		client.Close()
		return nil, fmt.Errorf("pubsub topic %s does not exist", topicName)
	}

	return &PubSubPublisher{
		client: client,
		topic:  topic,
		log:    log.With().Str("component", "events").Str("topic", topicName).Logger(),
	}, nil
}

func (p *PubSubPublisher) PublishBotDispatched(ctx context.Context, evt BotDispatchedEvent) error {
	return p.publish(ctx, evt.EventType, evt.MeetingID, evt)
}

func (p *PubSubPublisher) PublishMeetingProcessed(ctx context.Context, evt MeetingProcessedEvent) error {
	return p.publish(ctx, evt.EventType, evt.MeetingID, evt)
}

func (p *PubSubPublisher) publish(ctx context.Context, eventType, meetingID string, evt any) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_type": eventType,
			"meeting_id": meetingID,
		},
	})

	id, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}

	p.log.Debug().Str("event_type", eventType).Str("meeting_id", meetingID).Str("message_id", id).Msg("event published")
	return nil
}

func (p *PubSubPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}

// NopPublisher drops every event. It is used when Pub/Sub is not configured.
type NopPublisher struct{}

func (NopPublisher) PublishBotDispatched(context.Context, BotDispatchedEvent) error       { return nil }
func (NopPublisher) PublishMeetingProcessed(context.Context, MeetingProcessedEvent) error { return nil }
func (NopPublisher) Close() error                                                        { return nil }
