package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"ecopunto-backend/internal/logging"
	"ecopunto-backend/internal/models"
)

// messageSender is the part of *messaging.Client the notifier uses.
type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMNotifier publishes container-full alerts to a Firebase Cloud Messaging topic.
type FCMNotifier struct {
	client messageSender
	topic  string
}

// NewFCMNotifier creates a notifier from a service account credentials file
func NewFCMNotifier(ctx context.Context, credentialsFile, topic string) (*FCMNotifier, error) {
	return newFCMNotifier(ctx, topic, option.WithCredentialsFile(credentialsFile))
}

// NewFCMNotifierFromBase64 creates a notifier from base64-encoded credentials.
// Useful on hosts where uploading a credentials file is awkward.
func NewFCMNotifierFromBase64(ctx context.Context, credentialsBase64, topic string) (*FCMNotifier, error) {
	credentialsJSON, err := base64.StdEncoding.DecodeString(credentialsBase64)
	if err != nil {
		return nil, fmt.Errorf("error decoding base64 credentials: %w", err)
	}
	return newFCMNotifier(ctx, topic, option.WithCredentialsJSON(credentialsJSON))
}

func newFCMNotifier(ctx context.Context, topic string, opt option.ClientOption) (*FCMNotifier, error) {
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	return &FCMNotifier{client: client, topic: topic}, nil
}

// NotifyContainerFull sends one topic message per notification.
func (s *FCMNotifier) NotifyContainerFull(ctx context.Context, n models.Notification, c models.Container) error {
	response, err := s.client.Send(ctx, containerFullMessage(s.topic, n, c))
	if err != nil {
		return fmt.Errorf("error sending FCM message: %w", err)
	}

	logging.Debug().
		Str("topic", s.topic).
		Str("container_id", c.ID).
		Str("response", response).
		Msg("✅ FCM notification sent")
	return nil
}

func containerFullMessage(topic string, n models.Notification, c models.Container) *messaging.Message {
	return &messaging.Message{
		Topic: topic,
		Notification: &messaging.Notification{
			Title: "Contenedor lleno",
			Body:  n.Message,
		},
		Data: map[string]string{
			"type":            "container_full",
			"notification_id": n.ID,
			"container_id":    c.ID,
			"fill_level":      strconv.Itoa(c.FillLevel),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					ContentAvailable: true,
					Sound:            "default",
				},
			},
		},
	}
}
