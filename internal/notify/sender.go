package notify

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/Upkeep/internal/format"
	"github.com/hray3182/Upkeep/internal/models"
	"google.golang.org/api/option"
)

// Sender delivers one reminder over one channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, reminder *models.ScheduledReminder) error
}

// TelegramAPI is the part of *tgbotapi.BotAPI used for delivery.
type TelegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender sends reminders to the linked chat.
type TelegramSender struct {
	api      TelegramAPI
	settings SettingsSource
}

func NewTelegramSender(api TelegramAPI, settings SettingsSource) *TelegramSender {
	return &TelegramSender{api: api, settings: settings}
}

func (s *TelegramSender) Name() string { return "telegram" }

func (s *TelegramSender) Send(ctx context.Context, reminder *models.ScheduledReminder) error {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if !settings.IsLinked() {
		return ErrNotLinked
	}

	text := "🔧 **" + reminder.Title + "**\n\n" + reminder.Body
	if _, err := s.api.Send(format.Message(*settings.ChatID, text)); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// MessagingClient is the part of *messaging.Client used for delivery.
type MessagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMSender pushes reminders to a Firebase Cloud Messaging topic that every
// device of the household subscribes to.
type FCMSender struct {
	client MessagingClient
	topic  string
}

// NewFCMSender initializes a Firebase app from a service-account file.
func NewFCMSender(ctx context.Context, credentialsFile, topic string) (*FCMSender, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}

	return NewFCMSenderWithClient(client, topic), nil
}

func NewFCMSenderWithClient(client MessagingClient, topic string) *FCMSender {
	return &FCMSender{client: client, topic: topic}
}

func (s *FCMSender) Name() string { return "fcm" }

func (s *FCMSender) Send(ctx context.Context, reminder *models.ScheduledReminder) error {
	message := &messaging.Message{
		Topic: s.topic,
		Notification: &messaging.Notification{
			Title: reminder.Title,
			Body:  reminder.Body,
		},
		Data: map[string]string{
			"reminder_id": reminder.ReminderID,
		},
		Android: &messaging.AndroidConfig{
			// Replaces an undismissed alert for the same reminder.
			CollapseKey: reminder.ReminderID,
			Notification: &messaging.AndroidNotification{
				Tag: reminder.ReminderID,
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-collapse-id": reminder.ReminderID,
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	}

	if _, err := s.client.Send(ctx, message); err != nil {
		return fmt.Errorf("failed to send push notification: %w", err)
	}
	return nil
}
