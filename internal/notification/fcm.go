package notification

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"matchConnectAPI/internal/logger"
	"matchConnectAPI/internal/types/notification"
)

type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMSink pushes events to the per-user FCM topic the mobile and web clients
// subscribe to after login.
type FCMSink struct {
	client messageSender
}

// NewFCMSink initializes Firebase messaging. Base64 credentials (as set in
// FCM_SERVICE_ACCOUNT_JSON) win over a credentials file path.
func NewFCMSink(ctx context.Context, encodedCreds, credentialsFile string) (*FCMSink, error) {
	var opt option.ClientOption

	if encodedCreds != "" {
		decoded, err := base64.StdEncoding.DecodeString(encodedCreds)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 firebase credentials: %w", err)
		}
		opt = option.WithCredentialsJSON(decoded)
		logger.Info("FCM sink: initializing from FCM_SERVICE_ACCOUNT_JSON")
	} else {
		if credentialsFile == "" {
			return nil, fmt.Errorf("no firebase credentials configured")
		}
		if _, err := os.Stat(credentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("firebase credentials file not found: %s", credentialsFile)
		}
		opt = option.WithCredentialsFile(credentialsFile)
		logger.Info("FCM sink: initializing from credentials file", "path", credentialsFile)
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	return &FCMSink{client: client}, nil
}

func (s *FCMSink) Name() string { return "fcm" }

func (s *FCMSink) Deliver(ctx context.Context, event notification.Event) error {
	message := &messaging.Message{
		Topic: TopicFor(event.TargetUserID),
		Notification: &messaging.Notification{
			Title: event.Title(),
			Body:  event.Body(),
		},
		Data: event.Data(),
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
	}

	if _, err := s.client.Send(ctx, message); err != nil {
		return fmt.Errorf("fcm send to %s: %w", message.Topic, err)
	}
	return nil
}

// TopicFor maps an opaque user id onto a valid FCM topic name. Characters
// outside [A-Za-z0-9-_.~] are percent-encoded.
func TopicFor(userID string) string {
	var b strings.Builder
	b.WriteString("user_")
	for i := 0; i < len(userID); i++ {
		c := userID[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}
