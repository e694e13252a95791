package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchConnectAPI/internal/types/notification"
)

type fakeSender struct {
	sent []*messaging.Message
	err  error
}

func (f *fakeSender) Send(ctx context.Context, message *messaging.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, message)
	return "projects/test/messages/1", nil
}

func TestTopicFor(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"user_2abc", "user_user_2abc"},
		{"a.b-c~d", "user_a.b-c~d"},
		{"x y", "user_x%20y"},
		{"a@b", "user_a%40b"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, TopicFor(tt.in))
		})
	}
}

func TestFCMSink_Deliver(t *testing.T) {
	sender := &fakeSender{}
	sink := &FCMSink{client: sender}

	event := notification.Event{
		ID:           uuid.New(),
		Type:         notification.TypeRequestAccepted,
		TargetUserID: "alice",
		ActorUserID:  "bob",
		RequestID:    uuid.New(),
		Timestamp:    time.Now(),
	}

	require.NoError(t, sink.Deliver(context.Background(), event))
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, "user_alice", msg.Topic)
	assert.Equal(t, event.Title(), msg.Notification.Title)
	assert.Equal(t, string(notification.TypeRequestAccepted), msg.Data["type"])
	assert.Equal(t, event.RequestID.String(), msg.Data["requestId"])
}

func TestFCMSink_DeliverError(t *testing.T) {
	sink := &FCMSink{client: &fakeSender{err: errors.New("unavailable")}}

	err := sink.Deliver(context.Background(), notification.Event{TargetUserID: "alice"})
	assert.ErrorContains(t, err, "user_alice")
}

func TestNewFCMSink_NoCredentials(t *testing.T) {
	_, err := NewFCMSink(context.Background(), "", "")
	assert.Error(t, err)

	_, err = NewFCMSink(context.Background(), "", "/nonexistent/serviceAccountKey.json")
	assert.Error(t, err)

	_, err = NewFCMSink(context.Background(), "!!not-base64!!", "")
	assert.Error(t, err)
}
