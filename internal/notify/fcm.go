// README: FCM-backed Pusher.
package notify

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"
)

type FCMPusher struct {
	client *messaging.Client
}

func NewFCMPusher(client *messaging.Client) *FCMPusher {
	return &FCMPusher{client: client}
}

func (p *FCMPusher) Deliver(ctx context.Context, deviceToken string, push Push) error {
	if deviceToken == "" {
		return fmt.Errorf("empty device token")
	}
	msg := &messaging.Message{
		Token: deviceToken,
		Data:  push.Data,
		Notification: &messaging.Notification{
			Title: push.Title,
			Body:  push.Body,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}
	if _, err := p.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("sending FCM: %w", err)
	}
	return nil
}
