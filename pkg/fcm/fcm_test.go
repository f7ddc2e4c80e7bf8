package fcm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildMulticast(t *testing.T) {
	msg := buildMulticast([]string{"t1", "t2"}, Notification{
		Title: "Summary ready",
		Body:  "Roadmap review",
		Data:  map[string]string{"meetingId": "m1"},
		Link:  "https://app.example.com/dashboard/meeting/m1",
	})

	assert.Equal(t, []string{"t1", "t2"}, msg.Tokens)
	assert.Equal(t, "Summary ready", msg.Notification.Title)
	assert.Equal(t, "m1", msg.Data["meetingId"])
	if assert.NotNil(t, msg.Webpush.FCMOptions) {
		assert.Equal(t, "https://app.example.com/dashboard/meeting/m1", msg.Webpush.FCMOptions.Link)
	}
}

func TestBuildMulticastWithoutLink(t *testing.T) {
	msg := buildMulticast([]string{"t1"}, Notification{Title: "x"})
	assert.Nil(t, msg.Webpush.FCMOptions)
}

func TestSendToDevicesNoTokens(t *testing.T) {
	c := &Client{}
	stale, err := c.SendToDevices(context.Background(), nil, Notification{})
	assert.NoError(t, err)
	assert.Nil(t, stale)
}
