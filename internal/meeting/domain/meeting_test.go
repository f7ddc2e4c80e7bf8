package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeetingStatus(t *testing.T) {
	tests := []struct {
		name    string
		meeting Meeting
		want    string
	}{
		{"new", Meeting{}, "upcoming"},
		{"scheduled", Meeting{BotScheduled: true}, "scheduled"},
		{"bot sent", Meeting{BotScheduled: true, BotSent: true}, "recording"},
		{"ended", Meeting{BotSent: true, MeetingEnded: true}, "processing"},
		{"done", Meeting{MeetingEnded: true, Processed: true}, "completed"},
		{"failed", Meeting{MeetingEnded: true, Processed: true, ProcessingFailed: true}, "failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.meeting.Status())
		})
	}
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "", (&Meeting{}).JoinURL())
	url := "https://meet.google.com/abc"
	assert.Equal(t, url, (&Meeting{MeetingURL: &url}).JoinURL())
}
