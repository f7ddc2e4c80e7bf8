package domain

import (
	"encoding/json"

	"github.com/Chedidayeh/meeting-bot/pkg/meetingbaas"
)

const (
	EventBotCompleted = "bot.completed"
	// EventCompleteLegacy is the completion name used by the older API.
	EventCompleteLegacy = "complete"
)

// Event is one delivery from the recording-bot service.
type Event struct {
	Event     string                   `json:"event"`
	EventType string                   `json:"eventType"`
	Data      EventData                `json:"data"`
	Extra     *meetingbaas.Correlation `json:"extra,omitempty"`
}

// Type returns the event name whichever field carried it.
func (e Event) Type() string {
	if e.Event != "" {
		return e.Event
	}
	return e.EventType
}

func (e Event) IsCompletion() bool {
	t := e.Type()
	return t == EventBotCompleted || t == EventCompleteLegacy
}

// Correlation returns the payload attached at dispatch time, if echoed back.
func (e Event) Correlation() meetingbaas.Correlation {
	if e.Extra != nil && e.Extra.MeetingID != "" {
		return *e.Extra
	}
	if e.Data.Extra != nil {
		return *e.Data.Extra
	}
	return meetingbaas.Correlation{}
}

type EventData struct {
	BotID           string  `json:"bot_id"`
	DurationSeconds float64 `json:"duration_seconds"`
	Participants    Names   `json:"participants"`
	Speakers        Names   `json:"speakers"`

	Video string `json:"video"`
	MP4   string `json:"mp4"`

	RawTranscription string `json:"raw_transcription"`
	Transcription    string `json:"transcription"`
	// Transcript is the inline transcript sent by the older API.
	Transcript json.RawMessage `json:"transcript,omitempty"`

	Extra *meetingbaas.Correlation `json:"extra,omitempty"`
}

func (d EventData) RecordingURL() string {
	if d.Video != "" {
		return d.Video
	}
	return d.MP4
}

// TranscriptURLs lists artifact URLs in order of preference.
func (d EventData) TranscriptURLs() []string {
	var urls []string
	for _, u := range []string{d.RawTranscription, d.Transcription} {
		if u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// Names decodes a list of people given either as strings or as
// {"id": ..., "name": ...} objects.
type Names []string

func (n *Names) UnmarshalJSON(b []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		// null or a non-list value
		*n = nil
		return nil
	}

	out := make(Names, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s != "" {
				out = append(out, s)
			}
			continue
		}
		var person struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(item, &person); err == nil && person.Name != "" {
			out = append(out, person.Name)
		}
	}
	*n = out
	return nil
}
