package meetingbaas

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendBot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/bots", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("x-meeting-baas-api-key"))

		var p createBotPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		assert.Equal(t, "https://meet.google.com/abc", p.MeetingURL)
		assert.Equal(t, DefaultBotName, p.BotName)
		assert.Equal(t, "speaker_view", p.RecordingMode)
		assert.True(t, p.TranscriptionEnabled)
		assert.Equal(t, "m1", p.Extra.MeetingID)
		assert.Equal(t, "u1", p.Extra.UserID)

		_, _ = w.Write([]byte(`{"success":true,"data":{"bot_id":"bot-42"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key-1", time.Second)
	id, err := c.SendBot(context.Background(), BotRequest{
		MeetingURL: "https://meet.google.com/abc",
		Extra:      Correlation{MeetingID: "m1", UserID: "u1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "bot-42", id)
}

func TestSendBotLegacyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"bot_id":"bot-legacy"}`))
	}))
	defer srv.Close()

	id, err := NewClient(srv.URL, "k", time.Second).SendBot(context.Background(), BotRequest{MeetingURL: "u"})
	require.NoError(t, err)
	assert.Equal(t, "bot-legacy", id)
}

func TestSendBotErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`},
		{"no bot id", http.StatusOK, `{"data":{}}`},
		{"not json", http.StatusOK, `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "k", time.Second).SendBot(context.Background(), BotRequest{MeetingURL: "u"})
			assert.Error(t, err)
		})
	}
}

func TestSendBotWithoutKey(t *testing.T) {
	_, err := NewClient("http://unused", "", time.Second).SendBot(context.Background(), BotRequest{MeetingURL: "u"})
	assert.Error(t, err)
}

func TestFetchArtifact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(`[{"speaker":"John","words":[{"word":"Hi"}]}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", time.Second)
	data, err := c.FetchArtifact(context.Background(), srv.URL+"/transcript.json")
	require.NoError(t, err)
	assert.Contains(t, string(data), "John")

	_, err = c.FetchArtifact(context.Background(), srv.URL+"/missing")
	assert.Error(t, err)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"bot.completed"}`)
	sig := Sign("s3cret", body)

	assert.True(t, VerifySignature("s3cret", body, sig))
	assert.True(t, VerifySignature("s3cret", body, "sha256="+sig))
	assert.False(t, VerifySignature("other", body, sig))
	assert.False(t, VerifySignature("s3cret", []byte(`{}`), sig))
	assert.False(t, VerifySignature("s3cret", body, "not-hex"))
	assert.False(t, VerifySignature("s3cret", body, ""))
	assert.False(t, VerifySignature("", body, sig))
}
